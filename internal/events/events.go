package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/xid"
)

const EventStockMoved = "inventory.stock_moved"

type StockMovedEvent struct {
	EventID    string                 `json:"event_id"`
	EventType  string                 `json:"event_type"`
	CompanyID  string                 `json:"company_id"`
	Movements  []domain.StockMovement `json:"movements"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Publisher announces committed stock movements to downstream consumers.
type Publisher interface {
	PublishStockMovements(ctx context.Context, companyID string, movements []domain.StockMovement) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) PublishStockMovements(_ context.Context, _ string, _ []domain.StockMovement) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) PublishStockMovements(ctx context.Context, companyID string, movements []domain.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	msg, err := stockMovedMessage(companyID, movements, time.Now().UTC())
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// stockMovedMessage keys by company so one tenant's events stay ordered
// within a partition.
func stockMovedMessage(companyID string, movements []domain.StockMovement, at time.Time) (kafka.Message, error) {
	payload, err := json.Marshal(StockMovedEvent{
		EventID:    xid.New("evt"),
		EventType:  EventStockMoved,
		CompanyID:  companyID,
		Movements:  movements,
		OccurredAt: at,
	})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(companyID),
		Value: payload,
		Time:  at,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventStockMoved)},
		},
	}, nil
}
