package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrIntentNotFound = errors.New("payment intent not found")

type IntentStatus string

const (
	IntentRequiresConfirmation IntentStatus = "requires_confirmation"
	IntentSucceeded            IntentStatus = "succeeded"
)

type Intent struct {
	ID           string          `json:"id"`
	CompanyID    string          `json:"company_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	ClientSecret string          `json:"client_secret"`
	Status       IntentStatus    `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (i Intent) Succeeded() bool {
	return i.Status == IntentSucceeded
}

// Gateway is the payment processor as seen by order placement.
type Gateway interface {
	CreateIntent(ctx context.Context, companyID string, amount decimal.Decimal, currency string) (Intent, error)
	GetIntent(ctx context.Context, companyID string, id string) (Intent, error)
}

// Confirmer is implemented by gateways that accept the out-of-band
// "payment succeeded" signal through this service rather than a webhook.
type Confirmer interface {
	MarkSucceeded(ctx context.Context, companyID string, id string) (Intent, error)
}

// Simulated is an in-process processor for development and tests.
type Simulated struct {
	mu      sync.Mutex
	intents map[string]Intent
}

func NewSimulated() *Simulated {
	return &Simulated{intents: make(map[string]Intent)}
}

func (s *Simulated) CreateIntent(ctx context.Context, companyID string, amount decimal.Decimal, currency string) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	if !amount.IsPositive() {
		return Intent{}, fmt.Errorf("payment amount must be positive")
	}
	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	intent := Intent{
		ID:           id,
		CompanyID:    companyID,
		Amount:       amount,
		Currency:     strings.ToUpper(strings.TrimSpace(currency)),
		ClientSecret: id + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		Status:       IntentRequiresConfirmation,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	s.intents[id] = intent
	s.mu.Unlock()
	return intent, nil
}

func (s *Simulated) GetIntent(_ context.Context, companyID string, id string) (Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok || intent.CompanyID != companyID {
		return Intent{}, ErrIntentNotFound
	}
	return intent, nil
}

func (s *Simulated) MarkSucceeded(_ context.Context, companyID string, id string) (Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok || intent.CompanyID != companyID {
		return Intent{}, ErrIntentNotFound
	}
	intent.Status = IntentSucceeded
	s.intents[id] = intent
	return intent, nil
}
