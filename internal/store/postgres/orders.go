package postgres

import (
	"context"
	"fmt"
	"time"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
)

const orderColumns = `id, company_id, number, order_type, order_source, status, warehouse_id, customer_id,
	original_order_id, payment_intent_id, reason, total_amount, created_by, created_at, updated_at, cancelled_at, restocked_at`

func (t *txn) CreateOrder(ctx context.Context, order domain.Order) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (:id, :company_id, :number, :order_type, :order_source, :status, :warehouse_id, :customer_id,
			:original_order_id, :payment_intent_id, :reason, :total_amount, :created_by, :created_at, :updated_at, :cancelled_at, :restocked_at)
	`, order)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: order %s or its payment intent already exists", store.ErrConflict, order.Number)
	}
	if err != nil {
		return err
	}
	for i, item := range order.Items {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, line_no, product_id, variant_id, quantity, unit_price, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, item.ID, order.ID, i+1, item.ProductID, item.VariantID, item.Quantity, item.UnitPrice, item.Subtotal); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) GetOrder(ctx context.Context, companyID string, id string) (*domain.Order, error) {
	return t.getOrder(ctx, companyID, id, "")
}

func (t *txn) GetOrderForUpdate(ctx context.Context, companyID string, id string) (*domain.Order, error) {
	return t.getOrder(ctx, companyID, id, " FOR UPDATE")
}

func (t *txn) getOrder(ctx context.Context, companyID string, id string, lock string) (*domain.Order, error) {
	var order domain.Order
	if err := t.tx.GetContext(ctx, &order, `
		SELECT `+orderColumns+` FROM orders
		WHERE company_id = $1 AND id = $2`+lock, companyID, id); err != nil {
		return nil, notFound(err)
	}
	orders := []domain.Order{order}
	if err := t.loadOrderItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (t *txn) loadOrderItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
		index[order.ID] = i
		orders[i].Items = []domain.OrderItem{}
	}
	var items []domain.OrderItem
	if err := t.tx.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, variant_id, quantity, unit_price, subtotal
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, line_no
	`, ids); err != nil {
		return err
	}
	for _, item := range items {
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return nil
}

// UpdateOrder writes the mutable header fields. Items are fixed at creation.
func (t *txn) UpdateOrder(ctx context.Context, order domain.Order) error {
	return affected(t.tx.NamedExecContext(ctx, `
		UPDATE orders
		SET status = :status, reason = :reason, updated_at = :updated_at,
			cancelled_at = :cancelled_at, restocked_at = :restocked_at
		WHERE company_id = :company_id AND id = :id
	`, order))
}

func (t *txn) ListOrders(ctx context.Context, companyID string, filter domain.OrderFilter) ([]domain.Order, error) {
	orders := make([]domain.Order, 0)
	if err := t.tx.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+` FROM orders
		WHERE company_id = $1
		  AND ($2::text = '' OR order_type = $2)
		  AND ($3::text = '' OR status = $3)
		  AND ($4::text = '' OR customer_id = $4)
		  AND ($5::text = '' OR original_order_id = $5)
		  AND ($6::text = '' OR payment_intent_id = $6)
		ORDER BY created_at DESC, id DESC`+limitClause(filter.Limit),
		companyID, string(filter.OrderType), string(filter.Status), filter.CustomerID,
		filter.OriginalOrderID, filter.PaymentIntentID); err != nil {
		return nil, err
	}
	if err := t.loadOrderItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (t *txn) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO audit_logs (id, company_id, actor, action, entity, entity_id, detail, created_at)
		VALUES (:id, :company_id, :actor, :action, :entity, :entity_id, :detail, :created_at)
	`, entry)
	return err
}

func (t *txn) ListAuditLogs(ctx context.Context, companyID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	logs := make([]domain.AuditLog, 0)
	err := t.tx.SelectContext(ctx, &logs, `
		SELECT id, company_id, actor, action, entity, entity_id, detail, created_at
		FROM audit_logs
		WHERE company_id = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY created_at DESC, id DESC`+limitClause(limit), companyID, from, to)
	return logs, err
}
