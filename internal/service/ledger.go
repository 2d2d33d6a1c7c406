package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
	"pasarhub/backend/internal/xid"
)

// ledger applies stock movements inside one unit of work and remembers what
// it wrote so the caller can publish them after commit.
type ledger struct {
	tx        store.Tx
	companyID string
	actor     string
	now       time.Time
	movements []domain.StockMovement
}

func newLedger(tx store.Tx, companyID string, actor domain.Actor, now time.Time) *ledger {
	return &ledger{tx: tx, companyID: companyID, actor: defaultString(actor.Username, "system"), now: now}
}

type entry struct {
	key           domain.StockKey
	movementType  domain.MovementType
	quantity      int
	referenceType string
	referenceID   string
	correlationID string
	reason        string
}

func (l *ledger) apply(ctx context.Context, e entry) (domain.WarehouseInventory, error) {
	if e.quantity == 0 {
		return domain.WarehouseInventory{}, fmt.Errorf("%w: movement quantity must not be zero", store.ErrInvalidInput)
	}

	var inv domain.WarehouseInventory
	current, err := l.tx.GetInventoryForUpdate(ctx, l.companyID, e.key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		inv = domain.WarehouseInventory{
			ID:          xid.New("inv"),
			CompanyID:   l.companyID,
			WarehouseID: e.key.WarehouseID,
			ProductID:   e.key.ProductID,
			VariantID:   e.key.VariantID,
		}
	case err != nil:
		return domain.WarehouseInventory{}, err
	default:
		inv = *current
	}

	balance := inv.StockCount + e.quantity
	if balance < 0 {
		return domain.WarehouseInventory{}, fmt.Errorf("%w: product %s%s in warehouse %s has %d, needs %d",
			store.ErrInsufficientStock, e.key.ProductID, variantSuffix(e.key.VariantID), e.key.WarehouseID, inv.StockCount, -e.quantity)
	}

	expected := inv.Version
	inv.StockCount = balance
	inv.Version = expected + 1
	inv.UpdatedAt = l.now
	if err := l.tx.SaveInventory(ctx, inv, expected); err != nil {
		return domain.WarehouseInventory{}, err
	}

	movement := domain.StockMovement{
		ID:            xid.New("mov"),
		CompanyID:     l.companyID,
		WarehouseID:   e.key.WarehouseID,
		ProductID:     e.key.ProductID,
		VariantID:     e.key.VariantID,
		MovementType:  e.movementType,
		Quantity:      e.quantity,
		BalanceAfter:  balance,
		ReferenceType: e.referenceType,
		ReferenceID:   e.referenceID,
		CorrelationID: e.correlationID,
		Reason:        e.reason,
		CreatedBy:     l.actor,
		CreatedAt:     l.now,
	}
	if err := l.tx.InsertStockMovement(ctx, movement); err != nil {
		return domain.WarehouseInventory{}, err
	}
	l.movements = append(l.movements, movement)
	return inv, nil
}

func (l *ledger) stockOf(ctx context.Context, key domain.StockKey) (domain.WarehouseInventory, error) {
	inv, err := l.tx.GetInventoryForUpdate(ctx, l.companyID, key)
	if errors.Is(err, store.ErrNotFound) {
		return domain.WarehouseInventory{
			CompanyID:   l.companyID,
			WarehouseID: key.WarehouseID,
			ProductID:   key.ProductID,
			VariantID:   key.VariantID,
		}, nil
	}
	if err != nil {
		return domain.WarehouseInventory{}, err
	}
	return *inv, nil
}

func variantSuffix(variantID string) string {
	if variantID == "" {
		return ""
	}
	return "/" + variantID
}
