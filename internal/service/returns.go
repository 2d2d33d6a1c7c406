package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
	"pasarhub/backend/internal/xid"
)

// CreateReturnOrder records a return against a sales order without touching
// stock. The original is locked so concurrent returns cannot both pass the
// cap check.
func (s *Service) CreateReturnOrder(ctx context.Context, originalID string, req domain.ReturnOrderRequest) (domain.OrderResult, error) {
	companyID, actor, err := s.scope(ctx)
	if err != nil {
		return domain.OrderResult{}, err
	}
	lines, _, err := normalizeOrderLines(req.Items)
	if err != nil {
		return domain.OrderResult{}, err
	}

	now := s.now()
	var ret domain.Order
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		original, err := tx.GetOrderForUpdate(ctx, companyID, originalID)
		if err != nil {
			return err
		}
		if actor.Role == domain.RoleCustomer && original.CustomerID != actor.UserID {
			return fmt.Errorf("%w: order %s not found", store.ErrNotFound, originalID)
		}
		if original.OrderType != domain.OrderTypeSales {
			return fmt.Errorf("%w: returns can only be made against sales orders", store.ErrConflict)
		}
		if original.Status == domain.OrderStatusCancelled {
			return fmt.Errorf("%w: order %s is cancelled", store.ErrConflict, original.Number)
		}

		prices := make(map[domain.LineKey]decimal.Decimal, len(original.Items))
		for _, item := range original.Items {
			if _, ok := prices[item.Key()]; !ok {
				prices[item.Key()] = item.UnitPrice
			}
		}
		for i, line := range lines {
			if _, ok := prices[domain.LineKey{ProductID: line.ProductID, VariantID: line.VariantID}]; !ok {
				return fmt.Errorf("%w: line %d: product %s%s is not on order %s",
					store.ErrInvalidInput, i+1, line.ProductID, variantSuffix(line.VariantID), original.Number)
			}
		}

		prior, err := tx.ListOrders(ctx, companyID, domain.OrderFilter{OrderType: domain.OrderTypeReturn, OriginalOrderID: original.ID})
		if err != nil {
			return err
		}
		remaining := make(map[domain.LineKey]int)
		for _, r := range domain.ComputeReturnable(*original, prior) {
			remaining[domain.LineKey{ProductID: r.ProductID, VariantID: r.VariantID}] = r.Remaining
		}

		ret = domain.Order{
			ID:              xid.New("ret"),
			CompanyID:       companyID,
			OrderType:       domain.OrderTypeReturn,
			OrderSource:     original.OrderSource,
			Status:          domain.OrderStatusPending,
			WarehouseID:     original.WarehouseID,
			CustomerID:      original.CustomerID,
			OriginalOrderID: original.ID,
			Reason:          strings.TrimSpace(req.Reason),
			TotalAmount:     decimal.Zero,
			CreatedBy:       actor.Username,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		ret.Number = xid.Number("RET", ret.ID)
		for i, line := range lines {
			key := domain.LineKey{ProductID: line.ProductID, VariantID: line.VariantID}
			if line.Quantity > remaining[key] {
				return fmt.Errorf("%w: line %d: requested %d exceeds returnable %d for product %s%s",
					store.ErrConflict, i+1, line.Quantity, remaining[key], line.ProductID, variantSuffix(line.VariantID))
			}
			item := domain.NewOrderItem(line.ProductID, line.VariantID, line.Quantity, prices[key])
			item.ID = xid.New("oi")
			item.OrderID = ret.ID
			ret.Items = append(ret.Items, item)
			ret.TotalAmount = ret.TotalAmount.Add(item.Subtotal)
		}
		return tx.CreateOrder(ctx, ret)
	})
	if err != nil {
		return domain.OrderResult{}, err
	}

	effects := []domain.Effect{s.audit(ctx, companyID, actor, "return_create", "order", ret.ID,
		fmt.Sprintf("number=%s,original=%s,total=%s", ret.Number, ret.OriginalOrderID, ret.TotalAmount.StringFixed(2)))}
	return domain.OrderResult{Order: ret, EffectiveStatus: ret.Status, Effects: effects}, nil
}

// RestockReturnOrder puts a return's goods back on the shelf of the original
// warehouse. It can run once per return order.
func (s *Service) RestockReturnOrder(ctx context.Context, id string) (domain.OrderResult, error) {
	companyID, actor, err := s.scope(ctx, staffRoles...)
	if err != nil {
		return domain.OrderResult{}, err
	}

	var (
		result domain.OrderResult
		now    = s.now()
	)
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		ret, err := tx.GetOrderForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if ret.OrderType != domain.OrderTypeReturn {
			return fmt.Errorf("%w: order %s is not a return order", store.ErrConflict, ret.Number)
		}
		if ret.RestockedAt != nil {
			return fmt.Errorf("%w: return order %s already restocked", store.ErrConflict, ret.Number)
		}
		if err := requireWarehouse(actor, ret.WarehouseID); err != nil {
			return err
		}
		original, err := tx.GetOrderForUpdate(ctx, companyID, ret.OriginalOrderID)
		if err != nil {
			return err
		}
		if original.Status == domain.OrderStatusCancelled {
			return fmt.Errorf("%w: original order %s was cancelled and its stock already returned", store.ErrConflict, original.Number)
		}

		led := newLedger(tx, companyID, actor, now)
		if err := compensate(ctx, led, *ret, domain.RefReturnOrder); err != nil {
			return err
		}
		ret.RestockedAt = &now
		ret.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, *ret); err != nil {
			return err
		}
		result.Order = *ret
		result.Movements = led.movements
		return nil
	})
	if err != nil {
		return domain.OrderResult{}, err
	}

	result.EffectiveStatus = result.Order.EffectiveStatus(now, s.graceWindow)
	result.Effects = s.postCommit(ctx, companyID, actor, "return_restock", "order", result.Order.ID, "number="+result.Order.Number, result.Movements)
	return result, nil
}
