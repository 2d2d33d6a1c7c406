package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/payment"
	"pasarhub/backend/internal/store"
	"pasarhub/backend/internal/xid"
)

func (s *Service) CreatePaymentIntent(ctx context.Context, req domain.PaymentIntentRequest) (payment.Intent, error) {
	companyID, _, err := s.scope(ctx)
	if err != nil {
		return payment.Intent{}, err
	}
	if !req.Amount.IsPositive() {
		return payment.Intent{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.currency
	}
	return s.payments.CreateIntent(ctx, companyID, req.Amount, currency)
}

// ConfirmPaymentIntent feeds the processor's success signal back for gateways
// that accept it in-band.
func (s *Service) ConfirmPaymentIntent(ctx context.Context, id string) (payment.Intent, error) {
	companyID, _, err := s.scope(ctx)
	if err != nil {
		return payment.Intent{}, err
	}
	confirmer, ok := s.payments.(payment.Confirmer)
	if !ok {
		return payment.Intent{}, fmt.Errorf("%w: payment gateway confirms intents out of band", store.ErrConflict)
	}
	intent, err := confirmer.MarkSucceeded(ctx, companyID, strings.TrimSpace(id))
	if errors.Is(err, payment.ErrIntentNotFound) {
		return payment.Intent{}, fmt.Errorf("%w: payment intent %s not found", store.ErrNotFound, id)
	}
	return intent, err
}

// PlaceOrder creates a sales order and takes its stock in the same unit of
// work. Ecommerce orders must carry a succeeded payment for the exact total.
func (s *Service) PlaceOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.OrderResult, error) {
	companyID, actor, err := s.scope(ctx)
	if err != nil {
		return domain.OrderResult{}, err
	}

	switch req.OrderType {
	case "", domain.OrderTypeSales:
	default:
		return domain.OrderResult{}, fmt.Errorf("%w: only sales orders can be placed, got %q", store.ErrInvalidInput, req.OrderType)
	}
	source := req.OrderSource
	customerID := strings.TrimSpace(req.CustomerID)
	if actor.Role == domain.RoleCustomer {
		if source != "" && source != domain.OrderSourceEcommerce {
			return domain.OrderResult{}, fmt.Errorf("%w: customers can only place ecommerce orders", store.ErrForbidden)
		}
		source = domain.OrderSourceEcommerce
		customerID = actor.UserID
	}
	if source == "" {
		source = domain.OrderSourcePOS
	}
	if !source.Valid() {
		return domain.OrderResult{}, fmt.Errorf("%w: unknown order source %q", store.ErrInvalidInput, source)
	}

	warehouseID := strings.TrimSpace(req.WarehouseID)
	if warehouseID == "" {
		return domain.OrderResult{}, fmt.Errorf("%w: warehouse_id is required", store.ErrInvalidInput)
	}
	if err := requireWarehouse(actor, warehouseID); err != nil {
		return domain.OrderResult{}, err
	}
	lines, productIDs, err := normalizeOrderLines(req.Items)
	if err != nil {
		return domain.OrderResult{}, err
	}

	var intent payment.Intent
	intentID := strings.TrimSpace(req.PaymentIntentID)
	if source == domain.OrderSourceEcommerce {
		if intentID == "" {
			return domain.OrderResult{}, fmt.Errorf("%w: ecommerce orders require payment_intent_id", store.ErrInvalidInput)
		}
		intent, err = s.payments.GetIntent(ctx, companyID, intentID)
		if errors.Is(err, payment.ErrIntentNotFound) {
			return domain.OrderResult{}, fmt.Errorf("%w: payment intent %s not found", store.ErrNotFound, intentID)
		}
		if err != nil {
			return domain.OrderResult{}, err
		}
		if !intent.Succeeded() {
			return domain.OrderResult{}, fmt.Errorf("%w: payment intent %s has not succeeded", store.ErrConflict, intentID)
		}
	} else {
		intentID = ""
	}

	now := s.now()
	order := domain.Order{
		ID:              xid.New("ord"),
		CompanyID:       companyID,
		OrderType:       domain.OrderTypeSales,
		OrderSource:     source,
		Status:          domain.OrderStatusPending,
		WarehouseID:     warehouseID,
		CustomerID:      customerID,
		PaymentIntentID: intentID,
		TotalAmount:     decimal.Zero,
		CreatedBy:       actor.Username,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.Number = xid.Number("SO", order.ID)

	var movements []domain.StockMovement
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		order.Items = order.Items[:0]
		order.TotalAmount = decimal.Zero
		if _, err := ensureWarehouse(ctx, tx, companyID, warehouseID); err != nil {
			return err
		}
		products, err := loadProducts(ctx, tx, companyID, productIDs)
		if err != nil {
			return err
		}
		for _, line := range lines {
			product := products[line.ProductID]
			if !product.Active {
				return fmt.Errorf("%w: product %s is inactive", store.ErrConflict, product.SKU)
			}
			item := domain.NewOrderItem(line.ProductID, line.VariantID, line.Quantity, product.UnitPrice)
			item.ID = xid.New("oi")
			item.OrderID = order.ID
			order.Items = append(order.Items, item)
			order.TotalAmount = order.TotalAmount.Add(item.Subtotal)
		}

		if intentID != "" {
			if !intent.Amount.Equal(order.TotalAmount) {
				return fmt.Errorf("%w: payment intent amount %s does not match order total %s",
					store.ErrConflict, intent.Amount.StringFixed(2), order.TotalAmount.StringFixed(2))
			}
			used, err := tx.ListOrders(ctx, companyID, domain.OrderFilter{PaymentIntentID: intentID, Limit: 1})
			if err != nil {
				return err
			}
			if len(used) > 0 {
				return fmt.Errorf("%w: payment intent %s is already used by order %s", store.ErrConflict, intentID, used[0].Number)
			}
		}

		led := newLedger(tx, companyID, actor, now)
		for i, item := range order.Items {
			_, err := led.apply(ctx, entry{
				key:           domain.StockKey{WarehouseID: warehouseID, ProductID: item.ProductID, VariantID: item.VariantID},
				movementType:  domain.MovementSale,
				quantity:      -item.Quantity,
				referenceType: domain.RefOrder,
				referenceID:   order.ID,
				reason:        order.Number,
			})
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		movements = led.movements
		return nil
	})
	if err != nil {
		return domain.OrderResult{}, err
	}

	effects := s.postCommit(ctx, companyID, actor, "order_place", "order", order.ID,
		fmt.Sprintf("number=%s,source=%s,total=%s", order.Number, order.OrderSource, order.TotalAmount.StringFixed(2)), movements)
	return domain.OrderResult{
		Order:           order,
		EffectiveStatus: order.EffectiveStatus(now, s.graceWindow),
		Movements:       movements,
		Effects:         effects,
	}, nil
}

func normalizeOrderLines(items []domain.OrderLineInput) ([]domain.OrderLineInput, []string, error) {
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one item is required", store.ErrInvalidInput)
	}
	lines := make([]domain.OrderLineInput, 0, len(items))
	productIDs := make([]string, 0, len(items))
	seen := make(map[domain.LineKey]bool, len(items))
	for i, item := range items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		item.VariantID = strings.TrimSpace(item.VariantID)
		key := domain.LineKey{ProductID: item.ProductID, VariantID: item.VariantID}
		switch {
		case item.ProductID == "":
			return nil, nil, fmt.Errorf("%w: line %d: product_id is required", store.ErrInvalidInput, i+1)
		case item.Quantity <= 0:
			return nil, nil, fmt.Errorf("%w: line %d: quantity must be positive", store.ErrInvalidInput, i+1)
		case seen[key]:
			return nil, nil, fmt.Errorf("%w: line %d: duplicate product %s%s", store.ErrInvalidInput, i+1, item.ProductID, variantSuffix(item.VariantID))
		}
		seen[key] = true
		lines = append(lines, item)
		productIDs = append(productIDs, item.ProductID)
	}
	return lines, productIDs, nil
}

// compensate puts a sales order's quantities back into its warehouse.
func compensate(ctx context.Context, led *ledger, order domain.Order, referenceType string) error {
	for i, item := range order.Items {
		_, err := led.apply(ctx, entry{
			key:           domain.StockKey{WarehouseID: order.WarehouseID, ProductID: item.ProductID, VariantID: item.VariantID},
			movementType:  domain.MovementReturn,
			quantity:      item.Quantity,
			referenceType: referenceType,
			referenceID:   order.ID,
			reason:        order.Number,
		})
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

// refuseIfReturned blocks cancelling a sale that already has return orders,
// since those units are credited through the return.
func refuseIfReturned(ctx context.Context, tx store.Tx, companyID string, order domain.Order) error {
	returns, err := tx.ListOrders(ctx, companyID, domain.OrderFilter{
		OrderType:       domain.OrderTypeReturn,
		OriginalOrderID: order.ID,
		Limit:           1,
	})
	if err != nil {
		return err
	}
	if len(returns) > 0 {
		return fmt.Errorf("%w: order %s has return orders and cannot be cancelled", store.ErrConflict, order.Number)
	}
	return nil
}

// CancelOrder is the self-service cancellation. It only works inside the
// grace window and returns the order's stock.
func (s *Service) CancelOrder(ctx context.Context, id string) (domain.OrderResult, error) {
	companyID, actor, err := s.scope(ctx)
	if err != nil {
		return domain.OrderResult{}, err
	}

	var (
		result domain.OrderResult
		now    = s.now()
	)
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if actor.Role == domain.RoleCustomer && order.CustomerID != actor.UserID {
			return fmt.Errorf("%w: customers can only cancel their own orders", store.ErrForbidden)
		}
		if order.OrderType != domain.OrderTypeSales {
			return fmt.Errorf("%w: only sales orders can be cancelled", store.ErrConflict)
		}
		if order.Status == domain.OrderStatusCancelled {
			return fmt.Errorf("%w: order %s is already cancelled", store.ErrConflict, order.Number)
		}
		switch status := order.EffectiveStatus(now, s.graceWindow); status {
		case domain.OrderStatusPending, domain.OrderStatusProcessing:
		default:
			return fmt.Errorf("%w: order %s is %s", store.ErrConflict, order.Number, status)
		}
		if !order.WithinGraceWindow(now, s.graceWindow) {
			return fmt.Errorf("%w: the %s cancellation window for order %s has passed", store.ErrConflict, s.graceWindow, order.Number)
		}
		if err := refuseIfReturned(ctx, tx, companyID, *order); err != nil {
			return err
		}

		led := newLedger(tx, companyID, actor, now)
		if err := compensate(ctx, led, *order, domain.RefOrderCancel); err != nil {
			return err
		}
		order.Status = domain.OrderStatusCancelled
		order.CancelledAt = &now
		order.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, *order); err != nil {
			return err
		}
		result.Order = *order
		result.Movements = led.movements
		return nil
	})
	if err != nil {
		return domain.OrderResult{}, err
	}

	result.EffectiveStatus = result.Order.Status
	result.Effects = s.postCommit(ctx, companyID, actor, "order_cancel", "order", result.Order.ID, "number="+result.Order.Number, result.Movements)
	return result, nil
}

// UpdateOrderStatus is the staff path through the order lifecycle. It works
// from the effective status, so a stale pending order is treated as
// processing. Cancelling here also returns stock, regardless of the window.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.OrderResult, error) {
	companyID, actor, err := s.scope(ctx, staffRoles...)
	if err != nil {
		return domain.OrderResult{}, err
	}
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusShipped,
		domain.OrderStatusDelivered, domain.OrderStatusCancelled:
	default:
		return domain.OrderResult{}, fmt.Errorf("%w: unknown order status %q", store.ErrInvalidInput, status)
	}

	var (
		result domain.OrderResult
		now    = s.now()
	)
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if order.OrderType != domain.OrderTypeSales {
			return fmt.Errorf("%w: only sales orders follow the order lifecycle", store.ErrConflict)
		}
		if err := requireWarehouse(actor, order.WarehouseID); err != nil {
			return err
		}
		current := order.EffectiveStatus(now, s.graceWindow)
		if current == status {
			return fmt.Errorf("%w: order %s is already %s", store.ErrConflict, order.Number, status)
		}
		if !domain.CanTransitionOrder(current, status) {
			return fmt.Errorf("%w: cannot move order from %s to %s", store.ErrConflict, current, status)
		}

		led := newLedger(tx, companyID, actor, now)
		if status == domain.OrderStatusCancelled {
			if err := refuseIfReturned(ctx, tx, companyID, *order); err != nil {
				return err
			}
			if err := compensate(ctx, led, *order, domain.RefOrderCancel); err != nil {
				return err
			}
			order.CancelledAt = &now
		}
		order.Status = status
		order.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, *order); err != nil {
			return err
		}
		result.Order = *order
		result.Movements = led.movements
		return nil
	})
	if err != nil {
		return domain.OrderResult{}, err
	}

	result.EffectiveStatus = result.Order.EffectiveStatus(now, s.graceWindow)
	result.Effects = s.postCommit(ctx, companyID, actor, "order_status", "order", result.Order.ID,
		fmt.Sprintf("number=%s,status=%s", result.Order.Number, status), result.Movements)
	return result, nil
}

// GetOrder returns the order with its effective status. Sales orders also
// carry their returns and what is still returnable.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.OrderDetail, error) {
	companyID, actor, err := s.scope(ctx)
	if err != nil {
		return domain.OrderDetail{}, err
	}

	var (
		order   domain.Order
		returns []domain.Order
	)
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.repo.View(gctx, func(ctx context.Context, tx store.Tx) error {
			found, err := tx.GetOrder(ctx, companyID, id)
			if err != nil {
				return err
			}
			order = *found
			return nil
		})
	})
	group.Go(func() error {
		return s.repo.View(gctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			returns, err = tx.ListOrders(ctx, companyID, domain.OrderFilter{OrderType: domain.OrderTypeReturn, OriginalOrderID: id})
			return err
		})
	})
	if err := group.Wait(); err != nil {
		return domain.OrderDetail{}, err
	}
	if actor.Role == domain.RoleCustomer && order.CustomerID != actor.UserID {
		return domain.OrderDetail{}, fmt.Errorf("%w: order %s not found", store.ErrNotFound, id)
	}

	now := s.now()
	detail := domain.OrderDetail{
		Order:           order,
		EffectiveStatus: order.EffectiveStatus(now, s.graceWindow),
	}
	if order.OrderType == domain.OrderTypeSales {
		detail.Cancellable = (detail.EffectiveStatus == domain.OrderStatusPending || detail.EffectiveStatus == domain.OrderStatusProcessing) &&
			order.WithinGraceWindow(now, s.graceWindow)
		detail.Returns = returns
		detail.Returnable = domain.ComputeReturnable(order, returns)
	}
	return detail, nil
}

// ListOrders reports effective statuses. Pending and processing filters are
// applied after the read because the promotion is never stored.
func (s *Service) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	companyID, actor, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleCustomer {
		filter.CustomerID = actor.UserID
	}
	switch filter.OrderType {
	case "", domain.OrderTypeSales, domain.OrderTypePurchase, domain.OrderTypeReturn:
	default:
		return nil, fmt.Errorf("%w: unknown order type %q", store.ErrInvalidInput, filter.OrderType)
	}

	wanted := filter.Status
	limit := clampLimit(filter.Limit)
	filter.Limit = limit
	if wanted == domain.OrderStatusPending || wanted == domain.OrderStatusProcessing {
		filter.Status = ""
		filter.Limit = 0
	}

	var orders []domain.Order
	err = s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		orders, err = tx.ListOrders(ctx, companyID, filter)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := orders[:0]
	for _, order := range orders {
		order.Status = order.EffectiveStatus(now, s.graceWindow)
		if wanted != "" && order.Status != wanted {
			continue
		}
		out = append(out, order)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
