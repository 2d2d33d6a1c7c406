package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
	"pasarhub/backend/internal/xid"
)

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.SupplierResult, error) {
	companyID, actor, err := s.scope(ctx, managerRoles...)
	if err != nil {
		return domain.SupplierResult{}, err
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return domain.SupplierResult{}, fmt.Errorf("%w: code and name are required", store.ErrInvalidInput)
	}

	supplier := domain.Supplier{
		ID:        xid.New("sup"),
		CompanyID: companyID,
		Code:      code,
		Name:      name,
		Contact:   strings.TrimSpace(req.Contact),
		CreatedAt: s.now(),
	}
	if err := s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateSupplier(ctx, supplier)
	}); err != nil {
		return domain.SupplierResult{}, err
	}

	var effects []domain.Effect
	if len(req.BankAccounts) > 0 {
		effects = append(effects, s.runEffect(ctx, "supplier_bank_accounts", func(ctx context.Context) error {
			return s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
				for _, account := range req.BankAccounts {
					err := tx.CreateSupplierBankAccount(ctx, domain.SupplierBankAccount{
						ID:            xid.New("sba"),
						CompanyID:     companyID,
						SupplierID:    supplier.ID,
						BankName:      strings.TrimSpace(account.BankName),
						AccountNumber: strings.TrimSpace(account.AccountNumber),
						AccountHolder: strings.TrimSpace(account.AccountHolder),
						CreatedAt:     supplier.CreatedAt,
					})
					if err != nil {
						return err
					}
				}
				return nil
			})
		}))
	}
	effects = append(effects, s.audit(ctx, companyID, actor, "supplier_create", "supplier", supplier.ID, "code="+code))
	return domain.SupplierResult{Supplier: supplier, Effects: effects}, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	companyID, _, err := s.scope(ctx, staffRoles...)
	if err != nil {
		return nil, err
	}
	var suppliers []domain.Supplier
	err = s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		suppliers, err = tx.ListSuppliers(ctx, companyID)
		return err
	})
	return suppliers, err
}

func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (domain.PurchaseOrder, error) {
	companyID, actor, err := s.scope(ctx, staffRoles...)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	supplierID := strings.TrimSpace(req.SupplierID)
	warehouseID := strings.TrimSpace(req.WarehouseID)
	if supplierID == "" || warehouseID == "" {
		return domain.PurchaseOrder{}, fmt.Errorf("%w: supplier_id and warehouse_id are required", store.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return domain.PurchaseOrder{}, fmt.Errorf("%w: at least one item is required", store.ErrInvalidInput)
	}

	po := domain.PurchaseOrder{
		ID:          xid.New("po"),
		CompanyID:   companyID,
		SupplierID:  supplierID,
		WarehouseID: warehouseID,
		Notes:       strings.TrimSpace(req.Notes),
		Status:      domain.POStatusPending,
		TotalAmount: decimal.Zero,
		CreatedBy:   actor.Username,
		CreatedAt:   s.now(),
	}
	po.Number = xid.Number("PO", po.ID)
	po.UpdatedAt = po.CreatedAt

	seen := make(map[domain.LineKey]bool, len(req.Items))
	productIDs := make([]string, 0, len(req.Items))
	for i, line := range req.Items {
		key := domain.LineKey{ProductID: strings.TrimSpace(line.ProductID), VariantID: strings.TrimSpace(line.VariantID)}
		switch {
		case key.ProductID == "":
			return domain.PurchaseOrder{}, fmt.Errorf("%w: line %d: product_id is required", store.ErrInvalidInput, i+1)
		case line.Quantity <= 0:
			return domain.PurchaseOrder{}, fmt.Errorf("%w: line %d: quantity must be positive", store.ErrInvalidInput, i+1)
		case line.UnitPrice.IsNegative():
			return domain.PurchaseOrder{}, fmt.Errorf("%w: line %d: unit price must not be negative", store.ErrInvalidInput, i+1)
		case seen[key]:
			return domain.PurchaseOrder{}, fmt.Errorf("%w: line %d: duplicate product %s%s", store.ErrInvalidInput, i+1, key.ProductID, variantSuffix(key.VariantID))
		}
		seen[key] = true
		productIDs = append(productIDs, key.ProductID)
		po.Items = append(po.Items, domain.PurchaseOrderItem{
			ID:              xid.New("poi"),
			PurchaseOrderID: po.ID,
			ProductID:       key.ProductID,
			VariantID:       key.VariantID,
			OrderedQty:      line.Quantity,
			UnitPrice:       line.UnitPrice,
		})
		po.TotalAmount = po.TotalAmount.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetSupplier(ctx, companyID, supplierID); err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: supplier %s not found", store.ErrNotFound, supplierID)
			}
			return err
		}
		if _, err := ensureWarehouse(ctx, tx, companyID, warehouseID); err != nil {
			return err
		}
		if _, err := loadProducts(ctx, tx, companyID, productIDs); err != nil {
			return err
		}
		return tx.CreatePurchaseOrder(ctx, po)
	})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	s.audit(ctx, companyID, actor, "purchase_order_create", "purchase_order", po.ID,
		fmt.Sprintf("number=%s,total=%s,lines=%d", po.Number, po.TotalAmount.StringFixed(2), len(po.Items)))
	return po, nil
}

// UpdatePurchaseOrderStatus applies a manual transition. Receipt statuses are
// owned by goods receipts and cannot be requested here.
func (s *Service) UpdatePurchaseOrderStatus(ctx context.Context, id string, status domain.PurchaseOrderStatus) (domain.PurchaseOrder, error) {
	companyID, actor, err := s.scope(ctx, managerRoles...)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	switch status {
	case domain.POStatusApproved, domain.POStatusOrdered, domain.POStatusCancelled:
	case domain.POStatusPartiallyReceived, domain.POStatusReceived:
		return domain.PurchaseOrder{}, fmt.Errorf("%w: status %s is set by goods receipts", store.ErrInvalidInput, status)
	default:
		return domain.PurchaseOrder{}, fmt.Errorf("%w: unknown purchase order status %q", store.ErrInvalidInput, status)
	}

	var updated domain.PurchaseOrder
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		po, err := tx.GetPurchaseOrderForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if po.Status == domain.POStatusReceived {
			return fmt.Errorf("%w: purchase order %s is fully received", store.ErrConflict, po.Number)
		}
		if status == domain.POStatusCancelled {
			for _, item := range po.Items {
				if item.ReceivedQty > 0 {
					return fmt.Errorf("%w: purchase order %s has received goods", store.ErrConflict, po.Number)
				}
			}
		}
		if !domain.CanTransitionPurchaseOrder(po.Status, status) {
			return fmt.Errorf("%w: cannot move purchase order from %s to %s", store.ErrConflict, po.Status, status)
		}
		po.Status = status
		po.UpdatedAt = s.now()
		if err := tx.UpdatePurchaseOrder(ctx, *po); err != nil {
			return err
		}
		updated = *po
		return nil
	})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	s.audit(ctx, companyID, actor, "purchase_order_status", "purchase_order", updated.ID, "status="+string(status))
	return updated, nil
}

// GetPurchaseOrder assembles the order with its receipts and invoices.
func (s *Service) GetPurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrderDetail, error) {
	companyID, _, err := s.scope(ctx, staffRoles...)
	if err != nil {
		return domain.PurchaseOrderDetail{}, err
	}

	var (
		detail   domain.PurchaseOrderDetail
		receipts []domain.GoodsReceipt
		invoices []domain.PurchaseInvoice
	)
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.repo.View(gctx, func(ctx context.Context, tx store.Tx) error {
			po, err := tx.GetPurchaseOrder(ctx, companyID, id)
			if err != nil {
				return err
			}
			detail.PurchaseOrder = *po
			return nil
		})
	})
	group.Go(func() error {
		return s.repo.View(gctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			receipts, err = tx.ListGoodsReceipts(ctx, companyID, id, 0)
			return err
		})
	})
	group.Go(func() error {
		return s.repo.View(gctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			invoices, err = tx.ListPurchaseInvoices(ctx, companyID, domain.InvoiceFilter{PurchaseOrderID: id})
			return err
		})
	})
	if err := group.Wait(); err != nil {
		return domain.PurchaseOrderDetail{}, err
	}

	now := s.now()
	for i := range invoices {
		invoices[i].Status = invoices[i].EffectiveStatus(now)
	}
	detail.GoodsReceipts = receipts
	detail.Invoices = invoices
	return detail, nil
}

func (s *Service) ListPurchaseOrders(ctx context.Context, status domain.PurchaseOrderStatus, limit int) ([]domain.PurchaseOrder, error) {
	companyID, _, err := s.scope(ctx, staffRoles...)
	if err != nil {
		return nil, err
	}
	var orders []domain.PurchaseOrder
	err = s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		orders, err = tx.ListPurchaseOrders(ctx, companyID, status, clampLimit(limit))
		return err
	})
	return orders, err
}

// CreateGoodsReceipt records delivered quantities against a purchase order.
// The order's received quantities move in the same unit of work; stock does
// not move until the receipt is completed.
func (s *Service) CreateGoodsReceipt(ctx context.Context, req domain.GoodsReceiptCreateRequest) (domain.GoodsReceiptResult, error) {
	companyID, actor, err := s.scope(ctx, staffRoles...)
	if err != nil {
		return domain.GoodsReceiptResult{}, err
	}
	if strings.TrimSpace(req.PurchaseOrderID) == "" {
		return domain.GoodsReceiptResult{}, fmt.Errorf("%w: purchase_order_id is required", store.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return domain.GoodsReceiptResult{}, fmt.Errorf("%w: at least one item is required", store.ErrInvalidInput)
	}

	var result domain.GoodsReceiptResult
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		po, err := tx.GetPurchaseOrderForUpdate(ctx, companyID, strings.TrimSpace(req.PurchaseOrderID))
		if err != nil {
			return err
		}
		if !po.Receivable() {
			return fmt.Errorf("%w: purchase order %s is %s", store.ErrConflict, po.Number, po.Status)
		}

		warehouseID := defaultString(strings.TrimSpace(req.WarehouseID), po.WarehouseID)
		if err := requireWarehouse(actor, warehouseID); err != nil {
			return err
		}
		if _, err := ensureWarehouse(ctx, tx, companyID, warehouseID); err != nil {
			return err
		}

		now := s.now()
		grn := domain.GoodsReceipt{
			ID:              xid.New("grn"),
			CompanyID:       companyID,
			PurchaseOrderID: po.ID,
			WarehouseID:     warehouseID,
			Status:          domain.GRNStatusPending,
			Notes:           strings.TrimSpace(req.Notes),
			ReceivedBy:      actor.Username,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		grn.Number = xid.Number("GRN", grn.ID)

		requested := make(map[int]int, len(req.Items))
		for i, line := range req.Items {
			idx := matchPurchaseOrderItem(po.Items, line)
			if idx < 0 {
				return fmt.Errorf("%w: line %d: item is not on purchase order %s", store.ErrInvalidInput, i+1, po.Number)
			}
			if line.Quantity <= 0 {
				return fmt.Errorf("%w: line %d: quantity must be positive", store.ErrInvalidInput, i+1)
			}
			requested[idx] += line.Quantity
			item := po.Items[idx]
			if requested[idx] > item.OutstandingQty() {
				return fmt.Errorf("%w: line %d: quantity %d exceeds outstanding %d for product %s%s",
					store.ErrConflict, i+1, requested[idx], item.OutstandingQty(), item.ProductID, variantSuffix(item.VariantID))
			}
			grn.Items = append(grn.Items, domain.GoodsReceiptItem{
				ID:                  xid.New("grni"),
				GoodsReceiptID:      grn.ID,
				PurchaseOrderItemID: item.ID,
				ProductID:           item.ProductID,
				VariantID:           item.VariantID,
				Quantity:            line.Quantity,
				UnitPrice:           item.UnitPrice,
			})
		}

		for idx, qty := range requested {
			po.Items[idx].ReceivedQty += qty
		}
		po.Status = po.ReceiptStatus()
		po.UpdatedAt = now
		if err := tx.UpdatePurchaseOrder(ctx, *po); err != nil {
			return err
		}
		if err := tx.CreateGoodsReceipt(ctx, grn); err != nil {
			return err
		}
		result.GoodsReceipt = grn
		result.PurchaseOrder = po
		return nil
	})
	if err != nil {
		return domain.GoodsReceiptResult{}, err
	}

	result.Effects = []domain.Effect{s.audit(ctx, companyID, actor, "goods_receipt_create", "goods_receipt", result.GoodsReceipt.ID,
		fmt.Sprintf("number=%s,po=%s,po_status=%s", result.GoodsReceipt.Number, result.PurchaseOrder.Number, result.PurchaseOrder.Status))}
	return result, nil
}

func matchPurchaseOrderItem(items []domain.PurchaseOrderItem, line domain.GoodsReceiptLineInput) int {
	itemID := strings.TrimSpace(line.PurchaseOrderItemID)
	productID := strings.TrimSpace(line.ProductID)
	variantID := strings.TrimSpace(line.VariantID)
	return slices.IndexFunc(items, func(item domain.PurchaseOrderItem) bool {
		if itemID != "" {
			return item.ID == itemID
		}
		return productID != "" && item.ProductID == productID && item.VariantID == variantID
	})
}

// UpdateGoodsReceiptStatus moves a receipt through inspection. Rejection hands
// the receipt's quantities back to its purchase order.
func (s *Service) UpdateGoodsReceiptStatus(ctx context.Context, id string, status domain.GoodsReceiptStatus) (domain.GoodsReceiptResult, error) {
	roles := staffRoles
	switch status {
	case domain.GRNStatusInspected:
	case domain.GRNStatusApproved, domain.GRNStatusRejected:
		roles = managerRoles
	case domain.GRNStatusCompleted:
		return domain.GoodsReceiptResult{}, fmt.Errorf("%w: use the complete operation to complete a goods receipt", store.ErrInvalidInput)
	default:
		return domain.GoodsReceiptResult{}, fmt.Errorf("%w: unknown goods receipt status %q", store.ErrInvalidInput, status)
	}
	companyID, actor, err := s.scope(ctx, roles...)
	if err != nil {
		return domain.GoodsReceiptResult{}, err
	}

	var result domain.GoodsReceiptResult
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		grn, err := tx.GetGoodsReceiptForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		switch grn.Status {
		case domain.GRNStatusCompleted:
			return fmt.Errorf("%w: goods receipt already completed", store.ErrConflict)
		case domain.GRNStatusRejected:
			return fmt.Errorf("%w: goods receipt is rejected", store.ErrConflict)
		}
		if !domain.CanTransitionGoodsReceipt(grn.Status, status) {
			return fmt.Errorf("%w: cannot move goods receipt from %s to %s", store.ErrConflict, grn.Status, status)
		}

		now := s.now()
		if status == domain.GRNStatusRejected {
			po, err := tx.GetPurchaseOrderForUpdate(ctx, companyID, grn.PurchaseOrderID)
			if err != nil {
				return err
			}
			for _, line := range grn.Items {
				idx := slices.IndexFunc(po.Items, func(item domain.PurchaseOrderItem) bool { return item.ID == line.PurchaseOrderItemID })
				if idx < 0 {
					return fmt.Errorf("%w: purchase order item %s missing", store.ErrConflict, line.PurchaseOrderItemID)
				}
				po.Items[idx].ReceivedQty = max(po.Items[idx].ReceivedQty-line.Quantity, 0)
			}
			po.Status = po.ReceiptStatus()
			po.UpdatedAt = now
			if err := tx.UpdatePurchaseOrder(ctx, *po); err != nil {
				return err
			}
			result.PurchaseOrder = po
		}

		grn.Status = status
		grn.UpdatedAt = now
		if err := tx.UpdateGoodsReceipt(ctx, *grn); err != nil {
			return err
		}
		result.GoodsReceipt = *grn
		return nil
	})
	if err != nil {
		return domain.GoodsReceiptResult{}, err
	}

	result.Effects = []domain.Effect{s.audit(ctx, companyID, actor, "goods_receipt_status", "goods_receipt", result.GoodsReceipt.ID, "status="+string(status))}
	return result, nil
}

// CompleteGoodsReceipt books the receipt into stock. It succeeds at most once
// per receipt.
func (s *Service) CompleteGoodsReceipt(ctx context.Context, id string) (domain.GoodsReceiptResult, error) {
	companyID, actor, err := s.scope(ctx, staffRoles...)
	if err != nil {
		return domain.GoodsReceiptResult{}, err
	}

	var result domain.GoodsReceiptResult
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		grn, err := tx.GetGoodsReceiptForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		switch {
		case grn.Status == domain.GRNStatusCompleted:
			return fmt.Errorf("%w: goods receipt already completed", store.ErrConflict)
		case grn.Status == domain.GRNStatusRejected:
			return fmt.Errorf("%w: rejected goods receipt cannot be completed", store.ErrConflict)
		case !grn.Completable():
			return fmt.Errorf("%w: goods receipt is %s", store.ErrConflict, grn.Status)
		}
		if err := requireWarehouse(actor, grn.WarehouseID); err != nil {
			return err
		}

		now := s.now()
		led := newLedger(tx, companyID, actor, now)
		for i, line := range grn.Items {
			_, err := led.apply(ctx, entry{
				key:           domain.StockKey{WarehouseID: grn.WarehouseID, ProductID: line.ProductID, VariantID: line.VariantID},
				movementType:  domain.MovementReceipt,
				quantity:      line.Quantity,
				referenceType: domain.RefGoodsReceipt,
				referenceID:   grn.ID,
				reason:        grn.Number,
			})
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
		}

		grn.Status = domain.GRNStatusCompleted
		grn.UpdatedAt = now
		grn.CompletedAt = &now
		if err := tx.UpdateGoodsReceipt(ctx, *grn); err != nil {
			return err
		}
		result.GoodsReceipt = *grn
		result.Movements = led.movements
		return nil
	})
	if err != nil {
		return domain.GoodsReceiptResult{}, err
	}

	result.Effects = s.postCommit(ctx, companyID, actor, "goods_receipt_complete", "goods_receipt", result.GoodsReceipt.ID,
		fmt.Sprintf("number=%s,lines=%d", result.GoodsReceipt.Number, len(result.GoodsReceipt.Items)), result.Movements)
	return result, nil
}

func (s *Service) GetGoodsReceipt(ctx context.Context, id string) (domain.GoodsReceipt, error) {
	companyID, _, err := s.scope(ctx, staffRoles...)
	if err != nil {
		return domain.GoodsReceipt{}, err
	}
	var grn *domain.GoodsReceipt
	err = s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		grn, err = tx.GetGoodsReceipt(ctx, companyID, id)
		return err
	})
	if err != nil {
		return domain.GoodsReceipt{}, err
	}
	return *grn, nil
}

func (s *Service) ListGoodsReceipts(ctx context.Context, purchaseOrderID string, limit int) ([]domain.GoodsReceipt, error) {
	companyID, _, err := s.scope(ctx, staffRoles...)
	if err != nil {
		return nil, err
	}
	var receipts []domain.GoodsReceipt
	err = s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		receipts, err = tx.ListGoodsReceipts(ctx, companyID, strings.TrimSpace(purchaseOrderID), clampLimit(limit))
		return err
	})
	return receipts, err
}
