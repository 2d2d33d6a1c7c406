package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
	"pasarhub/backend/internal/xid"
)

// AdjustStock sets the system count to a physically counted quantity. A zero
// difference writes nothing.
func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustRequest) (domain.StockAdjustResult, error) {
	companyID, actor, err := s.scope(ctx, staffRoles...)
	if err != nil {
		return domain.StockAdjustResult{}, err
	}
	key := domain.StockKey{
		WarehouseID: strings.TrimSpace(req.WarehouseID),
		ProductID:   strings.TrimSpace(req.ProductID),
		VariantID:   strings.TrimSpace(req.VariantID),
	}
	if key.WarehouseID == "" || key.ProductID == "" {
		return domain.StockAdjustResult{}, fmt.Errorf("%w: warehouse_id and product_id are required", store.ErrInvalidInput)
	}
	if req.PhysicalQuantity < 0 {
		return domain.StockAdjustResult{}, fmt.Errorf("%w: physical_quantity must not be negative", store.ErrInvalidInput)
	}
	if err := requireWarehouse(actor, key.WarehouseID); err != nil {
		return domain.StockAdjustResult{}, err
	}

	adjustmentID := xid.New("adj")
	var (
		result    domain.StockAdjustResult
		movements []domain.StockMovement
	)
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		movements = nil
		if _, err := ensureWarehouse(ctx, tx, companyID, key.WarehouseID); err != nil {
			return err
		}
		if _, err := loadProducts(ctx, tx, companyID, []string{key.ProductID}); err != nil {
			return err
		}

		led := newLedger(tx, companyID, actor, s.now())
		current, err := led.stockOf(ctx, key)
		if err != nil {
			return err
		}
		result.Difference = req.PhysicalQuantity - current.StockCount
		if result.Difference == 0 {
			result.Inventory = current
			return nil
		}

		movementType := domain.MovementAdjustmentIn
		if result.Difference < 0 {
			movementType = domain.MovementAdjustmentOut
		}
		inv, err := led.apply(ctx, entry{
			key:           key,
			movementType:  movementType,
			quantity:      result.Difference,
			referenceType: domain.RefAdjustment,
			referenceID:   adjustmentID,
			reason:        strings.TrimSpace(req.Reason),
		})
		if err != nil {
			return err
		}
		result.Inventory = inv
		movements = led.movements
		return nil
	})
	if err != nil {
		return domain.StockAdjustResult{}, err
	}
	if len(movements) == 0 {
		return result, nil
	}

	result.Movement = &movements[0]
	result.Effects = s.postCommit(ctx, companyID, actor, "stock_adjust", "inventory", adjustmentID,
		fmt.Sprintf("warehouse=%s,product=%s%s,difference=%d", key.WarehouseID, key.ProductID, variantSuffix(key.VariantID), result.Difference), movements)
	return result, nil
}

// TransferStock moves every line or none of them. All movements of one
// transfer share a correlation id.
func (s *Service) TransferStock(ctx context.Context, req domain.StockTransferRequest) (domain.StockTransferResult, error) {
	companyID, actor, err := s.scope(ctx, staffRoles...)
	if err != nil {
		return domain.StockTransferResult{}, err
	}
	source := strings.TrimSpace(req.SourceWarehouseID)
	destination := strings.TrimSpace(req.DestinationWarehouseID)
	switch {
	case source == "" || destination == "":
		return domain.StockTransferResult{}, fmt.Errorf("%w: source and destination warehouses are required", store.ErrInvalidInput)
	case source == destination:
		return domain.StockTransferResult{}, fmt.Errorf("%w: source and destination must differ", store.ErrInvalidInput)
	case len(req.Items) == 0:
		return domain.StockTransferResult{}, fmt.Errorf("%w: at least one item is required", store.ErrInvalidInput)
	}
	if err := requireWarehouse(actor, source, destination); err != nil {
		return domain.StockTransferResult{}, err
	}

	seen := make(map[domain.LineKey]bool, len(req.Items))
	productIDs := make([]string, 0, len(req.Items))
	for i, item := range req.Items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		item.VariantID = strings.TrimSpace(item.VariantID)
		req.Items[i] = item
		key := domain.LineKey{ProductID: item.ProductID, VariantID: item.VariantID}
		switch {
		case item.ProductID == "":
			return domain.StockTransferResult{}, fmt.Errorf("%w: line %d: product_id is required", store.ErrInvalidInput, i+1)
		case item.Quantity <= 0:
			return domain.StockTransferResult{}, fmt.Errorf("%w: line %d: quantity must be positive", store.ErrInvalidInput, i+1)
		case seen[key]:
			return domain.StockTransferResult{}, fmt.Errorf("%w: line %d: duplicate product %s%s", store.ErrInvalidInput, i+1, item.ProductID, variantSuffix(item.VariantID))
		}
		seen[key] = true
		productIDs = append(productIDs, item.ProductID)
	}

	correlationID := xid.New("trf")
	reason := strings.TrimSpace(req.Reason)
	var movements []domain.StockMovement
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := ensureWarehouse(ctx, tx, companyID, source); err != nil {
			return err
		}
		if _, err := ensureWarehouse(ctx, tx, companyID, destination); err != nil {
			return err
		}
		if _, err := loadProducts(ctx, tx, companyID, productIDs); err != nil {
			return err
		}

		led := newLedger(tx, companyID, actor, s.now())
		for i, item := range req.Items {
			out := entry{
				key:           domain.StockKey{WarehouseID: source, ProductID: item.ProductID, VariantID: item.VariantID},
				movementType:  domain.MovementTransferOut,
				quantity:      -item.Quantity,
				referenceType: domain.RefTransfer,
				referenceID:   correlationID,
				correlationID: correlationID,
				reason:        reason,
			}
			if _, err := led.apply(ctx, out); err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			in := out
			in.key.WarehouseID = destination
			in.movementType = domain.MovementTransferIn
			in.quantity = item.Quantity
			if _, err := led.apply(ctx, in); err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
		}
		movements = led.movements
		return nil
	})
	if err != nil {
		return domain.StockTransferResult{}, err
	}

	effects := s.postCommit(ctx, companyID, actor, "stock_transfer", "transfer", correlationID,
		fmt.Sprintf("from=%s,to=%s,lines=%d", source, destination, len(req.Items)), movements)
	return domain.StockTransferResult{CorrelationID: correlationID, Movements: movements, Effects: effects}, nil
}

func (s *Service) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	companyID, actor, err := s.scope(ctx, staffRoles...)
	if err != nil {
		return nil, err
	}
	if filter.MovementType != "" && !filter.MovementType.Valid() {
		return nil, fmt.Errorf("%w: unknown movement type %q", store.ErrInvalidInput, filter.MovementType)
	}
	if filter.WarehouseID != "" {
		if err := requireWarehouse(actor, filter.WarehouseID); err != nil {
			return nil, err
		}
	}
	if len(actor.Warehouses) > 0 {
		filter.WarehouseIDs = actor.Warehouses
	}
	filter.Limit = clampLimit(filter.Limit)

	var movements []domain.StockMovement
	err = s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		movements, err = tx.ListStockMovements(ctx, companyID, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return movements, nil
}

func (s *Service) ListInventory(ctx context.Context, warehouseID string) ([]domain.WarehouseInventory, error) {
	companyID, actor, err := s.scope(ctx, staffRoles...)
	if err != nil {
		return nil, err
	}
	warehouseID = strings.TrimSpace(warehouseID)
	if warehouseID != "" {
		if err := requireWarehouse(actor, warehouseID); err != nil {
			return nil, err
		}
	}

	var rows []domain.WarehouseInventory
	err = s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		rows, err = tx.ListInventory(ctx, companyID, warehouseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if warehouseID == "" && len(actor.Warehouses) > 0 {
		scoped := rows[:0]
		for _, row := range rows {
			if actor.CanAccessWarehouse(row.WarehouseID) {
				scoped = append(scoped, row)
			}
		}
		rows = scoped
	}
	return rows, nil
}

// ReconcileInventory compares every stock count with the sum of its ledger.
// Keys present on only one side are reported too.
func (s *Service) ReconcileInventory(ctx context.Context) (domain.ReconcileReport, error) {
	companyID, _, err := s.scope(ctx, managerRoles...)
	if err != nil {
		return domain.ReconcileReport{}, err
	}

	var (
		rows []domain.WarehouseInventory
		sums map[domain.StockKey]int
	)
	err = s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if rows, err = tx.ListInventory(ctx, companyID, ""); err != nil {
			return err
		}
		sums, err = tx.SumStockMovements(ctx, companyID)
		return err
	})
	if err != nil {
		return domain.ReconcileReport{}, err
	}

	counts := make(map[domain.StockKey]int, len(rows))
	for _, row := range rows {
		counts[row.Key()] = row.StockCount
	}
	keys := make([]domain.StockKey, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	for key := range sums {
		if _, ok := counts[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.WarehouseID != b.WarehouseID {
			return a.WarehouseID < b.WarehouseID
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.VariantID < b.VariantID
	})

	report := domain.ReconcileReport{Consistent: true, Lines: make([]domain.ReconcileLine, 0, len(keys))}
	for _, key := range keys {
		line := domain.ReconcileLine{
			StockKey:   key,
			StockCount: counts[key],
			LedgerSum:  sums[key],
		}
		line.Consistent = line.StockCount == line.LedgerSum
		if !line.Consistent {
			report.Consistent = false
		}
		report.Lines = append(report.Lines, line)
	}
	return report, nil
}
