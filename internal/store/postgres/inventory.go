package postgres

import (
	"context"
	"errors"
	"fmt"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
)

// errRowRace marks a lost race on an inventory row. Atomic retries it so the
// next attempt reads the row the other transaction wrote.
var errRowRace = errors.New("inventory row race")

const inventoryColumns = `id, company_id, warehouse_id, product_id, variant_id, stock_count, reserved_stock, version, updated_at`

func (t *txn) GetInventoryForUpdate(ctx context.Context, companyID string, key domain.StockKey) (*domain.WarehouseInventory, error) {
	var inv domain.WarehouseInventory
	if err := t.tx.GetContext(ctx, &inv, `
		SELECT `+inventoryColumns+` FROM warehouse_inventory
		WHERE company_id = $1 AND warehouse_id = $2 AND product_id = $3 AND variant_id = $4
		FOR UPDATE
	`, companyID, key.WarehouseID, key.ProductID, key.VariantID); err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

func (t *txn) SaveInventory(ctx context.Context, inv domain.WarehouseInventory, expectedVersion int64) error {
	if inv.StockCount < 0 {
		return fmt.Errorf("%w: stock count cannot be negative", store.ErrInsufficientStock)
	}
	if expectedVersion == 0 {
		_, err := t.tx.NamedExecContext(ctx, `
			INSERT INTO warehouse_inventory (`+inventoryColumns+`)
			VALUES (:id, :company_id, :warehouse_id, :product_id, :variant_id, :stock_count, :reserved_stock, :version, :updated_at)
		`, inv)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: inventory row was created concurrently", errRowRace)
		}
		return err
	}

	result, err := t.tx.ExecContext(ctx, `
		UPDATE warehouse_inventory
		SET stock_count = $1, reserved_stock = $2, version = $3, updated_at = $4
		WHERE company_id = $5 AND id = $6 AND version = $7
	`, inv.StockCount, inv.ReservedStock, inv.Version, inv.UpdatedAt, inv.CompanyID, inv.ID, expectedVersion)
	if err := affected(result, err); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: inventory row was modified concurrently", errRowRace)
		}
		return err
	}
	return nil
}

func (t *txn) InsertStockMovement(ctx context.Context, movement domain.StockMovement) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO stock_movements (id, company_id, warehouse_id, product_id, variant_id, movement_type, quantity,
			balance_after, reference_type, reference_id, correlation_id, reason, created_by, created_at)
		VALUES (:id, :company_id, :warehouse_id, :product_id, :variant_id, :movement_type, :quantity,
			:balance_after, :reference_type, :reference_id, :correlation_id, :reason, :created_by, :created_at)
	`, movement)
	return err
}

func (t *txn) ListInventory(ctx context.Context, companyID string, warehouseID string) ([]domain.WarehouseInventory, error) {
	rows := make([]domain.WarehouseInventory, 0)
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT `+inventoryColumns+` FROM warehouse_inventory
		WHERE company_id = $1 AND ($2::text = '' OR warehouse_id = $2)
		ORDER BY warehouse_id, product_id, variant_id
	`, companyID, warehouseID)
	return rows, err
}

func (t *txn) ListStockMovements(ctx context.Context, companyID string, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	movements := make([]domain.StockMovement, 0)
	err := t.tx.SelectContext(ctx, &movements, `
		SELECT id, company_id, warehouse_id, product_id, variant_id, movement_type, quantity, balance_after,
			reference_type, reference_id, correlation_id, reason, created_by, created_at
		FROM stock_movements
		WHERE company_id = $1
		  AND ($2::text = '' OR warehouse_id = $2)
		  AND ($3::text = '' OR product_id = $3)
		  AND ($4::text IS NULL OR variant_id = $4)
		  AND ($5::text = '' OR movement_type = $5)
		  AND ($6::text = '' OR reference_type = $6)
		  AND ($7::text = '' OR reference_id = $7)
		  AND (COALESCE(cardinality($8::text[]), 0) = 0 OR warehouse_id = ANY($8::text[]))
		ORDER BY seq DESC`+limitClause(filter.Limit),
		companyID, filter.WarehouseID, filter.ProductID, filter.VariantID,
		string(filter.MovementType), filter.ReferenceType, filter.ReferenceID, filter.WarehouseIDs)
	return movements, err
}

type movementSumRow struct {
	WarehouseID string `db:"warehouse_id"`
	ProductID   string `db:"product_id"`
	VariantID   string `db:"variant_id"`
	Total       int    `db:"total"`
}

func (t *txn) SumStockMovements(ctx context.Context, companyID string) (map[domain.StockKey]int, error) {
	var rows []movementSumRow
	if err := t.tx.SelectContext(ctx, &rows, `
		SELECT warehouse_id, product_id, variant_id, COALESCE(SUM(quantity), 0)::int AS total
		FROM stock_movements
		WHERE company_id = $1
		GROUP BY warehouse_id, product_id, variant_id
	`, companyID); err != nil {
		return nil, err
	}
	sums := make(map[domain.StockKey]int, len(rows))
	for _, row := range rows {
		sums[domain.StockKey{WarehouseID: row.WarehouseID, ProductID: row.ProductID, VariantID: row.VariantID}] = row.Total
	}
	return sums, nil
}
