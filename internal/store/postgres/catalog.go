package postgres

import (
	"context"
	"fmt"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
)

func (t *txn) CreateWarehouse(ctx context.Context, warehouse domain.Warehouse) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO warehouses (id, company_id, code, name, active, created_at)
		VALUES (:id, :company_id, :code, :name, :active, :created_at)
	`, warehouse)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: warehouse code %q already exists", store.ErrConflict, warehouse.Code)
	}
	return err
}

func (t *txn) GetWarehouse(ctx context.Context, companyID string, id string) (*domain.Warehouse, error) {
	var warehouse domain.Warehouse
	if err := t.tx.GetContext(ctx, &warehouse, `
		SELECT id, company_id, code, name, active, created_at
		FROM warehouses
		WHERE company_id = $1 AND id = $2
	`, companyID, id); err != nil {
		return nil, notFound(err)
	}
	return &warehouse, nil
}

func (t *txn) ListWarehouses(ctx context.Context, companyID string) ([]domain.Warehouse, error) {
	warehouses := make([]domain.Warehouse, 0)
	err := t.tx.SelectContext(ctx, &warehouses, `
		SELECT id, company_id, code, name, active, created_at
		FROM warehouses
		WHERE company_id = $1
		ORDER BY code
	`, companyID)
	return warehouses, err
}

func (t *txn) CreateProduct(ctx context.Context, product domain.Product) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO products (id, company_id, sku, name, unit_price, active, created_at)
		VALUES (:id, :company_id, :sku, :name, :unit_price, :active, :created_at)
	`, product)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: sku %q already exists", store.ErrConflict, product.SKU)
	}
	return err
}

func (t *txn) GetProductsByIDs(ctx context.Context, companyID string, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var products []domain.Product
	if err := t.tx.SelectContext(ctx, &products, `
		SELECT id, company_id, sku, name, unit_price, active, created_at
		FROM products
		WHERE company_id = $1 AND id = ANY($2)
	`, companyID, ids); err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (t *txn) ListProducts(ctx context.Context, companyID string) ([]domain.Product, error) {
	products := make([]domain.Product, 0)
	err := t.tx.SelectContext(ctx, &products, `
		SELECT id, company_id, sku, name, unit_price, active, created_at
		FROM products
		WHERE company_id = $1
		ORDER BY sku
	`, companyID)
	return products, err
}

func (t *txn) CreateSupplier(ctx context.Context, supplier domain.Supplier) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO suppliers (id, company_id, code, name, contact, created_at)
		VALUES (:id, :company_id, :code, :name, :contact, :created_at)
	`, supplier)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: supplier code %q already exists", store.ErrConflict, supplier.Code)
	}
	return err
}

func (t *txn) GetSupplier(ctx context.Context, companyID string, id string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	if err := t.tx.GetContext(ctx, &supplier, `
		SELECT id, company_id, code, name, contact, created_at
		FROM suppliers
		WHERE company_id = $1 AND id = $2
	`, companyID, id); err != nil {
		return nil, notFound(err)
	}
	return &supplier, nil
}

func (t *txn) ListSuppliers(ctx context.Context, companyID string) ([]domain.Supplier, error) {
	suppliers := make([]domain.Supplier, 0)
	err := t.tx.SelectContext(ctx, &suppliers, `
		SELECT id, company_id, code, name, contact, created_at
		FROM suppliers
		WHERE company_id = $1
		ORDER BY code
	`, companyID)
	return suppliers, err
}

func (t *txn) CreateSupplierBankAccount(ctx context.Context, account domain.SupplierBankAccount) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO supplier_bank_accounts (id, company_id, supplier_id, bank_name, account_number, account_holder, created_at)
		VALUES (:id, :company_id, :supplier_id, :bank_name, :account_number, :account_holder, :created_at)
	`, account)
	return err
}
