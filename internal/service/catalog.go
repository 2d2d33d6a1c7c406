package service

import (
	"context"
	"fmt"
	"strings"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
	"pasarhub/backend/internal/xid"
)

func (s *Service) CreateWarehouse(ctx context.Context, req domain.WarehouseCreateRequest) (domain.Warehouse, error) {
	companyID, actor, err := s.scope(ctx, managerRoles...)
	if err != nil {
		return domain.Warehouse{}, err
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return domain.Warehouse{}, fmt.Errorf("%w: code and name are required", store.ErrInvalidInput)
	}

	warehouse := domain.Warehouse{
		ID:        xid.New("wh"),
		CompanyID: companyID,
		Code:      code,
		Name:      name,
		Active:    true,
		CreatedAt: s.now(),
	}
	if err := s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateWarehouse(ctx, warehouse)
	}); err != nil {
		return domain.Warehouse{}, err
	}

	s.audit(ctx, companyID, actor, "warehouse_create", "warehouse", warehouse.ID, "code="+code)
	return warehouse, nil
}

func (s *Service) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	companyID, _, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	var warehouses []domain.Warehouse
	err = s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		warehouses, err = tx.ListWarehouses(ctx, companyID)
		return err
	})
	return warehouses, err
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	companyID, actor, err := s.scope(ctx, managerRoles...)
	if err != nil {
		return domain.Product{}, err
	}
	sku := strings.ToUpper(strings.TrimSpace(req.SKU))
	name := strings.TrimSpace(req.Name)
	if sku == "" || name == "" {
		return domain.Product{}, fmt.Errorf("%w: sku and name are required", store.ErrInvalidInput)
	}
	if req.UnitPrice.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: unit price must not be negative", store.ErrInvalidInput)
	}

	product := domain.Product{
		ID:        xid.New("prd"),
		CompanyID: companyID,
		SKU:       sku,
		Name:      name,
		UnitPrice: req.UnitPrice,
		Active:    true,
		CreatedAt: s.now(),
	}
	if err := s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateProduct(ctx, product)
	}); err != nil {
		return domain.Product{}, err
	}

	s.audit(ctx, companyID, actor, "product_create", "product", product.ID, fmt.Sprintf("sku=%s,price=%s", sku, product.UnitPrice.StringFixed(2)))
	return product, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	companyID, _, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	var products []domain.Product
	err = s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		products, err = tx.ListProducts(ctx, companyID)
		return err
	})
	return products, err
}

// loadProducts resolves every id in one query and fails on the first one that
// does not belong to the company.
func loadProducts(ctx context.Context, tx store.Tx, companyID string, ids []string) (map[string]domain.Product, error) {
	products, err := tx.GetProductsByIDs(ctx, companyID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, fmt.Errorf("%w: product %s not found", store.ErrNotFound, id)
		}
	}
	return products, nil
}

func ensureWarehouse(ctx context.Context, tx store.Tx, companyID string, id string) (*domain.Warehouse, error) {
	warehouse, err := tx.GetWarehouse(ctx, companyID, id)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: warehouse %s not found", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if !warehouse.Active {
		return nil, fmt.Errorf("%w: warehouse %s is inactive", store.ErrConflict, id)
	}
	return warehouse, nil
}
