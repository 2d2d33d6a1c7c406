package postgres

import (
	"context"
	"fmt"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
)

const companyColumns = `id, slug, name, status, created_at`

func (t *txn) CreateCompany(ctx context.Context, company domain.Company) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO companies (id, slug, name, status, created_at)
		VALUES (:id, :slug, :name, :status, :created_at)
	`, company)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: company slug %q already taken", store.ErrConflict, company.Slug)
	}
	if err != nil {
		return err
	}
	for _, module := range company.Modules {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO company_modules (company_id, module) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, company.ID, module); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) GetCompany(ctx context.Context, id string) (*domain.Company, error) {
	var company domain.Company
	if err := t.tx.GetContext(ctx, &company, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return t.withModules(ctx, &company)
}

func (t *txn) GetCompanyBySlug(ctx context.Context, slug string) (*domain.Company, error) {
	var company domain.Company
	if err := t.tx.GetContext(ctx, &company, `SELECT `+companyColumns+` FROM companies WHERE slug = $1`, slug); err != nil {
		return nil, notFound(err)
	}
	return t.withModules(ctx, &company)
}

func (t *txn) withModules(ctx context.Context, company *domain.Company) (*domain.Company, error) {
	company.Modules = []string{}
	if err := t.tx.SelectContext(ctx, &company.Modules, `
		SELECT module FROM company_modules WHERE company_id = $1 ORDER BY module
	`, company.ID); err != nil {
		return nil, err
	}
	return company, nil
}

func (t *txn) SetCompanyModules(ctx context.Context, companyID string, modules []string) error {
	var exists bool
	if err := t.tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM companies WHERE id = $1)`, companyID); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM company_modules WHERE company_id = $1`, companyID); err != nil {
		return err
	}
	for _, module := range modules {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO company_modules (company_id, module) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, companyID, module); err != nil {
			return err
		}
	}
	return nil
}

const userColumns = `id, company_id, username, password_hash, role, active, created_at`

type userWarehouseRow struct {
	UserID      string `db:"user_id"`
	WarehouseID string `db:"warehouse_id"`
}

func (t *txn) CreateUser(ctx context.Context, user domain.UserAccount) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO users (id, company_id, username, password_hash, role, active, created_at)
		VALUES (:id, :company_id, :username, :password_hash, :role, :active, :created_at)
	`, user)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: username %q already exists", store.ErrConflict, user.Username)
	}
	if err != nil {
		return err
	}
	for _, warehouseID := range user.Warehouses {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO user_warehouses (user_id, warehouse_id) VALUES ($1, $2)
		`, user.ID, warehouseID); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) GetUser(ctx context.Context, companyID string, id string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	if err := t.tx.GetContext(ctx, &user, `
		SELECT `+userColumns+` FROM users WHERE company_id = $1 AND id = $2
	`, companyID, id); err != nil {
		return nil, notFound(err)
	}
	users := []domain.UserAccount{user}
	if err := t.loadUserWarehouses(ctx, users); err != nil {
		return nil, err
	}
	return &users[0], nil
}

func (t *txn) GetUserByUsername(ctx context.Context, companyID string, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	if err := t.tx.GetContext(ctx, &user, `
		SELECT `+userColumns+` FROM users WHERE company_id = $1 AND username = $2
	`, companyID, username); err != nil {
		return nil, notFound(err)
	}
	users := []domain.UserAccount{user}
	if err := t.loadUserWarehouses(ctx, users); err != nil {
		return nil, err
	}
	return &users[0], nil
}

func (t *txn) ListUsers(ctx context.Context, companyID string) ([]domain.UserAccount, error) {
	users := make([]domain.UserAccount, 0)
	if err := t.tx.SelectContext(ctx, &users, `
		SELECT `+userColumns+` FROM users WHERE company_id = $1 ORDER BY username
	`, companyID); err != nil {
		return nil, err
	}
	if err := t.loadUserWarehouses(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (t *txn) loadUserWarehouses(ctx context.Context, users []domain.UserAccount) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]string, len(users))
	index := make(map[string]int, len(users))
	for i, user := range users {
		ids[i] = user.ID
		index[user.ID] = i
	}
	var rows []userWarehouseRow
	if err := t.tx.SelectContext(ctx, &rows, `
		SELECT user_id, warehouse_id FROM user_warehouses
		WHERE user_id = ANY($1)
		ORDER BY user_id, warehouse_id
	`, ids); err != nil {
		return err
	}
	for _, row := range rows {
		i := index[row.UserID]
		users[i].Warehouses = append(users[i].Warehouses, row.WarehouseID)
	}
	return nil
}
