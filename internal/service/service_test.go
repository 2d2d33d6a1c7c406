package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/payment"
	"pasarhub/backend/internal/store"
	"pasarhub/backend/internal/store/memory"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	svc      *Service
	repo     *memory.Store
	clock    *testClock
	payments *payment.Simulated
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, memory.NewSeeded(), Options{})
}

func newTestEnvWith(t *testing.T, repo *memory.Store, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:     repo,
		clock:    &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		payments: payment.NewSimulated(),
	}
	opts.Now = env.clock.Now
	opts.PasswordCost = bcrypt.MinCost
	if opts.Payments == nil {
		opts.Payments = env.payments
	}
	env.svc = New(repo, opts)
	return env
}

var demoCompany = domain.Company{ID: memory.DemoCompanyID, Slug: memory.DemoSlug, Name: "Pasar Demo", Status: domain.CompanyStatusActive}

func ctxAs(role string) context.Context {
	actors := map[string]domain.Actor{
		domain.RoleAdmin:    {UserID: "usr_demo_admin", Username: "admin", Role: domain.RoleAdmin, CompanyID: memory.DemoCompanyID},
		domain.RoleManager:  {UserID: "usr_demo_manager", Username: "manager", Role: domain.RoleManager, CompanyID: memory.DemoCompanyID},
		domain.RoleStaff:    {UserID: "usr_demo_staff", Username: "staff", Role: domain.RoleStaff, CompanyID: memory.DemoCompanyID, Warehouses: []string{memory.DemoMainWarehouse}},
		domain.RoleCustomer: {UserID: "usr_demo_customer", Username: "customer", Role: domain.RoleCustomer, CompanyID: memory.DemoCompanyID},
	}
	return WithActor(WithTenant(context.Background(), demoCompany), actors[role])
}

func (e *testEnv) stock(t *testing.T, warehouseID string, productID string, variantID string) int {
	t.Helper()
	rows, err := e.svc.ListInventory(ctxAs(domain.RoleAdmin), warehouseID)
	if err != nil {
		t.Fatalf("list inventory failed: %v", err)
	}
	for _, row := range rows {
		if row.ProductID == productID && row.VariantID == variantID {
			return row.StockCount
		}
	}
	return 0
}

func (e *testEnv) movements(t *testing.T, filter domain.MovementFilter) []domain.StockMovement {
	t.Helper()
	movements, err := e.svc.ListMovements(ctxAs(domain.RoleAdmin), filter)
	if err != nil {
		t.Fatalf("list movements failed: %v", err)
	}
	return movements
}

func (e *testEnv) assertReconciled(t *testing.T) {
	t.Helper()
	report, err := e.svc.ReconcileInventory(ctxAs(domain.RoleAdmin))
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !report.Consistent {
		for _, line := range report.Lines {
			if !line.Consistent {
				t.Errorf("inconsistent %+v: stock %d ledger %d", line.StockKey, line.StockCount, line.LedgerSum)
			}
		}
		t.Fatalf("expected inventory to reconcile with the ledger")
	}
}

func TestOperationsRequireTenant(t *testing.T) {
	env := newTestEnv(t)
	ctx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin, CompanyID: memory.DemoCompanyID})

	if _, err := env.svc.ListInventory(ctx, ""); !errors.Is(err, store.ErrTenantRequired) {
		t.Fatalf("expected tenant required, got %v", err)
	}
	if _, err := env.svc.PlaceOrder(ctx, domain.OrderCreateRequest{}); !errors.Is(err, store.ErrTenantRequired) {
		t.Fatalf("expected tenant required, got %v", err)
	}
}

func TestTokenForAnotherCompanyIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := WithActor(WithTenant(context.Background(), demoCompany), domain.Actor{
		Username:  "admin",
		Role:      domain.RoleAdmin,
		CompanyID: "co_other",
	})

	_, err := env.svc.ListProducts(ctx)
	if !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRoleChecks(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.svc.ReconcileInventory(ctxAs(domain.RoleStaff)); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected staff to be refused reconcile, got %v", err)
	}
	if _, err := env.svc.ListMovements(ctxAs(domain.RoleCustomer), domain.MovementFilter{}); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected customer to be refused movements, got %v", err)
	}
	if _, err := env.svc.ListUsers(ctxAs(domain.RoleManager)); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected manager to be refused user list, got %v", err)
	}
}

func TestAuditLogIsWrittenAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxAs(domain.RoleAdmin)

	if _, err := env.svc.AdjustStock(ctx, domain.StockAdjustRequest{
		WarehouseID:      memory.DemoMainWarehouse,
		ProductID:        memory.DemoProductOil,
		PhysicalQuantity: 75,
		Reason:           "stock opname",
	}); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	logs, err := env.svc.ListAuditLogs(ctx, time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "stock_adjust" || logs[0].Actor != "admin" {
		t.Fatalf("unexpected audit logs: %+v", logs)
	}
}
