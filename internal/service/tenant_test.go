package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
	"pasarhub/backend/internal/store/memory"
)

func TestTenantSlug(t *testing.T) {
	cases := []struct {
		name   string
		host   string
		header string
		want   string
	}{
		{"header wins", "other.pasarhub.id", "Demo", "demo"},
		{"subdomain", "demo.pasarhub.id", "", "demo"},
		{"subdomain with port", "demo.pasarhub.id:8080", "", "demo"},
		{"nested subdomain", "api.demo.pasarhub.id", "", "api"},
		{"bare root", "pasarhub.id", "", ""},
		{"foreign host", "demo.example.com", "", ""},
		{"empty", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TenantSlug(tc.host, tc.header, "pasarhub.id"); got != tc.want {
				t.Fatalf("TenantSlug(%q, %q) = %q, want %q", tc.host, tc.header, got, tc.want)
			}
		})
	}
}

type mapTenantCache struct {
	mu      sync.Mutex
	entries map[string]domain.Company
	gets    int
	deletes int
}

func newMapTenantCache() *mapTenantCache {
	return &mapTenantCache{entries: make(map[string]domain.Company)}
}

func (c *mapTenantCache) Get(_ context.Context, slug string) (*domain.Company, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	company, ok := c.entries[slug]
	if !ok {
		return nil, false, nil
	}
	return &company, true, nil
}

func (c *mapTenantCache) Set(_ context.Context, slug string, company *domain.Company, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[slug] = *company
	return nil
}

func (c *mapTenantCache) Delete(_ context.Context, slug string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.entries, slug)
	return nil
}

func TestResolveTenant(t *testing.T) {
	repo := memory.NewSeeded()
	if err := repo.Atomic(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.CreateCompany(ctx, domain.Company{ID: "co_closed", Slug: "tutup", Name: "Toko Tutup", Status: domain.CompanyStatusInactive})
	}); err != nil {
		t.Fatalf("seed inactive company failed: %v", err)
	}
	tenants := newMapTenantCache()
	env := newTestEnvWith(t, repo, Options{Tenants: tenants, RootDomain: "pasarhub.id"})
	ctx := context.Background()

	company, err := env.svc.ResolveTenant(ctx, "demo.pasarhub.id", "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if company.ID != memory.DemoCompanyID {
		t.Fatalf("unexpected company %+v", company)
	}
	if _, ok := tenants.entries[memory.DemoSlug]; !ok {
		t.Fatalf("expected resolved tenant to be cached")
	}

	if _, err := env.svc.ResolveTenant(ctx, "localhost:8080", ""); !errors.Is(err, store.ErrTenantRequired) {
		t.Fatalf("expected tenant required, got %v", err)
	}
	if _, err := env.svc.ResolveTenant(ctx, "", "nowhere"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected unknown tenant to be not found, got %v", err)
	}
	_, err = env.svc.ResolveTenant(ctx, "", "tutup")
	if !errors.Is(err, store.ErrNotFound) || err.Error() != "not found: tenant is not active" {
		t.Fatalf("expected inactive tenant to be not found, got %v", err)
	}
	if _, ok := tenants.entries["tutup"]; ok {
		t.Fatalf("inactive tenants must not be cached")
	}
}

func TestResolveTenantServesFromCache(t *testing.T) {
	tenants := newMapTenantCache()
	tenants.entries["cached"] = domain.Company{ID: "co_cached", Slug: "cached", Status: domain.CompanyStatusActive}
	env := newTestEnvWith(t, memory.NewSeeded(), Options{Tenants: tenants})

	company, err := env.svc.ResolveTenant(context.Background(), "", "cached")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if company.ID != "co_cached" {
		t.Fatalf("expected the cached company, got %+v", company)
	}
}

// gatedRepo holds every read until release is closed, failing early only if
// the read's own context ends.
type gatedRepo struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
	views   atomic.Int32
}

func (r *gatedRepo) View(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if r.views.Add(1) == 1 {
		close(r.entered)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.release:
	}
	return r.Store.View(ctx, fn)
}

func TestResolveTenantSurvivesFirstCallerCancelling(t *testing.T) {
	repo := &gatedRepo{Store: memory.NewSeeded(), entered: make(chan struct{}), release: make(chan struct{})}
	svc := New(repo, Options{Tenants: newMapTenantCache()})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.ResolveTenant(firstCtx, "", memory.DemoSlug)
		firstErr <- err
	}()
	<-repo.entered

	var (
		secondCompany domain.Company
		secondErr     error
		done          = make(chan struct{})
	)
	go func() {
		defer close(done)
		secondCompany, secondErr = svc.ResolveTenant(context.Background(), "", memory.DemoSlug)
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected first caller to see its cancellation, got %v", err)
	}
	close(repo.release)
	<-done

	if secondErr != nil {
		t.Fatalf("expected waiting caller to resolve, got %v", secondErr)
	}
	if secondCompany.ID != memory.DemoCompanyID {
		t.Fatalf("unexpected company %+v", secondCompany)
	}
	if got := repo.views.Load(); got != 1 {
		t.Fatalf("expected one shared lookup, got %d", got)
	}
}

func TestRegisterCompanyBootstrapsModules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reg, err := env.svc.RegisterCompany(ctx, domain.CompanyRegisterRequest{
		Name:          "Toko Sembako Maju",
		Slug:          "Maju",
		AdminUsername: "Owner",
		AdminPassword: "rahasia-maju",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if reg.Company.Slug != "maju" || reg.AdminUsername != "owner" || len(reg.Company.Modules) != len(domain.DefaultModules) {
		t.Fatalf("unexpected registration %+v", reg)
	}
	for _, effect := range reg.Effects {
		if effect.Failed() {
			t.Fatalf("unexpected failed effect %+v", effect)
		}
	}

	stored, err := env.svc.GetCompanyBySlug(ctx, "maju")
	if err != nil {
		t.Fatalf("get company failed: %v", err)
	}
	if len(stored.Modules) != len(domain.DefaultModules) {
		t.Fatalf("expected modules to be stored, got %v", stored.Modules)
	}

	actor, err := env.svc.Authenticate(ctx, stored.ID, "owner", "rahasia-maju")
	if err != nil {
		t.Fatalf("authenticate new admin failed: %v", err)
	}
	if actor.Role != domain.RoleAdmin {
		t.Fatalf("expected admin, got %s", actor.Role)
	}

	if _, err := env.svc.RegisterCompany(ctx, domain.CompanyRegisterRequest{
		Name:          "Duplicate",
		Slug:          "maju",
		AdminUsername: "owner",
		AdminPassword: "rahasia-maju",
	}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected duplicate slug to conflict, got %v", err)
	}
}

func TestRegisterCompanyValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		req  domain.CompanyRegisterRequest
	}{
		{"short slug", domain.CompanyRegisterRequest{Name: "A", Slug: "a", AdminUsername: "owner", AdminPassword: "password1"}},
		{"bad slug", domain.CompanyRegisterRequest{Name: "A", Slug: "toko_maju", AdminUsername: "owner", AdminPassword: "password1"}},
		{"no name", domain.CompanyRegisterRequest{Slug: "maju", AdminUsername: "owner", AdminPassword: "password1"}},
		{"short password", domain.CompanyRegisterRequest{Name: "A", Slug: "maju", AdminUsername: "owner", AdminPassword: "pw"}},
		{"short username", domain.CompanyRegisterRequest{Name: "A", Slug: "maju", AdminUsername: "ow", AdminPassword: "password1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.RegisterCompany(context.Background(), tc.req); !errors.Is(err, store.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestTenantsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	reg, err := env.svc.RegisterCompany(context.Background(), domain.CompanyRegisterRequest{
		Name:          "Toko Lain",
		Slug:          "lain",
		AdminUsername: "owner",
		AdminPassword: "rahasia-lain",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	otherCtx := WithActor(WithTenant(context.Background(), reg.Company), domain.Actor{
		UserID:    "usr_lain",
		Username:  "owner",
		Role:      domain.RoleAdmin,
		CompanyID: reg.Company.ID,
	})

	products, err := env.svc.ListProducts(otherCtx)
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("expected no demo products in another tenant, got %d", len(products))
	}
	if _, err := env.svc.PlaceOrder(otherCtx, domain.OrderCreateRequest{
		WarehouseID: memory.DemoMainWarehouse,
		Items:       []domain.OrderLineInput{{ProductID: memory.DemoProductRice, Quantity: 1}},
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected demo warehouse to be invisible, got %v", err)
	}

	demoOrder := placeRice(t, env, domain.RoleAdmin, 1)
	if _, err := env.svc.GetOrder(otherCtx, demoOrder.Order.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected demo order to be invisible, got %v", err)
	}
	if _, err := env.svc.Authenticate(context.Background(), reg.Company.ID, "admin", memory.DemoPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected demo admin to be unknown in another tenant, got %v", err)
	}
}

var errEffectDown = errors.New("effect target unavailable")

type flakyRepo struct {
	*memory.Store
}

func (r flakyRepo) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return r.Store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, flakyTx{Tx: tx})
	})
}

type flakyTx struct {
	store.Tx
}

func (flakyTx) CreateAuditLog(context.Context, domain.AuditLog) error { return errEffectDown }

func (flakyTx) SetCompanyModules(context.Context, string, []string) error { return errEffectDown }

func (flakyTx) CreateSupplierBankAccount(context.Context, domain.SupplierBankAccount) error {
	return errEffectDown
}

type failingPublisher struct{}

func (failingPublisher) PublishStockMovements(context.Context, string, []domain.StockMovement) error {
	return errEffectDown
}

func (failingPublisher) Close() error { return nil }

func TestFailedEffectsNeverFailTheOperation(t *testing.T) {
	repo := memory.NewSeeded()
	svc := New(flakyRepo{Store: repo}, Options{Publisher: failingPublisher{}})

	reg, err := svc.RegisterCompany(context.Background(), domain.CompanyRegisterRequest{
		Name:          "Toko Rapuh",
		Slug:          "rapuh",
		AdminUsername: "owner",
		AdminPassword: "rahasia-rapuh",
	})
	if err != nil {
		t.Fatalf("register must succeed despite effect failures: %v", err)
	}
	if len(reg.Effects) != 2 || !reg.Effects[0].Failed() || !reg.Effects[1].Failed() {
		t.Fatalf("expected both effects to be reported as failed, got %+v", reg.Effects)
	}
	if len(reg.Company.Modules) != 0 {
		t.Fatalf("modules must not be reported when bootstrap failed, got %v", reg.Company.Modules)
	}

	adjusted, err := svc.AdjustStock(ctxAs(domain.RoleAdmin), domain.StockAdjustRequest{
		WarehouseID:      memory.DemoMainWarehouse,
		ProductID:        memory.DemoProductRice,
		PhysicalQuantity: 100,
	})
	if err != nil {
		t.Fatalf("adjust must succeed despite effect failures: %v", err)
	}
	if len(adjusted.Effects) != 2 {
		t.Fatalf("expected audit and stock event effects, got %+v", adjusted.Effects)
	}
	for _, effect := range adjusted.Effects {
		if effect.Status != domain.EffectFailedIgnored || effect.Error == "" {
			t.Fatalf("expected failed_ignored effect, got %+v", effect)
		}
	}

	supplier, err := svc.CreateSupplier(ctxAs(domain.RoleAdmin), domain.SupplierCreateRequest{
		Code:         "rapuh",
		Name:         "Rapuh",
		BankAccounts: []domain.SupplierBankAccountInput{{BankName: "BRI", AccountNumber: "1", AccountHolder: "Rapuh"}},
	})
	if err != nil {
		t.Fatalf("create supplier must succeed despite effect failures: %v", err)
	}
	if !supplier.Effects[0].Failed() {
		t.Fatalf("expected bank account effect to fail, got %+v", supplier.Effects)
	}

	stock, err := New(repo, Options{}).ListInventory(ctxAs(domain.RoleAdmin), memory.DemoMainWarehouse)
	if err != nil {
		t.Fatalf("list inventory failed: %v", err)
	}
	for _, row := range stock {
		if row.ProductID == memory.DemoProductRice && row.StockCount != 100 {
			t.Fatalf("expected the primary write to stick at 100, got %d", row.StockCount)
		}
	}
}
