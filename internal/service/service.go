package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pasarhub/backend/internal/cache"
	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/events"
	"pasarhub/backend/internal/payment"
	"pasarhub/backend/internal/store"
	"pasarhub/backend/internal/xid"
)

type actorContextKey struct{}

type tenantContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

func WithTenant(ctx context.Context, company domain.Company) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, company)
}

func TenantFromContext(ctx context.Context) (domain.Company, bool) {
	company, ok := ctx.Value(tenantContextKey{}).(domain.Company)
	return company, ok && company.ID != ""
}

var (
	staffRoles   = []string{domain.RoleAdmin, domain.RoleManager, domain.RoleStaff}
	managerRoles = []string{domain.RoleAdmin, domain.RoleManager}
	adminRoles   = []string{domain.RoleAdmin}
)

type Options struct {
	Logger       *zap.Logger
	Tenants      cache.TenantCache
	TenantTTL    time.Duration
	Publisher    events.Publisher
	Payments     payment.Gateway
	GraceWindow  time.Duration
	RootDomain   string
	Currency     string
	PasswordCost int
	Now          func() time.Time
}

type Service struct {
	repo         store.Repository
	logger       *zap.Logger
	tenants      cache.TenantCache
	tenantTTL    time.Duration
	publisher    events.Publisher
	payments     payment.Gateway
	graceWindow  time.Duration
	rootDomain   string
	currency     string
	passwordCost int
	now          func() time.Time

	tenantLookups singleflight.Group
}

func New(repo store.Repository, opts Options) *Service {
	svc := &Service{
		repo:         repo,
		logger:       opts.Logger,
		tenants:      opts.Tenants,
		tenantTTL:    opts.TenantTTL,
		publisher:    opts.Publisher,
		payments:     opts.Payments,
		graceWindow:  opts.GraceWindow,
		rootDomain:   strings.ToLower(strings.Trim(strings.TrimSpace(opts.RootDomain), ".")),
		currency:     strings.ToUpper(strings.TrimSpace(opts.Currency)),
		passwordCost: opts.PasswordCost,
		now:          opts.Now,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.tenants == nil {
		svc.tenants = cache.NoopTenantCache{}
	}
	if svc.tenantTTL <= 0 {
		svc.tenantTTL = 5 * time.Minute
	}
	if svc.publisher == nil {
		svc.publisher = events.NoopPublisher{}
	}
	if svc.payments == nil {
		svc.payments = payment.NewSimulated()
	}
	if svc.graceWindow <= 0 {
		svc.graceWindow = domain.DefaultGraceWindow
	}
	if svc.currency == "" {
		svc.currency = "IDR"
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc
}

func (s *Service) GraceWindow() time.Duration {
	return s.graceWindow
}

// scope returns the tenant's company id and the caller. The tenant check runs
// before anything touches the datastore.
func (s *Service) scope(ctx context.Context, roles ...string) (string, domain.Actor, error) {
	company, ok := TenantFromContext(ctx)
	if !ok {
		return "", domain.Actor{}, store.ErrTenantRequired
	}
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return "", domain.Actor{}, fmt.Errorf("%w: authentication required", store.ErrForbidden)
	}
	if actor.CompanyID != company.ID {
		return "", domain.Actor{}, fmt.Errorf("%w: token does not belong to this tenant", store.ErrForbidden)
	}
	if len(roles) > 0 && !slices.Contains(roles, actor.Role) {
		return "", domain.Actor{}, fmt.Errorf("%w: role %s is not allowed", store.ErrForbidden, actor.Role)
	}
	return company.ID, actor, nil
}

func requireWarehouse(actor domain.Actor, warehouseIDs ...string) error {
	for _, id := range warehouseIDs {
		if !actor.CanAccessWarehouse(id) {
			return fmt.Errorf("%w: warehouse %s is outside your scope", store.ErrForbidden, id)
		}
	}
	return nil
}

func (s *Service) runEffect(ctx context.Context, name string, fn func(ctx context.Context) error) domain.Effect {
	if err := fn(ctx); err != nil {
		s.logger.Warn("non-critical effect failed", zap.String("effect", name), zap.Error(err))
		return domain.Effect{Name: name, Status: domain.EffectFailedIgnored, Error: err.Error()}
	}
	return domain.Effect{Name: name, Status: domain.EffectApplied}
}

func (s *Service) audit(ctx context.Context, companyID string, actor domain.Actor, action string, entity string, entityID string, detail string) domain.Effect {
	return s.runEffect(ctx, "audit_log", func(ctx context.Context) error {
		return s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.CreateAuditLog(ctx, domain.AuditLog{
				ID:        xid.New("audit"),
				CompanyID: companyID,
				Actor:     defaultString(actor.Username, "system"),
				Action:    action,
				Entity:    entity,
				EntityID:  entityID,
				Detail:    detail,
				CreatedAt: s.now(),
			})
		})
	})
}

func (s *Service) publishMovements(ctx context.Context, companyID string, movements []domain.StockMovement) domain.Effect {
	return s.runEffect(ctx, "stock_event", func(ctx context.Context) error {
		return s.publisher.PublishStockMovements(ctx, companyID, movements)
	})
}

// postCommit runs the effects shared by every stock-moving operation.
func (s *Service) postCommit(ctx context.Context, companyID string, actor domain.Actor, action string, entity string, entityID string, detail string, movements []domain.StockMovement) []domain.Effect {
	effects := []domain.Effect{s.audit(ctx, companyID, actor, action, entity, entityID, detail)}
	if len(movements) > 0 {
		effects = append(effects, s.publishMovements(ctx, companyID, movements))
	}
	return effects
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	companyID, _, err := s.scope(ctx, managerRoles...)
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: from must not be after to", store.ErrInvalidInput)
	}
	limit = clampLimit(limit)

	var logs []domain.AuditLog
	err = s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		logs, err = tx.ListAuditLogs(ctx, companyID, from, to, limit)
		return err
	})
	return logs, err
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
