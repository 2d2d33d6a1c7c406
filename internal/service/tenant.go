package service

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"pasarhub/backend/internal/domain"
	"pasarhub/backend/internal/store"
	"pasarhub/backend/internal/xid"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

func normalizeSlug(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// TenantSlug picks the tenant slug for a request. The explicit header wins;
// otherwise the left-most label of a host under rootDomain is used.
func TenantSlug(host string, header string, rootDomain string) string {
	if slug := normalizeSlug(header); slug != "" {
		return slug
	}

	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	rootDomain = strings.ToLower(strings.Trim(strings.TrimSpace(rootDomain), "."))
	if host == "" || rootDomain == "" || !strings.HasSuffix(host, "."+rootDomain) {
		return ""
	}
	labels := strings.TrimSuffix(host, "."+rootDomain)
	label, _, _ := strings.Cut(labels, ".")
	return label
}

func (s *Service) RootDomain() string {
	return s.rootDomain
}

// tenantLookupTimeout bounds a shared lookup, which outlives any one caller.
const tenantLookupTimeout = 5 * time.Second

// ResolveTenant maps a request to its company. The cache only short-circuits
// the lookup; inactive companies are never cached.
func (s *Service) ResolveTenant(ctx context.Context, host string, header string) (domain.Company, error) {
	slug := TenantSlug(host, header, s.rootDomain)
	if slug == "" {
		return domain.Company{}, fmt.Errorf("%w: send X-Tenant-Subdomain or use a tenant subdomain", store.ErrTenantRequired)
	}

	cached, hit, err := s.tenants.Get(ctx, slug)
	if err != nil {
		s.logger.Warn("tenant cache read failed", zap.String("slug", slug), zap.Error(err))
	}
	if hit && cached != nil && cached.Active() {
		return *cached, nil
	}

	ch := s.tenantLookups.DoChan(slug, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tenantLookupTimeout)
		defer cancel()

		var company *domain.Company
		err := s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			company, err = tx.GetCompanyBySlug(ctx, slug)
			return err
		})
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: tenant %q not found", store.ErrNotFound, slug)
		}
		if err != nil {
			return nil, err
		}
		if !company.Active() {
			if err := s.tenants.Delete(ctx, slug); err != nil {
				s.logger.Warn("tenant cache delete failed", zap.String("slug", slug), zap.Error(err))
			}
			return nil, fmt.Errorf("%w: tenant is not active", store.ErrNotFound)
		}
		if err := s.tenants.Set(ctx, slug, company, s.tenantTTL); err != nil {
			s.logger.Warn("tenant cache write failed", zap.String("slug", slug), zap.Error(err))
		}
		return *company, nil
	})
	select {
	case <-ctx.Done():
		return domain.Company{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Company{}, res.Err
		}
		return res.Val.(domain.Company), nil
	}
}

func (s *Service) GetCompanyBySlug(ctx context.Context, slug string) (domain.Company, error) {
	slug = normalizeSlug(slug)
	if slug == "" {
		return domain.Company{}, fmt.Errorf("%w: slug is required", store.ErrInvalidInput)
	}
	var company *domain.Company
	err := s.repo.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		company, err = tx.GetCompanyBySlug(ctx, slug)
		return err
	})
	if err != nil {
		return domain.Company{}, err
	}
	return *company, nil
}

// RegisterCompany creates a tenant with its first admin. Enabling the default
// modules is a separate effect; a failure there leaves the company usable.
func (s *Service) RegisterCompany(ctx context.Context, req domain.CompanyRegisterRequest) (domain.CompanyRegistration, error) {
	slug := normalizeSlug(req.Slug)
	name := strings.TrimSpace(req.Name)
	username := strings.ToLower(strings.TrimSpace(req.AdminUsername))
	if !slugPattern.MatchString(slug) {
		return domain.CompanyRegistration{}, fmt.Errorf("%w: slug must be 3-63 lowercase letters, digits or hyphens", store.ErrInvalidInput)
	}
	if name == "" {
		return domain.CompanyRegistration{}, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
	}
	if err := validateCredentials(username, req.AdminPassword); err != nil {
		return domain.CompanyRegistration{}, err
	}

	hash, err := HashPassword(req.AdminPassword, s.passwordCost)
	if err != nil {
		return domain.CompanyRegistration{}, err
	}

	now := s.now()
	company := domain.Company{
		ID:        xid.New("co"),
		Slug:      slug,
		Name:      name,
		Status:    domain.CompanyStatusActive,
		CreatedAt: now,
	}
	admin := domain.UserAccount{
		ID:           xid.New("usr"),
		CompanyID:    company.ID,
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Active:       true,
		CreatedAt:    now,
	}

	err = s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateCompany(ctx, company); err != nil {
			return err
		}
		return tx.CreateUser(ctx, admin)
	})
	if err != nil {
		return domain.CompanyRegistration{}, err
	}

	bootstrap := s.runEffect(ctx, "module_bootstrap", func(ctx context.Context) error {
		return s.repo.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.SetCompanyModules(ctx, company.ID, domain.DefaultModules)
		})
	})
	if !bootstrap.Failed() {
		company.Modules = append([]string(nil), domain.DefaultModules...)
	}

	effects := []domain.Effect{
		bootstrap,
		s.audit(ctx, company.ID, admin.Actor(), "company_register", "company", company.ID, "slug="+slug),
	}
	return domain.CompanyRegistration{Company: company, AdminUsername: username, Effects: effects}, nil
}
