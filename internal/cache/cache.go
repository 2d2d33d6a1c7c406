package cache

import (
	"context"
	"time"

	"pasarhub/backend/internal/domain"
)

// TenantCache holds resolved companies by slug. It is never authoritative;
// callers fall back to the datastore on a miss or an error.
type TenantCache interface {
	Get(ctx context.Context, slug string) (*domain.Company, bool, error)
	Set(ctx context.Context, slug string, company *domain.Company, ttl time.Duration) error
	Delete(ctx context.Context, slug string) error
}

type NoopTenantCache struct{}

func (NoopTenantCache) Get(_ context.Context, _ string) (*domain.Company, bool, error) {
	return nil, false, nil
}

func (NoopTenantCache) Set(_ context.Context, _ string, _ *domain.Company, _ time.Duration) error {
	return nil
}

func (NoopTenantCache) Delete(_ context.Context, _ string) error {
	return nil
}
