package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"pasarhub/backend/internal/domain"
)

const tenantKeyPrefix = "tenant:"

type RedisTenantCache struct {
	client *redis.Client
}

func NewRedisTenantCache(addr string, password string, db int) *RedisTenantCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisTenantCache{client: client}
}

func (c *RedisTenantCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisTenantCache) Close() error {
	return c.client.Close()
}

func (c *RedisTenantCache) Get(ctx context.Context, slug string) (*domain.Company, bool, error) {
	val, err := c.client.Get(ctx, tenantKey(slug)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var company domain.Company
	if err := json.Unmarshal([]byte(val), &company); err != nil {
		return nil, false, err
	}
	return &company, true, nil
}

func (c *RedisTenantCache) Set(ctx context.Context, slug string, company *domain.Company, ttl time.Duration) error {
	if company == nil {
		return nil
	}
	payload, err := json.Marshal(company)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, tenantKey(slug), payload, ttl).Err()
}

func (c *RedisTenantCache) Delete(ctx context.Context, slug string) error {
	return c.client.Del(ctx, tenantKey(slug)).Err()
}

func tenantKey(slug string) string {
	return tenantKeyPrefix + slug
}
