package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"autosms-dashboard/backend/pkg/config"

	"github.com/redis/go-redis/v9"
)

// selectionKeyPrefix namespaces the per-profile selection slots
const selectionKeyPrefix = "selection:"

// RedisPersister stores selection snapshots in Redis, one key per profile.
// This is the durable layer behind the session store; failures here are
// tolerated by the store, which keeps working in memory.
type RedisPersister struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPersister creates a persister from the application configuration
func NewRedisPersister(cfg *config.Config) *RedisPersister {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	return &RedisPersister{
		client: client,
		ttl:    cfg.Session.TTL,
	}
}

// Ping checks connectivity, used by health checks
func (p *RedisPersister) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Save implements Persister
func (p *RedisPersister) Save(ctx context.Context, profileID string, sel Selection) error {
	data, err := json.Marshal(sel)
	if err != nil {
		return err
	}
	return p.client.Set(ctx, selectionKeyPrefix+profileID, data, p.ttl).Err()
}

// Load implements Persister. A missing slot is not an error.
func (p *RedisPersister) Load(ctx context.Context, profileID string) (*Selection, error) {
	data, err := p.client.Get(ctx, selectionKeyPrefix+profileID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var sel Selection
	if err := json.Unmarshal(data, &sel); err != nil {
		return nil, err
	}
	return &sel, nil
}

// Delete implements Persister
func (p *RedisPersister) Delete(ctx context.Context, profileID string) error {
	return p.client.Del(ctx, selectionKeyPrefix+profileID).Err()
}
