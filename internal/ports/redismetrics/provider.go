// Package redismetrics resolves metrics from Redis hashes: one hash per entity
// at <prefix><entity id>, one field per metric key.
package redismetrics

import (
	"context"
	"errors"
	"fmt"

	"rosterd/internal/ports"

	"github.com/redis/go-redis/v9"
)

// Client is the subset of the redis client the provider uses.
type Client interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

// Provider implements ports.MetricProvider on top of Redis.
type Provider struct {
	client Client
	prefix string
}

// NewClient connects to a single node or a cluster depending on the number of addresses.
func NewClient(addrs []string, password string) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addrs,
		Password: password,
	})
}

// New returns a provider reading hashes under prefix.
func New(client Client, prefix string) *Provider {
	return &Provider{client: client, prefix: prefix}
}

// HashKey returns the hash holding the metrics of entityID.
func (p *Provider) HashKey(entityID string) string {
	return p.prefix + entityID
}

// Resolve implements ports.MetricProvider. A missing hash or field is reported
// as ports.ErrUnresolved.
func (p *Provider) Resolve(ctx context.Context, entityID, key string) (string, error) {
	v, err := p.client.HGet(ctx, p.HashKey(entityID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%s/%s: %w", entityID, key, ports.ErrUnresolved)
	}
	if err != nil {
		return "", fmt.Errorf("redis hget %s %s: %w", p.HashKey(entityID), key, err)
	}
	return v, nil
}

var _ ports.MetricProvider = (*Provider)(nil)
