// Package secretcache reads Secrets Manager secrets through an in-process
// TTL cache, so hot secrets do not hit the API on every call.
package secretcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const defaultTTL = 5 * time.Minute

// SecretsAPI is the slice of the Secrets Manager client the cache needs.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type cachedSecret struct {
	value     string
	fetchedAt time.Time
}

// Cache fetches and caches secret string values.
type Cache struct {
	client SecretsAPI
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	secrets map[string]cachedSecret
}

// Option customizes a cache.
type Option func(*Cache)

// WithTTL overrides the default 5 minute cache lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// New builds a cache over client.
func New(client SecretsAPI, opts ...Option) *Cache {
	c := &Cache{
		client:  client,
		ttl:     defaultTTL,
		now:     time.Now,
		secrets: make(map[string]cachedSecret),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetString returns the secret string for id, fetching it on a miss or after
// the TTL has expired.
func (c *Cache) GetString(ctx context.Context, id string) (string, error) {
	c.mu.RLock()
	cached, ok := c.secrets[id]
	c.mu.RUnlock()
	if ok && c.now().Sub(cached.fetchedAt) < c.ttl {
		return cached.value, nil
	}

	out, err := c.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return "", fmt.Errorf("secretcache: get %s: %w", id, err)
	}
	value := aws.ToString(out.SecretString)

	c.mu.Lock()
	c.secrets[id] = cachedSecret{value: value, fetchedAt: c.now()}
	c.mu.Unlock()
	return value, nil
}

// GetJSON unmarshals the secret string for id into out.
func (c *Cache) GetJSON(ctx context.Context, id string, out any) error {
	value, err := c.GetString(ctx, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return fmt.Errorf("secretcache: unmarshal %s: %w", id, err)
	}
	return nil
}

// Invalidate drops id from the cache so the next read refetches, e.g. after
// a rotation.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.secrets, id)
	c.mu.Unlock()
}
