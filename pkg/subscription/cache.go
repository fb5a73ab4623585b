package subscription

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"webaudit_backend/pkg/metrics"
)

type cacheBackend interface {
	get(ctx context.Context, key string) (value bool, ok bool, err error)
	set(ctx context.Context, key string, value bool) error
	deleteUser(ctx context.Context, userID string) error
	flush(ctx context.Context) error
}

// DecisionCache memoizes feature access decisions per (feature, user) for a
// fixed TTL. Backend failures are treated as misses, so the cache can only
// change the latency of a decision. A nil *DecisionCache never hits.
type DecisionCache struct {
	backend cacheBackend
}

func cacheKey(feature Feature, userID string) string {
	return string(feature) + "|" + userID
}

func (c *DecisionCache) Get(ctx context.Context, feature Feature, userID uuid.UUID) (bool, bool) {
	if c == nil {
		return false, false
	}
	value, ok, err := c.backend.get(ctx, cacheKey(feature, userID.String()))
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("feature", string(feature)).Msg("Decision cache read failed")
		return false, false
	case !ok:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return false, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return value, true
}

func (c *DecisionCache) Set(ctx context.Context, feature Feature, userID uuid.UUID, allowed bool) {
	if c == nil {
		return
	}
	if err := c.backend.set(ctx, cacheKey(feature, userID.String()), allowed); err != nil {
		log.Warn().Err(err).Str("feature", string(feature)).Msg("Decision cache write failed")
	}
}

// InvalidateUser drops every cached decision for userID.
func (c *DecisionCache) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	if c == nil {
		return
	}
	if err := c.backend.deleteUser(ctx, userID.String()); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Decision cache invalidation failed")
	}
}

// Flush drops every cached decision.
func (c *DecisionCache) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.backend.flush(ctx); err != nil {
		log.Warn().Err(err).Msg("Decision cache flush failed")
	}
}

type memoryEntry struct {
	value     bool
	expiresAt time.Time
}

type memoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryDecisionCache creates an in-process cache. A TTL of zero disables
// caching; now may be nil to use the wall clock.
func NewMemoryDecisionCache(ttl time.Duration, now func() time.Time) *DecisionCache {
	if now == nil {
		now = time.Now
	}
	return &DecisionCache{backend: &memoryBackend{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     now,
	}}
}

func (m *memoryBackend) get(_ context.Context, key string) (bool, bool, error) {
	if m.ttl <= 0 {
		return false, false, nil
	}
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return false, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		if current, ok := m.entries[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return false, false, nil
	}
	return entry.value, true, nil
}

func (m *memoryBackend) set(_ context.Context, key string, value bool) error {
	if m.ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *memoryBackend) deleteUser(_ context.Context, userID string) error {
	suffix := "|" + userID
	m.mu.Lock()
	for k := range m.entries {
		if strings.HasSuffix(k, suffix) {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *memoryBackend) flush(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

func (m *memoryBackend) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

type redisBackend struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisDecisionCache shares decisions between API replicas. Keys live under
// prefix and expire server side after ttl; a TTL of zero disables caching.
func NewRedisDecisionCache(client redis.Cmdable, prefix string, ttl time.Duration) *DecisionCache {
	return &DecisionCache{backend: &redisBackend{client: client, prefix: prefix, ttl: ttl}}
}

func (r *redisBackend) get(ctx context.Context, key string) (bool, bool, error) {
	if r.ttl <= 0 {
		return false, false, nil
	}
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

func (r *redisBackend) set(ctx context.Context, key string, value bool) error {
	if r.ttl <= 0 {
		return nil
	}
	v := "0"
	if value {
		v = "1"
	}
	return r.client.Set(ctx, r.prefix+key, v, r.ttl).Err()
}

func (r *redisBackend) deleteUser(ctx context.Context, userID string) error {
	return r.deleteMatching(ctx, r.prefix+"*|"+userID)
}

func (r *redisBackend) flush(ctx context.Context) error {
	return r.deleteMatching(ctx, r.prefix+"*")
}

func (r *redisBackend) deleteMatching(ctx context.Context, pattern string) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
