package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/weni-ai/insights/internal/common/metrics"
	"github.com/weni-ai/insights/internal/common/observability"
)

type TierConfig struct {
	// How long the short tier serves a value before it is fetched again
	ShortTTL time.Duration `validate:"gt=0"`
	// How long the long tier keeps a value around as a fallback
	LongTTL time.Duration `validate:"gtfield=ShortTTL"`
}

// Fetcher loads a value from its source of truth when neither tier has it.
type Fetcher[T any] func(ctx context.Context) (T, error)

// CacheAside serves values of type T from two tiers of a Store, falling back to an upstream fetch.
// Both tiers live in the same store under different key prefixes and are always written together.
type CacheAside[T any] struct {
	name     string
	store    Store
	config   TierConfig
	recorder observability.Recorder
	metrics  *metrics.Metrics
}

func NewCacheAside[T any](name string, store Store, config TierConfig, recorder observability.Recorder) *CacheAside[T] {
	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}
	return &CacheAside[T]{
		name:     name,
		store:    store,
		config:   config,
		recorder: recorder,
		metrics:  metrics.Get(),
	}
}

func (c *CacheAside[T]) tierKey(tier metrics.CacheTier, key string) string {
	return c.name + ":" + string(tier) + ":" + key
}

// GetFromCache returns the short tier value if present, else the long tier value.
// Store failures and unparseable payloads are logged and reported as a miss.
func (c *CacheAside[T]) GetFromCache(key string) (T, bool) {
	for _, tier := range []metrics.CacheTier{metrics.CacheTierShort, metrics.CacheTierLong} {
		if value, ok := c.getTier(tier, key); ok {
			return value, true
		}
	}
	var zero T
	return zero, false
}

func (c *CacheAside[T]) getTier(tier metrics.CacheTier, key string) (T, bool) {
	var value T
	logger := log.WithField("cache", c.name).WithField("tier", tier).WithField("key", key)

	raw, ok, err := c.store.Get(c.tierKey(tier, key))
	if err != nil {
		logger.WithError(err).Warn("cache read failed, treating as miss")
		c.metrics.RecordCacheEvent(c.name, tier, metrics.CacheEventMiss)
		return value, false
	}
	if !ok {
		c.metrics.RecordCacheEvent(c.name, tier, metrics.CacheEventMiss)
		return value, false
	}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		logger.WithError(err).Warn("corrupt cache payload, treating as miss")
		c.metrics.RecordCacheEvent(c.name, tier, metrics.CacheEventCorrupt)
		var zero T
		return zero, false
	}
	c.metrics.RecordCacheEvent(c.name, tier, metrics.CacheEventHit)
	return value, true
}

// SetToCache writes value to both tiers with their own TTLs.
func (c *CacheAside[T]) SetToCache(key string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "serialising %s cache value", c.name)
	}
	if err := c.store.Set(c.tierKey(metrics.CacheTierShort, key), string(payload), c.config.ShortTTL); err != nil {
		return errors.Wrapf(err, "writing %s short tier", c.name)
	}
	if err := c.store.Set(c.tierKey(metrics.CacheTierLong, key), string(payload), c.config.LongTTL); err != nil {
		return errors.Wrapf(err, "writing %s long tier", c.name)
	}
	return nil
}

// GetValue returns the cached value for key, or fetches, caches and returns it.
// A fetch error is reported to the recorder and returned as is. A failed cache write is logged only.
func (c *CacheAside[T]) GetValue(ctx context.Context, key string, fetch Fetcher[T]) (T, error) {
	if value, ok := c.GetFromCache(key); ok {
		return value, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		c.recorder.RecordException(ctx, err, map[string]string{
			observability.SourceTag: c.name,
			"key":                   key,
		})
		var zero T
		return zero, err
	}

	if err := c.SetToCache(key, value); err != nil {
		log.WithField("cache", c.name).WithField("key", key).WithError(err).Warn("failed to populate cache")
		c.metrics.RecordCacheWriteError(c.name)
	}
	return value, nil
}
