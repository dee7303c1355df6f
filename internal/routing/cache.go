package routing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	id "idstatus/pkg/domain"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "idstatus_routing_cache_lookups_total",
	Help: "Ownership cache lookups by result (hit, miss, error)",
}, []string{"result"})

const ownerKeyPrefix = "routing:owner:"

// ErrCacheMiss is returned by Cache.Get when nothing is stored.
var ErrCacheMiss = errors.New("routing cache miss")

// Cache stores settled owners.
type Cache interface {
	Get(ctx context.Context, ref id.ApplicationReference) (Owner, error)
	Set(ctx context.Context, ref id.ApplicationReference, owner Owner) error
}

// RedisCache is a Cache backed by Redis string keys with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache whose entries expire after ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, ref id.ApplicationReference) (Owner, error) {
	v, err := c.client.Get(ctx, ownerKeyPrefix+ref.String()).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	owner, err := ParseOwner(v)
	if err != nil || !owner.IsSettled() {
		return "", ErrCacheMiss
	}
	return owner, nil
}

// Set stores only settled owners; Unrouted must be re-asked every time.
func (c *RedisCache) Set(ctx context.Context, ref id.ApplicationReference, owner Owner) error {
	if !owner.IsSettled() {
		return nil
	}
	return c.client.Set(ctx, ownerKeyPrefix+ref.String(), owner.String(), c.ttl).Err()
}

// CachedClassifier consults a Cache before the wrapped Classifier. Cache
// failures degrade to a direct lookup.
type CachedClassifier struct {
	next   Classifier
	cache  Cache
	logger *slog.Logger
}

// NewCachedClassifier decorates next with cache.
func NewCachedClassifier(next Classifier, cache Cache, logger *slog.Logger) *CachedClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClassifier{next: next, cache: cache, logger: logger}
}

func (c *CachedClassifier) Classify(ctx context.Context, ref id.ApplicationReference) (Owner, error) {
	owner, err := c.cache.Get(ctx, ref)
	switch {
	case err == nil:
		cacheLookups.WithLabelValues("hit").Inc()
		return owner, nil
	case errors.Is(err, ErrCacheMiss):
		cacheLookups.WithLabelValues("miss").Inc()
	default:
		cacheLookups.WithLabelValues("error").Inc()
		c.logger.WarnContext(ctx, "routing cache read failed", "error", err)
	}

	owner, err = c.next.Classify(ctx, ref)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(ctx, ref, owner); err != nil {
		c.logger.WarnContext(ctx, "routing cache write failed", "error", err)
	}
	return owner, nil
}
