package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// InvalidationPublisher tells connected clients which keys went stale.
type InvalidationPublisher interface {
	PublishInvalidation(schoolID string, keys ...string)
}

// CacheService holds server-truth query results and invalidates them on writes.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	publisher  InvalidationPublisher
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service. publisher may be nil.
func NewCacheService(repo CacheRepository, metrics *MetricsService, publisher InvalidationPublisher, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, publisher: publisher, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Remember fills dest from the cache, or runs load (which must fill dest) and caches the
// result. Cache failures never fail the read. The returned bool reports a cache hit.
func (s *CacheService) Remember(ctx context.Context, key string, dest interface{}, load func(ctx context.Context) error) (bool, error) {
	if hit, err := s.Get(ctx, key, dest); err == nil && hit {
		return true, nil
	}
	if err := load(ctx); err != nil {
		return false, err
	}
	_ = s.Set(ctx, key, dest, 0)
	return false, nil
}

// Invalidate drops the given keys (glob patterns end in "*") and publishes them to the
// school's connected clients. Failures are logged; the write that triggered it already succeeded.
func (s *CacheService) Invalidate(ctx context.Context, schoolID string, keys ...string) {
	if s == nil || len(keys) == 0 {
		return
	}
	if s.Enabled() {
		var exact []string
		removed := 0
		for _, key := range keys {
			if cachekeys.IsPattern(key) {
				n, err := s.repo.DeleteByPattern(ctx, key)
				if err != nil {
					s.logger.Warn("cache invalidate failed", zap.String("pattern", key), zap.Error(err))
				}
				removed += n
				continue
			}
			exact = append(exact, key)
		}
		if len(exact) > 0 {
			if err := s.repo.Delete(ctx, exact...); err != nil {
				s.logger.Warn("cache invalidate failed", zap.Strings("keys", exact), zap.Error(err))
			} else {
				removed += len(exact)
			}
		}
		s.metrics.RecordInvalidation(removed)
	}
	if s.publisher != nil && schoolID != "" {
		s.publisher.PublishInvalidation(schoolID, keys...)
	}
}
