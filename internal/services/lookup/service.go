package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/cache"
	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/repository"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/ClareAI/astra-receptionist-service/pkg/redisutil"
	"go.uber.org/zap"
)

// sharedCacheTTL bounds how long a resolved record lives in the shared Redis
// cache. Invalidation deletes entries eagerly; the TTL is the backstop.
const sharedCacheTTL = 30 * time.Second

// Service resolves a public slug to its active receptionist. Hits are served
// from a process-local cache, then from a shared Redis cache so one instance's
// database read serves the whole fleet. Provisioning evicts affected slugs
// through InvalidateSlug, and with Redis configured the eviction covers both
// tiers and is broadcast to every instance.
type Service struct {
	repo  repository.ReceptionistRepository
	cache *cache.ReceptionistCache
	redis redisutil.RedisServiceInterface
}

// NewService creates a lookup service. redisSvc may be nil; caching and
// invalidation then stay process-local.
func NewService(repo repository.ReceptionistRepository, recCache *cache.ReceptionistCache, redisSvc redisutil.RedisServiceInterface) *Service {
	s := &Service{
		repo:  repo,
		cache: recCache,
		redis: redisSvc,
	}

	if redisSvc != nil {
		if err := redisSvc.Subscribe(context.Background(), redisutil.InvalidationChannel, func(slug string) {
			s.cache.Invalidate(slug)
		}); err != nil {
			logger.Base().Warn("failed to subscribe to invalidation channel, cache eviction stays local",
				zap.Error(err))
		}
	}

	return s
}

// Resolve returns the unique active receptionist for slug. An inactive record
// produces the same not-found error as a missing one; existence of inactive
// records is never leaked.
func (s *Service) Resolve(ctx context.Context, slug string) (*domain.Receptionist, error) {
	if receptionist, ok := s.cache.Get(slug); ok {
		return receptionist, nil
	}

	if receptionist, ok := s.sharedGet(ctx, slug); ok {
		s.cache.Put(receptionist)
		return receptionist, nil
	}

	receptionist, err := s.repo.GetActiveBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	s.cache.Put(receptionist)
	s.sharedPut(ctx, receptionist)
	return receptionist, nil
}

// InvalidateSlug evicts slug from both cache tiers and, when Redis is
// configured, broadcasts the eviction to other instances.
func (s *Service) InvalidateSlug(ctx context.Context, slug string) {
	s.cache.Invalidate(slug)

	if s.redis == nil {
		return
	}

	key := s.redis.GenerateKey(redisutil.RECEPTIONIST_LOOKUP, slug)
	if err := s.redis.DelValue(ctx, key); err != nil {
		logger.Base().Warn("failed to evict shared cache entry",
			zap.String("slug", slug),
			zap.Error(err))
	}
	if err := s.redis.Publish(ctx, redisutil.InvalidationChannel, slug); err != nil {
		logger.Base().Warn("failed to broadcast cache invalidation",
			zap.String("slug", slug),
			zap.Error(err))
	}
}

// sharedGet reads a record from the shared Redis cache. A damaged entry is
// treated as a miss so the store stays authoritative.
func (s *Service) sharedGet(ctx context.Context, slug string) (*domain.Receptionist, bool) {
	if s.redis == nil {
		return nil, false
	}

	key := s.redis.GenerateKey(redisutil.RECEPTIONIST_LOOKUP, slug)
	raw, err := s.redis.GetValue(ctx, key)
	if err != nil {
		if !errors.Is(err, redisutil.ErrKeyNotExist) {
			logger.Base().Warn("shared cache read failed",
				zap.String("slug", slug),
				zap.Error(err))
		}
		return nil, false
	}

	var receptionist domain.Receptionist
	if err := json.Unmarshal([]byte(raw), &receptionist); err != nil {
		logger.Base().Warn("discarding damaged shared cache entry",
			zap.String("slug", slug),
			zap.Error(err))
		return nil, false
	}
	return &receptionist, true
}

// sharedPut stores a resolved record in the shared Redis cache, best-effort.
func (s *Service) sharedPut(ctx context.Context, receptionist *domain.Receptionist) {
	if s.redis == nil {
		return
	}

	data, err := json.Marshal(receptionist)
	if err != nil {
		logger.Base().Warn("failed to encode receptionist for shared cache",
			zap.String("slug", receptionist.Slug),
			zap.Error(err))
		return
	}

	key := s.redis.GenerateKey(redisutil.RECEPTIONIST_LOOKUP, receptionist.Slug)
	if err := s.redis.SetValue(ctx, key, string(data), sharedCacheTTL); err != nil {
		logger.Base().Warn("failed to store shared cache entry",
			zap.String("slug", receptionist.Slug),
			zap.Error(err))
	}
}
