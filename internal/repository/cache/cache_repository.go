package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/domain/repository"
	"github.com/siting-service/internal/pkg/errors"
)

const (
	coverageKeyPrefix = "coverage:"
	lockKeyPrefix     = "lock:"
)

// снимает блокировку, только если её держит владелец токена
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type cacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewCacheRepository(redis *Redis) repository.CacheRepository {
	return &cacheRepository{
		client: redis.Client(),
		logger: redis.logger,
	}
}

func (r *cacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		r.logger.Error("Failed to get from cache", zap.String("key", key), zap.Error(err))
		return nil, errors.ErrCacheError.Wrap(err).Withf("get %s", key)
	}

	r.logger.Debug("Cache hit", zap.String("key", key))
	return val, nil
}

func (r *cacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Error("Failed to set cache", zap.String("key", key), zap.Error(err))
		return errors.ErrCacheError.Wrap(err).Withf("set %s", key)
	}

	r.logger.Debug("Cache set", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (r *cacheRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("Failed to delete from cache", zap.String("key", key), zap.Error(err))
		return errors.ErrCacheError.Wrap(err).Withf("delete %s", key)
	}

	r.logger.Debug("Cache deleted", zap.String("key", key))
	return nil
}

// GetCoverage получает артефакт покрытия из кеша
func (r *cacheRepository) GetCoverage(ctx context.Context, key domain.CoverageKey) (*domain.CoverageArtifact, error) {
	data, err := r.Get(ctx, coverageKeyPrefix+key.String())
	if err != nil || data == nil {
		return nil, err
	}

	var artifact domain.CoverageArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		// битая запись считается промахом, её перезапишет следующее построение
		r.logger.Warn("Failed to unmarshal coverage from cache",
			zap.String("key", key.String()),
			zap.Error(err))
		return nil, nil
	}
	artifact.Normalize()

	return &artifact, nil
}

// SetCoverage сохраняет артефакт покрытия в кеше
func (r *cacheRepository) SetCoverage(ctx context.Context, artifact *domain.CoverageArtifact, ttl time.Duration) error {
	data, err := json.Marshal(artifact)
	if err != nil {
		r.logger.Error("Failed to marshal coverage", zap.Error(err))
		return fmt.Errorf("marshal coverage: %w", err)
	}

	return r.Set(ctx, coverageKeyPrefix+artifact.Key.String(), data, ttl)
}

// AcquireLock - SET NX с уникальным токеном владельца
func (r *cacheRepository) AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, lockKeyPrefix+name, token, ttl).Result()
	if err != nil {
		r.logger.Error("Failed to acquire lock", zap.String("lock", name), zap.Error(err))
		return "", false, errors.ErrCacheError.Wrap(err).Withf("acquire lock %s", name)
	}
	if !ok {
		return "", false, nil
	}

	r.logger.Debug("Lock acquired", zap.String("lock", name), zap.Duration("ttl", ttl))
	return token, true, nil
}

// ReleaseLock снимает блокировку; чужая или истёкшая блокировка не трогается
func (r *cacheRepository) ReleaseLock(ctx context.Context, name, token string) error {
	res, err := releaseScript.Run(ctx, r.client, []string{lockKeyPrefix + name}, token).Int()
	if err != nil {
		r.logger.Error("Failed to release lock", zap.String("lock", name), zap.Error(err))
		return errors.ErrCacheError.Wrap(err).Withf("release lock %s", name)
	}
	if res == 0 {
		r.logger.Warn("Lock was not held by this owner", zap.String("lock", name))
	}
	return nil
}
