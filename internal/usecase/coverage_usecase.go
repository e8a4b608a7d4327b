package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/siting-service/internal/coverage"
	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/domain/repository"
	"github.com/siting-service/internal/pkg/errors"
)

// CoverageConfig - параметры выдачи покрытия
type CoverageConfig struct {
	CacheTTL time.Duration
	// LockTTL - время жизни блокировки построения
	LockTTL time.Duration
	// LockWait - сколько ждать чужое построение
	LockWait time.Duration
	// PollInterval - как часто проверять, не закончилось ли чужое построение
	PollInterval time.Duration
}

// CoverageUseCase выдаёт артефакты покрытия: кэш -> хранилище -> построение.
// Для одного ключа одновременно идёт не больше одного построения: внутри
// процесса через singleflight, между процессами через блокировку в Redis.
type CoverageUseCase struct {
	coverageRepo repository.CoverageRepository
	cacheRepo    repository.CacheRepository
	source       repository.LocationSource
	builder      *coverage.Builder
	cfg          CoverageConfig
	group        singleflight.Group
	logger       *zap.Logger
}

// NewCoverageUseCase создает новый CoverageUseCase. cacheRepo и source могут быть nil.
func NewCoverageUseCase(
	coverageRepo repository.CoverageRepository,
	cacheRepo repository.CacheRepository,
	source repository.LocationSource,
	builder *coverage.Builder,
	cfg CoverageConfig,
	logger *zap.Logger,
) *CoverageUseCase {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = cfg.LockTTL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &CoverageUseCase{
		coverageRepo: coverageRepo,
		cacheRepo:    cacheRepo,
		source:       source,
		builder:      builder,
		cfg:          cfg,
		logger:       logger,
	}
}

// Get возвращает артефакт покрытия, при необходимости строя его
func (uc *CoverageUseCase) Get(ctx context.Context, key domain.CoverageKey) (*domain.CoverageArtifact, error) {
	if artifact := uc.fromCache(ctx, key); artifact != nil {
		return artifact, nil
	}

	artifact, err := uc.fromStore(ctx, key)
	if err != nil {
		return nil, err
	}
	if artifact != nil {
		return artifact, nil
	}

	return uc.buildOnce(ctx, key, false)
}

// Build строит артефакт заново и заменяет сохранённый
func (uc *CoverageUseCase) Build(ctx context.Context, key domain.CoverageKey) (*domain.CoverageArtifact, error) {
	return uc.buildOnce(ctx, key, true)
}

func (uc *CoverageUseCase) buildOnce(ctx context.Context, key domain.CoverageKey, force bool) (*domain.CoverageArtifact, error) {
	if uc.source == nil || uc.builder == nil {
		return nil, errors.ErrNoLocationSource.Withf("%s", key)
	}

	v, err, shared := uc.group.Do(key.String(), func() (interface{}, error) {
		return uc.buildLocked(ctx, key, force)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		uc.logger.Debug("Coverage build shared", zap.String("key", key.String()))
	}
	return v.(*domain.CoverageArtifact), nil
}

// buildLocked берёт распределённую блокировку и строит артефакт.
// Если блокировка занята, ждёт результат чужого построения.
func (uc *CoverageUseCase) buildLocked(ctx context.Context, key domain.CoverageKey, force bool) (*domain.CoverageArtifact, error) {
	if uc.cacheRepo == nil {
		return uc.build(ctx, key)
	}

	lockName := "coverage:" + key.String()
	deadline := time.Now().Add(uc.cfg.LockWait)

	for {
		token, ok, err := uc.cacheRepo.AcquireLock(ctx, lockName, uc.cfg.LockTTL)
		if err != nil {
			// без Redis координация между процессами невозможна, строим сами
			uc.logger.Warn("Failed to acquire build lock, building without it",
				zap.String("key", key.String()),
				zap.Error(err))
			return uc.build(ctx, key)
		}
		if ok {
			return uc.buildWithLock(ctx, key, force, lockName, token)
		}

		if time.Now().After(deadline) {
			return nil, errors.ErrCoverageBuildInProgress.Withf("%s: waited %s", key, uc.cfg.LockWait)
		}

		uc.logger.Debug("Coverage is being built elsewhere, waiting",
			zap.String("key", key.String()))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(uc.cfg.PollInterval):
		}

		if force {
			continue
		}
		artifact, err := uc.fromStore(ctx, key)
		if err != nil {
			return nil, err
		}
		if artifact != nil {
			return artifact, nil
		}
	}
}

func (uc *CoverageUseCase) buildWithLock(ctx context.Context, key domain.CoverageKey, force bool, lockName, token string) (*domain.CoverageArtifact, error) {
	defer func() {
		// блокировку снимаем и при отменённом контексте запроса
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := uc.cacheRepo.ReleaseLock(releaseCtx, lockName, token); err != nil {
			uc.logger.Warn("Failed to release build lock",
				zap.String("key", key.String()),
				zap.Error(err))
		}
	}()

	// пока ждали блокировку, артефакт мог построить другой процесс
	if !force {
		artifact, err := uc.fromStore(ctx, key)
		if err != nil {
			return nil, err
		}
		if artifact != nil {
			return artifact, nil
		}
	}

	return uc.build(ctx, key)
}

// build загружает исходные данные, строит, сохраняет и кэширует артефакт
func (uc *CoverageUseCase) build(ctx context.Context, key domain.CoverageKey) (*domain.CoverageArtifact, error) {
	net, err := uc.source.Network(ctx, key.Region, key.Mode)
	if err != nil {
		return nil, err
	}
	demand, err := uc.source.Demand(ctx, key.Region)
	if err != nil {
		return nil, err
	}
	supply, err := uc.source.Supply(ctx, key.Region)
	if err != nil {
		return nil, err
	}

	artifact, err := uc.builder.Build(ctx, coverage.BuildInput{
		Key:     key,
		Network: net,
		Demand:  demand,
		Supply:  supply,
	})
	if err != nil {
		return nil, err
	}

	if err := uc.coverageRepo.Save(ctx, artifact); err != nil {
		return nil, err
	}
	uc.toCache(ctx, artifact)

	return artifact, nil
}

// fromCache - ошибки кэша не критичны
func (uc *CoverageUseCase) fromCache(ctx context.Context, key domain.CoverageKey) *domain.CoverageArtifact {
	if uc.cacheRepo == nil {
		return nil
	}
	artifact, err := uc.cacheRepo.GetCoverage(ctx, key)
	if err != nil {
		uc.logger.Warn("Failed to read coverage from cache",
			zap.String("key", key.String()),
			zap.Error(err))
		return nil
	}
	if artifact != nil {
		uc.logger.Debug("Coverage cache hit", zap.String("key", key.String()))
	}
	return artifact
}

func (uc *CoverageUseCase) toCache(ctx context.Context, artifact *domain.CoverageArtifact) {
	if uc.cacheRepo == nil {
		return
	}
	if err := uc.cacheRepo.SetCoverage(ctx, artifact, uc.cfg.CacheTTL); err != nil {
		uc.logger.Warn("Failed to cache coverage",
			zap.String("key", artifact.Key.String()),
			zap.Error(err))
	}
}

// fromStore возвращает nil, nil если артефакта нет
func (uc *CoverageUseCase) fromStore(ctx context.Context, key domain.CoverageKey) (*domain.CoverageArtifact, error) {
	artifact, err := uc.coverageRepo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, errors.ErrCoverageNotFound) {
			return nil, nil
		}
		return nil, err
	}
	uc.toCache(ctx, artifact)
	return artifact, nil
}
