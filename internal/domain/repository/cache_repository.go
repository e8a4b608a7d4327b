package repository

import (
	"context"
	"time"

	"github.com/siting-service/internal/domain"
)

// CacheRepository определяет методы для работы с кешем
type CacheRepository interface {
	// Get получает значение из кеша по ключу
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение в кеше с TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete удаляет значение из кеша
	Delete(ctx context.Context, key string) error

	// GetCoverage получает артефакт покрытия; nil, nil если его нет
	GetCoverage(ctx context.Context, key domain.CoverageKey) (*domain.CoverageArtifact, error)

	// SetCoverage сохраняет артефакт покрытия с TTL
	SetCoverage(ctx context.Context, artifact *domain.CoverageArtifact, ttl time.Duration) error

	// AcquireLock пытается взять распределённую блокировку.
	// Возвращает токен и true, если блокировка получена.
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)

	// ReleaseLock снимает блокировку, только если токен совпадает
	ReleaseLock(ctx context.Context, name, token string) error
}
