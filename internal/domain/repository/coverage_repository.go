package repository

import (
	"context"

	"github.com/siting-service/internal/domain"
)

// CoverageRepository - хранилище артефактов покрытия
type CoverageRepository interface {
	// Save сохраняет артефакт. Повторное сохранение по тому же ключу заменяет предыдущий.
	Save(ctx context.Context, artifact *domain.CoverageArtifact) error

	// GetByKey возвращает артефакт; ErrCoverageNotFound если его нет
	GetByKey(ctx context.Context, key domain.CoverageKey) (*domain.CoverageArtifact, error)

	// Exists проверяет наличие артефакта по ключу
	Exists(ctx context.Context, key domain.CoverageKey) (bool, error)

	// ListKeys возвращает ключи всех сохранённых артефактов региона
	ListKeys(ctx context.Context, region string) ([]domain.CoverageKey, error)

	// Delete удаляет артефакт
	Delete(ctx context.Context, key domain.CoverageKey) error
}
