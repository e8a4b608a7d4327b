package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/siting-service/internal/domain"
)

// ScenarioRepository - хранилище прогонов сценариев
type ScenarioRepository interface {
	SaveRun(ctx context.Context, run *domain.ScenarioRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*domain.ScenarioRun, error)
	// LatestRuns возвращает последний прогон для каждого региона
	LatestRuns(ctx context.Context, regions []string) ([]*domain.ScenarioRun, error)
}
