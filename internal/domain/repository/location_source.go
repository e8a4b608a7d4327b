package repository

import (
	"context"

	"github.com/siting-service/internal/domain"
)

// LocationSource - источник исходных данных региона для построения покрытия
type LocationSource interface {
	// Network загружает сеть региона для режима передвижения
	Network(ctx context.Context, region string, mode domain.TravelMode) (*domain.Network, error)

	// Demand загружает точки спроса региона
	Demand(ctx context.Context, region string) ([]domain.DemandPoint, error)

	// Supply загружает кандидатов региона
	Supply(ctx context.Context, region string) ([]domain.SupplyCandidate, error)
}
