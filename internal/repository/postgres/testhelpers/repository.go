package testhelpers

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/siting-service/internal/domain/repository"
	"github.com/siting-service/internal/repository/postgres"
)

// NewDBForTest creates a postgres.DB with test database and logger
func NewDBForTest(db *sqlx.DB, logger *zap.Logger) *postgres.DB {
	return postgres.NewDBForTest(db, logger)
}

// NewCoverageRepositoryForTest creates a coverage repository with test database and logger
func NewCoverageRepositoryForTest(db *sqlx.DB, logger *zap.Logger) repository.CoverageRepository {
	return postgres.NewCoverageRepository(NewDBForTest(db, logger))
}

// NewScenarioRepositoryForTest creates a scenario repository with test database and logger
func NewScenarioRepositoryForTest(db *sqlx.DB, logger *zap.Logger) repository.ScenarioRepository {
	return postgres.NewScenarioRepository(NewDBForTest(db, logger))
}
