package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/domain/repository"
	"github.com/siting-service/internal/pkg/errors"
)

type coverageRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCoverageRepository создает новый экземпляр coverage repository
func NewCoverageRepository(db *DB) repository.CoverageRepository {
	return &coverageRepository{
		db:     db,
		logger: db.logger,
	}
}

// coverageRow - строка coverage_relations
type coverageRow struct {
	ID             uuid.UUID       `db:"id"`
	Region         string          `db:"region"`
	Mode           string          `db:"mode"`
	TimeBudgetMin  float64         `db:"time_budget_min"`
	NetworkNodes   int             `db:"network_nodes"`
	NetworkEdges   int             `db:"network_edges"`
	NumDemand      int             `db:"num_demand"`
	NumSupply      int             `db:"num_supply"`
	TotalLinks     int             `db:"total_links"`
	DemandMetadata json.RawMessage `db:"demand_metadata"`
	SupplyMetadata json.RawMessage `db:"supply_metadata"`
	Warnings       json.RawMessage `db:"warnings"`
	CreatedAt      time.Time       `db:"created_at"`
}

type linkRow struct {
	DemandIndex   int           `db:"demand_index"`
	SupplyIndices pq.Int64Array `db:"supply_indices"`
}

// Save сохраняет артефакт в одной транзакции, заменяя прежний с тем же ключом
func (r *coverageRepository) Save(ctx context.Context, artifact *domain.CoverageArtifact) error {
	if err := artifact.Validate(); err != nil {
		return errors.ErrInvalidRelation.Wrap(err)
	}
	if artifact.ID == uuid.Nil {
		artifact.ID = uuid.New()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}

	demand, err := json.Marshal(artifact.Demand)
	if err != nil {
		return fmt.Errorf("marshal demand metadata: %w", err)
	}
	supply, err := json.Marshal(artifact.Supply)
	if err != nil {
		return fmt.Errorf("marshal supply metadata: %w", err)
	}
	warnings := artifact.Warnings
	if warnings == nil {
		warnings = []domain.Warning{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.ErrDatabaseError.Wrap(err)
	}
	defer tx.Rollback()

	key := artifact.Key
	_, err = tx.ExecContext(ctx, `
		DELETE FROM coverage_relations
		WHERE region = $1 AND mode = $2 AND time_budget_min = $3`,
		key.Region, string(key.Mode), key.TimeBudgetMin)
	if err != nil {
		return r.dbError("delete previous coverage", key, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO coverage_relations (
			id, region, mode, time_budget_min, network_nodes, network_edges,
			num_demand, num_supply, total_links,
			demand_metadata, supply_metadata, warnings, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		artifact.ID, key.Region, string(key.Mode), key.TimeBudgetMin,
		artifact.Network.Nodes, artifact.Network.Edges,
		artifact.NumDemand(), artifact.NumSupply(), artifact.Relation.Links(),
		demand, supply, warningsJSON, artifact.CreatedAt,
	)
	if err != nil {
		return r.dbError("insert coverage", key, err)
	}

	if err := r.insertLinks(ctx, tx, artifact); err != nil {
		return r.dbError("insert coverage links", key, err)
	}

	if err := tx.Commit(); err != nil {
		return r.dbError("commit coverage", key, err)
	}

	r.logger.Info("Coverage relation saved",
		zap.String("key", key.String()),
		zap.String("id", artifact.ID.String()),
		zap.Int("links", artifact.Relation.Links()))
	return nil
}

func (r *coverageRepository) insertLinks(ctx context.Context, tx *sqlx.Tx, artifact *domain.CoverageArtifact) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO coverage_links (relation_id, demand_index, supply_indices)
		VALUES ($1, $2, $3)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, covers := range artifact.Relation.Covers {
		if len(covers) == 0 {
			continue
		}
		indices := make(pq.Int64Array, len(covers))
		for n, j := range covers {
			indices[n] = int64(j)
		}
		if _, err := stmt.ExecContext(ctx, artifact.ID, i, indices); err != nil {
			return err
		}
	}
	return nil
}

// GetByKey восстанавливает артефакт целиком из хранилища
func (r *coverageRepository) GetByKey(ctx context.Context, key domain.CoverageKey) (*domain.CoverageArtifact, error) {
	var row coverageRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, region, mode, time_budget_min, network_nodes, network_edges,
		       num_demand, num_supply, total_links,
		       demand_metadata, supply_metadata, warnings, created_at
		FROM coverage_relations
		WHERE region = $1 AND mode = $2 AND time_budget_min = $3`,
		key.Region, string(key.Mode), key.TimeBudgetMin)
	if err == sql.ErrNoRows {
		return nil, errors.ErrCoverageNotFound.Withf("%s", key)
	}
	if err != nil {
		return nil, r.dbError("get coverage", key, err)
	}

	var links []linkRow
	err = r.db.SelectContext(ctx, &links, `
		SELECT demand_index, supply_indices
		FROM coverage_links
		WHERE relation_id = $1
		ORDER BY demand_index`, row.ID)
	if err != nil {
		return nil, r.dbError("get coverage links", key, err)
	}

	artifact, err := row.toDomain(links)
	if err != nil {
		return nil, errors.ErrMalformedInput.Wrap(err).Withf("stored coverage %s", key)
	}
	return artifact, nil
}

func (row *coverageRow) toDomain(links []linkRow) (*domain.CoverageArtifact, error) {
	mode, err := domain.ParseTravelMode(row.Mode)
	if err != nil {
		return nil, err
	}

	a := &domain.CoverageArtifact{
		ID: row.ID,
		Key: domain.CoverageKey{
			Region:        row.Region,
			Mode:          mode,
			TimeBudgetMin: row.TimeBudgetMin,
		},
		Relation: domain.NewCoverageRelation(row.NumDemand),
		Network: domain.NetworkSummary{
			Nodes:            row.NetworkNodes,
			Edges:            row.NetworkEdges,
			MaxTravelTimeMin: row.TimeBudgetMin,
		},
		CreatedAt: row.CreatedAt,
	}
	if err := json.Unmarshal(row.DemandMetadata, &a.Demand); err != nil {
		return nil, fmt.Errorf("demand metadata: %w", err)
	}
	if err := json.Unmarshal(row.SupplyMetadata, &a.Supply); err != nil {
		return nil, fmt.Errorf("supply metadata: %w", err)
	}
	if err := json.Unmarshal(row.Warnings, &a.Warnings); err != nil {
		return nil, fmt.Errorf("warnings: %w", err)
	}

	for _, l := range links {
		if l.DemandIndex < 0 || l.DemandIndex >= row.NumDemand {
			return nil, fmt.Errorf("link for demand index %d outside [0, %d)", l.DemandIndex, row.NumDemand)
		}
		covers := make([]int32, len(l.SupplyIndices))
		for n, j := range l.SupplyIndices {
			covers[n] = int32(j)
		}
		a.Relation.Covers[l.DemandIndex] = covers
	}
	for i, c := range a.Relation.Covers {
		if c == nil {
			a.Relation.Covers[i] = []int32{}
		}
	}

	a.Normalize()
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Exists проверяет наличие артефакта
func (r *coverageRepository) Exists(ctx context.Context, key domain.CoverageKey) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM coverage_relations
			WHERE region = $1 AND mode = $2 AND time_budget_min = $3
		)`,
		key.Region, string(key.Mode), key.TimeBudgetMin)
	if err != nil {
		return false, r.dbError("check coverage", key, err)
	}
	return exists, nil
}

// ListKeys возвращает ключи артефактов региона
func (r *coverageRepository) ListKeys(ctx context.Context, region string) ([]domain.CoverageKey, error) {
	var rows []struct {
		Mode          string  `db:"mode"`
		TimeBudgetMin float64 `db:"time_budget_min"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT mode, time_budget_min
		FROM coverage_relations
		WHERE region = $1
		ORDER BY mode, time_budget_min`, region)
	if err != nil {
		r.logger.Error("Failed to list coverage keys", zap.String("region", region), zap.Error(err))
		return nil, errors.ErrDatabaseError.Wrap(err)
	}

	keys := make([]domain.CoverageKey, 0, len(rows))
	for _, row := range rows {
		mode, err := domain.ParseTravelMode(row.Mode)
		if err != nil {
			r.logger.Warn("Skipping coverage with unknown mode",
				zap.String("region", region),
				zap.String("mode", row.Mode))
			continue
		}
		keys = append(keys, domain.CoverageKey{Region: region, Mode: mode, TimeBudgetMin: row.TimeBudgetMin})
	}
	return keys, nil
}

// Delete удаляет артефакт; связи удаляются каскадно
func (r *coverageRepository) Delete(ctx context.Context, key domain.CoverageKey) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM coverage_relations
		WHERE region = $1 AND mode = $2 AND time_budget_min = $3`,
		key.Region, string(key.Mode), key.TimeBudgetMin)
	if err != nil {
		return r.dbError("delete coverage", key, err)
	}
	return nil
}

func (r *coverageRepository) dbError(op string, key domain.CoverageKey, err error) error {
	r.logger.Error("Coverage repository error",
		zap.String("op", op),
		zap.String("key", key.String()),
		zap.Error(err))
	return errors.ErrDatabaseError.Wrap(err).Withf("%s", op)
}
