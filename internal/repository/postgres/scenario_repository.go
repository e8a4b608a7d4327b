package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/domain/repository"
	"github.com/siting-service/internal/pkg/errors"
)

type scenarioRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewScenarioRepository создает новый экземпляр scenario repository
func NewScenarioRepository(db *DB) repository.ScenarioRepository {
	return &scenarioRepository{
		db:     db,
		logger: db.logger,
	}
}

type runRow struct {
	ID        uuid.UUID       `db:"id"`
	Region    string          `db:"region"`
	Strategy  string          `db:"strategy"`
	Analysis  json.RawMessage `db:"analysis"`
	CreatedAt time.Time       `db:"created_at"`
}

type resultRow struct {
	RunID    uuid.UUID      `db:"run_id"`
	Mode     string         `db:"mode"`
	K        int            `db:"k"`
	Solution []byte         `db:"solution"`
	Sites    []byte         `db:"sites"`
	Error    sql.NullString `db:"error"`
}

// SaveRun сохраняет прогон и все его результаты в одной транзакции
func (r *scenarioRepository) SaveRun(ctx context.Context, run *domain.ScenarioRun) error {
	analysis := run.Analysis
	if analysis == nil {
		analysis = map[domain.TravelMode]*domain.ModeAnalysis{}
	}
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.ErrDatabaseError.Wrap(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scenario_runs (id, region, strategy, analysis, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Region, run.Strategy, analysisJSON, run.CreatedAt)
	if err != nil {
		return r.dbError("insert run", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scenario_results (
			run_id, mode, k, status, algorithm, fallback,
			covered_weight, coverage_rate, selected_sites, solution, sites, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`)
	if err != nil {
		return r.dbError("prepare results", run.ID, err)
	}
	defer stmt.Close()

	saved := 0
	for _, mode := range run.Modes() {
		for _, res := range run.Ordered(mode) {
			if err := r.insertResult(ctx, stmt, run.ID, res); err != nil {
				return r.dbError("insert result", run.ID, err)
			}
			saved++
		}
	}

	if err := tx.Commit(); err != nil {
		return r.dbError("commit run", run.ID, err)
	}

	r.logger.Info("Scenario run saved",
		zap.String("run_id", run.ID.String()),
		zap.String("region", run.Region),
		zap.Int("results", saved))
	return nil
}

func (r *scenarioRepository) insertResult(ctx context.Context, stmt *sql.Stmt, runID uuid.UUID, res *domain.ScenarioResult) error {
	sol := res.Solution
	if sol == nil {
		sol = &domain.Solution{Provenance: domain.Provenance{Status: domain.StatusInfeasible}}
	}

	solutionJSON, err := json.Marshal(sol)
	if err != nil {
		return err
	}
	sites := res.Sites
	if sites == nil {
		sites = []domain.SiteInfo{}
	}
	sitesJSON, err := json.Marshal(sites)
	if err != nil {
		return err
	}

	selected := make(pq.Int64Array, len(sol.Selected))
	for i, j := range sol.Selected {
		selected[i] = int64(j)
	}

	var errText sql.NullString
	if res.Error != "" {
		errText = sql.NullString{String: res.Error, Valid: true}
	}

	_, err = stmt.ExecContext(ctx,
		runID, string(res.Mode), res.K,
		string(sol.Provenance.Status), string(sol.Provenance.Algorithm), sol.Provenance.Fallback,
		sol.CoveredWeight, sol.CoverageRate, selected,
		solutionJSON, sitesJSON, errText,
	)
	return err
}

// GetRun загружает прогон с результатами
func (r *scenarioRepository) GetRun(ctx context.Context, id uuid.UUID) (*domain.ScenarioRun, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, region, strategy, analysis, created_at
		FROM scenario_runs
		WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrScenarioRunNotFound.Withf("%s", id)
	}
	if err != nil {
		return nil, r.dbError("get run", id, err)
	}

	var results []resultRow
	err = r.db.SelectContext(ctx, &results, `
		SELECT run_id, mode, k, solution, sites, error
		FROM scenario_results
		WHERE run_id = $1
		ORDER BY mode, k`, id)
	if err != nil {
		return nil, r.dbError("get results", id, err)
	}

	return r.assemble(row, results)
}

// LatestRuns возвращает последний прогон каждого региона из списка.
// Регионы без прогонов пропускаются.
func (r *scenarioRepository) LatestRuns(ctx context.Context, regions []string) ([]*domain.ScenarioRun, error) {
	if len(regions) == 0 {
		return []*domain.ScenarioRun{}, nil
	}

	var rows []runRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT DISTINCT ON (region) id, region, strategy, analysis, created_at
		FROM scenario_runs
		WHERE region = ANY($1)
		ORDER BY region, created_at DESC`, pq.Array(regions))
	if err != nil {
		r.logger.Error("Failed to get latest runs", zap.Strings("regions", regions), zap.Error(err))
		return nil, errors.ErrDatabaseError.Wrap(err)
	}
	if len(rows) == 0 {
		return []*domain.ScenarioRun{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID.String()
	}

	var results []resultRow
	err = r.db.SelectContext(ctx, &results, `
		SELECT run_id, mode, k, solution, sites, error
		FROM scenario_results
		WHERE run_id = ANY($1::uuid[])
		ORDER BY run_id, mode, k`, pq.Array(ids))
	if err != nil {
		r.logger.Error("Failed to get results for latest runs", zap.Error(err))
		return nil, errors.ErrDatabaseError.Wrap(err)
	}

	byRun := make(map[uuid.UUID][]resultRow, len(rows))
	for _, res := range results {
		byRun[res.RunID] = append(byRun[res.RunID], res)
	}

	runs := make([]*domain.ScenarioRun, 0, len(rows))
	for _, row := range rows {
		run, err := r.assemble(row, byRun[row.ID])
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r *scenarioRepository) assemble(row runRow, results []resultRow) (*domain.ScenarioRun, error) {
	run := &domain.ScenarioRun{
		ID:        row.ID,
		Region:    row.Region,
		Strategy:  row.Strategy,
		Results:   make(map[domain.TravelMode]map[int]*domain.ScenarioResult),
		Analysis:  make(map[domain.TravelMode]*domain.ModeAnalysis),
		CreatedAt: row.CreatedAt,
	}
	if len(row.Analysis) > 0 {
		if err := json.Unmarshal(row.Analysis, &run.Analysis); err != nil {
			return nil, errors.ErrMalformedInput.Wrap(err).Withf("analysis of run %s", row.ID)
		}
	}

	for _, res := range results {
		mode, err := domain.ParseTravelMode(res.Mode)
		if err != nil {
			return nil, errors.ErrMalformedInput.Wrap(err).Withf("run %s", row.ID)
		}
		out := &domain.ScenarioResult{
			Mode:  mode,
			K:     res.K,
			Error: res.Error.String,
		}
		if len(res.Solution) > 0 {
			out.Solution = &domain.Solution{}
			if err := json.Unmarshal(res.Solution, out.Solution); err != nil {
				return nil, errors.ErrMalformedInput.Wrap(err).Withf("solution %s K=%d of run %s", mode, res.K, row.ID)
			}
		}
		if len(res.Sites) > 0 {
			if err := json.Unmarshal(res.Sites, &out.Sites); err != nil {
				return nil, errors.ErrMalformedInput.Wrap(err).Withf("sites %s K=%d of run %s", mode, res.K, row.ID)
			}
		}
		run.Put(out)
	}
	return run, nil
}

func (r *scenarioRepository) dbError(op string, runID uuid.UUID, err error) error {
	r.logger.Error("Scenario repository error",
		zap.String("op", op),
		zap.String("run_id", runID.String()),
		zap.Error(err))
	return errors.ErrDatabaseError.Wrap(err).Withf("%s", op)
}
