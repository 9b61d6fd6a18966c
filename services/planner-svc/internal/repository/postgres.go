package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"energia/pkg/database"
	"energia/pkg/telemetry"
)

var runValueColumns = []string{"run_id", "category", "var_key", "value"}

// PostgresRunRepository PostgreSQL реализация
type PostgresRunRepository struct {
	db database.DB
}

// NewPostgresRunRepository создаёт новый репозиторий
func NewPostgresRunRepository(db database.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

func (r *PostgresRunRepository) Create(ctx context.Context, run *Run) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRunRepository.Create")
	defer span.End()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	err := database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO runs (
				id, scenario_name, scenario_hash, objective, status,
				objective_value, solver, nodes, message,
				variables, binaries, constraints,
				compile_ms, solve_ms, cached, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`,
			run.ID,
			run.ScenarioName,
			run.ScenarioHash,
			run.Objective,
			run.Status,
			run.ObjectiveValue,
			run.Solver,
			run.Nodes,
			run.Message,
			run.Variables,
			run.Binaries,
			run.Constraints,
			run.CompileMs,
			run.SolveMs,
			run.Cached,
			run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		if len(run.Values) == 0 {
			return nil
		}

		rows := make([][]any, len(run.Values))
		for i, v := range run.Values {
			rows[i] = []any{run.ID, v.Category, v.Key, v.Value}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"run_values"}, runValueColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("failed to copy run values: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.SetError(ctx, err)
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

const runColumns = `
	id, scenario_name, scenario_hash, objective, status,
	objective_value, solver, nodes, message,
	variables, binaries, constraints,
	compile_ms, solve_ms, cached, created_at`

func scanRun(row pgx.Row) (*Run, error) {
	run := &Run{}
	err := row.Scan(
		&run.ID,
		&run.ScenarioName,
		&run.ScenarioHash,
		&run.Objective,
		&run.Status,
		&run.ObjectiveValue,
		&run.Solver,
		&run.Nodes,
		&run.Message,
		&run.Variables,
		&run.Binaries,
		&run.Constraints,
		&run.CompileMs,
		&run.SolveMs,
		&run.Cached,
		&run.CreatedAt,
	)
	return run, err
}

func (r *PostgresRunRepository) GetByID(ctx context.Context, id string) (*Run, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRunRepository.GetByID")
	defer span.End()

	if err := uuid.Validate(id); err != nil {
		return nil, ErrRunNotFound
	}

	run, err := scanRun(r.db.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT category, var_key, value
		FROM run_values
		WHERE run_id = $1
		ORDER BY category, var_key
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v Value
		if err := rows.Scan(&v.Category, &v.Key, &v.Value); err != nil {
			return nil, fmt.Errorf("failed to scan run value: %w", err)
		}
		run.Values = append(run.Values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return run, nil
}

func (r *PostgresRunRepository) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRunRepository.Delete")
	defer span.End()

	if err := uuid.Validate(id); err != nil {
		return ErrRunNotFound
	}

	// run_values удаляются каскадно
	result, err := r.db.Exec(ctx, `DELETE FROM runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRunNotFound
	}

	return nil
}

func (r *PostgresRunRepository) List(ctx context.Context, opts *ListOptions) ([]*Run, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRunRepository.List")
	defer span.End()

	opts = opts.normalize()
	where, args := buildWhereClause(opts.Filter)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM runs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM runs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		runColumns, where, len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		results = append(results, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return results, total, nil
}

func (r *PostgresRunRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func buildWhereClause(filter *ListFilter) (string, []any) {
	conditions := []string{"TRUE"}
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter != nil {
		if filter.ScenarioHash != "" {
			add("scenario_hash = $%d", filter.ScenarioHash)
		}
		if filter.ScenarioName != "" {
			add("scenario_name = $%d", filter.ScenarioName)
		}
		if filter.Status != "" {
			add("status = $%d", filter.Status)
		}
		if filter.Objective != "" {
			add("objective = $%d", filter.Objective)
		}
		if filter.Since != nil {
			add("created_at >= $%d", *filter.Since)
		}
	}

	return strings.Join(conditions, " AND "), args
}
