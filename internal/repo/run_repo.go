package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Runbook/internal/domain"
)

// RunRepo — репозиторий истории runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	variablesJSON, err := json.Marshal(run.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}

	query := `
		INSERT INTO runs (id, workflow_id, workflow_name, status, dry_run,
		                  variables, error, started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.WorkflowID,
		nullString(run.WorkflowName),
		run.Status,
		run.DryRun,
		variablesJSON,
		nullString(run.Error),
		run.StartedAt,
		run.FinishedAt,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Update обновляет статус и итог run.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	query := `
		UPDATE runs
		SET status = $2, error = $3, started_at = $4, finished_at = $5
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		nullString(run.Error),
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveStepResult сохраняет (или перезаписывает) результат шага.
func (r *RunRepo) SaveStepResult(ctx context.Context, runID uuid.UUID, result *domain.StepResult) error {
	query := `
		INSERT INTO step_results (run_id, step_id, status, exit_code, stdout, stderr,
		                          message, attempts, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, step_id) DO UPDATE
		SET status = EXCLUDED.status, exit_code = EXCLUDED.exit_code,
		    stdout = EXCLUDED.stdout, stderr = EXCLUDED.stderr,
		    message = EXCLUDED.message, attempts = EXCLUDED.attempts,
		    started_at = EXCLUDED.started_at, finished_at = EXCLUDED.finished_at
	`
	_, err := r.pool.Exec(ctx, query,
		runID,
		result.StepID,
		result.Status,
		result.ExitCode,
		result.Stdout,
		result.Stderr,
		nullString(result.Message),
		result.Attempts,
		result.StartedAt,
		result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save step result: %w", err)
	}
	return nil
}

// GetByID возвращает run вместе с результатами шагов.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT id, workflow_id, workflow_name, status, dry_run, variables,
		       error, started_at, finished_at, created_at
		FROM runs
		WHERE id = $1
	`
	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	results, err := r.stepResults(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Results = results

	return run, nil
}

// List возвращает runs без результатов шагов (для списков истории).
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	query := `
		SELECT id, workflow_id, workflow_name, status, dry_run, variables,
		       error, started_at, finished_at, created_at
		FROM runs
		WHERE ($1::uuid IS NULL OR workflow_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::text IS NULL OR workflow_name = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.WorkflowID),
		nullString(string(filter.Status)),
		nullString(filter.WorkflowName),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListFinishedSince возвращает завершённые runs не старше since.
// Используется подсистемой рекомендаций.
func (r *RunRepo) ListFinishedSince(ctx context.Context, filter HistoryFilter) ([]domain.Run, error) {
	query := `
		SELECT id, workflow_id, workflow_name, status, dry_run, variables,
		       error, started_at, finished_at, created_at
		FROM runs
		WHERE finished_at IS NOT NULL
		  AND finished_at >= $1
		ORDER BY finished_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, filter.Since, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("list finished runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// stepResults загружает результаты шагов одного run.
func (r *RunRepo) stepResults(ctx context.Context, runID uuid.UUID) (map[string]*domain.StepResult, error) {
	query := `
		SELECT step_id, status, exit_code, stdout, stderr, message,
		       attempts, started_at, finished_at
		FROM step_results
		WHERE run_id = $1
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list step results: %w", err)
	}
	defer rows.Close()

	results := make(map[string]*domain.StepResult)
	for rows.Next() {
		var res domain.StepResult
		var message *string

		err := rows.Scan(
			&res.StepID,
			&res.Status,
			&res.ExitCode,
			&res.Stdout,
			&res.Stderr,
			&message,
			&res.Attempts,
			&res.StartedAt,
			&res.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan step result: %w", err)
		}
		if message != nil {
			res.Message = *message
		}
		results[res.StepID] = &res
	}
	return results, rows.Err()
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	WorkflowID   *uuid.UUID
	WorkflowName string
	Status       domain.RunStatus
	Limit        int
	Offset       int
}

// HistoryFilter — параметры выборки истории для рекомендаций.
type HistoryFilter struct {
	Since time.Time
	Limit int
}

// scanRun сканирует одну строку в Run.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var variablesJSON []byte
	var workflowName *string
	var runError *string

	err := row.Scan(
		&run.ID,
		&run.WorkflowID,
		&workflowName,
		&run.Status,
		&run.DryRun,
		&variablesJSON,
		&runError,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if variablesJSON != nil {
		if err := json.Unmarshal(variablesJSON, &run.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables: %w", err)
		}
	}

	if workflowName != nil {
		run.WorkflowName = *workflowName
	}
	if runError != nil {
		run.Error = *runError
	}

	return &run, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}

// nullInt возвращает nil для нуля.
func nullInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
