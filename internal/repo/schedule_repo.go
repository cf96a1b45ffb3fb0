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

// ScheduleRepo — репозиторий расписаний.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Create создаёт новый schedule.
func (r *ScheduleRepo) Create(ctx context.Context, schedule *domain.Schedule) error {
	workflowJSON, err := json.Marshal(schedule.Workflow)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}
	variablesJSON, err := json.Marshal(schedule.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}

	query := `
		INSERT INTO schedules (id, name, workflow, cron_expr, interval_sec, timezone,
		                       enabled, variables, next_due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.pool.Exec(ctx, query,
		schedule.ID,
		nullString(schedule.Name),
		workflowJSON,
		nullString(schedule.CronExpr),
		nullInt(schedule.IntervalSec),
		schedule.Timezone,
		schedule.Enabled,
		variablesJSON,
		schedule.NextDueAt,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetByID возвращает schedule по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	query := scheduleSelect + ` WHERE id = $1`
	return scanSchedule(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список schedules.
func (r *ScheduleRepo) List(ctx context.Context, filter ScheduleFilter) ([]domain.Schedule, error) {
	query := scheduleSelect + `
		WHERE ($1::boolean IS NULL OR enabled = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, filter.Enabled, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

// ListDue возвращает включённые schedules, у которых подошло время запуска.
func (r *ScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	query := scheduleSelect + `
		WHERE enabled = true
		  AND next_due_at IS NOT NULL
		  AND next_due_at <= $1
		ORDER BY next_due_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

// Update обновляет schedule.
func (r *ScheduleRepo) Update(ctx context.Context, schedule *domain.Schedule) error {
	workflowJSON, err := json.Marshal(schedule.Workflow)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}
	variablesJSON, err := json.Marshal(schedule.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}

	query := `
		UPDATE schedules
		SET name = $2, workflow = $3, cron_expr = $4, interval_sec = $5,
		    timezone = $6, enabled = $7, variables = $8, next_due_at = $9,
		    last_run_at = $10, last_run_id = $11, updated_at = $12
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		schedule.ID,
		nullString(schedule.Name),
		workflowJSON,
		nullString(schedule.CronExpr),
		nullInt(schedule.IntervalSec),
		schedule.Timezone,
		schedule.Enabled,
		variablesJSON,
		schedule.NextDueAt,
		schedule.LastRunAt,
		schedule.LastRunID,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет schedule.
func (r *ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// ScheduleFilter — параметры фильтрации schedules.
type ScheduleFilter struct {
	Enabled *bool
	Limit   int
	Offset  int
}

const scheduleSelect = `
	SELECT id, name, workflow, cron_expr, interval_sec, timezone, enabled,
	       variables, next_due_at, last_run_at, last_run_id, created_at, updated_at
	FROM schedules
`

// scanSchedule сканирует одну строку в Schedule.
func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var schedule domain.Schedule
	var name *string
	var workflowJSON []byte
	var cronExpr *string
	var intervalSec *int
	var variablesJSON []byte

	err := row.Scan(
		&schedule.ID,
		&name,
		&workflowJSON,
		&cronExpr,
		&intervalSec,
		&schedule.Timezone,
		&schedule.Enabled,
		&variablesJSON,
		&schedule.NextDueAt,
		&schedule.LastRunAt,
		&schedule.LastRunID,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	if err := json.Unmarshal(workflowJSON, &schedule.Workflow); err != nil {
		return nil, fmt.Errorf("unmarshal workflow: %w", err)
	}
	if variablesJSON != nil {
		if err := json.Unmarshal(variablesJSON, &schedule.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables: %w", err)
		}
	}

	if name != nil {
		schedule.Name = *name
	}
	if cronExpr != nil {
		schedule.CronExpr = *cronExpr
	}
	if intervalSec != nil {
		schedule.IntervalSec = *intervalSec
	}

	return &schedule, nil
}

func collectSchedules(rows pgx.Rows) ([]domain.Schedule, error) {
	var schedules []domain.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *schedule)
	}
	return schedules, rows.Err()
}
