package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Runbook/internal/domain"
)

// Run DTOs

// SubmitRunRequest — запрос на постановку run.
// Определение workflow передаётся целиком в теле запроса.
type SubmitRunRequest struct {
	Workflow  domain.Workflow   `json:"workflow"`
	Variables map[string]string `json:"variables,omitempty"`
	DryRun    bool              `json:"dry_run,omitempty"`
}

// StepResultResponse — результат одного шага в ответе API.
type StepResultResponse struct {
	StepID     string     `json:"step_id"`
	Status     string     `json:"status"`
	ExitCode   int        `json:"exit_code"`
	Stdout     string     `json:"stdout,omitempty"`
	Stderr     string     `json:"stderr,omitempty"`
	Message    string     `json:"message,omitempty"`
	Attempts   int        `json:"attempts"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID           uuid.UUID                     `json:"id"`
	WorkflowID   uuid.UUID                     `json:"workflow_id"`
	WorkflowName string                        `json:"workflow_name,omitempty"`
	Status       string                        `json:"status"`
	DryRun       bool                          `json:"dry_run"`
	Variables    map[string]string             `json:"variables,omitempty"`
	Results      map[string]StepResultResponse `json:"results,omitempty"`
	Error        string                        `json:"error,omitempty"`
	StartedAt    *time.Time                    `json:"started_at,omitempty"`
	FinishedAt   *time.Time                    `json:"finished_at,omitempty"`
	CreatedAt    time.Time                     `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	resp := RunResponse{
		ID:           r.ID,
		WorkflowID:   r.WorkflowID,
		WorkflowName: r.WorkflowName,
		Status:       string(r.Status),
		DryRun:       r.DryRun,
		Variables:    r.Variables,
		Error:        r.Error,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		CreatedAt:    r.CreatedAt,
	}
	if len(r.Results) > 0 {
		resp.Results = make(map[string]StepResultResponse, len(r.Results))
		for stepID, sr := range r.Results {
			resp.Results[stepID] = StepResultFromDomain(sr)
		}
	}
	return resp
}

// StepResultFromDomain конвертирует domain.StepResult в StepResultResponse.
func StepResultFromDomain(sr *domain.StepResult) StepResultResponse {
	if sr == nil {
		return StepResultResponse{}
	}
	return StepResultResponse{
		StepID:     sr.StepID,
		Status:     string(sr.Status),
		ExitCode:   sr.ExitCode,
		Stdout:     sr.Stdout,
		Stderr:     sr.Stderr,
		Message:    sr.Message,
		Attempts:   sr.Attempts,
		StartedAt:  sr.StartedAt,
		FinishedAt: sr.FinishedAt,
	}
}

// Workflow DTOs

// ValidateWorkflowResponse — результат валидации workflow.
type ValidateWorkflowResponse struct {
	Valid bool   `json:"valid"`
	Steps int    `json:"steps"`
	Name  string `json:"name,omitempty"`
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string            `json:"name,omitempty"`
	Workflow    domain.Workflow   `json:"workflow"`
	CronExpr    string            `json:"cron_expr,omitempty"`
	IntervalSec int               `json:"interval_sec,omitempty"`
	Timezone    string            `json:"timezone,omitempty"`
	Enabled     bool              `json:"enabled"`
	Variables   map[string]string `json:"variables,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
// nil-поля не меняются.
type UpdateScheduleRequest struct {
	Name        *string            `json:"name,omitempty"`
	Workflow    *domain.Workflow   `json:"workflow,omitempty"`
	CronExpr    *string            `json:"cron_expr,omitempty"`
	IntervalSec *int               `json:"interval_sec,omitempty"`
	Timezone    *string            `json:"timezone,omitempty"`
	Variables   *map[string]string `json:"variables,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение расписания.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ со schedule.
type ScheduleResponse struct {
	ID           uuid.UUID         `json:"id"`
	Name         string            `json:"name,omitempty"`
	WorkflowName string            `json:"workflow_name"`
	Workflow     domain.Workflow   `json:"workflow"`
	CronExpr     string            `json:"cron_expr,omitempty"`
	IntervalSec  int               `json:"interval_sec,omitempty"`
	Timezone     string            `json:"timezone"`
	Enabled      bool              `json:"enabled"`
	Variables    map[string]string `json:"variables,omitempty"`
	NextDueAt    *time.Time        `json:"next_due_at,omitempty"`
	LastRunAt    *time.Time        `json:"last_run_at,omitempty"`
	LastRunID    *uuid.UUID        `json:"last_run_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:           s.ID,
		Name:         s.Name,
		WorkflowName: s.Workflow.Name,
		Workflow:     s.Workflow,
		CronExpr:     s.CronExpr,
		IntervalSec:  s.IntervalSec,
		Timezone:     s.Timezone,
		Enabled:      s.Enabled,
		Variables:    s.Variables,
		NextDueAt:    s.NextDueAt,
		LastRunAt:    s.LastRunAt,
		LastRunID:    s.LastRunID,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}
