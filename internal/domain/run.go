package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepResult — результат выполнения одного шага в рамках одного run.
//
// Для каждого шага создаётся ровно один StepResult за run:
// либо с данными выполненной команды, либо со статусом SKIPPED/CANCELLED.
type StepResult struct {
	// StepID — ID шага из Workflow.
	StepID string `json:"step_id"`

	// Status — терминальный статус шага.
	Status StepStatus `json:"status"`

	// ExitCode — код завершения команды. -1, если процесс не запускался
	// или был прерван до завершения.
	ExitCode int `json:"exit_code"`

	// Stdout — захваченный stdout команды (последней попытки).
	Stdout string `json:"stdout,omitempty"`

	// Stderr — захваченный stderr команды (последней попытки).
	Stderr string `json:"stderr,omitempty"`

	// Message — пояснение для статусов без запуска команды
	// (причина skip, текст ошибки резолвинга, таймаут).
	Message string `json:"message,omitempty"`

	// StartedAt — время начала последней попытки.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения последней попытки.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Attempts — сколько попыток было сделано суммарно.
	// 0 для шагов, которые не запускались (SKIPPED/CANCELLED).
	Attempts int `json:"attempts"`
}

// Duration возвращает продолжительность последней попытки.
func (r *StepResult) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// Run — результат одного выполнения workflow.
//
// Run и его StepResults — единственное изменяемое состояние одного запуска.
// Создаются заново на каждый вызов движка и никогда не переиспользуются.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// WorkflowID — ссылка на выполненный workflow.
	WorkflowID uuid.UUID `json:"workflow_id"`

	// WorkflowName — имя workflow (копия для удобства выборок из истории).
	WorkflowName string `json:"workflow_name,omitempty"`

	// Status — итоговый статус run.
	Status RunStatus `json:"status"`

	// DryRun — true, если run выполнялся без запуска реальных команд.
	DryRun bool `json:"dry_run,omitempty"`

	// Results — результаты шагов (stepID → StepResult).
	// Каждый ключ записывается ровно один раз.
	Results map[string]*StepResult `json:"results"`

	// Variables — снимок переменных, с которыми выполнялся run
	// (переменные workflow, перекрытые входными).
	Variables map[string]string `json:"variables,omitempty"`

	// Error — текст фатальной ошибки (валидация графа и т.п.).
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт новый Run в статусе PENDING.
func NewRun(wf *Workflow, variables map[string]string, dryRun bool) *Run {
	return &Run{
		ID:           uuid.New(),
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		Status:       RunStatusPending,
		DryRun:       dryRun,
		Results:      make(map[string]*StepResult, len(wf.Steps)),
		Variables:    variables,
		CreatedAt:    time.Now(),
	}
}

// Duration возвращает продолжительность выполнения run.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// Finish фиксирует терминальный статус run.
func (r *Run) Finish(status RunStatus) {
	now := time.Now()
	r.Status = status
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с текстом ошибки.
func (r *Run) MarkFailed(errMsg string) {
	r.Finish(RunStatusFailed)
	r.Error = errMsg
}

// Aggregate вычисляет итоговый статус run по результатам шагов.
//
// Правила:
//   - cancelled=true → CANCELLED
//   - хотя бы один FAILED/TIMED_OUT → PARTIAL_FAILURE
//   - иначе → SUCCEEDED (SKIPPED шаги успеху не мешают)
func (r *Run) Aggregate(cancelled bool) RunStatus {
	if cancelled {
		return RunStatusCancelled
	}
	for _, res := range r.Results {
		switch res.Status {
		case StepStatusFailed, StepStatusTimedOut:
			return RunStatusPartialFailure
		case StepStatusCancelled:
			return RunStatusCancelled
		}
	}
	return RunStatusSucceeded
}
