package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Runbook/internal/domain"
)

// StepExec выполняет шаг поверх Runner: повторные попытки,
// backoff между ними и маппинг исходов в статусы шага.
type StepExec struct {
	runner Runner
	logger *slog.Logger

	// OnAttempt, если задан, вызывается перед каждой попыткой
	// выполнения шага, включая повторные.
	OnAttempt func(stepID string, attempt int)
}

// NewStepExec создаёт StepExec.
func NewStepExec(r Runner, logger *slog.Logger) *StepExec {
	return &StepExec{runner: r, logger: logger}
}

// Execute выполняет шаг и возвращает его результат.
//
// Повтор делается только после FAILED или TIMED_OUT, с фиксированной
// паузой Retry.BackoffSec между попытками. Результат несёт данные
// последней попытки и суммарное количество попыток.
//
// Execute не возвращает ошибку: любой исход, включая отмену,
// выражается статусом результата.
func (e *StepExec) Execute(ctx context.Context, step *domain.Step, inv Invocation) *domain.StepResult {
	started := time.Now()
	result := &domain.StepResult{
		StepID:    step.ID,
		StartedAt: &started,
	}

	maxAttempts := step.MaxAttempts()
	var backoff time.Duration
	if step.Retry != nil && step.Retry.BackoffSec > 0 {
		backoff = time.Duration(step.Retry.BackoffSec * float64(time.Second))
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		if e.OnAttempt != nil {
			e.OnAttempt(step.ID, attempt)
		}

		e.logger.Debug("step attempt",
			"step_id", step.ID,
			"attempt", attempt,
			"max_attempts", maxAttempts,
		)

		out, err := e.runner.Run(ctx, inv)

		switch {
		case err != nil && ctx.Err() != nil:
			result.Status = domain.StepStatusCancelled
			result.ExitCode = -1
			result.Message = "cancelled"
			finish(result)
			return result

		case err != nil:
			// Процесс не запустился
			result.Status = domain.StepStatusFailed
			result.ExitCode = -1
			result.Stdout = ""
			result.Stderr = ""
			result.Message = err.Error()

		case out.TimedOut:
			result.Status = domain.StepStatusTimedOut
			result.ExitCode = -1
			result.Stdout = out.Stdout
			result.Stderr = out.Stderr
			result.Message = fmt.Sprintf("attempt timed out after %s", inv.Timeout)

		case out.ExitCode != 0:
			result.Status = domain.StepStatusFailed
			result.ExitCode = out.ExitCode
			result.Stdout = out.Stdout
			result.Stderr = out.Stderr
			result.Message = fmt.Sprintf("exit code %d", out.ExitCode)

		default:
			result.Status = domain.StepStatusSucceeded
			result.ExitCode = 0
			result.Stdout = out.Stdout
			result.Stderr = out.Stderr
			result.Message = ""
			finish(result)
			return result
		}

		if attempt == maxAttempts {
			break
		}

		e.logger.Warn("step attempt failed, retrying",
			"step_id", step.ID,
			"attempt", attempt,
			"status", result.Status,
			"backoff", backoff,
		)

		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				result.Status = domain.StepStatusCancelled
				result.ExitCode = -1
				result.Message = "cancelled"
				finish(result)
				return result
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			result.Status = domain.StepStatusCancelled
			result.ExitCode = -1
			result.Message = "cancelled"
			finish(result)
			return result
		}
	}

	finish(result)
	return result
}

func finish(result *domain.StepResult) {
	now := time.Now()
	result.FinishedAt = &now
}
