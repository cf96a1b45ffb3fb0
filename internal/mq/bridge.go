package mq

import (
	"context"
	"log/slog"

	"github.com/shaiso/Runbook/internal/domain"
)

// EventBridge транслирует события планировщика в RabbitMQ.
// Реализует orchestrator.EventSink.
//
// Публикация — best-effort: ошибка публикации логируется и не
// останавливает выполнение run.
type EventBridge struct {
	publisher *Publisher
	logger    *slog.Logger
}

// NewEventBridge создаёт EventBridge.
func NewEventBridge(publisher *Publisher, logger *slog.Logger) *EventBridge {
	return &EventBridge{publisher: publisher, logger: logger}
}

func (b *EventBridge) RunStarted(run *domain.Run) {}

func (b *EventBridge) RunFinished(run *domain.Run) {
	payload := RunFinishedPayload{
		RunID:        run.ID,
		WorkflowName: run.WorkflowName,
		Status:       run.Status,
		Error:        run.Error,
		DurationSec:  run.Duration().Seconds(),
	}
	if err := b.publisher.PublishRunFinished(context.Background(), payload); err != nil {
		b.logger.Warn("failed to publish run.finished",
			"run_id", run.ID,
			"error", err,
		)
	}
}

func (b *EventBridge) StepStarted(run *domain.Run, stepID string, attempt int) {
	b.publishStep(run, StepEventPayload{
		RunID:    run.ID,
		StepID:   stepID,
		Phase:    "started",
		Attempts: attempt,
	})
}

func (b *EventBridge) StepFinished(run *domain.Run, result *domain.StepResult) {
	b.publishStep(run, StepEventPayload{
		RunID:    run.ID,
		StepID:   result.StepID,
		Phase:    "finished",
		Status:   result.Status,
		ExitCode: result.ExitCode,
		Attempts: result.Attempts,
		Message:  result.Message,
	})
}

func (b *EventBridge) StepSkipped(run *domain.Run, result *domain.StepResult) {
	b.publishStep(run, StepEventPayload{
		RunID:   run.ID,
		StepID:  result.StepID,
		Phase:   "skipped",
		Status:  result.Status,
		Message: result.Message,
	})
}

func (b *EventBridge) publishStep(run *domain.Run, payload StepEventPayload) {
	if err := b.publisher.PublishStepEvent(context.Background(), payload); err != nil {
		b.logger.Warn("failed to publish step event",
			"run_id", run.ID,
			"step_id", payload.StepID,
			"phase", payload.Phase,
			"error", err,
		)
	}
}
