package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Runbook/internal/domain"
	"github.com/shaiso/Runbook/internal/repo"
)

// persistTimeout — предел на одну запись в БД из sink.
const persistTimeout = 5 * time.Second

// persistSink сохраняет статус run и результаты шагов в БД по ходу
// выполнения. Ошибки записи логируются и не прерывают run: итоговое
// состояние всё равно будет записано при завершении.
type persistSink struct {
	runRepo *repo.RunRepo
	logger  *slog.Logger
}

func newPersistSink(runRepo *repo.RunRepo, logger *slog.Logger) *persistSink {
	return &persistSink{runRepo: runRepo, logger: logger}
}

func (s *persistSink) RunStarted(run *domain.Run) {
	s.updateRun(run)
}

func (s *persistSink) StepStarted(run *domain.Run, stepID string, attempt int) {}

func (s *persistSink) StepFinished(run *domain.Run, result *domain.StepResult) {
	s.saveStepResult(run, result)
}

func (s *persistSink) StepSkipped(run *domain.Run, result *domain.StepResult) {
	s.saveStepResult(run, result)
}

func (s *persistSink) RunFinished(run *domain.Run) {
	s.updateRun(run)
}

func (s *persistSink) updateRun(run *domain.Run) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.runRepo.Update(ctx, run); err != nil {
		s.logger.Error("failed to persist run",
			"run_id", run.ID,
			"status", run.Status,
			"error", err,
		)
	}
}

func (s *persistSink) saveStepResult(run *domain.Run, result *domain.StepResult) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.runRepo.SaveStepResult(ctx, run.ID, result); err != nil {
		s.logger.Error("failed to persist step result",
			"run_id", run.ID,
			"step_id", result.StepID,
			"error", err,
		)
	}
}
