package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Runbook/internal/domain"
	"github.com/shaiso/Runbook/internal/engine"
	"github.com/shaiso/Runbook/internal/mq"
	"github.com/shaiso/Runbook/internal/repo"
)

// Scheduler — планировщик, обрабатывающий due schedules.
type Scheduler struct {
	scheduleRepo *repo.ScheduleRepo
	runRepo      *repo.RunRepo
	publisher    *mq.Publisher
	logger       *slog.Logger
	batchSize    int
}

// Config — конфигурация Scheduler.
type Config struct {
	ScheduleRepo *repo.ScheduleRepo
	RunRepo      *repo.RunRepo
	Publisher    *mq.Publisher
	Logger       *slog.Logger
	BatchSize    int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Scheduler{
		scheduleRepo: cfg.ScheduleRepo,
		runRepo:      cfg.RunRepo,
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
		batchSize:    batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Для каждого schedule создаёт запись run
// 3. Обновляет next_due_at
// 4. Публикует run.requested в RabbitMQ
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	schedules, err := s.scheduleRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	var processed int
	for i := range schedules {
		sched := &schedules[i]

		if err := s.processSchedule(ctx, sched, now); err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}
		processed++
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"processed", processed,
	)

	return nil
}

// processSchedule обрабатывает один schedule: переносит next_due_at,
// создаёт run и публикует заявку на выполнение.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) error {
	// 1. Определение в schedule валидируем до создания run:
	// сломанное определение не должно плодить FAILED runs каждый тик
	if err := engine.Validate(&sched.Workflow); err != nil {
		s.logger.Warn("schedule has invalid workflow, disabling",
			"schedule_id", sched.ID,
			"error", err,
		)
		sched.Enabled = false
		sched.UpdatedAt = now
		return s.scheduleRepo.Update(ctx, sched)
	}

	// 2. Вычисляем следующее время запуска
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		s.logger.Error("failed to calculate next due, disabling schedule",
			"schedule_id", sched.ID,
			"error", err,
		)
		sched.Enabled = false
		sched.UpdatedAt = now
		return s.scheduleRepo.Update(ctx, sched)
	}

	// 3. Создаём запись run
	run := domain.NewRun(&sched.Workflow, sched.Variables, false)
	if err := s.runRepo.Create(ctx, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	// 4. Переносим next_due_at ДО публикации: при сбое публикации
	// лучше потерять один запуск, чем задвоить его на следующем тике
	sched.RecordRun(run.ID, nextDue)
	if err := s.scheduleRepo.Update(ctx, sched); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}

	s.logger.Info("created run from schedule",
		"run_id", run.ID,
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
		"workflow", sched.Workflow.Name,
		"next_due_at", nextDue,
	)

	// 5. Публикуем заявку на выполнение
	payload := mq.RunRequestedPayload{
		RunID:     run.ID,
		Workflow:  sched.Workflow,
		Variables: sched.Variables,
	}
	if err := s.publisher.PublishRunRequested(ctx, payload); err != nil {
		// Run уже создан в БД; заявка потеряна — run останется
		// в PENDING и виден в истории как незапущенный
		s.logger.Warn("failed to publish run.requested",
			"run_id", run.ID,
			"error", err,
		)
	}

	return nil
}
