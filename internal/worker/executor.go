package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Runbook/internal/domain"
	"github.com/shaiso/Runbook/internal/mq"
	"github.com/shaiso/Runbook/internal/orchestrator"
	"github.com/shaiso/Runbook/internal/repo"
)

// Default configuration values.
const (
	defaultParallelRuns = 2
)

// Executor потребляет заявки run.requested и выполняет workflow.
//
// Один Executor выполняет до ParallelRuns runs одновременно
// (prefetch очереди). Каждый run получает собственный отменяемый
// контекст, зарегистрированный для Cancel.
type Executor struct {
	runRepo   *repo.RunRepo
	publisher *mq.Publisher
	conn      *mq.Connection

	sched    *orchestrator.Scheduler
	registry *runRegistry

	parallelRuns int

	consumer   *mq.Consumer
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Executor.
type Config struct {
	// RunRepo — хранилище runs.
	RunRepo *repo.RunRepo

	// Publisher и Conn — подключение к RabbitMQ.
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Sinks — дополнительные подписчики событий run (метрики,
	// публикация step-событий). Сохранение в БД подключается всегда.
	Sinks []orchestrator.EventSink

	// MaxConcurrency — максимум одновременных шагов внутри одного run.
	MaxConcurrency int

	// SandboxDir — рабочая директория по умолчанию для шагов.
	SandboxDir string

	// ParallelRuns — сколько runs выполнять одновременно (default: 2).
	ParallelRuns int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Executor.
func New(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	parallelRuns := cfg.ParallelRuns
	if parallelRuns <= 0 {
		parallelRuns = defaultParallelRuns
	}

	sinks := make(orchestrator.MultiSink, 0, len(cfg.Sinks)+1)
	sinks = append(sinks, newPersistSink(cfg.RunRepo, logger))
	sinks = append(sinks, cfg.Sinks...)

	sched := orchestrator.New(orchestrator.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		SandboxDir:     cfg.SandboxDir,
		Sink:           sinks,
		Logger:         logger,
	})

	return &Executor{
		runRepo:      cfg.RunRepo,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		sched:        sched,
		registry:     newRunRegistry(),
		parallelRuns: parallelRuns,
		logger:       logger,
	}
}

// Start запускает потребление runs.requested. Не блокирует.
func (e *Executor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancelFunc = cancel

	e.logger.Info("starting run executor", "parallel_runs", e.parallelRuns)

	e.consumer = mq.NewConsumer(e.conn, e.logger, mq.ConsumerConfig{
		Queue:    mq.QueueRunsRequested,
		Handler:  e.handleRunRequested,
		Prefetch: e.parallelRuns,
	})

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Error("run consumer error", "error", err)
		}
	}()

	return nil
}

// Stop останавливает Executor и ждёт завершения текущих runs.
// Выполняющиеся шаги получают отмену контекста.
func (e *Executor) Stop() {
	e.logger.Info("stopping run executor...")

	if e.cancelFunc != nil {
		e.cancelFunc()
	}
	e.wg.Wait()

	e.logger.Info("run executor stopped")
}

// Cancel отменяет выполняющийся run. Возвращает true, если run был
// найден среди выполняющихся.
func (e *Executor) Cancel(runID uuid.UUID) bool {
	return e.registry.cancel(runID)
}

// RunningCount возвращает количество выполняющихся runs.
func (e *Executor) RunningCount() int {
	return e.registry.count()
}

// handleRunRequested обрабатывает заявку run.requested.
func (e *Executor) handleRunRequested(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunRequestedPayload](&delivery.Message)
	if err != nil {
		e.logger.Error("failed to parse run.requested payload", "error", err)
		return err
	}

	e.logger.Info("received run.requested",
		"run_id", payload.RunID,
		"workflow", payload.Workflow.Name,
		"dry_run", payload.DryRun,
	)

	if err := e.executeRun(ctx, &payload); err != nil {
		// Дубликаты и опоздавшие заявки подтверждаем без повтора
		if errors.Is(err, ErrRunAlreadyRunning) || errors.Is(err, ErrRunFinished) {
			e.logger.Debug("run not executed", "run_id", payload.RunID, "reason", err)
			return nil
		}
		return err
	}

	return nil
}

// executeRun выполняет один run от начала до публикации run.finished.
func (e *Executor) executeRun(ctx context.Context, payload *mq.RunRequestedPayload) error {
	// Заявка могла быть отменена, пока лежала в очереди
	if existing, err := e.runRepo.GetByID(ctx, payload.RunID); err == nil {
		if existing.Status.IsTerminal() {
			return ErrRunFinished
		}
	} else if errors.Is(err, repo.ErrNotFound) {
		// Заявка без строки в БД: создаём её, чтобы sink мог писать
		pending := domain.NewRun(&payload.Workflow, payload.Variables, payload.DryRun)
		pending.ID = payload.RunID
		if cerr := e.runRepo.Create(ctx, pending); cerr != nil {
			return cerr
		}
	} else {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !e.registry.add(payload.RunID, cancel) {
		return ErrRunAlreadyRunning
	}
	defer e.registry.remove(payload.RunID)

	run := e.sched.Execute(runCtx, &payload.Workflow, orchestrator.RunOptions{
		RunID:     payload.RunID,
		Variables: payload.Variables,
		DryRun:    payload.DryRun,
	})

	e.publishFinished(run)
	return nil
}

// publishFinished публикует run.finished. Ошибка публикации не
// фатальна: итог уже сохранён в БД.
func (e *Executor) publishFinished(run *domain.Run) {
	if e.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err := e.publisher.PublishRunFinished(ctx, mq.RunFinishedPayload{
		RunID:        run.ID,
		WorkflowName: run.WorkflowName,
		Status:       run.Status,
		Error:        run.Error,
		DurationSec:  run.Duration().Seconds(),
	})
	if err != nil {
		e.logger.Warn("failed to publish run.finished", "run_id", run.ID, "error", err)
	}
}
