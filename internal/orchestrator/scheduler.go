package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Runbook/internal/domain"
	"github.com/shaiso/Runbook/internal/engine"
	"github.com/shaiso/Runbook/internal/runner"
)

// Default configuration values.
const (
	defaultMaxConcurrency = 4
)

// Scheduler выполняет workflow в рамках текущего процесса.
type Scheduler struct {
	maxConcurrency int
	shell          runner.Runner
	dry            runner.Runner
	sink           EventSink
	logger         *slog.Logger
}

// Config — конфигурация Scheduler.
type Config struct {
	// MaxConcurrency — максимум одновременно выполняющихся шагов
	// (default: 4).
	MaxConcurrency int

	// SandboxDir — рабочая директория по умолчанию для шагов,
	// не задающих свою.
	SandboxDir string

	// Sink — подписчик событий run (default: NopSink).
	Sink EventSink

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}

	sink := cfg.Sink
	if sink == nil {
		sink = NopSink{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Песочница создаётся заранее: шаги без своей директории
	// стартуют в ней
	if cfg.SandboxDir != "" {
		if err := os.MkdirAll(cfg.SandboxDir, 0o700); err != nil {
			logger.Warn("failed to create sandbox dir", "dir", cfg.SandboxDir, "error", err)
		}
	}

	return &Scheduler{
		maxConcurrency: maxConcurrency,
		shell:          runner.NewShellRunner(cfg.SandboxDir),
		dry:            runner.NewDryRunner(),
		sink:           sink,
		logger:         logger,
	}
}

// RunOptions — параметры одного запуска.
type RunOptions struct {
	// RunID — заранее созданный идентификатор run (например, из БД).
	// Нулевой uuid означает сгенерировать новый.
	RunID uuid.UUID

	// Variables — входные переменные. Перекрывают Workflow.Variables.
	Variables map[string]string

	// DryRun — сухой прогон: команды не выполняются, но граф
	// проходит полный цикл планирования, условий и резолвинга.
	DryRun bool
}

// Execute выполняет workflow и возвращает завершённый run.
//
// Execute блокирует до терминального статуса run. Ошибки валидации
// не возвращаются отдельно: run завершается как FAILED с текстом
// ошибки и без результатов шагов. Отмена ctx переводит выполняющиеся
// шаги в CANCELLED, не стартовавшие получают CANCELLED без запуска.
func (s *Scheduler) Execute(ctx context.Context, wf *domain.Workflow, opts RunOptions) *domain.Run {
	variables := mergeVariables(wf.Variables, opts.Variables)
	run := domain.NewRun(wf, variables, opts.DryRun)
	if opts.RunID != uuid.Nil {
		run.ID = opts.RunID
	}

	if err := engine.Validate(wf); err != nil {
		run.MarkFailed(err.Error())
		s.logger.Warn("workflow validation failed",
			"run_id", run.ID,
			"workflow", wf.Name,
			"error", err,
		)
		s.sink.RunFinished(run)
		return run
	}

	graph, err := engine.BuildGraph(wf)
	if err != nil {
		// Недостижимо после Validate, но защищаемся от рассинхрона
		run.MarkFailed(err.Error())
		s.sink.RunFinished(run)
		return run
	}

	// Условия разобраны валидацией, здесь разбор не может упасть
	conditions := make(map[string]*engine.Condition, len(wf.Steps))
	for i := range wf.Steps {
		step := &wf.Steps[i]
		if step.Condition == "" {
			continue
		}
		cond, err := engine.ParseCondition(step.Condition)
		if err != nil {
			run.MarkFailed(err.Error())
			s.sink.RunFinished(run)
			return run
		}
		conditions[step.ID] = cond
	}

	exec := runner.NewStepExec(s.shell, s.logger)
	if opts.DryRun {
		exec = runner.NewStepExec(s.dry, s.logger)
	}
	// StepStarted сообщается на каждую попытку, включая повторные,
	// из горутины шага
	exec.OnAttempt = func(stepID string, attempt int) {
		s.sink.StepStarted(run, stepID, attempt)
	}

	state := newRunState(run, graph)
	run.MarkRunning()
	s.sink.RunStarted(run)
	s.logger.Info("run started",
		"run_id", run.ID,
		"workflow", wf.Name,
		"steps", len(wf.Steps),
		"dry_run", opts.DryRun,
	)

	s.loop(ctx, wf, state, conditions, exec)

	run.Finish(run.Aggregate(state.cancelled))
	if run.Status == domain.RunStatusCancelled && run.Error == "" {
		run.Error = "run cancelled"
	}

	s.sink.RunFinished(run)
	s.logger.Info("run finished",
		"run_id", run.ID,
		"status", run.Status,
		"duration", run.Duration(),
	)

	return run
}

// loop — основной цикл планирования: диспетчеризация фронтира и
// приём результатов до завершения или отмены.
func (s *Scheduler) loop(
	ctx context.Context,
	wf *domain.Workflow,
	state *runState,
	conditions map[string]*engine.Condition,
	exec *runner.StepExec,
) {
	resCh := make(chan *domain.StepResult)

	for {
		if ctx.Err() != nil {
			state.cancelled = true
		}

		var started, recorded int
		if !state.cancelled && !state.seqRunning {
			started, recorded = s.dispatch(ctx, wf, state, conditions, exec, resCh)
		}

		if state.inflightCount() == 0 {
			if state.cancelled {
				s.cancelRemaining(state)
				return
			}
			if state.isComplete() {
				return
			}
			if started == 0 && recorded == 0 {
				// Фронтир пуст, выполнений нет, run не завершён —
				// планировщик застрял. После валидации условий это
				// недостижимо; явный провал лучше вечного цикла.
				s.failRemaining(state, "scheduler stalled: no runnable steps")
				return
			}
			continue
		}

		if state.cancelled {
			// Дожидаемся уже запущенных шагов: они завершатся
			// как CANCELLED через контекст
			s.receive(state, <-resCh)
			continue
		}

		select {
		case <-ctx.Done():
			state.cancelled = true
		case result := <-resCh:
			s.receive(state, result)
		}
	}
}

// dispatch запускает готовые шаги в пределах лимита параллелизма.
// Возвращает количество запущенных шагов и количество шагов,
// получивших терминальный статус без запуска (SKIPPED, FAILED).
func (s *Scheduler) dispatch(
	ctx context.Context,
	wf *domain.Workflow,
	state *runState,
	conditions map[string]*engine.Condition,
	exec *runner.StepExec,
	resCh chan<- *domain.StepResult,
) (started, recorded int) {
	for _, node := range state.ready() {
		if state.seqRunning {
			break
		}
		if state.inflightCount() >= s.maxConcurrency {
			break
		}

		step := node.Step

		// Sequential-шаг выполняется в одиночку: ждём дренажа
		// фронтира и не стартуем ничего после него в этом раунде
		if step.IsSequential() && state.inflightCount() > 0 {
			break
		}

		rctx := state.resolveContext()

		if cond := conditions[step.ID]; cond != nil {
			ok, err := cond.Eval(rctx)
			switch {
			case errors.Is(err, engine.ErrConditionDeferred):
				// Референт ещё не терминален — рассмотрим после
				// следующего завершения
				continue

			case err != nil:
				result := preflightResult(step.ID, domain.StepStatusFailed,
					fmt.Sprintf("condition: %v", err))
				state.record(result)
				s.sink.StepFinished(state.run, result)
				s.logger.Warn("step condition failed",
					"run_id", state.run.ID,
					"step_id", step.ID,
					"error", err,
				)
				recorded++
				continue

			case !ok:
				result := preflightResult(step.ID, domain.StepStatusSkipped,
					"condition evaluated to false")
				state.record(result)
				s.sink.StepSkipped(state.run, result)
				s.logger.Info("step skipped",
					"run_id", state.run.ID,
					"step_id", step.ID,
					"condition", step.Condition,
				)
				recorded++
				continue
			}
		}

		inv, err := buildInvocation(wf, step, rctx)
		if err != nil {
			result := preflightResult(step.ID, domain.StepStatusFailed, err.Error())
			state.record(result)
			s.sink.StepFinished(state.run, result)
			s.logger.Warn("step resolve failed",
				"run_id", state.run.ID,
				"step_id", step.ID,
				"error", err,
			)
			recorded++
			continue
		}

		state.markInflight(step.ID)
		if step.IsSequential() {
			state.seqRunning = true
		}
		started++

		s.logger.Info("step started",
			"run_id", state.run.ID,
			"step_id", step.ID,
			"sequential", step.IsSequential(),
		)

		go func(st *domain.Step, inv runner.Invocation) {
			resCh <- exec.Execute(ctx, st, inv)
		}(step, inv)
	}

	return started, recorded
}

// receive фиксирует результат завершившегося шага.
func (s *Scheduler) receive(state *runState, result *domain.StepResult) {
	node := state.graph.GetNode(result.StepID)
	if node != nil && node.Step.IsSequential() {
		state.seqRunning = false
	}

	state.record(result)
	s.sink.StepFinished(state.run, result)

	level := slog.LevelInfo
	if result.Status != domain.StepStatusSucceeded {
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, "step finished",
		"run_id", state.run.ID,
		"step_id", result.StepID,
		"status", result.Status,
		"exit_code", result.ExitCode,
		"attempts", result.Attempts,
		"duration", result.Duration(),
	)
}

// cancelRemaining помечает все нетерминальные шаги как CANCELLED.
func (s *Scheduler) cancelRemaining(state *runState) {
	for _, node := range state.graph.Order {
		if state.terminal[node.ID] {
			continue
		}
		result := preflightResult(node.ID, domain.StepStatusCancelled,
			"cancelled before start")
		state.record(result)
		s.sink.StepFinished(state.run, result)
	}
}

// failRemaining помечает все нетерминальные шаги как FAILED.
func (s *Scheduler) failRemaining(state *runState, message string) {
	for _, node := range state.graph.Order {
		if state.terminal[node.ID] {
			continue
		}
		result := preflightResult(node.ID, domain.StepStatusFailed, message)
		state.record(result)
		s.sink.StepFinished(state.run, result)
	}
}

// preflightResult — терминальный результат шага, который не запускался.
func preflightResult(stepID string, status domain.StepStatus, message string) *domain.StepResult {
	now := time.Now()
	return &domain.StepResult{
		StepID:     stepID,
		Status:     status,
		ExitCode:   -1,
		Message:    message,
		FinishedAt: &now,
	}
}

// buildInvocation резолвит команду, директорию и окружение шага.
func buildInvocation(wf *domain.Workflow, step *domain.Step, rctx *engine.ResolveContext) (runner.Invocation, error) {
	command, err := engine.Resolve(step.Command, rctx)
	if err != nil {
		return runner.Invocation{}, fmt.Errorf("command: %w", err)
	}

	workingDir := step.WorkingDir
	if workingDir == "" {
		workingDir = wf.WorkingDir
	}
	if workingDir != "" {
		workingDir, err = engine.Resolve(workingDir, rctx)
		if err != nil {
			return runner.Invocation{}, fmt.Errorf("working_dir: %w", err)
		}
	}

	// Окружение workflow перекрывается окружением шага
	merged := make(map[string]string, len(wf.Env)+len(step.Env))
	for key, value := range wf.Env {
		merged[key] = value
	}
	for key, value := range step.Env {
		merged[key] = value
	}
	env, err := engine.ResolveEnv(merged, rctx)
	if err != nil {
		return runner.Invocation{}, err
	}

	var timeout time.Duration
	if step.TimeoutSec > 0 {
		timeout = time.Duration(step.TimeoutSec) * time.Second
	}

	return runner.Invocation{
		StepID:     step.ID,
		Command:    command,
		WorkingDir: workingDir,
		Env:        env,
		Timeout:    timeout,
	}, nil
}

// mergeVariables накладывает входные переменные поверх переменных workflow.
func mergeVariables(base, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(overrides))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}
	return merged
}
