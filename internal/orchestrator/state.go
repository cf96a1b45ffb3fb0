package orchestrator

import (
	"github.com/shaiso/Runbook/internal/domain"
	"github.com/shaiso/Runbook/internal/engine"
)

// runState — состояние выполнения одного run в памяти планировщика.
//
// Доступ только из горутины цикла планирования: рабочие горутины
// ничего не пишут в состояние напрямую, они отдают результаты через
// канал. Поэтому мьютекс не нужен.
type runState struct {
	run   *domain.Run
	graph *engine.Graph

	// terminal — шаги с терминальным статусом (stepID → true).
	terminal map[string]bool

	// inflight — шаги в процессе выполнения (stepID → true).
	inflight map[string]bool

	// cancelled — получен сигнал отмены: новые шаги не стартуют.
	cancelled bool

	// seqRunning — выполняется sequential-шаг: фронтир заморожен.
	seqRunning bool
}

func newRunState(run *domain.Run, graph *engine.Graph) *runState {
	return &runState{
		run:      run,
		graph:    graph,
		terminal: make(map[string]bool, graph.Size()),
		inflight: make(map[string]bool, graph.Size()),
	}
}

// record фиксирует терминальный результат шага.
func (s *runState) record(result *domain.StepResult) {
	s.run.Results[result.StepID] = result
	s.terminal[result.StepID] = true
	delete(s.inflight, result.StepID)
}

// markInflight помечает шаг выполняющимся.
func (s *runState) markInflight(stepID string) {
	s.inflight[stepID] = true
}

// inflightCount возвращает количество выполняющихся шагов.
func (s *runState) inflightCount() int {
	return len(s.inflight)
}

// isComplete проверяет, все ли шаги терминальны.
func (s *runState) isComplete() bool {
	return s.graph.IsComplete(s.terminal)
}

// resolveContext возвращает снимок контекста резолвинга:
// переменные run и результаты уже завершённых шагов.
func (s *runState) resolveContext() *engine.ResolveContext {
	return engine.NewResolveContext(s.run.Variables, s.run.Results)
}

// ready возвращает шаги, готовые к рассмотрению.
func (s *runState) ready() []*engine.Node {
	return s.graph.ReadyNodes(s.terminal, s.inflight)
}
