package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Runbook/internal/domain"
)

func testScheduler(t *testing.T, sink EventSink) *Scheduler {
	t.Helper()
	return New(Config{
		SandboxDir: t.TempDir(),
		Sink:       sink,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestExecute_SimpleChain(t *testing.T) {
	s := testScheduler(t, nil)

	wf := &domain.Workflow{
		Name: "chain",
		Steps: []domain.Step{
			{ID: "A", Command: "echo hi"},
			{ID: "B", Command: "echo ${A.stdout} world", DependsOn: []string{"A"}},
		},
	}

	run := s.Execute(context.Background(), wf, RunOptions{})

	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("run status = %s, error = %q", run.Status, run.Error)
	}
	if len(run.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(run.Results))
	}

	b := run.Results["B"]
	if b.Status != domain.StepStatusSucceeded {
		t.Errorf("B status = %s", b.Status)
	}
	if strings.TrimSpace(b.Stdout) != "hi world" {
		t.Errorf("B stdout = %q, want %q", b.Stdout, "hi world")
	}
}

func TestExecute_Variables(t *testing.T) {
	s := testScheduler(t, nil)

	wf := &domain.Workflow{
		Name:      "vars",
		Variables: map[string]string{"greeting": "default", "target": "world"},
		Steps: []domain.Step{
			{ID: "A", Command: "echo ${greeting} ${target}"},
		},
	}

	// Входные переменные перекрывают переменные workflow
	run := s.Execute(context.Background(), wf, RunOptions{
		Variables: map[string]string{"greeting": "hello"},
	})

	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("run status = %s", run.Status)
	}
	if got := strings.TrimSpace(run.Results["A"].Stdout); got != "hello world" {
		t.Errorf("stdout = %q", got)
	}
}

func TestExecute_ValidationFailure(t *testing.T) {
	s := testScheduler(t, nil)

	wf := &domain.Workflow{
		Name: "broken",
		Steps: []domain.Step{
			{ID: "A", Command: "echo a", DependsOn: []string{"ghost"}},
		},
	}

	run := s.Execute(context.Background(), wf, RunOptions{})

	if run.Status != domain.RunStatusFailed {
		t.Errorf("run status = %s, want FAILED", run.Status)
	}
	if run.Error == "" {
		t.Error("expected validation error text")
	}
	if len(run.Results) != 0 {
		t.Errorf("expected no step results, got %d", len(run.Results))
	}
}

func TestExecute_FailureBranching(t *testing.T) {
	s := testScheduler(t, nil)

	// deploy падает; rollback идёт по ветке провала, notify — успеха
	wf := &domain.Workflow{
		Name: "branch",
		Steps: []domain.Step{
			{ID: "deploy", Command: "echo boom >&2; exit 1"},
			{
				ID:        "notify",
				Command:   "echo deployed",
				DependsOn: []string{"deploy"},
				Condition: "deploy.exit_code == 0",
			},
			{
				ID:        "rollback",
				Command:   "echo rolling back",
				DependsOn: []string{"deploy"},
				Condition: "deploy.failed",
			},
		},
	}

	run := s.Execute(context.Background(), wf, RunOptions{})

	if run.Status != domain.RunStatusPartialFailure {
		t.Errorf("run status = %s, want PARTIAL_FAILURE", run.Status)
	}
	if run.Results["deploy"].Status != domain.StepStatusFailed {
		t.Errorf("deploy status = %s", run.Results["deploy"].Status)
	}
	if run.Results["notify"].Status != domain.StepStatusSkipped {
		t.Errorf("notify status = %s, want SKIPPED", run.Results["notify"].Status)
	}
	if run.Results["rollback"].Status != domain.StepStatusSucceeded {
		t.Errorf("rollback status = %s, want SUCCEEDED", run.Results["rollback"].Status)
	}
}

func TestExecute_DependentRunsAfterFailed(t *testing.T) {
	s := testScheduler(t, nil)

	// Без условия зависимый шаг выполняется после любого терминального
	// статуса зависимости, включая FAILED
	wf := &domain.Workflow{
		Name: "fail-chain",
		Steps: []domain.Step{
			{ID: "A", Command: "exit 1"},
			{ID: "B", Command: "echo ran", DependsOn: []string{"A"}},
		},
	}

	run := s.Execute(context.Background(), wf, RunOptions{})

	if run.Status != domain.RunStatusPartialFailure {
		t.Errorf("run status = %s, want PARTIAL_FAILURE", run.Status)
	}
	if run.Results["A"].Status != domain.StepStatusFailed {
		t.Errorf("A status = %s", run.Results["A"].Status)
	}
	b := run.Results["B"]
	if b.Status != domain.StepStatusSucceeded {
		t.Errorf("B status = %s, want SUCCEEDED", b.Status)
	}
	if strings.TrimSpace(b.Stdout) != "ran" {
		t.Errorf("B stdout = %q", b.Stdout)
	}
}

func TestExecute_DependentRunsAfterSkipped(t *testing.T) {
	s := testScheduler(t, nil)

	// SKIPPED — терминальный статус: зависимость удовлетворена
	wf := &domain.Workflow{
		Name:      "skip-chain",
		Variables: map[string]string{"enabled": "no"},
		Steps: []domain.Step{
			{ID: "A", Command: "echo a"},
			{
				ID:        "B",
				Command:   "echo b",
				DependsOn: []string{"A"},
				Condition: "enabled == 'yes'",
			},
			{ID: "C", Command: "echo c", DependsOn: []string{"B"}},
		},
	}

	run := s.Execute(context.Background(), wf, RunOptions{})

	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("run status = %s", run.Status)
	}
	if run.Results["B"].Status != domain.StepStatusSkipped {
		t.Errorf("B status = %s", run.Results["B"].Status)
	}
	if run.Results["C"].Status != domain.StepStatusSucceeded {
		t.Errorf("C status = %s", run.Results["C"].Status)
	}
}

func TestExecute_Retry(t *testing.T) {
	s := testScheduler(t, nil)
	marker := filepath.Join(t.TempDir(), "attempts")

	// Первые две попытки падают, третья проходит
	cmd := fmt.Sprintf(
		`n=$(cat %[1]s 2>/dev/null || echo 0); n=$((n+1)); echo $n > %[1]s; [ $n -ge 3 ]`,
		marker,
	)

	wf := &domain.Workflow{
		Name: "retry",
		Steps: []domain.Step{
			{
				ID:      "flaky",
				Command: cmd,
				Retry:   &domain.RetryPolicy{MaxAttempts: 3, BackoffSec: 0.01},
			},
		},
	}

	run := s.Execute(context.Background(), wf, RunOptions{})

	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("run status = %s", run.Status)
	}
	if run.Results["flaky"].Attempts != 3 {
		t.Errorf("attempts = %d, want 3", run.Results["flaky"].Attempts)
	}
}

// attemptSink запоминает попытки, о которых сообщил StepStarted.
type attemptSink struct {
	NopSink
	mu       sync.Mutex
	attempts map[string][]int
}

func (as *attemptSink) StepStarted(_ *domain.Run, stepID string, attempt int) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.attempts == nil {
		as.attempts = map[string][]int{}
	}
	as.attempts[stepID] = append(as.attempts[stepID], attempt)
}

func TestExecute_StepStartedPerAttempt(t *testing.T) {
	sink := &attemptSink{}
	s := testScheduler(t, sink)

	wf := &domain.Workflow{
		Name: "retry-events",
		Steps: []domain.Step{
			{
				ID:      "doomed",
				Command: "exit 1",
				Retry:   &domain.RetryPolicy{MaxAttempts: 3, BackoffSec: 0.01},
			},
		},
	}

	run := s.Execute(context.Background(), wf, RunOptions{})

	if run.Status != domain.RunStatusPartialFailure {
		t.Fatalf("run status = %s", run.Status)
	}

	got := sink.attempts["doomed"]
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("StepStarted attempts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("StepStarted attempts = %v, want %v", got, want)
		}
	}
}

func TestExecute_Timeout(t *testing.T) {
	s := testScheduler(t, nil)

	wf := &domain.Workflow{
		Name: "timeout",
		Steps: []domain.Step{
			{ID: "slow", Command: "sleep 10", TimeoutSec: 1},
		},
	}

	start := time.Now()
	run := s.Execute(context.Background(), wf, RunOptions{})

	if run.Status != domain.RunStatusPartialFailure {
		t.Errorf("run status = %s, want PARTIAL_FAILURE", run.Status)
	}
	if run.Results["slow"].Status != domain.StepStatusTimedOut {
		t.Errorf("slow status = %s", run.Results["slow"].Status)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took too long: %s", elapsed)
	}
}

func TestExecute_DryRun(t *testing.T) {
	s := testScheduler(t, nil)
	marker := filepath.Join(t.TempDir(), "side-effect")

	wf := &domain.Workflow{
		Name: "dry",
		Steps: []domain.Step{
			{ID: "A", Command: "touch " + marker},
			{ID: "B", Command: "echo after", DependsOn: []string{"A"}},
		},
	}

	run := s.Execute(context.Background(), wf, RunOptions{DryRun: true})

	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("run status = %s", run.Status)
	}
	if !run.DryRun {
		t.Error("run should be marked dry-run")
	}

	// Команда не выполнялась
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("dry-run must not execute commands")
	}

	for id, result := range run.Results {
		if result.Status != domain.StepStatusSucceeded {
			t.Errorf("%s status = %s", id, result.Status)
		}
		if !strings.HasPrefix(result.Stdout, "dry-run: ") {
			t.Errorf("%s stdout = %q", id, result.Stdout)
		}
	}
}

func TestExecute_Cancellation(t *testing.T) {
	s := testScheduler(t, nil)

	wf := &domain.Workflow{
		Name: "cancel",
		Steps: []domain.Step{
			{ID: "long", Command: "sleep 30"},
			{ID: "after", Command: "echo never", DependsOn: []string{"long"}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	run := s.Execute(ctx, wf, RunOptions{})

	if run.Status != domain.RunStatusCancelled {
		t.Errorf("run status = %s, want CANCELLED", run.Status)
	}
	if run.Results["long"].Status != domain.StepStatusCancelled {
		t.Errorf("long status = %s", run.Results["long"].Status)
	}
	if run.Results["after"].Status != domain.StepStatusCancelled {
		t.Errorf("after status = %s", run.Results["after"].Status)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took too long: %s", elapsed)
	}
}

// trackingSink считает перекрытие одновременно выполняющихся шагов.
// StepStarted приходит из горутин шагов, остальные события — из
// горутины планировщика.
type trackingSink struct {
	mu         sync.Mutex
	current    int
	maxOverlap int
	order      []string
}

func (ts *trackingSink) RunStarted(*domain.Run)  {}
func (ts *trackingSink) RunFinished(*domain.Run) {}

func (ts *trackingSink) StepStarted(_ *domain.Run, stepID string, _ int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.current++
	if ts.current > ts.maxOverlap {
		ts.maxOverlap = ts.current
	}
	ts.order = append(ts.order, "start:"+stepID)
}

func (ts *trackingSink) StepFinished(_ *domain.Run, result *domain.StepResult) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.current > 0 {
		ts.current--
	}
	ts.order = append(ts.order, "finish:"+result.StepID)
}

func (ts *trackingSink) StepSkipped(_ *domain.Run, result *domain.StepResult) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.order = append(ts.order, "skip:"+result.StepID)
}

func TestExecute_ParallelOverlap(t *testing.T) {
	sink := &trackingSink{}
	s := testScheduler(t, sink)

	wf := &domain.Workflow{
		Name: "parallel",
		Steps: []domain.Step{
			{ID: "A", Command: "sleep 0.3"},
			{ID: "B", Command: "sleep 0.3"},
			{ID: "C", Command: "sleep 0.3"},
		},
	}

	start := time.Now()
	run := s.Execute(context.Background(), wf, RunOptions{})

	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("run status = %s", run.Status)
	}
	if sink.maxOverlap < 2 {
		t.Errorf("independent steps did not overlap: max = %d", sink.maxOverlap)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("parallel run too slow: %s", elapsed)
	}
}

func TestExecute_SequentialRunsAlone(t *testing.T) {
	sink := &trackingSink{}
	s := testScheduler(t, sink)

	wf := &domain.Workflow{
		Name: "sequential",
		Steps: []domain.Step{
			{ID: "prep", Command: "sleep 0.2"},
			{
				ID:      "migrate",
				Command: "sleep 0.2",
				Mode:    domain.ModeSequential,
			},
			{ID: "other", Command: "sleep 0.2"},
		},
	}

	run := s.Execute(context.Background(), wf, RunOptions{})

	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("run status = %s", run.Status)
	}

	// Во время sequential-шага ничего другого не выполняется
	running := map[string]bool{}
	for _, ev := range sink.order {
		kind, id, _ := strings.Cut(ev, ":")
		switch kind {
		case "start":
			if running["migrate"] {
				t.Fatalf("step %s started while sequential step was running", id)
			}
			if id == "migrate" && len(running) > 0 {
				t.Fatalf("sequential step started with %v in flight", running)
			}
			running[id] = true
		case "finish":
			delete(running, id)
		}
	}
}

func TestExecute_EventOrder(t *testing.T) {
	sink := &trackingSink{}
	s := testScheduler(t, sink)

	wf := &domain.Workflow{
		Name: "events",
		Steps: []domain.Step{
			{ID: "A", Command: "echo a"},
			{ID: "B", Command: "echo b", DependsOn: []string{"A"}},
		},
	}

	run := s.Execute(context.Background(), wf, RunOptions{})
	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("run status = %s", run.Status)
	}

	want := []string{"start:A", "finish:A", "start:B", "finish:B"}
	if len(sink.order) != len(want) {
		t.Fatalf("events = %v", sink.order)
	}
	for i, ev := range want {
		if sink.order[i] != ev {
			t.Fatalf("events = %v, want %v", sink.order, want)
		}
	}
}

func TestExecute_StepEnv(t *testing.T) {
	s := testScheduler(t, nil)

	wf := &domain.Workflow{
		Name: "env",
		Env:  map[string]string{"SHARED": "wf", "OVERRIDE": "wf"},
		Steps: []domain.Step{
			{
				ID:      "A",
				Command: "echo $SHARED $OVERRIDE",
				Env:     map[string]string{"OVERRIDE": "step"},
			},
		},
	}

	run := s.Execute(context.Background(), wf, RunOptions{})

	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("run status = %s", run.Status)
	}
	if got := strings.TrimSpace(run.Results["A"].Stdout); got != "wf step" {
		t.Errorf("stdout = %q", got)
	}
}

func TestExecute_ResolveFailureFailsStep(t *testing.T) {
	s := testScheduler(t, nil)

	wf := &domain.Workflow{
		Name: "badref",
		Steps: []domain.Step{
			{ID: "A", Command: "echo ${missing_var}"},
		},
	}

	run := s.Execute(context.Background(), wf, RunOptions{})

	if run.Status != domain.RunStatusPartialFailure {
		t.Errorf("run status = %s", run.Status)
	}
	result := run.Results["A"]
	if result.Status != domain.StepStatusFailed {
		t.Errorf("A status = %s", result.Status)
	}
	if result.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", result.Attempts)
	}
}

func TestExecute_Diamond(t *testing.T) {
	s := testScheduler(t, nil)

	wf := &domain.Workflow{
		Name: "diamond",
		Steps: []domain.Step{
			{ID: "A", Command: "echo 1"},
			{ID: "B", Command: "echo $((${A.stdout} + 1))", DependsOn: []string{"A"}},
			{ID: "C", Command: "echo $((${A.stdout} + 2))", DependsOn: []string{"A"}},
			{
				ID:        "D",
				Command:   "echo ${B.stdout} ${C.stdout}",
				DependsOn: []string{"B", "C"},
			},
		},
	}

	run := s.Execute(context.Background(), wf, RunOptions{})

	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("run status = %s, error = %q", run.Status, run.Error)
	}
	if got := strings.TrimSpace(run.Results["D"].Stdout); got != "2 3" {
		t.Errorf("D stdout = %q", got)
	}
}
