package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shaiso/Runbook/internal/domain"
)

// fakeRunner возвращает заранее заданные исходы по одному на попытку.
type fakeRunner struct {
	outputs []fakeOutcome
	calls   int
}

type fakeOutcome struct {
	out *Output
	err error
}

func (f *fakeRunner) Run(ctx context.Context, inv Invocation) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.calls >= len(f.outputs) {
		return nil, errors.New("fakeRunner: no more outcomes")
	}
	o := f.outputs[f.calls]
	f.calls++
	return o.out, o.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStepExec_Success(t *testing.T) {
	fake := &fakeRunner{outputs: []fakeOutcome{
		{out: &Output{ExitCode: 0, Stdout: "done\n"}},
	}}
	exec := NewStepExec(fake, testLogger())

	step := &domain.Step{ID: "A", Command: "echo done"}
	result := exec.Execute(context.Background(), step, Invocation{StepID: "A"})

	if result.Status != domain.StepStatusSucceeded {
		t.Errorf("status = %s", result.Status)
	}
	if result.Attempts != 1 {
		t.Errorf("attempts = %d", result.Attempts)
	}
	if result.Stdout != "done\n" {
		t.Errorf("stdout = %q", result.Stdout)
	}
	if result.StartedAt == nil || result.FinishedAt == nil {
		t.Error("timestamps not set")
	}
}

func TestStepExec_RetryThenSuccess(t *testing.T) {
	fake := &fakeRunner{outputs: []fakeOutcome{
		{out: &Output{ExitCode: 1, Stderr: "flaky"}},
		{out: &Output{ExitCode: 1, Stderr: "flaky"}},
		{out: &Output{ExitCode: 0, Stdout: "ok"}},
	}}
	exec := NewStepExec(fake, testLogger())

	step := &domain.Step{
		ID:      "flaky",
		Command: "flaky-tool",
		Retry:   &domain.RetryPolicy{MaxAttempts: 3},
	}
	result := exec.Execute(context.Background(), step, Invocation{StepID: "flaky"})

	if result.Status != domain.StepStatusSucceeded {
		t.Errorf("status = %s", result.Status)
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", result.Attempts)
	}
	// Результат несёт данные последней попытки
	if result.Stdout != "ok" || result.Stderr != "" {
		t.Errorf("stdout = %q, stderr = %q", result.Stdout, result.Stderr)
	}
}

func TestStepExec_OnAttemptPerRetry(t *testing.T) {
	fake := &fakeRunner{outputs: []fakeOutcome{
		{out: &Output{ExitCode: 1}},
		{out: &Output{ExitCode: 0}},
	}}
	exec := NewStepExec(fake, testLogger())

	var attempts []int
	exec.OnAttempt = func(stepID string, attempt int) {
		if stepID != "flaky" {
			t.Errorf("stepID = %q", stepID)
		}
		attempts = append(attempts, attempt)
	}

	step := &domain.Step{
		ID:      "flaky",
		Command: "flaky-tool",
		Retry:   &domain.RetryPolicy{MaxAttempts: 2},
	}
	result := exec.Execute(context.Background(), step, Invocation{StepID: "flaky"})

	if result.Status != domain.StepStatusSucceeded {
		t.Errorf("status = %s", result.Status)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("attempts = %v, want [1 2]", attempts)
	}
}

func TestStepExec_RetriesExhausted(t *testing.T) {
	fake := &fakeRunner{outputs: []fakeOutcome{
		{out: &Output{ExitCode: 2, Stderr: "err1"}},
		{out: &Output{ExitCode: 3, Stderr: "err2"}},
	}}
	exec := NewStepExec(fake, testLogger())

	step := &domain.Step{
		ID:      "doomed",
		Command: "false",
		Retry:   &domain.RetryPolicy{MaxAttempts: 2},
	}
	result := exec.Execute(context.Background(), step, Invocation{StepID: "doomed"})

	if result.Status != domain.StepStatusFailed {
		t.Errorf("status = %s", result.Status)
	}
	if result.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", result.Attempts)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want last attempt's 3", result.ExitCode)
	}
	if result.Stderr != "err2" {
		t.Errorf("stderr = %q", result.Stderr)
	}
}

func TestStepExec_TimeoutRetryable(t *testing.T) {
	fake := &fakeRunner{outputs: []fakeOutcome{
		{out: &Output{ExitCode: -1, TimedOut: true}},
		{out: &Output{ExitCode: 0}},
	}}
	exec := NewStepExec(fake, testLogger())

	step := &domain.Step{
		ID:         "slow",
		Command:    "slow-tool",
		TimeoutSec: 1,
		Retry:      &domain.RetryPolicy{MaxAttempts: 2},
	}
	result := exec.Execute(context.Background(), step, Invocation{StepID: "slow", Timeout: time.Second})

	if result.Status != domain.StepStatusSucceeded {
		t.Errorf("status = %s", result.Status)
	}
	if result.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", result.Attempts)
	}
}

func TestStepExec_TimeoutFinal(t *testing.T) {
	fake := &fakeRunner{outputs: []fakeOutcome{
		{out: &Output{ExitCode: -1, TimedOut: true}},
	}}
	exec := NewStepExec(fake, testLogger())

	step := &domain.Step{ID: "slow", Command: "slow-tool", TimeoutSec: 1}
	result := exec.Execute(context.Background(), step, Invocation{StepID: "slow", Timeout: time.Second})

	if result.Status != domain.StepStatusTimedOut {
		t.Errorf("status = %s", result.Status)
	}
	if result.ExitCode != -1 {
		t.Errorf("exit code = %d", result.ExitCode)
	}
	if result.Message == "" {
		t.Error("expected timeout message")
	}
}

func TestStepExec_NoRetryAfterSuccess(t *testing.T) {
	fake := &fakeRunner{outputs: []fakeOutcome{
		{out: &Output{ExitCode: 0}},
		{out: &Output{ExitCode: 1}},
	}}
	exec := NewStepExec(fake, testLogger())

	step := &domain.Step{
		ID:      "once",
		Command: "true",
		Retry:   &domain.RetryPolicy{MaxAttempts: 5},
	}
	result := exec.Execute(context.Background(), step, Invocation{StepID: "once"})

	if result.Status != domain.StepStatusSucceeded {
		t.Errorf("status = %s", result.Status)
	}
	if fake.calls != 1 {
		t.Errorf("runner called %d times, want 1", fake.calls)
	}
}

func TestStepExec_SpawnFailure(t *testing.T) {
	fake := &fakeRunner{outputs: []fakeOutcome{
		{err: errors.New("spawn: no such file")},
	}}
	exec := NewStepExec(fake, testLogger())

	step := &domain.Step{ID: "broken", Command: "ghost"}
	result := exec.Execute(context.Background(), step, Invocation{StepID: "broken"})

	if result.Status != domain.StepStatusFailed {
		t.Errorf("status = %s", result.Status)
	}
	if result.ExitCode != -1 {
		t.Errorf("exit code = %d", result.ExitCode)
	}
	if result.Message == "" {
		t.Error("expected spawn error message")
	}
}

func TestStepExec_CancelledDuringBackoff(t *testing.T) {
	fake := &fakeRunner{outputs: []fakeOutcome{
		{out: &Output{ExitCode: 1}},
		{out: &Output{ExitCode: 0}},
	}}
	exec := NewStepExec(fake, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	step := &domain.Step{
		ID:      "waiting",
		Command: "flaky",
		Retry:   &domain.RetryPolicy{MaxAttempts: 2, BackoffSec: 10},
	}

	start := time.Now()
	result := exec.Execute(ctx, step, Invocation{StepID: "waiting"})

	if result.Status != domain.StepStatusCancelled {
		t.Errorf("status = %s", result.Status)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took too long: %s", elapsed)
	}
}

func TestStepExec_CancelledBeforeRun(t *testing.T) {
	fake := &fakeRunner{outputs: []fakeOutcome{
		{out: &Output{ExitCode: 0}},
	}}
	exec := NewStepExec(fake, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	step := &domain.Step{ID: "never", Command: "true"}
	result := exec.Execute(ctx, step, Invocation{StepID: "never"})

	if result.Status != domain.StepStatusCancelled {
		t.Errorf("status = %s", result.Status)
	}
	if fake.calls != 0 {
		t.Errorf("runner called %d times, want 0", fake.calls)
	}
}
