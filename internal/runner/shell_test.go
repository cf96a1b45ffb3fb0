package runner

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestShellRunner_Success(t *testing.T) {
	r := NewShellRunner(t.TempDir())

	out, err := r.Run(context.Background(), Invocation{
		StepID:  "hello",
		Command: "echo hello world",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.ExitCode != 0 {
		t.Errorf("exit code = %d", out.ExitCode)
	}
	if strings.TrimSpace(out.Stdout) != "hello world" {
		t.Errorf("stdout = %q", out.Stdout)
	}
	if out.TimedOut {
		t.Error("unexpected timeout")
	}
}

func TestShellRunner_NonZeroExit(t *testing.T) {
	r := NewShellRunner(t.TempDir())

	out, err := r.Run(context.Background(), Invocation{
		StepID:  "fail",
		Command: "echo oops >&2; exit 3",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", out.ExitCode)
	}
	if strings.TrimSpace(out.Stderr) != "oops" {
		t.Errorf("stderr = %q", out.Stderr)
	}
}

func TestShellRunner_Env(t *testing.T) {
	r := NewShellRunner(t.TempDir())

	out, err := r.Run(context.Background(), Invocation{
		StepID:  "env",
		Command: "echo $GREETING",
		Env:     map[string]string{"GREETING": "privet"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.TrimSpace(out.Stdout) != "privet" {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestShellRunner_WorkingDir(t *testing.T) {
	dir := t.TempDir()
	r := NewShellRunner(t.TempDir())

	out, err := r.Run(context.Background(), Invocation{
		StepID:     "pwd",
		Command:    "pwd",
		WorkingDir: dir,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.TrimSpace(out.Stdout) != dir {
		t.Errorf("pwd = %q, want %q", out.Stdout, dir)
	}
}

func TestShellRunner_Timeout(t *testing.T) {
	r := NewShellRunner(t.TempDir())

	start := time.Now()
	out, err := r.Run(context.Background(), Invocation{
		StepID:  "slow",
		Command: "sleep 5",
		Timeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !out.TimedOut {
		t.Fatal("expected timeout")
	}
	if out.ExitCode != -1 {
		t.Errorf("exit code = %d, want -1", out.ExitCode)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took too long: %s", elapsed)
	}
}

func TestShellRunner_Cancelled(t *testing.T) {
	r := NewShellRunner(t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, Invocation{
		StepID:  "slow",
		Command: "sleep 5",
	})
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestShellRunner_SpawnFailure(t *testing.T) {
	r := &ShellRunner{Shell: "/nonexistent/shell"}

	_, err := r.Run(context.Background(), Invocation{
		StepID:  "broken",
		Command: "echo hi",
	})
	if err == nil {
		t.Fatal("expected spawn error")
	}
}

func TestCappedWriter(t *testing.T) {
	r := NewShellRunner(t.TempDir())

	// Генерируем вывод заведомо больше лимита захвата
	out, err := r.Run(context.Background(), Invocation{
		StepID:  "flood",
		Command: "head -c 3000000 /dev/zero | tr '\\0' x",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out.Stdout) != maxCaptureBytes {
		t.Errorf("captured %d bytes, want %d", len(out.Stdout), maxCaptureBytes)
	}
	if out.ExitCode != 0 {
		t.Errorf("exit code = %d", out.ExitCode)
	}
}

func TestDryRunner(t *testing.T) {
	r := NewDryRunner()

	out, err := r.Run(context.Background(), Invocation{
		StepID:  "rmrf",
		Command: "rm -rf /data",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.ExitCode != 0 {
		t.Errorf("exit code = %d", out.ExitCode)
	}
	if out.Stdout != "dry-run: rm -rf /data" {
		t.Errorf("stdout = %q", out.Stdout)
	}
}
