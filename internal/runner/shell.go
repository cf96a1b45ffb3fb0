package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Лимит захвата stdout/stderr. Вывод сверх лимита отбрасывается,
// процесс при этом продолжает писать в no-op.
const maxCaptureBytes = 1 << 20

// ShellRunner выполняет команды через интерпретатор оболочки.
type ShellRunner struct {
	// Shell — путь к интерпретатору. По умолчанию /bin/sh.
	Shell string

	// BaseDir — рабочая директория по умолчанию, если Invocation
	// не задаёт свою.
	BaseDir string
}

// NewShellRunner создаёт ShellRunner с оболочкой по умолчанию.
func NewShellRunner(baseDir string) *ShellRunner {
	return &ShellRunner{Shell: "/bin/sh", BaseDir: baseDir}
}

// Run выполняет одну попытку команды.
func (r *ShellRunner) Run(ctx context.Context, inv Invocation) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	attemptCtx := ctx
	var cancel context.CancelFunc
	if inv.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.CommandContext(attemptCtx, shell, "-c", inv.Command)

	cmd.Dir = inv.WorkingDir
	if cmd.Dir == "" {
		cmd.Dir = r.BaseDir
	}

	cmd.Env = os.Environ()
	for key, value := range inv.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &cappedWriter{buf: &stdout, limit: maxCaptureBytes}
	cmd.Stderr = &cappedWriter{buf: &stderr, limit: maxCaptureBytes}

	err := cmd.Run()

	out := &Output{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	switch {
	case err == nil:
		out.ExitCode = 0
		return out, nil

	case attemptCtx.Err() != nil:
		// Процесс убит контекстом: либо таймаут попытки,
		// либо отмена родителя
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		out.ExitCode = -1
		out.TimedOut = true
		return out, nil

	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		// Процесс не удалось запустить (нет оболочки, нет директории)
		return nil, fmt.Errorf("spawn %q: %w", inv.Command, err)
	}
}

// cappedWriter пишет в буфер до лимита, дальше молча отбрасывает.
type cappedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	room := w.limit - w.buf.Len()
	if room <= 0 {
		return len(p), nil
	}
	if len(p) > room {
		w.buf.Write(p[:room])
		return len(p), nil
	}
	return w.buf.Write(p)
}
