package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Runbook/internal/domain"
	"github.com/shaiso/Runbook/internal/engine"
	"github.com/shaiso/Runbook/internal/orchestrator"
)

// NewExecCmd создаёт команду локального выполнения workflow-файла.
// Выполнение происходит в текущем процессе, без сервера и очереди.
func NewExecCmd(outputFn func() *Output) *cobra.Command {
	var vars []string
	var dryRun bool
	var maxConcurrency int
	var sandboxDir string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "exec WORKFLOW_FILE",
		Short: "Execute a workflow file locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			definition, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read workflow file: %w", err)
			}

			wf, err := engine.ParseWorkflow(definition)
			if err != nil {
				return err
			}

			variables, err := parseVars(vars)
			if err != nil {
				return err
			}

			// Ctrl-C отменяет run: выполняющиеся шаги получают
			// CANCELLED, не стартовавшие не запускаются
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			sched := orchestrator.New(orchestrator.Config{
				MaxConcurrency: maxConcurrency,
				SandboxDir:     sandboxDir,
				Logger:         logger,
			})

			run := sched.Execute(ctx, wf, orchestrator.RunOptions{
				Variables: variables,
				DryRun:    dryRun,
			})

			printLocalRun(out, run)

			if run.Status != domain.RunStatusSucceeded {
				return fmt.Errorf("run finished with status %s", run.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&vars, "var", nil, "Input variables as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the run without executing commands")
	cmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "Maximum parallel steps (default 4)")
	cmd.Flags().StringVar(&sandboxDir, "sandbox-dir", "", "Default working directory for steps")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Verbose step logging")

	return cmd
}

// NewValidateCmd создаёт команду локальной проверки workflow-файла.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate WORKFLOW_FILE",
		Short: "Validate a workflow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			definition, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read workflow file: %w", err)
			}

			wf, err := engine.ParseWorkflow(definition)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow %q is valid: %d steps", wf.Name, len(wf.Steps)))
			return nil
		},
	}
}

// printLocalRun выводит итог локального run.
func printLocalRun(out *Output, run *domain.Run) {
	if out.jsonMode {
		out.JSON(run)
		return
	}

	out.Success(fmt.Sprintf("Run %s: %s (%s)", run.ID, run.Status, run.Duration()))
	if run.Error != "" {
		out.Error(run.Error)
	}

	if len(run.Results) == 0 {
		return
	}

	rows := make([]StepRow, 0, len(run.Results))
	for stepID, r := range run.Results {
		rows = append(rows, StepRow{
			StepID:   stepID,
			Status:   string(r.Status),
			ExitCode: r.ExitCode,
			Attempts: r.Attempts,
			Duration: r.Duration().String(),
			Message:  r.Message,
		})
	}

	out.StepTable(rows)
}
