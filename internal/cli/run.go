package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunSubmitCmd(clientFn, outputFn),
		newRunListCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunCancelCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var vars []string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "submit WORKFLOW_FILE",
		Short: "Submit a workflow for execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			definition, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read workflow file: %w", err)
			}

			variables, err := parseVars(vars)
			if err != nil {
				return err
			}

			run, err := client.SubmitRun(SubmitRunRequest{
				Workflow:  definition,
				Variables: variables,
				DryRun:    dryRun,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run submitted: %s", run.ID))
			out.Print(
				[]string{"ID", "WORKFLOW", "STATUS", "DRY_RUN", "CREATED"},
				[][]string{{run.ID, run.WorkflowName, run.Status, strconv.FormatBool(run.DryRun), run.CreatedAt}},
				run,
			)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&vars, "var", nil, "Input variables as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the run without executing commands")

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var workflowID string
	var workflowName string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				WorkflowID:   workflowID,
				WorkflowName: workflowName,
				Status:       status,
				Limit:        limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "WORKFLOW", "STATUS", "STARTED", "FINISHED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, r.WorkflowName, r.Status, r.StartedAt, r.FinishedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "Filter by workflow ID")
	cmd.Flags().StringVar(&workflowName, "workflow", "", "Filter by workflow name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, PARTIAL_FAILURE, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details with step results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "WORKFLOW", "STATUS", "ERROR", "STARTED", "FINISHED"},
				[][]string{{run.ID, run.WorkflowName, run.Status, run.Error, run.StartedAt, run.FinishedAt}},
				run,
			)

			if len(run.Results) > 0 && !out.jsonMode {
				out.StepTable(stepRows(run.Results))
			}
			return nil
		},
	}
}

func newRunCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a running run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.CancelRun(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run cancelled: %s", run.ID))
			return nil
		},
	}
}

// stepRows конвертирует результаты шагов из API в строки таблицы.
func stepRows(results map[string]StepResultResponse) []StepRow {
	rows := make([]StepRow, 0, len(results))
	for stepID, r := range results {
		rows = append(rows, StepRow{
			StepID:   stepID,
			Status:   r.Status,
			ExitCode: r.ExitCode,
			Attempts: r.Attempts,
			Message:  r.Message,
		})
	}
	return rows
}

// parseVars разбирает флаги --var KEY=VALUE.
func parseVars(vars []string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, nil
	}

	variables := make(map[string]string, len(vars))
	for _, kv := range vars {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable format %q, expected KEY=VALUE", kv)
		}
		variables[key] = value
	}
	return variables, nil
}
