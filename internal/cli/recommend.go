package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRecommendCmd создаёт команду подсказок по истории запусков.
func NewRecommendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flaky bool
	var limit int

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Show workflow suggestions from run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			kind := "top"
			if flaky {
				kind = "flaky"
			}

			suggestions, err := client.ListRecommendations(kind, limit)
			if err != nil {
				return err
			}

			headers := []string{"WORKFLOW", "RUNS", "FAILURES", "FAILURE_RATE", "LAST_RUN"}
			rows := make([][]string, len(suggestions))
			for i, s := range suggestions {
				rows[i] = []string{
					s.WorkflowName,
					strconv.Itoa(s.Runs),
					strconv.Itoa(s.Failures),
					fmt.Sprintf("%.0f%%", s.FailureRate*100),
					s.LastRunAt,
				}
			}

			out.Print(headers, rows, suggestions)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flaky, "flaky", false, "Show workflows with the highest failure rate")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of suggestions")

	return cmd
}
