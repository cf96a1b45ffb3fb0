package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для управления schedules.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage schedules",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleUpdateCmd(clientFn, outputFn),
		newScheduleDeleteCmd(clientFn, outputFn),
		newScheduleEnableCmd(clientFn, outputFn, true),
		newScheduleEnableCmd(clientFn, outputFn, false),
	)

	return cmd
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedules, err := client.ListSchedules()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "WORKFLOW", "TRIGGER", "TZ", "ENABLED", "NEXT_DUE"}
			rows := make([][]string, len(schedules))
			for i, s := range schedules {
				rows[i] = []string{
					s.ID, s.Name, s.WorkflowName, triggerString(s),
					s.Timezone, strconv.FormatBool(s.Enabled), s.NextDueAt,
				}
			}

			out.Print(headers, rows, schedules)
			return nil
		},
	}
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var cronExpr string
	var intervalSec int
	var timezone string
	var disabled bool
	var vars []string

	cmd := &cobra.Command{
		Use:   "create WORKFLOW_FILE",
		Short: "Create a schedule for a workflow file",
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

			schedule, err := client.CreateSchedule(CreateScheduleRequest{
				Name:        name,
				Workflow:    definition,
				CronExpr:    cronExpr,
				IntervalSec: intervalSec,
				Timezone:    timezone,
				Enabled:     !disabled,
				Variables:   variables,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule created: %s", schedule.ID))
			out.Print(
				[]string{"ID", "NAME", "WORKFLOW", "TRIGGER", "ENABLED", "NEXT_DUE"},
				[][]string{{
					schedule.ID, schedule.Name, schedule.WorkflowName,
					triggerString(*schedule), strconv.FormatBool(schedule.Enabled), schedule.NextDueAt,
				}},
				schedule,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Schedule name")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (e.g. \"0 9 * * *\")")
	cmd.Flags().IntVar(&intervalSec, "interval", 0, "Interval in seconds (used when --cron is not set)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "Timezone for cron evaluation (default UTC)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the schedule disabled")
	cmd.Flags().StringSliceVar(&vars, "var", nil, "Input variables as KEY=VALUE (repeatable)")

	return cmd
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show schedule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.GetSchedule(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "WORKFLOW", "TRIGGER", "TZ", "ENABLED", "NEXT_DUE", "LAST_RUN"},
				[][]string{{
					schedule.ID, schedule.Name, schedule.WorkflowName, triggerString(*schedule),
					schedule.Timezone, strconv.FormatBool(schedule.Enabled),
					schedule.NextDueAt, schedule.LastRunAt,
				}},
				schedule,
			)
			return nil
		},
	}
}

func newScheduleUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var cronExpr string
	var intervalSec int
	var timezone string
	var workflowFile string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateScheduleRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("cron") {
				req.CronExpr = &cronExpr
			}
			if cmd.Flags().Changed("interval") {
				req.IntervalSec = &intervalSec
			}
			if cmd.Flags().Changed("timezone") {
				req.Timezone = &timezone
			}
			if workflowFile != "" {
				definition, err := os.ReadFile(workflowFile)
				if err != nil {
					return fmt.Errorf("read workflow file: %w", err)
				}
				req.Workflow = definition
			}

			schedule, err := client.UpdateSchedule(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule updated: %s", schedule.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Schedule name")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression")
	cmd.Flags().IntVar(&intervalSec, "interval", 0, "Interval in seconds")
	cmd.Flags().StringVar(&timezone, "timezone", "", "Timezone for cron evaluation")
	cmd.Flags().StringVar(&workflowFile, "workflow-file", "", "Replace the workflow definition from file")

	return cmd
}

func newScheduleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteSchedule(args[0]); err != nil {
				return err
			}

			out.Success("Schedule deleted")
			return nil
		},
	}
}

func newScheduleEnableCmd(clientFn func() *Client, outputFn func() *Output, enable bool) *cobra.Command {
	use, short := "enable ID", "Enable a schedule"
	if !enable {
		use, short = "disable ID", "Disable a schedule"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var schedule *ScheduleResponse
			var err error
			if enable {
				schedule, err = client.EnableSchedule(args[0])
			} else {
				schedule, err = client.DisableSchedule(args[0])
			}
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule %s enabled=%t", schedule.ID, schedule.Enabled))
			return nil
		},
	}
}

// triggerString описывает триггер расписания одной строкой.
func triggerString(s ScheduleResponse) string {
	if s.CronExpr != "" {
		return "cron " + s.CronExpr
	}
	return fmt.Sprintf("every %ds", s.IntervalSec)
}
