// Runbook CLI — инструмент командной строки для выполнения workflow
// и управления runs и schedules через HTTP API.
//
// Использование:
//
//	runbook [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	exec       Локальное выполнение workflow-файла
//	validate   Локальная проверка workflow-файла
//	run        Управление runs через API
//	schedule   Управление schedules через API
//	recommend  Подсказки по истории запусков
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Runbook/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "runbook",
		Short:         "Runbook CLI — workflow execution tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewExecCmd(outputFn),
		cli.NewValidateCmd(outputFn),
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
		cli.NewRecommendCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
