package runner

import (
	"context"
)

// DryRunner — сухой прогон: команды не запускаются.
//
// Каждый вызов возвращает успешный результат с пометкой в stdout,
// чтобы граф прошёл те же стадии планирования, резолвинга и условий,
// что и при реальном запуске.
type DryRunner struct{}

// NewDryRunner создаёт DryRunner.
func NewDryRunner() *DryRunner {
	return &DryRunner{}
}

// Run возвращает синтетический успешный результат.
func (r *DryRunner) Run(ctx context.Context, inv Invocation) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Output{
		ExitCode: 0,
		Stdout:   "dry-run: " + inv.Command,
	}, nil
}
