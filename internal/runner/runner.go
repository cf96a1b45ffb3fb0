package runner

import (
	"context"
	"time"
)

// Invocation — одна полностью подготовленная к запуску команда.
// Все плейсхолдеры уже отрезолвлены движком.
type Invocation struct {
	// StepID — идентификатор шага (для логов).
	StepID string

	// Command — команда для /bin/sh -c.
	Command string

	// WorkingDir — рабочая директория процесса.
	WorkingDir string

	// Env — дополнительные переменные окружения.
	// Накладываются поверх окружения родительского процесса.
	Env map[string]string

	// Timeout — таймаут одной попытки. 0 — без таймаута.
	Timeout time.Duration
}

// Output — исход одной попытки выполнения.
type Output struct {
	// ExitCode — код завершения процесса. -1, если процесс не был
	// запущен или был убит по таймауту.
	ExitCode int

	// Stdout — захваченный stdout (с учётом лимита захвата).
	Stdout string

	// Stderr — захваченный stderr.
	Stderr string

	// TimedOut — попытка убита по таймауту Invocation.Timeout.
	TimedOut bool
}

// Runner выполняет одну попытку команды.
//
// Ненулевой код завершения и таймаут — не ошибки: они возвращаются
// в Output. Ошибка возвращается только при невозможности запустить
// процесс или при отмене родительского контекста.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*Output, error)
}
