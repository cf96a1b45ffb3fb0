package orchestrator

import (
	"github.com/shaiso/Runbook/internal/domain"
)

// EventSink получает события жизненного цикла run.
//
// RunStarted, RunFinished, StepFinished и StepSkipped приходят из
// горутины планировщика последовательно для одного run. StepStarted
// сообщается на каждую попытку шага и приходит из горутины самого
// шага, то есть конкурентно с остальными событиями. Реализации
// не должны блокировать надолго: планировщик ждёт возврата перед
// продолжением.
//
// Реализации: mq.EventBridge (публикация в RabbitMQ),
// telemetry.MetricsSink (счётчики Prometheus), NopSink.
type EventSink interface {
	RunStarted(run *domain.Run)
	StepStarted(run *domain.Run, stepID string, attempt int)
	StepFinished(run *domain.Run, result *domain.StepResult)
	StepSkipped(run *domain.Run, result *domain.StepResult)
	RunFinished(run *domain.Run)
}

// NopSink — EventSink, игнорирующий все события.
type NopSink struct{}

func (NopSink) RunStarted(*domain.Run)                       {}
func (NopSink) StepStarted(*domain.Run, string, int)         {}
func (NopSink) StepFinished(*domain.Run, *domain.StepResult) {}
func (NopSink) StepSkipped(*domain.Run, *domain.StepResult)  {}
func (NopSink) RunFinished(*domain.Run)                      {}

// MultiSink рассылает события нескольким подписчикам по порядку.
type MultiSink []EventSink

func (m MultiSink) RunStarted(run *domain.Run) {
	for _, s := range m {
		s.RunStarted(run)
	}
}

func (m MultiSink) StepStarted(run *domain.Run, stepID string, attempt int) {
	for _, s := range m {
		s.StepStarted(run, stepID, attempt)
	}
}

func (m MultiSink) StepFinished(run *domain.Run, result *domain.StepResult) {
	for _, s := range m {
		s.StepFinished(run, result)
	}
}

func (m MultiSink) StepSkipped(run *domain.Run, result *domain.StepResult) {
	for _, s := range m {
		s.StepSkipped(run, result)
	}
}

func (m MultiSink) RunFinished(run *domain.Run) {
	for _, s := range m {
		s.RunFinished(run)
	}
}
