package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/Runbook/internal/domain"
)

// Метрики выполнения workflow.
var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "runbook_runs_total",
		Help: "Завершённые runs по итоговому статусу",
	}, []string{"status"})

	runsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "runbook_runs_active",
		Help: "Runs в процессе выполнения",
	})

	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "runbook_steps_total",
		Help: "Завершённые шаги по терминальному статусу",
	}, []string{"status"})

	stepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "runbook_step_duration_seconds",
		Help:    "Длительность выполнения шага",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	})

	stepRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "runbook_step_retries_total",
		Help: "Суммарное количество повторных попыток шагов",
	})
)

// MetricsSink транслирует события планировщика в метрики Prometheus.
// Реализует orchestrator.EventSink.
type MetricsSink struct{}

func (MetricsSink) RunStarted(*domain.Run) {
	runsActive.Inc()
}

func (MetricsSink) RunFinished(run *domain.Run) {
	// Провал валидации завершает run, который не стартовал
	if run.StartedAt != nil {
		runsActive.Dec()
	}
	runsTotal.WithLabelValues(string(run.Status)).Inc()
}

func (MetricsSink) StepStarted(*domain.Run, string, int) {}

func (MetricsSink) StepFinished(_ *domain.Run, result *domain.StepResult) {
	stepsTotal.WithLabelValues(string(result.Status)).Inc()
	stepDuration.Observe(result.Duration().Seconds())
	if result.Attempts > 1 {
		stepRetries.Add(float64(result.Attempts - 1))
	}
}

func (MetricsSink) StepSkipped(_ *domain.Run, result *domain.StepResult) {
	stepsTotal.WithLabelValues(string(result.Status)).Inc()
}
