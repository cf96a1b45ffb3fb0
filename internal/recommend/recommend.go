package recommend

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Runbook/internal/domain"
	"github.com/shaiso/Runbook/internal/repo"
)

// Default configuration values.
const (
	defaultWindow     = 30 * 24 * time.Hour
	defaultSampleSize = 1000
)

// HistorySource — источник завершённых runs.
// Реализуется repo.RunRepo.
type HistorySource interface {
	ListFinishedSince(ctx context.Context, filter repo.HistoryFilter) ([]domain.Run, error)
}

// Suggestion — подсказка по одному workflow.
type Suggestion struct {
	WorkflowID   uuid.UUID `json:"workflow_id"`
	WorkflowName string    `json:"workflow_name"`

	// Runs — сколько раз workflow запускался в окне.
	Runs int `json:"runs"`

	// Failures — сколько runs завершились FAILED или PARTIAL_FAILURE.
	Failures int `json:"failures"`

	// FailureRate — доля неудачных runs, 0..1.
	FailureRate float64 `json:"failure_rate"`

	// LastRunAt — время последнего завершённого run.
	LastRunAt time.Time `json:"last_run_at"`
}

// Recommender считает частотную статистику по истории запусков.
type Recommender struct {
	source HistorySource
	window time.Duration
	sample int
	logger *slog.Logger
}

// Config — конфигурация Recommender.
type Config struct {
	// Source — источник истории (обычно repo.RunRepo).
	Source HistorySource

	// Window — глубина истории (default: 30 дней).
	Window time.Duration

	// SampleSize — максимум runs для анализа (default: 1000).
	SampleSize int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Recommender.
func New(cfg Config) *Recommender {
	window := cfg.Window
	if window <= 0 {
		window = defaultWindow
	}

	sample := cfg.SampleSize
	if sample <= 0 {
		sample = defaultSampleSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Recommender{
		source: cfg.Source,
		window: window,
		sample: sample,
		logger: logger,
	}
}

// TopWorkflows возвращает до limit workflow, отсортированных по числу
// запусков в окне. При равенстве — по времени последнего запуска.
func (r *Recommender) TopWorkflows(ctx context.Context, limit int) ([]Suggestion, error) {
	suggestions, err := r.collect(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Runs != suggestions[j].Runs {
			return suggestions[i].Runs > suggestions[j].Runs
		}
		return suggestions[i].LastRunAt.After(suggestions[j].LastRunAt)
	})

	return clip(suggestions, limit), nil
}

// Flaky возвращает до limit workflow с наибольшей долей неудач.
// Workflow с числом запусков меньше minRuns не учитываются:
// по паре запусков долю считать рано.
func (r *Recommender) Flaky(ctx context.Context, minRuns, limit int) ([]Suggestion, error) {
	suggestions, err := r.collect(ctx)
	if err != nil {
		return nil, err
	}

	filtered := suggestions[:0]
	for _, s := range suggestions {
		if s.Runs >= minRuns && s.Failures > 0 {
			filtered = append(filtered, s)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].FailureRate != filtered[j].FailureRate {
			return filtered[i].FailureRate > filtered[j].FailureRate
		}
		return filtered[i].Runs > filtered[j].Runs
	})

	return clip(filtered, limit), nil
}

// collect агрегирует историю в подсказки по workflow.
func (r *Recommender) collect(ctx context.Context) ([]Suggestion, error) {
	runs, err := r.source.ListFinishedSince(ctx, repo.HistoryFilter{
		Since: time.Now().Add(-r.window),
		Limit: r.sample,
	})
	if err != nil {
		return nil, err
	}

	byWorkflow := make(map[uuid.UUID]*Suggestion)
	for i := range runs {
		run := &runs[i]

		s, ok := byWorkflow[run.WorkflowID]
		if !ok {
			s = &Suggestion{
				WorkflowID:   run.WorkflowID,
				WorkflowName: run.WorkflowName,
			}
			byWorkflow[run.WorkflowID] = s
		}

		s.Runs++
		if run.Status == domain.RunStatusFailed || run.Status == domain.RunStatusPartialFailure {
			s.Failures++
		}
		if run.FinishedAt != nil && run.FinishedAt.After(s.LastRunAt) {
			s.LastRunAt = *run.FinishedAt
		}
	}

	suggestions := make([]Suggestion, 0, len(byWorkflow))
	for _, s := range byWorkflow {
		if s.Runs > 0 {
			s.FailureRate = float64(s.Failures) / float64(s.Runs)
		}
		suggestions = append(suggestions, *s)
	}

	return suggestions, nil
}

func clip(s []Suggestion, limit int) []Suggestion {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
