package api

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Runbook/internal/mq"
	"github.com/shaiso/Runbook/internal/recommend"
	"github.com/shaiso/Runbook/internal/repo"
)

// Canceller отменяет выполняющийся в процессе run.
// Реализуется worker.Executor. Возвращает true, если run был найден
// среди выполняющихся и ему отправлен сигнал отмены.
type Canceller interface {
	Cancel(runID uuid.UUID) bool
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runRepo      *repo.RunRepo
	scheduleRepo *repo.ScheduleRepo
	publisher    *mq.Publisher
	canceller    Canceller
	recommender  *recommend.Recommender
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	RunRepo      *repo.RunRepo
	ScheduleRepo *repo.ScheduleRepo
	Publisher    *mq.Publisher
	Canceller    Canceller
	Recommender  *recommend.Recommender
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		runRepo:      cfg.RunRepo,
		scheduleRepo: cfg.ScheduleRepo,
		publisher:    cfg.Publisher,
		canceller:    cfg.Canceller,
		recommender:  cfg.Recommender,
		logger:       cfg.Logger,
	}
}
