// Runbook Server — HTTP API и исполнитель runs в одном процессе.
//
// Сервер:
//   - Принимает workflow через API и ставит runs в очередь
//   - Потребляет runs.requested и выполняет workflow
//   - Сохраняет статусы и результаты шагов в Postgres
//   - Публикует события run.finished и steps.events в RabbitMQ
//
// API и исполнитель живут в одном процессе, поэтому
// POST /runs/{id}/cancel отменяет выполняющийся run напрямую.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Runbook/internal/api"
	"github.com/shaiso/Runbook/internal/mq"
	"github.com/shaiso/Runbook/internal/orchestrator"
	"github.com/shaiso/Runbook/internal/recommend"
	"github.com/shaiso/Runbook/internal/repo"
	"github.com/shaiso/Runbook/internal/telemetry"
	"github.com/shaiso/Runbook/internal/worker"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting runbook-server")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	runRepo := repo.NewRunRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)

	// RabbitMQ
	mqConn, err := mq.NewConnection(mq.URL(), logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	publisher := mq.NewPublisher(mqConn, logger)

	// Исполнитель runs: метрики + публикация step-событий
	executor := worker.New(worker.Config{
		RunRepo:   runRepo,
		Publisher: publisher,
		Conn:      mqConn,
		Sinks: []orchestrator.EventSink{
			telemetry.MetricsSink{},
			mq.NewEventBridge(publisher, logger),
		},
		MaxConcurrency: envInt("MAX_CONCURRENCY", 0),
		SandboxDir:     os.Getenv("SANDBOX_DIR"),
		ParallelRuns:   envInt("PARALLEL_RUNS", 0),
		Logger:         logger,
	})

	if err := executor.Start(ctx); err != nil {
		logger.Error("failed to start executor", "error", err)
		os.Exit(1)
	}

	// Рекомендатель читает историю завершённых runs
	recommender := recommend.New(recommend.Config{
		Source: runRepo,
		Logger: logger,
	})

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		RunRepo:      runRepo,
		ScheduleRepo: scheduleRepo,
		Publisher:    publisher,
		Canceller:    executor,
		Recommender:  recommender,
		Logger:       logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("SERVER_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Останавливаем исполнитель: выполняющиеся runs получают отмену
	executor.Stop()

	logger.Info("runbook-server stopped")
}

// envInt читает целочисленную переменную окружения.
// 0, если переменная не задана или не парсится.
func envInt(name string, defaultVal int) int {
	v := os.Getenv(name)
	if v == "" {
		return defaultVal
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return defaultVal
	}
	return n
}
