// Runbook Scheduler — запускает workflow по расписаниям.
//
// Каждый тик планировщик выбирает due schedules, создаёт runs и
// публикует run.requested. Лидерство между экземплярами решается
// через Postgres advisory lock: тикает только лидер.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Runbook/internal/mq"
	"github.com/shaiso/Runbook/internal/repo"
	"github.com/shaiso/Runbook/internal/scheduler"
	"github.com/shaiso/Runbook/internal/telemetry"
)

const schedLockKey int64 = 640031

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting runbook-scheduler")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	scheduleRepo := repo.NewScheduleRepo(pool)
	runRepo := repo.NewRunRepo(pool)

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

	sched := scheduler.New(scheduler.Config{
		ScheduleRepo: scheduleRepo,
		RunRepo:      runRepo,
		Publisher:    mq.NewPublisher(mqConn, logger),
		Logger:       logger,
	})

	// scheduler loop
	go func() {
		tk := time.NewTicker(1 * time.Second)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
			}
		}()

		for {
			select {
			case <-tk.C:
				// Пытаемся стать лидером; advisory lock живёт,
				// пока жив коннект
				if !hasLock {
					var ok bool
					if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
						logger.Error("advisory lock failed", "error", err)
						continue
					}
					hasLock = ok
				}

				if !hasLock {
					// не лидер — пропускаем тик
					continue
				}

				if err := sched.Tick(ctx); err != nil {
					logger.Error("tick failed", "error", err)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":8081"
	if v := os.Getenv("SCHEDULER_PORT"); v != "" {
		addr = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("runbook-scheduler stopped")
}
