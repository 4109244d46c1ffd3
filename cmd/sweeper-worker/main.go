package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/shared/config"
	"github.com/radieske/wager-marketplace/internal/shared/logger"
	"github.com/radieske/wager-marketplace/internal/shared/metrics"
	"github.com/radieske/wager-marketplace/internal/sweeper-worker/scheduler"
	"github.com/radieske/wager-marketplace/internal/wager-service/producer"
	"github.com/radieske/wager-marketplace/internal/wager-service/service"
	"github.com/radieske/wager-marketplace/internal/wager-service/store"
)

func main() {
	cfg := config.LoadFor("sweeper-worker")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, cfg.StoreDriver, cfg.PostgresDSN, cfg.SQLitePath, log)
	if err != nil {
		log.Fatal("store open", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer st.Close()

	pub, closePub := producer.NewFromConfig(cfg)
	defer closePub()

	svc := service.New(service.Deps{
		Store:           st,
		Publisher:       pub,
		Metrics:         metrics.NewWager(prometheus.DefaultRegisterer),
		Log:             log,
		DefaultCurrency: cfg.DefaultCurrency,
	})

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, svc.Ping)

	sched := scheduler.New(ctx, svc, log)
	if err := sched.Register(cfg.SweepSchedule, cfg.ReconcileSchedule); err != nil {
		log.Fatal("invalid schedule", zap.Error(err))
	}

	// reconcilia uma vez no startup para popular o gauge
	sched.Reconcile()
	sched.Start()
	log.Info("sweeper started",
		zap.String("sweep", cfg.SweepSchedule),
		zap.String("reconcile", cfg.ReconcileSchedule))

	<-ctx.Done()
	sched.Stop()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("sweeper stopped")
}
