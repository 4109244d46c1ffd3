package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/shared/config"
	"github.com/radieske/wager-marketplace/internal/shared/logger"
	"github.com/radieske/wager-marketplace/internal/shared/metrics"
	httpapi "github.com/radieske/wager-marketplace/internal/wager-service/http"
	"github.com/radieske/wager-marketplace/internal/wager-service/payments"
	"github.com/radieske/wager-marketplace/internal/wager-service/producer"
	"github.com/radieske/wager-marketplace/internal/wager-service/service"
	"github.com/radieske/wager-marketplace/internal/wager-service/store"
)

func main() {
	cfg := config.LoadFor("wager-service")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// store: postgres ou sqlite, schema aplicado no startup
	st, err := store.Open(ctx, cfg.StoreDriver, cfg.PostgresDSN, cfg.SQLitePath, log)
	if err != nil {
		log.Fatal("store open", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer st.Close()
	log.Info("store ready", zap.String("driver", cfg.StoreDriver))

	pub, closePub := producer.NewFromConfig(cfg)
	defer closePub()
	log.Info("publisher ready", zap.Bool("kafka", cfg.KafkaEnabled))

	svc := service.New(service.Deps{
		Store:           st,
		Payments:        payments.NewMock(),
		Publisher:       pub,
		Metrics:         metrics.NewWager(prometheus.DefaultRegisterer),
		Log:             log,
		DefaultCurrency: cfg.DefaultCurrency,
	})

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, svc.Ping)

	api := httpapi.NewAPI(svc, log, httpapi.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("wager-service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("wager-service stopped")
}
