package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/api-gateway/proxy"
	"github.com/radieske/wager-marketplace/internal/shared/config"
	"github.com/radieske/wager-marketplace/internal/shared/logger"
	"github.com/radieske/wager-marketplace/internal/shared/metrics"
)

func main() {
	cfg := config.LoadFor("api-gateway")
	log, _ := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer log.Sync()

	h, err := proxy.NewRouter(cfg.WagerURL, cfg.FeedURL, log)
	if err != nil {
		log.Fatal("gateway routes", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("api-gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("wager", cfg.WagerURL),
			zap.String("feed", cfg.FeedURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("gateway failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
}
