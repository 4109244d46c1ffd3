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

	"github.com/radieske/wager-marketplace/internal/feed-service/cache"
	httpapi "github.com/radieske/wager-marketplace/internal/feed-service/http"
	"github.com/radieske/wager-marketplace/internal/feed-service/ws"
	sharedcache "github.com/radieske/wager-marketplace/internal/shared/cache"
	"github.com/radieske/wager-marketplace/internal/shared/config"
	"github.com/radieske/wager-marketplace/internal/shared/logger"
	"github.com/radieske/wager-marketplace/internal/shared/metrics"
)

func main() {
	cfg := config.LoadFor("feed-service")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	redisClient, err := sharedcache.ConnectRedis(cfg.Redis())
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("redis connected")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.NewFeed(prometheus.DefaultRegisterer)

	// POC: aceita qualquer origem
	hub := ws.NewHub(func(*http.Request) bool { return true }, log)
	hub.OnClients = func(n int) { m.WSClients.Set(float64(n)) }
	ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log)

	api := &httpapi.API{Cache: cache.New(redisClient), WS: hub.HandleWS, Log: log}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	go func() {
		log.Info("feed-service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("feed server", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("feed-service stopped")
}
