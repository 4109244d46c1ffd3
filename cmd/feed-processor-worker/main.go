package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/feed-processor/cache"
	"github.com/radieske/wager-marketplace/internal/feed-processor/consumer"
	"github.com/radieske/wager-marketplace/internal/feed-processor/pubsub"
	sharedcache "github.com/radieske/wager-marketplace/internal/shared/cache"
	"github.com/radieske/wager-marketplace/internal/shared/config"
	"github.com/radieske/wager-marketplace/internal/shared/kafka"
	"github.com/radieske/wager-marketplace/internal/shared/logger"
	"github.com/radieske/wager-marketplace/internal/shared/metrics"
)

func main() {
	cfg := config.LoadFor("feed-processor-worker")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	redisClient, err := sharedcache.ConnectRedis(cfg.Redis())
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// snapshots expiram se o processor parar de receber eventos da aposta
	rcache := cache.NewRedisCache(redisClient, 24*time.Hour)

	// um consumer group para apostas e contas
	reader := kafka.NewGroupReader(cfg.KafkaBrokers, "feed-processor", cfg.TopicBetEvents, cfg.TopicAccountEvents)
	defer reader.Close()

	m := metrics.NewFeed(prometheus.DefaultRegisterer)

	proc := &consumer.Processor{
		Log:          log,
		Reader:       reader,
		Cache:        rcache,
		Broadcaster:  pubsub.NewRedisBroadcaster(redisClient),
		Channel:      cfg.RedisPubSubChannel,
		AccountTopic: cfg.TopicAccountEvents,
		OnConsumed:   func() { m.Consumed.Inc() },
		OnCached:     func() { m.Cached.Inc() },
		OnBroadcast:  func() { m.Broadcast.Inc() },
		OnError:      func(stage string) { m.Errors.WithLabelValues(stage).Inc() },
	}

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("feed-processor started",
		zap.String("bets", cfg.TopicBetEvents),
		zap.String("accounts", cfg.TopicAccountEvents),
		zap.String("channel", cfg.RedisPubSubChannel))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("feed-processor stopped")
}
