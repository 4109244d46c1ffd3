package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options vem do config (REDIS_ADDR, REDIS_PASSWORD, REDIS_DB)
type Options struct {
	Addr     string
	Password string
	DB       int
}

// ConnectRedis conecta e valida o Redis com um ping de até 2s
func ConnectRedis(o Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", o.Addr, err)
	}

	return rdb, nil
}
