package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StartRedisSubscriber escuta o canal Pub/Sub em uma goroutine
// e repassa as atualizações para os clientes do Hub
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				Dispatch(hub, msg.Payload, log)
			}
		}
	}()
}

// Dispatch decodifica uma mensagem do canal e faz o broadcast
func Dispatch(hub *Hub, payload string, log *zap.Logger) {
	var upd Update
	if err := json.Unmarshal([]byte(payload), &upd); err != nil {
		log.Warn("ws subscriber unmarshal error", zap.Error(err))
		return
	}
	if upd.topic() == "" {
		log.Warn("ws update without subject", zap.String("type", upd.Type))
		return
	}
	hub.Broadcast(upd)
}
