package pubsub

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Tipos de update entregues ao feed-service/ws
const (
	UpdateBet     = "bet_update"
	UpdateAccount = "account_update"
)

type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}

// WSUpdate é o envelope publicado no canal; betId ou agentId identifica o assunto
type WSUpdate struct {
	Type    string `json:"type"`
	BetID   int64  `json:"betId,omitempty"`
	AgentID string `json:"agentId,omitempty"`
	Payload any    `json:"payload"`
}
