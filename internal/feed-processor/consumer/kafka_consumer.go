package consumer

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/feed-processor/pubsub"
	"github.com/radieske/wager-marketplace/internal/shared/kafka"
	"github.com/radieske/wager-marketplace/pkg/contracts/events"
	"github.com/radieske/wager-marketplace/pkg/contracts/topics"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// SnapshotCache retorna false quando o snapshot recebido é mais antigo que o armazenado
type SnapshotCache interface {
	SetBet(ctx context.Context, e events.BetEvent) (bool, error)
	SetAccount(ctx context.Context, e events.AccountFunded) (bool, error)
}

type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Processor consome eventos de apostas e contas do Kafka, atualiza o cache
// e repassa o snapshot para o canal Pub/Sub do feed-service
type Processor struct {
	Log         *zap.Logger
	Reader      MessageReader
	Cache       SnapshotCache
	Broadcaster Broadcaster
	Channel     string

	// tópico de contas; qualquer outro tópico é tratado como evento de aposta
	AccountTopic string

	Backoff time.Duration

	OnConsumed  func()
	OnCached    func()
	OnBroadcast func()
	OnError     func(string) // por fase: read | decode | cache | broadcast
}

// Run inicia o loop de consumo; só retorna quando o contexto é cancelado
func (p *Processor) Run(ctx context.Context) error {
	p.defaults()
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Backoff):
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.Handle(ctx, m)
	}
}

// Handle processa uma única mensagem; erros são contabilizados e a mensagem descartada
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	p.defaults()
	var (
		update pubsub.WSUpdate
		fresh  bool
		err    error
	)

	if m.Topic == p.AccountTopic {
		var ev events.AccountFunded
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.AgentID == "" {
			p.Log.Warn("invalid account message", zap.ByteString("key", m.Key), zap.Error(err))
			p.fail("decode")
			return
		}
		fresh, err = p.Cache.SetAccount(ctx, ev)
		update = pubsub.WSUpdate{Type: pubsub.UpdateAccount, AgentID: ev.AgentID, Payload: ev}
	} else {
		var ev events.BetEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.BetID == 0 {
			p.Log.Warn("invalid bet message", zap.ByteString("key", m.Key), zap.Error(err))
			p.fail("decode")
			return
		}
		fresh, err = p.Cache.SetBet(ctx, ev)
		update = pubsub.WSUpdate{Type: pubsub.UpdateBet, BetID: ev.BetID, Payload: ev}
	}

	switch {
	case err != nil:
		// cache indisponível não impede o broadcast
		p.Log.Warn("redis set failed", zap.Error(err))
		p.fail("cache")
	case !fresh:
		p.Log.Debug("stale snapshot ignored", zap.ByteString("key", m.Key))
		return
	case p.OnCached != nil:
		p.OnCached()
	}

	b, err := json.Marshal(update)
	if err != nil {
		p.fail("broadcast")
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := p.Broadcaster.Publish(pctx, p.Channel, b); err != nil {
		p.Log.Warn("ws broadcast publish failed", zap.Error(err))
		p.fail("broadcast")
		return
	}
	if p.OnBroadcast != nil {
		p.OnBroadcast()
	}
}

func (p *Processor) defaults() {
	if p.Log == nil {
		p.Log = zap.NewNop()
	}
	if p.Channel == "" {
		p.Channel = topics.BetUpdatesBroadcast
	}
	if p.AccountTopic == "" {
		p.AccountTopic = topics.AccountEvents
	}
	if p.Backoff <= 0 {
		p.Backoff = 500 * time.Millisecond
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
