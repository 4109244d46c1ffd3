package producer

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/radieske/wager-marketplace/internal/shared/config"
	"github.com/radieske/wager-marketplace/internal/shared/kafka"
	"github.com/radieske/wager-marketplace/pkg/contracts/events"
)

type KafkaPublisher struct {
	Bets     kafka.MessageWriter
	Accounts kafka.MessageWriter
}

func NewKafkaPublisher(bets, accounts kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Bets: bets, Accounts: accounts}
}

// PublishBetEvent usa o betId como chave: eventos da mesma aposta ficam na mesma partição
func (p *KafkaPublisher) PublishBetEvent(ctx context.Context, e events.BetEvent) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
	return kafka.WriteJSON(ctx, p.Bets, strconv.FormatInt(e.BetID, 10), e)
}

func (p *KafkaPublisher) PublishAccountFunded(ctx context.Context, e events.AccountFunded) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
	return kafka.WriteJSON(ctx, p.Accounts, e.AgentID, e)
}

// NewFromConfig monta o publisher do serviço; com Kafka desabilitado devolve Noop
// a função devolvida fecha os writers abertos
func NewFromConfig(cfg config.Config) (Publisher, func() error) {
	if !cfg.KafkaEnabled {
		return Noop{}, func() error { return nil }
	}
	bets := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetEvents)
	accounts := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicAccountEvents)
	return NewKafkaPublisher(bets, accounts), func() error {
		return errors.Join(bets.Close(), accounts.Close())
	}
}
