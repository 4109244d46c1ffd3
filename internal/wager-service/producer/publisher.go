package producer

import (
	"context"

	"github.com/radieske/wager-marketplace/pkg/contracts/events"
)

// Publisher publica eventos de domínio depois do commit; falhas não desfazem a operação
type Publisher interface {
	PublishBetEvent(ctx context.Context, e events.BetEvent) error
	PublishAccountFunded(ctx context.Context, e events.AccountFunded) error
}

// Noop é usado quando o Kafka está desabilitado (KAFKA_ENABLED=false) e nos testes
type Noop struct{}

func (Noop) PublishBetEvent(context.Context, events.BetEvent) error           { return nil }
func (Noop) PublishAccountFunded(context.Context, events.AccountFunded) error { return nil }
