package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/wager-service/repo"
	"github.com/radieske/wager-marketplace/pkg/contracts/events"
	"github.com/radieske/wager-marketplace/pkg/contracts/money"
)

// BetEvent monta o snapshot publicado para uma transição da aposta.
// Version e, quando houver, TsUnixMs vêm do estado commitado, não do momento da publicação.
func BetEvent(eventType string, b repo.Bet) events.BetEvent {
	e := events.BetEvent{
		Type:              eventType,
		BetID:             b.ID,
		Status:            string(b.Status),
		CreatorAgent:      b.CreatorAgent,
		SideTakenBy:       b.SideTakenBy,
		Event:             b.Event,
		WagerAmount:       money.Of(b.WagerAmount),
		Odds:              money.Of(b.Odds),
		Currency:          b.Currency,
		EndsAt:            b.EndsAtRaw,
		Winner:            b.Winner,
		ResolutionSummary: b.ResolutionSummary,
		PayoutTxID:        b.PayoutTxID,
		Version:           b.Version(),
	}
	if b.SettledAt != nil {
		e.TsUnixMs = b.SettledAt.UnixMilli()
	}
	return e
}

// publicação é best-effort: o estado já foi commitado, então a falha só é logada
func (s *Service) publishBet(ctx context.Context, eventType string, b repo.Bet) {
	if err := s.pub.PublishBetEvent(ctx, BetEvent(eventType, b)); err != nil {
		s.log.Warn("publish bet event failed",
			zap.String("type", eventType),
			zap.Int64("betId", b.ID),
			zap.Error(err))
	}
}

func (s *Service) publishFunded(ctx context.Context, res FundResult, amount decimal.Decimal) {
	e := events.AccountFunded{
		AgentID:  res.AgentID,
		Amount:   money.Of(amount),
		Currency: res.Currency,
		ChargeID: res.ChargeID,
		Balance:  money.Of(res.Balance),
		Version:  res.EventID,
		TsUnixMs: res.UpdatedAt.UnixMilli(),
	}
	if err := s.pub.PublishAccountFunded(ctx, e); err != nil {
		s.log.Warn("publish account funded failed", zap.String("agentId", res.AgentID), zap.Error(err))
	}
}
