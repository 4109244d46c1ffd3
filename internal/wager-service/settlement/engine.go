package settlement

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/wager-service/apperr"
	"github.com/radieske/wager-marketplace/internal/wager-service/ledger"
	"github.com/radieske/wager-marketplace/internal/wager-service/payments"
	"github.com/radieske/wager-marketplace/internal/wager-service/repo"
	"github.com/radieske/wager-marketplace/internal/wager-service/store"
)

// Engine liquida apostas active: paga os dois locks ao vencedor e finaliza a aposta.
// Deve rodar dentro da transação do chamador; qualquer erro desfaz tudo.
type Engine struct {
	ledger   *ledger.Ledger
	bets     *repo.Bets
	payments payments.Provider
	log      *zap.Logger
	now      func() time.Time
}

func NewEngine(l *ledger.Ledger, bets *repo.Bets, p payments.Provider, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if p == nil {
		p = payments.NewMock()
	}
	return &Engine{ledger: l, bets: bets, payments: p, log: log, now: time.Now}
}

// Settle relê a aposta com lock, valida status e vencedor antes de qualquer escrita
// e então pede o payout ao provedor, credita o vencedor, registra o payout e marca a aposta como settled.
// Uma segunda chamada para a mesma aposta falha com ErrBetNotActive.
func (e *Engine) Settle(ctx context.Context, c *store.Conn, betID int64, winner, rationale string) (repo.Bet, error) {
	bet, err := e.bets.GetForUpdate(ctx, c, betID)
	if err != nil {
		return repo.Bet{}, err
	}
	if bet.Status != repo.StatusActive {
		return repo.Bet{}, apperr.ErrBetNotActive
	}
	if !bet.IsParticipant(winner) {
		return repo.Bet{}, apperr.ErrInvalidWinner
	}

	payout := bet.CreatorLocked.Add(bet.TakerLocked)
	settledAt := e.now()

	acc, err := e.ledger.GetOrCreate(ctx, c, winner, "")
	if err != nil {
		return repo.Bet{}, err
	}
	payoutID, err := e.payments.SendPayout(ctx, payments.Payout{
		BetID:       bet.ID,
		AgentID:     winner,
		Amount:      payout,
		Currency:    bet.Currency,
		Destination: acc.PayoutDestination,
		At:          settledAt,
	})
	if err != nil {
		return repo.Bet{}, err
	}
	if _, err := e.ledger.AdjustBalance(ctx, c, winner, payout); err != nil {
		return repo.Bet{}, err
	}
	if err := e.ledger.RecordPayoutEvent(ctx, c, winner, payout, bet.Currency, payoutID, bet.ID); err != nil {
		return repo.Bet{}, err
	}

	settled, err := e.bets.MarkSettled(ctx, c, bet.ID, repo.Settlement{
		Winner:     winner,
		Summary:    rationale,
		PayoutTxID: payoutID,
		SettledAt:  settledAt,
	})
	if err != nil {
		return repo.Bet{}, err
	}

	e.log.Info("bet settled",
		zap.Int64("betId", bet.ID),
		zap.String("winner", winner),
		zap.String("payout", payout.String()),
		zap.String("payoutTxId", payoutID))
	return settled, nil
}
