package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/wager-service/repo"
	"github.com/radieske/wager-marketplace/internal/wager-service/resolver"
)

// DueLister lista apostas active com endsAt <= asOf
type DueLister interface {
	ListDue(ctx context.Context, asOf time.Time) ([]repo.Bet, error)
}

// Settler liquida uma aposta na sua própria transação
type Settler interface {
	Settle(ctx context.Context, betID int64, winner, rationale string) (repo.Bet, error)
}

const (
	OutcomeSettled = "settled"
	OutcomeSkipped = "skipped" // sem tomador
	OutcomeFailed  = "failed"
)

// Sweeper resolve em lote as apostas vencidas.
// Falha em uma aposta não interrompe as demais: ela volta no resultado com o último estado conhecido.
type Sweeper struct {
	lister   DueLister
	settler  Settler
	strategy resolver.Strategy
	log      *zap.Logger
	observe  func(outcome string)
}

func New(lister DueLister, settler Settler, strategy resolver.Strategy, log *zap.Logger) *Sweeper {
	if strategy == nil {
		strategy = resolver.Heuristic{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{lister: lister, settler: settler, strategy: strategy, log: log, observe: func(string) {}}
}

// OnOutcome registra um callback por aposta processada (usado para métricas)
func (s *Sweeper) OnOutcome(fn func(outcome string)) {
	if fn != nil {
		s.observe = fn
	}
}

// SweepDue só retorna erro se a listagem falhar
func (s *Sweeper) SweepDue(ctx context.Context, asOf time.Time) ([]repo.Bet, error) {
	due, err := s.lister.ListDue(ctx, asOf)
	if err != nil {
		return nil, err
	}

	out := make([]repo.Bet, 0, len(due))
	for _, bet := range due {
		if bet.SideTakenBy == "" {
			s.observe(OutcomeSkipped)
			out = append(out, bet)
			continue
		}

		o := s.strategy.Resolve(bet)
		settled, err := s.settler.Settle(ctx, bet.ID, o.Winner, o.Rationale)
		if err != nil {
			s.log.Warn("sweep settle failed",
				zap.Int64("betId", bet.ID),
				zap.String("winner", o.Winner),
				zap.Error(err))
			s.observe(OutcomeFailed)
			out = append(out, bet)
			continue
		}

		s.observe(OutcomeSettled)
		out = append(out, settled)
	}

	s.log.Info("sweep finished", zap.Time("asOf", asOf), zap.Int("due", len(due)))
	return out, nil
}
