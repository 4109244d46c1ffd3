package service

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/shared/metrics"
	"github.com/radieske/wager-marketplace/internal/wager-service/apperr"
	"github.com/radieske/wager-marketplace/internal/wager-service/ledger"
	"github.com/radieske/wager-marketplace/internal/wager-service/payments"
	"github.com/radieske/wager-marketplace/internal/wager-service/producer"
	"github.com/radieske/wager-marketplace/internal/wager-service/repo"
	"github.com/radieske/wager-marketplace/internal/wager-service/resolver"
	"github.com/radieske/wager-marketplace/internal/wager-service/settlement"
	"github.com/radieske/wager-marketplace/internal/wager-service/store"
	"github.com/radieske/wager-marketplace/internal/wager-service/sweeper"
	"github.com/radieske/wager-marketplace/pkg/contracts/events"
)

// Service concentra os casos de uso do marketplace.
// Cada caso de uso que altera estado roda numa única transação do store;
// eventos são publicados só depois do commit.
type Service struct {
	store     *store.Store
	ledger    *ledger.Ledger
	bets      *repo.Bets
	engine    *settlement.Engine
	sweeper   *sweeper.Sweeper
	heuristic resolver.Strategy
	payments  payments.Provider
	pub       producer.Publisher
	metrics   *metrics.Wager
	log       *zap.Logger
	now       func() time.Time
}

type Deps struct {
	Store           *store.Store
	Payments        payments.Provider
	Publisher       producer.Publisher
	Metrics         *metrics.Wager
	Log             *zap.Logger
	DefaultCurrency string
}

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Payments == nil {
		d.Payments = payments.NewMock()
	}
	if d.Publisher == nil {
		d.Publisher = producer.Noop{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewWager(prometheus.NewRegistry())
	}

	l := ledger.New(d.DefaultCurrency, d.Log)
	bets := repo.NewBets()
	s := &Service{
		store:     d.Store,
		ledger:    l,
		bets:      bets,
		engine:    settlement.NewEngine(l, bets, d.Payments, d.Log),
		heuristic: resolver.Heuristic{},
		payments:  d.Payments,
		pub:       d.Publisher,
		metrics:   d.Metrics,
		log:       d.Log,
		now:       time.Now,
	}
	s.sweeper = sweeper.New(dueLister{s}, sweepSettler{s}, s.heuristic, d.Log)
	s.sweeper.OnOutcome(func(o string) { s.metrics.SweepOutcomes.WithLabelValues(o).Inc() })
	return s
}

// ConnectAgent garante a conta do agente; payoutDestination não vazio sobrescreve o anterior
func (s *Service) ConnectAgent(ctx context.Context, agentID, payoutDestination string) (ledger.Account, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return ledger.Account{}, s.reject(apperr.Validationf("agentId is required"))
	}

	var acc ledger.Account
	err := s.store.WithTx(ctx, func(c *store.Conn) error {
		var err error
		acc, err = s.ledger.GetOrCreate(ctx, c, agentID, strings.TrimSpace(payoutDestination))
		return err
	})
	if err != nil {
		return ledger.Account{}, s.reject(apperr.Wrap(err, "connect agent"))
	}
	return acc, nil
}

func (s *Service) GetAgent(ctx context.Context, agentID string) (ledger.Account, error) {
	acc, err := s.ledger.Get(ctx, s.store.Conn(), agentID)
	if err != nil {
		return ledger.Account{}, s.reject(apperr.Wrap(err, "get agent"))
	}
	return acc, nil
}

type FundInput struct {
	AgentID  string
	Amount   *decimal.Decimal
	Currency string
}

type FundResult struct {
	ledger.Account
	ChargeID string
	EventID  int64 // id do fund_event, usado como versão do snapshot da conta
}

// Fund credita um depósito (cobrança simulada) e registra o evento de auditoria
func (s *Service) Fund(ctx context.Context, in FundInput) (FundResult, error) {
	if strings.TrimSpace(in.AgentID) == "" {
		return FundResult{}, s.reject(apperr.Validationf("agentId is required"))
	}
	if in.Amount == nil || !in.Amount.IsPositive() {
		return FundResult{}, s.reject(apperr.Validationf("amount must be a positive number"))
	}
	if !fitsMoneyScale(*in.Amount) {
		return FundResult{}, s.reject(apperr.Validationf("amount must have at most %d decimal places", moneyScale))
	}
	amount := *in.Amount

	var res FundResult
	err := s.store.WithTx(ctx, func(c *store.Conn) error {
		acc, err := s.ledger.GetOrCreate(ctx, c, in.AgentID, "")
		if err != nil {
			return err
		}
		if in.Currency != "" && !strings.EqualFold(in.Currency, acc.Currency) {
			return apperr.ErrCurrencyMismatch
		}

		chargeID, err := s.payments.CreateCharge(ctx, amount, acc.Currency, in.AgentID)
		if err != nil {
			return err
		}
		eventID, err := s.ledger.RecordFundEvent(ctx, c, in.AgentID, amount, acc.Currency, chargeID)
		if err != nil {
			return err
		}
		acc, err = s.ledger.AdjustBalance(ctx, c, in.AgentID, amount)
		if err != nil {
			return err
		}
		res = FundResult{Account: acc, ChargeID: chargeID, EventID: eventID}
		return nil
	})
	if err != nil {
		return FundResult{}, s.reject(apperr.Wrap(err, "fund agent"))
	}

	s.metrics.AccountsFunded.Inc()
	s.publishFunded(ctx, res, amount)
	return res, nil
}

type CreateBetInput struct {
	CreatorAgent string
	Event        string
	WagerAmount  *decimal.Decimal
	Odds         *decimal.Decimal
	EndsAt       string
	Currency     string
}

// CreateBet publica uma aposta e trava o wager do criador na mesma transação
func (s *Service) CreateBet(ctx context.Context, in CreateBetInput) (repo.Bet, error) {
	creator := strings.TrimSpace(in.CreatorAgent)
	if creator == "" || strings.TrimSpace(in.Event) == "" || in.WagerAmount == nil || in.Odds == nil || strings.TrimSpace(in.EndsAt) == "" {
		return repo.Bet{}, s.reject(apperr.Validationf("creatorAgent, event, wagerAmount, odds, and endsAt are required"))
	}
	if !in.WagerAmount.IsPositive() {
		return repo.Bet{}, s.reject(apperr.Validationf("wagerAmount must be a positive number"))
	}
	if !in.Odds.IsPositive() {
		return repo.Bet{}, s.reject(apperr.Validationf("odds must be a positive number"))
	}
	if !fitsMoneyScale(*in.WagerAmount) {
		return repo.Bet{}, s.reject(apperr.Validationf("wagerAmount must have at most %d decimal places", moneyScale))
	}
	if !fitsMoneyScale(*in.Odds) {
		return repo.Bet{}, s.reject(apperr.Validationf("odds must have at most %d decimal places", moneyScale))
	}
	endsAt, err := store.ParseTime(in.EndsAt)
	if err != nil {
		return repo.Bet{}, s.reject(apperr.Validationf("endsAt must be a valid ISO-8601 timestamp"))
	}
	wager := *in.WagerAmount

	var bet repo.Bet
	err = s.store.WithTx(ctx, func(c *store.Conn) error {
		acc, err := s.ledger.GetOrCreate(ctx, c, creator, "")
		if err != nil {
			return err
		}
		currency := acc.Currency
		if in.Currency != "" {
			currency = strings.ToUpper(in.Currency)
		}
		if currency != acc.Currency {
			return apperr.ErrCurrencyMismatch
		}
		if acc.Balance.LessThan(wager) {
			return apperr.ErrInsufficientToPost
		}

		if _, err := s.ledger.AdjustBalance(ctx, c, creator, wager.Neg()); err != nil {
			return err
		}
		bet, err = s.bets.Create(ctx, c, repo.Draft{
			CreatorAgent: creator,
			Event:        in.Event,
			WagerAmount:  wager,
			Odds:         *in.Odds,
			EndsAt:       endsAt,
			Currency:     currency,
		})
		return err
	})
	if err != nil {
		return repo.Bet{}, s.reject(apperr.Wrap(err, "create bet"))
	}

	s.metrics.BetsCreated.Inc()
	s.publishBet(ctx, events.BetCreated, bet)
	return bet, nil
}

func (s *Service) ListBets(ctx context.Context) ([]repo.Bet, error) {
	bets, err := s.bets.ListSorted(ctx, s.store.Conn())
	if err != nil {
		return nil, s.reject(apperr.Wrap(err, "list bets"))
	}
	return bets, nil
}

func (s *Service) GetBet(ctx context.Context, id int64) (repo.Bet, error) {
	bet, err := s.bets.Get(ctx, s.store.Conn(), id)
	if err != nil {
		return repo.Bet{}, s.reject(apperr.Wrap(err, "get bet"))
	}
	return bet, nil
}

// TakeBet ocupa o lado oposto e trava o wager do tomador.
// A aposta é lida com lock: de duas chamadas concorrentes só uma encontra status open.
func (s *Service) TakeBet(ctx context.Context, id int64, taker string) (repo.Bet, error) {
	taker = strings.TrimSpace(taker)
	if taker == "" {
		return repo.Bet{}, s.reject(apperr.Validationf("sideTakenBy is required"))
	}

	var bet repo.Bet
	err := s.store.WithTx(ctx, func(c *store.Conn) error {
		current, err := s.bets.GetForUpdate(ctx, c, id)
		if err != nil {
			return err
		}
		if current.Status != repo.StatusOpen || current.SideTakenBy != "" {
			return apperr.ErrBetNotOpen
		}
		if taker == current.CreatorAgent {
			return apperr.ErrSelfTake
		}

		acc, err := s.ledger.GetOrCreate(ctx, c, taker, "")
		if err != nil {
			return err
		}
		if acc.Currency != current.Currency {
			return apperr.ErrCurrencyMismatch
		}
		if acc.Balance.LessThan(current.WagerAmount) {
			return apperr.ErrInsufficientToTake
		}

		if _, err := s.ledger.AdjustBalance(ctx, c, taker, current.WagerAmount.Neg()); err != nil {
			return err
		}
		bet, err = s.bets.Take(ctx, c, id, taker, current.WagerAmount)
		return err
	})
	if err != nil {
		return repo.Bet{}, s.reject(apperr.Wrap(err, "take bet"))
	}

	s.metrics.BetsTaken.Inc()
	s.publishBet(ctx, events.BetTaken, bet)
	return bet, nil
}

// SettleBet liquida manualmente com o vencedor informado
func (s *Service) SettleBet(ctx context.Context, id int64, winner string) (repo.Bet, error) {
	winner = strings.TrimSpace(winner)
	if winner == "" {
		return repo.Bet{}, s.reject(apperr.Validationf("winner is required"))
	}
	o := resolver.Manual{Winner: winner}.Resolve(repo.Bet{})
	return s.settle(ctx, id, o.Winner, o.Rationale, "manual")
}

// ResolveBet aplica o resolvedor heurístico a uma aposta active, tomada e já encerrada
func (s *Service) ResolveBet(ctx context.Context, id int64) (repo.Bet, error) {
	var bet repo.Bet
	err := s.store.WithTx(ctx, func(c *store.Conn) error {
		current, err := s.bets.GetForUpdate(ctx, c, id)
		if err != nil {
			return err
		}
		if current.Status != repo.StatusActive {
			return apperr.ErrResolveNotActive
		}
		if current.SideTakenBy == "" {
			return apperr.ErrBetNotTaken
		}
		if !current.HasValidEnd() {
			return apperr.ErrInvalidEndTime
		}
		if current.EndsAt.After(s.now()) {
			return apperr.ErrBetNotEnded
		}

		o := s.heuristic.Resolve(current)
		bet, err = s.engine.Settle(ctx, c, id, o.Winner, o.Rationale)
		return err
	})
	if err != nil {
		return repo.Bet{}, s.reject(apperr.Wrap(err, "resolve bet"))
	}

	s.metrics.Settlements.WithLabelValues(s.heuristic.Name()).Inc()
	s.publishBet(ctx, events.BetSettled, bet)
	return bet, nil
}

// SweepDue resolve todas as apostas vencidas até asOf; erros por aposta não são propagados
func (s *Service) SweepDue(ctx context.Context, asOf time.Time) ([]repo.Bet, error) {
	out, err := s.sweeper.SweepDue(ctx, asOf)
	if err != nil {
		return nil, s.reject(apperr.Wrap(err, "sweep due bets"))
	}
	return out, nil
}

// Reconcile compara saldos com o log de auditoria e atualiza o gauge de divergências.
// As quatro leituras saem do mesmo snapshot; escritas concorrentes não geram falso drift.
func (s *Service) Reconcile(ctx context.Context) ([]ledger.Drift, error) {
	var drifts []ledger.Drift
	err := s.store.WithReadTx(ctx, func(c *store.Conn) error {
		var err error
		drifts, err = s.ledger.Reconcile(ctx, c)
		return err
	})
	if err != nil {
		return nil, s.reject(apperr.Wrap(err, "reconcile"))
	}
	s.metrics.ReconcileDrift.Set(float64(len(drifts)))
	for _, d := range drifts {
		s.log.Warn("balance drift",
			zap.String("agentId", d.AgentID),
			zap.String("balance", d.Balance.String()),
			zap.String("expected", d.Expected.String()))
	}
	return drifts, nil
}

func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// moneyScale acompanha as 8 casas das colunas NUMERIC(24,8)
const moneyScale = 8

// fitsMoneyScale recusa valores que o Postgres arredondaria ao gravar
func fitsMoneyScale(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(moneyScale))
}

func (s *Service) settle(ctx context.Context, id int64, winner, rationale, source string) (repo.Bet, error) {
	var bet repo.Bet
	err := s.store.WithTx(ctx, func(c *store.Conn) error {
		var err error
		bet, err = s.engine.Settle(ctx, c, id, winner, rationale)
		return err
	})
	if err != nil {
		return repo.Bet{}, s.reject(apperr.Wrap(err, "settle bet"))
	}

	s.metrics.Settlements.WithLabelValues(source).Inc()
	s.publishBet(ctx, events.BetSettled, bet)
	return bet, nil
}

// reject contabiliza a rejeição pelo kind e devolve o próprio erro
func (s *Service) reject(err error) error {
	s.metrics.Rejections.WithLabelValues(string(apperr.KindOf(err))).Inc()
	if apperr.KindOf(err) == apperr.Internal {
		s.log.Error("store failure", zap.Error(err))
	}
	return err
}

type dueLister struct{ s *Service }

func (d dueLister) ListDue(ctx context.Context, asOf time.Time) ([]repo.Bet, error) {
	return d.s.bets.ListDueForSettlement(ctx, d.s.store.Conn(), asOf)
}

type sweepSettler struct{ s *Service }

func (a sweepSettler) Settle(ctx context.Context, betID int64, winner, rationale string) (repo.Bet, error) {
	return a.s.settle(ctx, betID, winner, rationale, "sweep")
}
