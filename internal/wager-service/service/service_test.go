package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/wager-marketplace/internal/shared/metrics"
	"github.com/radieske/wager-marketplace/internal/wager-service/apperr"
	"github.com/radieske/wager-marketplace/internal/wager-service/repo"
	"github.com/radieske/wager-marketplace/internal/wager-service/resolver"
	"github.com/radieske/wager-marketplace/internal/wager-service/store"
	"github.com/radieske/wager-marketplace/internal/wager-service/store/storetest"
	"github.com/radieske/wager-marketplace/pkg/contracts/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	bets   []events.BetEvent
	funded []events.AccountFunded
	err    error
}

func (r *recordingPublisher) PublishBetEvent(_ context.Context, e events.BetEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bets = append(r.bets, e)
	return r.err
}

func (r *recordingPublisher) PublishAccountFunded(_ context.Context, e events.AccountFunded) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funded = append(r.funded, e)
	return r.err
}

func (r *recordingPublisher) betTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.bets {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	svc     *Service
	store   *store.Store
	pub     *recordingPublisher
	metrics *metrics.Wager
}

func newHarness(t *testing.T) harness {
	return harnessOn(storetest.New(t))
}

func harnessOn(st *store.Store) harness {
	pub := &recordingPublisher{}
	m := metrics.NewWager(prometheus.NewRegistry())
	svc := New(Deps{Store: st, Publisher: pub, Metrics: m, DefaultCurrency: "USD"})
	return harness{svc: svc, store: st, pub: pub, metrics: m}
}

func d(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func past() string   { return time.Now().Add(-time.Hour).UTC().Format(time.RFC3339) }
func future() string { return time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339) }

func (h harness) fund(t *testing.T, agent, amount string) FundResult {
	res, err := h.svc.Fund(context.Background(), FundInput{AgentID: agent, Amount: d(amount)})
	require.NoError(t, err)
	return res
}

func (h harness) balance(t *testing.T, agent string) decimal.Decimal {
	acc, err := h.svc.GetAgent(context.Background(), agent)
	require.NoError(t, err)
	return acc.Balance
}

func (h harness) create(t *testing.T, creator, wager, endsAt string) repo.Bet {
	b, err := h.svc.CreateBet(context.Background(), CreateBetInput{
		CreatorAgent: creator, Event: "BTC above 100k", WagerAmount: d(wager), Odds: d("1.5"), EndsAt: endsAt,
	})
	require.NoError(t, err)
	return b
}

func assertBalance(t *testing.T, h harness, agent, want string) {
	t.Helper()
	got := h.balance(t, agent)
	assert.True(t, got.Equal(decimal.RequireFromString(want)), "%s balance = %s, want %s", agent, got, want)
}

func TestScenario_FundPostTakeSettle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.fund(t, "A", "100")
	bet := h.create(t, "A", "40", future())
	assertBalance(t, h, "A", "60")
	assert.Equal(t, repo.StatusOpen, bet.Status)
	assert.True(t, bet.CreatorLocked.Equal(decimal.NewFromInt(40)))

	// B conectado mas sem saldo não consegue tomar
	_, err := h.svc.ConnectAgent(ctx, "B", "")
	require.NoError(t, err)
	_, err = h.svc.TakeBet(ctx, bet.ID, "B")
	assert.ErrorIs(t, err, apperr.ErrInsufficientToTake)
	assertBalance(t, h, "B", "0")

	h.fund(t, "B", "100")
	taken, err := h.svc.TakeBet(ctx, bet.ID, "B")
	require.NoError(t, err)
	assert.Equal(t, repo.StatusActive, taken.Status)
	assertBalance(t, h, "B", "60")

	settled, err := h.svc.SettleBet(ctx, bet.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, repo.StatusSettled, settled.Status)
	assert.Equal(t, resolver.ManualRationale, settled.ResolutionSummary)
	assert.True(t, settled.CreatorLocked.IsZero())
	assert.True(t, settled.TakerLocked.IsZero())
	assertBalance(t, h, "A", "140")
	assertBalance(t, h, "B", "60")

	assert.Equal(t, []string{events.BetCreated, events.BetTaken, events.BetSettled}, h.pub.betTypes())
	assert.Len(t, h.pub.funded, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Settlements.WithLabelValues("manual")))

	drifts, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.ReconcileDrift))
}

func TestConnectAgent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.svc.ConnectAgent(ctx, "  ", "")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	acc, err := h.svc.ConnectAgent(ctx, "A", "wallet-1")
	require.NoError(t, err)
	assert.Equal(t, "USD", acc.Currency)
	assert.Equal(t, "wallet-1", acc.PayoutDestination)

	acc, err = h.svc.ConnectAgent(ctx, "A", "wallet-2")
	require.NoError(t, err)
	assert.Equal(t, "wallet-2", acc.PayoutDestination)

	_, err = h.svc.GetAgent(ctx, "nobody")
	assert.ErrorIs(t, err, apperr.ErrAgentNotFound)
}

func TestFund_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	for _, amount := range []*decimal.Decimal{nil, d("0"), d("-5")} {
		_, err := h.svc.Fund(ctx, FundInput{AgentID: "A", Amount: amount})
		assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	}

	_, err := h.svc.ConnectAgent(ctx, "A", "")
	require.NoError(t, err)
	_, err = h.svc.Fund(ctx, FundInput{AgentID: "A", Amount: d("10"), Currency: "EUR"})
	assert.ErrorIs(t, err, apperr.ErrCurrencyMismatch)
	assertBalance(t, h, "A", "0")

	res, err := h.svc.Fund(ctx, FundInput{AgentID: "A", Amount: d("10.5"), Currency: "usd"})
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(decimal.RequireFromString("10.5")))
	assert.Contains(t, res.ChargeID, "chg_A_")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.AccountsFunded))
	assert.Equal(t, 4.0, testutil.ToFloat64(h.metrics.Rejections.WithLabelValues(string(apperr.Validation)))+
		testutil.ToFloat64(h.metrics.Rejections.WithLabelValues(string(apperr.Conflict))))
}

func TestCreateBet_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "A", "10")

	cases := []CreateBetInput{
		{Event: "e", WagerAmount: d("1"), Odds: d("2"), EndsAt: future()},
		{CreatorAgent: "A", WagerAmount: d("1"), Odds: d("2"), EndsAt: future()},
		{CreatorAgent: "A", Event: "e", Odds: d("2"), EndsAt: future()},
		{CreatorAgent: "A", Event: "e", WagerAmount: d("1"), EndsAt: future()},
		{CreatorAgent: "A", Event: "e", WagerAmount: d("1"), Odds: d("2")},
		{CreatorAgent: "A", Event: "e", WagerAmount: d("0"), Odds: d("2"), EndsAt: future()},
		{CreatorAgent: "A", Event: "e", WagerAmount: d("1"), Odds: d("-1"), EndsAt: future()},
		{CreatorAgent: "A", Event: "e", WagerAmount: d("1"), Odds: d("2"), EndsAt: "next week"},
	}
	for _, in := range cases {
		_, err := h.svc.CreateBet(ctx, in)
		assert.Equal(t, apperr.Validation, apperr.KindOf(err), "%+v", in)
	}

	_, err := h.svc.CreateBet(ctx, CreateBetInput{CreatorAgent: "A", Event: "e", WagerAmount: d("11"), Odds: d("2"), EndsAt: future()})
	assert.ErrorIs(t, err, apperr.ErrInsufficientToPost)

	_, err = h.svc.CreateBet(ctx, CreateBetInput{CreatorAgent: "A", Event: "e", WagerAmount: d("1"), Odds: d("2"), EndsAt: future(), Currency: "BRL"})
	assert.ErrorIs(t, err, apperr.ErrCurrencyMismatch)

	bets, err := h.svc.ListBets(ctx)
	require.NoError(t, err)
	assert.Empty(t, bets)
	assertBalance(t, h, "A", "10")
}

func TestTakeBet_Rules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "A", "100")
	h.fund(t, "B", "100")
	bet := h.create(t, "A", "40", future())

	_, err := h.svc.TakeBet(ctx, bet.ID, "")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = h.svc.TakeBet(ctx, 999, "B")
	assert.ErrorIs(t, err, apperr.ErrBetNotFound)

	_, err = h.svc.TakeBet(ctx, bet.ID, "A")
	assert.ErrorIs(t, err, apperr.ErrSelfTake)

	_, err = h.svc.TakeBet(ctx, bet.ID, "B")
	require.NoError(t, err)

	_, err = h.svc.TakeBet(ctx, bet.ID, "B")
	assert.ErrorIs(t, err, apperr.ErrBetNotOpen)
	assertBalance(t, h, "B", "60")
}

func TestTakeBet_ConcurrentExclusivity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "A", "100")
	bet := h.create(t, "A", "40", future())

	takers := []string{"B", "C", "D", "E"}
	for _, agent := range takers {
		h.fund(t, agent, "100")
	}

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(takers))
	)
	for i, agent := range takers {
		wg.Add(1)
		go func(i int, agent string) {
			defer wg.Done()
			_, errs[i] = h.svc.TakeBet(ctx, bet.ID, agent)
		}(i, agent)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrBetNotOpen):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, len(takers)-1, conflicts)

	got, err := h.svc.GetBet(ctx, bet.ID)
	require.NoError(t, err)

	// só o vencedor da corrida foi debitado
	debited := 0
	for _, agent := range takers {
		if h.balance(t, agent).Equal(decimal.NewFromInt(60)) {
			debited++
			assert.Equal(t, agent, got.SideTakenBy)
		}
	}
	assert.Equal(t, 1, debited)
}

func TestSettleBet_Rules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "A", "100")
	h.fund(t, "B", "100")
	bet := h.create(t, "A", "40", future())

	_, err := h.svc.SettleBet(ctx, bet.ID, "")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = h.svc.SettleBet(ctx, 999, "A")
	assert.ErrorIs(t, err, apperr.ErrBetNotFound)

	// ainda open
	_, err = h.svc.SettleBet(ctx, bet.ID, "A")
	assert.ErrorIs(t, err, apperr.ErrBetNotActive)

	_, err = h.svc.TakeBet(ctx, bet.ID, "B")
	require.NoError(t, err)

	_, err = h.svc.SettleBet(ctx, bet.ID, "C")
	assert.ErrorIs(t, err, apperr.ErrInvalidWinner)

	_, err = h.svc.SettleBet(ctx, bet.ID, "B")
	require.NoError(t, err)

	_, err = h.svc.SettleBet(ctx, bet.ID, "B")
	assert.ErrorIs(t, err, apperr.ErrBetNotActive)
	assertBalance(t, h, "B", "140")
	assertBalance(t, h, "A", "60")
}

func TestResolveBet_BeforeEndIsRejectedWithoutChanges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "A", "100")
	h.fund(t, "B", "100")
	bet := h.create(t, "A", "40", future())

	_, err := h.svc.ResolveBet(ctx, bet.ID)
	assert.ErrorIs(t, err, apperr.ErrResolveNotActive)

	_, err = h.svc.TakeBet(ctx, bet.ID, "B")
	require.NoError(t, err)

	_, err = h.svc.ResolveBet(ctx, bet.ID)
	assert.ErrorIs(t, err, apperr.ErrBetNotEnded)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	after, err := h.svc.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.StatusActive, after.Status)
	assertBalance(t, h, "A", "60")
	assertBalance(t, h, "B", "60")
}

func TestResolveBet_AfterEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "A", "100")
	h.fund(t, "B", "100")
	bet := h.create(t, "A", "40", past())
	_, err := h.svc.TakeBet(ctx, bet.ID, "B")
	require.NoError(t, err)

	taken, err := h.svc.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	want := resolver.Heuristic{}.Resolve(taken)

	settled, err := h.svc.ResolveBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Winner, settled.Winner)
	assert.Equal(t, want.Rationale, settled.ResolutionSummary)
	assertBalance(t, h, want.Winner, "140")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Settlements.WithLabelValues("heuristic")))
}

func TestResolveBet_InvalidEndTime(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "A", "100")
	h.fund(t, "B", "100")
	bet := h.create(t, "A", "40", past())
	_, err := h.svc.TakeBet(ctx, bet.ID, "B")
	require.NoError(t, err)

	_, err = h.svc.store.Conn().Exec(ctx, `UPDATE bets SET endsAt = ? WHERE id = ?`, "someday", bet.ID)
	require.NoError(t, err)

	_, err = h.svc.ResolveBet(ctx, bet.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidEndTime)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestSweepDue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "A", "300")
	h.fund(t, "B", "300")

	due1 := h.create(t, "A", "10", past())
	due2 := h.create(t, "A", "20", past())
	notDue := h.create(t, "A", "30", future())
	openExpired := h.create(t, "A", "40", past())
	for _, b := range []repo.Bet{due1, due2, notDue} {
		_, err := h.svc.TakeBet(ctx, b.ID, "B")
		require.NoError(t, err)
	}

	out, err := h.svc.SweepDue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, b := range out {
		assert.Equal(t, repo.StatusSettled, b.Status)
	}

	still, err := h.svc.GetBet(ctx, notDue.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.StatusActive, still.Status)

	open, err := h.svc.GetBet(ctx, openExpired.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.StatusOpen, open.Status)

	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.SweepOutcomes.WithLabelValues("settled")))

	// segunda varredura não encontra nada
	out, err = h.svc.SweepDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestConservation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	agents := []string{"A", "B", "C"}
	for _, a := range agents {
		h.fund(t, a, "100")
	}

	b1 := h.create(t, "A", "25.5", past())
	b2 := h.create(t, "B", "10", future())
	b3 := h.create(t, "C", "7.25", past())
	_, err := h.svc.TakeBet(ctx, b1.ID, "B")
	require.NoError(t, err)
	_, err = h.svc.TakeBet(ctx, b2.ID, "C")
	require.NoError(t, err)
	_, err = h.svc.SettleBet(ctx, b2.ID, "B")
	require.NoError(t, err)
	_, err = h.svc.SweepDue(ctx, time.Now())
	require.NoError(t, err)

	bets, err := h.svc.ListBets(ctx)
	require.NoError(t, err)

	// saldos + locks em aberto == total depositado
	total := decimal.Zero
	for _, a := range agents {
		total = total.Add(h.balance(t, a))
	}
	for _, b := range bets {
		total = total.Add(b.CreatorLocked).Add(b.TakerLocked)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(300)), total.String())

	// b3 continua open (sem tomador) com o lock do criador
	assert.Equal(t, repo.StatusOpen, bets[0].Status)
	assert.Equal(t, b3.ID, bets[0].ID)

	drifts, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	h := newHarness(t)
	h.pub.err = errors.New("kafka down")

	res, err := h.svc.Fund(context.Background(), FundInput{AgentID: "A", Amount: d("5")})
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(decimal.NewFromInt(5)))
}

func TestFund_RejectsAmountBeyondMoneyScale(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.svc.Fund(ctx, FundInput{AgentID: "A", Amount: d("0.000000001")})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.EqualError(t, err, "amount must have at most 8 decimal places")
	_, err = h.svc.GetAgent(ctx, "A")
	assert.ErrorIs(t, err, apperr.ErrAgentNotFound)

	// 8 casas ainda cabem, zeros à direita não contam
	h.fund(t, "A", "0.00000001")
	h.fund(t, "A", "1.500000000000")
	assertBalance(t, h, "A", "1.50000001")
}

func TestCreateBet_RejectsValuesBeyondMoneyScale(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "A", "10")

	_, err := h.svc.CreateBet(ctx, CreateBetInput{CreatorAgent: "A", Event: "e", WagerAmount: d("0.000000001"), Odds: d("2"), EndsAt: future()})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.EqualError(t, err, "wagerAmount must have at most 8 decimal places")

	_, err = h.svc.CreateBet(ctx, CreateBetInput{CreatorAgent: "A", Event: "e", WagerAmount: d("1"), Odds: d("1.123456789"), EndsAt: future()})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.EqualError(t, err, "odds must have at most 8 decimal places")

	bets, err := h.svc.ListBets(ctx)
	require.NoError(t, err)
	assert.Empty(t, bets)
	assertBalance(t, h, "A", "10")

	bet, err := h.svc.CreateBet(ctx, CreateBetInput{CreatorAgent: "A", Event: "e", WagerAmount: d("0.00000001"), Odds: d("1.12345678"), EndsAt: future()})
	require.NoError(t, err)
	assert.True(t, bet.CreatorLocked.Equal(decimal.RequireFromString("0.00000001")))
	assertBalance(t, h, "A", "9.99999999")
}

func TestCreateBet_AcceptsMinutePrecisionEndsAt(t *testing.T) {
	h := newHarness(t)
	h.fund(t, "A", "10")

	bet, err := h.svc.CreateBet(context.Background(), CreateBetInput{
		CreatorAgent: "A", Event: "e", WagerAmount: d("1"), Odds: d("2"), EndsAt: "2030-01-01T12:00",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC), bet.EndsAt)
}

func TestSettleBet_FailureMidwayLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "A", "50")
	h.fund(t, "B", "50")
	bet := h.create(t, "A", "20", future())
	_, err := h.svc.TakeBet(ctx, bet.ID, "B")
	require.NoError(t, err)

	// o crédito do vencedor e o payout_event já foram gravados quando a troca de status falha
	_, err = h.store.Conn().Exec(ctx, `
		CREATE TRIGGER block_settle BEFORE UPDATE OF status ON bets
		WHEN NEW.status = 'settled'
		BEGIN SELECT RAISE(ABORT, 'settle blocked'); END`)
	require.NoError(t, err)

	_, err = h.svc.SettleBet(ctx, bet.ID, "B")
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))

	assertBalance(t, h, "A", "30")
	assertBalance(t, h, "B", "30")
	payouts := func() int {
		var n int
		require.NoError(t, h.store.Conn().QueryRow(ctx, `SELECT COUNT(*) FROM payout_events`).Scan(&n))
		return n
	}
	assert.Zero(t, payouts())

	got, err := h.svc.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.StatusActive, got.Status)
	assert.Empty(t, got.Winner)
	assert.True(t, got.CreatorLocked.Equal(decimal.NewFromInt(20)))
	assert.True(t, got.TakerLocked.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, []string{events.BetCreated, events.BetTaken}, h.pub.betTypes())

	drifts, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	_, err = h.store.Conn().Exec(ctx, `DROP TRIGGER block_settle`)
	require.NoError(t, err)
	_, err = h.svc.SettleBet(ctx, bet.ID, "B")
	require.NoError(t, err)
	assertBalance(t, h, "B", "70")
	assert.Equal(t, 1, payouts())
}

func TestReconcile_ConsistentUnderConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wager.db")
	open := func() *store.Store {
		st, err := store.Open(ctx, "sqlite", "", path, nil)
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		return st
	}
	// dois processos sobre o mesmo arquivo, como wager-service e sweeper-worker
	writer := harnessOn(open())
	auditor := harnessOn(open())

	done := make(chan struct{})
	var writeErr error
	go func() {
		defer close(done)
		for i := 0; i < 25 && writeErr == nil; i++ {
			writeErr = func() error {
				if _, err := writer.svc.Fund(ctx, FundInput{AgentID: "A", Amount: d("2")}); err != nil {
					return err
				}
				if _, err := writer.svc.Fund(ctx, FundInput{AgentID: "B", Amount: d("2")}); err != nil {
					return err
				}
				bet, err := writer.svc.CreateBet(ctx, CreateBetInput{CreatorAgent: "A", Event: "e", WagerAmount: d("2"), Odds: d("1"), EndsAt: future()})
				if err != nil {
					return err
				}
				if _, err := writer.svc.TakeBet(ctx, bet.ID, "B"); err != nil {
					return err
				}
				_, err = writer.svc.SettleBet(ctx, bet.ID, "A")
				return err
			}()
		}
	}()

	runs := 0
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		drifts, err := auditor.svc.Reconcile(ctx)
		require.NoError(t, err)
		require.Empty(t, drifts, "run %d", runs)
		runs++
	}
	require.NoError(t, writeErr)
	assert.Positive(t, runs)
	assert.Zero(t, testutil.ToFloat64(auditor.metrics.ReconcileDrift))

	assertBalance(t, auditor, "A", "100")
	assertBalance(t, auditor, "B", "0")
}

func TestPublishedEvents_CarryCommittedVersion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "A", "50")
	h.fund(t, "A", "5")
	h.fund(t, "B", "50")

	require.Len(t, h.pub.funded, 3)
	assert.Less(t, h.pub.funded[0].Version, h.pub.funded[1].Version)
	assert.True(t, h.pub.funded[1].Balance.Equal(decimal.NewFromInt(55)))
	assert.True(t, h.pub.funded[1].Amount.Equal(decimal.NewFromInt(5)))
	assert.NotZero(t, h.pub.funded[1].TsUnixMs)

	bet := h.create(t, "A", "10", future())
	_, err := h.svc.TakeBet(ctx, bet.ID, "B")
	require.NoError(t, err)
	settled, err := h.svc.SettleBet(ctx, bet.ID, "A")
	require.NoError(t, err)

	require.Len(t, h.pub.bets, 3)
	var versions []int64
	for _, e := range h.pub.bets {
		versions = append(versions, e.Version)
	}
	assert.Equal(t, []int64{1, 2, 3}, versions)

	last := h.pub.bets[2]
	require.NotNil(t, settled.SettledAt)
	assert.Equal(t, settled.SettledAt.UnixMilli(), last.TsUnixMs)
	assert.Equal(t, settled.PayoutTxID, last.PayoutTxID)
}
