package repo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/wager-marketplace/internal/wager-service/apperr"
	"github.com/radieske/wager-marketplace/internal/wager-service/store"
)

// Bets implementa a persistência de apostas sobre o executor da transação corrente
type Bets struct{}

func NewBets() *Bets { return &Bets{} }

// Create insere a aposta como open, com o wager do criador travado
func (r *Bets) Create(ctx context.Context, c *store.Conn, d Draft) (Bet, error) {
	endsAt := store.FormatTime(d.EndsAt)

	var id int64
	err := c.QueryRow(ctx, `
		INSERT INTO bets (creatorAgent, event, wagerAmount, odds, endsAt, currency, sideTakenBy, status,
			winner, resolutionSummary, creatorLocked, takerLocked, payoutTxId, settledAt)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, NULL, NULL, ?, ?, NULL, NULL)
		RETURNING id`,
		d.CreatorAgent, d.Event, d.WagerAmount, d.Odds, endsAt, d.Currency,
		string(StatusOpen), d.WagerAmount, decimal.Zero).Scan(&id)
	if err != nil {
		return Bet{}, fmt.Errorf("insert bet: %w", err)
	}
	return r.Get(ctx, c, id)
}

// Get busca a aposta pelo id; ErrBetNotFound se não existir
func (r *Bets) Get(ctx context.Context, c *store.Conn, id int64) (Bet, error) {
	return r.get(ctx, c, id, "")
}

// GetForUpdate busca a aposta travando a linha até o fim da transação
func (r *Bets) GetForUpdate(ctx context.Context, c *store.Conn, id int64) (Bet, error) {
	return r.get(ctx, c, id, c.ForUpdate())
}

func (r *Bets) get(ctx context.Context, c *store.Conn, id int64, suffix string) (Bet, error) {
	b, err := scanBet(c.QueryRow(ctx, `SELECT `+betColumns+` FROM bets WHERE id = ?`+suffix, id))
	if store.IsNoRows(err) {
		return Bet{}, apperr.ErrBetNotFound
	}
	if err != nil {
		return Bet{}, fmt.Errorf("load bet %d: %w", id, err)
	}
	return b, nil
}

// Take ocupa o lado oposto: open -> active e trava o wager do tomador.
// O UPDATE só afeta apostas ainda open e sem tomador; caso contrário ErrBetNotOpen.
func (r *Bets) Take(ctx context.Context, c *store.Conn, id int64, taker string, amount decimal.Decimal) (Bet, error) {
	res, err := c.Exec(ctx, `
		UPDATE bets SET sideTakenBy = ?, status = ?, takerLocked = ?
		WHERE id = ? AND status = ? AND sideTakenBy IS NULL`,
		taker, string(StatusActive), amount, id, string(StatusOpen))
	if err != nil {
		return Bet{}, fmt.Errorf("take bet %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Bet{}, apperr.ErrBetNotOpen
	}
	return r.Get(ctx, c, id)
}

// Settlement são os campos gravados quando a aposta é liquidada
type Settlement struct {
	Winner     string
	Summary    string
	PayoutTxID string
	SettledAt  time.Time
}

// MarkSettled finaliza a aposta e zera os locks; só afeta apostas active (ErrBetNotActive caso contrário)
func (r *Bets) MarkSettled(ctx context.Context, c *store.Conn, id int64, s Settlement) (Bet, error) {
	res, err := c.Exec(ctx, `
		UPDATE bets
		SET winner = ?, status = ?, resolutionSummary = ?, payoutTxId = ?, settledAt = ?, creatorLocked = ?, takerLocked = ?
		WHERE id = ? AND status = ?`,
		s.Winner, string(StatusSettled), s.Summary, s.PayoutTxID, store.FormatTime(s.SettledAt),
		decimal.Zero, decimal.Zero, id, string(StatusActive))
	if err != nil {
		return Bet{}, fmt.Errorf("settle bet %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Bet{}, apperr.ErrBetNotActive
	}
	return r.Get(ctx, c, id)
}

// ListSorted lista todas as apostas: open, active, settled; dentro do grupo por endsAt crescente
func (r *Bets) ListSorted(ctx context.Context, c *store.Conn) ([]Bet, error) {
	bets, err := r.list(ctx, c, `SELECT `+betColumns+` FROM bets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(bets, func(i, j int) bool {
		ri, rj := statusRank(bets[i].Status), statusRank(bets[j].Status)
		if ri != rj {
			return ri < rj
		}
		return endsBefore(bets[i], bets[j])
	})
	return bets, nil
}

// ListDueForSettlement devolve as apostas active com endsAt <= asOf, em ordem de vencimento.
// Apostas com endsAt ilegível nunca vencem.
func (r *Bets) ListDueForSettlement(ctx context.Context, c *store.Conn, asOf time.Time) ([]Bet, error) {
	active, err := r.list(ctx, c, `SELECT `+betColumns+` FROM bets WHERE status = ? ORDER BY id`, string(StatusActive))
	if err != nil {
		return nil, err
	}

	due := active[:0]
	for _, b := range active {
		if b.HasValidEnd() && !b.EndsAt.After(asOf) {
			due = append(due, b)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return endsBefore(due[i], due[j]) })
	return due, nil
}

func (r *Bets) list(ctx context.Context, c *store.Conn, query string, args ...any) ([]Bet, error) {
	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bet: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// endsBefore ordena por endsAt; datas inválidas vão para o fim do grupo
func endsBefore(a, b Bet) bool {
	switch {
	case a.HasValidEnd() && b.HasValidEnd():
		return a.EndsAt.Before(b.EndsAt)
	case a.HasValidEnd() != b.HasValidEnd():
		return a.HasValidEnd()
	default:
		return a.EndsAtRaw < b.EndsAtRaw
	}
}
