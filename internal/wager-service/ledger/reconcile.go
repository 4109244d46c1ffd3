package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/radieske/wager-marketplace/internal/wager-service/store"
)

// Drift descreve uma conta cujo saldo incremental diverge do log de auditoria
type Drift struct {
	AgentID    string
	Balance    decimal.Decimal
	Expected   decimal.Decimal
	Difference decimal.Decimal
}

// Reconcile recalcula o saldo esperado de cada conta:
// depósitos + pagamentos - wagers das apostas criadas - wagers das apostas tomadas.
// A soma é feita em decimal no Go para não depender da aritmética numérica do driver.
func (l *Ledger) Reconcile(ctx context.Context, c *store.Conn) ([]Drift, error) {
	expected := make(map[string]decimal.Decimal)
	add := func(agent string, v decimal.Decimal) {
		expected[agent] = expected[agent].Add(v)
	}

	if err := sumRows(ctx, c, `SELECT agentId, amount FROM fund_events`, add); err != nil {
		return nil, fmt.Errorf("sum fund events: %w", err)
	}
	if err := sumRows(ctx, c, `SELECT agentId, amount FROM payout_events`, add); err != nil {
		return nil, fmt.Errorf("sum payout events: %w", err)
	}

	if err := sumWagers(ctx, c, add); err != nil {
		return nil, fmt.Errorf("sum wagers: %w", err)
	}

	accRows, err := c.Query(ctx, `SELECT `+accountColumns+` FROM agent_accounts`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer accRows.Close()

	var drifts []Drift
	for accRows.Next() {
		acc, err := scanAccount(accRows)
		if err != nil {
			return nil, err
		}
		exp := expected[acc.AgentID]
		if !acc.Balance.Equal(exp) {
			drifts = append(drifts, Drift{
				AgentID:    acc.AgentID,
				Balance:    acc.Balance,
				Expected:   exp,
				Difference: acc.Balance.Sub(exp),
			})
		}
	}
	if err := accRows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(drifts, func(i, j int) bool { return drifts[i].AgentID < drifts[j].AgentID })
	return drifts, nil
}

func sumRows(ctx context.Context, c *store.Conn, query string, add func(string, decimal.Decimal)) error {
	rows, err := c.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			agent  string
			amount decimal.Decimal
		)
		if err := rows.Scan(&agent, &amount); err != nil {
			return err
		}
		add(agent, amount)
	}
	return rows.Err()
}

// sumWagers debita o wager de cada participante (criador e, se houver, tomador)
func sumWagers(ctx context.Context, c *store.Conn, add func(string, decimal.Decimal)) error {
	rows, err := c.Query(ctx, `SELECT creatorAgent, sideTakenBy, wagerAmount FROM bets`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			creator string
			taker   sql.NullString
			wager   decimal.Decimal
		)
		if err := rows.Scan(&creator, &taker, &wager); err != nil {
			return err
		}
		add(creator, wager.Neg())
		if taker.Valid && taker.String != "" {
			add(taker.String, wager.Neg())
		}
	}
	return rows.Err()
}
