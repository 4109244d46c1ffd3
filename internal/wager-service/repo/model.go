package repo

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/wager-marketplace/internal/wager-service/store"
)

type Status string

const (
	StatusOpen    Status = "open"
	StatusActive  Status = "active"
	StatusSettled Status = "settled"
)

// Bet é o modelo persistido na tabela bets
type Bet struct {
	ID                int64
	CreatorAgent      string
	Event             string
	WagerAmount       decimal.Decimal
	Odds              decimal.Decimal
	EndsAt            time.Time // zero quando EndsAtRaw não é uma data válida
	EndsAtRaw         string
	Currency          string
	SideTakenBy       string
	Status            Status
	Winner            string
	ResolutionSummary string
	CreatorLocked     decimal.Decimal
	TakerLocked       decimal.Decimal
	PayoutTxID        string
	SettledAt         *time.Time
}

func (b Bet) HasValidEnd() bool { return !b.EndsAt.IsZero() }

// Version cresce a cada transição (open 1, active 2, settled 3); snapshots menores são obsoletos
func (b Bet) Version() int64 { return int64(statusRank(b.Status)) + 1 }

func (b Bet) IsParticipant(agentID string) bool {
	return agentID != "" && (agentID == b.CreatorAgent || agentID == b.SideTakenBy)
}

// Draft são os campos informados na criação; o restante é atribuído pelo repositório
type Draft struct {
	CreatorAgent string
	Event        string
	WagerAmount  decimal.Decimal
	Odds         decimal.Decimal
	EndsAt       time.Time
	Currency     string
}

// Colunas projetadas em toda leitura de aposta, na ordem de scanBet
const betColumns = `id, creatorAgent, event, wagerAmount, odds, endsAt, currency, sideTakenBy, status,
	winner, resolutionSummary, creatorLocked, takerLocked, payoutTxId, settledAt`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBet(row rowScanner) (Bet, error) {
	var (
		b                                       Bet
		status                                  string
		taker, winner, summary, payout, settled sql.NullString
	)
	if err := row.Scan(&b.ID, &b.CreatorAgent, &b.Event, &b.WagerAmount, &b.Odds, &b.EndsAtRaw, &b.Currency,
		&taker, &status, &winner, &summary, &b.CreatorLocked, &b.TakerLocked, &payout, &settled); err != nil {
		return Bet{}, err
	}
	b.Status = Status(status)
	b.SideTakenBy = taker.String
	b.Winner = winner.String
	b.ResolutionSummary = summary.String
	b.PayoutTxID = payout.String

	// endsAt inválido (dado legado) não impede a leitura; resolve rejeita depois
	if t, err := store.ParseTime(b.EndsAtRaw); err == nil {
		b.EndsAt = t
	}
	if settled.Valid && settled.String != "" {
		if t, err := store.ParseTime(settled.String); err == nil {
			b.SettledAt = &t
		}
	}
	return b, nil
}

func statusRank(s Status) int {
	switch s {
	case StatusOpen:
		return 0
	case StatusActive:
		return 1
	default:
		return 2
	}
}
