package dto

import (
	"github.com/radieske/wager-marketplace/internal/wager-service/ledger"
	"github.com/radieske/wager-marketplace/internal/wager-service/repo"
	"github.com/radieske/wager-marketplace/internal/wager-service/store"
	"github.com/radieske/wager-marketplace/pkg/contracts/money"
)

// Valores monetários usam money.Amount: saem como número JSON, igual aos clientes existentes esperam
type Account struct {
	AgentID           string       `json:"agentId"`
	Balance           money.Amount `json:"balance"`
	Currency          string       `json:"currency"`
	PayoutDestination *string      `json:"payoutDestination"`
	CreatedAt         string       `json:"createdAt"`
	UpdatedAt         string       `json:"updatedAt"`
}

type FundResponse struct {
	Account
	ChargeID string `json:"chargeId"`
}

// Bet mantém os nomes de campo do contrato público; opcionais ausentes saem como null
type Bet struct {
	ID                int64        `json:"id"`
	CreatorAgent      string       `json:"creatorAgent"`
	Event             string       `json:"event"`
	WagerAmount       money.Amount `json:"wagerAmount"`
	Odds              money.Amount `json:"odds"`
	EndsAt            string       `json:"endsAt"`
	Currency          string       `json:"currency"`
	SideTakenBy       *string      `json:"sideTakenBy"`
	Status            string       `json:"status"`
	Winner            *string      `json:"winner"`
	ResolutionSummary *string      `json:"resolutionSummary"`
	CreatorLocked     money.Amount `json:"creatorLocked"`
	TakerLocked       money.Amount `json:"takerLocked"`
	PayoutTxID        *string      `json:"payoutTxId"`
	SettledAt         *string      `json:"settledAt"`
}

type ResolveDueResponse struct {
	Resolved []Bet `json:"resolved"`
}

type Drift struct {
	AgentID    string       `json:"agentId"`
	Balance    money.Amount `json:"balance"`
	Expected   money.Amount `json:"expected"`
	Difference money.Amount `json:"difference"`
}

type ReconcileResponse struct {
	Drifts []Drift `json:"drifts"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func FromAccount(a ledger.Account) Account {
	return Account{
		AgentID:           a.AgentID,
		Balance:           money.Of(a.Balance),
		Currency:          a.Currency,
		PayoutDestination: optional(a.PayoutDestination),
		CreatedAt:         store.FormatTime(a.CreatedAt),
		UpdatedAt:         store.FormatTime(a.UpdatedAt),
	}
}

func FromBet(b repo.Bet) Bet {
	out := Bet{
		ID:                b.ID,
		CreatorAgent:      b.CreatorAgent,
		Event:             b.Event,
		WagerAmount:       money.Of(b.WagerAmount),
		Odds:              money.Of(b.Odds),
		EndsAt:            b.EndsAtRaw,
		Currency:          b.Currency,
		SideTakenBy:       optional(b.SideTakenBy),
		Status:            string(b.Status),
		Winner:            optional(b.Winner),
		ResolutionSummary: optional(b.ResolutionSummary),
		CreatorLocked:     money.Of(b.CreatorLocked),
		TakerLocked:       money.Of(b.TakerLocked),
		PayoutTxID:        optional(b.PayoutTxID),
	}
	if b.SettledAt != nil {
		s := store.FormatTime(*b.SettledAt)
		out.SettledAt = &s
	}
	return out
}

func FromBets(bets []repo.Bet) []Bet {
	out := make([]Bet, 0, len(bets))
	for _, b := range bets {
		out = append(out, FromBet(b))
	}
	return out
}

func FromDrifts(drifts []ledger.Drift) []Drift {
	out := make([]Drift, 0, len(drifts))
	for _, d := range drifts {
		out = append(out, Drift{
			AgentID:    d.AgentID,
			Balance:    money.Of(d.Balance),
			Expected:   money.Of(d.Expected),
			Difference: money.Of(d.Difference),
		})
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
