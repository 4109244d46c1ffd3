package events

import "github.com/radieske/wager-marketplace/pkg/contracts/money"

// Tipos de evento publicados no tópico "wager_bet_events"
const (
	BetCreated = "bet_created"
	BetTaken   = "bet_taken"
	BetSettled = "bet_settled"
)

// BetEvent carrega o snapshot da aposta após a transição
// Key da mensagem Kafka = betId (ordem preservada por aposta)
// Version segue o status commitado (open 1, active 2, settled 3) e decide qual snapshot vale.
type BetEvent struct {
	Type              string       `json:"type"`
	BetID             int64        `json:"betId"`
	Status            string       `json:"status"`
	CreatorAgent      string       `json:"creatorAgent"`
	SideTakenBy       string       `json:"sideTakenBy,omitempty"`
	Event             string       `json:"event"`
	WagerAmount       money.Amount `json:"wagerAmount"`
	Odds              money.Amount `json:"odds"`
	Currency          string       `json:"currency"`
	EndsAt            string       `json:"endsAt"`
	Winner            string       `json:"winner,omitempty"`
	ResolutionSummary string       `json:"resolutionSummary,omitempty"`
	PayoutTxID        string       `json:"payoutTxId,omitempty"`
	Version           int64        `json:"version"`
	TsUnixMs          int64        `json:"tsUnixMs"`
}
