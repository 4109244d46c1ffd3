package events

import "github.com/radieske/wager-marketplace/pkg/contracts/money"

// Evento publicado no tópico "wager_account_events" após um depósito.
// Version é o id do fund_event gravado: cresce a cada depósito da conta.
type AccountFunded struct {
	AgentID  string       `json:"agentId"`
	Amount   money.Amount `json:"amount"`
	Currency string       `json:"currency"`
	ChargeID string       `json:"chargeId"`
	Balance  money.Amount `json:"balance"`
	Version  int64        `json:"version"`
	TsUnixMs int64        `json:"tsUnixMs"`
}
