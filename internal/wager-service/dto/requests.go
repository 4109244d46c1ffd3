package dto

import "github.com/shopspring/decimal"

type ConnectAgentRequest struct {
	AgentID           string `json:"agentId"`
	PayoutDestination string `json:"payoutDestination"`
}

// valores monetários aceitam número ou string ("10.5")
type FundRequest struct {
	Amount   *decimal.Decimal `json:"amount"`
	Currency string           `json:"currency"`
}

type CreateBetRequest struct {
	CreatorAgent string           `json:"creatorAgent"`
	Event        string           `json:"event"`
	WagerAmount  *decimal.Decimal `json:"wagerAmount"`
	Odds         *decimal.Decimal `json:"odds"`
	EndsAt       string           `json:"endsAt"` // ISO-8601
	Currency     string           `json:"currency"`
}

type TakeBetRequest struct {
	SideTakenBy string `json:"sideTakenBy"`
}

type SettleBetRequest struct {
	Winner string `json:"winner"`
}
