package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Provider concentra os ids de transação externos: cobranças de depósito e pagamentos de apostas
type Provider interface {
	CreateCharge(ctx context.Context, amount decimal.Decimal, currency, reference string) (string, error)
	SendPayout(ctx context.Context, p Payout) (string, error)
}

// Payout descreve o pagamento de uma aposta liquidada ao vencedor
type Payout struct {
	BetID       int64
	AgentID     string
	Amount      decimal.Decimal
	Currency    string
	Destination string // vazio quando a conta não informou destino
	At          time.Time
}

// Mock simula o provedor custodial: nenhuma cobrança ou transferência real é feita
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (*Mock) CreateCharge(_ context.Context, amount decimal.Decimal, currency, reference string) (string, error) {
	if !amount.IsPositive() {
		return "", fmt.Errorf("charge amount must be positive, got %s", amount)
	}
	return fmt.Sprintf("chg_%s_%s", reference, randomHex(12)), nil
}

// SendPayout devolve payout_<betId>_<unixms>_<8 hex aleatórios>
func (*Mock) SendPayout(_ context.Context, p Payout) (string, error) {
	if !p.Amount.IsPositive() {
		return "", fmt.Errorf("payout amount must be positive, got %s", p.Amount)
	}
	return fmt.Sprintf("payout_%d_%d_%s", p.BetID, p.At.UnixMilli(), randomHex(8)), nil
}

func randomHex(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
