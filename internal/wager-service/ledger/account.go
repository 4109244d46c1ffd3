package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/wager-marketplace/internal/wager-service/store"
)

// Account é a conta custodial de um agente
type Account struct {
	AgentID           string
	Balance           decimal.Decimal
	Currency          string
	PayoutDestination string // vazio quando não informado
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Colunas projetadas em toda leitura de conta, na ordem de scanAccount
const accountColumns = `agentId, balance, currency, payoutDestination, createdAt, updatedAt`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		a                Account
		dest             sql.NullString
		created, updated string
	)
	if err := row.Scan(&a.AgentID, &a.Balance, &a.Currency, &dest, &created, &updated); err != nil {
		return Account{}, err
	}
	a.PayoutDestination = dest.String

	var err error
	if a.CreatedAt, err = store.ParseTime(created); err != nil {
		return Account{}, fmt.Errorf("account %s createdAt: %w", a.AgentID, err)
	}
	if a.UpdatedAt, err = store.ParseTime(updated); err != nil {
		return Account{}, fmt.Errorf("account %s updatedAt: %w", a.AgentID, err)
	}
	return a, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
