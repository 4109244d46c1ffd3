package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/wager-service/apperr"
	"github.com/radieske/wager-marketplace/internal/wager-service/store"
)

// Ledger mantém saldos e o log append-only de depósitos e pagamentos.
// Todas as operações recebem o executor da transação corrente; o ledger não abre transações.
type Ledger struct {
	defaultCurrency string
	log             *zap.Logger
	now             func() time.Time
}

func New(defaultCurrency string, log *zap.Logger) *Ledger {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{defaultCurrency: strings.ToUpper(defaultCurrency), log: log, now: time.Now}
}

func (l *Ledger) DefaultCurrency() string { return l.defaultCurrency }

// GetOrCreate garante a conta do agente (saldo zero na moeda padrão).
// Um destino de payout não vazio sobrescreve o anterior.
func (l *Ledger) GetOrCreate(ctx context.Context, c *store.Conn, agentID, payoutDestination string) (Account, error) {
	now := store.FormatTime(l.now())
	if _, err := c.Exec(ctx, `
		INSERT INTO agent_accounts (agentId, balance, currency, payoutDestination, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (agentId) DO NOTHING`,
		agentID, decimal.Zero, l.defaultCurrency, nullable(payoutDestination), now, now); err != nil {
		return Account{}, fmt.Errorf("insert account %s: %w", agentID, err)
	}

	acc, err := l.GetForUpdate(ctx, c, agentID)
	if err != nil {
		return Account{}, err
	}

	if payoutDestination != "" && payoutDestination != acc.PayoutDestination {
		if _, err := c.Exec(ctx,
			`UPDATE agent_accounts SET payoutDestination = ?, updatedAt = ? WHERE agentId = ?`,
			payoutDestination, now, agentID); err != nil {
			return Account{}, fmt.Errorf("update payout destination %s: %w", agentID, err)
		}
		acc.PayoutDestination = payoutDestination
		acc.UpdatedAt, _ = store.ParseTime(now)
	}
	return acc, nil
}

// Get lê a conta sem lock
func (l *Ledger) Get(ctx context.Context, c *store.Conn, agentID string) (Account, error) {
	return l.get(ctx, c, agentID, "")
}

// GetForUpdate lê a conta com lock de linha até o fim da transação
func (l *Ledger) GetForUpdate(ctx context.Context, c *store.Conn, agentID string) (Account, error) {
	return l.get(ctx, c, agentID, c.ForUpdate())
}

func (l *Ledger) get(ctx context.Context, c *store.Conn, agentID, suffix string) (Account, error) {
	acc, err := scanAccount(c.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM agent_accounts WHERE agentId = ?`+suffix, agentID))
	if store.IsNoRows(err) {
		return Account{}, apperr.ErrAgentNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("load account %s: %w", agentID, err)
	}
	return acc, nil
}

// AdjustBalance soma delta (positivo ou negativo) ao saldo. Não valida saldo:
// o chamador checa suficiência dentro da mesma transação antes de debitar.
func (l *Ledger) AdjustBalance(ctx context.Context, c *store.Conn, agentID string, delta decimal.Decimal) (Account, error) {
	acc, err := l.GetForUpdate(ctx, c, agentID)
	if err != nil {
		return Account{}, err
	}

	now := l.now()
	acc.Balance = acc.Balance.Add(delta)
	acc.UpdatedAt = now.UTC().Truncate(time.Millisecond)

	if _, err := c.Exec(ctx,
		`UPDATE agent_accounts SET balance = ?, updatedAt = ? WHERE agentId = ?`,
		acc.Balance, store.FormatTime(now), agentID); err != nil {
		return Account{}, fmt.Errorf("adjust balance %s: %w", agentID, err)
	}
	return acc, nil
}

// RecordFundEvent registra o depósito no log de auditoria e devolve o id gerado
func (l *Ledger) RecordFundEvent(ctx context.Context, c *store.Conn, agentID string, amount decimal.Decimal, currency, chargeID string) (int64, error) {
	var id int64
	if err := c.QueryRow(ctx, `
		INSERT INTO fund_events (agentId, amount, currency, chargeId, createdAt)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		agentID, amount, currency, chargeID, store.FormatTime(l.now())).Scan(&id); err != nil {
		return 0, fmt.Errorf("record fund event %s: %w", agentID, err)
	}
	return id, nil
}

// RecordPayoutEvent registra o pagamento de uma aposta liquidada
func (l *Ledger) RecordPayoutEvent(ctx context.Context, c *store.Conn, agentID string, amount decimal.Decimal, currency, payoutID string, betID int64) error {
	if _, err := c.Exec(ctx, `
		INSERT INTO payout_events (agentId, amount, currency, payoutId, betId, createdAt)
		VALUES (?, ?, ?, ?, ?, ?)`,
		agentID, amount, currency, payoutID, betID, store.FormatTime(l.now())); err != nil {
		return fmt.Errorf("record payout event %s: %w", agentID, err)
	}
	l.log.Debug("payout recorded",
		zap.String("agentId", agentID),
		zap.Int64("betId", betID),
		zap.String("payoutId", payoutID),
		zap.String("amount", amount.String()))
	return nil
}
