package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/shared/db"
)

// SchemaVersion é incrementado a cada alteração aditiva do schema
const SchemaVersion = 3

// Tabelas base; {{id}} e {{money}} dependem do dialeto.
// Os nomes de coluna seguem os stores legados para permitir upgrade in-place.
const baseSchema = `
CREATE TABLE IF NOT EXISTS bets (
    id {{id}},
    creatorAgent TEXT NOT NULL,
    event TEXT NOT NULL,
    wagerAmount {{money}} NOT NULL,
    odds {{money}} NOT NULL,
    endsAt TEXT NOT NULL,
    sideTakenBy TEXT,
    status TEXT NOT NULL,
    winner TEXT
);

CREATE TABLE IF NOT EXISTS agent_accounts (
    agentId TEXT PRIMARY KEY,
    balance {{money}} NOT NULL,
    currency TEXT NOT NULL,
    payoutDestination TEXT,
    createdAt TEXT NOT NULL,
    updatedAt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fund_events (
    id {{id}},
    agentId TEXT NOT NULL,
    amount {{money}} NOT NULL,
    currency TEXT NOT NULL,
    chargeId TEXT NOT NULL,
    createdAt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS payout_events (
    id {{id}},
    agentId TEXT NOT NULL,
    amount {{money}} NOT NULL,
    currency TEXT NOT NULL,
    payoutId TEXT NOT NULL,
    betId BIGINT NOT NULL,
    createdAt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    appliedAt TEXT NOT NULL
);
`

// Colunas adicionadas depois da primeira versão; só entram colunas nullable ou com default
var additiveColumns = []struct {
	table, column, ddl string
}{
	{"bets", "resolutionSummary", "TEXT"},
	{"bets", "currency", "TEXT NOT NULL DEFAULT 'USD'"},
	{"bets", "creatorLocked", "{{money}} NOT NULL DEFAULT '0'"},
	{"bets", "takerLocked", "{{money}} NOT NULL DEFAULT '0'"},
	{"bets", "payoutTxId", "TEXT"},
	{"bets", "settledAt", "TEXT"},
}

const indexes = `
CREATE INDEX IF NOT EXISTS idx_bets_status_ends ON bets(status, endsAt);
CREATE INDEX IF NOT EXISTS idx_fund_events_agent ON fund_events(agentId);
CREATE INDEX IF NOT EXISTS idx_payout_events_agent ON payout_events(agentId);
CREATE INDEX IF NOT EXISTS idx_payout_events_bet ON payout_events(betId);
`

// Migrate aplica o schema de forma aditiva e migra apostas legadas (sem locks)
func (s *Store) Migrate(ctx context.Context) error {
	r := strings.NewReplacer("{{id}}", s.dialect.idColumn, "{{money}}", s.dialect.money)

	for _, stmt := range splitStatements(r.Replace(baseSchema)) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	for _, c := range additiveColumns {
		if err := s.ensureColumn(ctx, c.table, c.column, r.Replace(c.ddl)); err != nil {
			return err
		}
	}

	for _, stmt := range splitStatements(indexes) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply indexes: %w", err)
		}
	}

	migrated, err := s.migrateLegacyLocks(ctx)
	if err != nil {
		return err
	}
	if migrated > 0 {
		s.log.Info("legacy bets migrated", zap.Int64("rows", migrated))
	}

	conn := s.Conn()
	if _, err := conn.Exec(ctx,
		`INSERT INTO schema_migrations (version, appliedAt) VALUES (?, ?) ON CONFLICT (version) DO NOTHING`,
		SchemaVersion, FormatTime(timeNow())); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

// ensureColumn adiciona a coluna se ainda não existir
func (s *Store) ensureColumn(ctx context.Context, table, column, ddl string) error {
	if s.dialect.name == db.DriverPostgres {
		q := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s`, table, column, ddl)
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure column %s.%s: %w", table, column, err)
		}
		return nil
	}

	cols, err := s.sqliteColumns(ctx, table)
	if err != nil {
		return err
	}
	if cols[strings.ToLower(column)] {
		return nil
	}
	q := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, ddl)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure column %s.%s: %w", table, column, err)
	}
	return nil
}

func (s *Store) sqliteColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, ctype      string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info %s: %w", table, err)
		}
		out[strings.ToLower(name)] = true
	}
	return out, rows.Err()
}

// migrateLegacyLocks preenche os locks de apostas criadas antes do escrow existir:
// open/active sem creatorLocked recebem o wager; active sem takerLocked idem.
// Idempotente: apostas novas nunca têm lock zero nesses estados.
func (s *Store) migrateLegacyLocks(ctx context.Context) (int64, error) {
	var total int64
	err := s.WithTx(ctx, func(c *Conn) error {
		res, err := c.Exec(ctx, `
			UPDATE bets SET creatorLocked = wagerAmount
			WHERE status IN ('open', 'active') AND (creatorLocked IS NULL OR creatorLocked = '0' OR creatorLocked = 0)`)
		if err != nil {
			return fmt.Errorf("migrate creator locks: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n

		res, err = c.Exec(ctx, `
			UPDATE bets SET takerLocked = wagerAmount
			WHERE status = 'active' AND (takerLocked IS NULL OR takerLocked = '0' OR takerLocked = 0)`)
		if err != nil {
			return fmt.Errorf("migrate taker locks: %w", err)
		}
		n, _ = res.RowsAffected()
		total += n
		return nil
	})
	return total, err
}

func splitStatements(schema string) []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) != "" {
			out = append(out, stmt)
		}
	}
	return out
}
