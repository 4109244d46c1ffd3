package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/shared/db"
)

// Querier é satisfeito por *sql.DB e *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Conn executa SQL escrito com placeholders "?" no dialeto do store
type Conn struct {
	q       Querier
	dialect dialect
}

func (c *Conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.dialect.rebind(query), args...)
}

func (c *Conn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.dialect.rebind(query), args...)
}

func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.dialect.rebind(query), args...)
}

// ForUpdate devolve o sufixo de lock pessimista de linha (vazio no SQLite, que já serializa)
func (c *Conn) ForUpdate() string { return c.dialect.forUpdate }

// Store é o handle único do banco: aberto no startup, injetado nos componentes e fechado no shutdown
type Store struct {
	db      *sql.DB
	dialect dialect
	log     *zap.Logger
}

// New cria o store sobre uma conexão já aberta (ver shared/db)
func New(conn *sql.DB, driver string, log *zap.Logger) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: conn, dialect: d, log: log}, nil
}

// Open conecta, aplica o schema e retorna o store pronto para uso
func Open(ctx context.Context, driver, postgresDSN, sqlitePath string, log *zap.Logger) (*Store, error) {
	conn, err := db.Connect(driver, postgresDSN, sqlitePath)
	if err != nil {
		return nil, err
	}
	s, err := New(conn, driver, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Conn devolve um executor fora de transação (somente leituras)
func (s *Store) Conn() *Conn { return &Conn{q: s.db, dialect: s.dialect} }

// WithTx executa fn numa única transação: commit se fn retornar nil, rollback caso contrário
func (s *Store) WithTx(ctx context.Context, fn func(c *Conn) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Conn{q: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// WithReadTx executa fn num snapshot único de leitura. No Postgres usa
// REPEATABLE READ somente leitura; no SQLite a própria transação já isola.
func (s *Store) WithReadTx(ctx context.Context, fn func(c *Conn) error) error {
	var opts *sql.TxOptions
	if s.dialect.name == db.DriverPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	return fn(&Conn{q: tx, dialect: s.dialect})
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// dialect cobre as poucas diferenças de SQL entre Postgres e SQLite
type dialect struct {
	name      string
	numbered  bool   // placeholders $1..$n
	forUpdate string // sufixo de lock de linha
	idColumn  string
	money     string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case db.DriverPostgres:
		return dialect{
			name:      db.DriverPostgres,
			numbered:  true,
			forUpdate: " FOR UPDATE",
			idColumn:  "BIGSERIAL PRIMARY KEY",
			money:     "NUMERIC(24,8)",
		}, nil
	case db.DriverSQLite:
		return dialect{
			name:     db.DriverSQLite,
			idColumn: "INTEGER PRIMARY KEY AUTOINCREMENT",
			money:    "TEXT",
		}, nil
	default:
		return dialect{}, fmt.Errorf("unknown store driver %q", driver)
	}
}

// rebind troca "?" por "$n" quando o driver exige placeholders numerados
func (d dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Formato canônico de timestamps persistidos (UTC, milissegundos, ordenável como texto)
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

var timeNow = time.Now

func FormatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

// Layouts aceitos na leitura; os sem offset são interpretados como UTC.
// "2006-01-02T15:04" é o que inputs datetime-local enviam.
var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range parseLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// IsNoRows simplifica checagem de sql.ErrNoRows atravessando wraps
func IsNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
