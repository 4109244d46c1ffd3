// Package storetest abre stores SQLite em memória já migrados para os testes dos pacotes do wager-service.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/shared/db"
	"github.com/radieske/wager-marketplace/internal/wager-service/store"
)

func New(t testing.TB) *store.Store {
	t.Helper()
	conn, err := db.ConnectSQLite(":memory:")
	require.NoError(t, err)

	s, err := store.New(conn, db.DriverSQLite, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))

	t.Cleanup(func() { s.Close() })
	return s
}
