// Package dbtest opens throwaway in-memory stores for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/school_canteen/internal/db"
)

// New returns a migrated in-memory SQLite store that is closed with the test.
func New(t *testing.T) *db.Store {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	store, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
