// Package coretest opens throwaway SQLite databases for tests.
package coretest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"punchinout.com/punchinout/core"
)

// New returns a migrated database backed by a file in t.TempDir. The pool is
// limited to a single connection.
func New(t *testing.T) *core.DatabaseManager {
	t.Helper()
	return open(t, 1, "_foreign_keys=on&_busy_timeout=5000")
}

// NewPooled is New with maxConnections connections, for tests that race
// transactions against each other. SQLite has no row locks, so transactions
// begin IMMEDIATE and queue on the database write lock instead.
func NewPooled(t *testing.T, maxConnections int) *core.DatabaseManager {
	t.Helper()
	return open(t, maxConnections, "_foreign_keys=on&_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate")
}

func open(t *testing.T, maxConnections int, params string) *core.DatabaseManager {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	dsn := fmt.Sprintf("sqlite:file:%s?%s", path, params)

	dm, err := core.New(dsn, maxConnections, core.LogLevelSilent)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	require.NoError(t, dm.Migrate(context.Background()))
	return dm
}
