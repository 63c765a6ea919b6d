package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentcluster/dashboard/internal/config"
)

// MustConnectTest opens a fresh store backed by a temp-dir SQLite file and
// closes it when the test ends.
func MustConnectTest(t *testing.T) *Store {
	t.Helper()

	store, err := Connect(&config.DBConfig{
		Path: filepath.Join(t.TempDir(), "dashboard.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}
