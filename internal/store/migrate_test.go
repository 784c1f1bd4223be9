package store

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "raw.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMigrate_FreshDatabase(t *testing.T) {
	ctx := context.Background()
	db := rawDB(t)

	v, err := SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, Migrate(ctx, db, testLogger()))
	v, err = SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, latestVersion, v)

	for _, table := range []string{"conversations", "messages", "scores"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}
	var idx string
	require.NoError(t, db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_conversations_recent'`).Scan(&idx))
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := rawDB(t)
	require.NoError(t, Migrate(ctx, db, testLogger()))
	require.NoError(t, Migrate(ctx, db, testLogger()))
}

func TestMigrate_RerunsStepWhoseColumnExists(t *testing.T) {
	ctx := context.Background()
	db := rawDB(t)
	require.NoError(t, Migrate(ctx, db, testLogger()))

	// Pretend the version bump for step 2 was lost after its ALTER ran.
	_, err := db.Exec(`PRAGMA user_version = 1`)
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, db, testLogger()))
	v, err := SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, latestVersion, v)
}

func TestMigrate_RefusesNewerSchema(t *testing.T) {
	ctx := context.Background()
	db := rawDB(t)
	_, err := db.Exec(`PRAGMA user_version = 99`)
	require.NoError(t, err)

	err = Migrate(ctx, db, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestHasColumn(t *testing.T) {
	ctx := context.Background()
	db := rawDB(t)
	require.NoError(t, Migrate(ctx, db, testLogger()))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	has, err := hasColumn(ctx, tx, "messages", "latency_ms")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = hasColumn(ctx, tx, "messages", "nope")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, addColumn(ctx, tx, "messages", "latency_ms", "INTEGER"))
}

func TestStepsAreOrdered(t *testing.T) {
	for i, s := range steps {
		assert.Equal(t, i+1, s.version, s.name)
	}
}
