package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// step upgrades the schema from version-1 to version. Steps must tolerate
// objects that already exist so an interrupted upgrade can be re-run.
type step struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

var steps = []step{
	{1, "conversations and messages", execAll(
		`CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			url        TEXT NOT NULL,
			title      TEXT,
			snapshot   TEXT,
			provider   TEXT,
			model      TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role            TEXT NOT NULL,
			content         TEXT,
			tokens_in       INTEGER DEFAULT 0,
			tokens_out      INTEGER DEFAULT 0,
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id, id)`,
	)},
	{2, "high scores and reply latency", func(ctx context.Context, tx *sql.Tx) error {
		if err := addColumn(ctx, tx, "messages", "latency_ms", "INTEGER DEFAULT 0"); err != nil {
			return err
		}
		return execAll(
			`CREATE TABLE IF NOT EXISTS scores (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				game       TEXT NOT NULL,
				player     TEXT NOT NULL,
				score      INTEGER NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_scores_game ON scores(game, score DESC)`,
		)(ctx, tx)
	}},
	{3, "recent conversations index", execAll(
		`CREATE INDEX IF NOT EXISTS idx_conversations_recent ON conversations(updated_at DESC, created_at DESC)`,
	)},
}

// latestVersion is the schema version a fully migrated database reports.
var latestVersion = steps[len(steps)-1].version

func execAll(stmts ...string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				return fmt.Errorf("%s: %w", firstLine(s), err)
			}
		}
		return nil
	}
}

// addColumn adds a column unless the table already has it.
func addColumn(ctx context.Context, tx *sql.Tx, table, column, def string) error {
	has, err := hasColumn(ctx, tx, table, column)
	if err != nil || has {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, def))
	return err
}

func hasColumn(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", table, err)
	}
	return n > 0, nil
}

// SchemaVersion reads the version recorded in the database header. A new
// database reports 0.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

// Migrate brings db up to latestVersion. Each step commits together with
// its version bump. A database newer than this binary is refused.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > latestVersion {
		return fmt.Errorf("database schema v%d is newer than supported v%d", current, latestVersion)
	}
	for _, s := range steps {
		if s.version <= current {
			continue
		}
		logger.Info("migrating database", "version", s.version, "step", s.name)
		if err := runStep(ctx, db, s); err != nil {
			return fmt.Errorf("migration v%d (%s): %w", s.version, s.name, err)
		}
	}
	return nil
}

func runStep(ctx context.Context, db *sql.DB, s step) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.apply(ctx, tx); err != nil {
		return err
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", s.version)); err != nil {
		return err
	}
	return tx.Commit()
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' || r == '(' {
			return s[:i]
		}
	}
	return s
}
