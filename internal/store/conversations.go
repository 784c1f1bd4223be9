package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/domain"
)

const (
	defaultConversationPage = 20
	defaultMessagePage      = 100
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(id string) error {
	return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, conv domain.Conversation) error {
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	const q = `INSERT INTO conversations
		(id, url, title, snapshot, provider, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		conv.ID, conv.URL, conv.Title, conv.Snapshot,
		conv.Provider, conv.Model, conv.CreatedAt, conv.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert conversation %s: %w", conv.ID, err)
	}
	return nil
}

// scanConversation reads the column list used by GetConversation. Listing
// passes withSnapshot=false and omits that column.
func scanConversation(row rowScanner, withSnapshot bool) (domain.Conversation, error) {
	var (
		c                            domain.Conversation
		title, snap, provider, model sql.NullString
	)
	dest := []any{&c.ID, &c.URL, &title}
	if withSnapshot {
		dest = append(dest, &snap)
	}
	dest = append(dest, &provider, &model, &c.CreatedAt, &c.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return c, err
	}
	c.Title, c.Snapshot = title.String, snap.String
	c.Provider, c.Model = provider.String, model.String
	return c, nil
}

// GetConversation returns ErrNotFound for an unknown id.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, title, snapshot, provider, model, created_at, updated_at
		 FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}
	return &c, nil
}

// ListConversations returns the most recently active conversations without
// their snapshots.
func (s *SQLiteStore) ListConversations(ctx context.Context, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = defaultConversationPage
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, title, provider, model, created_at, updated_at
		 FROM conversations
		 ORDER BY updated_at DESC, created_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation. Its messages go with it through
// the foreign key cascade.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

// AddMessage appends a message and bumps the conversation's updated_at in
// one transaction.
func (s *SQLiteStore) AddMessage(ctx context.Context, convID string, msg domain.MessageRecord) error {
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, convID)
	if err != nil {
		return fmt.Errorf("touch conversation %s: %w", convID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(convID)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages
		 (conversation_id, role, content, tokens_in, tokens_out, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		convID, msg.Role, msg.Content, msg.TokensIn, msg.TokensOut, msg.LatencyMs, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return tx.Commit()
}

// GetMessages returns the last limit messages of a conversation, oldest first.
func (s *SQLiteStore) GetMessages(ctx context.Context, convID string, limit int) ([]domain.MessageRecord, error) {
	if limit <= 0 {
		limit = defaultMessagePage
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, tokens_in, tokens_out, latency_ms, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY id DESC LIMIT ?`, convID, limit)
	if err != nil {
		return nil, fmt.Errorf("load messages for %s: %w", convID, err)
	}
	defer rows.Close()

	var msgs []domain.MessageRecord
	for rows.Next() {
		var (
			m       domain.MessageRecord
			content sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &content,
			&m.TokensIn, &m.TokensOut, &m.LatencyMs, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Content = content.String
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}
