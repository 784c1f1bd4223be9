package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chenjy16/webtools-sub001/internal/domain"
	"github.com/chenjy16/webtools-sub001/internal/metrics"
)

const maxPlayerLen = 32

// SubmitScore records a finished game and returns the new row ID.
func (s *SQLiteStore) SubmitScore(ctx context.Context, sc domain.Score) (int64, error) {
	sc.Game = strings.ToLower(strings.TrimSpace(sc.Game))
	if sc.Game == "" {
		return 0, fmt.Errorf("score requires a game")
	}
	if sc.Value < 0 {
		return 0, fmt.Errorf("score must not be negative, got %d", sc.Value)
	}
	sc.Player = strings.TrimSpace(sc.Player)
	if sc.Player == "" {
		sc.Player = "anonymous"
	}
	if r := []rune(sc.Player); len(r) > maxPlayerLen {
		sc.Player = string(r[:maxPlayerLen])
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (game, player, score, created_at) VALUES (?, ?, ?, ?)`,
		sc.Game, sc.Player, sc.Value, sc.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert score: %w", err)
	}
	metrics.ScoresSubmitted.Inc(sc.Game)
	return res.LastInsertId()
}

// TopScores returns the highest scores for a game. Ties go to the earlier entry.
func (s *SQLiteStore) TopScores(ctx context.Context, game string, limit int) ([]domain.Score, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, game, player, score, created_at FROM scores
		 WHERE game = ? ORDER BY score DESC, id ASC LIMIT ?`,
		strings.ToLower(game), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Score
	for rows.Next() {
		var sc domain.Score
		if err := rows.Scan(&sc.ID, &sc.Game, &sc.Player, &sc.Value, &sc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// BestScore returns the top score for a game, 0 when none is recorded.
func (s *SQLiteStore) BestScore(ctx context.Context, game string) (int, error) {
	var best int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(score), 0) FROM scores WHERE game = ?`, strings.ToLower(game),
	).Scan(&best)
	return best, err
}
