package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nicebartender/botgate/event"
)

type Message struct {
	ID        string
	Bot       string
	MessageID int64
	SelfID    int64
	UserID    int64
	GroupID   int64
	Nickname  string
	Content   string
	Segments  string // JSON array
	CreatedAt time.Time
}

// RecordMessage stores an inbound message. Messages without a gateway
// timestamp are stamped with the current time.
func (db *DB) RecordMessage(ctx context.Context, bot string, m *event.Message) error {
	segments, err := json.Marshal(m.Chain)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	at := m.Time
	if at.IsZero() {
		at = time.Now()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO messages (id, bot, message_id, self_id, user_id, group_id, nickname, content, segments, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), bot, m.MessageID, m.SelfID, m.Sender.UserID, m.Sender.GroupID, m.Sender.Nickname, m.Text, string(segments), at.UTC())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

const (
	DefaultHistory = 20
	MaxHistory     = 100
)

// RecentMessages returns up to limit messages seen in pos, oldest first.
// limit is clamped to MaxHistory; zero or less means DefaultHistory.
func (db *DB) RecentMessages(ctx context.Context, bot string, pos event.Position, limit int) ([]Message, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistory
	case limit > MaxHistory:
		limit = MaxHistory
	}

	query := `
		SELECT id, bot, message_id, self_id, user_id, group_id, nickname, content, segments, created_at
		FROM messages WHERE bot = ? AND group_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`
	args := []any{bot, pos.ID, limit}
	if !pos.Group {
		query = `
			SELECT id, bot, message_id, self_id, user_id, group_id, nickname, content, segments, created_at
			FROM messages WHERE bot = ? AND group_id = 0 AND user_id = ?
			ORDER BY created_at DESC, rowid DESC LIMIT ?
		`
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Bot, &m.MessageID, &m.SelfID, &m.UserID, &m.GroupID, &m.Nickname, &m.Content, &m.Segments, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
