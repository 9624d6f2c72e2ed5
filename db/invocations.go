package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nicebartender/botgate/event"
)

// RecordInvocation logs one command run and how it ended.
func (db *DB) RecordInvocation(ctx context.Context, bot, command string, m *event.Message, outcome string, took time.Duration) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO invocations (id, bot, command, message_id, user_id, group_id, outcome, took_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), bot, command, m.MessageID, m.Sender.UserID, m.Sender.GroupID, outcome, took.Milliseconds(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	return nil
}

type CommandStat struct {
	Command string
	Runs    int
	Errors  int
}

// CommandStats counts runs per command, busiest first.
func (db *DB) CommandStats(ctx context.Context, bot string) ([]CommandStat, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT command, COUNT(*), SUM(CASE WHEN outcome = 'error' THEN 1 ELSE 0 END)
		FROM invocations WHERE bot = ?
		GROUP BY command
		ORDER BY COUNT(*) DESC, command
	`, bot)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats []CommandStat
	for rows.Next() {
		var s CommandStat
		if err := rows.Scan(&s.Command, &s.Runs, &s.Errors); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
