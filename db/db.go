// Package db keeps the message history and command log in sqlite.
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// Every inbound message is a write from the frame loop: WAL lets history
// queries read alongside it, and synchronous=NORMAL keeps each insert off
// the fsync path.
const dsnOptions = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"

type DB struct {
	*sql.DB
}

func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	d := &DB{sqlDB}
	messages, invocations, err := d.counts(context.Background())
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	slog.Info("history opened", "path", path, "messages", messages, "invocations", invocations)
	return d, nil
}

func (db *DB) counts(ctx context.Context) (messages, invocations int64, err error) {
	err = db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM messages), (SELECT COUNT(*) FROM invocations)
	`).Scan(&messages, &invocations)
	if err != nil {
		return 0, 0, fmt.Errorf("count history: %w", err)
	}
	return messages, invocations, nil
}
