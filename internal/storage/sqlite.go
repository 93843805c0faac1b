package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

// SQLite persists messages in a single-file database. Writes take a file
// lock so concurrent binkd processes sharing one database do not interleave.
type SQLite struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, binkerr.Wrap(binkerr.CodeStorageUnavailable, "create conversation store directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeStorageUnavailable, "open conversation sqlite", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			tool TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, binkerr.Wrap(binkerr.CodeStorageUnavailable, "init conversation schema", err)
		}
	}
	return &SQLite{db: db, lock: flock.New(path + ".lock")}, nil
}

func (s *SQLite) Append(ctx context.Context, msg Message) error {
	msg = fill(msg)
	locked, err := s.lock.TryLockContext(ctx, 5*time.Second)
	if err != nil {
		return binkerr.Wrap(binkerr.CodeStorageUnavailable, "lock conversation store", err)
	}
	if !locked {
		return binkerr.New(binkerr.CodeStorageUnavailable, "lock conversation store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, tool, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Tool, msg.Content, msg.CreatedAt.UTC().Unix())
	if err != nil {
		return binkerr.Wrap(binkerr.CodeStorageUnavailable, "append conversation message", err)
	}
	return nil
}

func (s *SQLite) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var (
		rows *sql.Rows
		err  error
	)
	if conversationID == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, conversation_id, role, tool, content, created_at
			FROM messages ORDER BY seq DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, conversation_id, role, tool, content, created_at
			FROM messages WHERE conversation_id = ? ORDER BY seq DESC LIMIT ?`,
			conversationID, limit)
	}
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeStorageUnavailable, "list conversation messages", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	messages := make([]Message, 0)
	for rows.Next() {
		var (
			msg  Message
			unix int64
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Tool, &msg.Content, &unix); err != nil {
			return nil, binkerr.Wrap(binkerr.CodeStorageUnavailable, "scan conversation row", err)
		}
		msg.CreatedAt = time.Unix(unix, 0).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, binkerr.Wrap(binkerr.CodeStorageUnavailable, "iterate conversation rows", err)
	}
	return messages, nil
}
