package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

// MySQL persists messages in a shared server, for deployments where several
// agent instances feed one history. Schema mirrors the sqlite store.
type MySQL struct {
	db *sql.DB
}

func OpenMySQL(dsn string) (*MySQL, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, binkerr.New(binkerr.CodeUsage, "mysql storage requires a dsn (storage.dsn)")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeStorageUnavailable, "open conversation mysql", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)

	// MySQL has no CREATE INDEX IF NOT EXISTS; keys live in the table DDL.
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (
		seq BIGINT NOT NULL AUTO_INCREMENT,
		id VARCHAR(64) NOT NULL,
		conversation_id VARCHAR(64) NOT NULL,
		role VARCHAR(16) NOT NULL,
		tool VARCHAR(64) NOT NULL,
		content MEDIUMTEXT NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (seq),
		UNIQUE KEY uniq_messages_id (id),
		KEY idx_messages_conversation (conversation_id, seq)
	) ENGINE=InnoDB`)
	if err != nil {
		_ = db.Close()
		return nil, binkerr.Wrap(binkerr.CodeStorageUnavailable, "init conversation schema", err)
	}
	return &MySQL{db: db}, nil
}

func (s *MySQL) Append(ctx context.Context, msg Message) error {
	msg = fill(msg)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, tool, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Tool, msg.Content, msg.CreatedAt.UTC().Unix())
	if err != nil {
		return binkerr.Wrap(binkerr.CodeStorageUnavailable, "append conversation message", err)
	}
	return nil
}

func (s *MySQL) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
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

func (s *MySQL) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
