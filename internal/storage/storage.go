// Package storage persists the agent's conversation: every tool invocation
// and its result become messages a later session (or the history surfaces)
// can read back.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

const (
	// RoleTool marks the recorded invocation (tool name + arguments).
	RoleTool = "tool"
	// RoleAssistant marks the payload handed back to the model.
	RoleAssistant = "assistant"
)

// DefaultHistoryLimit applies when History is called with limit <= 0.
const DefaultHistoryLimit = 20

// Message is one recorded conversation turn.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Tool           string    `json:"tool"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversationStore is the persistence surface the agent records through.
// History returns newest-first; conversationID "" means all conversations.
type ConversationStore interface {
	Append(ctx context.Context, msg Message) error
	History(ctx context.Context, conversationID string, limit int) ([]Message, error)
	Close() error
}

// Open builds the store for the configured driver. path feeds the sqlite
// driver, dsn the mysql one.
func Open(driver, path, dsn string) (ConversationStore, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMemory, "":
		return NewMemory(0), nil
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverMySQL:
		return OpenMySQL(dsn)
	default:
		return nil, binkerr.Newf(binkerr.CodeUsage,
			"unknown storage driver %q (want sqlite, mysql or memory)", driver)
	}
}

// fill stamps the generated fields a caller left empty.
func fill(msg Message) Message {
	if strings.TrimSpace(msg.ID) == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return msg
}
