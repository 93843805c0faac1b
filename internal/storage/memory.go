package storage

import (
	"context"
	"sync"
)

const defaultMemoryCapacity = 1000

// Memory keeps the most recent messages in a bounded slice. It backs tests
// and the default no-persistence configuration.
type Memory struct {
	mu       sync.Mutex
	messages []Message
	capacity int
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &Memory{capacity: capacity}
}

func (m *Memory) Append(ctx context.Context, msg Message) error {
	msg = fill(msg)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	if len(m.messages) > m.capacity {
		m.messages = m.messages[len(m.messages)-m.capacity:]
	}
	return nil
}

func (m *Memory) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, 0, limit)
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		msg := m.messages[i]
		if conversationID != "" && msg.ConversationID != conversationID {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
