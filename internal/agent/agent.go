// Package agent assembles plugins into the callable surface a language model
// drives: named tools with declared schemas, dispatched behind the tool
// allowlist, with progress fan-out and conversation recording on every call.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/events"
	"github.com/tonyfindev/BinkOS-sub002/internal/logging"
	"github.com/tonyfindev/BinkOS-sub002/internal/plugin"
	"github.com/tonyfindev/BinkOS-sub002/internal/policy"
	"github.com/tonyfindev/BinkOS-sub002/internal/schema"
	"github.com/tonyfindev/BinkOS-sub002/internal/storage"
	"github.com/tonyfindev/BinkOS-sub002/internal/tool"
)

type Config struct {
	// EnabledTools is the allowlist; empty enables every registered tool.
	EnabledTools []string
	// ConversationID groups this process's recorded messages. Generated
	// when empty.
	ConversationID string
	// Store receives invocation/result messages; nil disables recording.
	Store storage.ConversationStore
	// Events receives progress updates alongside the caller's callback.
	Events *events.Emitter
	Now    func() time.Time
}

// ToolInfo is one entry of the declared-schema listing.
type ToolInfo struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Plugin      string        `json:"plugin"`
	Parameters  schema.Object `json:"parameters"`
}

type registration struct {
	plugin string
	tool   tool.Tool
}

// Agent owns the tool table. Register plugins during wiring, then Execute
// concurrently; the result payload is always a JSON string the model can
// read, never a raised error.
type Agent struct {
	mu      sync.RWMutex
	tools   map[string]registration
	order   []string
	enabled []string
	convID  string
	store   storage.ConversationStore
	events  *events.Emitter
	now     func() time.Time
	log     *slog.Logger
}

func New(cfg Config) *Agent {
	convID := strings.TrimSpace(cfg.ConversationID)
	if convID == "" {
		convID = uuid.NewString()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Agent{
		tools:   make(map[string]registration),
		enabled: cfg.EnabledTools,
		convID:  convID,
		store:   cfg.Store,
		events:  cfg.Events,
		now:     now,
		log:     logging.Named("agent"),
	}
}

func (a *Agent) ConversationID() string { return a.convID }

// RegisterPlugin adds every tool the plugin declares. Tool names are global:
// a second registration under an existing name is a wiring bug, not a
// last-wins overwrite.
func (a *Agent) RegisterPlugin(p plugin.Plugin) error {
	if p == nil {
		return binkerr.New(binkerr.CodeUsage, "cannot register a nil plugin")
	}
	name := strings.TrimSpace(p.Name())
	if name == "" {
		return binkerr.New(binkerr.CodeUsage, "plugin name is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, tl := range p.Tools() {
		toolName := strings.TrimSpace(tl.Name())
		if toolName == "" {
			return binkerr.Newf(binkerr.CodeUsage, "plugin %s declares a tool with no name", name)
		}
		if existing, ok := a.tools[toolName]; ok {
			return binkerr.Newf(binkerr.CodeUsage,
				"tool %s already registered by plugin %s", toolName, existing.plugin)
		}
		a.tools[toolName] = registration{plugin: name, tool: tl}
		a.order = append(a.order, toolName)
	}
	a.log.Info("plugin registered",
		slog.String("plugin", name),
		slog.Int("tools", len(p.Tools())))
	return nil
}

// Tools lists the registered tools in registration order.
func (a *Agent) Tools() []ToolInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]ToolInfo, 0, len(a.order))
	for _, name := range a.order {
		reg := a.tools[name]
		out = append(out, ToolInfo{
			Name:        name,
			Description: reg.tool.Description(),
			Plugin:      reg.plugin,
			Parameters:  reg.tool.Schema(),
		})
	}
	return out
}

// Execute dispatches one tool call. Every outcome, including unknown tools,
// policy blocks and transport failures, is flattened into the returned JSON
// payload; both the invocation and the result are recorded.
func (a *Agent) Execute(ctx context.Context, toolName string, raw json.RawMessage, onProgress tool.ProgressFunc) string {
	toolName = strings.TrimSpace(toolName)
	requestID := uuid.NewString()

	args := string(raw)
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	a.record(ctx, storage.RoleTool, toolName, args)

	a.mu.RLock()
	reg, known := a.tools[toolName]
	available := strings.Join(a.order, ", ")
	a.mu.RUnlock()

	var payload string
	if !known {
		payload = tool.ErrorFrom(binkerr.Newf(binkerr.CodeUsage,
			"unknown tool %s (available: %s)", toolName, available))
	} else if err := policy.Check(a.enabled, toolName); err != nil {
		payload = tool.ErrorFrom(err)
	} else {
		out, err := reg.tool.Execute(ctx, raw, a.events.Progress(toolName, requestID, onProgress))
		if err != nil {
			a.log.Warn("tool execution aborted",
				slog.String("tool", toolName),
				slog.String("error", err.Error()))
			payload = tool.ErrorFrom(err)
		} else {
			payload = out
		}
	}

	a.record(ctx, storage.RoleAssistant, toolName, payload)
	return payload
}

func (a *Agent) record(ctx context.Context, role, toolName, content string) {
	if a.store == nil {
		return
	}
	err := a.store.Append(ctx, storage.Message{
		ConversationID: a.convID,
		Role:           role,
		Tool:           toolName,
		Content:        content,
		CreatedAt:      a.now().UTC(),
	})
	if err != nil {
		// Persistence is best-effort; a locked database must not fail trades.
		a.log.Warn("conversation record failed", slog.String("error", err.Error()))
	}
}
