// Package api serves the agent over HTTP: execute tools, list their schemas,
// read conversation history and stats, and stream progress over websockets.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tonyfindev/BinkOS-sub002/internal/agent"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/events"
	"github.com/tonyfindev/BinkOS-sub002/internal/logging"
	"github.com/tonyfindev/BinkOS-sub002/internal/model"
	"github.com/tonyfindev/BinkOS-sub002/internal/stats"
	"github.com/tonyfindev/BinkOS-sub002/internal/storage"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

type Config struct {
	Agent *agent.Agent
	Stats *stats.Collector
	// Store serves GET /v1/history; nil returns storage_unavailable there.
	Store storage.ConversationStore
	// Hub serves GET /v1/ws; nil disables the endpoint.
	Hub *events.Hub
	Now func() time.Time
}

type Server struct {
	agent *agent.Agent
	stats *stats.Collector
	store storage.ConversationStore
	hub   *events.Hub
	now   func() time.Time
	log   *slog.Logger
}

func NewServer(cfg Config) *Server {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		agent: cfg.Agent,
		stats: cfg.Stats,
		store: cfg.Store,
		hub:   cfg.Hub,
		now:   now,
		log:   logging.Named("api"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tools/{name}", s.handleExecute)
	mux.HandleFunc("GET /v1/tools", s.handleListTools)
	mux.HandleFunc("GET /v1/history", s.handleHistory)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.hub != nil {
		mux.Handle("GET /v1/ws", s.hub)
	}
	return mux
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("api listening", slog.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if s.hub != nil {
			s.hub.Close()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return binkerr.Wrap(binkerr.CodeUnavailable, "api shutdown", err)
		}
		<-errCh
		s.log.Info("api stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return binkerr.Wrap(binkerr.CodeUnavailable, "api server failed", err)
	}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	toolName := r.PathValue("name")
	started := s.now()
	requestID := uuid.NewString()

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		env := s.errorEnvelope(toolName, requestID, started,
			binkerr.Wrap(binkerr.CodeUsage, "read request body", err))
		writeJSON(w, http.StatusBadRequest, env)
		return
	}

	payload := s.agent.Execute(r.Context(), toolName, raw, nil)
	env, status := s.envelopeFromPayload(toolName, requestID, started, payload)
	writeJSON(w, status, env)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.agent.Tools()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "conversation persistence is not configured",
		})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	conversation := r.URL.Query().Get("conversation")

	messages, err := s.store.History(r.Context(), conversation, limit)
	if err != nil {
		s.log.Warn("history read failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// envelopeFromPayload lifts a tool's in-band payload into the response
// envelope, mapping the payload's stable code to an HTTP status.
func (s *Server) envelopeFromPayload(toolName, requestID string, started time.Time, payload string) (model.Envelope, int) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return s.errorEnvelope(toolName, requestID, started,
			binkerr.Wrap(binkerr.CodeInternal, "tool returned an unreadable payload", err)),
			http.StatusInternalServerError
	}

	meta := s.meta(toolName, requestID, started)
	if parsed["status"] == "success" {
		return model.Envelope{
			Version: model.EnvelopeVersion,
			Success: true,
			Data:    parsed,
			Meta:    meta,
		}, http.StatusOK
	}

	code := binkerr.CodeInternal
	if v, ok := parsed["code"].(float64); ok {
		code = binkerr.Code(v)
	}
	message, _ := parsed["message"].(string)
	if message == "" {
		message = "tool execution failed"
	}
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Error: &model.ErrorBody{
			Code:    int(code),
			Type:    model.ErrorTypeForCode(code),
			Message: message,
		},
		Meta: meta,
	}
	return env, httpStatusForCode(code)
}

func (s *Server) errorEnvelope(toolName, requestID string, started time.Time, err error) model.Envelope {
	code := binkerr.CodeInternal
	if typed, ok := binkerr.As(err); ok {
		code = typed.Code
	}
	return model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Error: &model.ErrorBody{
			Code:    int(code),
			Type:    model.ErrorTypeForCode(code),
			Message: err.Error(),
		},
		Meta: s.meta(toolName, requestID, started),
	}
}

func (s *Server) meta(toolName, requestID string, started time.Time) model.EnvelopeMeta {
	return model.EnvelopeMeta{
		RequestID:  requestID,
		Timestamp:  s.now().UTC(),
		Tool:       toolName,
		DurationMS: s.now().Sub(started).Milliseconds(),
	}
}

func httpStatusForCode(code binkerr.Code) int {
	switch code {
	case binkerr.CodeUsage, binkerr.CodeValidation,
		binkerr.CodeNetworkUnsupported, binkerr.CodeProviderUnsupported:
		return http.StatusBadRequest
	case binkerr.CodeAuth:
		return http.StatusUnauthorized
	case binkerr.CodeBlocked:
		return http.StatusForbidden
	case binkerr.CodeRateLimited:
		return http.StatusTooManyRequests
	case binkerr.CodeUnavailable, binkerr.CodeWalletUnavailable, binkerr.CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
