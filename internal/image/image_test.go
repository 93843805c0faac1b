package image

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/httpx"
	"github.com/tonyfindev/BinkOS-sub002/internal/stats"
)

func testStats() *stats.Collector {
	return stats.NewCollector(func() time.Time { return time.Unix(1_700_000_000, 0) })
}

func TestGenerateToolReturnsURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer img-key" {
			t.Fatalf("expected bearer auth, got %q", got)
		}
		var body struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Size   string `json:"size"`
			N      int    `json:"n"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Prompt != "a capsule hotel for validators" || body.Size != "512x512" || body.N != 1 {
			t.Fatalf("unexpected request: %+v", body)
		}
		if body.Model != DefaultModel {
			t.Fatalf("unexpected model: %q", body.Model)
		}
		_, _ = w.Write([]byte(`{"data":[{"url":"https://img.example/out.png"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(httpx.New(2*time.Second, 0), srv.URL, "img-key", "")
	p := NewPlugin(PluginConfig{Client: client, Stats: testStats()})

	out, err := p.Tools()[0].Execute(context.Background(),
		json.RawMessage(`{"prompt":"a capsule hotel for validators","size":"512x512"}`), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("payload %q: %v", out, err)
	}
	if payload["status"] != "success" || payload["url"] != "https://img.example/out.png" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["size"] != "512x512" {
		t.Fatalf("unexpected size: %v", payload["size"])
	}
}

func TestGenerateDefaultsSize(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["size"] != "1024x1024" {
			t.Fatalf("unexpected size: %v", body["size"])
		}
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"aGVsbG8="}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(httpx.New(2*time.Second, 0), srv.URL, "", "")
	p := NewPlugin(PluginConfig{Client: client, Stats: testStats()})

	out, err := p.Tools()[0].Execute(context.Background(), json.RawMessage(`{"prompt":"night skyline"}`), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("payload %q: %v", out, err)
	}
	if payload["b64"] != "aGVsbG8=" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestGenerateUnconfiguredReportsError(t *testing.T) {
	p := NewPlugin(PluginConfig{Stats: testStats()})
	out, err := p.Tools()[0].Execute(context.Background(), json.RawMessage(`{"prompt":"anything"}`), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("payload %q: %v", out, err)
	}
	if payload["status"] != "error" {
		t.Fatalf("expected error payload, got %v", payload)
	}
	if msg, _ := payload["message"].(string); !strings.Contains(msg, "not configured") {
		t.Fatalf("unexpected message: %v", payload["message"])
	}
}

func TestGenerateRejectsUnknownSize(t *testing.T) {
	client := NewClient(httpx.New(2*time.Second, 0), "http://unused.invalid", "", "")
	p := NewPlugin(PluginConfig{Client: client, Stats: testStats()})
	out, err := p.Tools()[0].Execute(context.Background(),
		json.RawMessage(`{"prompt":"x","size":"9000x9000"}`), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("payload %q: %v", out, err)
	}
	if payload["status"] != "error" {
		t.Fatalf("expected schema rejection, got %v", payload)
	}
}

func TestGenerateEmptyCandidateList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(httpx.New(2*time.Second, 0), srv.URL, "", "")
	if _, err := client.Generate(context.Background(), "x", "512x512"); err == nil {
		t.Fatal("expected structural error for empty candidates")
	}
}
