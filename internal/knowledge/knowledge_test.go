package knowledge

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/stats"
)

func TestQueryRanksTagHitsFirst(t *testing.T) {
	s := NewStore([]Entry{
		{ID: "a", Title: "Routing basics", Tags: []string{"swap"}, Body: "picking a route"},
		{ID: "b", Title: "Swap mechanics", Body: "how a swap executes on the router"},
		{ID: "c", Title: "Bridging", Tags: []string{"bridge"}, Body: "cross network transfers"},
	})

	got := s.Query("how does a swap work", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d: %v", len(got), got)
	}
	// b: title(2) + body(1) = 3 beats a: tag(3) = 3? tie breaks on id.
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestQueryDropsStopWordsAndShortWords(t *testing.T) {
	s := NewStore(Builtin())
	if got := s.Query("what does the and for", 5); len(got) != 0 {
		t.Fatalf("stop words alone should match nothing, got %v", got)
	}
}

func TestQueryLimitsResults(t *testing.T) {
	s := NewStore(Builtin())
	got := s.Query("token network transaction", 2)
	if len(got) > 2 {
		t.Fatalf("limit ignored: %d results", len(got))
	}
}

func TestBuiltinAnswersDomainQuestions(t *testing.T) {
	s := NewStore(Builtin())

	cases := map[string]string{
		"what is slippage on a swap":         "slippage",
		"why keep a gas buffer":              "gas-buffer",
		"when does a quote expire":           "quote-expiry",
		"do I need an approval for erc20":    "approvals",
		"how does lista liquid staking work": "liquid-staking",
		"supplying usdt to venus":            "venus-markets",
	}
	for q, wantID := range cases {
		got := s.Query(q, 1)
		if len(got) == 0 || got[0].ID != wantID {
			t.Fatalf("query %q: expected %s, got %v", q, wantID, got)
		}
	}
}

func TestLoadFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	entries := []Entry{{ID: "x", Title: "Extra", Tags: []string{"extra"}, Body: "local note"}}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(got) != 1 || got[0].ID != "x" {
		t.Fatalf("unexpected entries: %v", got)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestQueryToolReturnsScoredResults(t *testing.T) {
	p := NewPlugin(PluginConfig{Stats: stats.NewCollector(func() time.Time { return time.Unix(1_700_000_000, 0) })})
	tools := p.Tools()
	if len(tools) != 1 || tools[0].Name() != "query_knowledge" {
		t.Fatalf("unexpected tools: %v", tools)
	}

	out, err := tools[0].Execute(context.Background(),
		json.RawMessage(`{"question":"how do approvals work for erc20 tokens","limit":2}`), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var payload struct {
		Status  string `json:"status"`
		Count   int    `json:"count"`
		Results []struct {
			ID     string `json:"id"`
			Answer string `json:"answer"`
			Score  int    `json:"score"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("payload %q: %v", out, err)
	}
	if payload.Status != "success" || payload.Count == 0 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Results[0].ID != "approvals" || payload.Results[0].Answer == "" {
		t.Fatalf("unexpected top result: %+v", payload.Results[0])
	}
}

func TestQueryToolRejectsMissingQuestion(t *testing.T) {
	p := NewPlugin(PluginConfig{Stats: stats.NewCollector(time.Now)})
	out, err := p.Tools()[0].Execute(context.Background(), json.RawMessage(`{}`), nil)
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
}
