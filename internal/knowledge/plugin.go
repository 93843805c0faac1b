package knowledge

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/logging"
	"github.com/tonyfindev/BinkOS-sub002/internal/schema"
	"github.com/tonyfindev/BinkOS-sub002/internal/stats"
	"github.com/tonyfindev/BinkOS-sub002/internal/tool"
)

type PluginConfig struct {
	// Store defaults to the builtin entries when nil.
	Store *Store
	Stats *stats.Collector
}

type Plugin struct {
	queryTool *queryTool
}

func NewPlugin(cfg PluginConfig) *Plugin {
	if cfg.Store == nil {
		cfg.Store = NewStore(Builtin())
	}
	return &Plugin{queryTool: &queryTool{
		store: cfg.Store,
		stats: cfg.Stats,
		log:   logging.Named("knowledge.query"),
	}}
}

func (p *Plugin) Name() string { return "knowledge" }

func (p *Plugin) Tools() []tool.Tool { return []tool.Tool{p.queryTool} }

type queryTool struct {
	store *Store
	stats *stats.Collector
	log   *slog.Logger
}

func (t *queryTool) Name() string { return "query_knowledge" }

func (t *queryTool) Description() string {
	return "Answer questions about the supported protocols and mechanics from the builtin knowledge base."
}

func (t *queryTool) Schema() schema.Object {
	o := schema.NewObject()
	o.Properties["question"] = schema.Property{
		Type:        "string",
		Description: "The question to look up",
	}
	o.Properties["limit"] = schema.Property{
		Type:        "integer",
		Description: "Maximum matches to return; defaults to 3",
	}
	o.Required = []string{"question"}
	return o
}

type queryArgs struct {
	Question string `json:"question"`
	Limit    int    `json:"limit"`
}

func (t *queryTool) Execute(ctx context.Context, raw json.RawMessage, report tool.ProgressFunc) (string, error) {
	report = tool.EnsureProgress(report)
	start := time.Now()
	payload, err := t.run(raw, report)
	t.stats.RecordInvocation(t.Name(), time.Since(start), err != nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		t.log.Warn("knowledge query failed", slog.String("error", err.Error()))
		return tool.ErrorFrom(err), nil
	}
	return payload, nil
}

func (t *queryTool) run(raw json.RawMessage, report tool.ProgressFunc) (string, error) {
	var args queryArgs
	if err := tool.Decode(t.Schema(), raw, &args); err != nil {
		return "", err
	}

	report(50, "searching knowledge base")
	matches := t.store.Query(args.Question, args.Limit)
	report(100, "search complete")

	results := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		results = append(results, map[string]any{
			"id":     m.ID,
			"title":  m.Title,
			"answer": m.Body,
			"tags":   m.Tags,
			"score":  m.Score,
		})
	}
	fields := map[string]any{
		"type":    "knowledge",
		"count":   len(results),
		"results": results,
	}
	if len(results) == 0 {
		fields["message"] = "no knowledge entries matched the question"
	}
	return tool.Success(fields), nil
}
