package image

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/logging"
	"github.com/tonyfindev/BinkOS-sub002/internal/schema"
	"github.com/tonyfindev/BinkOS-sub002/internal/stats"
	"github.com/tonyfindev/BinkOS-sub002/internal/tool"
)

var sizes = []string{"512x512", "768x768", "1024x1024"}

const defaultSize = "1024x1024"

type PluginConfig struct {
	// Client may be nil when no image API is configured; the tool then
	// reports that instead of failing silently.
	Client *Client
	Stats  *stats.Collector
}

type Plugin struct {
	generateTool *generateTool
}

func NewPlugin(cfg PluginConfig) *Plugin {
	return &Plugin{generateTool: &generateTool{
		client: cfg.Client,
		stats:  cfg.Stats,
		log:    logging.Named("image.generate"),
	}}
}

func (p *Plugin) Name() string { return "image" }

func (p *Plugin) Tools() []tool.Tool { return []tool.Tool{p.generateTool} }

type generateTool struct {
	client *Client
	stats  *stats.Collector
	log    *slog.Logger
}

func (t *generateTool) Name() string { return "generate_image" }

func (t *generateTool) Description() string {
	return "Generate an image from a text prompt through the configured image API."
}

func (t *generateTool) Schema() schema.Object {
	o := schema.NewObject()
	o.Properties["prompt"] = schema.Property{
		Type:        "string",
		Description: "What to draw",
	}
	o.Properties["size"] = schema.Property{
		Type:        "string",
		Description: "Output resolution; defaults to 1024x1024",
		Enum:        sizes,
	}
	o.Required = []string{"prompt"}
	return o
}

type generateArgs struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
}

func (t *generateTool) Execute(ctx context.Context, raw json.RawMessage, report tool.ProgressFunc) (string, error) {
	report = tool.EnsureProgress(report)
	start := time.Now()
	payload, err := t.run(ctx, raw, report)
	t.stats.RecordInvocation(t.Name(), time.Since(start), err != nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		t.log.Warn("image generation failed", slog.String("error", err.Error()))
		return tool.ErrorFrom(err), nil
	}
	return payload, nil
}

func (t *generateTool) run(ctx context.Context, raw json.RawMessage, report tool.ProgressFunc) (string, error) {
	var args generateArgs
	if err := tool.Decode(t.Schema(), raw, &args); err != nil {
		return "", err
	}
	if t.client == nil {
		return "", binkerr.New(binkerr.CodeUnavailable,
			"image generation is not configured (set providers.image.base_url)")
	}
	size := strings.TrimSpace(args.Size)
	if size == "" {
		size = defaultSize
	}

	report(20, "requesting image")
	img, err := t.client.Generate(ctx, strings.TrimSpace(args.Prompt), size)
	if err != nil {
		return "", err
	}
	report(100, "image ready")

	fields := map[string]any{
		"type":   "image",
		"prompt": strings.TrimSpace(args.Prompt),
		"size":   size,
	}
	if img.URL != "" {
		fields["url"] = img.URL
	} else {
		fields["b64"] = img.B64JSON
	}
	return tool.Success(fields), nil
}
