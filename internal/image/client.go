// Package image wraps a hosted image-generation API behind one tool, so the
// agent can illustrate answers without holding any rendering code itself.
package image

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/httpx"
)

const DefaultModel = "stable-diffusion-xl"

type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	model   string
}

func NewClient(httpClient *httpx.Client, baseURL, apiKey, model string) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
	}
}

// Image is one generated candidate: hosted URL or inline base64, whichever
// the API returned.
type Image struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
}

type generateResponse struct {
	Data []Image `json:"data"`
}

func (c *Client) Generate(ctx context.Context, prompt, size string) (Image, error) {
	body, err := json.Marshal(map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"size":   size,
		"n":      1,
	})
	if err != nil {
		return Image{}, binkerr.Wrap(binkerr.CodeInternal, "encode image request", err)
	}
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	var resp generateResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost,
		c.baseURL+"/images/generations", body, headers, &resp); err != nil {
		return Image{}, err
	}
	if len(resp.Data) == 0 {
		return Image{}, binkerr.New(binkerr.CodeUnavailable, "image api returned no candidates")
	}
	img := resp.Data[0]
	if img.URL == "" && img.B64JSON == "" {
		return Image{}, binkerr.New(binkerr.CodeUnavailable, "image api returned an empty candidate")
	}
	return img, nil
}
