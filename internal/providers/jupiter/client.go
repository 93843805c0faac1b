package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/cache"
	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/httpx"
	"github.com/tonyfindev/BinkOS-sub002/internal/quotes"
	"github.com/tonyfindev/BinkOS-sub002/internal/swap"
)

const (
	defaultLiteBase = "https://lite-api.jup.ag/swap/v1"
	defaultProBase  = "https://api.jup.ag/swap/v1"
)

// Client quotes Solana swaps through the Jupiter aggregator. The aggregator
// returns a fully serialized transaction, so Tx.Data carries the whole thing
// and Tx.To stays empty.
type Client struct {
	http     *httpx.Client
	tokens   *cache.TokenCache
	baseURL  string
	apiKey   string
	quoteTTL time.Duration
	now      func() time.Time
}

func New(httpClient *httpx.Client, tokens *cache.TokenCache, apiKey string) *Client {
	apiKey = strings.TrimSpace(apiKey)
	baseURL := defaultLiteBase
	if apiKey != "" {
		baseURL = defaultProBase
	}
	return &Client{
		http:     httpClient,
		tokens:   tokens,
		baseURL:  baseURL,
		apiKey:   apiKey,
		quoteTTL: swap.DefaultQuoteTTL,
		now:      time.Now,
	}
}

// SetBaseURL points the client at a different API host.
func (c *Client) SetBaseURL(u string) {
	if u != "" {
		c.baseURL = u
	}
}

// SetQuoteTTL overrides how long issued quotes stay consumable.
func (c *Client) SetQuoteTTL(d time.Duration) {
	if d > 0 {
		c.quoteTTL = d
	}
}

func (c *Client) Name() string { return "jupiter" }

func (c *Client) Networks() []core.NetworkID {
	return []core.NetworkID{core.NetworkSolana}
}

type quoteFields struct {
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	RoutePlan      []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

func (c *Client) Quote(ctx context.Context, p swap.Params) (*swap.Quote, error) {
	if p.Network != core.NetworkSolana {
		return nil, binkerr.Newf(binkerr.CodeNetworkUnsupported,
			"jupiter only quotes swaps on solana, not %s", p.Network)
	}

	tokenIn, err := c.tokens.Token(ctx, p.Network, p.TokenIn)
	if err != nil {
		return nil, err
	}
	tokenOut, err := c.tokens.Token(ctx, p.Network, p.TokenOut)
	if err != nil {
		return nil, err
	}

	swapMode := "ExactIn"
	if p.Mode == swap.ModeOutput {
		swapMode = "ExactOut"
	}

	vals := url.Values{}
	vals.Set("inputMint", p.TokenIn)
	vals.Set("outputMint", p.TokenOut)
	vals.Set("amount", p.Amount.String())
	vals.Set("slippageBps", strconv.FormatInt(p.SlippageBps, 10))
	vals.Set("swapMode", swapMode)

	endpoint := fmt.Sprintf("%s/quote?%s", strings.TrimRight(c.baseURL, "/"), vals.Encode())
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeInternal, "build jupiter quote request", err)
	}
	if c.apiKey != "" {
		hReq.Header.Set("x-api-key", c.apiKey)
	}

	// The swap endpoint wants the quote echoed back verbatim, so keep the raw
	// bytes and decode the fields we need from them.
	var rawQuote json.RawMessage
	if _, err := c.http.DoJSON(ctx, hReq, &rawQuote); err != nil {
		return nil, err
	}
	var q quoteFields
	if err := json.Unmarshal(rawQuote, &q); err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "decode jupiter quote", err)
	}
	if strings.TrimSpace(q.OutAmount) == "" {
		return nil, binkerr.New(binkerr.CodeUnavailable, "jupiter quote missing output amount")
	}
	amountIn, err := parseAmount("jupiter", q.InAmount)
	if err != nil {
		return nil, err
	}
	amountOut, err := parseAmount("jupiter", q.OutAmount)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"quoteResponse": rawQuote,
		"userPublicKey": p.Wallet,
	})
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeInternal, "encode jupiter swap request", err)
	}
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["x-api-key"] = c.apiKey
	}
	var sw swapResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost,
		strings.TrimRight(c.baseURL, "/")+"/swap", body, headers, &sw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sw.SwapTransaction) == "" {
		return nil, binkerr.New(binkerr.CodeUnavailable, "jupiter swap missing transaction")
	}
	txData, err := base64.StdEncoding.DecodeString(sw.SwapTransaction)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "decode jupiter swap transaction", err)
	}

	meta := quotes.NewMeta(c.Name(), p.Network, p.Wallet, c.now(), c.quoteTTL)
	meta.Tx = core.Transaction{Network: p.Network, Data: txData}

	return &swap.Quote{
		Meta:           meta,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       amountIn,
		AmountOut:      amountOut,
		Mode:           p.Mode,
		SlippageBps:    p.SlippageBps,
		PriceImpactBps: impactBps(q.PriceImpactPct),
		Route:          routeFromPlan(q),
	}, nil
}

func parseAmount(provider, v string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
	if !ok || n.Sign() < 0 {
		return nil, binkerr.Newf(binkerr.CodeUnavailable, "%s returned unparseable amount %q", provider, v)
	}
	return n, nil
}

func impactBps(v string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(f * 100)
}

// routeFromPlan flattens the hop labels, collapsing consecutive duplicates.
func routeFromPlan(q quoteFields) []string {
	var parts []string
	for _, hop := range q.RoutePlan {
		label := strings.TrimSpace(hop.SwapInfo.Label)
		if label == "" {
			continue
		}
		if len(parts) == 0 || parts[len(parts)-1] != label {
			parts = append(parts, label)
		}
	}
	return parts
}
