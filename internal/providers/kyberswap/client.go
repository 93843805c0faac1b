package kyberswap

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
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
	defaultBaseURL = "https://aggregator-api.kyberswap.com"
	clientID       = "binkd"
)

// chainSlugs maps network ids onto KyberSwap's path segments.
var chainSlugs = map[core.NetworkID]string{
	core.NetworkBNB:      "bsc",
	core.NetworkEthereum: "ethereum",
}

// Client quotes EVM swaps through the KyberSwap aggregator: a routes call
// finds the best path, a build call turns the winning routeSummary into
// router calldata. KyberSwap only prices exact-input trades.
type Client struct {
	http     *httpx.Client
	tokens   *cache.TokenCache
	baseURL  string
	quoteTTL time.Duration
	now      func() time.Time
}

func New(httpClient *httpx.Client, tokens *cache.TokenCache) *Client {
	return &Client{
		http:     httpClient,
		tokens:   tokens,
		baseURL:  defaultBaseURL,
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

func (c *Client) Name() string { return "kyberswap" }

func (c *Client) Networks() []core.NetworkID {
	return []core.NetworkID{core.NetworkBNB, core.NetworkEthereum}
}

type routesResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		RouteSummary  json.RawMessage `json:"routeSummary"`
		RouterAddress string          `json:"routerAddress"`
	} `json:"data"`
}

type summaryFields struct {
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
}

type buildResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Data      string `json:"data"`
		AmountOut string `json:"amountOut"`
		Gas       string `json:"gas"`
	} `json:"data"`
}

func (c *Client) Quote(ctx context.Context, p swap.Params) (*swap.Quote, error) {
	slug, ok := chainSlugs[p.Network]
	if !ok {
		return nil, binkerr.Newf(binkerr.CodeNetworkUnsupported,
			"kyberswap does not serve %s (supported: bnb, ethereum)", p.Network)
	}
	if p.Mode == swap.ModeOutput {
		return nil, binkerr.New(binkerr.CodeProviderUnsupported,
			"kyberswap does not support exact-output swaps")
	}

	tokenIn, err := c.tokens.Token(ctx, p.Network, p.TokenIn)
	if err != nil {
		return nil, err
	}
	tokenOut, err := c.tokens.Token(ctx, p.Network, p.TokenOut)
	if err != nil {
		return nil, err
	}

	vals := url.Values{}
	vals.Set("tokenIn", p.TokenIn)
	vals.Set("tokenOut", p.TokenOut)
	vals.Set("amountIn", p.Amount.String())

	endpoint := fmt.Sprintf("%s/%s/api/v1/routes?%s",
		strings.TrimRight(c.baseURL, "/"), slug, vals.Encode())
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeInternal, "build kyberswap routes request", err)
	}
	hReq.Header.Set("x-client-id", clientID)

	var routes routesResponse
	if _, err := c.http.DoJSON(ctx, hReq, &routes); err != nil {
		return nil, err
	}
	if routes.Code != 0 {
		return nil, binkerr.Newf(binkerr.CodeUnavailable, "kyberswap routes error: %s", routes.Message)
	}
	if len(routes.Data.RouteSummary) == 0 || strings.TrimSpace(routes.Data.RouterAddress) == "" {
		return nil, binkerr.New(binkerr.CodeUnavailable, "kyberswap quote missing route summary")
	}
	var summary summaryFields
	if err := json.Unmarshal(routes.Data.RouteSummary, &summary); err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "decode kyberswap route summary", err)
	}
	amountIn, err := parseAmount(summary.AmountIn)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"routeSummary":      routes.Data.RouteSummary,
		"sender":            p.Wallet,
		"recipient":         p.Wallet,
		"slippageTolerance": p.SlippageBps,
	})
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeInternal, "encode kyberswap build request", err)
	}
	buildURL := fmt.Sprintf("%s/%s/api/v1/route/build", strings.TrimRight(c.baseURL, "/"), slug)
	var build buildResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, buildURL, body,
		map[string]string{"x-client-id": clientID}, &build); err != nil {
		return nil, err
	}
	if build.Code != 0 {
		return nil, binkerr.Newf(binkerr.CodeUnavailable, "kyberswap build error: %s", build.Message)
	}
	data, err := decodeCalldata(build.Data.Data)
	if err != nil {
		return nil, err
	}
	amountOut, err := parseAmount(build.Data.AmountOut)
	if err != nil {
		return nil, err
	}

	// The router only takes msg.value when the sold token is the gas currency.
	value := new(big.Int)
	if core.IsNativeAddress(p.Network, p.TokenIn) {
		value.Set(amountIn)
	}

	meta := quotes.NewMeta(c.Name(), p.Network, p.Wallet, c.now(), c.quoteTTL)
	meta.Tx = core.Transaction{
		Network:  p.Network,
		To:       core.NormalizeAddress(p.Network, routes.Data.RouterAddress),
		Data:     data,
		Value:    value,
		GasLimit: parseGas(build.Data.Gas),
	}

	return &swap.Quote{
		Meta:         meta,
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		AmountIn:     amountIn,
		AmountOut:    amountOut,
		Mode:         p.Mode,
		SlippageBps:  p.SlippageBps,
		EstimatedGas: parseGas(build.Data.Gas),
		Spender:      meta.Tx.To,
	}, nil
}

func parseAmount(v string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
	if !ok || n.Sign() < 0 {
		return nil, binkerr.Newf(binkerr.CodeUnavailable, "kyberswap returned unparseable amount %q", v)
	}
	return n, nil
}

func parseGas(v string) uint64 {
	n, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
	if !ok || n.Sign() < 0 || !n.IsUint64() {
		return 0
	}
	return n.Uint64()
}

func decodeCalldata(v string) ([]byte, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "0x")
	if v == "" {
		return nil, binkerr.New(binkerr.CodeUnavailable, "kyberswap build missing calldata")
	}
	data, err := hex.DecodeString(v)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "decode kyberswap calldata", err)
	}
	return data, nil
}
