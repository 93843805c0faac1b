package pancakeswap

import (
	"context"
	"encoding/hex"
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

const defaultBaseURL = "https://routing-api.pancakeswap.com/v1"

// Client quotes BNB Chain swaps through the PancakeSwap routing API. The
// route from the quote call is echoed back to the swap call, which returns
// the ready-to-sign router transaction.
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

func (c *Client) Name() string { return "pancakeswap" }

func (c *Client) Networks() []core.NetworkID {
	return []core.NetworkID{core.NetworkBNB}
}

type quoteResponse struct {
	AmountIn    string          `json:"amountIn"`
	AmountOut   string          `json:"amountOut"`
	PriceImpact string          `json:"priceImpact"`
	Route       json.RawMessage `json:"route"`
}

type swapTxResponse struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
	Gas   uint64 `json:"gas"`
}

func (c *Client) Quote(ctx context.Context, p swap.Params) (*swap.Quote, error) {
	if p.Network != core.NetworkBNB {
		return nil, binkerr.Newf(binkerr.CodeNetworkUnsupported,
			"pancakeswap only quotes swaps on bnb, not %s", p.Network)
	}
	chainID, err := core.EVMChainID(p.Network)
	if err != nil {
		return nil, err
	}

	tokenIn, err := c.tokens.Token(ctx, p.Network, p.TokenIn)
	if err != nil {
		return nil, err
	}
	tokenOut, err := c.tokens.Token(ctx, p.Network, p.TokenOut)
	if err != nil {
		return nil, err
	}

	tradeType := "exactIn"
	if p.Mode == swap.ModeOutput {
		tradeType = "exactOut"
	}

	vals := url.Values{}
	vals.Set("chainId", chainID.String())
	vals.Set("tokenIn", p.TokenIn)
	vals.Set("tokenOut", p.TokenOut)
	vals.Set("amount", p.Amount.String())
	vals.Set("tradeType", tradeType)

	endpoint := fmt.Sprintf("%s/quote?%s", strings.TrimRight(c.baseURL, "/"), vals.Encode())
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeInternal, "build pancakeswap quote request", err)
	}

	var q quoteResponse
	if _, err := c.http.DoJSON(ctx, hReq, &q); err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.AmountOut) == "" {
		return nil, binkerr.New(binkerr.CodeUnavailable, "pancakeswap quote missing output amount")
	}
	if len(q.Route) == 0 {
		return nil, binkerr.New(binkerr.CodeUnavailable, "pancakeswap quote missing route")
	}
	amountIn, err := parseAmount(q.AmountIn)
	if err != nil {
		return nil, err
	}
	amountOut, err := parseAmount(q.AmountOut)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"route":       q.Route,
		"recipient":   p.Wallet,
		"slippageBps": p.SlippageBps,
	})
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeInternal, "encode pancakeswap swap request", err)
	}
	var tx swapTxResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost,
		strings.TrimRight(c.baseURL, "/")+"/swap", body, nil, &tx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(tx.To) == "" {
		return nil, binkerr.New(binkerr.CodeUnavailable, "pancakeswap swap missing router address")
	}
	data, err := decodeCalldata(tx.Data)
	if err != nil {
		return nil, err
	}
	value := new(big.Int)
	if strings.TrimSpace(tx.Value) != "" {
		if value, err = parseAmount(tx.Value); err != nil {
			return nil, err
		}
	}

	meta := quotes.NewMeta(c.Name(), p.Network, p.Wallet, c.now(), c.quoteTTL)
	meta.Tx = core.Transaction{
		Network:  p.Network,
		To:       core.NormalizeAddress(p.Network, tx.To),
		Data:     data,
		Value:    value,
		GasLimit: tx.Gas,
	}

	return &swap.Quote{
		Meta:           meta,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       amountIn,
		AmountOut:      amountOut,
		Mode:           p.Mode,
		SlippageBps:    p.SlippageBps,
		PriceImpactBps: impactBps(q.PriceImpact),
		EstimatedGas:   tx.Gas,
		Spender:        meta.Tx.To,
	}, nil
}

func parseAmount(v string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
	if !ok || n.Sign() < 0 {
		return nil, binkerr.Newf(binkerr.CodeUnavailable, "pancakeswap returned unparseable amount %q", v)
	}
	return n, nil
}

func decodeCalldata(v string) ([]byte, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "0x")
	if v == "" {
		return nil, binkerr.New(binkerr.CodeUnavailable, "pancakeswap swap missing calldata")
	}
	data, err := hex.DecodeString(v)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "decode pancakeswap calldata", err)
	}
	return data, nil
}

func impactBps(v string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(f * 100)
}
