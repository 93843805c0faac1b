package debridge

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/bridge"
	"github.com/tonyfindev/BinkOS-sub002/internal/cache"
	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/httpx"
	"github.com/tonyfindev/BinkOS-sub002/internal/quotes"
)

const defaultBaseURL = "https://dln.debridge.finance/v1.0"

// deBridge native markers differ from ours: EVM chains use the zero address,
// Solana the system program id.
const (
	evmNativeMarker    = "0x0000000000000000000000000000000000000000"
	solanaNativeMarker = "11111111111111111111111111111111"
)

// chainIDs maps network ids onto deBridge's internal chain identifiers.
var chainIDs = map[core.NetworkID]int64{
	core.NetworkBNB:      56,
	core.NetworkEthereum: 1,
	core.NetworkSolana:   7565164,
}

// Client routes cross-network transfers through the deBridge DLN order API.
// One call estimates the delivery and returns the source-side transaction.
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
		quoteTTL: bridge.DefaultQuoteTTL,
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

func (c *Client) Name() string { return "debridge" }

// Networks lists the source networks orders can leave from.
func (c *Client) Networks() []core.NetworkID {
	return []core.NetworkID{core.NetworkBNB, core.NetworkEthereum, core.NetworkSolana}
}

type createTxResponse struct {
	Estimation struct {
		SrcChainTokenIn struct {
			Amount string `json:"amount"`
		} `json:"srcChainTokenIn"`
		DstChainTokenOut struct {
			Amount string `json:"amount"`
		} `json:"dstChainTokenOut"`
	} `json:"estimation"`
	Tx struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
	} `json:"tx"`
}

func (c *Client) Quote(ctx context.Context, p bridge.Params) (*bridge.Quote, error) {
	srcChain, ok := chainIDs[p.FromNetwork]
	if !ok {
		return nil, binkerr.Newf(binkerr.CodeNetworkUnsupported,
			"debridge does not serve %s", p.FromNetwork)
	}
	dstChain, ok := chainIDs[p.ToNetwork]
	if !ok {
		return nil, binkerr.Newf(binkerr.CodeNetworkUnsupported,
			"debridge does not serve %s", p.ToNetwork)
	}

	tokenIn, err := c.tokens.Token(ctx, p.FromNetwork, p.TokenIn)
	if err != nil {
		return nil, err
	}
	tokenOut, err := c.tokens.Token(ctx, p.ToNetwork, p.TokenOut)
	if err != nil {
		return nil, err
	}

	vals := url.Values{}
	vals.Set("srcChainId", strconv.FormatInt(srcChain, 10))
	vals.Set("srcChainTokenIn", translateNative(p.FromNetwork, p.TokenIn))
	vals.Set("srcChainTokenInAmount", p.Amount.String())
	vals.Set("dstChainId", strconv.FormatInt(dstChain, 10))
	vals.Set("dstChainTokenOut", translateNative(p.ToNetwork, p.TokenOut))
	vals.Set("dstChainTokenOutAmount", "auto")
	vals.Set("dstChainTokenOutRecipient", p.Recipient)
	vals.Set("senderAddress", p.Wallet)

	endpoint := fmt.Sprintf("%s/dln/order/create-tx?%s",
		strings.TrimRight(c.baseURL, "/"), vals.Encode())
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeInternal, "build debridge order request", err)
	}

	var resp createTxResponse
	if _, err := c.http.DoJSON(ctx, hReq, &resp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Estimation.DstChainTokenOut.Amount) == "" {
		return nil, binkerr.New(binkerr.CodeUnavailable, "debridge estimate missing output amount")
	}
	if strings.TrimSpace(resp.Tx.To) == "" && p.FromNetwork != core.NetworkSolana {
		return nil, binkerr.New(binkerr.CodeUnavailable, "debridge response missing transaction target")
	}
	amountIn, err := parseAmount(resp.Estimation.SrcChainTokenIn.Amount)
	if err != nil {
		return nil, err
	}
	amountOut, err := parseAmount(resp.Estimation.DstChainTokenOut.Amount)
	if err != nil {
		return nil, err
	}
	data, err := decodeCalldata(resp.Tx.Data)
	if err != nil {
		return nil, err
	}
	value := new(big.Int)
	if strings.TrimSpace(resp.Tx.Value) != "" {
		if value, err = parseAmount(resp.Tx.Value); err != nil {
			return nil, err
		}
	}

	meta := quotes.NewMeta(c.Name(), p.FromNetwork, p.Wallet, c.now(), c.quoteTTL)
	meta.Tx = core.Transaction{
		Network: p.FromNetwork,
		To:      core.NormalizeAddress(p.FromNetwork, resp.Tx.To),
		Data:    data,
		Value:   value,
	}

	q := &bridge.Quote{
		Meta:      meta,
		ToNetwork: p.ToNetwork,
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Recipient: p.Recipient,
	}
	// Solana orders are prebuilt transactions with nothing to approve.
	if p.FromNetwork != core.NetworkSolana {
		q.Spender = meta.Tx.To
	}
	return q, nil
}

func translateNative(network core.NetworkID, token string) string {
	if !core.IsNativeAddress(network, token) {
		return token
	}
	if network == core.NetworkSolana {
		return solanaNativeMarker
	}
	return evmNativeMarker
}

func parseAmount(v string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
	if !ok || n.Sign() < 0 {
		return nil, binkerr.Newf(binkerr.CodeUnavailable, "debridge returned unparseable amount %q", v)
	}
	return n, nil
}

func decodeCalldata(v string) ([]byte, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "0x")
	if v == "" {
		return nil, binkerr.New(binkerr.CodeUnavailable, "debridge response missing transaction data")
	}
	data, err := hex.DecodeString(v)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "decode debridge transaction data", err)
	}
	return data, nil
}
