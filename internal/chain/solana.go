package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"

	ethmath "github.com/ethereum/go-ethereum/common/math"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/httpx"
)

// SolanaReader reads balances and mint metadata over Solana JSON-RPC. It goes
// through the shared retrying HTTP client instead of a dedicated SDK; the
// three calls it needs are plain POSTs.
type SolanaReader struct {
	http *httpx.Client
	url  string
}

func NewSolanaReader(client *httpx.Client, rpcOverride string) *SolanaReader {
	url, _ := ResolveRPCURL(rpcOverride, core.NetworkSolana)
	return &SolanaReader{http: client, url: url}
}

type solanaRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type solanaRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *solanaRPCError `json:"error"`
}

func (r *SolanaReader) rpc(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return binkerr.Wrap(binkerr.CodeInternal, "encode rpc request", err)
	}

	var resp solanaRPCResponse
	if _, err := httpx.DoBodyJSON(ctx, r.http, http.MethodPost, r.url, body, nil, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return binkerr.Newf(binkerr.CodeUnavailable, "solana rpc %s failed: %s (code %d)",
			method, resp.Error.Message, resp.Error.Code)
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return binkerr.Wrap(binkerr.CodeUnavailable, "decode solana rpc result", err)
	}
	return nil
}

func (r *SolanaReader) requireSolana(network core.NetworkID) error {
	n, err := core.NetworkByID(network)
	if err != nil {
		return err
	}
	if !n.IsSolana() {
		return binkerr.Newf(binkerr.CodeNetworkUnsupported, "solana reader cannot serve %s", network)
	}
	return nil
}

func (r *SolanaReader) TokenMetadata(ctx context.Context, network core.NetworkID, address string) (core.Token, error) {
	if err := r.requireSolana(network); err != nil {
		return core.Token{}, err
	}
	if core.IsNativeAddress(network, address) {
		return core.NativeToken(network)
	}
	if err := core.ValidateAddress(network, address); err != nil {
		return core.Token{}, err
	}

	var supply struct {
		Value struct {
			Decimals uint8 `json:"decimals"`
		} `json:"value"`
	}
	if err := r.rpc(ctx, "getTokenSupply", []any{address}, &supply); err != nil {
		return core.Token{}, err
	}

	symbol := "SPL"
	if known, ok := core.LookupByAddress(network, address); ok {
		symbol = known.Symbol
	}
	return core.Token{Address: address, Symbol: symbol, Decimals: supply.Value.Decimals}, nil
}

func (r *SolanaReader) TokenBalance(ctx context.Context, network core.NetworkID, tokenAddr, owner string) (*big.Int, error) {
	if err := r.requireSolana(network); err != nil {
		return nil, err
	}
	if core.IsNativeAddress(network, tokenAddr) {
		return r.NativeBalance(ctx, network, owner)
	}
	if err := core.ValidateAddress(network, owner); err != nil {
		return nil, err
	}

	var accounts struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								Amount string `json:"amount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	params := []any{
		owner,
		map[string]string{"mint": tokenAddr},
		map[string]string{"encoding": "jsonParsed"},
	}
	if err := r.rpc(ctx, "getTokenAccountsByOwner", params, &accounts); err != nil {
		return nil, err
	}

	// An owner can hold the same mint across several token accounts.
	total := new(big.Int)
	for _, acct := range accounts.Value {
		amount, ok := new(big.Int).SetString(acct.Account.Data.Parsed.Info.TokenAmount.Amount, 10)
		if !ok {
			return nil, binkerr.Newf(binkerr.CodeUnavailable,
				"malformed token amount %q from rpc", acct.Account.Data.Parsed.Info.TokenAmount.Amount)
		}
		total.Add(total, amount)
	}
	return total, nil
}

func (r *SolanaReader) NativeBalance(ctx context.Context, network core.NetworkID, owner string) (*big.Int, error) {
	if err := r.requireSolana(network); err != nil {
		return nil, err
	}
	if err := core.ValidateAddress(network, owner); err != nil {
		return nil, err
	}
	var balance struct {
		Value uint64 `json:"value"`
	}
	if err := r.rpc(ctx, "getBalance", []any{owner}, &balance); err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(balance.Value), nil
}

// Allowance is unlimited on Solana: SPL transfers are signed directly, no
// ERC-20 style approval exists.
func (r *SolanaReader) Allowance(ctx context.Context, network core.NetworkID, tokenAddr, owner, spender string) (*big.Int, error) {
	if err := r.requireSolana(network); err != nil {
		return nil, err
	}
	return new(big.Int).Set(ethmath.MaxBig256), nil
}
