package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/cache"
	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	"github.com/tonyfindev/BinkOS-sub002/internal/httpx"
	"github.com/tonyfindev/BinkOS-sub002/internal/swap"
)

const (
	usdcMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	jupMint   = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
	solWallet = "4Nd1mYvR6JKGJ5NPrbP2tHuqtkBLRErNr8jUnHRnQEgr"
)

type fakeReader struct {
	tokens map[string]core.Token
}

func (r *fakeReader) TokenMetadata(ctx context.Context, network core.NetworkID, address string) (core.Token, error) {
	if tok, ok := r.tokens[strings.ToLower(address)]; ok {
		return tok, nil
	}
	return core.Token{}, fmt.Errorf("unknown token %s", address)
}

func (r *fakeReader) TokenBalance(ctx context.Context, network core.NetworkID, tokenAddr, owner string) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (r *fakeReader) NativeBalance(ctx context.Context, network core.NetworkID, owner string) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (r *fakeReader) Allowance(ctx context.Context, network core.NetworkID, tokenAddr, owner, spender string) (*big.Int, error) {
	return big.NewInt(0), nil
}

func testTokens(toks ...core.Token) *cache.TokenCache {
	m := map[string]core.Token{}
	for _, t := range toks {
		m[strings.ToLower(t.Address)] = t
	}
	return cache.NewTokenCache(&fakeReader{tokens: m}, cache.DefaultTokenTTL, time.Now)
}

func solParams(amount int64) swap.Params {
	return swap.Params{
		Network:     core.NetworkSolana,
		TokenIn:     usdcMint,
		TokenOut:    jupMint,
		Amount:      big.NewInt(amount),
		Mode:        swap.ModeInput,
		SlippageBps: 50,
		Wallet:      solWallet,
	}
}

func TestQuoteRejectsNonSolanaNetworks(t *testing.T) {
	c := New(httpx.New(2*time.Second, 0), testTokens(), "")
	p := solParams(1_000_000)
	p.Network = core.NetworkBNB
	if _, err := c.Quote(context.Background(), p); err == nil {
		t.Fatal("expected non-solana network error")
	}
}

func TestQuoteBuildsSerializedTransaction(t *testing.T) {
	rawTx := []byte("serialized solana transaction")
	mux := http.NewServeMux()
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Fatalf("expected x-api-key header, got %q", got)
		}
		q := r.URL.Query()
		if q.Get("inputMint") != usdcMint || q.Get("outputMint") != jupMint {
			t.Fatalf("unexpected mints: %v", q)
		}
		if q.Get("amount") != "2000000" || q.Get("slippageBps") != "50" {
			t.Fatalf("unexpected amount params: %v", q)
		}
		if q.Get("swapMode") != "ExactIn" {
			t.Fatalf("unexpected swap mode %q", q.Get("swapMode"))
		}
		_, _ = w.Write([]byte(`{
			"inAmount":"2000000",
			"outAmount":"1995000",
			"priceImpactPct":"0.13",
			"routePlan":[
				{"swapInfo":{"label":"Meteora"}},
				{"swapInfo":{"label":"Meteora"}},
				{"swapInfo":{"label":"Orca"}}
			]
		}`))
	})
	mux.HandleFunc("/swap", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Fatalf("expected x-api-key header on swap, got %q", got)
		}
		var body struct {
			QuoteResponse json.RawMessage `json:"quoteResponse"`
			UserPublicKey string          `json:"userPublicKey"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode swap body: %v", err)
		}
		if body.UserPublicKey != solWallet {
			t.Fatalf("unexpected user key %q", body.UserPublicKey)
		}
		if !strings.Contains(string(body.QuoteResponse), `"1995000"`) {
			t.Fatalf("quote not echoed back: %s", body.QuoteResponse)
		}
		_, _ = fmt.Fprintf(w, `{"swapTransaction":%q}`, base64.StdEncoding.EncodeToString(rawTx))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), testTokens(
		core.Token{Address: usdcMint, Symbol: "USDC", Decimals: 6},
		core.Token{Address: jupMint, Symbol: "JUP", Decimals: 6},
	), "test-key")
	c.baseURL = srv.URL
	issued := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return issued }

	got, err := c.Quote(context.Background(), solParams(2_000_000))
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if got.Provider != "jupiter" || got.Network != core.NetworkSolana {
		t.Fatalf("unexpected meta: %+v", got.Meta)
	}
	if got.AmountOut.Cmp(big.NewInt(1_995_000)) != 0 {
		t.Fatalf("unexpected amount out: %s", got.AmountOut)
	}
	if got.PriceImpactBps != 13 {
		t.Fatalf("unexpected price impact: %d", got.PriceImpactBps)
	}
	if len(got.Route) != 2 || got.Route[0] != "Meteora" || got.Route[1] != "Orca" {
		t.Fatalf("unexpected route: %v", got.Route)
	}
	if !bytes.Equal(got.Tx.Data, rawTx) {
		t.Fatalf("unexpected tx data: %q", got.Tx.Data)
	}
	if got.Tx.To != "" || got.Spender != "" {
		t.Fatalf("solana quotes carry no contract target or spender: %+v", got)
	}
	if got.ExpiresAt.Sub(got.IssuedAt) != swap.DefaultQuoteTTL {
		t.Fatalf("unexpected ttl: %s", got.ExpiresAt.Sub(got.IssuedAt))
	}
}

func TestQuoteExactOutputUsesQuotedInput(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("swapMode"); got != "ExactOut" {
			t.Fatalf("unexpected swap mode %q", got)
		}
		_, _ = w.Write([]byte(`{"inAmount":"2010000","outAmount":"2000000","priceImpactPct":"0.02","routePlan":[]}`))
	})
	mux.HandleFunc("/swap", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"swapTransaction":%q}`, base64.StdEncoding.EncodeToString([]byte{0x01}))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), testTokens(
		core.Token{Address: usdcMint, Symbol: "USDC", Decimals: 6},
		core.Token{Address: jupMint, Symbol: "JUP", Decimals: 6},
	), "")
	c.baseURL = srv.URL

	p := solParams(2_000_000)
	p.Mode = swap.ModeOutput
	got, err := c.Quote(context.Background(), p)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if got.AmountIn.Cmp(big.NewInt(2_010_000)) != 0 {
		t.Fatalf("unexpected amount in: %s", got.AmountIn)
	}
	if len(got.Route) != 0 {
		t.Fatalf("unexpected route: %v", got.Route)
	}
}

func TestQuoteMissingOutputAmount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"routePlan":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), testTokens(
		core.Token{Address: usdcMint, Symbol: "USDC", Decimals: 6},
		core.Token{Address: jupMint, Symbol: "JUP", Decimals: 6},
	), "")
	c.baseURL = srv.URL

	if _, err := c.Quote(context.Background(), solParams(1_000_000)); err == nil {
		t.Fatal("expected structural error for missing output amount")
	}
}
