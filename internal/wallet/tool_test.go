package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/cache"
	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	"github.com/tonyfindev/BinkOS-sub002/internal/provider"
	"github.com/tonyfindev/BinkOS-sub002/internal/stats"
)

const (
	testWallet = "0x1111111111111111111111111111111111111111"
	solWallet  = "4Nd1mYvR6JKGJ5NPrbP2tHuqtkBLRErNr8jUnHRnQEgr"
	testUSDT   = "0x55d398326f99059ff775485246999027b3197955"
	testCAKE   = "0x0e09fabb73bd3ade0a17ecc321fd13a19e81ce82"
	solUSDC    = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type fakeReader struct {
	mu       sync.Mutex
	tokens   map[string]core.Token
	balances map[string]*big.Int
}

func newFakeReader() *fakeReader {
	return &fakeReader{tokens: map[string]core.Token{}, balances: map[string]*big.Int{}}
}

func key(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return strings.Join(parts, "|")
}

func (r *fakeReader) setToken(tok core.Token) {
	r.mu.Lock()
	r.tokens[strings.ToLower(tok.Address)] = tok
	r.mu.Unlock()
}

func (r *fakeReader) setBalance(token, owner string, v *big.Int) {
	r.mu.Lock()
	r.balances[key(token, owner)] = v
	r.mu.Unlock()
}

func (r *fakeReader) TokenMetadata(ctx context.Context, network core.NetworkID, address string) (core.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[strings.ToLower(address)]
	if !ok {
		return core.Token{}, fmt.Errorf("unknown token %s", address)
	}
	return tok, nil
}

func (r *fakeReader) TokenBalance(ctx context.Context, network core.NetworkID, tokenAddr, owner string) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.balances[key(tokenAddr, owner)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (r *fakeReader) NativeBalance(ctx context.Context, network core.NetworkID, owner string) (*big.Int, error) {
	native, err := core.NativeToken(network)
	if err != nil {
		return nil, err
	}
	return r.TokenBalance(ctx, network, native.Address, owner)
}

func (r *fakeReader) Allowance(ctx context.Context, network core.NetworkID, tokenAddr, owner, spender string) (*big.Int, error) {
	return big.NewInt(0), nil
}

type staticWallet struct{}

func (staticWallet) Address(network core.NetworkID) (string, error) {
	if network == core.NetworkSolana {
		return solWallet, nil
	}
	return testWallet, nil
}

func (staticWallet) SignAndSend(ctx context.Context, tx core.Transaction) (Receipt, error) {
	return nil, errors.New("info tool never signs")
}

func newInfoHarness(t *testing.T) (*fakeReader, *Plugin) {
	t.Helper()
	reader := newFakeReader()
	clock := func() time.Time { return time.Unix(1_700_000_000, 0) }
	tokens := cache.NewTokenCache(reader, cache.DefaultTokenTTL, clock)
	base := provider.NewBase(provider.Config{
		Name:     "wallet",
		Networks: []core.NetworkID{core.NetworkBNB, core.NetworkSolana},
		Reader:   reader,
		Tokens:   tokens,
		Balances: cache.NewBalanceCache(reader, tokens, cache.DefaultBalanceTTL, clock),
		Now:      clock,
	})
	p := NewPlugin(PluginConfig{
		Base:   base,
		Wallet: staticWallet{},
		Stats:  stats.NewCollector(clock),
	})
	return reader, p
}

func executeInfo(t *testing.T, p *Plugin, args string) map[string]any {
	t.Helper()
	tools := p.Tools()
	if len(tools) != 1 || tools[0].Name() != "get_wallet_info" {
		t.Fatalf("unexpected tools: %v", tools)
	}
	out, err := tools[0].Execute(context.Background(), json.RawMessage(args), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("payload %q: %v", out, err)
	}
	return payload
}

func holdingsOf(t *testing.T, payload map[string]any) []map[string]any {
	t.Helper()
	raw, ok := payload["balances"].([]any)
	if !ok {
		t.Fatalf("missing balances in %v", payload)
	}
	out := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			t.Fatalf("bad holding %v", entry)
		}
		out = append(out, m)
	}
	return out
}

func TestGetWalletInfoReportsNativeBalance(t *testing.T) {
	reader, p := newInfoHarness(t)
	reader.setBalance(core.EVMNativeSentinel, testWallet, big.NewInt(1_500_000_000_000_000_000))

	payload := executeInfo(t, p, `{"network":"bnb"}`)
	if payload["status"] != "success" || payload["type"] != "wallet_info" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["address"] != testWallet || payload["network"] != "bnb" {
		t.Fatalf("unexpected identity: %v", payload)
	}
	holdings := holdingsOf(t, payload)
	if len(holdings) != 1 {
		t.Fatalf("expected only the native holding, got %v", holdings)
	}
	if holdings[0]["symbol"] != "BNB" || holdings[0]["balance"] != "1.5" {
		t.Fatalf("unexpected native holding: %v", holdings[0])
	}
	if holdings[0]["token"] != core.EVMNativeSentinel {
		t.Fatalf("unexpected native marker: %v", holdings[0])
	}
}

func TestGetWalletInfoIncludesRegistryTokens(t *testing.T) {
	reader, p := newInfoHarness(t)
	reader.setBalance(core.EVMNativeSentinel, testWallet, big.NewInt(1_500_000_000_000_000_000))
	reader.setToken(core.Token{Address: testUSDT, Symbol: "USDT", Decimals: 18})
	reader.setBalance(testUSDT, testWallet, big.NewInt(25_000_000_000_000_000))
	reader.setToken(core.Token{Address: testCAKE, Symbol: "CAKE", Decimals: 18})
	reader.setBalance(testCAKE, testWallet, big.NewInt(4_200_000_000_000_000_000))

	payload := executeInfo(t, p, `{"network":"bnb","includeTokens":true}`)
	holdings := holdingsOf(t, payload)

	// Registry tokens with no metadata on the fake chain read fail and are
	// dropped, so only USDT and CAKE survive alongside the native entry.
	if len(holdings) != 3 {
		t.Fatalf("expected 3 holdings, got %v", holdings)
	}
	if holdings[0]["symbol"] != "BNB" {
		t.Fatalf("native must come first: %v", holdings)
	}
	if holdings[1]["symbol"] != "USDT" || holdings[1]["balance"] != "0.025" {
		t.Fatalf("unexpected USDT holding: %v", holdings[1])
	}
	if holdings[2]["symbol"] != "CAKE" || holdings[2]["balance"] != "4.2" {
		t.Fatalf("unexpected CAKE holding: %v", holdings[2])
	}
}

func TestGetWalletInfoSkipsDuplicateNativeEntry(t *testing.T) {
	reader, p := newInfoHarness(t)
	reader.setBalance(core.SolanaNativeMint, solWallet, big.NewInt(2_000_000_000))
	reader.setToken(core.Token{Address: solUSDC, Symbol: "USDC", Decimals: 6})
	reader.setBalance(solUSDC, solWallet, big.NewInt(7_500_000))

	payload := executeInfo(t, p, `{"network":"solana","includeTokens":true}`)
	if payload["address"] != solWallet {
		t.Fatalf("unexpected address: %v", payload)
	}
	holdings := holdingsOf(t, payload)
	if len(holdings) != 2 {
		t.Fatalf("expected 2 holdings, got %v", holdings)
	}
	sols := 0
	for _, h := range holdings {
		if h["symbol"] == "SOL" {
			sols++
		}
	}
	if sols != 1 {
		t.Fatalf("registry SOL row must not duplicate the native entry: %v", holdings)
	}
	if holdings[0]["balance"] != "2" || holdings[1]["balance"] != "7.5" {
		t.Fatalf("unexpected balances: %v", holdings)
	}
}

func TestGetWalletInfoRejectsForeignNetworks(t *testing.T) {
	_, p := newInfoHarness(t)
	payload := executeInfo(t, p, `{"network":"ethereum"}`)
	if payload["status"] != "error" {
		t.Fatalf("expected error payload, got %v", payload)
	}
}

func TestGetWalletInfoRequiresNetwork(t *testing.T) {
	_, p := newInfoHarness(t)
	payload := executeInfo(t, p, `{}`)
	if payload["status"] != "error" {
		t.Fatalf("expected error payload, got %v", payload)
	}
	if msg, _ := payload["message"].(string); !strings.Contains(msg, "network") {
		t.Fatalf("unexpected message: %v", payload["message"])
	}
}
