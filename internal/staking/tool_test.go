package staking

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
	"github.com/tonyfindev/BinkOS-sub002/internal/quotes"
	"github.com/tonyfindev/BinkOS-sub002/internal/registry"
	"github.com/tonyfindev/BinkOS-sub002/internal/stats"
	"github.com/tonyfindev/BinkOS-sub002/internal/wallet"
)

const (
	testWallet  = "0x1111111111111111111111111111111111111111"
	testUSDT    = "0x55d398326f99059ff775485246999027b3197955"
	testReceipt = "0x3333333333333333333333333333333333333333"
	testManager = "0x4444444444444444444444444444444444444444"
)

func units(n int64, decimals uint8) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Mul(big.NewInt(n), scale)
}

type fakeReader struct {
	mu         sync.Mutex
	tokens     map[string]core.Token
	balances   map[string]*big.Int
	allowances map[string]*big.Int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		tokens:     map[string]core.Token{},
		balances:   map[string]*big.Int{},
		allowances: map[string]*big.Int{},
	}
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

func (r *fakeReader) setAllowance(token, owner, spender string, v *big.Int) {
	r.mu.Lock()
	r.allowances[key(token, owner, spender)] = v
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
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.allowances[key(tokenAddr, owner, spender)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

type recordingWallet struct {
	mu    sync.Mutex
	calls []string
	sent  int
}

func (w *recordingWallet) Address(network core.NetworkID) (string, error) {
	return testWallet, nil
}

func (w *recordingWallet) SignAndSend(ctx context.Context, tx core.Transaction) (wallet.Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent++
	to := strings.ToLower(tx.To)
	w.calls = append(w.calls, "send:"+to)
	return &recordedReceipt{wallet: w, hash: fmt.Sprintf("0xhash%d", w.sent), to: to}, nil
}

func (w *recordingWallet) callLog() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.calls))
	copy(out, w.calls)
	return out
}

type recordedReceipt struct {
	wallet *recordingWallet
	hash   string
	to     string
}

func (r *recordedReceipt) Hash() string { return r.hash }

func (r *recordedReceipt) Wait(ctx context.Context) (*wallet.Confirmation, error) {
	r.wallet.mu.Lock()
	defer r.wallet.mu.Unlock()
	r.wallet.calls = append(r.wallet.calls, "wait:"+r.to)
	return &wallet.Confirmation{Hash: r.hash, BlockNumber: 7, GasUsed: 90_000, Status: "success"}, nil
}

type stubProvider struct {
	name     string
	networks []core.NetworkID
	quote    func(ctx context.Context, p Params) (*Quote, error)
}

func (s *stubProvider) Name() string               { return s.name }
func (s *stubProvider) Networks() []core.NetworkID { return s.networks }
func (s *stubProvider) Quote(ctx context.Context, p Params) (*Quote, error) {
	return s.quote(ctx, p)
}

type harness struct {
	reader *fakeReader
	wallet *recordingWallet
	store  *quotes.Memory[*Quote]
	base   *provider.Base
	tool   *Tool
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		reader: newFakeReader(),
		wallet: &recordingWallet{},
		now:    time.Unix(1_700_000_000, 0),
	}
	clock := func() time.Time { return h.now }

	tokens := cache.NewTokenCache(h.reader, cache.DefaultTokenTTL, clock)
	balances := cache.NewBalanceCache(h.reader, tokens, cache.DefaultBalanceTTL, clock)
	h.base = provider.NewBase(provider.Config{
		Name:     "staking",
		Networks: []core.NetworkID{core.NetworkBNB},
		Reader:   h.reader,
		Tokens:   tokens,
		Balances: balances,
		Now:      clock,
	})

	h.store = quotes.NewMemory[*Quote](clock)
	h.tool = NewTool(ToolConfig{
		Base:     h.base,
		Registry: registry.New[Provider](),
		Store:    h.store,
		Wallet:   h.wallet,
		Stats:    stats.NewCollector(clock),
	})

	h.reader.setToken(core.Token{Address: testUSDT, Symbol: "USDT", Decimals: 18})
	h.reader.setToken(core.Token{Address: testReceipt, Symbol: "sBNB", Decimals: 18})
	bnbNative, _ := core.NativeToken(core.NetworkBNB)
	h.reader.setBalance(bnbNative.Address, testWallet, units(1, 18))
	h.reader.setBalance(testUSDT, testWallet, units(1000, 18))
	return h
}

func (h *harness) execute(t *testing.T, args string) map[string]any {
	t.Helper()
	out, err := h.tool.Execute(context.Background(), json.RawMessage(args), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("payload %q: %v", out, err)
	}
	return payload
}

// liquidQuote mints a stake/unstake quote against the test manager contract.
func liquidQuote(name string, p Params, h *harness) *Quote {
	meta := quotes.NewMeta(name, p.Network, p.Wallet, h.now, DefaultQuoteTTL)
	native, _ := core.NativeToken(core.NetworkBNB)
	receipt := core.Token{Address: testReceipt, Symbol: "sBNB", Decimals: 18}

	q := &Quote{
		Meta:      meta,
		Action:    p.Action,
		AmountIn:  new(big.Int).Set(p.Amount),
		AmountOut: new(big.Int).Set(p.Amount),
		APRBps:    42_0,
	}
	if p.Action == ActionStake {
		q.Token, q.OutputToken = native, receipt
		q.Tx = core.Transaction{Network: p.Network, To: testManager, Data: []byte{0x01}, Value: new(big.Int).Set(p.Amount)}
	} else {
		q.Token, q.OutputToken = core.Token{Address: p.Token, Symbol: "USDT", Decimals: 18}, native
		q.Tx = core.Transaction{Network: p.Network, To: testManager, Data: []byte{0x02}, Value: new(big.Int)}
		q.Spender = testManager
	}
	return q
}

func TestStakeNativeSubmitsSingleTransaction(t *testing.T) {
	h := newHarness(t)
	native, _ := core.NativeToken(core.NetworkBNB)
	h.tool.reg.Register(&stubProvider{name: "lista", networks: []core.NetworkID{core.NetworkBNB},
		quote: func(ctx context.Context, p Params) (*Quote, error) {
			return liquidQuote("lista", p, h), nil
		}})

	payload := h.execute(t, `{"network":"bnb","action":"stake","token":"`+native.Address+`","amount":"0.1"}`)
	if payload["status"] != "success" || payload["type"] != "stake" {
		t.Fatalf("payload = %v", payload)
	}
	if payload["amountA"] != "0.1" {
		t.Fatalf("amountA = %v", payload["amountA"])
	}
	tokenA := payload["tokenA"].(map[string]any)
	if !core.IsNativeAddress(core.NetworkBNB, tokenA["address"].(string)) {
		t.Fatalf("tokenA = %v", tokenA)
	}

	want := []string{"send:" + testManager, "wait:" + testManager}
	if got := h.wallet.callLog(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("wallet calls = %v, want single transaction with no approval", got)
	}
}

func TestUnstakeApprovesAndConfirmsBeforeSubmitting(t *testing.T) {
	h := newHarness(t)
	h.tool.reg.Register(&stubProvider{name: "lista", networks: []core.NetworkID{core.NetworkBNB},
		quote: func(ctx context.Context, p Params) (*Quote, error) {
			return liquidQuote("lista", p, h), nil
		}})
	// Allowance stays zero, forcing the approval leg.

	payload := h.execute(t, `{"network":"bnb","action":"unstake","token":"`+testUSDT+`","amount":"10"}`)
	if payload["status"] != "success" || payload["type"] != "unstake" {
		t.Fatalf("payload = %v", payload)
	}

	want := []string{"send:" + testUSDT, "wait:" + testUSDT, "send:" + testManager, "wait:" + testManager}
	got := h.wallet.callLog()
	if len(got) != len(want) {
		t.Fatalf("wallet calls = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
	if payload["transactionHash"] != "0xhash2" {
		t.Fatalf("hash = %v, want the post-approval transaction", payload["transactionHash"])
	}
}

func TestStakingQuoteExpiresBeforeConsumption(t *testing.T) {
	h := newHarness(t)
	h.reader.setAllowance(testUSDT, testWallet, testManager, units(1_000_000, 18))
	h.tool.reg.Register(&stubProvider{name: "lista", networks: []core.NetworkID{core.NetworkBNB},
		quote: func(ctx context.Context, p Params) (*Quote, error) {
			q := liquidQuote("lista", p, h)
			// The clock outruns the TTL before the pipeline can consume.
			h.now = h.now.Add(DefaultQuoteTTL + time.Minute)
			return q, nil
		}})

	payload := h.execute(t, `{"network":"bnb","action":"unstake","token":"`+testUSDT+`","amount":"10"}`)
	if payload["status"] != "error" {
		t.Fatalf("payload = %v", payload)
	}
	if payload["message"] != "Quote expired or not found. Please get a new quote." {
		t.Fatalf("message = %q", payload["message"])
	}
	if calls := h.wallet.callLog(); len(calls) != 0 {
		t.Fatalf("nothing may be submitted on an expired quote: %v", calls)
	}
}

func TestStakingPicksLowestRequiredInput(t *testing.T) {
	h := newHarness(t)
	h.reader.setAllowance(testUSDT, testWallet, testManager, units(1_000_000, 18))
	mk := func(name string, bps int64) {
		h.tool.reg.Register(&stubProvider{name: name, networks: []core.NetworkID{core.NetworkBNB},
			quote: func(ctx context.Context, p Params) (*Quote, error) {
				q := liquidQuote(name, p, h)
				// Required input shaded by the provider's fee, in bps.
				q.AmountIn = new(big.Int).Quo(new(big.Int).Mul(p.Amount, big.NewInt(10_000+bps)), big.NewInt(10_000))
				return q, nil
			}})
	}
	mk("lean", 0)
	mk("greedy", 75)

	payload := h.execute(t, `{"network":"bnb","action":"supply","token":"`+testUSDT+`","amount":"100"}`)
	if payload["status"] != "success" || payload["provider"] != "lean" {
		t.Fatalf("payload = %v", payload)
	}
	if payload["amountA"] != "100" {
		t.Fatalf("amountA = %v", payload["amountA"])
	}
}

func TestStakingActionOutsideProtocolSubset(t *testing.T) {
	h := newHarness(t)
	h.tool.reg.Register(&stubProvider{name: "venus", networks: []core.NetworkID{core.NetworkBNB},
		quote: func(ctx context.Context, p Params) (*Quote, error) {
			if p.Action == ActionStake || p.Action == ActionUnstake {
				return nil, errors.New("venus supports supply and withdraw")
			}
			return liquidQuote("venus", p, h), nil
		}})

	payload := h.execute(t, `{"network":"bnb","action":"stake","token":"`+testUSDT+`","amount":"10","provider":"venus"}`)
	if payload["status"] != "error" {
		t.Fatalf("payload = %v", payload)
	}
	if payload["message"] != "No valid quotes found" {
		t.Fatalf("message = %v", payload["message"])
	}
}

func TestStakingRejectsUnknownAction(t *testing.T) {
	h := newHarness(t)
	payload := h.execute(t, `{"network":"bnb","action":"hodl","token":"`+testUSDT+`","amount":"10"}`)
	if payload["status"] != "error" {
		t.Fatalf("payload = %v", payload)
	}
	if msg := payload["message"].(string); !strings.Contains(msg, "must be one of") {
		t.Fatalf("message = %q", msg)
	}
}

func TestStakingClampsDepositWithinTolerance(t *testing.T) {
	h := newHarness(t)
	h.reader.setAllowance(testUSDT, testWallet, testManager, units(1_000_000, 18))
	var seen *big.Int
	h.tool.reg.Register(&stubProvider{name: "venus", networks: []core.NetworkID{core.NetworkBNB},
		quote: func(ctx context.Context, p Params) (*Quote, error) {
			seen = new(big.Int).Set(p.Amount)
			q := liquidQuote("venus", p, h)
			q.Token = core.Token{Address: testUSDT, Symbol: "USDT", Decimals: 18}
			return q, nil
		}})

	// 1003 against a 1000 balance is inside the 0.5% tolerance: clamp, not fail.
	payload := h.execute(t, `{"network":"bnb","action":"supply","token":"`+testUSDT+`","amount":"1003"}`)
	if payload["status"] != "success" {
		t.Fatalf("payload = %v", payload)
	}
	if seen == nil || seen.Cmp(units(1000, 18)) != 0 {
		t.Fatalf("provider saw %v, want the clamped balance", seen)
	}
	if payload["amountA"] != "1000" {
		t.Fatalf("amountA = %v", payload["amountA"])
	}
}
