package cache

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/chain"
	"github.com/tonyfindev/BinkOS-sub002/internal/core"
)

const DefaultBalanceTTL = 30 * time.Second

type balanceKey struct {
	network core.NetworkID
	token   string
	wallet  string
}

// Balance is one cached read. Amount is in base units.
type Balance struct {
	Amount    *big.Int
	Formatted string
	FetchedAt time.Time
}

func (b Balance) clone() Balance {
	return Balance{
		Amount:    new(big.Int).Set(b.Amount),
		Formatted: b.Formatted,
		FetchedAt: b.FetchedAt,
	}
}

// BalanceCache holds short-lived balance reads. Anything that moves funds must
// call Invalidate for the touched tokens so the next read hits the chain.
type BalanceCache struct {
	reader chain.Reader
	tokens *TokenCache
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[balanceKey]Balance
}

func NewBalanceCache(reader chain.Reader, tokens *TokenCache, ttl time.Duration, now func() time.Time) *BalanceCache {
	if ttl <= 0 {
		ttl = DefaultBalanceTTL
	}
	if now == nil {
		now = time.Now
	}
	return &BalanceCache{
		reader:  reader,
		tokens:  tokens,
		ttl:     ttl,
		now:     now,
		entries: make(map[balanceKey]Balance),
	}
}

func (c *BalanceCache) key(network core.NetworkID, tokenAddr, wallet string) balanceKey {
	return balanceKey{
		network: network,
		token:   core.NormalizeAddress(network, tokenAddr),
		wallet:  core.NormalizeAddress(network, wallet),
	}
}

// Balance returns the cached entry when fresh, otherwise reads the chain.
// force bypasses the cached entry but still records the fresh read.
func (c *BalanceCache) Balance(ctx context.Context, network core.NetworkID, tokenAddr, wallet string, force bool) (Balance, error) {
	key := c.key(network, tokenAddr, wallet)

	if !force {
		c.mu.Lock()
		if entry, ok := c.entries[key]; ok && c.now().Sub(entry.FetchedAt) < c.ttl {
			out := entry.clone()
			c.mu.Unlock()
			return out, nil
		}
		c.mu.Unlock()
	}

	var amount *big.Int
	var err error
	if core.IsNativeAddress(network, tokenAddr) {
		amount, err = c.reader.NativeBalance(ctx, network, wallet)
	} else {
		amount, err = c.reader.TokenBalance(ctx, network, tokenAddr, wallet)
	}
	if err != nil {
		return Balance{}, err
	}

	token, err := c.tokens.Token(ctx, network, tokenAddr)
	if err != nil {
		return Balance{}, err
	}

	entry := Balance{
		Amount:    amount,
		Formatted: core.FormatUnits(amount, token.Decimals),
		FetchedAt: c.now(),
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return entry.clone(), nil
}

// Invalidate drops one (network, token, wallet) entry.
func (c *BalanceCache) Invalidate(network core.NetworkID, tokenAddr, wallet string) {
	key := c.key(network, tokenAddr, wallet)
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateWallet drops every entry for the wallet on the network.
func (c *BalanceCache) InvalidateWallet(network core.NetworkID, wallet string) {
	norm := core.NormalizeAddress(network, wallet)
	c.mu.Lock()
	for key := range c.entries {
		if key.network == network && key.wallet == norm {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// ClearExpired drops entries past the TTL and reports how many were removed.
func (c *BalanceCache) ClearExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.FetchedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *BalanceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
