package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/chain"
	"github.com/tonyfindev/BinkOS-sub002/internal/core"
)

const DefaultTokenTTL = 30 * time.Minute

type tokenKey struct {
	network core.NetworkID
	address string
}

type tokenEntry struct {
	token     core.Token
	fetchedAt time.Time
}

// TokenCache memoizes token metadata per (network, address). Metadata is
// immutable on-chain, so the TTL is generous; the native pseudo-token is
// synthesized from the network table and never fetched.
type TokenCache struct {
	reader chain.Reader
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[tokenKey]tokenEntry
}

func NewTokenCache(reader chain.Reader, ttl time.Duration, now func() time.Time) *TokenCache {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TokenCache{
		reader:  reader,
		ttl:     ttl,
		now:     now,
		entries: make(map[tokenKey]tokenEntry),
	}
}

// Token resolves metadata through the cache. Concurrent misses on the same
// key may fetch twice; last write wins.
func (c *TokenCache) Token(ctx context.Context, network core.NetworkID, address string) (core.Token, error) {
	if core.IsNativeAddress(network, address) {
		return core.NativeToken(network)
	}

	key := tokenKey{network: network, address: core.NormalizeAddress(network, address)}

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return entry.token, nil
	}
	c.mu.Unlock()

	token, err := c.reader.TokenMetadata(ctx, network, address)
	if err != nil {
		return core.Token{}, err
	}

	c.mu.Lock()
	c.entries[key] = tokenEntry{token: token, fetchedAt: c.now()}
	c.mu.Unlock()
	return token, nil
}

// ClearExpired drops entries past the TTL and reports how many were removed.
func (c *TokenCache) ClearExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.fetchedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
