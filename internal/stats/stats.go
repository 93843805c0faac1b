// Package stats keeps in-process counters for tool and provider activity.
// Counters are approximate where exactness is expensive: unique wallets are
// tracked with a HyperLogLog sketch rather than a set.
package stats

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/axiomhq/hyperloglog"
)

// ToolStats is one tool's slice of a Snapshot.
type ToolStats struct {
	Invocations  int64 `json:"invocations"`
	Failures     int64 `json:"failures"`
	TotalMillis  int64 `json:"totalMillis"`
	AvgMillis    int64 `json:"avgMillis"`
	LastInvoked  int64 `json:"lastInvoked,omitempty"`
	LastFailed   int64 `json:"lastFailed,omitempty"`
	LastDuration int64 `json:"lastDurationMillis,omitempty"`
}

// ProviderStats counts quote outcomes for one provider.
type ProviderStats struct {
	Quotes      int64 `json:"quotes"`
	Failures    int64 `json:"failures"`
	Selected    int64 `json:"selected"`
	TotalMillis int64 `json:"totalMillis"`
	AvgMillis   int64 `json:"avgMillis"`
}

// Snapshot is the serializable view served by the stats endpoint.
type Snapshot struct {
	StartedAt     int64                    `json:"startedAt"`
	UptimeSeconds int64                    `json:"uptimeSeconds"`
	UniqueWallets uint64                   `json:"uniqueWallets"`
	Tools         map[string]ToolStats     `json:"tools"`
	Providers     map[string]ProviderStats `json:"providers"`
}

type toolCounters struct {
	invocations  int64
	failures     int64
	totalMillis  int64
	lastInvoked  time.Time
	lastFailed   time.Time
	lastDuration time.Duration
}

type providerCounters struct {
	quotes      int64
	failures    int64
	selected    int64
	totalMillis int64
}

// Collector accumulates counters. All methods are safe for concurrent use
// and safe on a nil receiver, so callers can leave stats unwired.
type Collector struct {
	mu        sync.Mutex
	startedAt time.Time
	now       func() time.Time
	tools     map[string]*toolCounters
	providers map[string]*providerCounters
	wallets   *hyperloglog.Sketch
}

// NewCollector returns an empty collector. now may be nil.
func NewCollector(now func() time.Time) *Collector {
	if now == nil {
		now = time.Now
	}
	return &Collector{
		startedAt: now(),
		now:       now,
		tools:     make(map[string]*toolCounters),
		providers: make(map[string]*providerCounters),
		wallets:   hyperloglog.New14(),
	}
}

func (c *Collector) tool(name string) *toolCounters {
	t, ok := c.tools[name]
	if !ok {
		t = &toolCounters{}
		c.tools[name] = t
	}
	return t
}

func (c *Collector) provider(name string) *providerCounters {
	p, ok := c.providers[name]
	if !ok {
		p = &providerCounters{}
		c.providers[name] = p
	}
	return p
}

// RecordInvocation counts one finished tool call. failed marks calls whose
// result was an error payload or a transport error.
func (c *Collector) RecordInvocation(tool string, elapsed time.Duration, failed bool) {
	if c == nil || tool == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tool(tool)
	t.invocations++
	t.totalMillis += elapsed.Milliseconds()
	t.lastInvoked = c.now()
	t.lastDuration = elapsed
	if failed {
		t.failures++
		t.lastFailed = t.lastInvoked
	}
}

// RecordQuote counts one provider quote attempt.
func (c *Collector) RecordQuote(provider string, elapsed time.Duration, failed bool) {
	if c == nil || provider == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.provider(strings.ToLower(provider))
	p.quotes++
	p.totalMillis += elapsed.Milliseconds()
	if failed {
		p.failures++
	}
}

// RecordSelection counts a provider winning best-quote selection.
func (c *Collector) RecordSelection(provider string) {
	if c == nil || provider == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provider(strings.ToLower(provider)).selected++
}

// RecordWallet folds a wallet address into the unique-wallet sketch.
func (c *Collector) RecordWallet(address string) {
	if c == nil || address == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallets.Insert([]byte(strings.ToLower(address)))
}

// Snapshot copies the current counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{Tools: map[string]ToolStats{}, Providers: map[string]ProviderStats{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		StartedAt:     c.startedAt.Unix(),
		UptimeSeconds: int64(c.now().Sub(c.startedAt).Seconds()),
		UniqueWallets: c.wallets.Estimate(),
		Tools:         make(map[string]ToolStats, len(c.tools)),
		Providers:     make(map[string]ProviderStats, len(c.providers)),
	}
	for name, t := range c.tools {
		s := ToolStats{
			Invocations:  t.invocations,
			Failures:     t.failures,
			TotalMillis:  t.totalMillis,
			LastDuration: t.lastDuration.Milliseconds(),
		}
		if t.invocations > 0 {
			s.AvgMillis = t.totalMillis / t.invocations
		}
		if !t.lastInvoked.IsZero() {
			s.LastInvoked = t.lastInvoked.Unix()
		}
		if !t.lastFailed.IsZero() {
			s.LastFailed = t.lastFailed.Unix()
		}
		snap.Tools[name] = s
	}
	for name, p := range c.providers {
		s := ProviderStats{
			Quotes:      p.quotes,
			Failures:    p.failures,
			Selected:    p.selected,
			TotalMillis: p.totalMillis,
		}
		if p.quotes > 0 {
			s.AvgMillis = p.totalMillis / p.quotes
		}
		snap.Providers[name] = s
	}
	return snap
}

// ToolNames lists tools with recorded activity, sorted.
func (c *Collector) ToolNames() []string {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
