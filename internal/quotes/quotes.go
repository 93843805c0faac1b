package quotes

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
)

// Record is the store-facing view of a quote. Every operation family's Quote
// satisfies it by embedding Meta and adding Tokens.
type Record interface {
	// Key is the quote id used for storage and later consumption.
	Key() string
	Net() core.NetworkID
	// Owner is the wallet the quote was issued for.
	Owner() string
	// Tokens lists every token address whose balance the quoted operation can
	// change; the native token is implied and need not be listed.
	Tokens() []string
	Transaction() core.Transaction
	Expiry() time.Time
}

// Meta is the family-independent slice of a quote.
type Meta struct {
	QuoteID   string           `json:"quoteId"`
	Provider  string           `json:"provider"`
	Network   core.NetworkID   `json:"network"`
	Wallet    string           `json:"wallet"`
	Tx        core.Transaction `json:"tx"`
	IssuedAt  time.Time        `json:"issuedAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

func (m Meta) Key() string                   { return m.QuoteID }
func (m Meta) Net() core.NetworkID           { return m.Network }
func (m Meta) Owner() string                 { return m.Wallet }
func (m Meta) Transaction() core.Transaction { return m.Tx }
func (m Meta) Expiry() time.Time             { return m.ExpiresAt }

// NewMeta stamps id, issue time and expiry for a fresh quote.
func NewMeta(provider string, network core.NetworkID, wallet string, now time.Time, ttl time.Duration) Meta {
	return Meta{
		QuoteID:   NewID(),
		Provider:  provider,
		Network:   network,
		Wallet:    wallet,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// NewID returns a fresh quote id.
func NewID() string { return uuid.NewString() }

// Store holds issued quotes until they are consumed or expire. Get reports a
// miss for unknown and expired ids; the caller decides how to surface that.
type Store[T Record] interface {
	Put(ctx context.Context, rec T) error
	Get(ctx context.Context, id string) (T, bool, error)
	Delete(ctx context.Context, id string) error
	// ClearExpired removes entries past their expiry; backends that expire
	// keys themselves report 0.
	ClearExpired(now time.Time) int
}
