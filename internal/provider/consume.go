package provider

import (
	"context"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/quotes"
)

// quoteExpiredMessage is part of the tool contract; the model re-quotes when
// it sees it.
const quoteExpiredMessage = "Quote expired or not found. Please get a new quote."

// ErrQuoteExpired builds the canonical expired-quote error.
func ErrQuoteExpired() error {
	return binkerr.New(binkerr.CodeQuoteExpired, quoteExpiredMessage)
}

// StoreQuote records a freshly issued quote so a later build call can
// consume it.
func StoreQuote[T quotes.Record](ctx context.Context, st quotes.Store[T], rec T) error {
	if rec.Key() == "" || rec.Expiry().IsZero() {
		return binkerr.New(binkerr.CodeInternal, "quote record is missing id or expiry")
	}
	return st.Put(ctx, rec)
}

// Consume retrieves a stored quote for execution. The record is removed from
// the store (quotes are single-use) and every balance the operation can touch
// is invalidated before the record is returned, so the subsequent checks read
// the chain, not a cache.
func Consume[T quotes.Record](ctx context.Context, base *Base, st quotes.Store[T], id, walletAddr string) (T, error) {
	var zero T
	rec, ok, err := st.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, ErrQuoteExpired()
	}
	if walletAddr != "" && !core.AddressesEqual(rec.Net(), rec.Owner(), walletAddr) {
		// A quote issued for another wallet is as good as gone.
		return zero, ErrQuoteExpired()
	}
	if err := st.Delete(ctx, id); err != nil {
		return zero, err
	}
	base.InvalidateBalances(rec.Net(), rec.Owner(), rec.Tokens()...)
	return rec, nil
}
