package quotes

import (
	"context"
	"testing"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
)

type testQuote struct {
	Meta
	In  string `json:"in"`
	Out string `json:"out"`
}

func (q testQuote) Tokens() []string { return []string{q.In, q.Out} }

func TestMemoryStoreRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewMemory[testQuote](func() time.Time { return now })

	rec := testQuote{
		Meta: NewMeta("kyberswap", core.NetworkBNB, "0xabc", now, 5*time.Minute),
		In:   "0x1",
		Out:  "0x2",
	}
	if rec.Key() == "" {
		t.Fatal("NewMeta must assign a quote id")
	}
	if err := store.Put(context.Background(), rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := store.Get(context.Background(), rec.Key())
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v", ok, err)
	}
	if got.Meta.Provider != "kyberswap" || got.In != "0x1" {
		t.Fatalf("got %+v", got)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewMemory[testQuote](func() time.Time { return now })

	rec := testQuote{Meta: NewMeta("jupiter", core.NetworkSolana, "wallet", now, time.Minute)}
	if err := store.Put(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	now = now.Add(59 * time.Second)
	if _, ok, _ := store.Get(context.Background(), rec.Key()); !ok {
		t.Fatal("quote must be retrievable inside the expiry window")
	}

	now = now.Add(2 * time.Second)
	if _, ok, _ := store.Get(context.Background(), rec.Key()); ok {
		t.Fatal("expired quote must read as a miss")
	}
	if store.Len() != 0 {
		t.Fatalf("Len = %d, expired entry must be dropped on read", store.Len())
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewMemory[testQuote](func() time.Time { return now })

	rec := testQuote{Meta: NewMeta("venus", core.NetworkBNB, "0xabc", now, time.Minute)}
	if err := store.Put(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(context.Background(), rec.Key()); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Get(context.Background(), rec.Key()); ok {
		t.Fatal("deleted quote must read as a miss")
	}
}

func TestMemoryStoreClearExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewMemory[testQuote](func() time.Time { return now })

	fresh := testQuote{Meta: NewMeta("a", core.NetworkBNB, "w", now, 10*time.Minute)}
	stale := testQuote{Meta: NewMeta("b", core.NetworkBNB, "w", now, time.Minute)}
	ctx := context.Background()
	if err := store.Put(ctx, fresh); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, stale); err != nil {
		t.Fatal(err)
	}

	if removed := store.ClearExpired(now.Add(5 * time.Minute)); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok, _ := store.Get(ctx, fresh.Key()); !ok {
		t.Fatal("fresh quote must survive the sweep")
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		id := NewID()
		if id == "" || seen[id] {
			t.Fatalf("duplicate or empty id %q", id)
		}
		seen[id] = true
	}
}
