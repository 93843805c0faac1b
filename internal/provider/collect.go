package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/logging"
)

// Named is the least a fan-out participant must expose.
type Named interface {
	Name() string
}

// Outcome is one provider's branch of a fan-out.
type Outcome[Q any] struct {
	Provider string
	Quote    Q
	Err      error
	Latency  time.Duration
}

// Collect asks every provider concurrently and waits for all of them. A
// provider that fails or panics only loses its own slot; the caller decides
// what to do with an all-failed result.
func Collect[P Named, Q any](ctx context.Context, providers []P, fetch func(ctx context.Context, p P) (Q, error)) []Outcome[Q] {
	log := logging.Named("provider.collect")
	outcomes := make([]Outcome[Q], len(providers))

	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			outcomes[i].Provider = p.Name()
			defer func() {
				outcomes[i].Latency = time.Since(start)
				if r := recover(); r != nil {
					outcomes[i].Err = binkerr.Newf(binkerr.CodeInternal, "provider %s panicked: %v", p.Name(), r)
				}
				if outcomes[i].Err != nil {
					log.Warn("provider quote failed",
						slog.String("provider", p.Name()),
						slog.String("error", outcomes[i].Err.Error()),
						slog.Duration("latency", outcomes[i].Latency))
				}
			}()
			outcomes[i].Quote, outcomes[i].Err = fetch(ctx, p)
		}()
	}
	wg.Wait()
	return outcomes
}
