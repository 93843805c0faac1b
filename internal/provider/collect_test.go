package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProvider struct {
	name   string
	delay  time.Duration
	quote  string
	err    error
	panics bool
}

func (p fakeProvider) Name() string { return p.name }

func TestCollectIsolatesFailures(t *testing.T) {
	providers := []fakeProvider{
		{name: "good", quote: "q-good"},
		{name: "bad", err: errors.New("upstream 500")},
		{name: "slow", delay: 30 * time.Millisecond, quote: "q-slow"},
	}

	outcomes := Collect(context.Background(), providers, func(ctx context.Context, p fakeProvider) (string, error) {
		if p.delay > 0 {
			time.Sleep(p.delay)
		}
		if p.err != nil {
			return "", p.err
		}
		return p.quote, nil
	})

	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want one slot per provider", len(outcomes))
	}
	byName := map[string]Outcome[string]{}
	for _, o := range outcomes {
		byName[o.Provider] = o
	}
	if byName["good"].Err != nil || byName["good"].Quote != "q-good" {
		t.Fatalf("good outcome = %+v", byName["good"])
	}
	if byName["bad"].Err == nil {
		t.Fatal("failing provider must keep its error in its own slot")
	}
	if byName["slow"].Err != nil || byName["slow"].Quote != "q-slow" {
		t.Fatalf("slow outcome = %+v; a sibling failure must not cancel it", byName["slow"])
	}
	if byName["slow"].Latency < 30*time.Millisecond {
		t.Fatalf("slow latency = %v, want the real duration", byName["slow"].Latency)
	}
}

func TestCollectRecoversPanic(t *testing.T) {
	providers := []fakeProvider{
		{name: "panicky", panics: true},
		{name: "steady", quote: "ok"},
	}

	outcomes := Collect(context.Background(), providers, func(ctx context.Context, p fakeProvider) (string, error) {
		if p.panics {
			panic("nil map write")
		}
		return p.quote, nil
	})

	var panicked, steady Outcome[string]
	for _, o := range outcomes {
		switch o.Provider {
		case "panicky":
			panicked = o
		case "steady":
			steady = o
		}
	}
	if panicked.Err == nil {
		t.Fatal("panic must surface as an error outcome")
	}
	if steady.Err != nil || steady.Quote != "ok" {
		t.Fatalf("steady outcome = %+v", steady)
	}
}

func TestCollectEmpty(t *testing.T) {
	outcomes := Collect(context.Background(), nil, func(ctx context.Context, p fakeProvider) (string, error) {
		t.Fatal("fetch must not run without providers")
		return "", nil
	})
	if len(outcomes) != 0 {
		t.Fatalf("outcomes = %d, want 0", len(outcomes))
	}
}
