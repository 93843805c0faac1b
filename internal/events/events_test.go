package events

import (
	"sync"
	"testing"
	"time"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Publish(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *captureSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestEmitterFansOut(t *testing.T) {
	a, b := &captureSink{}, &captureSink{}
	now := time.Unix(1_700_000_000, 0)
	emitter := NewEmitter(func() time.Time { return now }, a, b)

	emitter.Publish(Event{Tool: "swap", Percent: 20, Message: "quoting"})

	for _, sink := range []*captureSink{a, b} {
		got := sink.all()
		if len(got) != 1 {
			t.Fatalf("sink got %d events, want 1", len(got))
		}
		if got[0].Tool != "swap" || got[0].Percent != 20 {
			t.Fatalf("event = %+v", got[0])
		}
		if !got[0].Time.Equal(now) {
			t.Fatalf("time = %v, want stamped with emitter clock", got[0].Time)
		}
	}
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *Emitter
	emitter.Publish(Event{Tool: "swap"})

	called := 0
	report := emitter.Progress("swap", "req-1", func(percent int, message string) { called++ })
	report(50, "halfway")
	if called != 1 {
		t.Fatalf("report called %d times, want pass-through", called)
	}
}

func TestProgressPublishesAndForwards(t *testing.T) {
	sink := &captureSink{}
	emitter := NewEmitter(nil, sink)

	var forwarded []int
	report := emitter.Progress("stake", "req-9", func(percent int, message string) {
		forwarded = append(forwarded, percent)
	})
	report(5, "validating")
	report(100, "done")

	if len(forwarded) != 2 || forwarded[0] != 5 || forwarded[1] != 100 {
		t.Fatalf("forwarded = %v", forwarded)
	}
	got := sink.all()
	if len(got) != 2 {
		t.Fatalf("published %d events, want 2", len(got))
	}
	if got[0].Tool != "stake" || got[0].RequestID != "req-9" || got[1].Percent != 100 {
		t.Fatalf("events = %+v", got)
	}
}
