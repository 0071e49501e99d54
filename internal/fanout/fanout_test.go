package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingSink struct {
	mu       sync.Mutex
	received []Event
	fail     bool
}

func (r *recordingSink) Deliver(e Event) error {
	if r.fail {
		return errors.New("sink closed")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, e)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

func TestEmitDeliversToAllSinksConcurrently(t *testing.T) {
	f := New(Producers{
		NginxStatus: func(context.Context) (any, error) { return map[string]bool{"running": true}, nil },
	})
	s1, s2 := &recordingSink{}, &recordingSink{}
	f.Subscribe(s1)
	f.Subscribe(s2)

	f.EmitNginxStatus(context.Background())

	if s1.count() != 1 || s2.count() != 1 {
		t.Fatalf("expected both sinks to receive the event, got %d and %d", s1.count(), s2.count())
	}
}

func TestFailedSinkIsDropped(t *testing.T) {
	f := New(Producers{
		NginxStatus: func(context.Context) (any, error) { return map[string]bool{"running": true}, nil },
	})
	bad := &recordingSink{fail: true}
	good := &recordingSink{}
	f.Subscribe(bad)
	f.Subscribe(good)

	f.EmitNginxStatus(context.Background())
	if f.SinkCount() != 1 {
		t.Fatalf("expected the failing sink to be dropped, sink count = %d", f.SinkCount())
	}
	if good.count() != 1 {
		t.Fatal("expected the healthy sink to still receive the event")
	}
}

func TestProducerErrorIsSwallowed(t *testing.T) {
	f := New(Producers{
		Metrics: func(context.Context) (any, error) { return nil, errors.New("scrape failed") },
	})
	s := &recordingSink{}
	f.Subscribe(s)

	f.emit(context.Background(), EventMetrics, f.producers.Metrics)
	if s.count() != 0 {
		t.Fatal("expected no event delivered when the producer errors")
	}
	if f.SinkCount() != 1 {
		t.Fatal("a producer error must not drop subscribed sinks")
	}
}
