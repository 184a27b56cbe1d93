package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amamdouheg90/vrobo-recording/internal/observability"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (s *captureSink) Send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink closed")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *captureSink) setFail(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = v
}

func newTestRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	metrics := observability.NewMetrics("test_events_" + time.Now().Format("150405000000000") + "_" + t.Name())
	return NewRegistry(opts, metrics)
}

func TestSubscribeSendsHelloWithClientID(t *testing.T) {
	r := newTestRegistry(t, Options{})
	sink := &captureSink{}

	id, err := r.Subscribe(sink)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if id == "" {
		t.Fatalf("Subscribe() returned empty id")
	}

	got := sink.all()
	if len(got) != 1 {
		t.Fatalf("hello events = %d, want 1", len(got))
	}
	if !got[0].Connected || got[0].ClientID != id {
		t.Fatalf("hello event = %+v, want connected with client id %q", got[0], id)
	}
}

func TestPublishWithZeroSubscribersIsNoOp(t *testing.T) {
	r := newTestRegistry(t, Options{})
	r.Publish("", "processing", "")
	if r.OpenCount() != 0 {
		t.Fatalf("OpenCount() = %d, want 0", r.OpenCount())
	}
}

func TestPublishOrderPerConnection(t *testing.T) {
	r := newTestRegistry(t, Options{})
	sink := &captureSink{}
	if _, err := r.Subscribe(sink); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	steps := []string{"processing", "elevenlabs", "uploading", "updating_db", "completed"}
	for _, step := range steps {
		r.Publish("", step, "")
	}

	got := sink.all()
	if len(got) != len(steps)+1 {
		t.Fatalf("events = %d, want %d", len(got), len(steps)+1)
	}
	for i, step := range steps {
		if got[i+1].Step != step {
			t.Fatalf("event %d step = %q, want %q", i+1, got[i+1].Step, step)
		}
	}
}

func TestPublishUnicastTargetsOneConnection(t *testing.T) {
	r := newTestRegistry(t, Options{})
	a := &captureSink{}
	b := &captureSink{}
	idA, err := r.Subscribe(a)
	if err != nil {
		t.Fatalf("Subscribe(a) error = %v", err)
	}
	if _, err := r.Subscribe(b); err != nil {
		t.Fatalf("Subscribe(b) error = %v", err)
	}

	r.Publish(idA, "uploading", "")

	if n := len(a.all()); n != 2 {
		t.Fatalf("a events = %d, want 2 (hello + step)", n)
	}
	if n := len(b.all()); n != 1 {
		t.Fatalf("b events = %d, want 1 (hello only)", n)
	}
}

func TestPublishBroadcastSkipsAndEvictsFailingSink(t *testing.T) {
	r := newTestRegistry(t, Options{})
	healthy := &captureSink{}
	broken := &captureSink{}
	if _, err := r.Subscribe(healthy); err != nil {
		t.Fatalf("Subscribe(healthy) error = %v", err)
	}
	if _, err := r.Subscribe(broken); err != nil {
		t.Fatalf("Subscribe(broken) error = %v", err)
	}
	broken.setFail(true)

	r.Publish("", "processing", "")

	if r.OpenCount() != 1 {
		t.Fatalf("OpenCount() = %d, want 1 after evicting failed sink", r.OpenCount())
	}
	got := healthy.all()
	if len(got) != 2 || got[1].Step != "processing" {
		t.Fatalf("healthy sink events = %+v, want hello + processing", got)
	}
}

func TestSweepEvictsIdleConnectionWithoutPublish(t *testing.T) {
	r := newTestRegistry(t, Options{
		HeartbeatInterval: time.Hour,
		IdleTimeout:       30 * time.Millisecond,
		SweepInterval:     10 * time.Millisecond,
	})
	sink := &captureSink{}
	if _, err := r.Subscribe(sink); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for r.OpenCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("idle connection was not swept, OpenCount() = %d", r.OpenCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHeartbeatEvictsDeadConnection(t *testing.T) {
	r := newTestRegistry(t, Options{
		HeartbeatInterval: 10 * time.Millisecond,
		IdleTimeout:       time.Hour,
		SweepInterval:     time.Hour,
	})
	sink := &captureSink{}
	if _, err := r.Subscribe(sink); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	sink.setFail(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for r.OpenCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("dead connection survived heartbeats, OpenCount() = %d", r.OpenCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestUnsubscribeRemovesConnection(t *testing.T) {
	r := newTestRegistry(t, Options{})
	sink := &captureSink{}
	id, err := r.Subscribe(sink)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	r.Unsubscribe(id)
	if r.OpenCount() != 0 {
		t.Fatalf("OpenCount() = %d, want 0", r.OpenCount())
	}
	// Double unsubscribe must be harmless.
	r.Unsubscribe(id)
}
