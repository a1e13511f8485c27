package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type stubNotifier struct {
	mu       sync.Mutex
	events   []Event
	failures int
}

func (s *stubNotifier) Notify(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("delivery failed")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *stubNotifier) delivered() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestDispatcherDeliversEvents(t *testing.T) {
	sink := &stubNotifier{}
	d := NewDispatcher(sink, discardLogger(), DispatcherConfig{})
	d.Start()
	defer d.Close()

	d.Enqueue(Event{Type: EventPaymentSubmitted, UserID: "USR-1", CreatedAt: time.Now()})

	waitFor(t, time.Second, func() bool { return len(sink.delivered()) == 1 })
	if got := sink.delivered()[0].Type; got != EventPaymentSubmitted {
		t.Fatalf("delivered type = %s, want %s", got, EventPaymentSubmitted)
	}
}

func TestDispatcherRetriesFailedDelivery(t *testing.T) {
	sink := &stubNotifier{failures: 2}
	d := NewDispatcher(sink, discardLogger(), DispatcherConfig{
		MaxAttempts:   5,
		RetryInterval: time.Millisecond,
	})
	d.Start()
	defer d.Close()

	d.Enqueue(Event{Type: EventWithdrawalRequested, UserID: "USR-1"})

	waitFor(t, time.Second, func() bool { return len(sink.delivered()) == 1 })
}

// blockedNotifier fails every delivery and signals the first attempt, so a
// test can close the dispatcher while one event sits in its retry wait and
// another is still buffered.
type blockedNotifier struct {
	once      sync.Once
	attempted chan struct{}
}

func (b *blockedNotifier) Notify(context.Context, Event) error {
	b.once.Do(func() { close(b.attempted) })
	return errors.New("notifier down")
}

func TestCloseParksBufferedEvents(t *testing.T) {
	sink := &blockedNotifier{attempted: make(chan struct{})}
	d := NewDispatcher(sink, discardLogger(), DispatcherConfig{
		QueueSize:     8,
		MaxAttempts:   3,
		RetryInterval: time.Hour,
	})

	d.Enqueue(Event{Type: EventPaymentSubmitted, UserID: "USR-1"})
	d.Enqueue(Event{Type: EventWithdrawalRequested, UserID: "USR-1"})
	d.Start()

	select {
	case <-sink.attempted:
	case <-time.After(time.Second):
		t.Fatal("first delivery attempt never happened")
	}
	d.Close()

	pending := d.Pending()
	if len(pending) != 2 {
		t.Fatalf("expected both undelivered events parked, got %d: %+v", len(pending), pending)
	}
}

func TestDispatcherParksExhaustedEvents(t *testing.T) {
	sink := &stubNotifier{failures: 100}
	d := NewDispatcher(sink, discardLogger(), DispatcherConfig{
		MaxAttempts:   2,
		RetryInterval: time.Millisecond,
	})
	d.Start()
	defer d.Close()

	d.Enqueue(Event{Type: EventWithdrawalRequested, UserID: "USR-1"})

	waitFor(t, time.Second, func() bool { return len(d.Pending()) == 1 })
	if len(sink.delivered()) != 0 {
		t.Fatalf("expected no deliveries, got %d", len(sink.delivered()))
	}
}
