package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher queues events for asynchronous delivery. Enqueue never blocks
// the caller; failed deliveries are retried up to MaxAttempts and then
// parked on a pending list for manual follow-up.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger

	queue    chan queued
	maxTries int
	interval time.Duration

	mu      sync.Mutex
	pending []Event

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type queued struct {
	event   Event
	attempt int
}

// DispatcherConfig tunes queue depth and retry behaviour.
type DispatcherConfig struct {
	QueueSize     int
	MaxAttempts   int
	RetryInterval time.Duration
}

// NewDispatcher builds a dispatcher; call Start before enqueueing.
func NewDispatcher(notifier Notifier, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Second
	}
	return &Dispatcher{
		notifier: notifier,
		logger:   logger,
		queue:    make(chan queued, cfg.QueueSize),
		maxTries: cfg.MaxAttempts,
		interval: cfg.RetryInterval,
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.wg.Add(1)
	go d.run(ctx)
}

// Close stops the worker after draining in-flight work.
func (d *Dispatcher) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// Enqueue hands an event to the dispatcher without blocking. When the queue
// is full the event goes straight to the pending list.
func (d *Dispatcher) Enqueue(ev Event) {
	select {
	case d.queue <- queued{event: ev, attempt: 1}:
	default:
		d.logger.Warn("notification queue full, parking event", "type", string(ev.Type))
		d.park(ev)
	}
}

// Pending returns events that exhausted their retries or overflowed the
// queue, for manual follow-up.
func (d *Dispatcher) Pending() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.pending))
	copy(out, d.pending)
	return out
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			d.drainQueue()
			return
		case item := <-d.queue:
			d.deliver(ctx, item)
		}
	}
}

// drainQueue parks everything still buffered when the worker stops, so an
// undelivered event always surfaces on the pending list instead of
// vanishing with the channel.
func (d *Dispatcher) drainQueue() {
	for {
		select {
		case item := <-d.queue:
			d.park(item.event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, item queued) {
	err := d.notifier.Notify(ctx, item.event)
	if err == nil {
		return
	}

	d.logger.Warn("notification delivery failed",
		"type", string(item.event.Type),
		"attempt", item.attempt,
		"error", err,
	)

	if item.attempt >= d.maxTries {
		d.park(item.event)
		return
	}

	select {
	case <-ctx.Done():
		d.park(item.event)
		return
	case <-time.After(d.interval):
	}

	item.attempt++
	select {
	case d.queue <- item:
	default:
		d.park(item.event)
	}
}

func (d *Dispatcher) park(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, ev)
}
