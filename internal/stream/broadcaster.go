// Package stream fans dashboard snapshots out to live Server-Sent Events
// subscribers.
//
// Each subscription owns a buffered event channel and its own keep-alive
// ticker. Publishing never blocks: a subscriber whose buffer is full misses
// that frame and will see the next one. Nothing is replayed on reconnect.
package stream

import (
	"crypto/rand"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = stderrors.New("broadcaster closed")

// Broadcaster is a registry of open subscriptions.
type Broadcaster struct {
	mu       sync.Mutex
	subs     map[ulid.ULID]*Subscription
	interval time.Duration
	buffer   int
	entropy  io.Reader
	closed   bool
	logger   *slog.Logger
}

// Subscription is one open stream.
type Subscription struct {
	id     ulid.ULID
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// New creates a broadcaster that pulses every interval and holds up to buffer
// pending events per subscriber.
func New(interval time.Duration, buffer int, logger *slog.Logger) *Broadcaster {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subs:     make(map[ulid.ULID]*Subscription),
		interval: interval,
		buffer:   buffer,
		entropy:  ulid.Monotonic(rand.Reader, 0),
		logger:   logger,
	}
}

// Subscribe registers a new subscription whose first event is the result of
// snapshot. snapshot runs while the registry is locked, so no publish can slip
// between the initial frame and registration.
func (b *Broadcaster) Subscribe(snapshot func() ([]byte, error)) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	initial, err := snapshot()
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		id:     ulid.MustNew(ulid.Timestamp(time.Now()), b.entropy),
		events: make(chan Event, b.buffer),
		done:   make(chan struct{}),
	}
	sub.events <- Event{Data: initial}
	b.subs[sub.id] = sub

	if b.interval > 0 {
		go sub.pulse(b.interval)
	}

	b.logger.Debug("stream subscribed", "subscriber", sub.id.String(), "subscribers", len(b.subs))
	return sub, nil
}

// Unsubscribe stops the subscription's keep-alive and removes it. Safe to call
// more than once.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	delete(b.subs, sub.id)
	remaining := len(b.subs)
	b.mu.Unlock()

	sub.stop()
	b.logger.Debug("stream unsubscribed", "subscriber", sub.id.String(), "subscribers", remaining)
}

// Publish offers data to every subscriber without blocking and returns how
// many accepted it.
func (b *Broadcaster) Publish(data []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for id, sub := range b.subs {
		select {
		case sub.events <- Event{Data: data}:
			delivered++
		default:
			b.logger.Warn("stream subscriber lagging, frame dropped", "subscriber", id.String())
		}
	}
	return delivered
}

// Len returns the number of open subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription and rejects new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	subs := b.subs
	b.subs = make(map[ulid.ULID]*Subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	if len(subs) > 0 {
		b.logger.Info("stream subscriptions closed", "count", len(subs))
	}
}

// ID returns the subscription handle as a string.
func (s *Subscription) ID() string {
	return s.id.String()
}

// Events delivers frames for this subscriber.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed once the subscription has been removed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscription) pulse(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			select {
			case s.events <- KeepAlive:
			default:
			}
		}
	}
}
