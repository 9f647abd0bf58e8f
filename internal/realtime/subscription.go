package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"pocketledger/internal/logger"
)

// Loader fetches the full current result set of a live query.
type Loader[T any] func(ctx context.Context) (T, error)

// Snapshot is one delivery of a subscription. Err is set when the load
// failed; Data is then the zero value.
type Snapshot[T any] struct {
	Data T
	Err  error
}

// Subscription delivers the result of a live query now and after every
// change notification on its topic, until closed.
type Subscription[T any] struct {
	topic   string
	updates chan Snapshot[T]
	cancel  context.CancelFunc
	done    chan struct{}
	loading atomic.Bool
	once    sync.Once
}

// Subscribe starts a live query. The first snapshot is the initial load.
// The subscription ends when Close is called or ctx is done; in both cases
// the Updates channel is closed once the worker goroutine has exited.
func Subscribe[T any](ctx context.Context, hub *Hub, topic string, load Loader[T]) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		topic:   topic,
		updates: make(chan Snapshot[T]),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.loading.Store(true)

	// Listen before the first load so a change committed during it still
	// triggers a reload.
	signal, unlisten := hub.Listen(topic)
	go s.run(ctx, signal, unlisten, load)

	logger.Named("realtime").Debugw("subscription opened", "topic", topic)
	return s
}

func (s *Subscription[T]) run(ctx context.Context, signal <-chan struct{}, unlisten func(), load Loader[T]) {
	defer close(s.done)
	defer close(s.updates)
	defer unlisten()

	if !s.deliver(ctx, load) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-signal:
			if !s.deliver(ctx, load) {
				return
			}
		}
	}
}

func (s *Subscription[T]) deliver(ctx context.Context, load Loader[T]) bool {
	data, err := load(ctx)
	if ctx.Err() != nil {
		return false
	}
	s.loading.Store(false)

	select {
	case s.updates <- Snapshot[T]{Data: data, Err: err}:
		return true
	case <-ctx.Done():
		return false
	}
}

// Updates returns the snapshot channel. It is closed when the subscription ends.
func (s *Subscription[T]) Updates() <-chan Snapshot[T] {
	return s.updates
}

// Loading reports whether the first snapshot is still being loaded.
func (s *Subscription[T]) Loading() bool {
	return s.loading.Load()
}

// Done is closed once the subscription has fully stopped.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Topic returns the topic this subscription listens on.
func (s *Subscription[T]) Topic() string {
	return s.topic
}

// Close stops the subscription and waits for its goroutine to exit. No
// snapshot is delivered after Close returns. Close is idempotent.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.cancel()
		logger.Named("realtime").Debugw("subscription closed", "topic", s.topic)
	})
	<-s.done
}
