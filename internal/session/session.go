// Package session holds per-user live state between sign-in and sign-out.
// A Session owns every subscription opened on behalf of its user and tears
// them all down when it is closed.
package session

import (
	"context"
	"sync"
	"time"

	apperrors "pocketledger/internal/errors"
	"pocketledger/internal/logger"
	"pocketledger/internal/models"
	"pocketledger/internal/realtime"
	"pocketledger/internal/services"
)

type closer interface {
	Close()
	Done() <-chan struct{}
}

// Session is the live context of one signed-in user.
type Session struct {
	userID   string
	openedAt time.Time
	books    services.BookServicer
	ledger   services.LedgerServicer

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[uint64]closer
	nextID uint64
	closed bool
}

// Open starts a session for userID.
func Open(userID string, books services.BookServicer, ledger services.LedgerServicer) (*Session, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		userID:   userID,
		openedAt: time.Now(),
		books:    books,
		ledger:   ledger,
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[uint64]closer),
	}, nil
}

// UserID returns the signed-in user.
func (s *Session) UserID() string { return s.userID }

// OpenedAt returns when the session started.
func (s *Session) OpenedAt() time.Time { return s.openedAt }

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// WatchBooks subscribes to the user's book list. The subscription ends when
// ctx is done, when it is closed, or when the session closes.
func (s *Session) WatchBooks(ctx context.Context) (*realtime.Subscription[[]models.BudgetBook], error) {
	subCtx, release, err := s.link(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := s.books.SubscribeBooks(subCtx, s.userID)
	if err != nil {
		release()
		return nil, err
	}
	s.track(sub, release)
	return sub, nil
}

// WatchEntries subscribes to the entries of one of the user's books.
func (s *Session) WatchEntries(ctx context.Context, bookID string) (*realtime.Subscription[[]models.BudgetEntry], error) {
	subCtx, release, err := s.link(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := s.ledger.SubscribeEntries(subCtx, s.userID, bookID)
	if err != nil {
		release()
		return nil, err
	}
	s.track(sub, release)
	return sub, nil
}

// ActiveSubscriptions returns the number of open subscriptions.
func (s *Session) ActiveSubscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close ends every subscription of the session and waits for them to stop.
// Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := make([]closer, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	s.cancel()
	for _, sub := range subs {
		sub.Close()
	}
	logger.Named("session").Debugw("session closed", "user_id", s.userID, "subscriptions", len(subs))
}

// link derives a context that ends with either ctx or the session.
func (s *Session) link(ctx context.Context) (context.Context, func(), error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, nil, apperrors.ErrAuthRequired
	}

	subCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return subCtx, func() {
		stop()
		cancel()
	}, nil
}

// track registers sub until it finishes.
func (s *Session) track(sub closer, release func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		release()
		sub.Close()
		return
	}
	s.nextID++
	id := s.nextID
	s.subs[id] = sub
	s.mu.Unlock()

	go func() {
		<-sub.Done()
		release()
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}()
}
