package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketledger/internal/clock"
	apperrors "pocketledger/internal/errors"
	"pocketledger/internal/realtime"
	"pocketledger/internal/services"
	"pocketledger/internal/testutil"
)

type fixture struct {
	hub      *realtime.Hub
	books    services.BookServicer
	ledger   services.LedgerServicer
	registry *Registry
	userID   string
	bookID   string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	hub := realtime.NewHub()
	clk := clock.SystemClock{}
	books := services.NewBookService(db, hub, clk)
	ledger := services.NewLedgerService(db, hub, clk)
	user := testutil.CreateTestUser(t, db)
	book := testutil.CreateTestBook(t, db, user.ID, 3, 2024)

	return &fixture{
		hub:      hub,
		books:    books,
		ledger:   ledger,
		registry: NewRegistry(books, ledger),
		userID:   user.ID,
		bookID:   book.ID,
	}
}

func TestOpen_RequiresUser(t *testing.T) {
	_, err := Open("", nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrAuthRequired)
}

func TestSession_CloseTearsDownSubscriptions(t *testing.T) {
	f := setup(t)
	s, err := f.registry.Open(f.userID)
	require.NoError(t, err)

	books, err := s.WatchBooks(context.Background())
	require.NoError(t, err)
	entries, err := s.WatchEntries(context.Background(), f.bookID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.ActiveSubscriptions())

	first := <-books.Updates()
	require.NoError(t, first.Err)
	assert.Len(t, first.Data, 1)

	f.registry.CloseSession(f.userID)

	for _, done := range []<-chan struct{}{books.Done(), entries.Done()} {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("subscription still running after session close")
		}
	}
	assert.Eventually(t, func() bool { return s.ActiveSubscriptions() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.hub.ListenerCount(realtime.BooksTopic(f.userID)))

	_, ok := f.registry.Get(f.userID)
	assert.False(t, ok)

	_, err = s.WatchBooks(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrAuthRequired, "closed session must refuse new subscriptions")
}

func TestSession_SubscriptionEndsWithRequestContext(t *testing.T) {
	f := setup(t)
	s, err := f.registry.Open(f.userID)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := s.WatchBooks(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not end with its context")
	}
	assert.Eventually(t, func() bool { return s.ActiveSubscriptions() == 0 }, 2*time.Second, 10*time.Millisecond)

	select {
	case <-s.Done():
		t.Fatal("session must outlive a single subscription")
	default:
	}
}

func TestSession_WatchEntriesUnknownBook(t *testing.T) {
	f := setup(t)
	s, err := f.registry.Open(f.userID)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.WatchEntries(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrBookNotFound)
	assert.Equal(t, 0, s.ActiveSubscriptions())
}

func TestRegistry(t *testing.T) {
	f := setup(t)

	a, err := f.registry.Open(f.userID)
	require.NoError(t, err)
	b, err := f.registry.Open(f.userID)
	require.NoError(t, err)
	assert.Same(t, a, b, "Open must reuse the live session")
	assert.Equal(t, 1, f.registry.Len())

	_, err = f.registry.Open("")
	assert.ErrorIs(t, err, apperrors.ErrAuthRequired)

	f.registry.CloseAll()
	assert.Equal(t, 0, f.registry.Len())
	select {
	case <-a.Done():
	default:
		t.Fatal("CloseAll must close sessions")
	}

	a.Close()
}

func TestRegistry_Acquire(t *testing.T) {
	t.Run("last lease drops an unheld session", func(t *testing.T) {
		f := setup(t)
		defer f.registry.CloseAll()

		s, release, err := f.registry.Acquire(f.userID)
		require.NoError(t, err)
		same, releaseSecond, err := f.registry.Acquire(f.userID)
		require.NoError(t, err)
		assert.Same(t, s, same)

		sub, err := s.WatchBooks(context.Background())
		require.NoError(t, err)

		release()
		release()
		assert.Equal(t, 1, f.registry.Len(), "a second release of the same lease must be a no-op")

		releaseSecond()
		assert.Equal(t, 0, f.registry.Len())
		select {
		case <-s.Done():
		default:
			t.Fatal("expected the idle session to be closed")
		}
		select {
		case <-sub.Done():
		case <-time.After(time.Second):
			t.Fatal("expected the session's subscription to end")
		}
	})

	t.Run("signed in session outlives its streams", func(t *testing.T) {
		f := setup(t)
		defer f.registry.CloseAll()

		held, err := f.registry.Open(f.userID)
		require.NoError(t, err)
		s, release, err := f.registry.Acquire(f.userID)
		require.NoError(t, err)
		assert.Same(t, held, s)

		release()
		got, ok := f.registry.Get(f.userID)
		require.True(t, ok)
		assert.Same(t, held, got)
	})

	t.Run("sign in during a stream holds the session", func(t *testing.T) {
		f := setup(t)
		defer f.registry.CloseAll()

		_, release, err := f.registry.Acquire(f.userID)
		require.NoError(t, err)
		_, err = f.registry.Open(f.userID)
		require.NoError(t, err)

		release()
		assert.Equal(t, 1, f.registry.Len())
	})

	t.Run("release after logout leaves a new session alone", func(t *testing.T) {
		f := setup(t)
		defer f.registry.CloseAll()

		_, release, err := f.registry.Acquire(f.userID)
		require.NoError(t, err)
		f.registry.CloseSession(f.userID)

		fresh, err := f.registry.Open(f.userID)
		require.NoError(t, err)
		release()

		got, ok := f.registry.Get(f.userID)
		require.True(t, ok)
		assert.Same(t, fresh, got)
	})

	t.Run("requires user", func(t *testing.T) {
		f := setup(t)
		_, _, err := f.registry.Acquire("")
		assert.ErrorIs(t, err, apperrors.ErrAuthRequired)
		assert.Equal(t, 0, f.registry.Len())
	})
}
