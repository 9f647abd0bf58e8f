package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "pocketledger/internal/errors"
	"pocketledger/internal/models"
	"pocketledger/internal/realtime"
	"pocketledger/internal/session"
)

func setupStreamRouter(books *mockBookService, ledger *mockLedgerService) (*gin.Engine, *session.Registry) {
	sessions := session.NewRegistry(books, ledger)
	handler := NewStreamHandler(sessions)
	r := gin.New()
	r.Use(injectUserID(testUserID))
	r.GET("/books/stream", handler.StreamBooks)
	r.GET("/books/:id/entries/stream", handler.StreamEntries)
	return r, sessions
}

// serveStream runs a stream request until timeout and returns the recorded body.
func serveStream(r *gin.Engine, path string, timeout time.Duration) *httptest.ResponseRecorder {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody).WithContext(ctx)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestStreamHandler_StreamBooks(t *testing.T) {
	books := &mockBookService{
		subscribeFn: func(ctx context.Context, userID string) (*realtime.Subscription[[]models.BudgetBook], error) {
			return realtime.Subscribe(ctx, realtime.NewHub(), realtime.BooksTopic(userID), func(context.Context) ([]models.BudgetBook, error) {
				return []models.BudgetBook{{Base: models.Base{ID: testBookID}, Name: "March", TotalIncome: 100, TotalExpense: 40}}, nil
			}), nil
		},
	}
	r, sessions := setupStreamRouter(books, &mockLedgerService{})
	defer sessions.CloseAll()

	rec := serveStream(r, "/books/stream", 100*time.Millisecond)
	assertStatus(t, rec, http.StatusOK)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("expected event stream, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event:books") {
		t.Fatalf("expected a books event, got %q", body)
	}
	if !strings.Contains(body, `"balance":60`) {
		t.Errorf("expected balance in payload, got %q", body)
	}

	if _, ok := sessions.Get(testUserID); ok {
		t.Error("expected the stream's session to be dropped after disconnect")
	}
}

func TestStreamHandler_SignedInSessionSurvivesDisconnect(t *testing.T) {
	r, sessions := setupStreamRouter(&mockBookService{}, &mockLedgerService{})
	defer sessions.CloseAll()

	held, err := sessions.Open(testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := serveStream(r, "/books/stream", 100*time.Millisecond)
	assertStatus(t, rec, http.StatusOK)

	sess, ok := sessions.Get(testUserID)
	if !ok || sess != held {
		t.Fatal("expected the signed-in session to stay registered")
	}
	deadline := time.Now().Add(time.Second)
	for sess.ActiveSubscriptions() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := sess.ActiveSubscriptions(); n != 0 {
		t.Errorf("expected subscription released after disconnect, got %d", n)
	}
}

func TestStreamHandler_StreamEntries(t *testing.T) {
	t.Run("unknown book before streaming", func(t *testing.T) {
		ledger := &mockLedgerService{
			subscribeFn: func(context.Context, string, string) (*realtime.Subscription[[]models.BudgetEntry], error) {
				return nil, apperrors.ErrBookNotFound
			},
		}
		r, sessions := setupStreamRouter(&mockBookService{}, ledger)
		defer sessions.CloseAll()

		rec := serveStream(r, "/books/"+testBookID+"/entries/stream", time.Second)
		assertStatus(t, rec, http.StatusNotFound)
		assertErrorCode(t, parseJSON(t, rec), "BOOK_NOT_FOUND")
	})

	t.Run("book deleted while streaming ends the stream", func(t *testing.T) {
		ledger := &mockLedgerService{
			subscribeFn: func(ctx context.Context, _, bookID string) (*realtime.Subscription[[]models.BudgetEntry], error) {
				return realtime.Subscribe(ctx, realtime.NewHub(), realtime.EntriesTopic(bookID), func(context.Context) ([]models.BudgetEntry, error) {
					return nil, apperrors.ErrBookNotFound
				}), nil
			},
		}
		r, sessions := setupStreamRouter(&mockBookService{}, ledger)
		defer sessions.CloseAll()

		start := time.Now()
		rec := serveStream(r, "/books/"+testBookID+"/entries/stream", 5*time.Second)
		if time.Since(start) > 4*time.Second {
			t.Fatal("expected the stream to end on its own")
		}
		body := rec.Body.String()
		if !strings.Contains(body, "event:error") || !strings.Contains(body, "BOOK_NOT_FOUND") {
			t.Errorf("expected error event, got %q", body)
		}
	})

	t.Run("logout ends the stream", func(t *testing.T) {
		r, sessions := setupStreamRouter(&mockBookService{}, &mockLedgerService{})

		go func() {
			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				if sess, ok := sessions.Get(testUserID); ok && sess.ActiveSubscriptions() > 0 {
					sessions.CloseSession(testUserID)
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
		}()

		start := time.Now()
		rec := serveStream(r, "/books/"+testBookID+"/entries/stream", 5*time.Second)
		if time.Since(start) > 4*time.Second {
			t.Fatal("expected logout to end the stream")
		}
		if body := rec.Body.String(); !strings.Contains(body, "event:end") {
			t.Errorf("expected end event, got %q", body)
		}
	})
}
