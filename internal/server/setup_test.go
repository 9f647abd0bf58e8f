package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pocketledger/internal/blob"
	"pocketledger/internal/clock"
	"pocketledger/internal/logger"
	"pocketledger/internal/middleware"
	"pocketledger/internal/realtime"
	"pocketledger/internal/services"
	"pocketledger/internal/session"
	"pocketledger/internal/testutil"
	"pocketledger/internal/validator"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// testApp holds the full application stack for flow tests.
type testApp struct {
	DB       *gorm.DB
	Hub      *realtime.Hub
	Sessions *session.Registry
	Router   *gin.Engine
	BlobDir  string
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	hub := realtime.NewHub()
	clk := clock.NewMock(testNow)

	blobDir := t.TempDir()
	blobs, err := blob.NewFSStore(blobDir, "http://localhost:8080/blobs")
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	books := services.NewBookService(db, hub, clk)
	ledger := services.NewLedgerService(db, hub, clk)
	sessions := session.NewRegistry(books, ledger)

	router := NewRouter(Deps{
		Users:          services.NewUserService(db, blobs, clk, 1<<20),
		Books:          books,
		Ledger:         ledger,
		Audit:          services.NewAuditService(db),
		Sessions:       sessions,
		Tokens:         middleware.NewTokens("test-secret", 15*time.Minute, clk),
		Clock:          clk,
		MaxAvatarBytes: 1 << 20,
		BlobDir:        blobDir,
	})

	t.Cleanup(func() {
		sessions.CloseAll()
		testutil.TeardownTestDB(t, db)
	})

	return &testApp{DB: db, Hub: hub, Sessions: sessions, Router: router, BlobDir: blobDir}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// expect fails the test unless rec has the wanted status.
func expect(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// registerUser registers a new user and returns the access token, refresh token, and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (accessToken, refreshToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"display_name":"Test User"}`, email, password)
	rec := app.request(http.MethodPost, "/api/v1/auth/register", body, "")
	expect(t, rec, http.StatusCreated)
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["access_token"].(string), result["refresh_token"].(string), user["id"].(string)
}

// createBook creates a book and returns its id.
func (app *testApp) createBook(t *testing.T, token string, month, year int) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":"Budget %d/%d","month":%d,"year":%d,"currency":"USD"}`, month, year, month, year)
	rec := app.request(http.MethodPost, "/api/v1/books", body, token)
	expect(t, rec, http.StatusCreated)
	return parseJSON(t, rec)["book"].(map[string]interface{})["id"].(string)
}

// addEntry records an entry and returns its id.
func (app *testApp) addEntry(t *testing.T, token, bookID, entryType string, amount int64, category string) string {
	t.Helper()
	body := fmt.Sprintf(`{"book_id":%q,"type":%q,"amount":%d,"category":%q}`, bookID, entryType, amount, category)
	rec := app.request(http.MethodPost, "/api/v1/entries", body, token)
	expect(t, rec, http.StatusCreated)
	return parseJSON(t, rec)["entry"].(map[string]interface{})["id"].(string)
}

// bookTotals fetches a book and returns its income, expense and balance.
func (app *testApp) bookTotals(t *testing.T, token, bookID string) (income, expense, balance float64) {
	t.Helper()
	rec := app.request(http.MethodGet, "/api/v1/books/"+bookID, "", token)
	expect(t, rec, http.StatusOK)
	book := parseJSON(t, rec)["book"].(map[string]interface{})
	return book["total_income"].(float64), book["total_expense"].(float64), book["balance"].(float64)
}
