package server

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pocketledger/internal/testutil"
)

func TestHealth(t *testing.T) {
	app := setupApp(t)
	rec := app.request(http.MethodGet, "/api/health", "", "")
	expect(t, rec, http.StatusOK)
	if parseJSON(t, rec)["status"] != "ok" {
		t.Errorf("unexpected health body %s", rec.Body.String())
	}
}

func TestAuthFlow_RegisterLoginProfileRefreshLogout(t *testing.T) {
	app := setupApp(t)

	// Step 1: Register
	accessToken, refreshToken, userID := app.registerUser(t, "auth@test.com", "password123")
	if accessToken == "" || refreshToken == "" || userID == "" {
		t.Fatal("expected tokens and id from registration")
	}

	// Step 2: Profile with access token, rejected without one
	rec := app.request(http.MethodGet, "/api/v1/profile", "", accessToken)
	expect(t, rec, http.StatusOK)
	rec = app.request(http.MethodGet, "/api/v1/profile", "", "")
	expect(t, rec, http.StatusUnauthorized)

	// Step 3: Wrong password then login
	rec = app.request(http.MethodPost, "/api/v1/auth/login", `{"email":"auth@test.com","password":"wrongpass1"}`, "")
	expect(t, rec, http.StatusUnauthorized)
	rec = app.request(http.MethodPost, "/api/v1/auth/login", `{"email":"auth@test.com","password":"password123"}`, "")
	expect(t, rec, http.StatusOK)
	loginRefresh := parseJSON(t, rec)["refresh_token"].(string)

	// Step 4: Refresh
	rec = app.request(http.MethodPost, "/api/v1/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, loginRefresh), "")
	expect(t, rec, http.StatusOK)
	newAccess := parseJSON(t, rec)["access_token"].(string)

	// Step 5: Logout revokes the refresh token and closes the session
	if _, ok := app.Sessions.Get(userID); !ok {
		t.Fatal("expected an open session after login")
	}
	rec = app.request(http.MethodPost, "/api/v1/auth/logout", "", newAccess)
	expect(t, rec, http.StatusNoContent)
	if _, ok := app.Sessions.Get(userID); ok {
		t.Error("expected session closed after logout")
	}
	rec = app.request(http.MethodPost, "/api/v1/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, loginRefresh), "")
	expect(t, rec, http.StatusUnauthorized)
}

func TestLedgerFlow_TotalsFollowEntries(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "ledger@test.com", "password123")
	bookID := app.createBook(t, token, 3, 2024)

	// Add income 100 and expense 40
	incomeID := app.addEntry(t, token, bookID, "income", 100, "Salary")
	expenseID := app.addEntry(t, token, bookID, "expense", 40, "Food")
	testutil.AssertTotals(t, app.DB, bookID, 100, 40)

	income, expense, balance := app.bookTotals(t, token, bookID)
	if income != 100 || expense != 40 || balance != 60 {
		t.Errorf("expected 100/40/60, got %.0f/%.0f/%.0f", income, expense, balance)
	}

	// A rejected amount leaves no trace
	rec := app.request(http.MethodPost, "/api/v1/entries",
		fmt.Sprintf(`{"book_id":%q,"type":"expense","amount":0,"category":"Food"}`, bookID), token)
	expect(t, rec, http.StatusBadRequest)
	testutil.AssertTotals(t, app.DB, bookID, 100, 40)

	// Totals cannot be written through the book
	rec = app.request(http.MethodPut, "/api/v1/books/"+bookID, `{"total_income":999}`, token)
	expect(t, rec, http.StatusBadRequest)

	// A stale expectation is refused
	rec = app.request(http.MethodDelete, "/api/v1/entries/"+expenseID,
		fmt.Sprintf(`{"book_id":%q,"amount":41,"type":"expense"}`, bookID), token)
	expect(t, rec, http.StatusConflict)
	testutil.AssertTotals(t, app.DB, bookID, 100, 40)

	// Delete both entries
	rec = app.request(http.MethodDelete, "/api/v1/entries/"+expenseID,
		fmt.Sprintf(`{"book_id":%q,"amount":40,"type":"expense"}`, bookID), token)
	expect(t, rec, http.StatusNoContent)
	rec = app.request(http.MethodDelete, "/api/v1/entries/"+incomeID, "", token)
	expect(t, rec, http.StatusNoContent)
	testutil.AssertTotals(t, app.DB, bookID, 0, 0)

	// Deleting again is not found
	rec = app.request(http.MethodDelete, "/api/v1/entries/"+incomeID, "", token)
	expect(t, rec, http.StatusNotFound)
}

func TestBookFlow_OwnershipAndCascade(t *testing.T) {
	app := setupApp(t)
	owner, _, _ := app.registerUser(t, "owner@test.com", "password123")
	other, _, _ := app.registerUser(t, "other@test.com", "password123")

	bookID := app.createBook(t, owner, 4, 2024)
	app.addEntry(t, owner, bookID, "expense", 25, "Transport")
	app.addEntry(t, owner, bookID, "expense", 75, "Food")

	// Another user sees nothing
	rec := app.request(http.MethodGet, "/api/v1/books/"+bookID, "", other)
	expect(t, rec, http.StatusNotFound)
	rec = app.request(http.MethodPost, "/api/v1/entries",
		fmt.Sprintf(`{"book_id":%q,"type":"expense","amount":5,"category":"Food"}`, bookID), other)
	expect(t, rec, http.StatusNotFound)
	rec = app.request(http.MethodDelete, "/api/v1/books/"+bookID, "", other)
	expect(t, rec, http.StatusNotFound)

	// Report over the book
	rec = app.request(http.MethodGet, "/api/v1/books/"+bookID+"/report?view=expense", "", owner)
	expect(t, rec, http.StatusOK)
	report := parseJSON(t, rec)
	if report["total_expense"] != float64(100) {
		t.Errorf("expected expense 100 in report, got %v", report["total_expense"])
	}

	// Delete cascades to entries
	rec = app.request(http.MethodDelete, "/api/v1/books/"+bookID, "", owner)
	expect(t, rec, http.StatusNoContent)

	income, expense := testutil.SumEntries(t, app.DB, bookID)
	if income != 0 || expense != 0 {
		t.Errorf("expected no entries left, got %d/%d", income, expense)
	}
	rec = app.request(http.MethodGet, "/api/v1/books", "", owner)
	expect(t, rec, http.StatusOK)
	if list := parseJSON(t, rec)["books"].([]interface{}); len(list) != 0 {
		t.Errorf("expected empty book list, got %v", list)
	}
}

func TestCategoryFlow(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "cats@test.com", "password123")
	bookID := app.createBook(t, token, 5, 2024)

	rec := app.request(http.MethodPost, "/api/v1/books/"+bookID+"/categories", `{"type":"expense","name":"  Coffee "}`, token)
	expect(t, rec, http.StatusCreated)
	book := parseJSON(t, rec)["book"].(map[string]interface{})
	expense := book["categories"].(map[string]interface{})["expense"].([]interface{})
	added := expense[len(expense)-1].(map[string]interface{})
	if added["name"] != "Coffee" || added["color"] != "#ccc" {
		t.Errorf("expected trimmed name and placeholder color, got %v", added)
	}
	catID := added["id"].(string)
	if !strings.HasPrefix(catID, "exp-") {
		t.Errorf("expected exp- prefixed id, got %s", catID)
	}

	rec = app.request(http.MethodPost, "/api/v1/books/"+bookID+"/categories", `{"type":"expense","name":"coffee"}`, token)
	expect(t, rec, http.StatusConflict)

	rec = app.request(http.MethodPut, "/api/v1/books/"+bookID+"/categories/"+catID, `{"type":"expense","color":"#663300"}`, token)
	expect(t, rec, http.StatusOK)

	rec = app.request(http.MethodDelete, "/api/v1/books/"+bookID+"/categories/"+catID+"?type=expense", "", token)
	expect(t, rec, http.StatusOK)
	rec = app.request(http.MethodDelete, "/api/v1/books/"+bookID+"/categories/"+catID+"?type=expense", "", token)
	expect(t, rec, http.StatusNotFound)
}

func TestLegacyBookFlow(t *testing.T) {
	app := setupApp(t)
	token, _, userID := app.registerUser(t, "legacy@test.com", "password123")
	book := testutil.CreateLegacyBook(t, app.DB, userID, `{"income":["Salary"],"expense":["Food","Rent"]}`)

	rec := app.request(http.MethodGet, "/api/v1/books/"+book.ID, "", token)
	expect(t, rec, http.StatusOK)
	cats := parseJSON(t, rec)["book"].(map[string]interface{})["categories"].(map[string]interface{})
	first := cats["expense"].([]interface{})[0].(map[string]interface{})
	if first["id"] != "exp-legacy-0" || first["icon"] != "pricetag-outline" || first["color"] != "#ccc" {
		t.Errorf("unexpected normalized legacy category %v", first)
	}
}

func TestStreamFlow_BooksStreamSeesChanges(t *testing.T) {
	app := setupApp(t)
	token, _, userID := app.registerUser(t, "stream@test.com", "password123")

	// Create a book once the stream has subscribed.
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if sess, ok := app.Sessions.Get(userID); ok && sess.ActiveSubscriptions() > 0 {
				app.request(http.MethodPost, "/api/v1/books", `{"name":"Budget 6/2024","month":6,"year":2024}`, token)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/books/stream?access_token="+token, http.NoBody).WithContext(ctx)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	expect(t, rec, http.StatusOK)
	events := strings.Count(rec.Body.String(), "event:books")
	if events < 2 {
		t.Fatalf("expected initial and post-create snapshots, got %d: %s", events, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Budget 6/2024") {
		t.Errorf("expected the new book in a snapshot, got %s", rec.Body.String())
	}
}

func TestAvatarFlow(t *testing.T) {
	app := setupApp(t)
	token, _, userID := app.registerUser(t, "avatar@test.com", "password123")

	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="avatar"; filename="me.png"`)
	h.Set("Content-Type", "image/png")
	part, _ := mw.CreatePart(h)
	_, _ = part.Write(png)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/profile/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	expect(t, rec, http.StatusOK)

	user := parseJSON(t, rec)["user"].(map[string]interface{})
	if !strings.HasSuffix(user["photo_url"].(string), "/avatars/"+userID) {
		t.Errorf("unexpected photo url %v", user["photo_url"])
	}
	stored, err := os.ReadFile(filepath.Join(app.BlobDir, "avatars", userID))
	if err != nil {
		t.Fatalf("expected avatar on disk: %v", err)
	}
	if !bytes.Equal(stored, png) {
		t.Error("stored avatar differs from upload")
	}

	rec = app.request(http.MethodGet, "/blobs/avatars/"+userID, "", "")
	expect(t, rec, http.StatusOK)
}
