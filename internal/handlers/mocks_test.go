package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"pocketledger/internal/logger"
	"pocketledger/internal/models"
	"pocketledger/internal/pagination"
	"pocketledger/internal/realtime"
	"pocketledger/internal/services"
	"pocketledger/internal/validator"
)

// --- mock services ---

type mockUserService struct {
	createUserFn            func(email, password, displayName string) (*models.User, error)
	getUserByEmailFn        func(email string) (*models.User, error)
	getUserByIDFn           func(id string) (*models.User, error)
	attemptLoginFn          func(email, password string) (*models.User, error)
	updateProfileFn         func(userID, displayName string) (*models.User, error)
	uploadAvatarFn          func(userID, contentType string, r io.Reader) (*models.User, error)
	storeRefreshTokenHashFn func(userID, tokenHash string) error
	getRefreshTokenHashFn   func(userID string) (string, error)
}

func (m *mockUserService) CreateUser(_ context.Context, email, password, displayName string) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(email, password, displayName)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if m.getUserByEmailFn != nil {
		return m.getUserByEmailFn(email)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{Base: models.Base{ID: id}}, nil
}

func (m *mockUserService) VerifyPassword(_ *models.User, _ string) bool { return true }

func (m *mockUserService) AttemptLogin(_ context.Context, email, password string) (*models.User, error) {
	if m.attemptLoginFn != nil {
		return m.attemptLoginFn(email, password)
	}
	return &models.User{}, nil
}

func (m *mockUserService) UpdateProfile(_ context.Context, userID, displayName string) (*models.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(userID, displayName)
	}
	return &models.User{Base: models.Base{ID: userID}, DisplayName: displayName}, nil
}

func (m *mockUserService) UploadAvatar(_ context.Context, userID, contentType string, r io.Reader) (*models.User, error) {
	if m.uploadAvatarFn != nil {
		return m.uploadAvatarFn(userID, contentType, r)
	}
	return &models.User{Base: models.Base{ID: userID}}, nil
}

func (m *mockUserService) StoreRefreshTokenHash(_ context.Context, userID, tokenHash string) error {
	if m.storeRefreshTokenHashFn != nil {
		return m.storeRefreshTokenHashFn(userID, tokenHash)
	}
	return nil
}

func (m *mockUserService) GetRefreshTokenHash(_ context.Context, userID string) (string, error) {
	if m.getRefreshTokenHashFn != nil {
		return m.getRefreshTokenHashFn(userID)
	}
	return "", nil
}

type mockBookService struct {
	createBookFn     func(userID, name string, month, year int, currency string) (*models.BudgetBook, error)
	getBookFn        func(userID, bookID string) (*models.BudgetBook, error)
	listBooksFn      func(userID string) ([]models.BudgetBook, error)
	updateBookFn     func(userID, bookID string, update services.BookUpdate) (*models.BudgetBook, error)
	deleteBookFn     func(userID, bookID string) error
	addCategoryFn    func(userID, bookID string, t models.EntryType, cat models.Category) (*models.BudgetBook, error)
	updateCategoryFn func(userID, bookID string, t models.EntryType, categoryID string, patch services.CategoryPatch) (*models.BudgetBook, error)
	removeCategoryFn func(userID, bookID string, t models.EntryType, categoryID string) (*models.BudgetBook, error)
	subscribeFn      func(ctx context.Context, userID string) (*realtime.Subscription[[]models.BudgetBook], error)
}

func (m *mockBookService) CreateBook(_ context.Context, userID, name string, month, year int, currency string) (*models.BudgetBook, error) {
	if m.createBookFn != nil {
		return m.createBookFn(userID, name, month, year, currency)
	}
	return &models.BudgetBook{}, nil
}

func (m *mockBookService) GetBook(_ context.Context, userID, bookID string) (*models.BudgetBook, error) {
	if m.getBookFn != nil {
		return m.getBookFn(userID, bookID)
	}
	return &models.BudgetBook{Base: models.Base{ID: bookID}, UserID: userID}, nil
}

func (m *mockBookService) ListBooks(_ context.Context, userID string) ([]models.BudgetBook, error) {
	if m.listBooksFn != nil {
		return m.listBooksFn(userID)
	}
	return []models.BudgetBook{}, nil
}

func (m *mockBookService) UpdateBook(_ context.Context, userID, bookID string, update services.BookUpdate) (*models.BudgetBook, error) {
	if m.updateBookFn != nil {
		return m.updateBookFn(userID, bookID, update)
	}
	return &models.BudgetBook{Base: models.Base{ID: bookID}}, nil
}

func (m *mockBookService) DeleteBook(_ context.Context, userID, bookID string) error {
	if m.deleteBookFn != nil {
		return m.deleteBookFn(userID, bookID)
	}
	return nil
}

func (m *mockBookService) AddCategory(_ context.Context, userID, bookID string, t models.EntryType, cat models.Category) (*models.BudgetBook, error) {
	if m.addCategoryFn != nil {
		return m.addCategoryFn(userID, bookID, t, cat)
	}
	return &models.BudgetBook{Base: models.Base{ID: bookID}}, nil
}

func (m *mockBookService) UpdateCategory(_ context.Context, userID, bookID string, t models.EntryType, categoryID string, patch services.CategoryPatch) (*models.BudgetBook, error) {
	if m.updateCategoryFn != nil {
		return m.updateCategoryFn(userID, bookID, t, categoryID, patch)
	}
	return &models.BudgetBook{Base: models.Base{ID: bookID}}, nil
}

func (m *mockBookService) RemoveCategory(_ context.Context, userID, bookID string, t models.EntryType, categoryID string) (*models.BudgetBook, error) {
	if m.removeCategoryFn != nil {
		return m.removeCategoryFn(userID, bookID, t, categoryID)
	}
	return &models.BudgetBook{Base: models.Base{ID: bookID}}, nil
}

func (m *mockBookService) SubscribeBooks(ctx context.Context, userID string) (*realtime.Subscription[[]models.BudgetBook], error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, userID)
	}
	return realtime.Subscribe(ctx, realtime.NewHub(), realtime.BooksTopic(userID), func(context.Context) ([]models.BudgetBook, error) {
		return []models.BudgetBook{}, nil
	}), nil
}

type mockLedgerService struct {
	addEntryFn    func(userID string, entry services.NewEntry) (*models.BudgetEntry, error)
	deleteEntryFn func(userID, entryID string, expect *services.DeleteEntryExpectation) error
	getEntryFn    func(userID, entryID string) (*models.BudgetEntry, error)
	listEntriesFn func(userID, bookID string, page pagination.PageRequest) (*pagination.PageResponse[models.BudgetEntry], error)
	allEntriesFn  func(userID, bookID string) ([]models.BudgetEntry, error)
	subscribeFn   func(ctx context.Context, userID, bookID string) (*realtime.Subscription[[]models.BudgetEntry], error)
}

func (m *mockLedgerService) AddEntry(_ context.Context, userID string, entry services.NewEntry) (*models.BudgetEntry, error) {
	if m.addEntryFn != nil {
		return m.addEntryFn(userID, entry)
	}
	return &models.BudgetEntry{}, nil
}

func (m *mockLedgerService) DeleteEntry(_ context.Context, userID, entryID string, expect *services.DeleteEntryExpectation) error {
	if m.deleteEntryFn != nil {
		return m.deleteEntryFn(userID, entryID, expect)
	}
	return nil
}

func (m *mockLedgerService) GetEntry(_ context.Context, userID, entryID string) (*models.BudgetEntry, error) {
	if m.getEntryFn != nil {
		return m.getEntryFn(userID, entryID)
	}
	return &models.BudgetEntry{ID: entryID}, nil
}

func (m *mockLedgerService) ListEntries(_ context.Context, userID, bookID string, page pagination.PageRequest) (*pagination.PageResponse[models.BudgetEntry], error) {
	if m.listEntriesFn != nil {
		return m.listEntriesFn(userID, bookID, page)
	}
	resp := pagination.NewPageResponse[models.BudgetEntry](nil, 1, pagination.DefaultPageSize, 0)
	return &resp, nil
}

func (m *mockLedgerService) AllEntries(_ context.Context, userID, bookID string) ([]models.BudgetEntry, error) {
	if m.allEntriesFn != nil {
		return m.allEntriesFn(userID, bookID)
	}
	return []models.BudgetEntry{}, nil
}

func (m *mockLedgerService) SubscribeEntries(ctx context.Context, userID, bookID string) (*realtime.Subscription[[]models.BudgetEntry], error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, userID, bookID)
	}
	return realtime.Subscribe(ctx, realtime.NewHub(), realtime.EntriesTopic(bookID), func(context.Context) ([]models.BudgetEntry, error) {
		return []models.BudgetEntry{}, nil
	}), nil
}

type auditRecord struct {
	UserID, Action, ResourceType, ResourceID string
}

type mockAuditService struct {
	mu      sync.Mutex
	records []auditRecord
}

func (m *mockAuditService) Log(_ context.Context, userID, action, resourceType, resourceID, _ string, _ map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, auditRecord{userID, action, resourceType, resourceID})
}

func (m *mockAuditService) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Action)
	}
	return out
}

// --- test helpers ---

const (
	testUserID  = "0190a0b1-2c3d-7e4f-8a5b-6c7d8e9f0a1b"
	testBookID  = "0190a0b1-2c3d-7e4f-8a5b-000000000b01"
	testEntryID = "0190a0b1-2c3d-7e4f-8a5b-000000000e01"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}
