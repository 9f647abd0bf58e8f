package services

import (
	"context"
	"io"
	"time"

	"pocketledger/internal/models"
	"pocketledger/internal/pagination"
	"pocketledger/internal/realtime"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(ctx context.Context, email, password, displayName string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(ctx context.Context, email, password string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID, displayName string) (*models.User, error)
	UploadAvatar(ctx context.Context, userID, contentType string, r io.Reader) (*models.User, error)
	StoreRefreshTokenHash(ctx context.Context, userID, tokenHash string) error
	GetRefreshTokenHash(ctx context.Context, userID string) (string, error)
}

// BookUpdate lists the book fields a caller may change. Nil means unchanged.
// Totals are deliberately absent: only the ledger moves them.
type BookUpdate struct {
	Name       *string
	Currency   *string
	Categories *models.CategoryCatalog
}

// CategoryPatch lists the category fields to change. Nil means unchanged.
type CategoryPatch struct {
	Name  *string
	Icon  *string
	Color *string
}

// BookServicer owns budget books, their category catalogs and the live book list.
type BookServicer interface {
	CreateBook(ctx context.Context, userID, name string, month, year int, currency string) (*models.BudgetBook, error)
	GetBook(ctx context.Context, userID, bookID string) (*models.BudgetBook, error)
	ListBooks(ctx context.Context, userID string) ([]models.BudgetBook, error)
	UpdateBook(ctx context.Context, userID, bookID string, update BookUpdate) (*models.BudgetBook, error)
	DeleteBook(ctx context.Context, userID, bookID string) error
	AddCategory(ctx context.Context, userID, bookID string, entryType models.EntryType, category models.Category) (*models.BudgetBook, error)
	UpdateCategory(ctx context.Context, userID, bookID string, entryType models.EntryType, categoryID string, patch CategoryPatch) (*models.BudgetBook, error)
	RemoveCategory(ctx context.Context, userID, bookID string, entryType models.EntryType, categoryID string) (*models.BudgetBook, error)
	SubscribeBooks(ctx context.Context, userID string) (*realtime.Subscription[[]models.BudgetBook], error)
}

// NewEntry holds the fields of an entry to record.
type NewEntry struct {
	BookID      string
	Type        models.EntryType
	Amount      int64
	Category    string
	Description string
	Date        time.Time
}

// DeleteEntryExpectation is the caller's copy of the entry being deleted.
// When supplied, the delete is refused with a conflict if the stored entry
// no longer matches it.
type DeleteEntryExpectation struct {
	BookID string
	Amount int64
	Type   models.EntryType
}

// LedgerServicer owns budget entries and the running totals of their books.
type LedgerServicer interface {
	AddEntry(ctx context.Context, userID string, entry NewEntry) (*models.BudgetEntry, error)
	DeleteEntry(ctx context.Context, userID, entryID string, expect *DeleteEntryExpectation) error
	GetEntry(ctx context.Context, userID, entryID string) (*models.BudgetEntry, error)
	ListEntries(ctx context.Context, userID, bookID string, page pagination.PageRequest) (*pagination.PageResponse[models.BudgetEntry], error)
	AllEntries(ctx context.Context, userID, bookID string) ([]models.BudgetEntry, error)
	SubscribeEntries(ctx context.Context, userID, bookID string) (*realtime.Subscription[[]models.BudgetEntry], error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}
