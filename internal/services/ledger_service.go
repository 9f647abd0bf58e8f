package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pocketledger/internal/clock"
	apperrors "pocketledger/internal/errors"
	"pocketledger/internal/logger"
	"pocketledger/internal/models"
	"pocketledger/internal/pagination"
	"pocketledger/internal/realtime"
)

const maxDescriptionLen = 500

// ledgerService records entries and keeps book totals equal to the sum of
// their entries. Totals only ever move by relative increments inside the
// same transaction as the entry write.
type ledgerService struct {
	db    *gorm.DB
	hub   *realtime.Hub
	clock clock.Clock
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB, hub *realtime.Hub, clk clock.Clock) LedgerServicer {
	return &ledgerService{db: db, hub: hub, clock: clk}
}

// AddEntry inserts an entry and increments the matching book total as one
// atomic unit.
func (s *ledgerService) AddEntry(ctx context.Context, userID string, in NewEntry) (*models.BudgetEntry, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	if !in.Type.Valid() {
		return nil, apperrors.ErrInvalidEntryType
	}
	if in.Amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "category is required")
	}
	description := strings.TrimSpace(in.Description)
	if len(description) > maxDescriptionLen {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "description is too long")
	}

	now := s.clock.Now()
	date := in.Date
	if date.IsZero() {
		date = now
	}

	entry := &models.BudgetEntry{
		BookID:      in.BookID,
		Type:        in.Type,
		Amount:      in.Amount,
		Category:    category,
		Description: description,
		Date:        date.UTC(),
		CreatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireOwnedBook(tx, userID, in.BookID); err != nil {
			return err
		}
		if err := tx.Create(entry).Error; err != nil {
			return apperrors.Backend(err)
		}
		return adjustTotals(tx, in.BookID, in.Type, in.Amount, now)
	})
	if err != nil {
		return nil, err
	}

	s.hub.Notify(realtime.EntriesTopic(in.BookID), realtime.BooksTopic(userID))
	return entry, nil
}

// DeleteEntry removes an entry and decrements the matching book total as
// one atomic unit. The amount, type and book are read from the stored row
// inside the transaction. If expect is given and disagrees with the stored
// row the delete is refused with ErrConflict.
func (s *ledgerService) DeleteEntry(ctx context.Context, userID, entryID string, expect *DeleteEntryExpectation) error {
	if userID == "" {
		return apperrors.ErrAuthRequired
	}

	var deleted models.BudgetEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := findOwnedEntry(tx.Clauses(clause.Locking{Strength: "UPDATE"}), userID, entryID)
		if err != nil {
			return err
		}
		if expect != nil && (expect.BookID != entry.BookID || expect.Amount != entry.Amount || expect.Type != entry.Type) {
			logger.Get().Warnw("stale entry delete refused",
				"entry_id", entryID,
				"expected_amount", expect.Amount,
				"stored_amount", entry.Amount,
				"expected_type", expect.Type,
				"stored_type", entry.Type,
			)
			return apperrors.WithMessage(apperrors.ErrConflict, "Entry has changed since it was loaded")
		}

		res := tx.Where("id = ?", entry.ID).Delete(&models.BudgetEntry{})
		if res.Error != nil {
			return apperrors.Backend(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrEntryNotFound
		}
		deleted = *entry
		return adjustTotals(tx, entry.BookID, entry.Type, -entry.Amount, s.clock.Now())
	})
	if err != nil {
		return err
	}

	s.hub.Notify(realtime.EntriesTopic(deleted.BookID), realtime.BooksTopic(userID))
	return nil
}

// GetEntry returns an entry whose book belongs to userID.
func (s *ledgerService) GetEntry(ctx context.Context, userID, entryID string) (*models.BudgetEntry, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	return findOwnedEntry(s.db.WithContext(ctx), userID, entryID)
}

// ListEntries returns one page of a book's entries, newest date first.
func (s *ledgerService) ListEntries(ctx context.Context, userID, bookID string, page pagination.PageRequest) (*pagination.PageResponse[models.BudgetEntry], error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	page.Defaults()
	db := s.db.WithContext(ctx)
	if err := requireOwnedBook(db, userID, bookID); err != nil {
		return nil, err
	}

	var total int64
	if err := db.Model(&models.BudgetEntry{}).Where("book_id = ?", bookID).Count(&total).Error; err != nil {
		return nil, apperrors.Backend(err)
	}

	var entries []models.BudgetEntry
	err := db.Where("book_id = ?", bookID).
		Order("date DESC").
		Order("created_at DESC").
		Scopes(pagination.Paginate(page)).
		Find(&entries).Error
	if err != nil {
		return nil, apperrors.Backend(err)
	}

	resp := pagination.NewPageResponse(entries, page.Page, page.PageSize, total)
	return &resp, nil
}

// AllEntries returns every entry of a book, newest date first.
func (s *ledgerService) AllEntries(ctx context.Context, userID, bookID string) ([]models.BudgetEntry, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	db := s.db.WithContext(ctx)
	if err := requireOwnedBook(db, userID, bookID); err != nil {
		return nil, err
	}

	var entries []models.BudgetEntry
	err := db.Where("book_id = ?", bookID).
		Order("date DESC").
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, apperrors.Backend(err)
	}
	if entries == nil {
		entries = []models.BudgetEntry{}
	}
	return entries, nil
}

// SubscribeEntries streams a book's entries, newest date first. Ownership
// is checked before the subscription starts.
func (s *ledgerService) SubscribeEntries(ctx context.Context, userID, bookID string) (*realtime.Subscription[[]models.BudgetEntry], error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	if err := requireOwnedBook(s.db.WithContext(ctx), userID, bookID); err != nil {
		return nil, err
	}
	return realtime.Subscribe(ctx, s.hub, realtime.EntriesTopic(bookID), func(ctx context.Context) ([]models.BudgetEntry, error) {
		return s.AllEntries(ctx, userID, bookID)
	}), nil
}

// adjustTotals applies delta to the book total that accumulates entryType.
// The write is relative so concurrent adjustments commute.
func adjustTotals(tx *gorm.DB, bookID string, entryType models.EntryType, delta int64, now time.Time) error {
	col := entryType.TotalColumn()
	res := tx.Model(&models.BudgetBook{}).Where("id = ?", bookID).Updates(map[string]any{
		col:          gorm.Expr(col+" + ?", delta),
		"updated_at": now,
	})
	if res.Error != nil {
		return apperrors.Backend(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrBookNotFound
	}
	return nil
}

// requireOwnedBook fails with ErrBookNotFound unless userID owns bookID.
func requireOwnedBook(db *gorm.DB, userID, bookID string) error {
	if bookID == "" {
		return apperrors.ErrBookNotFound
	}
	var count int64
	if err := db.Model(&models.BudgetBook{}).Where("id = ? AND user_id = ?", bookID, userID).Count(&count).Error; err != nil {
		return apperrors.Backend(err)
	}
	if count == 0 {
		return apperrors.ErrBookNotFound
	}
	return nil
}

// findOwnedEntry loads an entry whose book belongs to userID.
func findOwnedEntry(db *gorm.DB, userID, entryID string) (*models.BudgetEntry, error) {
	if entryID == "" {
		return nil, apperrors.ErrEntryNotFound
	}
	var entry models.BudgetEntry
	err := db.Where("id = ? AND book_id IN (?)", entryID,
		db.Session(&gorm.Session{NewDB: true}).Model(&models.BudgetBook{}).Select("id").Where("user_id = ?", userID),
	).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrEntryNotFound
		}
		return nil, apperrors.Backend(err)
	}
	return &entry, nil
}
