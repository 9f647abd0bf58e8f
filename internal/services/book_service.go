package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pocketledger/internal/clock"
	apperrors "pocketledger/internal/errors"
	"pocketledger/internal/logger"
	"pocketledger/internal/models"
	"pocketledger/internal/realtime"
	"pocketledger/internal/uuid"
	"pocketledger/internal/validator"
)

const (
	maxBookNameLen     = 100
	maxCategoryNameLen = 50
	minYear            = 1970
	maxYear            = 9999
)

// bookService handles budget book business logic.
type bookService struct {
	db    *gorm.DB
	hub   *realtime.Hub
	clock clock.Clock
}

// NewBookService creates a new BookServicer.
func NewBookService(db *gorm.DB, hub *realtime.Hub, clk clock.Clock) BookServicer {
	return &bookService{db: db, hub: hub, clock: clk}
}

// CreateBook creates a book with zero totals and the default categories.
func (s *bookService) CreateBook(ctx context.Context, userID, name string, month, year int, currency string) (*models.BudgetBook, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	name, err := validateBookName(name)
	if err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "month must be between 1 and 12")
	}
	if year < minYear || year > maxYear {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "year is out of range")
	}
	if err := validateCurrency(currency); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	book := &models.BudgetBook{
		Base:       models.Base{CreatedAt: now, UpdatedAt: now},
		UserID:     userID,
		Name:       name,
		Month:      month,
		Year:       year,
		Currency:   currency,
		Categories: models.DefaultCatalog(),
	}
	if err := s.db.WithContext(ctx).Create(book).Error; err != nil {
		return nil, apperrors.Backend(err)
	}

	s.hub.Notify(realtime.BooksTopic(userID))
	return book, nil
}

// GetBook returns a book owned by userID.
func (s *bookService) GetBook(ctx context.Context, userID, bookID string) (*models.BudgetBook, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	return findOwnedBook(s.db.WithContext(ctx), userID, bookID, false)
}

// ListBooks returns the user's books, newest period first.
func (s *bookService) ListBooks(ctx context.Context, userID string) ([]models.BudgetBook, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	var books []models.BudgetBook
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("year DESC").
		Order("month DESC").
		Order("created_at DESC").
		Find(&books).Error
	if err != nil {
		return nil, apperrors.Backend(err)
	}
	if books == nil {
		books = []models.BudgetBook{}
	}
	return books, nil
}

// UpdateBook merges name, currency and categories into a book and refreshes
// updated_at. Totals are never touched here.
func (s *bookService) UpdateBook(ctx context.Context, userID, bookID string, update BookUpdate) (*models.BudgetBook, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}

	updates := map[string]any{"updated_at": s.clock.Now()}
	if update.Name != nil {
		name, err := validateBookName(*update.Name)
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if update.Currency != nil {
		if err := validateCurrency(*update.Currency); err != nil {
			return nil, err
		}
		updates["currency"] = *update.Currency
	}
	if update.Categories != nil {
		catalog, err := normalizeCatalog(*update.Categories)
		if err != nil {
			return nil, err
		}
		updates["categories"] = catalog
	}

	var book *models.BudgetBook
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findOwnedBook(tx, userID, bookID, true); err != nil {
			return err
		}
		if err := tx.Model(&models.BudgetBook{}).Where("id = ?", bookID).Updates(updates).Error; err != nil {
			return apperrors.Backend(err)
		}
		var err error
		book, err = findOwnedBook(tx, userID, bookID, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.hub.Notify(realtime.BooksTopic(userID))
	return book, nil
}

// DeleteBook removes a book and every entry that references it in one
// transaction.
func (s *bookService) DeleteBook(ctx context.Context, userID, bookID string) error {
	if userID == "" {
		return apperrors.ErrAuthRequired
	}

	var removed int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findOwnedBook(tx, userID, bookID, true); err != nil {
			return err
		}

		var entryIDs []string
		if err := tx.Model(&models.BudgetEntry{}).Where("book_id = ?", bookID).Pluck("id", &entryIDs).Error; err != nil {
			return apperrors.Backend(err)
		}
		if len(entryIDs) > 0 {
			if err := tx.Where("id IN ?", entryIDs).Delete(&models.BudgetEntry{}).Error; err != nil {
				return apperrors.Backend(err)
			}
		}
		// Catch entries inserted after the pluck on databases without row locks.
		if err := tx.Where("book_id = ?", bookID).Delete(&models.BudgetEntry{}).Error; err != nil {
			return apperrors.Backend(err)
		}

		res := tx.Where("id = ? AND user_id = ?", bookID, userID).Delete(&models.BudgetBook{})
		if res.Error != nil {
			return apperrors.Backend(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrBookNotFound
		}
		removed = len(entryIDs)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Get().Debugw("book deleted", "book_id", bookID, "entries_removed", removed)
	s.hub.Notify(realtime.BooksTopic(userID), realtime.EntriesTopic(bookID))
	return nil
}

// AddCategory appends a category to the book's list for entryType.
func (s *bookService) AddCategory(ctx context.Context, userID, bookID string, entryType models.EntryType, category models.Category) (*models.BudgetBook, error) {
	if !entryType.Valid() {
		return nil, apperrors.ErrInvalidEntryType
	}
	category, err := normalizeCategory(entryType, category)
	if err != nil {
		return nil, err
	}

	return s.mutateCatalog(ctx, userID, bookID, func(c *models.CategoryCatalog) error {
		if c.HasName(entryType, category.Name, "") {
			return apperrors.WithMessage(apperrors.ErrDuplicateCategory, "Category \""+category.Name+"\" already exists")
		}
		if c.IndexOf(entryType, category.ID) >= 0 {
			return apperrors.WithMessage(apperrors.ErrDuplicateCategory, "Category id already exists")
		}
		c.Append(entryType, category)
		return nil
	})
}

// UpdateCategory edits the name, icon or color of one category.
func (s *bookService) UpdateCategory(ctx context.Context, userID, bookID string, entryType models.EntryType, categoryID string, patch CategoryPatch) (*models.BudgetBook, error) {
	if !entryType.Valid() {
		return nil, apperrors.ErrInvalidEntryType
	}

	return s.mutateCatalog(ctx, userID, bookID, func(c *models.CategoryCatalog) error {
		i := c.IndexOf(entryType, categoryID)
		if i < 0 {
			return apperrors.ErrCategoryNotFound
		}
		cat := c.List(entryType)[i]
		if patch.Name != nil {
			cat.Name = *patch.Name
		}
		if patch.Icon != nil {
			cat.Icon = *patch.Icon
		}
		if patch.Color != nil {
			cat.Color = *patch.Color
		}
		cat, err := normalizeCategory(entryType, cat)
		if err != nil {
			return err
		}
		if c.HasName(entryType, cat.Name, cat.ID) {
			return apperrors.WithMessage(apperrors.ErrDuplicateCategory, "Category \""+cat.Name+"\" already exists")
		}
		c.Replace(entryType, i, cat)
		return nil
	})
}

// RemoveCategory deletes one category. Entries keep their category name.
func (s *bookService) RemoveCategory(ctx context.Context, userID, bookID string, entryType models.EntryType, categoryID string) (*models.BudgetBook, error) {
	if !entryType.Valid() {
		return nil, apperrors.ErrInvalidEntryType
	}

	return s.mutateCatalog(ctx, userID, bookID, func(c *models.CategoryCatalog) error {
		i := c.IndexOf(entryType, categoryID)
		if i < 0 {
			return apperrors.ErrCategoryNotFound
		}
		c.RemoveAt(entryType, i)
		return nil
	})
}

// SubscribeBooks streams the user's ordered book list.
func (s *bookService) SubscribeBooks(ctx context.Context, userID string) (*realtime.Subscription[[]models.BudgetBook], error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}
	return realtime.Subscribe(ctx, s.hub, realtime.BooksTopic(userID), func(ctx context.Context) ([]models.BudgetBook, error) {
		return s.ListBooks(ctx, userID)
	}), nil
}

// mutateCatalog applies fn to the book's catalog under a row lock and
// writes the result back in canonical form.
func (s *bookService) mutateCatalog(ctx context.Context, userID, bookID string, fn func(*models.CategoryCatalog) error) (*models.BudgetBook, error) {
	if userID == "" {
		return nil, apperrors.ErrAuthRequired
	}

	var book *models.BudgetBook
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		book, err = findOwnedBook(tx, userID, bookID, true)
		if err != nil {
			return err
		}
		catalog := book.Categories
		if err := fn(&catalog); err != nil {
			return err
		}

		now := s.clock.Now()
		err = tx.Model(&models.BudgetBook{}).Where("id = ?", bookID).Updates(map[string]any{
			"categories": catalog,
			"updated_at": now,
		}).Error
		if err != nil {
			return apperrors.Backend(err)
		}
		book.Categories = catalog
		book.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hub.Notify(realtime.BooksTopic(userID))
	return book, nil
}

// findOwnedBook loads a book by id and owner, optionally locking the row.
func findOwnedBook(db *gorm.DB, userID, bookID string, lock bool) (*models.BudgetBook, error) {
	if bookID == "" {
		return nil, apperrors.ErrBookNotFound
	}
	if lock {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var book models.BudgetBook
	if err := db.Where("id = ? AND user_id = ?", bookID, userID).First(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBookNotFound
		}
		return nil, apperrors.Backend(err)
	}
	return &book, nil
}

func validateBookName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.WithMessage(apperrors.ErrValidation, "name is required")
	}
	if len(name) > maxBookNameLen {
		return "", apperrors.WithMessage(apperrors.ErrValidation, "name is too long")
	}
	return name, nil
}

func validateCurrency(currency string) error {
	if currency != "" && !validator.IsCurrency(currency) {
		return apperrors.WithMessage(apperrors.ErrValidation, "currency must be an ISO 4217 code")
	}
	return nil
}

// normalizeCategory trims the name and fills in a missing id, icon or color.
func normalizeCategory(entryType models.EntryType, c models.Category) (models.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return c, apperrors.WithMessage(apperrors.ErrValidation, "category name is required")
	}
	if len(c.Name) > maxCategoryNameLen {
		return c, apperrors.WithMessage(apperrors.ErrValidation, "category name is too long")
	}
	if c.ID == "" {
		prefix := "exp-"
		if entryType == models.EntryTypeIncome {
			prefix = "inc-"
		}
		c.ID = prefix + uuid.New()
	}
	if c.Icon == "" {
		c.Icon = models.DefaultIcon(c.Name)
	}
	if c.Color == "" {
		c.Color = models.PlaceholderColor
	}
	if !validator.IsHexColor(c.Color) {
		return c, apperrors.WithMessage(apperrors.ErrValidation, "color must be a hex color")
	}
	return c, nil
}

// normalizeCatalog validates a full replacement catalog.
func normalizeCatalog(in models.CategoryCatalog) (models.CategoryCatalog, error) {
	var out models.CategoryCatalog
	for _, t := range []models.EntryType{models.EntryTypeIncome, models.EntryTypeExpense} {
		list := make([]models.Category, 0, len(in.List(t)))
		for _, c := range in.List(t) {
			c, err := normalizeCategory(t, c)
			if err != nil {
				return out, err
			}
			list = append(list, c)
		}
		if t == models.EntryTypeIncome {
			out.Income = list
		} else {
			out.Expense = list
		}
	}
	if name, dup := out.DuplicateName(); dup {
		return out, apperrors.WithMessage(apperrors.ErrDuplicateCategory, "Category \""+name+"\" appears twice")
	}
	return out, nil
}
