package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"pocketledger/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "password123"

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:       email,
		Password:    string(hash),
		DisplayName: "Test User",
		IsActive:    true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestBook creates a book for the given period with the default catalog
// and zero totals.
func CreateTestBook(t *testing.T, db *gorm.DB, userID string, month, year int) *models.BudgetBook {
	t.Helper()

	book := &models.BudgetBook{
		UserID:     userID,
		Name:       fmt.Sprintf("Book %d", nextID()),
		Month:      month,
		Year:       year,
		Currency:   "USD",
		Categories: models.DefaultCatalog(),
	}
	if err := db.Create(book).Error; err != nil {
		t.Fatalf("failed to create test book: %v", err)
	}
	return book
}

// CreateLegacyBook creates a book whose categories column holds the given
// raw JSON, as written by the first schema version.
func CreateLegacyBook(t *testing.T, db *gorm.DB, userID, rawCategories string) *models.BudgetBook {
	t.Helper()

	book := CreateTestBook(t, db, userID, 1, 2020)
	if err := db.Exec("UPDATE budget_books SET categories = ? WHERE id = ?", rawCategories, book.ID).Error; err != nil {
		t.Fatalf("failed to write legacy categories: %v", err)
	}
	return book
}

// CreateTestEntry inserts an entry and applies its amount to the book totals
// so fixtures respect the totals invariant.
func CreateTestEntry(t *testing.T, db *gorm.DB, bookID string, entryType models.EntryType, amount int64, category string, date time.Time) *models.BudgetEntry {
	t.Helper()

	entry := &models.BudgetEntry{
		BookID:   bookID,
		Type:     entryType,
		Amount:   amount,
		Category: category,
		Date:     date,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		col := entryType.TotalColumn()
		return tx.Model(&models.BudgetBook{}).Where("id = ?", bookID).
			Update(col, gorm.Expr(col+" + ?", amount)).Error
	})
	if err != nil {
		t.Fatalf("failed to create test entry: %v", err)
	}
	return entry
}
