package testutil

import (
	"errors"
	"testing"

	apperrors "pocketledger/internal/errors"
	"pocketledger/internal/models"

	"gorm.io/gorm"
)

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}

	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertTotals reloads a book and checks both running totals, then checks
// them against the sum of the book's entries.
func AssertTotals(t *testing.T, db *gorm.DB, bookID string, wantIncome, wantExpense int64) {
	t.Helper()

	var book models.BudgetBook
	if err := db.First(&book, "id = ?", bookID).Error; err != nil {
		t.Fatalf("failed to reload book %s: %v", bookID, err)
	}
	if book.TotalIncome != wantIncome || book.TotalExpense != wantExpense {
		t.Errorf("expected totals %d/%d, got %d/%d", wantIncome, wantExpense, book.TotalIncome, book.TotalExpense)
	}

	income, expense := SumEntries(t, db, bookID)
	if book.TotalIncome != income || book.TotalExpense != expense {
		t.Errorf("totals %d/%d diverge from entries %d/%d", book.TotalIncome, book.TotalExpense, income, expense)
	}
}

// SumEntries recomputes a book's totals by scanning its entries.
func SumEntries(t *testing.T, db *gorm.DB, bookID string) (income, expense int64) {
	t.Helper()

	var rows []struct {
		Type  models.EntryType
		Total int64
	}
	err := db.Model(&models.BudgetEntry{}).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Where("book_id = ?", bookID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		t.Fatalf("failed to sum entries: %v", err)
	}
	for _, r := range rows {
		if r.Type == models.EntryTypeIncome {
			income = r.Total
		} else {
			expense = r.Total
		}
	}
	return income, expense
}
