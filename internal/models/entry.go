package models

import (
	"time"

	"pocketledger/internal/uuid"

	"gorm.io/gorm"
)

// EntryType represents the direction of a budget entry
type EntryType string

const (
	EntryTypeIncome  EntryType = "income"
	EntryTypeExpense EntryType = "expense"
)

// Valid reports whether t is income or expense.
func (t EntryType) Valid() bool {
	return t == EntryTypeIncome || t == EntryTypeExpense
}

// TotalColumn is the budget_books column that accumulates entries of type t.
func (t EntryType) TotalColumn() string {
	if t == EntryTypeIncome {
		return "total_income"
	}
	return "total_expense"
}

// BudgetEntry is a single income or expense transaction in a book. Entries
// are never edited in place; amending one is a delete followed by a create.
type BudgetEntry struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	BookID      string    `gorm:"type:uuid;not null;index" json:"book_id"`
	Type        EntryType `gorm:"not null" json:"type"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Category    string    `gorm:"not null" json:"category"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `gorm:"not null;index" json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new entries
func (e *BudgetEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New()
	}
	return nil
}
