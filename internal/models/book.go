package models

// BudgetBook is a monthly container for entries. TotalIncome and
// TotalExpense are running sums in minor currency units, kept equal to the
// sum of the book's entries by the ledger and never written directly.
type BudgetBook struct {
	Base
	UserID       string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name         string          `gorm:"not null" json:"name"`
	Month        int             `gorm:"not null" json:"month"`
	Year         int             `gorm:"not null" json:"year"`
	Currency     string          `gorm:"size:3" json:"currency,omitempty"`
	TotalIncome  int64           `gorm:"not null;default:0" json:"total_income"`
	TotalExpense int64           `gorm:"not null;default:0" json:"total_expense"`
	Categories   CategoryCatalog `gorm:"type:text;not null" json:"categories"`

	Entries []BudgetEntry `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE" json:"-"`
}

// Balance is income minus expense.
func (b *BudgetBook) Balance() int64 {
	return b.TotalIncome - b.TotalExpense
}
