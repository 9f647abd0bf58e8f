package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Category is one entry of a book's catalog. Name is unique within its list.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

const (
	LegacyIncomeIcon  = "cash-outline"
	LegacyExpenseIcon = "pricetag-outline"
	PlaceholderColor  = "#ccc"
)

// CategoryCatalog holds a book's income and expense categories. It is
// persisted as a single JSON document column.
type CategoryCatalog struct {
	Income  []Category `json:"income"`
	Expense []Category `json:"expense"`
}

// DefaultCatalog returns the categories every new book starts with.
func DefaultCatalog() CategoryCatalog {
	return CategoryCatalog{
		Income: []Category{
			{ID: "inc-1", Name: "Salary", Icon: "cash-outline", Color: "#69F0AE"},
			{ID: "inc-2", Name: "Freelance", Icon: "laptop-outline", Color: "#40C4FF"},
		},
		Expense: []Category{
			{ID: "exp-1", Name: "Food", Icon: "restaurant-outline", Color: "#FF5252"},
			{ID: "exp-2", Name: "Shopping", Icon: "cart-outline", Color: "#E040FB"},
			{ID: "exp-3", Name: "Transport", Icon: "car-outline", Color: "#FFD740"},
		},
	}
}

// storedCategory is a catalog element as found in storage: either a bare
// name written by the first schema version, or a full record.
type storedCategory struct {
	legacyName string
	record     *Category
}

func (s *storedCategory) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.legacyName)
	}
	var c Category
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	s.record = &c
	return nil
}

func (s storedCategory) resolve(t EntryType, index int) Category {
	if s.record != nil {
		return *s.record
	}
	prefix, icon := "exp", LegacyExpenseIcon
	if t == EntryTypeIncome {
		prefix, icon = "inc", LegacyIncomeIcon
	}
	return Category{
		ID:    prefix + "-legacy-" + strconv.Itoa(index),
		Name:  s.legacyName,
		Icon:  icon,
		Color: PlaceholderColor,
	}
}

// UnmarshalJSON decodes both the current and the legacy catalog shapes into
// the canonical one.
func (c *CategoryCatalog) UnmarshalJSON(data []byte) error {
	var doc struct {
		Income  []storedCategory `json:"income"`
		Expense []storedCategory `json:"expense"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	c.Income = resolveAll(doc.Income, EntryTypeIncome)
	c.Expense = resolveAll(doc.Expense, EntryTypeExpense)
	return nil
}

func resolveAll(stored []storedCategory, t EntryType) []Category {
	out := make([]Category, len(stored))
	for i, s := range stored {
		out[i] = s.resolve(t, i)
	}
	return out
}

// MarshalJSON always writes the canonical shape with non-null lists.
func (c CategoryCatalog) MarshalJSON() ([]byte, error) {
	type canonical struct {
		Income  []Category `json:"income"`
		Expense []Category `json:"expense"`
	}
	out := canonical{Income: c.Income, Expense: c.Expense}
	if out.Income == nil {
		out.Income = []Category{}
	}
	if out.Expense == nil {
		out.Expense = []Category{}
	}
	return json.Marshal(out)
}

// Value implements driver.Valuer.
func (c CategoryCatalog) Value() (driver.Value, error) {
	b, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *CategoryCatalog) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = CategoryCatalog{}
		return nil
	case []byte:
		return c.UnmarshalJSON(v)
	case string:
		return c.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported category catalog column type %T", src)
	}
}

// List returns the categories of type t.
func (c *CategoryCatalog) List(t EntryType) []Category {
	if t == EntryTypeIncome {
		return c.Income
	}
	return c.Expense
}

func (c *CategoryCatalog) set(t EntryType, list []Category) {
	if t == EntryTypeIncome {
		c.Income = list
	} else {
		c.Expense = list
	}
}

// IndexOf returns the position of the category with the given id, or -1.
func (c *CategoryCatalog) IndexOf(t EntryType, id string) int {
	for i, cat := range c.List(t) {
		if cat.ID == id {
			return i
		}
	}
	return -1
}

// HasName reports whether another category of type t (ignoring exceptID)
// already uses name. Comparison ignores case and surrounding spaces.
func (c *CategoryCatalog) HasName(t EntryType, name, exceptID string) bool {
	name = strings.TrimSpace(name)
	for _, cat := range c.List(t) {
		if cat.ID != exceptID && strings.EqualFold(strings.TrimSpace(cat.Name), name) {
			return true
		}
	}
	return false
}

// Lookup finds a category of type t by name.
func (c *CategoryCatalog) Lookup(t EntryType, name string) (Category, bool) {
	for _, cat := range c.List(t) {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// Append adds cat to the list of type t.
func (c *CategoryCatalog) Append(t EntryType, cat Category) {
	c.set(t, append(c.List(t), cat))
}

// Replace overwrites the category at index i.
func (c *CategoryCatalog) Replace(t EntryType, i int, cat Category) {
	list := append([]Category(nil), c.List(t)...)
	list[i] = cat
	c.set(t, list)
}

// RemoveAt drops the category at index i.
func (c *CategoryCatalog) RemoveAt(t EntryType, i int) {
	list := c.List(t)
	out := make([]Category, 0, len(list)-1)
	out = append(out, list[:i]...)
	out = append(out, list[i+1:]...)
	c.set(t, out)
}

// DuplicateName returns the first name that appears twice in a list, ignoring case.
func (c *CategoryCatalog) DuplicateName() (string, bool) {
	for _, t := range []EntryType{EntryTypeIncome, EntryTypeExpense} {
		seen := map[string]bool{}
		for _, cat := range c.List(t) {
			key := strings.ToLower(strings.TrimSpace(cat.Name))
			if seen[key] {
				return cat.Name, true
			}
			seen[key] = true
		}
	}
	return "", false
}
