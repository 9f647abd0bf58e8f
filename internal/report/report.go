// Package report computes the book detail view: time and text filters,
// totals, the category breakdown chart and entries grouped by day. It is a
// pure function of a book's catalog and entries and never touches storage.
package report

import (
	"math"
	"sort"
	"strings"
	"time"

	apperrors "pocketledger/internal/errors"
	"pocketledger/internal/models"
)

// TimeFilter selects which entry dates are included.
type TimeFilter string

const (
	FilterAll    TimeFilter = "all"
	FilterDay    TimeFilter = "day"
	FilterWeek   TimeFilter = "week"
	FilterMonth  TimeFilter = "month"
	FilterCustom TimeFilter = "custom"
)

// ViewMode selects which entry types are shown.
type ViewMode string

const (
	ViewBalance ViewMode = "balance"
	ViewIncome  ViewMode = "income"
	ViewExpense ViewMode = "expense"
)

// Options control a report. Now anchors the day, week and month filters.
type Options struct {
	Filter TimeFilter
	From   time.Time
	To     time.Time
	Search string
	View   ViewMode
	Now    time.Time
}

// Validate fills defaults and checks the custom range.
func (o *Options) Validate() error {
	if o.Filter == "" {
		o.Filter = FilterAll
	}
	if o.View == "" {
		o.View = ViewBalance
	}
	switch o.Filter {
	case FilterAll, FilterDay, FilterWeek, FilterMonth:
	case FilterCustom:
		if o.From.IsZero() || o.To.IsZero() {
			return apperrors.WithMessage(apperrors.ErrValidation, "custom filter needs from and to")
		}
		if o.To.Before(o.From) {
			return apperrors.WithMessage(apperrors.ErrValidation, "from must not be after to")
		}
	default:
		return apperrors.WithMessage(apperrors.ErrValidation, "unknown time filter")
	}
	switch o.View {
	case ViewBalance, ViewIncome, ViewExpense:
	default:
		return apperrors.WithMessage(apperrors.ErrValidation, "unknown view mode")
	}
	return nil
}

// Slice is one category of the breakdown chart.
type Slice struct {
	Category   string `json:"category"`
	Amount     int64  `json:"amount"`
	Percentage int    `json:"percentage"`
	Color      string `json:"color"`
	Icon       string `json:"icon"`
}

// Section groups the entries of one calendar day (YYYY-MM-DD, UTC).
type Section struct {
	Date    string               `json:"date"`
	Entries []models.BudgetEntry `json:"entries"`
}

// Report is the computed detail view of a book.
type Report struct {
	TotalIncome    int64     `json:"total_income"`
	TotalExpense   int64     `json:"total_expense"`
	Balance        int64     `json:"balance"`
	BreakdownType  string    `json:"breakdown_type"`
	BreakdownTotal int64     `json:"breakdown_total"`
	Breakdown      []Slice   `json:"breakdown"`
	Sections       []Section `json:"sections"`
	EntryCount     int       `json:"entry_count"`
}

// Build computes a report. opts must have been validated.
func Build(catalog models.CategoryCatalog, entries []models.BudgetEntry, opts Options) Report {
	filtered := Filter(entries, opts)

	target := models.EntryTypeExpense
	if opts.View == ViewIncome {
		target = models.EntryTypeIncome
	}

	r := Report{
		BreakdownType: string(target),
		Breakdown:     []Slice{},
		Sections:      []Section{},
		EntryCount:    len(filtered),
	}

	sums := map[string]int64{}
	var order []string
	for _, e := range filtered {
		if e.Type == models.EntryTypeIncome {
			r.TotalIncome += e.Amount
		} else {
			r.TotalExpense += e.Amount
		}
		if e.Type != target {
			continue
		}
		if _, seen := sums[e.Category]; !seen {
			order = append(order, e.Category)
		}
		sums[e.Category] += e.Amount
		r.BreakdownTotal += e.Amount
	}
	r.Balance = r.TotalIncome - r.TotalExpense

	lookup := categoryLookup(catalog)
	for _, name := range order {
		amount := sums[name]
		s := Slice{Category: name, Amount: amount, Color: models.PlaceholderColor, Icon: models.DefaultIcon(name)}
		if cat, ok := lookup[name]; ok {
			if cat.Color != "" {
				s.Color = cat.Color
			}
			if cat.Icon != "" {
				s.Icon = cat.Icon
			}
		}
		if r.BreakdownTotal > 0 {
			s.Percentage = int(math.Round(float64(amount) * 100 / float64(r.BreakdownTotal)))
		}
		r.Breakdown = append(r.Breakdown, s)
	}

	r.Sections = GroupByDay(filtered)
	return r
}

// Filter applies the time window, search text and view mode.
func Filter(entries []models.BudgetEntry, opts Options) []models.BudgetEntry {
	query := strings.ToLower(strings.TrimSpace(opts.Search))
	out := make([]models.BudgetEntry, 0, len(entries))
	for _, e := range entries {
		if !matchesTime(e.Date, opts) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(e.Description), query) &&
			!strings.Contains(strings.ToLower(e.Category), query) {
			continue
		}
		if opts.View == ViewIncome && e.Type != models.EntryTypeIncome {
			continue
		}
		if opts.View == ViewExpense && e.Type != models.EntryTypeExpense {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matchesTime(date time.Time, opts Options) bool {
	now := opts.Now
	date = date.In(now.Location())
	switch opts.Filter {
	case FilterDay:
		y1, m1, d1 := date.Date()
		y2, m2, d2 := now.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case FilterWeek:
		return !date.Before(now.AddDate(0, 0, -7))
	case FilterMonth:
		return date.Year() == now.Year() && date.Month() == now.Month()
	case FilterCustom:
		return !date.Before(opts.From) && !date.After(opts.To)
	default:
		return true
	}
}

// GroupByDay splits entries into UTC calendar days, newest day first.
// Entries keep their input order within a day.
func GroupByDay(entries []models.BudgetEntry) []Section {
	index := map[string]int{}
	sections := []Section{}
	for _, e := range entries {
		key := e.Date.UTC().Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			i = len(sections)
			index[key] = i
			sections = append(sections, Section{Date: key})
		}
		sections[i].Entries = append(sections[i].Entries, e)
	}
	sort.SliceStable(sections, func(a, b int) bool {
		return sections[a].Date > sections[b].Date
	})
	return sections
}

// categoryLookup maps names to catalog records. Expense records win over
// income records with the same name.
func categoryLookup(c models.CategoryCatalog) map[string]models.Category {
	lookup := make(map[string]models.Category, len(c.Income)+len(c.Expense))
	for _, cat := range c.Income {
		lookup[cat.Name] = cat
	}
	for _, cat := range c.Expense {
		lookup[cat.Name] = cat
	}
	return lookup
}
