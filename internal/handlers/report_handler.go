package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pocketledger/internal/clock"
	apperrors "pocketledger/internal/errors"
	"pocketledger/internal/report"
	"pocketledger/internal/services"
)

// ReportHandler serves the computed book detail view.
type ReportHandler struct {
	bookService   services.BookServicer
	ledgerService services.LedgerServicer
	clock         clock.Clock
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(bookService services.BookServicer, ledgerService services.LedgerServicer, clk clock.Clock) *ReportHandler {
	return &ReportHandler{bookService: bookService, ledgerService: ledgerService, clock: clk}
}

// ReportQuery holds the report filters. From and To are calendar days; To
// includes the whole day.
type ReportQuery struct {
	Filter string    `form:"filter" binding:"omitempty,time_filter"`
	From   time.Time `form:"from" time_format:"2006-01-02" time_utc:"1"`
	To     time.Time `form:"to" time_format:"2006-01-02" time_utc:"1"`
	Search string    `form:"search" binding:"max=100"`
	View   string    `form:"view" binding:"omitempty,view_mode"`
}

// GetReport computes totals, the category breakdown and day sections.
// @Summary     Book report
// @Tags        books
// @Produce     json
// @Security    BearerAuth
// @Param       id     path  string true  "Book ID"
// @Param       filter query string false "all, day, week, month or custom"
// @Param       from   query string false "Custom range start (YYYY-MM-DD)"
// @Param       to     query string false "Custom range end (YYYY-MM-DD)"
// @Param       search query string false "Text matched against description and category"
// @Param       view   query string false "balance, income or expense"
// @Success     200 {object} report.Report "Report"
// @Failure     400 {object} ErrorResponse "Invalid filter"
// @Failure     404 {object} ErrorResponse "Book not found"
// @Router      /books/{id}/report [get]
func (h *ReportHandler) GetReport(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	bookID, err := parsePathID(c, "id", apperrors.ErrBookNotFound)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q ReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	opts := report.Options{
		Filter: report.TimeFilter(q.Filter),
		From:   q.From,
		To:     q.To,
		Search: q.Search,
		View:   report.ViewMode(q.View),
		Now:    h.clock.Now().UTC(),
	}
	if !opts.To.IsZero() {
		opts.To = opts.To.Add(24*time.Hour - time.Nanosecond)
	}
	if err := opts.Validate(); err != nil {
		respondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	book, err := h.bookService.GetBook(ctx, userID, bookID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	entries, err := h.ledgerService.AllEntries(ctx, userID, bookID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report.Build(book.Categories, entries, opts))
}
