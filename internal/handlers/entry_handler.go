package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "pocketledger/internal/errors"
	"pocketledger/internal/models"
	"pocketledger/internal/pagination"
	"pocketledger/internal/services"
	"pocketledger/internal/uuid"
)

// EntryHandler handles budget entry requests.
type EntryHandler struct {
	ledgerService services.LedgerServicer
	auditService  services.AuditServicer
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(ledgerService services.LedgerServicer, auditService services.AuditServicer) *EntryHandler {
	return &EntryHandler{ledgerService: ledgerService, auditService: auditService}
}

// CreateEntryRequest represents the request payload for recording an entry.
// Amount is in minor currency units.
type CreateEntryRequest struct {
	BookID      string           `json:"book_id" binding:"required,uuid"`
	Type        models.EntryType `json:"type" binding:"required,entry_type"`
	Amount      int64            `json:"amount" binding:"required,gt=0"`
	Category    string           `json:"category" binding:"required,max=50"`
	Description string           `json:"description" binding:"max=500"`
	Date        *time.Time       `json:"date"`
}

// DeleteEntryRequest is the caller's copy of the entry. When sent, the delete
// is refused with CONFLICT if the stored entry differs.
type DeleteEntryRequest struct {
	BookID string           `json:"book_id" binding:"required,uuid"`
	Amount int64            `json:"amount" binding:"required,gt=0"`
	Type   models.EntryType `json:"type" binding:"required,entry_type"`
}

// CreateEntry records an income or expense and moves the book totals.
// @Summary     Add an entry
// @Tags        entries
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateEntryRequest true "Entry"
// @Success     201 {object} models.BudgetEntry "Entry recorded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Book not found"
// @Router      /entries [post]
func (h *EntryHandler) CreateEntry(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	in := services.NewEntry{
		BookID:      req.BookID,
		Type:        req.Type,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
	}
	if req.Date != nil {
		in.Date = *req.Date
	}

	entry, err := h.ledgerService.AddEntry(c.Request.Context(), userID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditAddEntry, "entry", entry.ID, c.ClientIP(),
		map[string]any{"book_id": entry.BookID, "type": entry.Type, "amount": entry.Amount})

	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

// DeleteEntry removes an entry and reverses its effect on the book totals.
// @Summary     Delete an entry
// @Tags        entries
// @Accept      json
// @Security    BearerAuth
// @Param       id      path string             true  "Entry ID"
// @Param       request body DeleteEntryRequest false "Expected entry"
// @Success     204 "Deleted"
// @Failure     404 {object} ErrorResponse "Entry not found"
// @Failure     409 {object} ErrorResponse "Entry changed since it was read"
// @Router      /entries/{id} [delete]
func (h *EntryHandler) DeleteEntry(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	entryID, err := parsePathID(c, "id", apperrors.ErrEntryNotFound)
	if err != nil {
		respondWithError(c, err)
		return
	}

	// The body is optional; an empty one means no expectation.
	var expect *services.DeleteEntryExpectation
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		var req DeleteEntryRequest
		switch err := c.ShouldBindJSON(&req); {
		case errors.Is(err, io.EOF):
		case err != nil:
			respondWithError(c, bindError(err))
			return
		default:
			bookID, _ := uuid.Parse(req.BookID)
			expect = &services.DeleteEntryExpectation{BookID: bookID, Amount: req.Amount, Type: req.Type}
		}
	}

	if err := h.ledgerService.DeleteEntry(c.Request.Context(), userID, entryID, expect); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditDeleteEntry, "entry", entryID, c.ClientIP(), nil)

	c.Status(http.StatusNoContent)
}

// GetBookEntries lists one page of a book's entries, newest first.
// @Summary     List entries of a book
// @Tags        entries
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Book ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 50, max 100)"
// @Success     200 {object} pagination.PageResponse[models.BudgetEntry] "Paginated entries"
// @Failure     404 {object} ErrorResponse "Book not found"
// @Router      /books/{id}/entries [get]
func (h *EntryHandler) GetBookEntries(c *gin.Context) {
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

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.ledgerService.ListEntries(c.Request.Context(), userID, bookID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
