package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	apperrors "pocketledger/internal/errors"
	"pocketledger/internal/models"
	"pocketledger/internal/services"
)

// BookHandler handles budget book and category requests.
type BookHandler struct {
	bookService  services.BookServicer
	auditService services.AuditServicer
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(bookService services.BookServicer, auditService services.AuditServicer) *BookHandler {
	return &BookHandler{bookService: bookService, auditService: auditService}
}

// CreateBookRequest represents the request payload for creating a book.
type CreateBookRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Month    int    `json:"month" binding:"required,min=1,max=12"`
	Year     int    `json:"year" binding:"required,min=1970,max=9999"`
	Currency string `json:"currency" binding:"omitempty,iso4217"`
}

// UpdateBookRequest represents the request payload for updating a book.
// Omitted fields are left unchanged.
type UpdateBookRequest struct {
	Name       *string                 `json:"name" binding:"omitempty,min=1,max=100"`
	Currency   *string                 `json:"currency" binding:"omitempty,iso4217"`
	Categories *models.CategoryCatalog `json:"categories"`
}

// CategoryRequest represents the payload for adding a category.
type CategoryRequest struct {
	Type  models.EntryType `json:"type" binding:"required,entry_type"`
	Name  string           `json:"name" binding:"required,max=50"`
	Icon  string           `json:"icon" binding:"max=50"`
	Color string           `json:"color" binding:"omitempty,hex_color"`
}

// UpdateCategoryRequest represents the payload for editing a category.
type UpdateCategoryRequest struct {
	Type  models.EntryType `json:"type" binding:"required,entry_type"`
	Name  *string          `json:"name" binding:"omitempty,max=50"`
	Icon  *string          `json:"icon" binding:"omitempty,max=50"`
	Color *string          `json:"color" binding:"omitempty,hex_color"`
}

// BookResponse is a book with its derived balance.
type BookResponse struct {
	models.BudgetBook
	Balance int64 `json:"balance"`
}

func toBookResponse(b *models.BudgetBook) BookResponse {
	return BookResponse{BudgetBook: *b, Balance: b.Balance()}
}

// readOnlyBookFields are maintained by the ledger and refused in request bodies.
var readOnlyBookFields = []string{"total_income", "total_expense", "balance"}

// rejectTotals binds the body once as a raw map and refuses writes to totals.
// The cached body is reused by the typed binding that follows.
func rejectTotals(c *gin.Context) error {
	var raw map[string]any
	if err := c.ShouldBindBodyWith(&raw, binding.JSON); err != nil {
		return bindError(err)
	}
	for _, field := range readOnlyBookFields {
		if _, ok := raw[field]; ok {
			return apperrors.ErrTotalsReadOnly
		}
	}
	return nil
}

// CreateBook handles the creation of a new budget book.
// @Summary     Create a budget book
// @Description Create a monthly budget book seeded with the default categories
// @Tags        books
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBookRequest true "Book details"
// @Success     201 {object} BookResponse "Book created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /books [post]
func (h *BookHandler) CreateBook(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := rejectTotals(c); err != nil {
		respondWithError(c, err)
		return
	}
	var req CreateBookRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	book, err := h.bookService.CreateBook(c.Request.Context(), userID, req.Name, req.Month, req.Year, req.Currency)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditCreateBook, "book", book.ID, c.ClientIP(),
		map[string]any{"name": req.Name, "month": req.Month, "year": req.Year})

	c.JSON(http.StatusCreated, gin.H{"book": toBookResponse(book)})
}

// GetBooks lists the user's books, newest period first.
// @Summary     List budget books
// @Tags        books
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array}  BookResponse "Books"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /books [get]
func (h *BookHandler) GetBooks(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	books, err := h.bookService.ListBooks(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	out := make([]BookResponse, 0, len(books))
	for i := range books {
		out = append(out, toBookResponse(&books[i]))
	}
	c.JSON(http.StatusOK, gin.H{"books": out})
}

// GetBook returns one book.
// @Summary     Get a budget book
// @Tags        books
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Book ID"
// @Success     200 {object} BookResponse "Book"
// @Failure     404 {object} ErrorResponse "Book not found"
// @Router      /books/{id} [get]
func (h *BookHandler) GetBook(c *gin.Context) {
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

	book, err := h.bookService.GetBook(c.Request.Context(), userID, bookID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"book": toBookResponse(book)})
}

// UpdateBook changes the name, currency or category catalog of a book.
// @Summary     Update a budget book
// @Description Totals cannot be written; they follow the book's entries
// @Tags        books
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Book ID"
// @Param       request body UpdateBookRequest true "Fields to change"
// @Success     200 {object} BookResponse "Updated book"
// @Failure     400 {object} ErrorResponse "Invalid input or totals supplied"
// @Failure     404 {object} ErrorResponse "Book not found"
// @Failure     409 {object} ErrorResponse "Duplicate category"
// @Router      /books/{id} [put]
func (h *BookHandler) UpdateBook(c *gin.Context) {
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

	if err := rejectTotals(c); err != nil {
		respondWithError(c, err)
		return
	}
	var req UpdateBookRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	book, err := h.bookService.UpdateBook(c.Request.Context(), userID, bookID, services.BookUpdate{
		Name:       req.Name,
		Currency:   req.Currency,
		Categories: req.Categories,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]any{}
	if req.Name != nil {
		changes["name"] = *req.Name
	}
	if req.Currency != nil {
		changes["currency"] = *req.Currency
	}
	if req.Categories != nil {
		changes["categories"] = len(req.Categories.Income) + len(req.Categories.Expense)
	}
	h.auditService.Log(c.Request.Context(), userID, services.AuditUpdateBook, "book", book.ID, c.ClientIP(), changes)

	c.JSON(http.StatusOK, gin.H{"book": toBookResponse(book)})
}

// DeleteBook removes a book together with all of its entries.
// @Summary     Delete a budget book
// @Tags        books
// @Security    BearerAuth
// @Param       id path string true "Book ID"
// @Success     204 "Deleted"
// @Failure     404 {object} ErrorResponse "Book not found"
// @Router      /books/{id} [delete]
func (h *BookHandler) DeleteBook(c *gin.Context) {
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

	if err := h.bookService.DeleteBook(c.Request.Context(), userID, bookID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditDeleteBook, "book", bookID, c.ClientIP(), nil)

	c.Status(http.StatusNoContent)
}

// AddCategory appends a category to the income or expense list of a book.
// @Summary     Add a category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string          true "Book ID"
// @Param       request body CategoryRequest true "Category"
// @Success     201 {object} BookResponse "Updated book"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Book not found"
// @Failure     409 {object} ErrorResponse "Duplicate category"
// @Router      /books/{id}/categories [post]
func (h *BookHandler) AddCategory(c *gin.Context) {
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

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	book, err := h.bookService.AddCategory(c.Request.Context(), userID, bookID, req.Type, models.Category{
		Name:  req.Name,
		Icon:  req.Icon,
		Color: req.Color,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditAddCategory, "book", bookID, c.ClientIP(),
		map[string]any{"type": req.Type, "name": req.Name})

	c.JSON(http.StatusCreated, gin.H{"book": toBookResponse(book)})
}

// UpdateCategory edits a category by id.
// @Summary     Update a category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id         path string                true "Book ID"
// @Param       categoryId path string                true "Category ID"
// @Param       request    body UpdateCategoryRequest true "Fields to change"
// @Success     200 {object} BookResponse "Updated book"
// @Failure     404 {object} ErrorResponse "Book or category not found"
// @Failure     409 {object} ErrorResponse "Duplicate category"
// @Router      /books/{id}/categories/{categoryId} [put]
func (h *BookHandler) UpdateCategory(c *gin.Context) {
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
	categoryID := c.Param("categoryId")

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	book, err := h.bookService.UpdateCategory(c.Request.Context(), userID, bookID, req.Type, categoryID, services.CategoryPatch{
		Name:  req.Name,
		Icon:  req.Icon,
		Color: req.Color,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditUpdateCategory, "book", bookID, c.ClientIP(),
		map[string]any{"type": req.Type, "category_id": categoryID})

	c.JSON(http.StatusOK, gin.H{"book": toBookResponse(book)})
}

// RemoveCategory deletes a category by id. Entries keep their category name.
// @Summary     Remove a category
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id         path  string true "Book ID"
// @Param       categoryId path  string true "Category ID"
// @Param       type       query string true "income or expense"
// @Success     200 {object} BookResponse "Updated book"
// @Failure     404 {object} ErrorResponse "Book or category not found"
// @Router      /books/{id}/categories/{categoryId} [delete]
func (h *BookHandler) RemoveCategory(c *gin.Context) {
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
	categoryID := c.Param("categoryId")

	entryType := models.EntryType(c.Query("type"))
	if !entryType.Valid() {
		respondWithError(c, apperrors.ErrInvalidEntryType)
		return
	}

	book, err := h.bookService.RemoveCategory(c.Request.Context(), userID, bookID, entryType, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditRemoveCategory, "book", bookID, c.ClientIP(),
		map[string]any{"type": entryType, "category_id": categoryID})

	c.JSON(http.StatusOK, gin.H{"book": toBookResponse(book)})
}
