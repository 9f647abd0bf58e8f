package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "pocketledger/internal/errors"
	"pocketledger/internal/models"
	"pocketledger/internal/realtime"
	"pocketledger/internal/session"
)

const heartbeatInterval = 25 * time.Second

// StreamHandler serves live queries as server-sent events. Each stream is a
// subscription owned by the user's session, so logging out ends it.
type StreamHandler struct {
	sessions  *session.Registry
	heartbeat time.Duration
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(sessions *session.Registry) *StreamHandler {
	return &StreamHandler{sessions: sessions, heartbeat: heartbeatInterval}
}

// StreamBooks streams the user's book list.
// @Summary     Live book list
// @Description Server-sent events: "books" carries the full list after every change
// @Tags        streams
// @Produce     text/event-stream
// @Security    BearerAuth
// @Success     200 {array} BookResponse "Book list snapshots"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /books/stream [get]
func (h *StreamHandler) StreamBooks(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	sess, release, err := h.sessions.Acquire(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	defer release()
	sub, err := sess.WatchBooks(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	defer sub.Close()

	streamSnapshots(c, h.heartbeat, "books", sub.Updates(), func(books []models.BudgetBook) any {
		out := make([]BookResponse, 0, len(books))
		for i := range books {
			out = append(out, toBookResponse(&books[i]))
		}
		return out
	})
}

// StreamEntries streams the entries of one book.
// @Summary     Live entries of a book
// @Description Server-sent events: "entries" carries the full list after every change
// @Tags        streams
// @Produce     text/event-stream
// @Security    BearerAuth
// @Param       id path string true "Book ID"
// @Success     200 {array} models.BudgetEntry "Entry snapshots"
// @Failure     404 {object} ErrorResponse "Book not found"
// @Router      /books/{id}/entries/stream [get]
func (h *StreamHandler) StreamEntries(c *gin.Context) {
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

	sess, release, err := h.sessions.Acquire(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	defer release()
	sub, err := sess.WatchEntries(c.Request.Context(), bookID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	defer sub.Close()

	streamSnapshots(c, h.heartbeat, "entries", sub.Updates(), func(entries []models.BudgetEntry) any {
		return entries
	})
}

// streamSnapshots writes each snapshot as an SSE event until the client
// leaves or the subscription ends. A not-found error ends the stream, other
// load errors are reported and the stream waits for the next change.
func streamSnapshots[T any](c *gin.Context, heartbeat time.Duration, event string, updates <-chan realtime.Snapshot[T], render func(T) any) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"time": time.Now().UTC()})
			c.Writer.Flush()
		case snap, ok := <-updates:
			if !ok {
				c.SSEvent("end", gin.H{})
				c.Writer.Flush()
				return
			}
			if snap.Err != nil {
				c.SSEvent("error", errorDetail(snap.Err))
				c.Writer.Flush()
				if errors.Is(snap.Err, apperrors.ErrNotFound) {
					return
				}
				continue
			}
			c.SSEvent(event, render(snap.Data))
			c.Writer.Flush()
		}
	}
}

func errorDetail(err error) ErrorDetail {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return ErrorDetail{Code: appErr.Code, Message: appErr.Message}
	}
	return ErrorDetail{Code: apperrors.ErrInternalServer.Code, Message: apperrors.ErrInternalServer.Message}
}
