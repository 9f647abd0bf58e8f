package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "pocketledger/internal/errors"
	"pocketledger/internal/logger"
)

// ErrorHandler turns the last error attached with c.Error into the JSON
// error body used by every handler. Bind errors become VALIDATION_ERROR,
// ledger sentinels (CONFLICT, BOOK_NOT_FOUND, ...) keep their code, and
// anything else is logged and reported as INTERNAL_ERROR. Nothing is written
// when the client already left or a response is already on the wire.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		if errors.Is(last.Err, context.Canceled) {
			c.Status(499) // client closed request
			return
		}

		appErr := classify(last)
		log := logger.Named("http").With(
			"request_id", RequestID(c),
			"method", c.Request.Method,
			"route", c.FullPath(),
			"code", appErr.Code,
		)
		switch {
		case appErr.Internal != nil:
			log.Errorw("request failed", "message", appErr.Message, "internal", appErr.Internal.Error())
		case appErr.StatusCode >= http.StatusInternalServerError:
			log.Errorw("request failed", "error", last.Err.Error())
		default:
			log.Debugw("request rejected", "message", appErr.Message)
		}

		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
	}
}

// classify maps an attached gin error onto an AppError.
func classify(ge *gin.Error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(ge.Err, &appErr) {
		return appErr
	}
	if ge.IsType(gin.ErrorTypeBind) {
		return apperrors.WithMessage(apperrors.ErrValidation, ge.Err.Error())
	}
	return apperrors.ErrInternalServer
}
