package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"bank-reconciliation-backend/internal/common"
	"bank-reconciliation-backend/internal/models"
)

// respondError maps the service error taxonomy onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var entryErr *models.EntryError
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrIndexOutOfRange),
		errors.Is(err, common.ErrConflict),
		errors.Is(err, common.ErrAlreadyMatched),
		errors.Is(err, common.ErrNotMatched),
		errors.Is(err, common.ErrFileClosed):
		status = http.StatusConflict
	case errors.As(err, &entryErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrInvalidLink):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrStorage):
		slog.Error("Storage failure", "path", c.FullPath(), "error", err)
	default:
		slog.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
