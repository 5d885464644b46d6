package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vibe-engine/vibe-engine/pkg/jobstore"
)

// respondStoreError maps a jobstore error to the appropriate HTTP status
// and writes the response, aborting the handler chain.
func respondStoreError(c *gin.Context, err error) {
	var validErr *jobstore.ValidationError
	if errors.As(err, &validErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": validErr.Error()})
		return
	}
	switch {
	case errors.Is(err, jobstore.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "resource not found"})
	case errors.Is(err, jobstore.ErrAlreadyExists):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "resource already exists"})
	case errors.Is(err, jobstore.ErrConcurrentModification):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "resource was modified concurrently"})
	default:
		slog.Error("api: unexpected store error", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
