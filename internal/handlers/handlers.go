package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tessera/internal/apperrors"
	"tessera/internal/auth"
	"tessera/internal/cache"
	"tessera/internal/logger"
	"tessera/internal/middleware"
	"tessera/internal/service"
)

type Handlers struct {
	services     *service.Services
	valkeyClient *cache.ValkeyClient
}

func NewHandlers(services *service.Services, valkeyClient *cache.ValkeyClient) *Handlers {
	return &Handlers{
		services:     services,
		valkeyClient: valkeyClient,
	}
}

// actor pulls the authenticated actor off the request context. The auth
// middleware guarantees it on protected routes.
func (h *Handlers) actor(c *gin.Context) (auth.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return actor, ok
}

// respondError translates domain errors to HTTP statuses.
func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrCapacityExceeded),
		errors.Is(err, apperrors.ErrInsufficientInventory),
		errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.WithContext(c.Request.Context()).Error("Request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// bumpTicketListCache invalidates the cached catalog pages after any
// mutation that changes what a listing would return.
func (h *Handlers) bumpTicketListCache(c *gin.Context) {
	if h.valkeyClient == nil {
		return
	}
	if err := h.valkeyClient.BumpTicketListVersion(c.Request.Context()); err != nil {
		logger.WithContext(c.Request.Context()).Warn("Failed to bump ticket list cache version", "error", err)
	}
}
