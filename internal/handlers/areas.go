package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tessera/internal/models"
)

// CreateArea - POST /api/areas
func (h *Handlers) CreateArea(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req models.CreateAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	area, err := h.services.Areas.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, area)
}

// GetArea - GET /api/areas/:id
func (h *Handlers) GetArea(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid area id"})
		return
	}

	area, err := h.services.Areas.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, area)
}

// ListAreas - GET /api/areas?event_id=N
func (h *Handlers) ListAreas(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Query("event_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id is required"})
		return
	}

	areas, err := h.services.Areas.ListByEventID(c.Request.Context(), eventID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, areas)
}
