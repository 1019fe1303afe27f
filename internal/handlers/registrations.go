package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tessera/internal/models"
)

// CreateRegistration - POST /api/registrations
func (h *Handlers) CreateRegistration(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req models.CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reg, err := h.services.Registrations.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.bumpTicketListCache(c)
	c.JSON(http.StatusCreated, reg)
}

// GetRegistration - GET /api/registrations/:id
func (h *Handlers) GetRegistration(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration id"})
		return
	}

	reg, err := h.services.Registrations.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reg)
}

// ListRegistrations - GET /api/registrations
func (h *Handlers) ListRegistrations(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	regs, err := h.services.Registrations.List(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, regs)
}

// UpdateRegistration - PUT /api/registrations/:id
func (h *Handlers) UpdateRegistration(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration id"})
		return
	}

	var req models.UpdateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reg, err := h.services.Registrations.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.bumpTicketListCache(c)
	c.JSON(http.StatusOK, reg)
}

// DeleteRegistration - DELETE /api/registrations/:id
func (h *Handlers) DeleteRegistration(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration id"})
		return
	}

	if err := h.services.Registrations.Delete(c.Request.Context(), actor, id); err != nil {
		h.respondError(c, err)
		return
	}

	h.bumpTicketListCache(c)
	c.Status(http.StatusNoContent)
}
