package handlers

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tessera/internal/logger"
	"tessera/internal/models"
)

// CreateTicket - POST /api/tickets
func (h *Handlers) CreateTicket(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req models.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ticket, err := h.services.Tickets.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.bumpTicketListCache(c)
	c.JSON(http.StatusCreated, ticket)
}

// GetTicket - GET /api/tickets/:id
func (h *Handlers) GetTicket(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket id"})
		return
	}

	ticket, err := h.services.Tickets.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// ListTickets - GET /api/tickets
func (h *Handlers) ListTickets(c *gin.Context) {
	filter, err := parseTicketFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cacheable := filter.Search == "" && h.valkeyClient != nil
	filterKey := ticketFilterKey(filter)

	if cacheable {
		if raw, err := h.valkeyClient.GetTicketListRaw(c.Request.Context(), filterKey); err == nil {
			c.Data(http.StatusOK, "application/json", raw)
			return
		}
	}

	response, err := h.services.Tickets.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if cacheable {
		if raw, err := json.Marshal(response); err == nil {
			if err := h.valkeyClient.SetTicketList(c.Request.Context(), filterKey, raw); err != nil {
				logger.WithContext(c.Request.Context()).Warn("Failed to cache ticket list", "error", err)
			}
		}
	}

	c.JSON(http.StatusOK, response)
}

// UpdateTicket - PUT /api/tickets/:id
func (h *Handlers) UpdateTicket(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket id"})
		return
	}

	var req models.UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ticket, err := h.services.Tickets.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.bumpTicketListCache(c)
	c.JSON(http.StatusOK, ticket)
}

// DeleteTicket - DELETE /api/tickets/:id
func (h *Handlers) DeleteTicket(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket id"})
		return
	}

	if err := h.services.Tickets.Delete(c.Request.Context(), actor, id); err != nil {
		h.respondError(c, err)
		return
	}

	h.bumpTicketListCache(c)
	c.Status(http.StatusNoContent)
}

// SetTicketStatus - PATCH /api/tickets/:id/status
func (h *Handlers) SetTicketStatus(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket id"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ticket, err := h.services.Tickets.SetStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.bumpTicketListCache(c)
	c.JSON(http.StatusOK, ticket)
}

func parseTicketFilter(c *gin.Context) (models.TicketFilter, error) {
	var filter models.TicketFilter

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return filter, fmt.Errorf("page must be >= 1")
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		return filter, fmt.Errorf("pageSize must be between 1 and 100")
	}
	filter.Page = page
	filter.PageSize = pageSize
	filter.Search = c.Query("query")

	if v := c.Query("event_area_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid event_area_id")
		}
		filter.EventAreaID = &id
	}
	if v := c.Query("quantity"); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil || q < 1 {
			return filter, fmt.Errorf("invalid quantity")
		}
		filter.Quantity = &q
	}
	if v := c.Query("max_price"); v != "" {
		filter.Price = &v
	}

	return filter, nil
}

// ticketFilterKey folds the filter into a short cache key.
func ticketFilterKey(f models.TicketFilter) string {
	areaID := int64(0)
	if f.EventAreaID != nil {
		areaID = *f.EventAreaID
	}
	quantity := 0
	if f.Quantity != nil {
		quantity = *f.Quantity
	}
	price := ""
	if f.Price != nil {
		price = *f.Price
	}

	raw := fmt.Sprintf("%d:%d:%s:%d:%d", areaID, quantity, price, f.Page, f.PageSize)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))[:16]
}
