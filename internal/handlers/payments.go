package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tessera/internal/logger"
	"tessera/internal/models"
)

// CreateCheckout - POST /api/checkout
func (h *Handlers) CreateCheckout(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req models.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	checkout, err := h.services.Payments.InitiateCheckout(c.Request.Context(), actor, req.RegistrationID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, checkout)
}

// OnPaymentNotification - POST /webhooks/payment
//
// Gateway callback, unauthenticated. Always answers 200 on handled
// notifications so the gateway stops retrying; business conflicts are
// logged, not surfaced.
func (h *Handlers) OnPaymentNotification(c *gin.Context) {
	var payload models.PaymentNotificationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.services.Payments.HandleNotification(c.Request.Context(), &payload); err != nil {
		h.respondError(c, err)
		return
	}

	h.bumpTicketListCache(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PaymentSuccess - GET /payments/success
//
// Browser redirect target after a successful payment. The authoritative
// state change arrives on the webhook; this only acknowledges the user.
func (h *Handlers) PaymentSuccess(c *gin.Context) {
	logger.WithContext(c.Request.Context()).Info("Payment success redirect",
		"order_id", c.Query("orderId"))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// PaymentFail - GET /payments/fail
func (h *Handlers) PaymentFail(c *gin.Context) {
	logger.WithContext(c.Request.Context()).Info("Payment fail redirect",
		"order_id", c.Query("orderId"))
	c.JSON(http.StatusOK, gin.H{"status": "failed"})
}
