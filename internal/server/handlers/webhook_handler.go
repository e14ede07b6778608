package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
	service "github.com/mamadbah2/stockcheck/internal/service/telegram"
)

// SecretHeader carries the secret token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookHandler handles inbound and outbound Telegram HTTP events.
type WebhookHandler struct {
	svc    service.MessagingService
	logger *zap.Logger
}

// NewWebhookHandler constructs the HTTP handler adapter.
func NewWebhookHandler(svc service.MessagingService, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{svc: svc, logger: logger}
}

// Receive ingests update POSTs from Telegram.
func (h *WebhookHandler) Receive(c *gin.Context) {
	if err := h.svc.VerifySecret(c.GetHeader(SecretHeader)); err != nil {
		h.logger.Warn("webhook secret rejected", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	var update models.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.logger.Warn("invalid webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	// Telegram redelivers on non-2xx, which would replay the operator's input.
	if err := h.svc.HandleUpdate(c.Request.Context(), update); err != nil {
		h.logger.Error("failed processing webhook", zap.Int64("update_id", update.UpdateID), zap.Error(err))
	}

	c.Status(http.StatusOK)
}

// SendMessage allows sending outbound automation or manual responses.
func (h *WebhookHandler) SendMessage(c *gin.Context) {
	var req models.OutboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid outbound payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.SendOutbound(c.Request.Context(), req); err != nil {
		h.logger.Error("failed sending outbound", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to send message"})
		return
	}

	c.Status(http.StatusAccepted)
}
