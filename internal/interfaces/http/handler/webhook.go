package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dilly/tablebot/internal/application/bot"
	"github.com/dilly/tablebot/internal/infrastructure/logger"
	"github.com/dilly/tablebot/internal/infrastructure/whatsapp"
)

// DefaultMaxWebhookPayload is the raw body limit of POST /webhook
const DefaultMaxWebhookPayload = 1 << 20

// SignatureHeader carries the HMAC-SHA256 of the body, keyed with the app secret
const SignatureHeader = "X-Hub-Signature-256"

// MessageDispatcher queues inbound messages for background handling
type MessageDispatcher interface {
	Dispatch(ctx context.Context, msg bot.IncomingMessage) error
}

// StatusHandler receives delivery status updates
type StatusHandler interface {
	HandleStatus(ctx context.Context, status whatsapp.Status)
}

// WebhookConfig configures WebhookHandler
type WebhookConfig struct {
	// VerifyToken is compared with hub.verify_token during subscription
	VerifyToken string
	// AppSecret enables signature checks when set
	AppSecret string
	// MaxPayload bounds the raw body (default: 1 MiB)
	MaxPayload int64
}

// WebhookHandler handles the WhatsApp webhook endpoints.
// These endpoints are called by Meta and do not require authentication.
type WebhookHandler struct {
	verifyToken string
	appSecret   []byte
	maxPayload  int64
	dispatcher  MessageDispatcher
	statuses    StatusHandler
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(dispatcher MessageDispatcher, statuses StatusHandler, config WebhookConfig) *WebhookHandler {
	h := &WebhookHandler{
		verifyToken: config.VerifyToken,
		maxPayload:  config.MaxPayload,
		dispatcher:  dispatcher,
		statuses:    statuses,
	}
	if config.AppSecret != "" {
		h.appSecret = []byte(config.AppSecret)
	}
	if h.maxPayload <= 0 {
		h.maxPayload = DefaultMaxWebhookPayload
	}
	return h
}

// Verify answers the subscription handshake (GET /webhook)
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && h.verifyToken != "" &&
		hmac.Equal([]byte(token), []byte(h.verifyToken)) {
		logger.GetGinLogger(c).Info("Webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}

	logger.GetGinLogger(c).Warn("Webhook verification failed", zap.String("mode", mode))
	c.String(http.StatusForbidden, "Forbidden")
}

// Receive acknowledges a notification (POST /webhook) and hands its
// messages to the dispatcher. Processing failures never reach the caller.
func (h *WebhookHandler) Receive(c *gin.Context) {
	log := logger.GetGinLogger(c)

	// Signature verification needs the raw body
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxPayload+1))
	if err != nil {
		log.Warn("Failed to read webhook body", zap.Error(err))
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}
	if int64(len(payload)) > h.maxPayload {
		c.String(http.StatusRequestEntityTooLarge, "Payload Too Large")
		return
	}

	if h.appSecret != nil && !validSignature(h.appSecret, payload, c.GetHeader(SignatureHeader)) {
		log.Warn("Webhook signature mismatch")
		c.String(http.StatusUnauthorized, "Unauthorized")
		return
	}

	var notification whatsapp.WebhookPayload
	if err := json.Unmarshal(payload, &notification); err != nil {
		log.Warn("Invalid webhook payload", zap.Error(err))
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}

	c.String(http.StatusOK, "OK")

	if !notification.IsBusinessAccount() {
		log.Debug("Ignoring webhook object", zap.String("object", notification.Object))
		return
	}

	ctx := c.Request.Context()
	for _, msg := range notification.TextMessages() {
		if err := h.dispatcher.Dispatch(ctx, bot.IncomingFromWhatsApp(msg)); err != nil {
			log.Error("Failed to dispatch message",
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	}
	if h.statuses != nil {
		for _, status := range notification.Statuses() {
			h.statuses.HandleStatus(ctx, status)
		}
	}
}

// validSignature checks a "sha256=<hex>" header against the body
func validSignature(secret, payload []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}
