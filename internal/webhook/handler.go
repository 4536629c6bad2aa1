package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"whatsapp-sender/internal/config"
	"whatsapp-sender/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SignatureHeader carries the HMAC-SHA256 of the body keyed with the app secret.
const SignatureHeader = "X-Hub-Signature-256"

// StatusUpdater applies delivery statuses. *database.HistoryRepository satisfies it.
type StatusUpdater interface {
	UpdateDeliveryStatus(ctx context.Context, messageID, status string) (int64, error)
}

type Handler struct {
	Config  *config.Config
	Updater StatusUpdater
	Logger  *zap.Logger
}

func NewHandler(cfg *config.Config, updater StatusUpdater, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Config: cfg, Updater: updater, Logger: logger}
}

func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "" && token != "" {
		if mode == "subscribe" && h.Config.VerifyToken != "" && token == h.Config.VerifyToken {
			h.Logger.Info("webhook verified")
			c.String(http.StatusOK, challenge)
		} else {
			c.Status(http.StatusForbidden)
		}
	} else {
		c.Status(http.StatusBadRequest)
	}
}

// HandleStatus records delivery updates for messages sent by a broadcast.
// Statuses for unknown message IDs are ignored. With an app secret configured,
// unsigned or wrongly signed payloads are rejected before decoding.
func (h *Handler) HandleStatus(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if h.Config.AppSecret != "" && !validSignature(body, c.GetHeader(SignatureHeader), h.Config.AppSecret) {
		h.Logger.Warn("rejected webhook with invalid signature", zap.String("client_ip", c.ClientIP()))
		c.Status(http.StatusUnauthorized)
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.Logger.Warn("error binding webhook JSON", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	for _, st := range payload.Statuses() {
		if st.ID == "" || st.Status == "" {
			continue
		}
		n, err := h.Updater.UpdateDeliveryStatus(c.Request.Context(), st.ID, st.Status)
		if err != nil {
			h.Logger.Error("error updating delivery status", zap.String("message_id", st.ID), zap.Error(err))
			continue
		}
		if n > 0 {
			h.Logger.Debug("delivery status updated",
				zap.String("message_id", st.ID),
				zap.String("recipient", st.RecipientID),
				zap.String("status", st.Status))
		}
	}

	c.Status(http.StatusOK)
}

// validSignature checks a "sha256=<hex>" signature of body.
func validSignature(body []byte, signature, appSecret string) bool {
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}
