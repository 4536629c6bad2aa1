package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"whatsapp-sender/internal/broadcast"
	"whatsapp-sender/internal/credentials"
	"whatsapp-sender/internal/database"
	"whatsapp-sender/internal/models"
	"whatsapp-sender/internal/templates"
	"whatsapp-sender/internal/whatsapp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultRunsLimit = 20

// HistoryReader reads stored runs. *database.HistoryRepository satisfies it.
type HistoryReader interface {
	ListRuns(ctx context.Context, limit int) ([]models.BroadcastRun, error)
	GetRun(ctx context.Context, runID string) (*models.BroadcastRun, error)
}

type BroadcastHandler struct {
	Session *broadcast.Session
	Cache   *templates.Cache
	Store   *credentials.Store
	History HistoryReader
	Logger  *zap.Logger

	// BaseContext bounds every run started here. Runs outlive the request
	// that started them.
	BaseContext context.Context
}

func NewBroadcastHandler(ctx context.Context, session *broadcast.Session, cache *templates.Cache, store *credentials.Store, history HistoryReader, logger *zap.Logger) *BroadcastHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BroadcastHandler{
		Session:     session,
		Cache:       cache,
		Store:       store,
		History:     history,
		Logger:      logger,
		BaseContext: ctx,
	}
}

type broadcastRequest struct {
	TemplateName string `json:"template_name" binding:"required"`
	Language     string `json:"language"`
}

// resolveLanguage looks the template up in the listing. A template typed by
// hand, or a listing that cannot be fetched, gives the default language.
func (h *BroadcastHandler) resolveLanguage(ctx context.Context, creds credentials.Credentials, name string) string {
	if creds.BusinessAccountID == "" || h.Cache == nil {
		return broadcast.ResolveLanguage(nil)
	}
	list, err := h.Cache.Get(ctx, creds.AccessToken, creds.BusinessAccountID)
	if err != nil {
		h.Logger.Warn("template listing unavailable, using default language", zap.Error(err))
		return broadcast.ResolveLanguage(nil)
	}
	return broadcast.ResolveLanguage(whatsapp.FindTemplate(list, name))
}

// StartBroadcast sends the chosen template to the uploaded leads in the background.
func (h *BroadcastHandler) StartBroadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template_name is required"})
		return
	}

	creds, err := effectiveCredentials(h.Store, h.Session)
	if err != nil {
		h.Logger.Error("failed to load credentials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if creds.AccessToken == "" || creds.PhoneNumberID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Access token and phone number ID are required."})
		return
	}

	language := req.Language
	if language == "" {
		language = h.resolveLanguage(c.Request.Context(), creds, req.TemplateName)
	}

	runID, err := h.Session.Start(h.BaseContext, req.TemplateName, language, creds)
	switch {
	case errors.Is(err, broadcast.ErrNoLeads):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No valid leads to send. Upload a valid CSV."})
		return
	case errors.Is(err, broadcast.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "A broadcast is already running."})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "template_name": req.TemplateName, "language": language})
}

func (h *BroadcastHandler) CancelBroadcast(c *gin.Context) {
	if err := h.Session.Cancel(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "No broadcast is running."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Cancelling"})
}

// GetStatus returns the session state and its metrics.
func (h *BroadcastHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Session.Status())
}

// DownloadLog serves the last finished run as CSV.
func (h *BroadcastHandler) DownloadLog(c *gin.Context) {
	report, ok := h.Session.LastReport()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No broadcast has finished yet."})
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+broadcast.LogFilename)
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	if err := broadcast.WriteCSV(c.Writer, report.Results); err != nil {
		h.Logger.Error("failed to write send log", zap.Error(err))
	}
}

func (h *BroadcastHandler) GetRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := h.History.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}

// GetRun returns one run with its attempts and delivery statuses.
func (h *BroadcastHandler) GetRun(c *gin.Context) {
	run, err := h.History.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}
