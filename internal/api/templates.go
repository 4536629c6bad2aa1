package api

import (
	"net/http"

	"whatsapp-sender/internal/broadcast"
	"whatsapp-sender/internal/credentials"
	"whatsapp-sender/internal/templates"
	"whatsapp-sender/internal/whatsapp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// fallbackManual tells clients to let the operator type a template name.
const fallbackManual = "manual"

type TemplatesHandler struct {
	Cache   *templates.Cache
	Store   *credentials.Store
	Session *broadcast.Session
	Logger  *zap.Logger
}

func NewTemplatesHandler(cache *templates.Cache, store *credentials.Store, session *broadcast.Session, logger *zap.Logger) *TemplatesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplatesHandler{Cache: cache, Store: store, Session: session, Logger: logger}
}

// list answers the request itself when the listing is unavailable.
func (h *TemplatesHandler) list(c *gin.Context) ([]whatsapp.Template, bool) {
	creds, err := effectiveCredentials(h.Store, h.Session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if creds.AccessToken == "" || creds.BusinessAccountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Access token and business account ID are required.", "fallback": fallbackManual})
		return nil, false
	}

	list, err := h.Cache.Get(c.Request.Context(), creds.AccessToken, creds.BusinessAccountID)
	if err != nil {
		h.Logger.Warn("failed to fetch templates", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch templates: " + err.Error(), "fallback": fallbackManual})
		return nil, false
	}
	return list, true
}

// GetTemplates lists the approved templates with their previews.
func (h *TemplatesHandler) GetTemplates(c *gin.Context) {
	list, ok := h.list(c)
	if !ok {
		return
	}
	previews := make([]whatsapp.Preview, 0, len(list))
	for _, t := range list {
		previews = append(previews, t.Preview())
	}
	c.JSON(http.StatusOK, gin.H{"templates": previews})
}

func (h *TemplatesHandler) GetTemplate(c *gin.Context) {
	list, ok := h.list(c)
	if !ok {
		return
	}
	tpl := whatsapp.FindTemplate(list, c.Param("name"))
	if tpl == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return
	}
	c.JSON(http.StatusOK, tpl.Preview())
}

// RefreshTemplates drops cached listings so the next read refetches.
func (h *TemplatesHandler) RefreshTemplates(c *gin.Context) {
	if err := h.Cache.Invalidate(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Template cache cleared"})
}
