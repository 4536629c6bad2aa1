package api

import (
	"net/http"

	"whatsapp-sender/internal/broadcast"
	"whatsapp-sender/internal/leads"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LeadsHandler struct {
	Session *broadcast.Session
	Logger  *zap.Logger
}

func NewLeadsHandler(session *broadcast.Session, logger *zap.Logger) *LeadsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadsHandler{Session: session, Logger: logger}
}

// LeadRow is one line of the leads preview.
type LeadRow struct {
	No         int    `json:"No."`
	Input      string `json:"input"`
	Normalized string `json:"normalized"`
}

func previewRows(batch leads.Batch) []LeadRow {
	rows := make([]LeadRow, 0, len(batch.Leads))
	for i, l := range batch.Leads {
		rows = append(rows, LeadRow{No: i + 1, Input: l.Raw, Normalized: l.Number})
	}
	return rows
}

// UploadLeads replaces the session's leads with the numbers of a CSV upload.
func (h *LeadsHandler) UploadLeads(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	defer file.Close()

	batch, err := leads.Parse(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Session.SetLeads(batch)
	h.Logger.Info("leads uploaded",
		zap.String("filename", header.Filename),
		zap.Int("valid", len(batch.Leads)),
		zap.Int("rejected", batch.Rejected))

	c.JSON(http.StatusOK, gin.H{
		"loaded":   len(batch.Leads),
		"rejected": batch.Rejected,
		"leads":    previewRows(batch),
	})
}

func (h *LeadsHandler) GetLeads(c *gin.Context) {
	batch := h.Session.Leads()
	c.JSON(http.StatusOK, gin.H{
		"loaded":   len(batch.Leads),
		"rejected": batch.Rejected,
		"leads":    previewRows(batch),
	})
}
