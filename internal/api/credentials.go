package api

import (
	"net/http"

	"whatsapp-sender/internal/broadcast"
	"whatsapp-sender/internal/credentials"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CredentialsHandler struct {
	Store   *credentials.Store
	Session *broadcast.Session
	Logger  *zap.Logger
}

func NewCredentialsHandler(store *credentials.Store, session *broadcast.Session, logger *zap.Logger) *CredentialsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialsHandler{Store: store, Session: session, Logger: logger}
}

type credentialsRequest struct {
	AccessToken       string `json:"access_token"`
	PhoneNumberID     string `json:"phone_number_id"`
	BusinessAccountID string `json:"business_account_id"`
	Save              bool   `json:"save"`
}

// effectiveCredentials applies the session override on top of the stored values.
func effectiveCredentials(store *credentials.Store, session *broadcast.Session) (credentials.Credentials, error) {
	stored, err := store.Load()
	if err != nil {
		return credentials.Credentials{}, err
	}
	return stored.Override(session.Override()), nil
}

// GetCredentials returns the credentials in effect, with the token masked.
func (h *CredentialsHandler) GetCredentials(c *gin.Context) {
	creds, err := effectiveCredentials(h.Store, h.Session)
	if err != nil {
		h.Logger.Error("failed to load credentials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": creds.Masked(), "complete": creds.Complete()})
}

// UpdateCredentials sets the session override and, with save, writes the file.
func (h *CredentialsHandler) UpdateCredentials(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	creds := credentials.Credentials{
		AccessToken:       req.AccessToken,
		PhoneNumberID:     req.PhoneNumberID,
		BusinessAccountID: req.BusinessAccountID,
	}
	if req.Save && !creds.Complete() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required."})
		return
	}

	h.Session.SetOverride(creds)
	if req.Save {
		if err := h.Store.Save(creds); err != nil {
			h.Logger.Error("failed to save credentials", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		h.Logger.Info("credentials saved", zap.String("path", h.Store.Path))
	}

	effective, err := effectiveCredentials(h.Store, h.Session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": effective.Masked(), "complete": effective.Complete(), "saved": req.Save})
}
