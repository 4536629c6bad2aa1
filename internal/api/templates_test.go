package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-sender/internal/credentials"
	"whatsapp-sender/internal/templates"
	"whatsapp-sender/internal/whatsapp"
)

var approvedTemplates = []whatsapp.Template{
	{Name: "welcome", Status: "APPROVED", Language: "en_GB", Components: []whatsapp.Component{
		{Type: "HEADER", Format: "TEXT", Text: "Hello"},
		{Type: "BODY", Text: "Thanks for signing up"},
	}},
	{Name: "promo", Status: "APPROVED", Language: "zh_CN"},
}

func templatesRouter(fetcher *fakeFetcher, store *credentials.Store) *gin.Engine {
	cache := templates.NewCache(fetcher, nil, 0, nil)
	h := NewTemplatesHandler(cache, store, newSession(&fakeSender{}), nil)
	r := gin.New()
	r.GET("/api/templates", h.GetTemplates)
	r.GET("/api/templates/:name", h.GetTemplate)
	r.POST("/api/templates/refresh", h.RefreshTemplates)
	return r
}

func TestGetTemplates(t *testing.T) {
	fetcher := &fakeFetcher{templates: approvedTemplates}
	r := templatesRouter(fetcher, newStore(t, "tok\n1098\n2087\n"))

	w := doRequest(r, http.MethodGet, "/api/templates", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Templates []whatsapp.Preview `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Templates, 2)
	assert.Equal(t, whatsapp.Preview{Name: "welcome", Language: "en_GB", Header: "Hello", Body: "Thanks for signing up"}, resp.Templates[0])

	// Served from cache until refreshed.
	doRequest(r, http.MethodGet, "/api/templates", "")
	assert.Equal(t, 1, fetcher.Calls())

	w = doRequest(r, http.MethodPost, "/api/templates/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	doRequest(r, http.MethodGet, "/api/templates", "")
	assert.Equal(t, 2, fetcher.Calls())
}

func TestGetTemplatePreview(t *testing.T) {
	r := templatesRouter(&fakeFetcher{templates: approvedTemplates}, newStore(t, "tok\n1098\n2087\n"))

	w := doRequest(r, http.MethodGet, "/api/templates/promo", "")
	require.Equal(t, http.StatusOK, w.Code)
	var preview whatsapp.Preview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, "zh_CN", preview.Language)

	w = doRequest(r, http.MethodGet, "/api/templates/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTemplatesFailureFallsBackToManual(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("API error: 401 - Invalid OAuth access token.")}
	r := templatesRouter(fetcher, newStore(t, "tok\n1098\n2087\n"))

	w := doRequest(r, http.MethodGet, "/api/templates", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "manual", resp["fallback"])
	assert.Contains(t, resp["error"], "Invalid OAuth access token.")
}

func TestGetTemplatesRequiresCredentials(t *testing.T) {
	fetcher := &fakeFetcher{templates: approvedTemplates}
	r := templatesRouter(fetcher, newStore(t, ""))

	w := doRequest(r, http.MethodGet, "/api/templates", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, fetcher.Calls())
}
