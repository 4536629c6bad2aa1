package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"whatsapp-sender/internal/broadcast"
	"whatsapp-sender/internal/credentials"
	"whatsapp-sender/internal/whatsapp"
)

type sentMessage struct {
	to       string
	template string
	language string
}

// fakeSender accepts every message. When gate is set each send waits on it,
// after announcing itself on started when that is set too.
type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeSender) SendTemplateMessage(ctx context.Context, token, phoneNumberID, to, templateName, languageCode string) (whatsapp.SendResponse, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return whatsapp.SendResponse{}, ctx.Err()
		}
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{to: to, template: templateName, language: languageCode})
	f.mu.Unlock()
	return whatsapp.SendResponse{StatusCode: http.StatusOK, MessageID: "wamid." + to}, nil
}

func (f *fakeSender) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeFetcher struct {
	mu        sync.Mutex
	templates []whatsapp.Template
	err       error
	calls     int
}

func (f *fakeFetcher) ListTemplates(ctx context.Context, token, businessAccountID string) ([]whatsapp.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.templates, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func init() {
	gin.SetMode(gin.TestMode)
}

// newStore returns a file store that ignores the process environment.
func newStore(t *testing.T, content string) *credentials.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return &credentials.Store{Path: path}
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newSession(sender broadcast.MessageSender) *broadcast.Session {
	return broadcast.NewSession(broadcast.NewSender(sender, 0, nil, nil))
}
