package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"whatsapp-sender/internal/config"
)

// graphStub answers the template listing and accepts every message except
// those sent to rejectTo.
type graphStub struct {
	mu       sync.Mutex
	to       []string
	language []string
	rejectTo string
}

func (g *graphStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/message_templates") {
			io.WriteString(w, `{"data":[{"name":"promo","status":"APPROVED","language":"en_GB","components":[{"type":"BODY","text":"Big sale"}]}]}`)
			return
		}

		var msg struct {
			To       string `json:"to"`
			Template struct {
				Language struct {
					Code string `json:"code"`
				} `json:"language"`
			} `json:"template"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		g.mu.Lock()
		g.to = append(g.to, msg.To)
		g.language = append(g.language, msg.Template.Language.Code)
		g.mu.Unlock()

		if msg.To == g.rejectTo {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":{"message":"Recipient not on WhatsApp"}}`)
			return
		}
		io.WriteString(w, `{"messages":[{"id":"wamid.`+msg.To+`"}]}`)
	}
}

func setup(t *testing.T, graphURL string) string {
	t.Helper()
	dir := t.TempDir()
	logger = zap.NewNop()
	cfg = &config.Config{
		GraphAPIURL:     graphURL,
		CredentialsFile: filepath.Join(dir, "config.txt"),
		DBDriver:        "sqlite",
		DBPath:          filepath.Join(dir, "history.db"),
	}
	t.Cleanup(func() { cfg = nil })
	return dir
}

func runWithOutput(t *testing.T, run func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	err := run(cmd, args)
	return buf.String(), err
}

func TestNormalizeCmd(t *testing.T) {
	out, err := runWithOutput(t, runNormalize, "9857 8141", "098578141", "12345")
	require.NoError(t, err)
	assert.Equal(t, "9857 8141\t6598578141\n098578141\t6598578141\n12345\tinvalid\n", out)
}

func TestCredentialsSaveAndShow(t *testing.T) {
	setup(t, "")

	saveToken, savePhoneID, saveBusinessID = "EAAGsecret42", "1098", ""
	_, err := runWithOutput(t, runCredentialsSave)
	assert.EqualError(t, err, "all fields are required")

	saveBusinessID = "2087"
	t.Cleanup(func() { saveToken, savePhoneID, saveBusinessID = "", "", "" })
	_, err = runWithOutput(t, runCredentialsSave)
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.CredentialsFile)
	require.NoError(t, err)
	assert.Equal(t, "EAAGsecret42\n1098\n2087\n", string(data))

	out, err := runWithOutput(t, runCredentialsShow)
	require.NoError(t, err)
	assert.Contains(t, out, "********et42")
	assert.NotContains(t, out, "EAAGsecret42")
}

func TestTemplatesCmd(t *testing.T) {
	srv := httptest.NewServer((&graphStub{}).handler(t))
	defer srv.Close()
	setup(t, srv.URL)
	require.NoError(t, os.WriteFile(cfg.CredentialsFile, []byte("tok\n1098\n2087\n"), 0o600))

	out, err := runWithOutput(t, runTemplates)
	require.NoError(t, err)
	assert.Contains(t, out, "promo")
	assert.Contains(t, out, "en_GB")
	assert.Contains(t, out, "Big sale")
}

func TestSendCmd(t *testing.T) {
	stub := &graphStub{rejectTo: "6591111111"}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()
	dir := setup(t, srv.URL)
	require.NoError(t, os.WriteFile(cfg.CredentialsFile, []byte("tok\n1098\n2087\n"), 0o600))

	leadsFile = filepath.Join(dir, "leads.csv")
	require.NoError(t, os.WriteFile(leadsFile, []byte("6598578141\nnotanumber\n91111111\n"), 0o600))
	templateName = "promo"
	logFile = filepath.Join(dir, "ncsf_log.csv")
	t.Cleanup(func() { leadsFile, templateName, logFile = "", "", "" })

	out, err := runWithOutput(t, runSend)
	require.NoError(t, err)

	assert.Equal(t, []string{"6598578141", "6591111111"}, stub.to)
	assert.Equal(t, []string{"en_GB", "en_GB"}, stub.language)
	assert.Contains(t, out, "1/2 → 6598578141: Sent")
	assert.Contains(t, out, "2/2 → 6591111111: Failed (400): Recipient not on WhatsApp")
	assert.Contains(t, out, "Completed: 1 sent, 1 failed out of 2 leads.")

	log, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "Phone Number,Status Code,Error Message\n6598578141,200,\n6591111111,400,Recipient not on WhatsApp\n", string(log))
}

func TestSendCmdWithoutValidLeads(t *testing.T) {
	dir := setup(t, "")
	leadsFile = filepath.Join(dir, "leads.csv")
	require.NoError(t, os.WriteFile(leadsFile, []byte("abc\n123\n"), 0o600))
	templateName = "promo"
	t.Cleanup(func() { leadsFile, templateName = "", "" })

	_, err := runWithOutput(t, runSend)
	assert.Error(t, err)
}
