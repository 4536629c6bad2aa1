package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"PORT", "GRAPH_API_URL", "SEND_DELAY", "TEMPLATE_CACHE_TTL", "CREDENTIALS_FILE", "DB_DRIVER"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://graph.facebook.com/v18.0", cfg.GraphAPIURL)
	assert.Equal(t, "config.txt", cfg.CredentialsFile)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 50*time.Millisecond, cfg.SendDelay)
	assert.Equal(t, time.Hour, cfg.TemplateCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
}

func TestLoadConfigFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("WHATSAPP_TOKEN", "tok")
	t.Setenv("PHONE_NUMBER_ID", "123")
	t.Setenv("WABA_ID", "456")
	t.Setenv("SEND_DELAY", "10ms")
	t.Setenv("HTTP_TIMEOUT", "not-a-duration")
	t.Setenv("APP_SECRET", "shh")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "tok", cfg.WhatsAppToken)
	assert.Equal(t, "123", cfg.PhoneNumberID)
	assert.Equal(t, "456", cfg.WhatsAppBusinessAccountID)
	assert.Equal(t, 10*time.Millisecond, cfg.SendDelay)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "shh", cfg.AppSecret)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
