// Package credentials loads and persists the WhatsApp Cloud API credentials.
//
// The local file holds three plaintext lines: access token, phone number ID and
// business account ID. The format is kept as-is for compatibility with existing
// installs; the file is only created with owner-only permissions.
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"whatsapp-sender/internal/config"
)

type Credentials struct {
	AccessToken       string `json:"access_token"`
	PhoneNumberID     string `json:"phone_number_id"`
	BusinessAccountID string `json:"business_account_id"`
}

// Complete reports whether all three values are set.
func (c Credentials) Complete() bool {
	return c.AccessToken != "" && c.PhoneNumberID != "" && c.BusinessAccountID != ""
}

// Override returns c with every non-empty field of session applied on top.
func (c Credentials) Override(session Credentials) Credentials {
	if session.AccessToken != "" {
		c.AccessToken = session.AccessToken
	}
	if session.PhoneNumberID != "" {
		c.PhoneNumberID = session.PhoneNumberID
	}
	if session.BusinessAccountID != "" {
		c.BusinessAccountID = session.BusinessAccountID
	}
	return c
}

// Masked returns a copy safe to show to an operator.
func (c Credentials) Masked() Credentials {
	c.AccessToken = MaskToken(c.AccessToken)
	return c
}

// MaskToken keeps the last four characters of a token.
func MaskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", 8) + token[len(token)-4:]
}

// Source supplies credentials from somewhere other than the local file.
type Source interface {
	Lookup() (Credentials, bool)
}

// EnvSource reads the secrets loaded into the process config.
type EnvSource struct {
	Config *config.Config
}

func (s EnvSource) Lookup() (Credentials, bool) {
	if s.Config == nil {
		return Credentials{}, false
	}
	c := Credentials{
		AccessToken:       s.Config.WhatsAppToken,
		PhoneNumberID:     s.Config.PhoneNumberID,
		BusinessAccountID: s.Config.WhatsAppBusinessAccountID,
	}
	return c, c.Complete()
}

type Store struct {
	Path    string
	Secrets Source
}

func NewStore(cfg *config.Config) *Store {
	return &Store{Path: cfg.CredentialsFile, Secrets: EnvSource{Config: cfg}}
}

// Load returns the secrets source when it is complete, else the first three
// non-blank lines of the file, else empty credentials. A missing file is not
// an error.
func (s *Store) Load() (Credentials, error) {
	if s.Secrets != nil {
		if c, ok := s.Secrets.Lookup(); ok {
			return c, nil
		}
	}

	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials file %s: %w", s.Path, err)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 3 {
		return Credentials{}, nil
	}
	return Credentials{
		AccessToken:       lines[0],
		PhoneNumberID:     lines[1],
		BusinessAccountID: lines[2],
	}, nil
}

// Save overwrites the file with the three values, one per line.
func (s *Store) Save(c Credentials) error {
	content := c.AccessToken + "\n" + c.PhoneNumberID + "\n" + c.BusinessAccountID + "\n"
	if err := os.WriteFile(s.Path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write credentials file %s: %w", s.Path, err)
	}
	return nil
}
