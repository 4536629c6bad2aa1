// Package broadcast sends one template to a list of numbers, strictly one
// request at a time, and tracks per-number results.
package broadcast

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"whatsapp-sender/internal/credentials"
	"whatsapp-sender/internal/whatsapp"
)

var (
	ErrNoLeads        = errors.New("no valid leads to send")
	ErrAlreadyRunning = errors.New("a broadcast is already running")
	ErrNotRunning     = errors.New("no broadcast is running")
	ErrNoTemplate     = errors.New("template name is required")
)

// State of a session's broadcast. Idle moves to Running on Start; Running
// always ends in Completed, or in Cancelled when the run was stopped early.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// SendResult is the outcome of one attempt. StatusCode is 0 when no HTTP
// response was received.
type SendResult struct {
	Number       string `json:"phone_number"`
	StatusCode   int    `json:"status_code"`
	ErrorMessage string `json:"error_message"`
	MessageID    string `json:"message_id,omitempty"`
}

func (r SendResult) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Job is the input of one run. RunID is generated when empty.
type Job struct {
	RunID        string
	Numbers      []string
	TemplateName string
	LanguageCode string
	Credentials  credentials.Credentials
}

// Progress is emitted after every attempt.
type Progress struct {
	RunID   string     `json:"run_id"`
	Index   int        `json:"index"`
	Total   int        `json:"total"`
	Result  SendResult `json:"result"`
	Success int        `json:"success"`
	Failure int        `json:"failure"`
}

// Line renders the operator-facing status line, e.g. "3/10 → 6591234567: Sent".
func (p Progress) Line() string {
	status := "Sent"
	if !p.Result.OK() {
		status = fmt.Sprintf("Failed (%d): %s", p.Result.StatusCode, p.Result.ErrorMessage)
	}
	return fmt.Sprintf("%d/%d → %s: %s", p.Index, p.Total, p.Result.Number, status)
}

// Report is the result of a finished run. Results follow input order and
// Success+Failure always equals len(Results).
type Report struct {
	RunID        string       `json:"run_id"`
	State        State        `json:"state"`
	TemplateName string       `json:"template_name"`
	LanguageCode string       `json:"language_code"`
	Total        int          `json:"total"`
	Success      int          `json:"success"`
	Failure      int          `json:"failure"`
	Results      []SendResult `json:"results"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// Summary renders the completion message shown to the operator.
func (r Report) Summary() string {
	prefix := "Completed"
	if r.State == StateCancelled {
		prefix = fmt.Sprintf("Cancelled after %d of %d leads", len(r.Results), r.Total)
		return fmt.Sprintf("%s: %d sent, %d failed.", prefix, r.Success, r.Failure)
	}
	if r.Failure > 0 {
		return fmt.Sprintf("%s: %d sent, %d failed out of %d leads.", prefix, r.Success, r.Failure, r.Total)
	}
	return fmt.Sprintf("%s: %d sent out of %d leads.", prefix, r.Success, r.Total)
}

// ResolveLanguage picks the language code for a send. Templates typed by hand
// are not in the listing and get the default.
func ResolveLanguage(tpl *whatsapp.Template) string {
	if tpl == nil {
		return whatsapp.DefaultLanguage
	}
	return tpl.Language.Code()
}

// NewRunID returns a sortable unique run identifier.
func NewRunID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0)).String()
}
