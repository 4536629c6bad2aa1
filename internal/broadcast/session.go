package broadcast

import (
	"context"
	"sync"

	"whatsapp-sender/internal/credentials"
	"whatsapp-sender/internal/leads"
)

// Status is a point-in-time view of a session.
type Status struct {
	State       State  `json:"state"`
	RunID       string `json:"run_id,omitempty"`
	LeadsLoaded int    `json:"leads_loaded"`
	Processed   int    `json:"processed"`
	Total       int    `json:"total"`
	Success     int    `json:"success"`
	Failure     int    `json:"failure"`
	LastLine    string `json:"last_line,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

// Session holds the state one operator works with: the uploaded leads,
// credential overrides, and the current or last broadcast. All methods are
// safe for concurrent use. At most one run is active at a time.
type Session struct {
	sender *Sender

	// OnProgress and OnFinish are called from the run goroutine.
	OnProgress func(Progress)
	OnFinish   func(Report)

	mu       sync.Mutex
	batch    leads.Batch
	override credentials.Credentials
	state    State
	progress Progress
	last     *Report
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewSession(sender *Sender) *Session {
	return &Session{sender: sender, state: StateIdle}
}

// SetLeads replaces the uploaded leads. It is allowed while a run is active;
// the active run keeps the numbers it started with.
func (s *Session) SetLeads(batch leads.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch = batch
}

func (s *Session) Leads() leads.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch
}

// SetOverride stores credentials that take precedence over the stored ones
// for this session only.
func (s *Session) SetOverride(c credentials.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = c
}

func (s *Session) Override() credentials.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.override
}

// Start begins sending to the uploaded leads in the background and returns
// the run ID. ctx bounds the whole run; Cancel stops it early.
func (s *Session) Start(ctx context.Context, templateName, languageCode string, creds credentials.Credentials) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return "", ErrAlreadyRunning
	}
	numbers := s.batch.Numbers()
	if len(numbers) == 0 {
		return "", ErrNoLeads
	}
	if templateName == "" {
		return "", ErrNoTemplate
	}

	job := Job{
		RunID:        NewRunID(),
		Numbers:      numbers,
		TemplateName: templateName,
		LanguageCode: languageCode,
		Credentials:  creds,
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.state = StateRunning
	s.cancel = cancel
	s.done = make(chan struct{})
	s.progress = Progress{RunID: job.RunID, Total: len(numbers)}

	go s.run(runCtx, cancel, job, s.done)
	return job.RunID, nil
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, job Job, done chan struct{}) {
	defer close(done)
	defer cancel()

	report, err := s.sender.Run(ctx, job, s.recordProgress)
	if err != nil {
		// Start validated the job, so Run cannot reject it.
		report = Report{RunID: job.RunID, State: StateCompleted, Total: len(job.Numbers)}
	}

	s.mu.Lock()
	s.state = report.State
	s.last = &report
	s.cancel = nil
	s.mu.Unlock()

	if s.OnFinish != nil {
		s.OnFinish(report)
	}
}

func (s *Session) recordProgress(p Progress) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()

	if s.OnProgress != nil {
		s.OnProgress(p)
	}
}

// Cancel stops the active run between two sends.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning || s.cancel == nil {
		return ErrNotRunning
	}
	s.cancel()
	return nil
}

// Done is closed when the current run ends. It is nil before the first Start.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// LastReport returns the most recent finished run.
func (s *Session) LastReport() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:       s.state,
		LeadsLoaded: len(s.batch.Leads),
	}
	switch {
	case s.state == StateRunning:
		st.RunID = s.progress.RunID
		st.Processed = s.progress.Index
		st.Total = s.progress.Total
		st.Success = s.progress.Success
		st.Failure = s.progress.Failure
		if s.progress.Index > 0 {
			st.LastLine = s.progress.Line()
		}
	case s.last != nil:
		st.RunID = s.last.RunID
		st.Processed = len(s.last.Results)
		st.Total = s.last.Total
		st.Success = s.last.Success
		st.Failure = s.last.Failure
		st.Summary = s.last.Summary()
	}
	return st
}
