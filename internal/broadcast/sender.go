package broadcast

import (
	"context"
	"time"

	"go.uber.org/zap"

	"whatsapp-sender/internal/models"
	"whatsapp-sender/internal/whatsapp"
)

// DefaultDelay separates consecutive requests. It paces output for the
// operator and is not a provider rate limit.
const DefaultDelay = 50 * time.Millisecond

// MessageSender posts one template message. *whatsapp.Client satisfies it.
type MessageSender interface {
	SendTemplateMessage(ctx context.Context, token, phoneNumberID, to, templateName, languageCode string) (whatsapp.SendResponse, error)
}

// Recorder persists run history. *database.HistoryRepository satisfies it.
type Recorder interface {
	CreateRun(ctx context.Context, run *models.BroadcastRun) error
	RecordAttempt(ctx context.Context, attempt *models.SendAttempt) error
	FinishRun(ctx context.Context, runID, state string, success, failure int, finishedAt time.Time) error
}

type Sender struct {
	Client   MessageSender
	Delay    time.Duration
	Recorder Recorder
	Logger   *zap.Logger
}

func NewSender(client MessageSender, delay time.Duration, recorder Recorder, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{Client: client, Delay: delay, Recorder: recorder, Logger: logger}
}

// Run sends job.TemplateName to every number in order. A failed send never
// stops the batch and is never retried. Cancelling ctx stops the run between
// sends; the report then holds the attempts made so far and State is
// StateCancelled. onProgress may be nil.
func (s *Sender) Run(ctx context.Context, job Job, onProgress func(Progress)) (Report, error) {
	if len(job.Numbers) == 0 {
		return Report{}, ErrNoLeads
	}
	if job.TemplateName == "" {
		return Report{}, ErrNoTemplate
	}
	if job.RunID == "" {
		job.RunID = NewRunID()
	}
	if job.LanguageCode == "" {
		job.LanguageCode = whatsapp.DefaultLanguage
	}

	report := Report{
		RunID:        job.RunID,
		State:        StateRunning,
		TemplateName: job.TemplateName,
		LanguageCode: job.LanguageCode,
		Total:        len(job.Numbers),
		Results:      make([]SendResult, 0, len(job.Numbers)),
		StartedAt:    time.Now(),
	}
	log := s.Logger.With(zap.String("run_id", job.RunID), zap.String("template", job.TemplateName))
	log.Info("broadcast started", zap.Int("total", report.Total), zap.String("language", job.LanguageCode))
	s.createRun(ctx, report, log)

	for i, number := range job.Numbers {
		if i > 0 && !s.pause(ctx) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		result := s.sendOne(ctx, job, number)
		report.Results = append(report.Results, result)
		if result.OK() {
			report.Success++
		} else {
			report.Failure++
			log.Warn("send failed",
				zap.String("to", number),
				zap.Int("status", result.StatusCode),
				zap.String("error", result.ErrorMessage))
		}
		s.recordAttempt(ctx, job.RunID, i, result, log)

		if onProgress != nil {
			onProgress(Progress{
				RunID:   job.RunID,
				Index:   i + 1,
				Total:   report.Total,
				Result:  result,
				Success: report.Success,
				Failure: report.Failure,
			})
		}
	}

	report.State = StateCompleted
	if len(report.Results) < report.Total {
		report.State = StateCancelled
	}
	report.FinishedAt = time.Now()
	s.finishRun(report, log)
	log.Info("broadcast finished",
		zap.String("state", string(report.State)),
		zap.Int("success", report.Success),
		zap.Int("failure", report.Failure))
	return report, nil
}

// sendOne is not interrupted by cancelling ctx; once a request is out the
// provider may accept it, so its real outcome is recorded. The HTTP client
// timeout still bounds it.
func (s *Sender) sendOne(ctx context.Context, job Job, number string) SendResult {
	resp, err := s.Client.SendTemplateMessage(context.WithoutCancel(ctx),
		job.Credentials.AccessToken, job.Credentials.PhoneNumberID,
		number, job.TemplateName, job.LanguageCode)
	result := SendResult{
		Number:       number,
		StatusCode:   resp.StatusCode,
		ErrorMessage: resp.ErrorMessage,
		MessageID:    resp.MessageID,
	}
	if err != nil {
		result.ErrorMessage = err.Error()
	}
	return result
}

// pause waits Delay between two sends. It returns false if ctx ended first.
func (s *Sender) pause(ctx context.Context) bool {
	if s.Delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Sender) createRun(ctx context.Context, report Report, log *zap.Logger) {
	if s.Recorder == nil {
		return
	}
	run := &models.BroadcastRun{
		ID:           report.RunID,
		TemplateName: report.TemplateName,
		LanguageCode: report.LanguageCode,
		State:        string(StateRunning),
		Total:        report.Total,
		StartedAt:    report.StartedAt,
	}
	if err := s.Recorder.CreateRun(ctx, run); err != nil {
		log.Error("failed to record run", zap.Error(err))
	}
}

func (s *Sender) recordAttempt(ctx context.Context, runID string, position int, result SendResult, log *zap.Logger) {
	if s.Recorder == nil {
		return
	}
	attempt := &models.SendAttempt{
		RunID:        runID,
		Position:     position,
		PhoneNumber:  result.Number,
		StatusCode:   result.StatusCode,
		ErrorMessage: result.ErrorMessage,
		MessageID:    result.MessageID,
	}
	if result.OK() {
		attempt.DeliveryStatus = "accepted"
	}
	// Recorded even when ctx was cancelled mid-request.
	if err := s.Recorder.RecordAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		log.Error("failed to record attempt", zap.String("to", result.Number), zap.Error(err))
	}
}

func (s *Sender) finishRun(report Report, log *zap.Logger) {
	if s.Recorder == nil {
		return
	}
	err := s.Recorder.FinishRun(context.Background(), report.RunID, string(report.State),
		report.Success, report.Failure, report.FinishedAt)
	if err != nil {
		log.Error("failed to finish run", zap.Error(err))
	}
}
