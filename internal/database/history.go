package database

import (
	"context"
	"errors"
	"time"

	"whatsapp-sender/internal/models"

	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("broadcast run not found")

// HistoryRepository stores broadcast runs and their send attempts.
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) CreateRun(ctx context.Context, run *models.BroadcastRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *HistoryRepository) RecordAttempt(ctx context.Context, attempt *models.SendAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

// FinishRun stores the final state and counters of a run.
func (r *HistoryRepository) FinishRun(ctx context.Context, runID, state string, success, failure int, finishedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.BroadcastRun{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"state":       state,
			"success":     success,
			"failure":     failure,
			"finished_at": finishedAt,
		}).Error
}

// ListRuns returns the most recent runs first, without attempts.
func (r *HistoryRepository) ListRuns(ctx context.Context, limit int) ([]models.BroadcastRun, error) {
	var runs []models.BroadcastRun
	err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// GetRun returns a run with its attempts in send order.
func (r *HistoryRepository) GetRun(ctx context.Context, runID string) (*models.BroadcastRun, error) {
	var run models.BroadcastRun
	err := r.db.WithContext(ctx).
		Preload("Attempts", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&run, "id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateDeliveryStatus applies a webhook status to the attempt that produced
// messageID. It returns the number of rows changed.
func (r *HistoryRepository) UpdateDeliveryStatus(ctx context.Context, messageID, status string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.SendAttempt{}).
		Where("message_id = ?", messageID).
		Update("delivery_status", status)
	return res.RowsAffected, res.Error
}
