package models

import (
	"time"
)

// BroadcastRun is one send of a template to an uploaded lead list.
type BroadcastRun struct {
	ID           string        `gorm:"primaryKey;type:varchar(26)" json:"id"`
	TemplateName string        `gorm:"type:varchar(255);not null" json:"template_name"`
	LanguageCode string        `gorm:"type:varchar(20)" json:"language_code"`
	State        string        `gorm:"type:varchar(20);index" json:"state"`
	Total        int           `json:"total"`
	Success      int           `json:"success"`
	Failure      int           `json:"failure"`
	StartedAt    time.Time     `gorm:"autoCreateTime" json:"started_at"`
	FinishedAt   *time.Time    `json:"finished_at"`
	Attempts     []SendAttempt `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE;" json:"attempts,omitempty"`
}

func (BroadcastRun) TableName() string {
	return "broadcast_runs"
}

// SendAttempt is one POST to the messages endpoint within a run.
// MessageID is the wamid returned on success; DeliveryStatus is then
// updated from webhook status events (sent, delivered, read, failed).
type SendAttempt struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RunID          string    `gorm:"index;type:varchar(26);not null" json:"run_id"`
	Position       int       `json:"position"`
	PhoneNumber    string    `gorm:"type:varchar(20);not null" json:"phone_number"`
	StatusCode     int       `json:"status_code"`
	ErrorMessage   string    `gorm:"type:text" json:"error_message"`
	MessageID      string    `gorm:"type:varchar(255);index" json:"message_id"`
	DeliveryStatus string    `gorm:"type:varchar(20)" json:"delivery_status"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SendAttempt) TableName() string {
	return "send_attempts"
}
