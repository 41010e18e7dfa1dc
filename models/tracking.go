package models

import (
	"time"

	"gorm.io/gorm"
)

// Tracking statuses
const (
	TrackingStatusSent    = "sent"
	TrackingStatusBounced = "bounced"
)

// EmailTracking is an append-only log of send attempts. Every attempt
// produces a new row, including retries of the same job; rows are never
// deduplicated by recipient or step.
type EmailTracking struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	// Exactly one of CampaignID / SequenceID is set
	CampaignID *uint `gorm:"index" json:"campaign_id,omitempty"`
	SequenceID *uint `gorm:"index" json:"sequence_id,omitempty"`
	StepNumber int   `gorm:"default:0" json:"step_number"` // 0 for campaign sends

	RecipientEmail string `gorm:"not null;index" json:"recipient_email"`
	Status         string `gorm:"not null" json:"status"` // sent, bounced
	MessageID      string `gorm:"index" json:"message_id"`
	ErrorMessage   string `json:"error_message,omitempty"`

	// Engagement timestamps
	OpenedAt  *time.Time `json:"opened_at"`
	ClickedAt *time.Time `json:"clicked_at"`
	RepliedAt *time.Time `json:"replied_at"`
	BouncedAt *time.Time `json:"bounced_at"`
}
