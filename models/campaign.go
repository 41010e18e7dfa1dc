package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign statuses
const (
	CampaignStatusPending   = "pending"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusActive    = "active"
	CampaignStatusCompleted = "completed"
)

// Campaign represents a one-shot batch email send to a recipient list
type Campaign struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	// Campaign details
	Name        string `gorm:"not null" json:"name"`
	FromAccount string `gorm:"not null" json:"from_account"` // provider name in the registry
	Subject     string `gorm:"not null" json:"subject"`
	Body        string `gorm:"type:text" json:"body"`

	// Scheduling
	Status      string     `gorm:"default:'pending'" json:"status"` // pending, scheduled, active, completed
	ScheduledAt *time.Time `json:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Statistics (denormalized for reporting)
	TotalRecipients int `gorm:"default:0" json:"total_recipients"`
	SentCount       int `gorm:"default:0" json:"sent_count"`
	BounceCount     int `gorm:"default:0" json:"bounce_count"`
	OpenCount       int `gorm:"default:0" json:"open_count"`
	ClickCount      int `gorm:"default:0" json:"click_count"`
	ReplyCount      int `gorm:"default:0" json:"reply_count"`

	// Relations
	Trackings []EmailTracking `gorm:"foreignKey:CampaignID" json:"trackings,omitempty"`
}
