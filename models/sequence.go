package models

import "gorm.io/gorm"

// Sequence represents an automated drip email sequence
type Sequence struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	FromAccount string `gorm:"not null" json:"from_account"` // provider name in the registry
	Status      string `gorm:"default:'draft'" json:"status"` // draft, active, paused

	// Relations
	Steps []SequenceStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
}

// SequenceStep represents one email within a sequence, identified by its
// 1-based position. Step numbers are unique and contiguous within a
// sequence; the step worker relies on step_number = current+1 lookups
// either succeeding or returning record-not-found.
type SequenceStep struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`

	StepNumber  int    `gorm:"not null;index" json:"step_number"`
	Subject     string `gorm:"not null" json:"subject"`
	Body        string `gorm:"type:text" json:"body"`
	DelayAmount int    `gorm:"not null" json:"delay_amount"`
	DelayUnit   string `gorm:"not null;default:'days'" json:"delay_unit"` // hours, days

	// Tracking
	SentCount int `gorm:"default:0" json:"sent_count"`
}
