package models

import "time"

// UntimedWindow is the expiry horizon stored for assessments without a time
// limit, so every session row carries a comparable expires_at.
const UntimedWindow = 100 * 365 * 24 * time.Hour

// Session is the single live time-boxed window for one (user, assessment)
// pair. There is never more than one row per pair; a restart after expiry
// bumps Generation in place instead of inserting a second row.
type Session struct {
	UserID       uint `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	AssessmentID uint `json:"assessment_id" gorm:"primaryKey;autoIncrement:false"`

	Generation int       `json:"generation" gorm:"not null;default:1"`
	StartedAt  time.Time `json:"started_at" gorm:"not null"`
	ExpiresAt  time.Time `json:"expires_at" gorm:"not null;index"`

	// SlotReleased flips to true exactly once per generation, when the
	// capacity slot acquired at start is handed back (finalize or sweep).
	SlotReleased bool `json:"slot_released" gorm:"not null;default:false"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
