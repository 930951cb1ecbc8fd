package models

import "time"

// Answer is the single current choice for one question of one (user,
// assessment) pair. The composite primary key is the uniqueness constraint
// that makes resubmission an upsert rather than a duplicate row.
type Answer struct {
	UserID       uint `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	AssessmentID uint `json:"assessment_id" gorm:"primaryKey;autoIncrement:false"`
	QuestionID   uint `json:"question_id" gorm:"primaryKey;autoIncrement:false"`

	// SelectedOptionID is nil when the question was explicitly skipped.
	SelectedOptionID *uint `json:"selected_option_id"`

	// IsCorrect is snapshotted against the catalog at write time and never
	// recomputed, so later catalog edits do not rewrite history.
	IsCorrect bool `json:"is_correct" gorm:"not null;default:false"`

	AnsweredAt time.Time `json:"answered_at" gorm:"not null"`
}

func (Answer) TableName() string {
	return "answers"
}
