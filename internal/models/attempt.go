package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
)

// Attempt is one historical pass through an assessment. A row is created when
// a session generation starts and transitions exactly once to SUBMITTED with
// its final counts; after that it is immutable.
type Attempt struct {
	ID           string `json:"id" gorm:"primaryKey;size:36"`
	UserID       uint   `json:"user_id" gorm:"not null;index:idx_attempts_user_assessment"`
	AssessmentID uint   `json:"assessment_id" gorm:"not null;index:idx_attempts_user_assessment"`
	Generation   int    `json:"generation" gorm:"not null;default:1"`

	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt *time.Time `json:"submitted_at"`

	TotalQuestions int  `json:"total_questions" gorm:"not null"`
	CorrectCount   int  `json:"correct_count" gorm:"not null;default:0"`
	ScorePercent   int  `json:"score_percent" gorm:"not null;default:0"`
	Passed         bool `json:"passed" gorm:"not null;default:false"`

	Status AttemptStatus `json:"status" gorm:"not null;default:IN_PROGRESS;index"`

	// Breakdown holds the per-question snapshot taken at submit time.
	// []AnswerBreakdown encoded as JSON.
	Breakdown datatypes.JSON `json:"breakdown" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnswerBreakdown is one entry of the submitted attempt's question snapshot.
type AnswerBreakdown struct {
	QuestionID       uint  `json:"question_id"`
	SelectedOptionID *uint `json:"selected_option_id"`
	Correct          bool  `json:"correct"`
}

func (Attempt) TableName() string {
	return "attempts"
}
