package models

import "time"

type AssessmentStatus string

const (
	StatusDraft    AssessmentStatus = "Draft"
	StatusActive   AssessmentStatus = "Active"
	StatusArchived AssessmentStatus = "Archived"
)

// AssessmentDefinition is the catalog's read model for one assessment.
// The engine never writes these tables; authoring is owned by the catalog
// service. Exactly one option per question carries IsCorrect = true, enforced
// by the catalog.
type AssessmentDefinition struct {
	ID     uint             `json:"id" gorm:"primaryKey"`
	Title  string           `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Status AssessmentStatus `json:"status" gorm:"default:Draft;index" validate:"omitempty,oneof=Draft Active Archived"`

	TimeLimitSeconds *int `json:"time_limit_seconds" validate:"omitempty,min=1"`
	PassScorePercent *int `json:"pass_score_percent" validate:"omitempty,min=0,max=100"`
	MaxAttempts      *int `json:"max_attempts" validate:"omitempty,min=1"`
	MaxParticipants  *int `json:"max_participants" validate:"omitempty,min=1"`

	AutoSubmitOnTimeout bool `json:"auto_submit_on_timeout" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Questions []Question `json:"questions" gorm:"foreignKey:AssessmentID"`
}

type Question struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	AssessmentID uint   `json:"assessment_id" gorm:"not null;index"`
	Position     int    `json:"position" gorm:"not null"`
	Content      string `json:"content" gorm:"type:text;not null"`

	Options []Option `json:"options" gorm:"foreignKey:QuestionID"`
}

type Option struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Position   int    `json:"position" gorm:"not null"`
	Content    string `json:"content" gorm:"type:text;not null"`
	IsCorrect  bool   `json:"is_correct" gorm:"not null;default:false"`
}

func (AssessmentDefinition) TableName() string {
	return "assessments"
}

// Timed reports whether the assessment enforces a wall-clock window.
func (a *AssessmentDefinition) Timed() bool {
	return a.TimeLimitSeconds != nil && *a.TimeLimitSeconds > 0
}

func (a *AssessmentDefinition) QuestionByID(id uint) *Question {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i]
		}
	}
	return nil
}

// CorrectOptionID returns the id of the option marked correct.
func (q *Question) CorrectOptionID() (uint, bool) {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return q.Options[i].ID, true
		}
	}
	return 0, false
}

func (q *Question) HasOption(id uint) bool {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return true
		}
	}
	return false
}
