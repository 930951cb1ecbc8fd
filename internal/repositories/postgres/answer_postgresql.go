package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/learnhub/assessment-engine/internal/models"
	"github.com/learnhub/assessment-engine/internal/repositories"
)

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

// Upsert lands the answer in one statement keyed on the composite primary
// key, so a retried or changed submission replaces the row instead of
// erroring or duplicating, even when two copies of the same request race.
func (a *AnswerPostgreSQL) Upsert(ctx context.Context, answer *models.Answer) error {
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "assessment_id"}, {Name: "question_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"selected_option_id", "is_correct", "answered_at",
		}),
	}).Create(answer).Error
}

func (a *AnswerPostgreSQL) GetByUserAndAssessment(ctx context.Context, userID, assessmentID uint) ([]*models.Answer, error) {
	var answers []*models.Answer
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Order("question_id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, err
	}
	return answers, nil
}

func (a *AnswerPostgreSQL) DeleteByUserAndAssessment(ctx context.Context, userID, assessmentID uint) error {
	return a.db.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Delete(&models.Answer{}).Error
}
