package postgres

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/learnhub/assessment-engine/internal/models"
	"github.com/learnhub/assessment-engine/internal/repositories"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.Attempt) error {
	return a.db.WithContext(ctx).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetInProgress(ctx context.Context, userID, assessmentID uint) (*models.Attempt, error) {
	var attempt models.Attempt
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ? AND status = ?",
			userID, assessmentID, models.AttemptInProgress).
		Order("generation DESC").
		First(&attempt).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetLatestSubmitted(ctx context.Context, userID, assessmentID uint) (*models.Attempt, error) {
	var attempt models.Attempt
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ? AND status = ?",
			userID, assessmentID, models.AttemptSubmitted).
		Order("submitted_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountSubmitted(ctx context.Context, userID, assessmentID uint) (int, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("user_id = ? AND assessment_id = ? AND status = ?",
			userID, assessmentID, models.AttemptSubmitted).
		Count(&count).Error
	return int(count), err
}

func (a *AttemptPostgreSQL) ListByUserAndAssessment(ctx context.Context, userID, assessmentID uint) ([]*models.Attempt, error) {
	var attempts []*models.Attempt
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Order("started_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// Submit is the IN_PROGRESS -> SUBMITTED transition, conditional in SQL so a
// double finalize cannot overwrite a graded result.
func (a *AttemptPostgreSQL) Submit(ctx context.Context, id string, submittedAt time.Time, totalQuestions, correctCount, scorePercent int, passed bool, breakdown datatypes.JSON) (bool, error) {
	res := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND status = ?", id, models.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":          models.AttemptSubmitted,
			"submitted_at":    submittedAt,
			"total_questions": totalQuestions,
			"correct_count":   correctCount,
			"score_percent":   scorePercent,
			"passed":          passed,
			"breakdown":       breakdown,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
