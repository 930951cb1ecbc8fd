package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/learnhub/assessment-engine/internal/models"
	"github.com/learnhub/assessment-engine/internal/repositories"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) Get(ctx context.Context, userID, assessmentID uint) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		First(&session).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &session, nil
}

// StartGeneration relies on INSERT ... ON CONFLICT DO UPDATE ... WHERE: the
// update clause only fires when the stored window has expired, so two
// concurrent starts serialize on the row and exactly one of them begins a new
// generation. RowsAffected = 0 means a live window already exists.
func (s *SessionPostgreSQL) StartGeneration(ctx context.Context, userID, assessmentID uint, now, expiresAt time.Time) (*models.Session, bool, error) {
	session := &models.Session{
		UserID:       userID,
		AssessmentID: assessmentID,
		Generation:   1,
		StartedAt:    now,
		ExpiresAt:    expiresAt,
		SlotReleased: false,
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "assessment_id"}},
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("sessions.expires_at <= ?", now),
		}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"generation":    gorm.Expr("sessions.generation + 1"),
			"started_at":    now,
			"expires_at":    expiresAt,
			"slot_released": false,
			"updated_at":    now,
		}),
	}).Create(session)
	if res.Error != nil {
		return nil, false, res.Error
	}

	// Re-read either way: on the update path the struct does not carry the
	// bumped generation, and on the no-op path the caller needs the live row.
	current, err := s.Get(ctx, userID, assessmentID)
	if err != nil {
		return nil, false, err
	}
	return current, res.RowsAffected > 0, nil
}

func (s *SessionPostgreSQL) ReleaseSlot(ctx context.Context, userID, assessmentID uint, generation int) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("user_id = ? AND assessment_id = ? AND generation = ? AND slot_released = false",
			userID, assessmentID, generation).
		Update("slot_released", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *SessionPostgreSQL) ListExpiredHeldSlots(ctx context.Context, now time.Time, limit int) ([]*models.Session, error) {
	var sessions []*models.Session
	query := s.db.WithContext(ctx).
		Where("expires_at <= ? AND slot_released = false", now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
