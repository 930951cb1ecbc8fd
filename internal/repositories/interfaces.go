package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"

	"github.com/learnhub/assessment-engine/internal/models"
)

// ErrNotFound is returned by every repository when the requested row does not
// exist. Drivers map their own sentinel (gorm.ErrRecordNotFound) onto it.
var ErrNotFound = errors.New("record not found")

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Repository aggregates the engine's stores. WithTx runs fn against a variant
// of the aggregate whose writes share one transaction; the conditional-write
// primitives below stay the arbitration mechanism either way.
type Repository interface {
	Catalog() CatalogRepository
	Session() SessionRepository
	Answer() AnswerRepository
	Attempt() AttemptRepository

	WithTx(ctx context.Context, fn func(Repository) error) error
}

// CatalogRepository is the read-only view onto the catalog's assessment
// definitions. The engine never writes through it.
type CatalogRepository interface {
	// GetDefinition loads an assessment with its questions and options in
	// catalog order.
	GetDefinition(ctx context.Context, assessmentID uint) (*models.AssessmentDefinition, error)
}

type SessionRepository interface {
	Get(ctx context.Context, userID, assessmentID uint) (*models.Session, error)

	// StartGeneration is the atomic create-or-resume-or-reset decision: a
	// single conditional upsert keyed on (user_id, assessment_id) that only
	// resets the window when the stored one has expired relative to now.
	// It returns the session row that won plus whether a new generation
	// began; false means the live window was left untouched and the caller
	// must resume it.
	StartGeneration(ctx context.Context, userID, assessmentID uint, now, expiresAt time.Time) (*models.Session, bool, error)

	// ReleaseSlot flips slot_released for the given generation, returning
	// true only for the caller that performed the flip. Guards the capacity
	// decrement against double release.
	ReleaseSlot(ctx context.Context, userID, assessmentID uint, generation int) (bool, error)

	// ListExpiredHeldSlots returns sessions whose window has passed but
	// whose capacity slot was never handed back. Used by the expiry sweep.
	ListExpiredHeldSlots(ctx context.Context, now time.Time, limit int) ([]*models.Session, error)
}

type AnswerRepository interface {
	// Upsert writes the answer as an atomic insert-or-update on the
	// (user_id, assessment_id, question_id) key.
	Upsert(ctx context.Context, answer *models.Answer) error

	GetByUserAndAssessment(ctx context.Context, userID, assessmentID uint) ([]*models.Answer, error)

	// DeleteByUserAndAssessment clears the answer sheet when a new session
	// generation begins.
	DeleteByUserAndAssessment(ctx context.Context, userID, assessmentID uint) error
}

type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.Attempt) error
	GetInProgress(ctx context.Context, userID, assessmentID uint) (*models.Attempt, error)
	GetLatestSubmitted(ctx context.Context, userID, assessmentID uint) (*models.Attempt, error)
	CountSubmitted(ctx context.Context, userID, assessmentID uint) (int, error)
	ListByUserAndAssessment(ctx context.Context, userID, assessmentID uint) ([]*models.Attempt, error)

	// Submit transitions the attempt to SUBMITTED with its final counts,
	// conditional on it still being IN_PROGRESS. Returns false when another
	// caller already submitted it; the stored result is then authoritative.
	Submit(ctx context.Context, id string, submittedAt time.Time, totalQuestions, correctCount, scorePercent int, passed bool, breakdown datatypes.JSON) (bool, error)
}
