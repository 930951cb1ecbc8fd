package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/learnhub/assessment-engine/internal/capacity"
	"github.com/learnhub/assessment-engine/internal/models"
	"github.com/learnhub/assessment-engine/internal/repositories"
	"github.com/learnhub/assessment-engine/internal/telemetry"
	"github.com/learnhub/assessment-engine/internal/utils"
)

// SessionService owns the time-boxing of one (user, assessment) pair:
// creation, idempotent re-entry and expiry-triggered reset.
type SessionService interface {
	Start(ctx context.Context, req *StartRequest) (*SessionView, error)
}

type StartRequest struct {
	UserID       uint `json:"user_id" validate:"required"`
	AssessmentID uint `json:"assessment_id" validate:"required"`
}

type OptionView struct {
	ID       uint   `json:"id"`
	Position int    `json:"position"`
	Content  string `json:"content"`
}

// QuestionView is the client-facing question shape. It never exposes which
// option is correct.
type QuestionView struct {
	ID               uint         `json:"id"`
	Position         int          `json:"position"`
	Content          string       `json:"content"`
	Options          []OptionView `json:"options"`
	SelectedOptionID *uint        `json:"selected_option_id,omitempty"`
}

type SessionView struct {
	AssessmentID         uint           `json:"assessment_id"`
	AttemptID            string         `json:"attempt_id,omitempty"`
	Generation           int            `json:"generation"`
	StartedAt            time.Time      `json:"started_at"`
	ExpiresAt            time.Time      `json:"expires_at"`
	Timed                bool           `json:"timed"`
	TimeRemainingSeconds int            `json:"time_remaining_seconds"`
	Resumed              bool           `json:"resumed"`
	Questions            []QuestionView `json:"questions"`
}

type sessionService struct {
	repo      repositories.Repository
	capacity  capacity.Accountant
	logger    *slog.Logger
	validator *utils.Validator
	metrics   *telemetry.Metrics
	now       func() time.Time
}

func NewSessionService(deps Deps) SessionService {
	return &sessionService{
		repo:      deps.Repo,
		capacity:  deps.Capacity,
		logger:    deps.Logger,
		validator: deps.Validator,
		metrics:   deps.Metrics,
		now:       deps.Now,
	}
}

func (s *sessionService) Start(ctx context.Context, req *StartRequest) (*SessionView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	now := s.now()

	def, err := s.repo.Catalog().GetDefinition(ctx, req.AssessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment definition: %w", err)
	}
	if def.Status != models.StatusActive {
		return nil, ErrAssessmentNotOpen
	}

	if def.MaxAttempts != nil {
		submitted, err := s.repo.Attempt().CountSubmitted(ctx, req.UserID, req.AssessmentID)
		if err != nil {
			return nil, fmt.Errorf("failed to count submitted attempts: %w", err)
		}
		if submitted >= *def.MaxAttempts {
			return nil, ErrAttemptLimitExceeded
		}
	}

	existing, err := s.repo.Session().Get(ctx, req.UserID, req.AssessmentID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if existing != nil && !existing.Expired(now) {
		// Idempotent re-entry: the window and answer sheet stay untouched.
		return s.resumeView(ctx, def, existing, now)
	}
	if existing != nil && !existing.SlotReleased {
		// The abandoned window still holds its slot; reclaim it before
		// acquiring a fresh one so the count does not drift upward.
		s.reclaimStaleSlot(ctx, existing)
	}

	limit := 0
	if def.MaxParticipants != nil {
		limit = *def.MaxParticipants
	}
	acquired, err := s.capacity.TryAcquire(ctx, def.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("capacity check failed: %w", err)
	}
	if !acquired {
		s.metrics.CapacityRejections.Inc()
		return nil, ErrCapacityExceeded
	}

	expiresAt := now.Add(models.UntimedWindow)
	if def.Timed() {
		expiresAt = now.Add(time.Duration(*def.TimeLimitSeconds) * time.Second)
	}

	var (
		session   *models.Session
		newGen    bool
		attemptID string
	)
	err = s.repo.WithTx(ctx, func(r repositories.Repository) error {
		var txErr error
		session, newGen, txErr = r.Session().StartGeneration(ctx, req.UserID, req.AssessmentID, now, expiresAt)
		if txErr != nil {
			return fmt.Errorf("start generation: %w", txErr)
		}
		if !newGen {
			return nil
		}

		// Settle the previous generation's attempt before wiping its
		// answer sheet, so history keeps every pass.
		if txErr := s.settleStaleAttempt(ctx, r, def, req.UserID, now); txErr != nil {
			return txErr
		}
		if txErr := r.Answer().DeleteByUserAndAssessment(ctx, req.UserID, req.AssessmentID); txErr != nil {
			return fmt.Errorf("clear answer sheet: %w", txErr)
		}

		id, txErr := uuid.NewV7()
		if txErr != nil {
			return fmt.Errorf("generate attempt id: %w", txErr)
		}
		attemptID = id.String()
		attempt := &models.Attempt{
			ID:             attemptID,
			UserID:         req.UserID,
			AssessmentID:   req.AssessmentID,
			Generation:     session.Generation,
			StartedAt:      now,
			TotalQuestions: len(def.Questions),
			Status:         models.AttemptInProgress,
		}
		if txErr := r.Attempt().Create(ctx, attempt); txErr != nil {
			return fmt.Errorf("record attempt: %w", txErr)
		}
		return nil
	})
	if err != nil {
		s.releaseAcquiredSlot(ctx, def.ID)
		return nil, err
	}
	if !newGen {
		// Another start call won the upsert race; its window is the live
		// one, so hand the extra slot back and ride theirs.
		s.releaseAcquiredSlot(ctx, def.ID)
		if session.Expired(now) {
			return nil, ErrConcurrentModification
		}
		return s.resumeView(ctx, def, session, now)
	}

	s.metrics.SessionsStarted.Inc()
	s.logger.Info("session generation started",
		"user_id", req.UserID,
		"assessment_id", req.AssessmentID,
		"generation", session.Generation,
		"expires_at", expiresAt)

	return buildSessionView(def, session, nil, attemptID, now, false), nil
}

// resumeView re-returns the live window unchanged, with the answers already
// on the ledger so a page refresh shows progress.
func (s *sessionService) resumeView(ctx context.Context, def *models.AssessmentDefinition, session *models.Session, now time.Time) (*SessionView, error) {
	answers, err := s.repo.Answer().GetByUserAndAssessment(ctx, session.UserID, def.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}

	attemptID := ""
	if attempt, err := s.repo.Attempt().GetInProgress(ctx, session.UserID, def.ID); err == nil {
		attemptID = attempt.ID
	}

	s.metrics.SessionsResumed.Inc()
	s.logger.Info("session resumed",
		"user_id", session.UserID,
		"assessment_id", def.ID,
		"generation", session.Generation)

	return buildSessionView(def, session, answers, attemptID, now, true), nil
}

func (s *sessionService) settleStaleAttempt(ctx context.Context, r repositories.Repository, def *models.AssessmentDefinition, userID uint, now time.Time) error {
	prior, err := r.Attempt().GetInProgress(ctx, userID, def.ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("load stale attempt: %w", err)
	}

	answers, err := r.Answer().GetByUserAndAssessment(ctx, userID, def.ID)
	if err != nil {
		return fmt.Errorf("load stale answers: %w", err)
	}
	result := computeResult(def, answers)
	breakdown, err := json.Marshal(result.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}
	if _, err := r.Attempt().Submit(ctx, prior.ID, now, result.Total, result.Correct, result.Percent, result.Passed, datatypes.JSON(breakdown)); err != nil {
		return fmt.Errorf("settle stale attempt: %w", err)
	}
	return nil
}

func (s *sessionService) reclaimStaleSlot(ctx context.Context, session *models.Session) {
	flipped, err := s.repo.Session().ReleaseSlot(ctx, session.UserID, session.AssessmentID, session.Generation)
	if err != nil {
		s.logger.Error("failed to flag stale slot released",
			"user_id", session.UserID,
			"assessment_id", session.AssessmentID,
			"error", err)
		return
	}
	if !flipped {
		return
	}
	if err := s.capacity.Release(ctx, session.AssessmentID); err != nil {
		s.logger.Error("failed to release stale capacity slot",
			"assessment_id", session.AssessmentID,
			"error", err)
	}
}

func (s *sessionService) releaseAcquiredSlot(ctx context.Context, assessmentID uint) {
	if err := s.capacity.Release(ctx, assessmentID); err != nil {
		s.logger.Error("failed to release capacity slot",
			"assessment_id", assessmentID,
			"error", err)
	}
}

func buildSessionView(def *models.AssessmentDefinition, session *models.Session, answers []*models.Answer, attemptID string, now time.Time, resumed bool) *SessionView {
	selected := make(map[uint]*uint, len(answers))
	for _, answer := range answers {
		selected[answer.QuestionID] = answer.SelectedOptionID
	}

	questions := make([]QuestionView, len(def.Questions))
	for i, q := range def.Questions {
		options := make([]OptionView, len(q.Options))
		for j, o := range q.Options {
			options[j] = OptionView{ID: o.ID, Position: o.Position, Content: o.Content}
		}
		questions[i] = QuestionView{
			ID:               q.ID,
			Position:         q.Position,
			Content:          q.Content,
			Options:          options,
			SelectedOptionID: selected[q.ID],
		}
	}

	remaining := 0
	if def.Timed() {
		remaining = int(session.ExpiresAt.Sub(now).Seconds())
		if remaining < 0 {
			remaining = 0
		}
	}

	return &SessionView{
		AssessmentID:         def.ID,
		AttemptID:            attemptID,
		Generation:           session.Generation,
		StartedAt:            session.StartedAt,
		ExpiresAt:            session.ExpiresAt,
		Timed:                def.Timed(),
		TimeRemainingSeconds: remaining,
		Resumed:              resumed,
		Questions:            questions,
	}
}
