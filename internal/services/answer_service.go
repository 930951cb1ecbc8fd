package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnhub/assessment-engine/internal/models"
	"github.com/learnhub/assessment-engine/internal/repositories"
	"github.com/learnhub/assessment-engine/internal/telemetry"
	"github.com/learnhub/assessment-engine/internal/utils"
)

// AnswerService maintains the working answer sheet for a live session.
// Submissions are idempotent upserts keyed by question, so clients can
// retry freely and change answers until the window closes.
type AnswerService interface {
	Submit(ctx context.Context, req *SubmitAnswerRequest) (*AnswerAck, error)
}

type SubmitAnswerRequest struct {
	UserID       uint  `json:"user_id" validate:"required"`
	AssessmentID uint  `json:"assessment_id" validate:"required"`
	QuestionID   uint  `json:"question_id" validate:"required"`
	// SelectedOptionID nil records an explicit skip.
	SelectedOptionID *uint `json:"selected_option_id"`
}

type AnswerAck struct {
	QuestionID uint      `json:"question_id"`
	Skipped    bool      `json:"skipped"`
	AnsweredAt time.Time `json:"answered_at"`
}

type answerService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *utils.Validator
	metrics   *telemetry.Metrics
	now       func() time.Time
}

func NewAnswerService(deps Deps) AnswerService {
	return &answerService{
		repo:      deps.Repo,
		logger:    deps.Logger,
		validator: deps.Validator,
		metrics:   deps.Metrics,
		now:       deps.Now,
	}
}

func (s *answerService) Submit(ctx context.Context, req *SubmitAnswerRequest) (*AnswerAck, error) {
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
	question := def.QuestionByID(req.QuestionID)
	if question == nil {
		return nil, ErrQuestionNotFound
	}
	if req.SelectedOptionID != nil && !question.HasOption(*req.SelectedOptionID) {
		return nil, ErrOptionNotFound
	}

	session, err := s.repo.Session().Get(ctx, req.UserID, req.AssessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session.Expired(now) {
		return nil, ErrSessionExpired
	}

	// Correctness is snapshotted at write time so scoring never has to
	// re-join against the catalog.
	isCorrect := false
	if req.SelectedOptionID != nil {
		if correctID, ok := question.CorrectOptionID(); ok {
			isCorrect = *req.SelectedOptionID == correctID
		}
	}

	answer := &models.Answer{
		UserID:           req.UserID,
		AssessmentID:     req.AssessmentID,
		QuestionID:       req.QuestionID,
		SelectedOptionID: req.SelectedOptionID,
		IsCorrect:        isCorrect,
		AnsweredAt:       now,
	}
	if err := s.repo.Answer().Upsert(ctx, answer); err != nil {
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}

	s.metrics.AnswersSubmitted.Inc()
	s.logger.Debug("answer recorded",
		"user_id", req.UserID,
		"assessment_id", req.AssessmentID,
		"question_id", req.QuestionID,
		"skipped", req.SelectedOptionID == nil)

	return &AnswerAck{
		QuestionID: req.QuestionID,
		Skipped:    req.SelectedOptionID == nil,
		AnsweredAt: now,
	}, nil
}
