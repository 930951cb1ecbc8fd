package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gorm.io/datatypes"

	"github.com/learnhub/assessment-engine/internal/capacity"
	"github.com/learnhub/assessment-engine/internal/events"
	"github.com/learnhub/assessment-engine/internal/models"
	"github.com/learnhub/assessment-engine/internal/repositories"
	"github.com/learnhub/assessment-engine/internal/telemetry"
)

// ScoringService turns an in-progress attempt into an immutable result.
// Finalize is idempotent: repeated calls for the same attempt return the
// stored result byte for byte, no matter what landed on the answer sheet
// in between.
type ScoringService interface {
	Finalize(ctx context.Context, userID, assessmentID uint) (*Result, error)
}

type Result struct {
	AttemptID      string    `json:"attempt_id"`
	TotalQuestions int       `json:"total_questions"`
	CorrectCount   int       `json:"correct_count"`
	ScorePercent   int       `json:"score_percent"`
	Passed         bool      `json:"passed"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

type scoringService struct {
	repo      repositories.Repository
	capacity  capacity.Accountant
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	now       func() time.Time
}

func NewScoringService(deps Deps) ScoringService {
	return &scoringService{
		repo:      deps.Repo,
		capacity:  deps.Capacity,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       deps.Now,
	}
}

func (s *scoringService) Finalize(ctx context.Context, userID, assessmentID uint) (*Result, error) {
	def, err := s.repo.Catalog().GetDefinition(ctx, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment definition: %w", err)
	}

	attempt, err := s.repo.Attempt().GetInProgress(ctx, userID, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			// Already settled: re-finalizing returns the stored result.
			return s.storedResult(ctx, userID, assessmentID)
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	answers, err := s.repo.Answer().GetByUserAndAssessment(ctx, userID, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}
	computed := computeResult(def, answers)
	breakdown, err := json.Marshal(computed.Breakdown)
	if err != nil {
		return nil, fmt.Errorf("encode breakdown: %w", err)
	}

	submittedAt := s.now()
	settled, err := s.repo.Attempt().Submit(ctx, attempt.ID, submittedAt,
		computed.Total, computed.Correct, computed.Percent, computed.Passed, datatypes.JSON(breakdown))
	if err != nil {
		return nil, fmt.Errorf("failed to settle attempt: %w", err)
	}
	if !settled {
		// A concurrent finalize flipped the status first; its result wins.
		return s.storedResult(ctx, userID, assessmentID)
	}

	s.metrics.AttemptsFinalized.Inc()
	s.releaseSessionSlot(ctx, userID, assessmentID)

	result := &Result{
		AttemptID:      attempt.ID,
		TotalQuestions: computed.Total,
		CorrectCount:   computed.Correct,
		ScorePercent:   computed.Percent,
		Passed:         computed.Passed,
		SubmittedAt:    submittedAt,
	}
	s.publishCompletion(ctx, userID, assessmentID, result)

	s.logger.Info("attempt finalized",
		"user_id", userID,
		"assessment_id", assessmentID,
		"attempt_id", attempt.ID,
		"score_percent", computed.Percent,
		"passed", computed.Passed)

	return result, nil
}

func (s *scoringService) storedResult(ctx context.Context, userID, assessmentID uint) (*Result, error) {
	stored, err := s.repo.Attempt().GetLatestSubmitted(ctx, userID, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get submitted attempt: %w", err)
	}
	return resultFromAttempt(stored), nil
}

// releaseSessionSlot frees the capacity slot exactly once per session
// generation. The slot_released flag arbitrates against the expiry sweep.
func (s *scoringService) releaseSessionSlot(ctx context.Context, userID, assessmentID uint) {
	session, err := s.repo.Session().Get(ctx, userID, assessmentID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			s.logger.Error("failed to get session for slot release",
				"user_id", userID, "assessment_id", assessmentID, "error", err)
		}
		return
	}
	flipped, err := s.repo.Session().ReleaseSlot(ctx, userID, assessmentID, session.Generation)
	if err != nil {
		s.logger.Error("failed to flag slot released",
			"user_id", userID, "assessment_id", assessmentID, "error", err)
		return
	}
	if !flipped {
		return
	}
	if err := s.capacity.Release(ctx, assessmentID); err != nil {
		s.logger.Error("failed to release capacity slot",
			"assessment_id", assessmentID, "error", err)
	}
}

// publishCompletion is fire-and-forget: a broker outage must not fail the
// finalize the user already earned.
func (s *scoringService) publishCompletion(ctx context.Context, userID, assessmentID uint, result *Result) {
	if s.publisher == nil {
		return
	}
	event := events.NewAttemptCompletedEvent(result.AttemptID, userID, assessmentID,
		result.ScorePercent, result.Passed, result.SubmittedAt)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish completion event",
			"attempt_id", result.AttemptID, "error", err)
	}
}

func resultFromAttempt(a *models.Attempt) *Result {
	result := &Result{
		AttemptID:      a.ID,
		TotalQuestions: a.TotalQuestions,
		CorrectCount:   a.CorrectCount,
		ScorePercent:   a.ScorePercent,
		Passed:         a.Passed,
	}
	if a.SubmittedAt != nil {
		result.SubmittedAt = *a.SubmittedAt
	}
	return result
}

type computedResult struct {
	Total     int
	Correct   int
	Percent   int
	Passed    bool
	Breakdown []models.AnswerBreakdown
}

// computeResult scores an answer sheet against the definition. Unanswered
// and skipped questions count as wrong; the breakdown follows question
// order so equal inputs always produce equal output.
func computeResult(def *models.AssessmentDefinition, answers []*models.Answer) computedResult {
	byQuestion := make(map[uint]*models.Answer, len(answers))
	for _, answer := range answers {
		byQuestion[answer.QuestionID] = answer
	}

	correct := 0
	breakdown := make([]models.AnswerBreakdown, 0, len(def.Questions))
	for _, q := range def.Questions {
		entry := models.AnswerBreakdown{QuestionID: q.ID}
		if answer, ok := byQuestion[q.ID]; ok && answer.SelectedOptionID != nil {
			entry.SelectedOptionID = answer.SelectedOptionID
			entry.Correct = answer.IsCorrect
		}
		if entry.Correct {
			correct++
		}
		breakdown = append(breakdown, entry)
	}

	total := len(def.Questions)
	percent := 0
	if total > 0 {
		percent = int(math.Round(float64(correct) / float64(total) * 100))
	}
	passed := true
	if def.PassScorePercent != nil {
		passed = percent >= *def.PassScorePercent
	}

	return computedResult{
		Total:     total,
		Correct:   correct,
		Percent:   percent,
		Passed:    passed,
		Breakdown: breakdown,
	}
}
