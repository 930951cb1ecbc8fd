package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/learnhub/assessment-engine/internal/models"
	"github.com/learnhub/assessment-engine/internal/repositories"
)

// HistoryService reads the append-only attempt record for a user on an
// assessment, newest first, and renders it for review or export.
type HistoryService interface {
	GetAttemptHistory(ctx context.Context, userID, assessmentID uint) ([]*AttemptView, error)
	ExportAttemptHistory(ctx context.Context, userID, assessmentID uint) ([]byte, error)
}

type AttemptView struct {
	ID             string                   `json:"id"`
	Generation     int                      `json:"generation"`
	StartedAt      time.Time                `json:"started_at"`
	SubmittedAt    *time.Time               `json:"submitted_at,omitempty"`
	Status         models.AttemptStatus     `json:"status"`
	TotalQuestions int                      `json:"total_questions"`
	CorrectCount   int                      `json:"correct_count"`
	ScorePercent   int                      `json:"score_percent"`
	Passed         bool                     `json:"passed"`
	Breakdown      []models.AnswerBreakdown `json:"breakdown,omitempty"`
}

type historyService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewHistoryService(deps Deps) HistoryService {
	return &historyService{
		repo:   deps.Repo,
		logger: deps.Logger,
	}
}

func (s *historyService) GetAttemptHistory(ctx context.Context, userID, assessmentID uint) ([]*AttemptView, error) {
	if _, err := s.repo.Catalog().GetDefinition(ctx, assessmentID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment definition: %w", err)
	}

	attempts, err := s.repo.Attempt().ListByUserAndAssessment(ctx, userID, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].StartedAt.After(attempts[j].StartedAt)
	})

	views := make([]*AttemptView, 0, len(attempts))
	for _, attempt := range attempts {
		view := &AttemptView{
			ID:             attempt.ID,
			Generation:     attempt.Generation,
			StartedAt:      attempt.StartedAt,
			SubmittedAt:    attempt.SubmittedAt,
			Status:         attempt.Status,
			TotalQuestions: attempt.TotalQuestions,
			CorrectCount:   attempt.CorrectCount,
			ScorePercent:   attempt.ScorePercent,
			Passed:         attempt.Passed,
		}
		if len(attempt.Breakdown) > 0 {
			if err := json.Unmarshal(attempt.Breakdown, &view.Breakdown); err != nil {
				s.logger.Warn("failed to decode attempt breakdown",
					"attempt_id", attempt.ID, "error", err)
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// ExportAttemptHistory renders the history as an xlsx workbook.
func (s *historyService) ExportAttemptHistory(ctx context.Context, userID, assessmentID uint) ([]byte, error) {
	attempts, err := s.GetAttemptHistory(ctx, userID, assessmentID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Attempts"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []interface{}{"Attempt ID", "Started At", "Submitted At", "Status", "Total Questions", "Correct", "Score %", "Passed"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	for i, attempt := range attempts {
		submittedAt := ""
		if attempt.SubmittedAt != nil {
			submittedAt = attempt.SubmittedAt.Format(time.RFC3339)
		}
		row := []interface{}{
			attempt.ID,
			attempt.StartedAt.Format(time.RFC3339),
			submittedAt,
			string(attempt.Status),
			attempt.TotalQuestions,
			attempt.CorrectCount,
			attempt.ScorePercent,
			attempt.Passed,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write attempt row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
