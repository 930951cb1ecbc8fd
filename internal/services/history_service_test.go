package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/learnhub/assessment-engine/internal/models"
)

func TestGetAttemptHistory_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssessment(nil)
	ctx := context.Background()

	var attemptIDs []string
	for i := 0; i < 3; i++ {
		view, err := env.manager.Session.Start(ctx, &StartRequest{UserID: 42, AssessmentID: 1})
		require.NoError(t, err)
		attemptIDs = append(attemptIDs, view.AttemptID)
		_, err = env.manager.Scoring.Finalize(ctx, 42, 1)
		require.NoError(t, err)
		env.clock.Advance(31 * time.Minute)
	}

	history, err := env.manager.History.GetAttemptHistory(ctx, 42, 1)
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, attemptIDs[2], history[0].ID)
	assert.Equal(t, attemptIDs[1], history[1].ID)
	assert.Equal(t, attemptIDs[0], history[2].ID)
	for _, attempt := range history {
		assert.Equal(t, models.AttemptSubmitted, attempt.Status)
		assert.NotNil(t, attempt.SubmittedAt)
		assert.Equal(t, 10, attempt.TotalQuestions)
	}
}

func TestGetAttemptHistory_EmptyForNewUser(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssessment(nil)

	history, err := env.manager.History.GetAttemptHistory(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGetAttemptHistory_UnknownAssessment(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.manager.History.GetAttemptHistory(context.Background(), 42, 999)
	require.ErrorIs(t, err, ErrAssessmentNotFound)
}

func TestExportAttemptHistory_ProducesWorkbook(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssessment(nil)
	ctx := context.Background()

	view, err := env.manager.Session.Start(ctx, &StartRequest{UserID: 42, AssessmentID: 1})
	require.NoError(t, err)
	_, err = env.manager.Answer.Submit(ctx, &SubmitAnswerRequest{
		UserID: 42, AssessmentID: 1, QuestionID: 1, SelectedOptionID: correctOption(1),
	})
	require.NoError(t, err)
	_, err = env.manager.Scoring.Finalize(ctx, 42, 1)
	require.NoError(t, err)

	workbook, err := env.manager.History.ExportAttemptHistory(ctx, 42, 1)
	require.NoError(t, err)
	require.NotEmpty(t, workbook)

	f, err := excelize.OpenReader(bytes.NewReader(workbook))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Attempts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Attempt ID", rows[0][0])
	assert.Equal(t, view.AttemptID, rows[1][0])
	assert.Equal(t, "10", rows[1][4])
	assert.Equal(t, "1", rows[1][5])
}
