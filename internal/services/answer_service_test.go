package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAnswer_IdempotentRetries(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssessment(nil)
	ctx := context.Background()

	_, err := env.manager.Session.Start(ctx, &StartRequest{UserID: 42, AssessmentID: 1})
	require.NoError(t, err)

	// The same submission retried five times must land as one answer.
	for i := 0; i < 5; i++ {
		ack, err := env.manager.Answer.Submit(ctx, &SubmitAnswerRequest{
			UserID: 42, AssessmentID: 1, QuestionID: 4, SelectedOptionID: correctOption(4),
		})
		require.NoError(t, err)
		assert.Equal(t, uint(4), ack.QuestionID)
		assert.False(t, ack.Skipped)
	}

	result, err := env.manager.Scoring.Finalize(ctx, 42, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CorrectCount)
}

func TestSubmitAnswer_OverwriteReplacesSelection(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssessment(nil)
	ctx := context.Background()

	_, err := env.manager.Session.Start(ctx, &StartRequest{UserID: 42, AssessmentID: 1})
	require.NoError(t, err)

	_, err = env.manager.Answer.Submit(ctx, &SubmitAnswerRequest{
		UserID: 42, AssessmentID: 1, QuestionID: 2, SelectedOptionID: wrongOption(2),
	})
	require.NoError(t, err)

	_, err = env.manager.Answer.Submit(ctx, &SubmitAnswerRequest{
		UserID: 42, AssessmentID: 1, QuestionID: 2, SelectedOptionID: correctOption(2),
	})
	require.NoError(t, err)

	result, err := env.manager.Scoring.Finalize(ctx, 42, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CorrectCount)
}

func TestSubmitAnswer_ExplicitSkip(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssessment(nil)
	ctx := context.Background()

	_, err := env.manager.Session.Start(ctx, &StartRequest{UserID: 42, AssessmentID: 1})
	require.NoError(t, err)

	_, err = env.manager.Answer.Submit(ctx, &SubmitAnswerRequest{
		UserID: 42, AssessmentID: 1, QuestionID: 5, SelectedOptionID: correctOption(5),
	})
	require.NoError(t, err)

	// Skipping afterwards clears the earlier selection.
	ack, err := env.manager.Answer.Submit(ctx, &SubmitAnswerRequest{
		UserID: 42, AssessmentID: 1, QuestionID: 5, SelectedOptionID: nil,
	})
	require.NoError(t, err)
	assert.True(t, ack.Skipped)

	result, err := env.manager.Scoring.Finalize(ctx, 42, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, result.CorrectCount)
}

func TestSubmitAnswer_ExpiredSessionRejected(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssessment(nil)
	ctx := context.Background()

	_, err := env.manager.Session.Start(ctx, &StartRequest{UserID: 42, AssessmentID: 1})
	require.NoError(t, err)

	env.clock.Advance(31 * time.Minute)

	_, err = env.manager.Answer.Submit(ctx, &SubmitAnswerRequest{
		UserID: 42, AssessmentID: 1, QuestionID: 1, SelectedOptionID: correctOption(1),
	})
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.True(t, IsConflict(err))

	// The rejected write must not appear after the next generation opens.
	view, err := env.manager.Session.Start(ctx, &StartRequest{UserID: 42, AssessmentID: 1})
	require.NoError(t, err)
	for _, q := range view.Questions {
		assert.Nil(t, q.SelectedOptionID)
	}
}

func TestSubmitAnswer_NoSession(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssessment(nil)

	_, err := env.manager.Answer.Submit(context.Background(), &SubmitAnswerRequest{
		UserID: 42, AssessmentID: 1, QuestionID: 1, SelectedOptionID: correctOption(1),
	})
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSubmitAnswer_UnknownQuestionAndOption(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssessment(nil)
	ctx := context.Background()

	_, err := env.manager.Session.Start(ctx, &StartRequest{UserID: 42, AssessmentID: 1})
	require.NoError(t, err)

	_, err = env.manager.Answer.Submit(ctx, &SubmitAnswerRequest{
		UserID: 42, AssessmentID: 1, QuestionID: 999, SelectedOptionID: correctOption(1),
	})
	require.ErrorIs(t, err, ErrQuestionNotFound)

	foreign := uint(31) // belongs to question 3
	_, err = env.manager.Answer.Submit(ctx, &SubmitAnswerRequest{
		UserID: 42, AssessmentID: 1, QuestionID: 1, SelectedOptionID: &foreign,
	})
	require.ErrorIs(t, err, ErrOptionNotFound)
}
