package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/assessment-engine/internal/models"
)

func newTestSweeper(env *testEnv) *SweepService {
	return NewSweepService(env.deps, env.manager.Scoring, SweepConfig{
		Interval:  time.Minute,
		BatchSize: 10,
	})
}

func TestSweepOnce_ReclaimsExpiredSlots(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssessment(nil)
	sweeper := newTestSweeper(env)
	ctx := context.Background()

	for userID := uint(1); userID <= 3; userID++ {
		_, err := env.manager.Session.Start(ctx, &StartRequest{UserID: userID, AssessmentID: 1})
		require.NoError(t, err)
	}

	count, err := env.accountant.Current(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	env.clock.Advance(31 * time.Minute)

	reclaimed, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, reclaimed)

	count, err = env.accountant.Current(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// A second pass finds nothing left to reclaim.
	reclaimed, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reclaimed)
}

func TestSweepOnce_LeavesLiveSessionsAlone(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssessment(nil)
	sweeper := newTestSweeper(env)
	ctx := context.Background()

	_, err := env.manager.Session.Start(ctx, &StartRequest{UserID: 42, AssessmentID: 1})
	require.NoError(t, err)

	reclaimed, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reclaimed)

	count, err := env.accountant.Current(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSweepOnce_SkipsAlreadyFinalized(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssessment(nil)
	sweeper := newTestSweeper(env)
	ctx := context.Background()

	_, err := env.manager.Session.Start(ctx, &StartRequest{UserID: 42, AssessmentID: 1})
	require.NoError(t, err)
	_, err = env.manager.Scoring.Finalize(ctx, 42, 1)
	require.NoError(t, err)

	env.clock.Advance(31 * time.Minute)

	// Finalize already released the slot; the sweep must not double-release.
	reclaimed, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reclaimed)

	count, err := env.accountant.Current(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestSweepOnce_AutoSubmitsOnTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssessment(func(def *models.AssessmentDefinition) {
		def.AutoSubmitOnTimeout = true
	})
	sweeper := newTestSweeper(env)
	ctx := context.Background()

	_, err := env.manager.Session.Start(ctx, &StartRequest{UserID: 42, AssessmentID: 1})
	require.NoError(t, err)

	for q := uint(1); q <= 6; q++ {
		_, err := env.manager.Answer.Submit(ctx, &SubmitAnswerRequest{
			UserID: 42, AssessmentID: 1, QuestionID: q, SelectedOptionID: correctOption(q),
		})
		require.NoError(t, err)
	}

	env.clock.Advance(31 * time.Minute)

	reclaimed, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	history, err := env.manager.History.GetAttemptHistory(ctx, 42, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.AttemptSubmitted, history[0].Status)
	assert.Equal(t, 6, history[0].CorrectCount)
	assert.Equal(t, 60, history[0].ScorePercent)

	assert.Len(t, env.publisher.PublishedEvents(), 1)
}

func TestSweepOnce_WithoutAutoSubmitLeavesAttemptOpen(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssessment(nil)
	sweeper := newTestSweeper(env)
	ctx := context.Background()

	_, err := env.manager.Session.Start(ctx, &StartRequest{UserID: 42, AssessmentID: 1})
	require.NoError(t, err)

	env.clock.Advance(31 * time.Minute)

	_, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)

	history, err := env.manager.History.GetAttemptHistory(ctx, 42, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.AttemptInProgress, history[0].Status)
	assert.Empty(t, env.publisher.PublishedEvents())
}
