package services

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/learnhub/assessment-engine/internal/capacity"
	"github.com/learnhub/assessment-engine/internal/events"
	"github.com/learnhub/assessment-engine/internal/models"
	"github.com/learnhub/assessment-engine/internal/repositories/memory"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	store      *memory.Store
	accountant *capacity.RedisAccountant
	publisher  *events.MockPublisher
	clock      *fakeClock
	deps       Deps
	manager    *Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	accountant := capacity.NewRedisAccountant(client, "test", logger)
	publisher := events.NewMockPublisher()
	clock := newFakeClock()

	deps := Deps{
		Repo:      store,
		Capacity:  accountant,
		Publisher: publisher,
		Logger:    logger,
		Now:       clock.Now,
	}
	return &testEnv{
		store:      store,
		accountant: accountant,
		publisher:  publisher,
		clock:      clock,
		deps:       deps,
		manager:    NewManager(deps),
	}
}

// seedAssessment loads a ten-question active assessment. Option IDs follow
// questionID*10+position, with position 1 always the correct one.
func (e *testEnv) seedAssessment(mutate func(*models.AssessmentDefinition)) *models.AssessmentDefinition {
	timeLimit := 1800
	passScore := 50
	def := &models.AssessmentDefinition{
		ID:               1,
		Title:            "Distributed Systems Midterm",
		Status:           models.StatusActive,
		TimeLimitSeconds: &timeLimit,
		PassScorePercent: &passScore,
	}
	for q := uint(1); q <= 10; q++ {
		question := models.Question{
			ID:           q,
			AssessmentID: def.ID,
			Position:     int(q),
			Content:      fmt.Sprintf("Question %d", q),
		}
		for pos := uint(1); pos <= 4; pos++ {
			question.Options = append(question.Options, models.Option{
				ID:         q*10 + pos,
				QuestionID: q,
				Position:   int(pos),
				Content:    fmt.Sprintf("Option %d", pos),
				IsCorrect:  pos == 1,
			})
		}
		def.Questions = append(def.Questions, question)
	}
	if mutate != nil {
		mutate(def)
	}
	e.store.SeedDefinition(def)
	return def
}

func correctOption(questionID uint) *uint {
	id := questionID*10 + 1
	return &id
}

func wrongOption(questionID uint) *uint {
	id := questionID*10 + 2
	return &id
}
