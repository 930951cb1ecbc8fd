// Package memory implements the repository contracts in process. The
// conditional-write primitives carry the same decision semantics as the
// postgres implementation, arbitrated by a store-wide mutex instead of
// row-level conflict clauses.
package memory

import (
	"context"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/learnhub/assessment-engine/internal/models"
	"github.com/learnhub/assessment-engine/internal/repositories"
)

type sessionKey struct {
	userID       uint
	assessmentID uint
}

type answerKey struct {
	userID       uint
	assessmentID uint
	questionID   uint
}

type Store struct {
	mu          sync.Mutex
	definitions map[uint]*models.AssessmentDefinition
	sessions    map[sessionKey]*models.Session
	answers     map[answerKey]*models.Answer
	attempts    map[string]*models.Attempt
}

func NewStore() *Store {
	return &Store{
		definitions: make(map[uint]*models.AssessmentDefinition),
		sessions:    make(map[sessionKey]*models.Session),
		answers:     make(map[answerKey]*models.Answer),
		attempts:    make(map[string]*models.Attempt),
	}
}

// SeedDefinition loads an assessment definition into the catalog view.
func (s *Store) SeedDefinition(def *models.AssessmentDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *def
	s.definitions[def.ID] = &cp
}

func (s *Store) Catalog() repositories.CatalogRepository { return catalogStore{s} }
func (s *Store) Session() repositories.SessionRepository { return sessionStore{s} }
func (s *Store) Answer() repositories.AnswerRepository   { return answerStore{s} }
func (s *Store) Attempt() repositories.AttemptRepository { return attemptStore{s} }

// WithTx runs fn against the same store. Each primitive is individually
// atomic, which is all the engine's invariants rely on.
func (s *Store) WithTx(_ context.Context, fn func(repositories.Repository) error) error {
	return fn(s)
}

// ===== CATALOG =====

type catalogStore struct{ s *Store }

func (c catalogStore) GetDefinition(_ context.Context, assessmentID uint) (*models.AssessmentDefinition, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	def, ok := c.s.definitions[assessmentID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *def
	return &cp, nil
}

// ===== SESSION =====

type sessionStore struct{ s *Store }

func (st sessionStore) Get(_ context.Context, userID, assessmentID uint) (*models.Session, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	session, ok := st.s.sessions[sessionKey{userID, assessmentID}]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (st sessionStore) StartGeneration(_ context.Context, userID, assessmentID uint, now, expiresAt time.Time) (*models.Session, bool, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	key := sessionKey{userID, assessmentID}
	existing, ok := st.s.sessions[key]
	if ok && now.Before(existing.ExpiresAt) {
		cp := *existing
		return &cp, false, nil
	}

	generation := 1
	if ok {
		generation = existing.Generation + 1
	}
	session := &models.Session{
		UserID:       userID,
		AssessmentID: assessmentID,
		Generation:   generation,
		StartedAt:    now,
		ExpiresAt:    expiresAt,
		SlotReleased: false,
		UpdatedAt:    now,
	}
	st.s.sessions[key] = session
	cp := *session
	return &cp, true, nil
}

func (st sessionStore) ReleaseSlot(_ context.Context, userID, assessmentID uint, generation int) (bool, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	session, ok := st.s.sessions[sessionKey{userID, assessmentID}]
	if !ok || session.Generation != generation || session.SlotReleased {
		return false, nil
	}
	session.SlotReleased = true
	return true, nil
}

func (st sessionStore) ListExpiredHeldSlots(_ context.Context, now time.Time, limit int) ([]*models.Session, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	var out []*models.Session
	for _, session := range st.s.sessions {
		if session.SlotReleased || now.Before(session.ExpiresAt) {
			continue
		}
		cp := *session
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ===== ANSWER =====

type answerStore struct{ s *Store }

func (st answerStore) Upsert(_ context.Context, answer *models.Answer) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	cp := *answer
	st.s.answers[answerKey{answer.UserID, answer.AssessmentID, answer.QuestionID}] = &cp
	return nil
}

func (st answerStore) GetByUserAndAssessment(_ context.Context, userID, assessmentID uint) ([]*models.Answer, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	var out []*models.Answer
	for key, answer := range st.s.answers {
		if key.userID == userID && key.assessmentID == assessmentID {
			cp := *answer
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (st answerStore) DeleteByUserAndAssessment(_ context.Context, userID, assessmentID uint) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	for key := range st.s.answers {
		if key.userID == userID && key.assessmentID == assessmentID {
			delete(st.s.answers, key)
		}
	}
	return nil
}

// ===== ATTEMPT =====

type attemptStore struct{ s *Store }

func (st attemptStore) Create(_ context.Context, attempt *models.Attempt) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	cp := *attempt
	st.s.attempts[attempt.ID] = &cp
	return nil
}

func (st attemptStore) GetInProgress(_ context.Context, userID, assessmentID uint) (*models.Attempt, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	var found *models.Attempt
	for _, attempt := range st.s.attempts {
		if attempt.UserID != userID || attempt.AssessmentID != assessmentID ||
			attempt.Status != models.AttemptInProgress {
			continue
		}
		if found == nil || attempt.Generation > found.Generation {
			found = attempt
		}
	}
	if found == nil {
		return nil, repositories.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (st attemptStore) GetLatestSubmitted(_ context.Context, userID, assessmentID uint) (*models.Attempt, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	var found *models.Attempt
	for _, attempt := range st.s.attempts {
		if attempt.UserID != userID || attempt.AssessmentID != assessmentID ||
			attempt.Status != models.AttemptSubmitted {
			continue
		}
		if found == nil || attempt.SubmittedAt.After(*found.SubmittedAt) {
			found = attempt
		}
	}
	if found == nil {
		return nil, repositories.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (st attemptStore) CountSubmitted(_ context.Context, userID, assessmentID uint) (int, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	count := 0
	for _, attempt := range st.s.attempts {
		if attempt.UserID == userID && attempt.AssessmentID == assessmentID &&
			attempt.Status == models.AttemptSubmitted {
			count++
		}
	}
	return count, nil
}

func (st attemptStore) ListByUserAndAssessment(_ context.Context, userID, assessmentID uint) ([]*models.Attempt, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	var out []*models.Attempt
	for _, attempt := range st.s.attempts {
		if attempt.UserID == userID && attempt.AssessmentID == assessmentID {
			cp := *attempt
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (st attemptStore) Submit(_ context.Context, id string, submittedAt time.Time, totalQuestions, correctCount, scorePercent int, passed bool, breakdown datatypes.JSON) (bool, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	attempt, ok := st.s.attempts[id]
	if !ok || attempt.Status != models.AttemptInProgress {
		return false, nil
	}
	at := submittedAt
	attempt.Status = models.AttemptSubmitted
	attempt.SubmittedAt = &at
	attempt.TotalQuestions = totalQuestions
	attempt.CorrectCount = correctCount
	attempt.ScorePercent = scorePercent
	attempt.Passed = passed
	attempt.Breakdown = breakdown
	attempt.UpdatedAt = submittedAt
	return true, nil
}
