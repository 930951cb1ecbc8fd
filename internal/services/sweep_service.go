package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnhub/assessment-engine/internal/capacity"
	"github.com/learnhub/assessment-engine/internal/repositories"
	"github.com/learnhub/assessment-engine/internal/telemetry"
)

// SweepService reclaims capacity slots from sessions whose window closed
// without a finalize, so abandoned takers cannot pin the cap forever. For
// assessments with auto-submit enabled it also settles the attempt from
// whatever the ledger holds.
type SweepService struct {
	repo      repositories.Repository
	capacity  capacity.Accountant
	scoring   ScoringService
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	now       func() time.Time
	interval  time.Duration
	batchSize int
}

type SweepConfig struct {
	Interval  time.Duration
	BatchSize int
}

func NewSweepService(deps Deps, scoring ScoringService, cfg SweepConfig) *SweepService {
	deps.applyDefaults()
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &SweepService{
		repo:      deps.Repo,
		capacity:  deps.Capacity,
		scoring:   scoring,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       deps.Now,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *SweepService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweep started", "interval", s.interval.String(), "batch_size", s.batchSize)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweep stopped")
			return
		case <-ticker.C:
			reclaimed, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error("sweep cycle failed", "error", err)
				continue
			}
			if reclaimed > 0 {
				s.logger.Info("sweep reclaimed slots", "count", reclaimed)
			}
		}
	}
}

// SweepOnce processes one batch of expired slot-holding sessions and
// returns how many slots it reclaimed. The slot_released flip arbitrates
// against concurrent finalizes, so double releases cannot happen.
func (s *SweepService) SweepOnce(ctx context.Context) (int, error) {
	sessions, err := s.repo.Session().ListExpiredHeldSlots(ctx, s.now(), s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired sessions: %w", err)
	}

	reclaimed := 0
	for _, session := range sessions {
		flipped, err := s.repo.Session().ReleaseSlot(ctx, session.UserID, session.AssessmentID, session.Generation)
		if err != nil {
			s.logger.Error("failed to flag expired slot released",
				"user_id", session.UserID,
				"assessment_id", session.AssessmentID,
				"error", err)
			continue
		}
		if !flipped {
			continue
		}
		if err := s.capacity.Release(ctx, session.AssessmentID); err != nil {
			s.logger.Error("failed to release expired capacity slot",
				"assessment_id", session.AssessmentID,
				"error", err)
		}
		s.metrics.SweepReclaimed.Inc()
		reclaimed++

		def, err := s.repo.Catalog().GetDefinition(ctx, session.AssessmentID)
		if err != nil {
			s.logger.Error("failed to get definition during sweep",
				"assessment_id", session.AssessmentID,
				"error", err)
			continue
		}
		if !def.AutoSubmitOnTimeout {
			continue
		}
		if _, err := s.scoring.Finalize(ctx, session.UserID, session.AssessmentID); err != nil && !errors.Is(err, ErrAttemptNotFound) {
			s.logger.Warn("auto-submit after timeout failed",
				"user_id", session.UserID,
				"assessment_id", session.AssessmentID,
				"error", err)
		}
	}
	return reclaimed, nil
}
