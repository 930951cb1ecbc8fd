package services

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/learnhub/assessment-engine/internal/capacity"
	"github.com/learnhub/assessment-engine/internal/events"
	"github.com/learnhub/assessment-engine/internal/repositories"
	"github.com/learnhub/assessment-engine/internal/telemetry"
	"github.com/learnhub/assessment-engine/internal/utils"
)

// Deps bundles what every service needs. Now is injectable so expiry
// behavior can be tested without sleeping.
type Deps struct {
	Repo      repositories.Repository
	Capacity  capacity.Accountant
	Publisher events.Publisher
	Logger    *slog.Logger
	Validator *utils.Validator
	Metrics   *telemetry.Metrics
	Now       func() time.Time
}

func (d *Deps) applyDefaults() {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Validator == nil {
		d.Validator = utils.NewValidator()
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NewMetrics(prometheus.NewRegistry())
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// Manager holds the engine's services.
type Manager struct {
	Session SessionService
	Answer  AnswerService
	Scoring ScoringService
	History HistoryService
}

func NewManager(deps Deps) *Manager {
	deps.applyDefaults()
	scoring := NewScoringService(deps)
	return &Manager{
		Session: NewSessionService(deps),
		Answer:  NewAnswerService(deps),
		Scoring: scoring,
		History: NewHistoryService(deps),
	}
}
