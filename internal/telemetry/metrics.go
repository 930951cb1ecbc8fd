package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics carries the engine's operation counters.
type Metrics struct {
	SessionsStarted    prometheus.Counter
	SessionsResumed    prometheus.Counter
	AnswersSubmitted   prometheus.Counter
	AttemptsFinalized  prometheus.Counter
	CapacityRejections prometheus.Counter
	SweepReclaimed     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "assessment_sessions_started_total",
			Help: "New session generations started.",
		}),
		SessionsResumed: factory.NewCounter(prometheus.CounterOpts{
			Name: "assessment_sessions_resumed_total",
			Help: "Start calls answered by resuming a live session.",
		}),
		AnswersSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "assessment_answers_submitted_total",
			Help: "Answer upserts accepted by the ledger.",
		}),
		AttemptsFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "assessment_attempts_finalized_total",
			Help: "Attempts transitioned to SUBMITTED.",
		}),
		CapacityRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "assessment_capacity_rejections_total",
			Help: "Start calls refused because the concurrent-taker cap was full.",
		}),
		SweepReclaimed: factory.NewCounter(prometheus.CounterOpts{
			Name: "assessment_sweep_reclaimed_slots_total",
			Help: "Capacity slots reclaimed by the expiry sweep.",
		}),
	}
}
