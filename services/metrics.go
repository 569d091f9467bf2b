package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine counters, served at /metrics.
var (
	eventsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_events_ingested_total",
		Help: "Domain events processed by the ingest pipeline, by type.",
	}, []string{"type"})

	pointsAwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamification_points_awarded_total",
		Help: "Sum of ledger point amounts awarded.",
	})

	achievementsUnlockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamification_achievements_unlocked_total",
		Help: "Achievement unlocks granted.",
	})
)
