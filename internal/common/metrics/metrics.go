package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GiveawayTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giveaway_transitions_total",
			Help: "Giveaway lifecycle transitions by target status",
		},
		[]string{"status"},
	)

	GiveawayJoins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giveaway_joins_total",
			Help: "Join attempts by result (joined, already_joined, rejected)",
		},
		[]string{"result"},
	)

	SubscriptionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giveaway_subscription_checks_total",
			Help: "Force-subscription checks by result",
		},
		[]string{"result"},
	)

	BroadcastDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giveaway_broadcast_deliveries_total",
			Help: "Per-recipient delivery outcomes (success, failed, blocked)",
		},
		[]string{"outcome"},
	)

	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "giveaway_broadcast_duration_seconds",
			Help:    "Duration of a complete fan-out",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
	)

	BotUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giveaway_bot_updates_total",
			Help: "Handled bot updates by route",
		},
		[]string{"route"},
	)
)
