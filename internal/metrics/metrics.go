package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "callbridge"

var (
	NumbersAssigned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "numbers_assigned_total",
			Help:      "Phone numbers allocated to new users.",
		},
	)

	// outcome: ok, number_not_found, target_offline, error
	CallsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_routed_total",
			Help:      "Call trigger requests by target type and outcome.",
		},
		[]string{"target_type", "outcome"},
	)

	// result: sent, failed
	InviteDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invite_dispatches_total",
			Help:      "Call invitation pushes by result.",
		},
		[]string{"provider", "result"},
	)

	CollaboratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_duration_seconds",
			Help:      "Latency of calls to the credential issuer and notification dispatcher.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"collaborator"},
	)
)
