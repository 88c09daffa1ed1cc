// Package observability – bot metrics
//
// Prometheus collectors for the command dispatcher, the session store, and
// the timeout sweeper. Label cardinality stays bounded: command names come
// from the static registry, outcomes from a fixed vocabulary.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
	OutcomeUnknown = "unknown_command"
)

var (
	// commandsTotal counts dispatched commands by name and outcome.
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of dispatched commands.",
		},
		[]string{"command", "outcome"},
	)

	// commandLatency records handler duration in seconds by command name.
	commandLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_command_duration_seconds",
			Help:    "Duration of command handlers in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	// activeSessions gauges the number of non-terminal onboarding sessions.
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_active_sessions",
			Help: "Current number of active (non-terminal) onboarding sessions.",
		},
	)

	// sessionTimeouts counts sessions the sweeper transitioned to timed_out.
	sessionTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_session_timeouts_total",
			Help: "Total number of onboarding sessions expired by the sweeper.",
		},
	)

	// sweepDuration records the duration of full sweeper ticks.
	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bot_sweep_duration_seconds",
			Help:    "Duration of timeout sweeper ticks in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(commandsTotal, commandLatency, activeSessions, sessionTimeouts, sweepDuration)
}

// ObserveCommand records one dispatched command.
func ObserveCommand(command, outcome string, d time.Duration) {
	commandsTotal.WithLabelValues(command, outcome).Inc()
	commandLatency.WithLabelValues(command).Observe(d.Seconds())
}

// SetActiveSessions updates the active-session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// ObserveSweep records one sweeper tick and how many sessions it expired.
func ObserveSweep(expired int, d time.Duration) {
	sessionTimeouts.Add(float64(expired))
	sweepDuration.Observe(d.Seconds())
}
