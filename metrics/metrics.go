package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CommandsTotal counts handled interactions by command or action and outcome.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teambot",
			Name:      "commands_total",
			Help:      "Handled commands and component actions by result",
		},
		[]string{"command", "result"},
	)

	// PlatformRetriesTotal counts retried platform calls by operation.
	PlatformRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teambot",
			Name:      "platform_retries_total",
			Help:      "Retried chat platform calls by operation",
		},
		[]string{"op"},
	)

	// SideEffectsTotal counts post-commit tasks by name and outcome.
	SideEffectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teambot",
			Name:      "side_effects_total",
			Help:      "Post-commit tasks by result",
		},
		[]string{"task", "result"},
	)

	SideEffectsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "teambot",
			Name:      "side_effects_dropped_total",
			Help:      "Post-commit tasks dropped because the queue was full or closed",
		},
	)
)

func init() {
	prometheus.MustRegister(CommandsTotal, PlatformRetriesTotal, SideEffectsTotal, SideEffectsDropped)
}
