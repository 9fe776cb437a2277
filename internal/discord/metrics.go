package discord

import "github.com/prometheus/client_golang/prometheus"

// Command outcomes used as the "outcome" label.
const (
	outcomeOK          = "ok"
	outcomeRejected    = "rejected"
	outcomeError       = "error"
	outcomeRateLimited = "rate_limited"
	outcomeUnknown     = "unknown"
)

// commandsTotal counts slash command invocations by command path and outcome.
// The command label is bounded by the registered command set.
var commandsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "discord_commands_total",
		Help: "Slash command invocations by command and outcome.",
	},
	[]string{"command", "outcome"},
)

func init() {
	prometheus.MustRegister(commandsTotal)
}
