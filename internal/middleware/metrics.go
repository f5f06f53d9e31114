package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RedisErrors counts Redis command failures by command name.
var RedisErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quill_redis_errors_total",
		Help: "Redis command failures by command",
	},
	[]string{"command"},
)

// CascadeSteps counts moderation-cascade step executions by cascade and
// outcome, so partially failed cascades are visible.
var CascadeSteps = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quill_cascade_steps_total",
		Help: "Moderation cascade step executions by cascade and outcome",
	},
	[]string{"cascade", "step", "outcome"},
)

// InitMetrics creates the Prometheus HTTP middleware for the given service name.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}
