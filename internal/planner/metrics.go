package planner

import "github.com/prometheus/client_golang/prometheus"

// Request outcomes recorded by Metrics.
const (
	OutcomeOK              = "ok"
	OutcomeEmpty           = "empty"
	OutcomeInvalidArgument = "invalid_argument"
	OutcomeMisconfigured   = "misconfigured"
	OutcomeUpstreamError   = "upstream_error"
)

// Metrics holds the planner's Prometheus collectors.
type Metrics struct {
	Requests *prometheus.CounterVec
	Dropped  prometheus.Counter
}

// NewMetrics creates the planner collectors and registers them with reg
// when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questd_planner_requests_total",
				Help: "Mission planning requests by outcome",
			},
			[]string{"outcome"},
		),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "questd_planner_suggestions_dropped_total",
			Help: "Generated task suggestions discarded by validation",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Dropped)
	}
	return m
}

func (m *Metrics) observe(outcome string) {
	m.Requests.WithLabelValues(outcome).Inc()
}
