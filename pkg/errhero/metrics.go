// metrics.go exposes Prometheus counters for the interception layer.

package errhero

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomePromoted = "promoted"
	outcomeIgnored  = "ignored"
	outcomeCaught   = "caught"
	outcomeExcluded = "excluded"
	outcomeFatal    = "fatal"
	outcomeUncaught = "uncaught"
)

// Metrics counts classified conditions and produced error responses.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	conditions *prometheus.CounterVec
	responses  *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg. A nil reg
// leaves them unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		conditions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "errhero",
			Name:      "conditions_total",
			Help:      "Conditions observed by the interception layer, by outcome.",
		}, []string{"outcome"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "errhero",
			Name:      "responses_total",
			Help:      "Error responses produced, by content type.",
		}, []string{"content_type"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.conditions, m.responses} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) condition(outcome string) {
	if m == nil {
		return
	}
	m.conditions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) response(contentType string) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(contentType).Inc()
}
