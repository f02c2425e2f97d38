package httpfwd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the middleware.
type Metrics struct {
	Requests *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg means the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "httpfwd"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Metrics{
		Requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "forwarded_headers_total",
				Help:      "Total number of requests by forwarding header outcome",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) observe(result string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(result).Inc()
}
