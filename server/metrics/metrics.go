package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the metrics.
type Metrics struct {
	Signed,
	AuthFailures,
	Errs *prometheus.CounterVec
}

// M structure to collect all metrics together.
var M = newMetrics()

var once sync.Once

func newMetrics() Metrics {
	return Metrics{
		Signed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfsign",
			Subsystem: "signer",
			Name:      "signed_total",
			Help:      "Signed URLs issued by policy type",
		}, []string{"policy"}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfsign",
			Subsystem: "auth",
			Name:      "failures_total",
			Help:      "Rejected API tokens",
		}, []string{"endpoint"}),
		Errs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfsign",
			Subsystem: "sys",
			Name:      "error_total",
			Help:      "Error counts by module",
		}, []string{"module"}),
	}
}

// Register metrics with the default registry. It is safe to call more than
// once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(M.Errs)
		prometheus.MustRegister(M.Signed)
		prometheus.MustRegister(M.AuthFailures)
	})
}
