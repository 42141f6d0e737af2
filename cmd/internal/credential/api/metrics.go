package credentialapi

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"warden/cmd/security/password"
)

// Metrics holds the password engine collectors exposed on /metrics.
type Metrics struct {
	Validations  *prometheus.CounterVec
	Violations   *prometheus.CounterVec
	HashDuration *prometheus.HistogramVec
	HashInFlight prometheus.Gauge
}

// NewMetrics constructs and registers the collectors. Collectors already
// registered on reg (e.g. a second handler in tests) are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	validations, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Subsystem: "password",
		Name:      "validations_total",
		Help:      "Password policy evaluations partitioned by result (valid, invalid).",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	violations, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Subsystem: "password",
		Name:      "violations_total",
		Help:      "Password policy violations partitioned by kind.",
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "warden",
		Subsystem: "password",
		Name:      "hash_duration_seconds",
		Help:      "Argon2id-backed operation latency partitioned by op (enroll, verify).",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}

	inFlight, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "warden",
		Subsystem: "password",
		Name:      "hash_in_flight",
		Help:      "Argon2id computations currently holding a hashing slot.",
	}))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Validations:  validations,
		Violations:   violations,
		HashDuration: duration,
		HashInFlight: inFlight,
	}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

func (m *Metrics) observeReport(r password.Report) {
	if m == nil {
		return
	}
	result := "valid"
	if !r.Valid {
		result = "invalid"
	}
	m.Validations.WithLabelValues(result).Inc()
	for _, v := range r.Violations {
		m.Violations.WithLabelValues(string(v)).Inc()
	}
}
