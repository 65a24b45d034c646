package authcore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors the core updates. A nil
// *Metrics disables collection; every method is nil-safe.
type Metrics struct {
	resolutions *prometheus.CounterVec
	signIns     *prometheus.CounterVec
	mfaVerdicts *prometheus.CounterVec
	lockouts    prometheus.Counter
}

// NewMetrics creates and registers the core's collectors. Pass
// prometheus.DefaultRegisterer for the process-wide registry, or a
// private registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "resolutions_total",
			Help:      "Credential resolutions by outcome method.",
		}, []string{"method"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "sign_ins_total",
			Help:      "Sign-in attempts by result.",
		}, []string{"result"}),
		mfaVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "mfa_verifications_total",
			Help:      "MFA verifications by verdict.",
		}, []string{"verdict"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "lockouts_total",
			Help:      "Accounts locked after repeated sign-in failures.",
		}),
	}

	reg.MustRegister(m.resolutions, m.signIns, m.mfaVerdicts, m.lockouts)
	return m
}

func (m *Metrics) observeResolution(method string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(method).Inc()
}

func (m *Metrics) observeSignIn(result string) {
	if m == nil {
		return
	}
	m.signIns.WithLabelValues(result).Inc()
}

func (m *Metrics) observeMFA(verdict string) {
	if m == nil {
		return
	}
	m.mfaVerdicts.WithLabelValues(verdict).Inc()
}

func (m *Metrics) observeLockout() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}
