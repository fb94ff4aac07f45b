package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts security-relevant outcomes. Counters only: the goal is
// alerting on abuse patterns, not request tracing.
type Metrics struct {
	registry *prometheus.Registry

	Logins            *prometheus.CounterVec
	RateLimitDenials  *prometheus.CounterVec
	CSRFRejections    prometheus.Counter
	RedirectFallbacks prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantguard_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		RateLimitDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantguard_rate_limit_denials_total",
			Help: "Admissions denied, by action class.",
		}, []string{"class"}),
		CSRFRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "tenantguard_csrf_rejections_total",
			Help: "Mutating requests rejected for a missing or wrong CSRF token.",
		}),
		RedirectFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "tenantguard_redirect_fallbacks_total",
			Help: "Redirect targets rejected and replaced by the safe default.",
		}),
	}
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
