package metrics

import (
	"net/http"
	"time"

	"turnero/client"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var allStates = []client.State{
	client.Unauthenticated,
	client.AuthenticatedFresh,
	client.PendingRenewal,
	client.Renewing,
}

// HTTPDuration is observed by the stub server's HTTP middleware.
var HTTPDuration = promauto.NewSummaryVec(
	prometheus.SummaryOpts{
		Name: "turnero_http_duration_seconds",
		Help: "Duration of HTTP requests.",
	},
	[]string{"path", "method", "status"},
)

// SessionObserver feeds client lifecycle events into prometheus.
type SessionObserver struct {
	renewals       *prometheus.CounterVec
	renewalLatency *prometheus.HistogramVec
	retries        *prometheus.CounterVec
	logouts        *prometheus.CounterVec
	state          *prometheus.GaugeVec
}

var _ client.Observer = (*SessionObserver)(nil)

// NewSessionObserver registers the session metrics on reg, or on the default
// registry when reg is nil.
func NewSessionObserver(reg prometheus.Registerer) *SessionObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	o := &SessionObserver{
		renewals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "turnero_session_renewals_total",
			Help: "Access token renewals by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		renewalLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "turnero_session_renewal_duration_seconds",
			Help:    "Latency of the refresh exchange.",
			Buckets: prometheus.DefBuckets,
		}, []string{"trigger"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "turnero_session_replays_total",
			Help: "Requests replayed after a 401, by whether the replay was attempted.",
		}, []string{"recovered"}),
		logouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "turnero_session_logouts_total",
			Help: "Session terminations by reason.",
		}, []string{"reason"}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "turnero_session_state",
			Help: "1 for the current session state, 0 otherwise.",
		}, []string{"state"}),
	}
	o.SetState(client.Unauthenticated)
	return o
}

func (o *SessionObserver) ObserveRenewal(trigger string, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	o.renewals.WithLabelValues(trigger, outcome).Inc()
	o.renewalLatency.WithLabelValues(trigger).Observe(elapsed.Seconds())
}

func (o *SessionObserver) RecordRetry(recovered bool) {
	label := "false"
	if recovered {
		label = "true"
	}
	o.retries.WithLabelValues(label).Inc()
}

func (o *SessionObserver) RecordLogout(reason client.LogoutReason) {
	o.logouts.WithLabelValues(string(reason)).Inc()
}

func (o *SessionObserver) SetState(state client.State) {
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1
		}
		o.state.WithLabelValues(s.String()).Set(v)
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves a custom registry.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
