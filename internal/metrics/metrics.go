package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes used as the "result" label.
const (
	ResultIssued   = "issued"
	ResultVerified = "verified"
	ResultFailed   = "failed"
	ResultNotFound = "not_found"
	ResultSkew     = "clock_skew"
	ResultError    = "error"
)

type Metrics struct {
	IssuedTotal              *prometheus.CounterVec
	ChecksTotal              *prometheus.CounterVec
	NotificationsSentTotal   prometheus.Counter
	NotificationsFailedTotal prometheus.Counter
	DispatchPending          prometheus.Gauge
}

// New registers the collectors on reg. A nil *Metrics is valid and records
// nothing.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IssuedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "simurgh_verification_issued_total",
			Help: "Total number of verification issue attempts by result",
		}, []string{"result"}),
		ChecksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "simurgh_verification_checks_total",
			Help: "Total number of verification checks by result",
		}, []string{"result"}),
		NotificationsSentTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "simurgh_notifications_sent_total",
			Help: "Total number of notifications handed to the transport",
		}),
		NotificationsFailedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "simurgh_notifications_failed_total",
			Help: "Total number of notification deliveries that failed and will be retried",
		}),
		DispatchPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "simurgh_notifications_pending",
			Help: "Unsent notifications seen by the last dispatch run",
		}),
	}
}

func (m *Metrics) ObserveIssue(result string) {
	if m == nil {
		return
	}
	m.IssuedTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCheck(result string) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDispatch(pending, sent, failed int) {
	if m == nil {
		return
	}
	m.DispatchPending.Set(float64(pending))
	m.NotificationsSentTotal.Add(float64(sent))
	m.NotificationsFailedTotal.Add(float64(failed))
}
