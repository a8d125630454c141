package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	BookingsTotal        prometheus.Counter
	BookingsRejected     *prometheus.CounterVec
	CancellationsTotal   *prometheus.CounterVec
	MailFailuresTotal    *prometheus.CounterVec
	MagicLinksSent       prometheus.Counter
	PlacesImported       prometheus.Counter
	RequestLatency       *prometheus.HistogramVec
	AuditEventsPublished prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers metrics on the given registerer. Tests pass a fresh
// registry so parallel suites never collide on registration.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BookingsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "candilib_bookings_total",
			Help: "Total number of exam places successfully booked",
		}),
		BookingsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "candilib_bookings_rejected_total",
			Help: "Booking attempts rejected, by reason",
		}, []string{"reason"}),
		CancellationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "candilib_cancellations_total",
			Help: "Cancellations, split by whether a penalty applied",
		}, []string{"penalty"}),
		MailFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "candilib_mail_failures_total",
			Help: "Notification emails that failed to send, by kind",
		}, []string{"kind"}),
		MagicLinksSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "candilib_magic_links_sent_total",
			Help: "Magic link emails sent",
		}),
		PlacesImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "candilib_places_imported_total",
			Help: "Exam places created through planning imports",
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "candilib_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
		AuditEventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "candilib_audit_events_published_total",
			Help: "Audit events shipped to Kafka",
		}),
	}
}

// IncBookingRejected records one rejected booking attempt.
func (m *Metrics) IncBookingRejected(reason string) {
	m.BookingsRejected.WithLabelValues(reason).Inc()
}

// IncCancellation records one cancellation.
func (m *Metrics) IncCancellation(penalty bool) {
	label := "false"
	if penalty {
		label = "true"
	}
	m.CancellationsTotal.WithLabelValues(label).Inc()
}

// IncMailFailure records one failed notification email.
func (m *Metrics) IncMailFailure(kind string) {
	m.MailFailuresTotal.WithLabelValues(kind).Inc()
}
