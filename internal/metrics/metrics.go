// Package metrics exposes Prometheus counters for the standup lifecycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the services and the driver report to.
type Recorder interface {
	RecordSessionOpened()
	RecordSessionClosed()
	RecordSummary(source string)
	RecordResponse(updated bool)
	RecordTicketTransition(status string)
	RecordPass(pass string, duration time.Duration, failures int)
}

type Nop struct{}

func (Nop) RecordSessionOpened() {}
func (Nop) RecordSessionClosed() {}
func (Nop) RecordSummary(string) {}
func (Nop) RecordResponse(bool) {}
func (Nop) RecordTicketTransition(string) {}
func (Nop) RecordPass(string, time.Duration, int) {}

type Collector struct {
	sessionsOpened    prometheus.Counter
	sessionsClosed    prometheus.Counter
	summaries         *prometheus.CounterVec
	responses         *prometheus.CounterVec
	ticketTransitions *prometheus.CounterVec
	passDuration      *prometheus.HistogramVec
	passFailures      *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dailybot_sessions_opened_total",
			Help: "Standup sessions opened by the open pass.",
		}),
		sessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dailybot_sessions_closed_total",
			Help: "Standup sessions transitioned to closed.",
		}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dailybot_summaries_total",
			Help: "Summaries persisted, by source.",
		}, []string{"source"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dailybot_responses_total",
			Help: "Accepted standup responses.",
		}, []string{"kind"}),
		ticketTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dailybot_ticket_transitions_total",
			Help: "Ticket status changes applied from standup text.",
		}, []string{"status"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dailybot_pass_duration_seconds",
			Help:    "Duration of driver passes.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pass"}),
		passFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dailybot_pass_item_failures_total",
			Help: "Per-item failures isolated during driver passes.",
		}, []string{"pass"}),
	}

	reg.MustRegister(
		c.sessionsOpened,
		c.sessionsClosed,
		c.summaries,
		c.responses,
		c.ticketTransitions,
		c.passDuration,
		c.passFailures,
	)
	return c
}

func (c *Collector) RecordSessionOpened() {
	c.sessionsOpened.Inc()
}

func (c *Collector) RecordSessionClosed() {
	c.sessionsClosed.Inc()
}

func (c *Collector) RecordSummary(source string) {
	c.summaries.WithLabelValues(source).Inc()
}

func (c *Collector) RecordResponse(updated bool) {
	kind := "created"
	if updated {
		kind = "updated"
	}
	c.responses.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordTicketTransition(status string) {
	c.ticketTransitions.WithLabelValues(status).Inc()
}

func (c *Collector) RecordPass(pass string, duration time.Duration, failures int) {
	c.passDuration.WithLabelValues(pass).Observe(duration.Seconds())
	if failures > 0 {
		c.passFailures.WithLabelValues(pass).Add(float64(failures))
	}
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
