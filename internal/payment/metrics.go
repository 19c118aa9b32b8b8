package payment

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks simulated charges. A nil *Metrics is a no-op.
type Metrics struct {
	Charges        *prometheus.CounterVec
	Replayed       prometheus.Counter
	ChargeDuration prometheus.Histogram
	LinksSent      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Charges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regflow_payment_charges_total",
			Help: "Simulated charges by outcome",
		}, []string{"outcome"}),
		Replayed: f.NewCounter(prometheus.CounterOpts{
			Name: "regflow_payment_charges_replayed_total",
			Help: "Charges answered from the idempotency cache",
		}),
		ChargeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "regflow_payment_charge_duration_seconds",
			Help:    "Duration of simulated charges including the processing window",
			Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10, 15},
		}),
		LinksSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regflow_payment_links_sent_total",
			Help: "Payment links delivered by channel",
		}, []string{"channel"}),
	}
}

func (m *Metrics) ObserveCharge(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Charges.WithLabelValues(outcome).Inc()
	m.ChargeDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncReplayed() {
	if m == nil {
		return
	}
	m.Replayed.Inc()
}

func (m *Metrics) IncLinkSent(channel Channel) {
	if m == nil {
		return
	}
	m.LinksSent.WithLabelValues(string(channel)).Inc()
}
