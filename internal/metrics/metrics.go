// Package metrics exposes ledger activity counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "freshflow"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	transfers    *prometheus.CounterVec
	accepts      prometheus.Counter
	poolOffers   *prometheus.CounterVec
	poolClaims   *prometheus.CounterVec
	unitsSold    prometheus.Counter
	sweepOffered *prometheus.CounterVec
	gatherer     prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Stock transfers committed, by source and destination tier.",
		}, []string{"source_tier", "destination_tier"}),
		accepts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_accepts_total",
			Help:      "Transfers accepted by the receiving party. Repeated accepts are not counted.",
		}),
		poolOffers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_offers_total",
			Help:      "Entries opened in the redistribution pool, by reason.",
		}, []string{"reason"}),
		poolClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_claims_total",
			Help:      "Pool claim attempts, by outcome (won, lost).",
		}, []string{"outcome"}),
		unitsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_sold_total",
			Help:      "Units recorded as sold.",
		}),
		sweepOffered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_sweep_offered_total",
			Help:      "Batches nominated to the pool by the scheduled sweep, by reason.",
		}, []string{"reason"}),
		gatherer: reg,
	}
	reg.MustRegister(m.transfers, m.accepts, m.poolOffers, m.poolClaims, m.unitsSold, m.sweepOffered)
	return m
}

func (m *Metrics) Transfer(sourceTier, destinationTier string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(sourceTier, destinationTier).Inc()
}

func (m *Metrics) Accept() {
	if m == nil {
		return
	}
	m.accepts.Inc()
}

func (m *Metrics) PoolOffer(reason string) {
	if m == nil {
		return
	}
	m.poolOffers.WithLabelValues(reason).Inc()
}

// PoolClaim records one claim attempt; won is false for a lost race.
func (m *Metrics) PoolClaim(won bool) {
	if m == nil {
		return
	}
	outcome := "lost"
	if won {
		outcome = "won"
	}
	m.poolClaims.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Sold(units int) {
	if m == nil {
		return
	}
	m.unitsSold.Add(float64(units))
}

func (m *Metrics) SweepOffered(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.sweepOffered.WithLabelValues(reason).Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
