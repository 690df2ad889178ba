// Package metrics exposes pool activity as Prometheus metrics.
package metrics

import (
	"math/big"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "poollottery"

var weiPerEther = new(big.Float).SetFloat64(1e18)

// Collector records pool activity on its own registry.
type Collector struct {
	registry *prometheus.Registry

	joins      prometheus.Counter
	rejections *prometheus.CounterVec
	rounds     prometheus.Counter
	paidOut    prometheus.Counter
	players    prometheus.Gauge
	balance    prometheus.Gauge
	conns      prometheus.Gauge
}

// New creates a collector with Go runtime metrics registered alongside the
// pool metrics.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Accepted entries since start.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected operations by reason.",
		}, []string{"reason"}),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Completed rounds since start.",
		}),
		paidOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_ether_total",
			Help:      "Ether paid to winners since start.",
		}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players",
			Help:      "Entries in the current round.",
		}),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_balance_ether",
			Help:      "Escrow balance of the current round.",
		}),
		conns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}),
	}

	c.registry.MustRegister(
		c.joins, c.rejections, c.rounds, c.paidOut, c.players, c.balance, c.conns,
		collectors.NewGoCollector(),
	)
	return c
}

// Joined records an accepted entry and the resulting round state.
func (c *Collector) Joined(players int, balance *big.Int) {
	c.joins.Inc()
	c.SetRound(players, balance)
}

// Rejected records a failed operation.
func (c *Collector) Rejected(reason string) {
	c.rejections.WithLabelValues(reason).Inc()
}

// RoundClosed records a payout. The registry is empty afterwards.
func (c *Collector) RoundClosed(payout *big.Int) {
	c.rounds.Inc()
	c.paidOut.Add(toEther(payout))
	c.SetRound(0, new(big.Int))
}

// SetRound sets the current round gauges.
func (c *Collector) SetRound(players int, balance *big.Int) {
	c.players.Set(float64(players))
	c.balance.Set(toEther(balance))
}

// ConnectionOpened increments the connection gauge.
func (c *Collector) ConnectionOpened() { c.conns.Inc() }

// ConnectionClosed decrements the connection gauge.
func (c *Collector) ConnectionClosed() { c.conns.Dec() }

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func toEther(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return f
}
