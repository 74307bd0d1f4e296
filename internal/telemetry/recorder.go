// Package telemetry exports market activity as Prometheus metrics.
package telemetry

import (
	"net/http"

	"energy-net/internal/episode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns its registry so several recorders can coexist in tests.
type Recorder struct {
	registry *prometheus.Registry

	steps     *prometheus.CounterVec
	episodes  *prometheus.CounterVec
	buyPrice  *prometheus.GaugeVec
	sellPrice *prometheus.GaugeVec
	pcsDemand *prometheus.GaugeVec
	level     *prometheus.GaugeVec
	shortfall *prometheus.HistogramVec
	rewards   *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energynet_steps_total",
			Help: "Market steps settled.",
		}, []string{"source"}),
		episodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energynet_episodes_total",
			Help: "Episodes run to completion.",
		}, []string{"source"}),
		buyPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "energynet_iso_buy_price",
			Help: "Last ISO buy price.",
		}, []string{"source"}),
		sellPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "energynet_iso_sell_price",
			Help: "Last ISO sell price.",
		}, []string{"source"}),
		pcsDemand: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "energynet_pcs_demand",
			Help: "Last net PCS demand, positive when buying from the grid.",
		}, []string{"source"}),
		level: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "energynet_battery_level",
			Help: "Last battery level of unit 0.",
		}, []string{"source"}),
		shortfall: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "energynet_shortfall",
			Help:    "Per-step shortfall of dispatch against actual demand.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}, []string{"source"}),
		rewards: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "energynet_episode_reward",
			Help:    "Total episode reward per agent.",
			Buckets: prometheus.LinearBuckets(-10000, 1000, 21),
		}, []string{"source", "agent"}),
	}
	r.registry.MustRegister(
		r.steps, r.episodes, r.buyPrice, r.sellPrice,
		r.pcsDemand, r.level, r.shortfall, r.rewards,
		collectors.NewGoCollector(),
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveStep(source string, row episode.LedgerRow) {
	r.steps.WithLabelValues(source).Inc()
	r.buyPrice.WithLabelValues(source).Set(row.BuyPrice)
	r.sellPrice.WithLabelValues(source).Set(row.SellPrice)
	r.pcsDemand.WithLabelValues(source).Set(row.PCSDemand)
	r.level.WithLabelValues(source).Set(row.LevelEnd)
	r.shortfall.WithLabelValues(source).Observe(row.Shortfall)
}

func (r *Recorder) ObserveEpisode(source string, res *episode.Result) {
	if res == nil {
		return
	}
	r.episodes.WithLabelValues(source).Inc()
	r.rewards.WithLabelValues(source, "iso").Observe(res.TotalISOReward)
	r.rewards.WithLabelValues(source, "pcs").Observe(res.TotalPCSReward)
}

// Hook records every row and then calls next, if any.
func (r *Recorder) Hook(source string, next episode.StepHook) episode.StepHook {
	return func(row episode.LedgerRow) error {
		r.ObserveStep(source, row)
		if next != nil {
			return next(row)
		}
		return nil
	}
}
