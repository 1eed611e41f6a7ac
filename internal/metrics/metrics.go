// Package metrics expone los contadores Prometheus del pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder agrupa los collectors del proceso. Un *Recorder nil es válido y no registra nada,
// así los componentes no necesitan comprobar si las métricas están activadas.
type Recorder struct {
	registry *prometheus.Registry

	feedCycles     *prometheus.CounterVec
	feedFailures   *prometheus.CounterVec
	feedLatency    *prometheus.HistogramVec
	signals        prometheus.Gauge
	trades         *prometheus.CounterVec
	trialRemaining prometheus.Gauge
}

// New crea un Recorder con su propio registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		feedCycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blackedge_feed_cycles_total",
				Help: "Poll cycles completed, by the source that served the list",
			},
			[]string{"source"},
		),
		feedFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blackedge_feed_failures_total",
				Help: "Failed or empty fetches, by feed",
			},
			[]string{"feed"},
		),
		feedLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blackedge_feed_fetch_duration_seconds",
				Help:    "Duration of feed fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"feed"},
		),
		signals: f.NewGauge(prometheus.GaugeOpts{
			Name: "blackedge_signals",
			Help: "Signals in the last applied snapshot",
		}),
		trades: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blackedge_trades_total",
				Help: "Trade executions that reached a terminal state",
			},
			[]string{"state", "kind"},
		),
		trialRemaining: f.NewGauge(prometheus.GaugeOpts{
			Name: "blackedge_trial_seconds_remaining",
			Help: "Seconds left in the trial window",
		}),
	}
}

// RecordFeedCycle cuenta un ciclo de polling terminado con la fuente dada.
func (r *Recorder) RecordFeedCycle(source string) {
	if r == nil {
		return
	}
	r.feedCycles.WithLabelValues(source).Inc()
}

// RecordFeedFailure cuenta un fallo (error, timeout o payload vacío) de un feed.
func (r *Recorder) RecordFeedFailure(feed string) {
	if r == nil {
		return
	}
	r.feedFailures.WithLabelValues(feed).Inc()
}

// ObserveFeedLatency registra la duración de un fetch.
func (r *Recorder) ObserveFeedLatency(feed string, seconds float64) {
	if r == nil {
		return
	}
	r.feedLatency.WithLabelValues(feed).Observe(seconds)
}

// SetSignals fija el tamaño del último snapshot aplicado.
func (r *Recorder) SetSignals(n int) {
	if r == nil {
		return
	}
	r.signals.Set(float64(n))
}

// RecordTrade cuenta una ejecución terminada. kind va vacío en los éxitos.
func (r *Recorder) RecordTrade(state, kind string) {
	if r == nil {
		return
	}
	r.trades.WithLabelValues(state, kind).Inc()
}

// SetTrialRemaining publica los segundos restantes de la prueba.
func (r *Recorder) SetTrialRemaining(seconds int) {
	if r == nil {
		return
	}
	r.trialRemaining.Set(float64(seconds))
}

// Handler devuelve el handler HTTP de /metrics.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer expone el registry para inspección en tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
