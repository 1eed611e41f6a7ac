// Package router elige de qué upstream sale la lista de oportunidades en cada ciclo:
// primero el backend, después el agregador público y, si ambos fallan, la última
// lista buena marcada como stale.
package router

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/alejandrodnm/blackedge/internal/metrics"
	"github.com/alejandrodnm/blackedge/internal/normalize"
	"github.com/alejandrodnm/blackedge/internal/ports"
)

const (
	DefaultPrimaryTimeout   = 5 * time.Second
	DefaultSecondaryTimeout = 10 * time.Second
)

// Config son los timeouts por intento. Se inyecta; no hay estado global.
type Config struct {
	PrimaryTimeout   time.Duration
	SecondaryTimeout time.Duration
}

// DefaultConfig devuelve los timeouts por defecto (5s / 10s).
func DefaultConfig() Config {
	return Config{
		PrimaryTimeout:   DefaultPrimaryTimeout,
		SecondaryTimeout: DefaultSecondaryTimeout,
	}
}

// Result es la lista de un ciclo y la fuente que la sirvió.
type Result struct {
	Signals []domain.MarketSignal
	Source  domain.Source
}

// Router implementa la estrategia primary → secondary → stale.
type Router struct {
	primary   ports.FeedSource
	secondary ports.FeedSource // puede ser nil
	cfg       Config
	metrics   *metrics.Recorder

	mu          sync.Mutex
	gen         uint64
	lastGood    []domain.MarketSignal
	lastGoodGen uint64
}

// New crea un Router. secondary puede ser nil para desactivar el fallback.
func New(primary, secondary ports.FeedSource, cfg Config, rec *metrics.Recorder) *Router {
	if cfg.PrimaryTimeout <= 0 {
		cfg.PrimaryTimeout = DefaultPrimaryTimeout
	}
	if cfg.SecondaryTimeout <= 0 {
		cfg.SecondaryTimeout = DefaultSecondaryTimeout
	}
	return &Router{
		primary:   primary,
		secondary: secondary,
		cfg:       cfg,
		metrics:   rec,
	}
}

// FetchSignals nunca devuelve error. Un ciclo en el que fallan ambas fuentes
// devuelve la última lista buena (vacía solo si nunca hubo una) con Source stale.
func (r *Router) FetchSignals(ctx context.Context) Result {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	if signals, ok := r.try(ctx, "primary", r.primary, normalize.ShapePrimary, r.cfg.PrimaryTimeout); ok {
		r.remember(gen, signals)
		return r.finish(Result{Signals: signals, Source: domain.SourcePrimary})
	}

	if r.secondary != nil {
		if signals, ok := r.try(ctx, "secondary", r.secondary, normalize.ShapeSecondary, r.cfg.SecondaryTimeout); ok {
			r.remember(gen, signals)
			return r.finish(Result{Signals: signals, Source: domain.SourceSecondary})
		}
	}

	r.mu.Lock()
	last := r.lastGood
	r.mu.Unlock()

	slog.Warn("all feeds unavailable, serving stale list",
		"kind", domain.KindFeedUnavailable,
		"signals", len(last),
	)
	return r.finish(Result{Signals: last, Source: domain.SourceStale})
}

// LastGood devuelve la última lista servida por una fuente real.
func (r *Router) LastGood() []domain.MarketSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastGood
}

// try hace un intento acotado por timeout. Un payload que normaliza a cero señales
// cuenta como fallo para forzar el fallback.
func (r *Router) try(ctx context.Context, name string, src ports.FeedSource, shape normalize.Shape, timeout time.Duration) ([]domain.MarketSignal, bool) {
	if src == nil {
		return nil, false
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	payload, err := src.FetchRaw(attemptCtx)
	r.metrics.ObserveFeedLatency(name, time.Since(start).Seconds())
	if err != nil {
		r.metrics.RecordFeedFailure(name)
		slog.Warn("feed fetch failed", "feed", name, "err", err)
		return nil, false
	}

	res := normalize.NormalizeResult(payload, shape)
	if res.Dropped > 0 {
		slog.Debug("malformed records dropped",
			"feed", name,
			"kind", domain.KindMalformedRecord,
			"dropped", res.Dropped,
		)
	}
	if len(res.Signals) == 0 {
		r.metrics.RecordFeedFailure(name)
		slog.Warn("feed returned no usable signals", "feed", name, "bytes", len(payload))
		return nil, false
	}
	return res.Signals, true
}

// remember guarda la lista solo si viene de un ciclo más reciente que la guardada.
func (r *Router) remember(gen uint64, signals []domain.MarketSignal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen < r.lastGoodGen {
		return
	}
	r.lastGood = signals
	r.lastGoodGen = gen
}

func (r *Router) finish(res Result) Result {
	r.metrics.RecordFeedCycle(string(res.Source))
	slog.Debug("feed cycle complete", "source", res.Source, "signals", len(res.Signals))
	return res
}
