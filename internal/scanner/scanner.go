package scanner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/alejandrodnm/blackedge/internal/metrics"
	"github.com/alejandrodnm/blackedge/internal/ports"
	"github.com/alejandrodnm/blackedge/internal/router"
)

// Config contiene la configuración del scanner.
type Config struct {
	PollInterval time.Duration
	Filter       FilterConfig
}

// DefaultConfig devuelve una configuración sensata para producción.
func DefaultConfig() Config {
	return Config{
		PollInterval: 30 * time.Second,
		Filter:       DefaultFilterConfig(),
	}
}

// SignalFetcher es la estrategia de fuentes (router.Router en producción).
type SignalFetcher interface {
	FetchSignals(ctx context.Context) router.Result
}

// Scanner es el orquestador del loop general de oportunidades.
type Scanner struct {
	cfg       Config
	fetcher   SignalFetcher
	store     *Store
	storage   ports.Storage           // opcional
	notifier  ports.Notifier          // opcional
	publisher ports.SnapshotPublisher // opcional
	filter    *Filter
	metrics   *metrics.Recorder

	seq atomic.Uint64
	wg  sync.WaitGroup
	now func() time.Time
}

// New crea un Scanner con todas las dependencias inyectadas.
// storage, notifier y publisher pueden ser nil.
func New(
	cfg Config,
	fetcher SignalFetcher,
	store *Store,
	storage ports.Storage,
	notifier ports.Notifier,
	publisher ports.SnapshotPublisher,
	rec *metrics.Recorder,
) *Scanner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if store == nil {
		store = NewStore()
	}
	return &Scanner{
		cfg:       cfg,
		fetcher:   fetcher,
		store:     store,
		storage:   storage,
		notifier:  notifier,
		publisher: publisher,
		filter:    NewFilter(cfg.Filter),
		metrics:   rec,
		now:       time.Now,
	}
}

// Store devuelve el store donde se publican los snapshots.
func (s *Scanner) Store() *Store { return s.store }

// Run ejecuta el loop de polling hasta que el contexto se cancele.
// Cada ciclo corre en su propia goroutine con un número de secuencia creciente:
// un ciclo lento nunca bloquea al siguiente y su resultado se descarta si llega tarde.
func (s *Scanner) Run(ctx context.Context) error {
	slog.Info("scanner starting", "interval", s.cfg.PollInterval)

	s.launch(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			slog.Info("scanner stopped")
			return nil
		case <-ticker.C:
			s.launch(ctx)
		}
	}
}

// RunOnce ejecuta exactamente un ciclo de forma síncrona y devuelve el snapshot aplicado.
func (s *Scanner) RunOnce(ctx context.Context) *domain.Snapshot {
	s.runCycle(ctx, s.seq.Add(1))
	return s.store.Snapshot()
}

func (s *Scanner) launch(ctx context.Context) {
	seq := s.seq.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCycle(ctx, seq)
	}()
}

// runCycle hace fetch → apply → rank → filter → notify/persist/publish.
func (s *Scanner) runCycle(ctx context.Context, seq uint64) {
	start := time.Now()

	res := s.fetcher.FetchSignals(ctx)
	snap := &domain.Snapshot{
		Seq:       seq,
		Signals:   res.Signals,
		Source:    res.Source,
		FetchedAt: s.now(),
	}

	if !s.store.Apply(snap) {
		slog.Debug("cycle result discarded",
			"seq", seq,
			"source", res.Source,
			"signals", len(res.Signals),
		)
		return
	}
	s.metrics.SetSignals(snap.Len())

	ranked := s.filter.Apply(domain.Rank(snap.Signals))

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, snap.Source, ranked); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}

	if s.storage != nil {
		if err := s.storage.SaveSnapshot(ctx, snap); err != nil {
			slog.Warn("storage error", "err", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishSnapshot(ctx, snap); err != nil {
			slog.Warn("publish error", "err", err)
		}
	}

	slog.Info("scan cycle complete",
		"seq", seq,
		"source", snap.Source,
		"signals", snap.Len(),
		"shown", len(ranked),
		"duration", time.Since(start).Round(time.Millisecond),
	)
}
