package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/blackedge/config"
	"github.com/alejandrodnm/blackedge/internal/adapters/backend"
	"github.com/alejandrodnm/blackedge/internal/adapters/gamma"
	"github.com/alejandrodnm/blackedge/internal/adapters/notify"
	"github.com/alejandrodnm/blackedge/internal/adapters/redispub"
	"github.com/alejandrodnm/blackedge/internal/adapters/storage"
	"github.com/alejandrodnm/blackedge/internal/metrics"
	"github.com/alejandrodnm/blackedge/internal/ports"
	"github.com/alejandrodnm/blackedge/internal/router"
	"github.com/alejandrodnm/blackedge/internal/scanner"
	"github.com/alejandrodnm/blackedge/internal/shorthorizon"
	"github.com/alejandrodnm/blackedge/internal/trial"
	"golang.org/x/sync/errgroup"
)

// app agrupa los componentes cableados del proceso.
type app struct {
	cfg   *config.Config
	flags flags

	metrics   *metrics.Recorder
	backend   *backend.Client
	router    *router.Router
	scanner   *scanner.Scanner
	poller    *shorthorizon.Poller
	gate      *trial.Gate
	console   *notify.Console
	store     *storage.SQLiteStorage // nil en dry-run
	publisher *redispub.Publisher    // nil si Redis está deshabilitado
}

func newApp(ctx context.Context, cfg *config.Config, f flags) (*app, error) {
	a := &app{cfg: cfg, flags: f, metrics: metrics.New()}

	a.backend = backend.NewClient(cfg.Feeds.APIBase)
	secondary := gamma.NewClient(cfg.Feeds.GammaBase, cfg.Feeds.GammaLimit)
	a.router = router.New(a.backend, secondary, router.Config{
		PrimaryTimeout:   cfg.PrimaryTimeout(),
		SecondaryTimeout: cfg.SecondaryTimeout(),
	}, a.metrics)

	var (
		st  ports.Storage
		pub ports.SnapshotPublisher
	)
	if !f.dryRun {
		store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
		}
		a.store, st = store, store

		if cfg.Redis.Enabled {
			p, err := redispub.New(ctx, redispub.Config{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				Channel:  cfg.Redis.Channel,
				Key:      cfg.Redis.Key,
				TTL:      time.Duration(cfg.Redis.TTLSeconds) * time.Second,
			})
			if err != nil {
				// Redis es un consumidor opcional: sin él se sigue escaneando
				slog.Warn("redis unavailable, snapshots will not be published", "err", err)
			} else {
				a.publisher, pub = p, p
			}
		}
	}

	a.console = notify.NewConsole(f.table, f.detail)

	a.scanner = scanner.New(scanner.Config{
		PollInterval: cfg.ScanInterval(),
		Filter: scanner.FilterConfig{
			HideAvoid:    cfg.Feeds.HideAvoid,
			MinVolume24h: cfg.Feeds.MinVolume24h,
			MinLiquidity: cfg.Feeds.MinLiquidity,
			MaxResults:   cfg.Feeds.MaxResults,
		},
	}, a.router, scanner.NewStore(), st, a.console, pub, a.metrics)

	a.poller = shorthorizon.New(shorthorizon.Config{
		PollInterval: cfg.ShortHorizonInterval(),
		Timeout:      cfg.PrimaryTimeout(),
	}, a.backend)

	a.gate = trial.New(cfg.Trial.Seconds, a.metrics)
	if cfg.Trial.Subscribed {
		a.gate.Upgrade()
	}
	return a, nil
}

// run arranca los loops periódicos y bloquea hasta que el contexto se cancele.
func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.scanner.Run(ctx) })
	g.Go(func() error { return a.poller.Run(ctx) })
	g.Go(func() error { return a.gate.Run(ctx) })

	// SIGHUP reinicia la ventana de prueba
	restart := make(chan os.Signal, 1)
	signal.Notify(restart, syscall.SIGHUP)
	defer signal.Stop(restart)
	g.Go(func() error { return a.gate.RestartOn(ctx, restart) })

	if a.flags.short {
		g.Go(func() error { return a.renderShortHorizon(ctx) })
	}
	if a.cfg.Metrics.Enabled {
		g.Go(func() error { return serveMetrics(ctx, a.cfg.Metrics.Addr, a.metrics) })
	}

	return g.Wait()
}

// renderShortHorizon imprime la cuenta atrás en cada intervalo del poller.
func (a *app) renderShortHorizon(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.ShortHorizonInterval())
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			v := a.poller.View()
			if v == nil {
				continue
			}
			live := v.Live(time.Now())
			// sin feed nuevo solo se repinta si queda algo vivo
			if v.Seq == lastSeq && len(live) == 0 {
				continue
			}
			lastSeq = v.Seq
			a.console.PrintShortHorizon(v.Feed, live)
		}
	}
}

// serveMetrics expone /metrics hasta que el contexto se cancele.
func serveMetrics(ctx context.Context, addr string, rec *metrics.Recorder) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Close libera conexiones.
func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
