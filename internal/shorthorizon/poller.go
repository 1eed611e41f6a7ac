// Package shorthorizon sigue los mercados cripto de ventana corta (5 minutos).
// Se consulta cada 2s, independiente del loop general, y lleva una cuenta atrás
// por mercado derivada de su hora de cierre.
package shorthorizon

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/alejandrodnm/blackedge/internal/ports"
)

// Config contiene la configuración del poller.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration // por intento
}

// DefaultConfig devuelve 2s de intervalo y 5s de timeout.
func DefaultConfig() Config {
	return Config{
		PollInterval: 2 * time.Second,
		Timeout:      5 * time.Second,
	}
}

// View es el último feed aplicado. Inmutable.
type View struct {
	Seq       uint64
	Feed      domain.ShortHorizonFeed
	FetchedAt time.Time
}

// Countdown es un mercado vivo con su lectura del modelo y los segundos que le quedan.
type Countdown struct {
	Market      domain.ShortHorizonMarket
	Signal      domain.ShortHorizonSignal
	HasSignal   bool
	SecondsLeft int
}

// Live devuelve los mercados que siguen abiertos en now, los que cierran antes primero.
// La cuenta atrás baja entre polls porque se calcula contra EndsAt en cada lectura.
func (v *View) Live(now time.Time) []Countdown {
	if v == nil {
		return nil
	}
	signals := make(map[string]domain.ShortHorizonSignal, len(v.Feed.Signals))
	for _, s := range v.Feed.Signals {
		signals[s.MarketID] = s
	}

	out := make([]Countdown, 0, len(v.Feed.Markets))
	for _, m := range v.Feed.Markets {
		left := m.SecondsLeft(now)
		if !m.EndsAt.IsZero() && left == 0 {
			continue
		}
		sig, ok := signals[m.ID]
		out = append(out, Countdown{Market: m, Signal: sig, HasSignal: ok, SecondsLeft: left})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SecondsLeft < out[j].SecondsLeft
	})
	return out
}

// Poller ejecuta el loop de 2s.
type Poller struct {
	cfg      Config
	provider ports.ShortHorizonProvider

	current atomic.Pointer[View]
	seq     atomic.Uint64
	wg      sync.WaitGroup
	now     func() time.Time
}

// New crea un Poller.
func New(cfg Config, provider ports.ShortHorizonProvider) *Poller {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{cfg: cfg, provider: provider, now: time.Now}
}

// View devuelve el último feed aplicado (nil si no hubo ninguno).
func (p *Poller) View() *View {
	return p.current.Load()
}

// Run consulta el feed hasta que el contexto se cancele. Igual que el scanner,
// cada poll corre en su goroutine y solo se aplica si es el más reciente.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("short-horizon poller starting", "interval", p.cfg.PollInterval)

	p.launch(ctx)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			slog.Info("short-horizon poller stopped")
			return nil
		case <-ticker.C:
			p.launch(ctx)
		}
	}
}

// Poll ejecuta un poll de forma síncrona. Devuelve false si no se aplicó nada.
func (p *Poller) Poll(ctx context.Context) bool {
	return p.poll(ctx, p.seq.Add(1))
}

func (p *Poller) launch(ctx context.Context) {
	seq := p.seq.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.poll(ctx, seq)
	}()
}

func (p *Poller) poll(ctx context.Context, seq uint64) bool {
	pctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	feed, err := p.provider.FetchShortHorizon(pctx)
	if err != nil {
		// Se mantiene la vista anterior; la cuenta atrás sigue corriendo sobre ella.
		slog.Debug("short-horizon fetch failed", "seq", seq, "err", err)
		return false
	}

	view := &View{Seq: seq, Feed: feed, FetchedAt: p.now()}
	if !p.apply(view) {
		slog.Debug("short-horizon result discarded", "seq", seq)
		return false
	}
	slog.Debug("short-horizon feed applied",
		"seq", seq,
		"markets", len(feed.Markets),
		"btc", feed.BTCPrice,
	)
	return true
}

func (p *Poller) apply(v *View) bool {
	for {
		cur := p.current.Load()
		if cur != nil && v.Seq <= cur.Seq {
			return false
		}
		if p.current.CompareAndSwap(cur, v) {
			return true
		}
	}
}
