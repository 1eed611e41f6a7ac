// Package trial implements the time-boxed free-trial window that gates trade execution.
package trial

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/alejandrodnm/blackedge/internal/metrics"
)

// Gate owns the TrialSession. Only the gate mutates it; readers get copies.
type Gate struct {
	mu        sync.Mutex
	total     int
	remaining int
	upgraded  bool

	interval time.Duration
	now      func() time.Time
	metrics  *metrics.Recorder
}

// New creates a gate with a fresh window of totalSeconds (DefaultTrialSeconds if <= 0).
func New(totalSeconds int, rec *metrics.Recorder) *Gate {
	if totalSeconds <= 0 {
		totalSeconds = domain.DefaultTrialSeconds
	}
	g := &Gate{
		total:     totalSeconds,
		remaining: totalSeconds,
		interval:  time.Second,
		now:       time.Now,
		metrics:   rec,
	}
	rec.SetTrialRemaining(totalSeconds)
	return g
}

// Tick consumes exactly one second of the window, floored at 0.
func (g *Gate) Tick() domain.TrialSession {
	return g.advance(1)
}

// CanExecute reports whether a new trade may start.
func (g *Gate) CanExecute() bool {
	return g.Session().CanExecute()
}

// Session returns a copy of the current session.
func (g *Gate) Session() domain.TrialSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionLocked()
}

// Restart resets the window. Only an explicit user action calls this.
func (g *Gate) Restart() domain.TrialSession {
	g.mu.Lock()
	g.remaining = g.total
	s := g.sessionLocked()
	g.mu.Unlock()

	g.metrics.SetTrialRemaining(s.SecondsRemaining)
	slog.Info("trial restarted", "seconds", s.TotalSeconds)
	return s
}

// RestartOn calls Restart once per value received on requests until ctx is cancelled
// or requests is closed.
func (g *Gate) RestartOn(ctx context.Context, requests <-chan os.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-requests:
			if !ok {
				return nil
			}
			slog.Debug("trial restart requested", "signal", sig)
			g.Restart()
		}
	}
}

// Upgrade lifts the gate for the rest of the session.
func (g *Gate) Upgrade() domain.TrialSession {
	g.mu.Lock()
	g.upgraded = true
	s := g.sessionLocked()
	g.mu.Unlock()

	slog.Info("subscription active, trial gate lifted")
	return s
}

// Run drives the countdown from a fixed-period ticker until ctx is cancelled.
// Ticks are derived from elapsed wall-clock time, so a receiver that misses ticker
// fires still ends up charged for every real second.
func (g *Gate) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	c := tickClock{anchor: g.now()}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.catchUp(&c, g.now())
		}
	}
}

type tickClock struct {
	anchor  time.Time
	applied int64
}

// catchUp applies every tick that is due since anchor and not yet applied.
func (g *Gate) catchUp(c *tickClock, now time.Time) {
	due := int64(now.Sub(c.anchor) / g.interval)
	if due <= c.applied {
		return
	}
	n := due - c.applied
	c.applied = due
	g.advance(n)
}

func (g *Gate) advance(n int64) domain.TrialSession {
	g.mu.Lock()
	before := g.remaining
	if int64(g.remaining) <= n {
		g.remaining = 0
	} else {
		g.remaining -= int(n)
	}
	s := g.sessionLocked()
	g.mu.Unlock()

	if s.SecondsRemaining != before {
		g.metrics.SetTrialRemaining(s.SecondsRemaining)
		if s.SecondsRemaining == 0 && !s.Upgraded {
			slog.Warn("trial expired, trade execution disabled", "kind", domain.KindTrialExpired)
		}
	}
	return s
}

func (g *Gate) sessionLocked() domain.TrialSession {
	return domain.TrialSession{
		TotalSeconds:     g.total,
		SecondsRemaining: g.remaining,
		Upgraded:         g.upgraded,
	}
}
