package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/blackedge/internal/adapters/notify"
	"github.com/alejandrodnm/blackedge/internal/adapters/storage"
	"github.com/alejandrodnm/blackedge/internal/domain"
)

// runStatus consulta los feeds auxiliares y el feed de 5 minutos una vez.
func (a *app) runStatus(ctx context.Context) error {
	in := notify.StatusInput{}

	session := a.gate.Session()
	in.TrialSecondsLeft = session.SecondsRemaining
	in.Upgraded = session.Upgraded

	if h, err := a.backend.Health(ctx); err != nil {
		in.Errors = append(in.Errors, "health: "+err.Error())
	} else {
		in.BackendStatus, in.BackendVersion, in.UptimeSeconds = h.Status, h.Version, h.Uptime
	}

	if tr, err := a.backend.TrackRecord(ctx); err != nil {
		in.Errors = append(in.Errors, "track record: "+err.Error())
	} else {
		in.TotalSignals, in.Wins, in.Losses = tr.TotalSignals, tr.Wins, tr.Losses
		in.WinRate, in.ROI = tr.WinRate, tr.ROI
	}

	if a.store != nil {
		j, err := journalStatus(ctx, a.store, time.Now())
		if err != nil {
			in.Errors = append(in.Errors, "journal: "+err.Error())
		} else {
			in.Journal = &j
		}
	}

	a.console.PrintStatus(in)

	if signals, err := a.backend.Signals(ctx); err != nil {
		slog.Warn("signals feed unavailable", "err", err)
	} else {
		_ = a.console.Notify(ctx, domain.SourcePrimary, domain.Rank(signals))
	}

	if a.poller.Poll(ctx) {
		v := a.poller.View()
		a.console.PrintShortHorizon(v.Feed, v.Live(time.Now()))
	}

	if a.store != nil {
		if trades, err := a.store.RecentTrades(ctx, 5); err == nil {
			for _, ex := range trades {
				a.console.PrintTrade(ex)
			}
		}
	}
	return nil
}

// journalStatus lee el último ciclo y las señales vistas en las últimas 24h.
func journalStatus(ctx context.Context, store *storage.SQLiteStorage, now time.Time) (notify.JournalStatus, error) {
	var j notify.JournalStatus

	last, ok, err := store.LastCycle(ctx)
	if err != nil {
		return j, err
	}
	if ok {
		j.HasCycle = true
		j.LastCycleAt = last.FetchedAt
		j.LastSource = last.Source
		j.LastTotal = last.Total
		j.LastActionable = last.Actionable
		j.LastBestEdge = last.BestEdge
	}

	history, err := store.GetHistory(ctx, now.Add(-24*time.Hour), now)
	if err != nil {
		return j, err
	}
	j.SeenLast24h = len(history)
	if len(history) > 0 {
		// ordenado por edge desc
		j.TopQuestion24h = history[0].Question
		j.TopEdge24h = history[0].EdgePct
	}
	return j, nil
}
