package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/blackedge/config"
)

type flags struct {
	configPath string
	once       bool
	status     bool
	dryRun     bool
	verbose    bool
	logFormat  string
	table      bool
	detail     bool
	short      bool
	subscribed bool

	tradeID string
	outcome string
	amount  string
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "config.yaml", "path to config file")
	flag.BoolVar(&f.once, "once", false, "run one poll cycle and exit")
	flag.BoolVar(&f.status, "status", false, "print backend health, track record and short-horizon markets, then exit")
	flag.BoolVar(&f.dryRun, "dry-run", false, "do not persist to SQLite nor publish to Redis")
	flag.BoolVar(&f.verbose, "verbose", false, "set log level to debug")
	flag.StringVar(&f.logFormat, "format", "", "log format: text|json (overrides config)")
	flag.BoolVar(&f.table, "table", false, "print full table (default: compact 1-line)")
	flag.BoolVar(&f.detail, "detail", false, "print breakdown of the top 3 signals")
	flag.BoolVar(&f.short, "short", false, "print the short-horizon countdown on every poll")
	flag.BoolVar(&f.subscribed, "subscribed", false, "active subscription: the trial window does not limit trading")
	flag.StringVar(&f.tradeID, "trade", "", "signal ID to trade (requires -outcome and -amount)")
	flag.StringVar(&f.outcome, "outcome", "YES", "outcome to buy: YES|NO")
	flag.StringVar(&f.amount, "amount", "", "trade amount in collateral units (e.g. 25.50)")
	flag.Parse()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", f.configPath)
		os.Exit(1)
	}

	if f.verbose {
		cfg.Log.Level = "debug"
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.subscribed {
		cfg.Trial.Subscribed = true
	}
	setupLogger(cfg.Log)

	slog.Info("blackedge starting",
		"config", f.configPath,
		"api", cfg.Feeds.APIBase,
		"interval", cfg.ScanInterval(),
		"dry_run", f.dryRun,
		"once", f.once,
		"trade", f.tradeID,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := newApp(ctx, cfg, f)
	if err != nil {
		slog.Error("failed to start", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	switch {
	case f.status:
		err = app.runStatus(ctx)
	case f.tradeID != "":
		err = app.runTrade(ctx, f.tradeID, f.outcome, f.amount)
	case f.once:
		app.scanner.RunOnce(ctx)
	default:
		err = app.run(ctx)
	}
	if err != nil {
		slog.Error("blackedge exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("blackedge stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
