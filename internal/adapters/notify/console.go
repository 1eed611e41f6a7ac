package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/alejandrodnm/blackedge/internal/shorthorizon"
	"github.com/olekukonko/tablewriter"
)

const compactTop = 4

// Console implementa ports.Notifier.
type Console struct {
	out    io.Writer
	table  bool
	detail bool
	now    func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table, detail bool) *Console {
	return NewConsoleWriter(os.Stdout, table, detail)
}

// NewConsoleWriter crea un notificador sobre cualquier writer (tests).
func NewConsoleWriter(w io.Writer, table, detail bool) *Console {
	return &Console{out: w, table: table, detail: detail, now: time.Now}
}

// Notify imprime la lista puntuada en el modo configurado, con la etiqueta de frescura.
func (c *Console) Notify(_ context.Context, source domain.Source, ranked []domain.ScoredSignal) error {
	ts := c.now().Format("15:04:05")
	if len(ranked) == 0 {
		fmt.Fprintf(c.out, "[%s]%s no opportunities found\n", ts, freshnessTag(source))
		return nil
	}

	if c.table {
		c.printFull(ts, source, ranked)
	} else {
		c.printCompact(ts, source, ranked)
	}

	if c.detail {
		c.printDetail(ranked)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(ts string, source domain.Source, ranked []domain.ScoredSignal) {
	counts := countByRecommendation(ranked)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s]%s %d mkts → ARB:%d SB:%d BUY:%d",
		ts, freshnessTag(source), len(ranked),
		counts[domain.RecArbitrage], counts[domain.RecStrongBuy], counts[domain.RecBuy])

	shown := 0
	for _, sc := range ranked {
		if shown >= compactTop || !actionable(sc.Recommendation) {
			break
		}
		s := sc.Signal
		fmt.Fprintf(&sb, " | %s %s edge%+.1f kelly%.1f%%",
			sc.Recommendation, compactName(domain.TruncateQuestion(s.Question, s.ID, 60), 25),
			s.EdgePct, s.KellyFraction*100)
		shown++
	}
	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime la tabla completa.
func (c *Console) printFull(ts string, source domain.Source, ranked []domain.ScoredSignal) {
	counts := countByRecommendation(ranked)
	fmt.Fprintf(c.out, "\n[%s]%s %d signals | ARB:%d SB:%d BUY:%d HOLD:%d NEUTRAL:%d AVOID:%d\n",
		ts, freshnessTag(source), len(ranked),
		counts[domain.RecArbitrage], counts[domain.RecStrongBuy], counts[domain.RecBuy],
		counts[domain.RecHold], counts[domain.RecNeutral], counts[domain.RecAvoid])

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Rec", "Market", "Quoted", "Model", "Edge", "Kelly", "Vol24h", "Risk", "Trend")
	for i, sc := range ranked {
		s := sc.Signal
		table.Append(
			fmt.Sprintf("%d", i+1),
			sc.Recommendation.String(),
			domain.TruncateQuestion(s.Question, s.ID, 40),
			fmt.Sprintf("%.1f%%", s.QuotedProbability),
			fmt.Sprintf("%.1f%%", s.ModelProbability),
			fmt.Sprintf("%+.2f", s.EdgePct),
			fmt.Sprintf("%.1f%%", s.KellyFraction*100),
			volumeLabel(s.Volume24h),
			string(s.RiskTier),
			trendIcon(s.Trend),
		)
	}
	table.Render()

	fmt.Fprintln(c.out, "  Edge = model - quoted (pts) | Kelly = quarter-Kelly, tope 10% del bankroll")
}

// printDetail imprime el desglose de las 3 primeras.
func (c *Console) printDetail(ranked []domain.ScoredSignal) {
	top := ranked
	if len(top) > 3 {
		top = top[:3]
	}

	fmt.Fprintln(c.out, "=== TOP SIGNALS ===")
	for i, sc := range top {
		s := sc.Signal
		fmt.Fprintf(c.out, "\n--- #%d: %s  [%s] ---\n", i+1,
			domain.TruncateQuestion(s.Question, s.ID, 60), sc.Recommendation)
		fmt.Fprintf(c.out, "  ID:  %s\n", s.ID)
		if s.PlatformURL != "" {
			fmt.Fprintf(c.out, "  URL: %s\n", s.PlatformURL)
		}
		fmt.Fprintf(c.out, "  quoted=%.2f%%  model=%.2f%%  edge=%+.2f pts\n",
			s.QuotedProbability, s.ModelProbability, s.EdgePct)
		fmt.Fprintf(c.out, "  strength=%.0f  vol24h=%s  liq=%s  spread=%.4f\n",
			s.SignalStrength, volumeLabel(s.Volume24h), volumeLabel(s.Liquidity), s.Spread)
		fmt.Fprintf(c.out, "  >>> SUGGESTED STAKE: %.2f%% of bankroll\n", s.KellyFraction*100)
		if s.IsArbitrage {
			fmt.Fprintf(c.out, "  >>> ARBITRAGE: %s\n", s.ArbitrageNote)
		}
	}
	fmt.Fprintln(c.out)
}

// PrintShortHorizon imprime los mercados de 5 minutos con su cuenta atrás.
func (c *Console) PrintShortHorizon(feed domain.ShortHorizonFeed, live []shorthorizon.Countdown) {
	if len(live) == 0 {
		fmt.Fprintln(c.out, "  No short-horizon markets open.")
		return
	}

	if feed.BTCPrice > 0 {
		fmt.Fprintf(c.out, "\n  BTC $%.2f\n", feed.BTCPrice)
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Asset", "Market", "Up", "Down", "Model", "Conf", "Left")
	for _, cd := range live {
		model, conf := "-", "-"
		if cd.HasSignal {
			model = trendIcon(cd.Signal.Direction)
			conf = fmt.Sprintf("%.0f%%", cd.Signal.Confidence)
		}
		table.Append(
			cd.Market.Asset,
			domain.TruncateQuestion(cd.Market.Question, cd.Market.ID, 36),
			fmt.Sprintf("%.1f", cd.Market.UpPrice),
			fmt.Sprintf("%.1f", cd.Market.DownPrice),
			model,
			conf,
			countdownLabel(cd.SecondsLeft),
		)
	}
	table.Render()
}

// PrintTrade imprime el resultado de un intento de ejecución.
func (c *Console) PrintTrade(ex domain.TradeExecution) {
	req := ex.Request
	fmt.Fprintf(c.out, "\n  TRADE %s  %s %s $%s\n", ex.ID, req.MarketID, req.Outcome, req.Amount.StringFixed(2))
	fmt.Fprintf(c.out, "  State: %s\n", ex.State)
	if ex.TxHash != "" {
		fmt.Fprintf(c.out, "  Tx:    %s\n", ex.TxHash)
	}

	switch {
	case ex.IsSuccess():
		fmt.Fprintln(c.out, "  >>> CONFIRMED on-chain")
	case ex.Err != nil && ex.Err.Kind == domain.KindInsufficientBalance:
		fmt.Fprintf(c.out, "  >>> INSUFFICIENT BALANCE: %s (short $%s)\n",
			ex.Err.Message, ex.Err.Shortfall().StringFixed(2))
	case ex.Err != nil:
		fmt.Fprintf(c.out, "  >>> FAILED [%s]: %s\n", ex.Err.Kind, ex.Err.Message)
	}
	fmt.Fprintln(c.out)
}

// StatusInput reúne lo que PrintStatus necesita de los feeds auxiliares.
type StatusInput struct {
	BackendStatus  string
	BackendVersion string
	UptimeSeconds  float64

	TotalSignals int
	Wins         int
	Losses       int
	WinRate      float64
	ROI          float64

	TrialSecondsLeft int
	Upgraded         bool

	Journal *JournalStatus // nil sin SQLite (dry-run)

	Errors []string
}

// JournalStatus resume lo que hay en el diario local.
type JournalStatus struct {
	HasCycle       bool
	LastCycleAt    time.Time
	LastSource     domain.Source
	LastTotal      int
	LastActionable int
	LastBestEdge   float64
	SeenLast24h    int
	TopQuestion24h string
	TopEdge24h     float64
}

// PrintStatus imprime el estado del backend, el histórico del modelo y la sesión.
func (c *Console) PrintStatus(in StatusInput) {
	fmt.Fprintf(c.out, "\n  --- BACKEND ---\n")
	if in.BackendStatus == "" {
		fmt.Fprintf(c.out, "  Status:   unreachable\n")
	} else {
		fmt.Fprintf(c.out, "  Status:   %s (v%s, up %s)\n", in.BackendStatus, in.BackendVersion,
			(time.Duration(in.UptimeSeconds) * time.Second).String())
	}

	fmt.Fprintf(c.out, "\n  --- TRACK RECORD ---\n")
	fmt.Fprintf(c.out, "  Signals:  %d (%d W / %d L)\n", in.TotalSignals, in.Wins, in.Losses)
	fmt.Fprintf(c.out, "  Win rate: %.1f%%\n", in.WinRate)
	fmt.Fprintf(c.out, "  ROI:      %.1f%%\n", in.ROI)

	fmt.Fprintf(c.out, "\n  --- SESSION ---\n")
	if in.Upgraded {
		fmt.Fprintf(c.out, "  Trial:    subscribed\n")
	} else if in.TrialSecondsLeft > 0 {
		fmt.Fprintf(c.out, "  Trial:    %ds left\n", in.TrialSecondsLeft)
	} else {
		fmt.Fprintf(c.out, "  Trial:    expired (execution disabled)\n")
	}

	if j := in.Journal; j != nil {
		fmt.Fprintf(c.out, "\n  --- JOURNAL ---\n")
		if j.HasCycle {
			fmt.Fprintf(c.out, "  Last:     %s %s %d mkts, %d actionable, best edge %+.1f\n",
				j.LastCycleAt.Local().Format("2006-01-02 15:04:05"), freshnessTag(j.LastSource),
				j.LastTotal, j.LastActionable, j.LastBestEdge)
		} else {
			fmt.Fprintf(c.out, "  Last:     no cycles recorded\n")
		}
		fmt.Fprintf(c.out, "  24h:      %d signals seen", j.SeenLast24h)
		if j.TopQuestion24h != "" {
			fmt.Fprintf(c.out, ", top %q edge %+.1f", domain.TruncateQuestion(j.TopQuestion24h, "", 40), j.TopEdge24h)
		}
		fmt.Fprintln(c.out)
	}

	for _, e := range in.Errors {
		fmt.Fprintf(c.out, "  !! %s\n", e)
	}
	fmt.Fprintln(c.out)
}

// --- helpers ---

func freshnessTag(source domain.Source) string {
	switch source {
	case domain.SourcePrimary:
		return "[LIVE]"
	case domain.SourceSecondary:
		return "[FALLBACK]"
	case domain.SourceStale:
		return "[STALE]"
	default:
		return ""
	}
}

func actionable(r domain.Recommendation) bool {
	return r == domain.RecArbitrage || r == domain.RecStrongBuy || r == domain.RecBuy
}

func countByRecommendation(ranked []domain.ScoredSignal) map[domain.Recommendation]int {
	out := make(map[domain.Recommendation]int, 6)
	for _, sc := range ranked {
		out[sc.Recommendation]++
	}
	return out
}

func trendIcon(t domain.Trend) string {
	switch t {
	case domain.TrendUp:
		return "▲"
	case domain.TrendDown:
		return "▼"
	default:
		return "·"
	}
}

func volumeLabel(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("$%.1fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("$%.0fk", v/1_000)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

func countdownLabel(secs int) string {
	if secs <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func compactName(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	cut := string(r[:maxLen])
	if idx := strings.LastIndex(cut, " "); idx > len(cut)/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
