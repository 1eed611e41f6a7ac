package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- KellyFraction ---

func TestKellyFraction_ReferenceCase(t *testing.T) {
	// edge=0.08, p=0.6 → full=0.2, fractional=0.05, sin tope
	assert.InDelta(t, 0.05, KellyFraction(0.08, 0.6), 1e-9)
}

func TestKellyFraction_Capped(t *testing.T) {
	// edge=0.30, p=0.5 → full=0.6, fractional=0.15 → tope 0.10
	assert.Equal(t, MaxKellyFraction, KellyFraction(0.30, 0.5))
}

func TestKellyFraction_InvalidInputs(t *testing.T) {
	cases := []struct {
		name string
		edge float64
		p    float64
	}{
		{"zero edge", 0, 0.6},
		{"negative edge", -0.05, 0.6},
		{"p zero", 0.05, 0},
		{"p one", 0.05, 1},
		{"p above one", 0.05, 1.2},
		{"p negative", 0.05, -0.1},
		{"nan edge", math.NaN(), 0.5},
		{"nan p", 0.05, math.NaN()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, 0.0, KellyFraction(tc.edge, tc.p))
		})
	}
}

func TestKellyFraction_AlwaysInRange(t *testing.T) {
	// Barrido incluyendo p → 1: nunca sale de [0, 0.10]
	for edge := -0.5; edge <= 1.0; edge += 0.01 {
		for _, p := range []float64{0.0001, 0.1, 0.5, 0.9, 0.999, 0.999999, 1 - 1e-12} {
			k := KellyFraction(edge, p)
			require.GreaterOrEqual(t, k, 0.0, "edge=%v p=%v", edge, p)
			require.LessOrEqual(t, k, MaxKellyFraction, "edge=%v p=%v", edge, p)
		}
	}
}

func TestClampKelly(t *testing.T) {
	assert.Equal(t, 0.0, ClampKelly(-1))
	assert.Equal(t, 0.0, ClampKelly(math.NaN()))
	assert.Equal(t, 0.04, ClampKelly(0.04))
	assert.Equal(t, MaxKellyFraction, ClampKelly(math.Inf(1)))
}

// --- Score ---

func baseSignal() MarketSignal {
	return MarketSignal{
		ID:             "m1",
		Question:       "Will X happen?",
		Volume24h:      2_400_000,
		RiskTier:       RiskLow,
		SignalStrength: 72,
	}
}

func TestScore_StrongBuy(t *testing.T) {
	s := baseSignal()
	s.EdgePct = 6.0
	assert.Equal(t, RecStrongBuy, Score(s))
}

func TestScore_NegativeEdgeIsAvoid(t *testing.T) {
	s := baseSignal()
	s.EdgePct = -3.0
	assert.Equal(t, RecAvoid, Score(s))

	s.SignalStrength = 100
	s.RiskTier = RiskHigh
	assert.Equal(t, RecAvoid, Score(s))
}

func TestScore_ArbitrageOverridesEverything(t *testing.T) {
	for _, edge := range []float64{-10, 0, 0.5, 1.5, 3, 8} {
		s := baseSignal()
		s.EdgePct = edge
		s.IsArbitrage = true
		assert.Equal(t, RecArbitrage, Score(s), "edge=%v", edge)
	}
}

func TestScore_DecisionOrder(t *testing.T) {
	cases := []struct {
		name     string
		edge     float64
		strength float64
		volume   float64
		risk     RiskTier
		want     Recommendation
	}{
		{"strong buy needs low risk", 6, 72, 2_400_000, RiskMedium, RecBuy},
		{"strong buy needs volume", 6, 72, 50_000, RiskLow, RecBuy},
		{"strong buy needs strength > 70", 6, 70, 2_400_000, RiskLow, RecBuy},
		{"buy", 2.5, 51, 0, RiskHigh, RecBuy},
		{"edge exactly two falls through", 2.0, 80, 0, RiskHigh, RecAvoid},
		{"weak strength high edge", 4, 40, 0, RiskHigh, RecAvoid},
		{"neutral zero", 0, 0, 0, RiskHigh, RecNeutral},
		{"neutral below one", 0.99, 90, 0, RiskLow, RecNeutral},
		{"hold", 1.0, 31, 0, RiskHigh, RecHold},
		{"hold upper", 1.99, 31, 0, RiskHigh, RecHold},
		{"hold needs strength", 1.5, 30, 0, RiskHigh, RecAvoid},
		{"tiny negative", -0.01, 99, 1e9, RiskLow, RecAvoid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := MarketSignal{
				EdgePct:        tc.edge,
				SignalStrength: tc.strength,
				Volume24h:      tc.volume,
				RiskTier:       tc.risk,
			}
			assert.Equal(t, tc.want, Score(s))
		})
	}
}

func TestRecommendation_StringAndColor(t *testing.T) {
	assert.Equal(t, "STRONG_BUY", RecStrongBuy.String())
	assert.Equal(t, "AVOID", RecAvoid.String())
	assert.Equal(t, "purple", RecArbitrage.Color())
	assert.Equal(t, "red", RecAvoid.Color())
}

// --- Rank ---

func TestRank_OrdersByRecommendationThenEdge(t *testing.T) {
	signals := []MarketSignal{
		{ID: "avoid", EdgePct: -2},
		{ID: "buy-low", EdgePct: 2.5, SignalStrength: 60},
		{ID: "arb", EdgePct: 0, IsArbitrage: true},
		{ID: "buy-high", EdgePct: 4, SignalStrength: 60},
		{ID: "neutral", EdgePct: 0.3},
	}

	ranked := Rank(signals)
	require.Len(t, ranked, 5)

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.Signal.ID
	}
	assert.Equal(t, []string{"arb", "buy-high", "buy-low", "neutral", "avoid"}, ids)
	assert.Equal(t, "avoid", signals[0].ID, "el input no se reordena")
}

func TestSpreadTotal(t *testing.T) {
	assert.InDelta(t, 0.01, SpreadTotal(0.72, 0.29), 1e-9)
	assert.Less(t, SpreadTotal(0.48, 0.49), 0.0)
}

func TestEdgePct(t *testing.T) {
	assert.InDelta(t, 8.0, EdgePct(68, 60), 1e-9)
	assert.InDelta(t, -3.0, EdgePct(57, 60), 1e-9)
}
