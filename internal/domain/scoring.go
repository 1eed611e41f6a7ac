package domain

import (
	"math"
	"sort"
)

const (
	// MaxKellyFraction es el tope de stake sugerido (10% del bankroll).
	MaxKellyFraction = 0.10
	// KellyMultiplier aplica quarter-Kelly para reducir la varianza.
	KellyMultiplier = 0.25

	strongBuyMinEdge     = 5.0
	strongBuyMinStrength = 70.0
	strongBuyMinVolume   = 50_000.0
	buyMinEdge           = 2.0
	buyMinStrength       = 50.0
	neutralMaxEdge       = 1.0
	holdMaxEdge          = 2.0
	holdMinStrength      = 30.0
)

// Recommendation es la etiqueta de acción asignada a una señal.
type Recommendation int

const (
	RecArbitrage Recommendation = iota
	RecStrongBuy
	RecBuy
	RecHold
	RecNeutral
	RecAvoid
)

func (r Recommendation) String() string {
	switch r {
	case RecArbitrage:
		return "ARBITRAGE"
	case RecStrongBuy:
		return "STRONG_BUY"
	case RecBuy:
		return "BUY"
	case RecHold:
		return "HOLD"
	case RecNeutral:
		return "NEUTRAL"
	default:
		return "AVOID"
	}
}

// Color devuelve el color de display asociado a la recomendación.
func (r Recommendation) Color() string {
	switch r {
	case RecArbitrage:
		return "purple"
	case RecStrongBuy:
		return "green"
	case RecBuy:
		return "lime"
	case RecHold:
		return "yellow"
	case RecNeutral:
		return "gray"
	default:
		return "red"
	}
}

// Score asigna la recomendación a una señal. El orden importa: gana la primera regla que aplica.
//
//  1. arbitraje                                       → ARBITRAGE
//  2. edge > 5, strength > 70, vol24h > 50k, risk low → STRONG_BUY
//  3. edge > 2, strength > 50                         → BUY
//  4. 0 <= edge < 1                                   → NEUTRAL
//  5. 1 <= edge < 2, strength > 30                    → HOLD
//  6. resto                                           → AVOID
func Score(s MarketSignal) Recommendation {
	edge := s.EdgePct
	switch {
	case s.IsArbitrage:
		return RecArbitrage
	case edge > strongBuyMinEdge && s.SignalStrength > strongBuyMinStrength &&
		s.Volume24h > strongBuyMinVolume && s.RiskTier == RiskLow:
		return RecStrongBuy
	case edge > buyMinEdge && s.SignalStrength > buyMinStrength:
		return RecBuy
	case edge >= 0 && edge < neutralMaxEdge:
		return RecNeutral
	case edge >= neutralMaxEdge && edge < holdMaxEdge && s.SignalStrength > holdMinStrength:
		return RecHold
	default:
		return RecAvoid
	}
}

// KellyFraction calcula el stake sugerido con quarter-Kelly y tope del 10%.
//
// Fórmula:
//
//	full       = edge / (1 - p)
//	fractional = full × 0.25
//	final      = min(fractional, 0.10)
//
//   - edge: ventaja fraccional (0.08 = 8%)
//   - p: probabilidad real en (0, 1)
//
// Devuelve 0 si edge <= 0 o p está fuera de (0, 1). Nunca divide por cero.
func KellyFraction(edge, trueProbability float64) float64 {
	if math.IsNaN(edge) || math.IsNaN(trueProbability) {
		return 0
	}
	if edge <= 0 || trueProbability <= 0 || trueProbability >= 1 {
		return 0
	}
	full := edge / (1 - trueProbability)
	return ClampKelly(full * KellyMultiplier)
}

// ClampKelly fuerza una fracción al rango [0, MaxKellyFraction].
func ClampKelly(f float64) float64 {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	return math.Min(f, MaxKellyFraction)
}

// EdgePct devuelve la ventaja en puntos porcentuales (mismas unidades que las probabilidades).
func EdgePct(modelProbability, quotedProbability float64) float64 {
	return modelProbability - quotedProbability
}

// SpreadTotal calcula el spread total de un mercado binario en fracción de dólar.
// Valor negativo = hay arbitraje implícito (YES + NO cuestan menos de $1).
func SpreadTotal(yesPrice, noPrice float64) float64 {
	return yesPrice + noPrice - 1.0
}

// ScoredSignal es una señal con su recomendación ya calculada.
type ScoredSignal struct {
	Signal         MarketSignal
	Recommendation Recommendation
}

// Rank puntúa y ordena las señales: primero por recomendación, luego edge desc, luego ID.
// El slice de entrada no se modifica.
func Rank(signals []MarketSignal) []ScoredSignal {
	out := make([]ScoredSignal, len(signals))
	for i, s := range signals {
		out[i] = ScoredSignal{Signal: s, Recommendation: Score(s)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Recommendation != b.Recommendation {
			return a.Recommendation < b.Recommendation
		}
		if a.Signal.EdgePct != b.Signal.EdgePct {
			return a.Signal.EdgePct > b.Signal.EdgePct
		}
		return a.Signal.ID < b.Signal.ID
	})
	return out
}
