package domain

import "time"

// Trend es la dirección reciente del precio cotizado.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// ParseTrend acepta las variantes habituales de los feeds; cualquier otra cosa es neutral.
func ParseTrend(s string) Trend {
	switch s {
	case "up", "UP", "Up", "bullish", "rising":
		return TrendUp
	case "down", "DOWN", "Down", "bearish", "falling":
		return TrendDown
	default:
		return TrendNeutral
	}
}

// RiskTier clasifica el riesgo de ejecución de una oportunidad.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// ParseRiskTier normaliza el tier; un valor desconocido se trata como high.
func ParseRiskTier(s string) RiskTier {
	switch s {
	case "low", "LOW", "Low":
		return RiskLow
	case "medium", "MEDIUM", "Medium", "med":
		return RiskMedium
	default:
		return RiskHigh
	}
}

// MarketSignal es una oportunidad operable en un instante dado.
// Se crea de cero en cada ciclo de polling y nunca se modifica después.
type MarketSignal struct {
	ID          string // estable entre polls
	Market      string
	Question    string
	PlatformURL string

	QuotedProbability float64 // 0–100, implícita en el mercado
	ModelProbability  float64 // 0–100, estimación "real" del upstream
	EdgePct           float64 // ModelProbability - QuotedProbability

	Volume24h   float64
	VolumeTotal float64
	Liquidity   float64

	Trend          Trend
	RiskTier       RiskTier
	Spread         float64 // >= 0
	KellyFraction  float64 // siempre en [0, MaxKellyFraction]
	Volatility     float64 // >= 0
	IsArbitrage    bool
	ArbitrageNote  string // vacío salvo IsArbitrage
	SignalStrength float64 // 0–100
}

// Source indica de dónde salió la lista publicada en un ciclo.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
	SourceStale     Source = "stale"
)

// Snapshot es la lista completa de señales publicada por un ciclo.
// Es inmutable: los consumidores la leen entera o no la leen.
type Snapshot struct {
	Seq       uint64
	Signals   []MarketSignal
	Source    Source
	FetchedAt time.Time
}

// Len devuelve el número de señales del snapshot (0 si es nil).
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Signals)
}

// Find busca una señal por ID.
func (s *Snapshot) Find(id string) (MarketSignal, bool) {
	if s == nil {
		return MarketSignal{}, false
	}
	for _, sig := range s.Signals {
		if sig.ID == id {
			return sig, true
		}
	}
	return MarketSignal{}, false
}

// TruncateQuestion devuelve la pregunta truncada a maxLen caracteres (runas, no bytes).
// Si la pregunta está vacía usa el ID como fallback.
func TruncateQuestion(question, id string, maxLen int) string {
	q := question
	if q == "" {
		q = truncateRunes(id, 23)
	}
	return truncateRunes(q, maxLen)
}

// truncateRunes corta s a maxLen runas con "..." al final.
// Con maxLen <= 3 no cabe la elipsis y se corta en seco.
func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
