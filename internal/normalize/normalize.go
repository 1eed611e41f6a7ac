// Package normalize convierte los payloads heterogéneos de los upstreams en
// domain.MarketSignal con un único sistema de unidades:
//   - probabilidades en porcentaje 0–100
//   - volumen y liquidez en unidades crudas de moneda (sufijos K/M/B expandidos)
//
// Es una función pura y total: nunca falla para el lote completo. Un registro sin
// pregunta o sin precio parseable se descarta, no se rellena con defaults.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/google/uuid"
)

// Shape identifica el formato del payload crudo.
type Shape int

const (
	ShapePrimary   Shape = iota // backend GET /api/opportunities
	ShapeSecondary              // agregador público (Gamma GET /markets)
)

func (s Shape) String() string {
	if s == ShapeSecondary {
		return "secondary"
	}
	return "primary"
}

const (
	polymarketEventURL = "https://polymarket.com/event/"
	defaultMarketLabel = "Polymarket"

	// Umbrales para derivar el riesgo de los registros del agregador.
	lowRiskMinLiquidity    = 100_000.0
	lowRiskMaxSpread       = 0.02
	mediumRiskMinLiquidity = 10_000.0

	// Cambio diario mínimo (en fracción de dólar) para marcar tendencia.
	trendThreshold = 0.005
)

// Result es el resultado de normalizar un payload.
type Result struct {
	Signals []domain.MarketSignal
	Dropped int // registros descartados por malformados
}

// Normalize convierte el payload en señales canónicas. Ver NormalizeResult.
func Normalize(payload []byte, shape Shape) []domain.MarketSignal {
	return NormalizeResult(payload, shape).Signals
}

// NormalizeResult es Normalize pero además informa cuántos registros se descartaron.
func NormalizeResult(payload []byte, shape Shape) Result {
	records := splitRecords(payload, shape)

	var res Result
	seen := make(map[string]struct{}, len(records))
	for _, raw := range records {
		var (
			sig domain.MarketSignal
			ok  bool
		)
		switch shape {
		case ShapeSecondary:
			sig, ok = normalizeSecondary(raw)
		default:
			sig, ok = normalizePrimary(raw)
		}
		if !ok {
			res.Dropped++
			continue
		}
		if _, dup := seen[sig.ID]; dup {
			res.Dropped++
			continue
		}
		seen[sig.ID] = struct{}{}
		res.Signals = append(res.Signals, sig)
	}
	return res
}

// splitRecords separa el payload en registros crudos sin decodificarlos.
// Un payload que no es un array (ni un objeto que envuelve uno) devuelve nil.
func splitRecords(payload []byte, shape Shape) []json.RawMessage {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil
	}

	var records []json.RawMessage
	if payload[0] == '[' {
		if err := json.Unmarshal(payload, &records); err != nil {
			return nil
		}
		return records
	}

	if payload[0] == '{' && shape == ShapePrimary {
		var env primaryEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil
		}
		for _, inner := range []json.RawMessage{env.Opportunities, env.Data} {
			if len(inner) > 0 && json.Unmarshal(inner, &records) == nil {
				return records
			}
		}
	}
	return nil
}

// normalizePrimary mapea un registro del backend. Requiere pregunta y precio cotizado.
func normalizePrimary(raw json.RawMessage) (domain.MarketSignal, bool) {
	var r primaryRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.MarketSignal{}, false
	}

	question := r.Question.String()
	if question == "" {
		return domain.MarketSignal{}, false
	}

	scale := percentScale(r.QuotedProbability, r.MarketPrice, r.ModelProbability, r.TrueProbability)
	quoted, ok := firstProbability(scale, r.QuotedProbability, r.MarketPrice)
	if !ok {
		return domain.MarketSignal{}, false
	}
	model, ok := firstProbability(scale, r.ModelProbability, r.TrueProbability)
	if !ok {
		model = quoted
	}

	risk := r.RiskTier.String()
	if risk == "" {
		risk = r.Risk.String()
	}
	url := r.PlatformURL.String()
	if url == "" {
		url = r.URL.String()
	}
	market := r.Market.String()
	if market == "" {
		market = defaultMarketLabel
	}

	sig := domain.MarketSignal{
		ID:                stableID(string(r.ID), question),
		Market:            market,
		Question:          question,
		PlatformURL:       url,
		QuotedProbability: quoted,
		ModelProbability:  model,
		Volume24h:         r.Volume24h.Amount(),
		VolumeTotal:       r.VolumeTotal.Amount(),
		Liquidity:         r.Liquidity.Amount(),
		Trend:             domain.ParseTrend(r.Trend.String()),
		RiskTier:          domain.ParseRiskTier(risk),
		Spread:            r.Spread.Amount(),
		Volatility:        r.Volatility.Amount(),
		IsArbitrage:       bool(r.IsArbitrage),
		SignalStrength:    clampStrength(r.SignalStrength),
	}
	if sig.IsArbitrage {
		sig.ArbitrageNote = string(r.ArbitrageNote)
	}
	finish(&sig)
	return sig, true
}

// normalizeSecondary mapea un mercado de Gamma. El agregador no trae estimación de
// probabilidad real, así que el modelo coincide con la cotización (edge 0).
func normalizeSecondary(raw json.RawMessage) (domain.MarketSignal, bool) {
	var r gammaRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.MarketSignal{}, false
	}

	question := r.Question.String()
	if question == "" {
		return domain.MarketSignal{}, false
	}

	prices := parseOutcomePrices(r.OutcomePrices)
	var (
		quoted float64
		ok     bool
	)
	if len(prices) > 0 {
		quoted, ok = toPercent(prices[0], false)
	}
	if !ok {
		quoted, ok = r.LastTradePrice.Probability()
	}
	if !ok {
		return domain.MarketSignal{}, false
	}

	id := r.ConditionID.String()
	if id == "" {
		id = string(r.ID)
	}

	market := defaultMarketLabel
	slug := r.Slug.String()
	if ev, ok := firstEvent(r.Events); ok {
		if t := ev.Title.String(); t != "" {
			market = t
		}
		if sl := ev.Slug.String(); sl != "" {
			slug = sl
		}
	}
	url := ""
	if slug != "" {
		url = polymarketEventURL + slug
	}

	change, _ := r.OneDayPriceChange.Float()
	liquidity := r.Liquidity.Amount()
	spread := r.Spread.Amount()

	sig := domain.MarketSignal{
		ID:                stableID(id, question),
		Market:            market,
		Question:          question,
		PlatformURL:       url,
		QuotedProbability: quoted,
		ModelProbability:  quoted,
		Volume24h:         r.Volume24hr.Amount(),
		VolumeTotal:       r.Volume.Amount(),
		Liquidity:         liquidity,
		Trend:             trendFromChange(change),
		RiskTier:          riskFromBook(liquidity, spread),
		Spread:            spread,
		Volatility:        math.Abs(change) * 100,
	}

	// YES + NO por debajo de $1: ambos lados infravalorados a la vez.
	if len(prices) >= 2 && prices[0] > 0 && prices[1] > 0 {
		if gap := domain.SpreadTotal(prices[0], prices[1]); gap < 0 {
			sig.IsArbitrage = true
			sig.ArbitrageNote = fmt.Sprintf("YES+NO = $%.3f < $1.00", prices[0]+prices[1])
		}
	}

	finish(&sig)
	return sig, true
}

// firstEvent devuelve el primer evento si events es un array de objetos.
func firstEvent(raw json.RawMessage) (gammaEvent, bool) {
	var events []gammaEvent
	if len(raw) == 0 || json.Unmarshal(raw, &events) != nil || len(events) == 0 {
		return gammaEvent{}, false
	}
	return events[0], true
}

// finish calcula los campos derivados que deben cumplir los invariantes.
func finish(sig *domain.MarketSignal) {
	sig.EdgePct = domain.EdgePct(sig.ModelProbability, sig.QuotedProbability)
	sig.KellyFraction = domain.KellyFraction(sig.EdgePct/100, sig.ModelProbability/100)
	if !sig.IsArbitrage {
		sig.ArbitrageNote = ""
	}
}

// firstProbability devuelve la primera probabilidad parseable de la lista.
func firstProbability(pctScale bool, candidates ...flexNumber) (float64, bool) {
	for _, c := range candidates {
		if p, ok := c.probabilityIn(pctScale); ok {
			return p, true
		}
	}
	return 0, false
}

// parseOutcomePrices acepta tanto `"[\"0.6\",\"0.4\"]"` como `["0.6","0.4"]` o `[0.6,0.4]`.
func parseOutcomePrices(raw json.RawMessage) []float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil
		}
		raw = []byte(inner)
	}

	var nums []flexNumber
	if err := json.Unmarshal(raw, &nums); err != nil {
		return nil
	}
	out := make([]float64, 0, len(nums))
	for _, n := range nums {
		v, ok := n.Float()
		if !ok {
			return nil
		}
		out = append(out, v)
	}
	return out
}

// stableID usa el ID del upstream o, si falta, un UUID v5 derivado de la pregunta
// para que el ID siga siendo estable entre polls.
func stableID(id, question string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(question)).String()
}

func clampStrength(f flexNumber) float64 {
	v, ok := f.Float()
	if !ok || v < 0 {
		return 0
	}
	return math.Min(v, 100)
}

func trendFromChange(change float64) domain.Trend {
	switch {
	case change > trendThreshold:
		return domain.TrendUp
	case change < -trendThreshold:
		return domain.TrendDown
	default:
		return domain.TrendNeutral
	}
}

func riskFromBook(liquidity, spread float64) domain.RiskTier {
	switch {
	case liquidity >= lowRiskMinLiquidity && spread <= lowRiskMaxSpread:
		return domain.RiskLow
	case liquidity >= mediumRiskMinLiquidity:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}
