package normalize

import "encoding/json"

// DTOs crudos de los upstreams. Solo se usan dentro de este paquete.

// primaryRecord es un item de GET /api/opportunities del backend.
// Algunos campos tienen alias porque el backend ha ido renombrándolos.
type primaryRecord struct {
	ID          flexID     `json:"id"`
	Market      flexString `json:"market"`
	Question    flexString `json:"question"`
	PlatformURL flexString `json:"platformUrl"`
	URL         flexString `json:"url"`

	QuotedProbability flexNumber `json:"quotedProbability"`
	MarketPrice       flexNumber `json:"marketPrice"`
	ModelProbability  flexNumber `json:"modelProbability"`
	TrueProbability   flexNumber `json:"trueProbability"`

	Volume24h   flexNumber `json:"volume24h"`
	VolumeTotal flexNumber `json:"volumeTotal"`
	Liquidity   flexNumber `json:"liquidity"`

	Trend          flexString `json:"trend"`
	Risk           flexString `json:"risk"`
	RiskTier       flexString `json:"riskTier"`
	Spread         flexNumber `json:"spread"`
	Volatility     flexNumber `json:"volatility"`
	IsArbitrage    flexBool   `json:"isArbitrage"`
	ArbitrageNote  flexString `json:"arbitrageNote"`
	SignalStrength flexNumber `json:"signalStrength"`
}

// primaryEnvelope cubre las respuestas que envuelven la lista en un objeto.
type primaryEnvelope struct {
	Opportunities json.RawMessage `json:"opportunities"`
	Data          json.RawMessage `json:"data"`
}

// gammaRecord es un item de GET /markets de la API Gamma.
// Gamma devuelve outcomePrices como un string que contiene un array JSON.
type gammaRecord struct {
	ID                flexID          `json:"id"`
	ConditionID       flexString      `json:"conditionId"`
	Question          flexString      `json:"question"`
	Slug              flexString      `json:"slug"`
	OutcomePrices     json.RawMessage `json:"outcomePrices"`
	LastTradePrice    flexNumber      `json:"lastTradePrice"`
	Volume24hr        flexNumber      `json:"volume24hr"`
	Volume            flexNumber      `json:"volume"`
	Liquidity         flexNumber      `json:"liquidity"`
	Spread            flexNumber      `json:"spread"`
	OneDayPriceChange flexNumber      `json:"oneDayPriceChange"`
	Events            json.RawMessage `json:"events"`
}

type gammaEvent struct {
	Slug  flexString `json:"slug"`
	Title flexString `json:"title"`
}
