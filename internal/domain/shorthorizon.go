package domain

import (
	"math"
	"time"
)

// ShortHorizonMarket es un mercado cripto de ventana corta (p.ej. BTC arriba/abajo en 5 min).
type ShortHorizonMarket struct {
	ID        string
	Question  string
	Asset     string
	UpPrice   float64 // 0–100
	DownPrice float64 // 0–100
	EndsAt    time.Time
}

// SecondsLeft devuelve los segundos enteros hasta el cierre, nunca negativos.
func (m ShortHorizonMarket) SecondsLeft(now time.Time) int {
	if m.EndsAt.IsZero() {
		return 0
	}
	d := m.EndsAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// ShortHorizonSignal es la lectura del modelo para un mercado de ventana corta.
type ShortHorizonSignal struct {
	MarketID   string
	Direction  Trend
	Confidence float64 // 0–100
	EdgePct    float64
}

// ShortHorizonFeed es la respuesta completa del feed de 5 minutos.
type ShortHorizonFeed struct {
	Markets   []ShortHorizonMarket
	Signals   []ShortHorizonSignal
	BTCPrice  float64
	Timestamp time.Time
}
