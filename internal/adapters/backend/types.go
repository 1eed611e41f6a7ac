package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// DTOs raw del backend. Solo se usan dentro de este paquete.

// shortHorizonResponse es la respuesta de GET /api/v2/crypto/5min/signals.
type shortHorizonResponse struct {
	ActiveMarkets []shortHorizonMarket `json:"active_markets"`
	Signals       []shortHorizonSignal `json:"signals"`
	BTCPrice      float64              `json:"btcPrice"`
	Timestamp     flexTime             `json:"timestamp"`
}

type shortHorizonMarket struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	Asset     string   `json:"asset"`
	UpPrice   float64  `json:"upPrice"`
	DownPrice float64  `json:"downPrice"`
	EndTime   flexTime `json:"endTime"`
	EndDate   flexTime `json:"endDate"`
}

type shortHorizonSignal struct {
	MarketID   string  `json:"market_id"`
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
	Edge       float64 `json:"edge"`
}

// buildTxRequest es el body de POST /api/build-tx.
type buildTxRequest struct {
	OpportunityID string      `json:"opportunityId"`
	Outcome       string      `json:"outcome"`
	Amount        json.Number `json:"amount"`
	Settings      any         `json:"settings"`
}

// buildTxResponse es el descriptor de transacción sin firmar.
type buildTxResponse struct {
	To       string   `json:"to"`
	Data     string   `json:"data"`
	Value    quantity `json:"value"`
	GasLimit quantity `json:"gasLimit"`
}

// Health es el estado del backend (GET /api/v2/health).
type Health struct {
	Status  string  `json:"status"`
	Version string  `json:"version"`
	Uptime  float64 `json:"uptime"`
}

// TrackRecord es el histórico de aciertos del modelo (GET /api/v2/track-record).
type TrackRecord struct {
	TotalSignals int     `json:"totalSignals"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"winRate"`
	ROI          float64 `json:"roi"`
}

// flexTime acepta RFC3339, epoch en segundos o en milisegundos.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	t.Time = time.Time{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			t.Time = parsed
			return nil
		}
		b = []byte(s)
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return nil
	}
	// Por encima de 1e12 es epoch en milisegundos.
	if n > 1e12 {
		t.Time = time.UnixMilli(int64(n))
	} else {
		t.Time = time.Unix(int64(n), 0)
	}
	return nil
}

// quantity acepta un número JSON o un string ("0x5208", "21000") y guarda el texto.
type quantity string

func (q *quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*q = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*q = quantity(strings.TrimSpace(s))
		return nil
	}
	*q = quantity(b)
	return nil
}
