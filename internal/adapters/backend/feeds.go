package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/alejandrodnm/blackedge/internal/normalize"
)

// FetchRaw devuelve el payload de GET /api/opportunities sin interpretar.
// Implementa ports.FeedSource para el feed principal.
func (c *Client) FetchRaw(ctx context.Context) ([]byte, error) {
	body, err := c.getRaw(ctx, opportunitiesPath, 0)
	if err != nil {
		return nil, fmt.Errorf("backend.FetchRaw: %w", err)
	}
	return body, nil
}

// FetchShortHorizon obtiene los mercados cripto de 5 minutos y las lecturas del modelo.
func (c *Client) FetchShortHorizon(ctx context.Context) (domain.ShortHorizonFeed, error) {
	var resp shortHorizonResponse
	if err := c.getJSON(ctx, shortHorizonPath, 0, &resp); err != nil {
		return domain.ShortHorizonFeed{}, fmt.Errorf("backend.FetchShortHorizon: %w", err)
	}
	return mapShortHorizon(resp), nil
}

func mapShortHorizon(resp shortHorizonResponse) domain.ShortHorizonFeed {
	feed := domain.ShortHorizonFeed{
		Markets:   make([]domain.ShortHorizonMarket, 0, len(resp.ActiveMarkets)),
		Signals:   make([]domain.ShortHorizonSignal, 0, len(resp.Signals)),
		BTCPrice:  resp.BTCPrice,
		Timestamp: resp.Timestamp.Time,
	}

	for _, m := range resp.ActiveMarkets {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		up, _ := normalize.Percent(m.UpPrice)
		down, _ := normalize.Percent(m.DownPrice)
		endsAt := m.EndTime.Time
		if endsAt.IsZero() {
			endsAt = m.EndDate.Time
		}
		feed.Markets = append(feed.Markets, domain.ShortHorizonMarket{
			ID:        m.ID,
			Question:  m.Question,
			Asset:     strings.ToUpper(m.Asset),
			UpPrice:   up,
			DownPrice: down,
			EndsAt:    endsAt,
		})
	}

	for _, s := range resp.Signals {
		if s.MarketID == "" {
			continue
		}
		conf, _ := normalize.Percent(s.Confidence)
		feed.Signals = append(feed.Signals, domain.ShortHorizonSignal{
			MarketID:   s.MarketID,
			Direction:  domain.ParseTrend(strings.ToLower(s.Direction)),
			Confidence: conf,
			EdgePct:    s.Edge,
		})
	}
	return feed
}

// Signals devuelve las señales del feed v2 ya normalizadas.
func (c *Client) Signals(ctx context.Context) ([]domain.MarketSignal, error) {
	body, err := c.getRaw(ctx, signalsPath, auxRetries)
	if err != nil {
		return nil, fmt.Errorf("backend.Signals: %w", err)
	}
	return normalize.Normalize(body, normalize.ShapePrimary), nil
}

// TrackRecord devuelve el histórico de rendimiento del modelo.
func (c *Client) TrackRecord(ctx context.Context) (TrackRecord, error) {
	var tr TrackRecord
	if err := c.getJSON(ctx, trackRecordPath, auxRetries, &tr); err != nil {
		return TrackRecord{}, fmt.Errorf("backend.TrackRecord: %w", err)
	}
	return tr, nil
}

// Health devuelve el estado del backend.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.getJSON(ctx, healthPath, auxRetries, &h); err != nil {
		return Health{}, fmt.Errorf("backend.Health: %w", err)
	}
	return h, nil
}
