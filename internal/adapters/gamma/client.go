// Package gamma es la fuente secundaria de oportunidades: la API pública Gamma de
// Polymarket. Solo se consulta cuando el backend principal falla o viene vacío.
package gamma

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultGammaBase = "https://gamma-api.polymarket.com"
	gammaMarketsPath = "/markets"

	// Gamma /markets: 300/10s → 180/10s al 60% → 18/s
	gammaRatePerSec = 18

	defaultLimit  = 100
	maxBodyBytes  = 16 << 20
	maxErrorBytes = 512
)

// Client consulta GET /markets de Gamma con rate limiting.
type Client struct {
	http    *http.Client
	base    string
	limit   int
	limiter *rate.Limiter
}

// NewClient crea un Client. Si base está vacío usa el URL de producción.
// limit <= 0 usa el tamaño de página por defecto.
func NewClient(base string, limit int) *Client {
	if base == "" {
		base = defaultGammaBase
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		base:    strings.TrimRight(base, "/"),
		limit:   limit,
		limiter: rate.NewLimiter(gammaRatePerSec, 10),
	}
}

// FetchRaw devuelve los mercados activos ordenados por volumen 24h, sin interpretar.
// Implementa ports.FeedSource. Sin reintentos: el timeout lo pone el router.
func (c *Client) FetchRaw(ctx context.Context) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gamma.FetchRaw: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.marketsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("gamma.FetchRaw: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gamma.FetchRaw: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, fmt.Errorf("gamma.FetchRaw: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("gamma.FetchRaw: read body: %w", err)
	}
	return body, nil
}

func (c *Client) marketsURL() string {
	q := url.Values{}
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("order", "volume24hr")
	q.Set("ascending", "false")
	q.Set("limit", strconv.Itoa(c.limit))
	return c.base + gammaMarketsPath + "?" + q.Encode()
}
