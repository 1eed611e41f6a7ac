// Package backend es el cliente HTTP del backend de señales: feed principal de
// oportunidades, feed de ventana corta, feeds auxiliares y construcción de transacciones.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "http://localhost:3000"

	opportunitiesPath = "/api/opportunities"
	shortHorizonPath  = "/api/v2/crypto/5min/signals"
	signalsPath       = "/api/v2/signals"
	trackRecordPath   = "/api/v2/track-record"
	healthPath        = "/api/v2/health"
	buildTxPath       = "/api/build-tx"

	// El feed de 5 minutos se consulta cada 2s; el resto mucho menos.
	requestsPerSec = 5
	burst          = 5

	// Solo los feeds auxiliares reintentan. Feeds y build-tx van a un único intento.
	auxRetries    = 2
	baseRetryWait = 500 * time.Millisecond

	maxBodyBytes  = 8 << 20
	maxErrorBytes = 512
)

// StatusError es una respuesta no-2xx del backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Client es el HTTP client del backend con rate limiting.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

// Option configura el Client.
type Option func(*Client)

// WithHTTPClient reemplaza el http.Client por defecto.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient crea un Client contra base. Si base está vacío usa el backend local.
// Los timeouts de cada llamada los pone el contexto del llamador.
func NewClient(base string, opts ...Option) *Client {
	if base == "" {
		base = defaultBaseURL
	}
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		base:    strings.TrimRight(base, "/"),
		limiter: rate.NewLimiter(requestsPerSec, burst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL devuelve la URL base efectiva.
func (c *Client) BaseURL() string { return c.base }

// getRaw hace un GET y devuelve el cuerpo sin decodificar.
func (c *Client) getRaw(ctx context.Context, path string, retries int) ([]byte, error) {
	return c.doWithRetry(ctx, retries, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	})
}

// getJSON hace un GET y decodifica el cuerpo en out.
func (c *Client) getJSON(ctx context.Context, path string, retries int, out any) error {
	body, err := c.getRaw(ctx, path, retries)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// post hace un POST JSON de un solo intento y decodifica la respuesta en out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	resp, err := c.doWithRetry(ctx, 0, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// doWithRetry ejecuta fn hasta retries+1 veces con backoff exponencial.
// Cualquier status fuera de 2xx es un error; solo 429 y 5xx se reintentan.
func (c *Client) doWithRetry(ctx context.Context, retries int, fn func() (*http.Response, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, attempt-1); err != nil {
				return nil, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
			resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				slog.Debug("backend request failed, retrying",
					"status", resp.StatusCode,
					"attempt", attempt+1,
				)
				continue
			}
			return nil, lastErr
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return body, nil
	}
	if retries > 0 {
		return nil, fmt.Errorf("request failed after %d retries: %w", retries, lastErr)
	}
	return nil, lastErr
}

// sleep espera con backoff exponencial respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) error {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
