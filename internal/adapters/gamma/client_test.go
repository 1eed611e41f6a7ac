package gamma_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alejandrodnm/blackedge/internal/adapters/gamma"
	"github.com/alejandrodnm/blackedge/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketsFixture = `[
	{
		"id": "501",
		"conditionId": "0xabc",
		"question": "Will BTC close above 100k?",
		"slug": "btc-100k",
		"outcomePrices": "[\"0.62\", \"0.39\"]",
		"volume24hr": 125000.5,
		"liquidity": "150000",
		"spread": 0.01,
		"oneDayPriceChange": 0.03
	}
]`

func TestFetchRaw_QueryAndPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("active"))
		assert.Equal(t, "false", q.Get("closed"))
		assert.Equal(t, "volume24hr", q.Get("order"))
		assert.Equal(t, "false", q.Get("ascending"))
		assert.Equal(t, "25", q.Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(marketsFixture))
	}))
	defer srv.Close()

	body, err := gamma.NewClient(srv.URL, 25).FetchRaw(context.Background())
	require.NoError(t, err)

	// El payload crudo es lo que el normalizador espera en forma secundaria.
	signals := normalize.Normalize(body, normalize.ShapeSecondary)
	require.Len(t, signals, 1)
	assert.Equal(t, "0xabc", signals[0].ID)
	assert.InDelta(t, 62.0, signals[0].QuotedProbability, 1e-9)
}

func TestFetchRaw_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	_, err := gamma.NewClient(srv.URL, 0).FetchRaw(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "slow down")
}

func TestFetchRaw_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gamma.NewClient("http://127.0.0.1:1", 0).FetchRaw(ctx)
	assert.Error(t, err)
}
