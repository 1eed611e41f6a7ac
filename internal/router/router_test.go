package router

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/alejandrodnm/blackedge/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type mockFeed struct {
	calls   atomic.Int32
	fetchFn func(ctx context.Context) ([]byte, error)
}

func (m *mockFeed) FetchRaw(ctx context.Context) ([]byte, error) {
	m.calls.Add(1)
	return m.fetchFn(ctx)
}

func okFeed(payload string) *mockFeed {
	return &mockFeed{fetchFn: func(context.Context) ([]byte, error) { return []byte(payload), nil }}
}

func failingFeed() *mockFeed {
	return &mockFeed{fetchFn: func(context.Context) ([]byte, error) { return nil, errors.New("connection refused") }}
}

func hangingFeed() *mockFeed {
	return &mockFeed{fetchFn: func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
}

const (
	primaryPayload   = `[{"id":"p1","question":"Primary?","quotedProbability":40,"modelProbability":48}]`
	secondaryPayload = `[{"id":"g1","question":"Gamma?","outcomePrices":"[\"0.3\",\"0.7\"]"}]`
)

func fastConfig() Config {
	return Config{PrimaryTimeout: 50 * time.Millisecond, SecondaryTimeout: 50 * time.Millisecond}
}

// --- Tests ---

func TestFetchSignals_PrimarySuccess(t *testing.T) {
	secondary := okFeed(secondaryPayload)
	r := New(okFeed(primaryPayload), secondary, fastConfig(), nil)

	res := r.FetchSignals(context.Background())

	assert.Equal(t, domain.SourcePrimary, res.Source)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, "p1", res.Signals[0].ID)
	assert.Equal(t, int32(0), secondary.calls.Load(), "el secundario solo se consulta si falla el primario")
}

func TestFetchSignals_FallbackToSecondary(t *testing.T) {
	tests := []struct {
		name    string
		primary *mockFeed
	}{
		{"transport error", failingFeed()},
		{"empty array", okFeed(`[]`)},
		{"only malformed records", okFeed(`[{"id":"x"}]`)},
		{"not an array", okFeed(`{"error":"maintenance"}`)},
		{"timeout", hangingFeed()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.primary, okFeed(secondaryPayload), fastConfig(), nil)

			res := r.FetchSignals(context.Background())

			assert.Equal(t, domain.SourceSecondary, res.Source)
			require.Len(t, res.Signals, 1)
			assert.Equal(t, "g1", res.Signals[0].ID)
		})
	}
}

func TestFetchSignals_TimeoutIsBounded(t *testing.T) {
	r := New(hangingFeed(), hangingFeed(), fastConfig(), nil)

	start := time.Now()
	res := r.FetchSignals(context.Background())

	assert.Equal(t, domain.SourceStale, res.Source)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchSignals_BothFailWithoutHistory(t *testing.T) {
	r := New(failingFeed(), failingFeed(), fastConfig(), nil)

	res := r.FetchSignals(context.Background())

	assert.Equal(t, domain.SourceStale, res.Source)
	assert.Empty(t, res.Signals)
}

func TestFetchSignals_StaleKeepsPreviousCycle(t *testing.T) {
	healthy := true
	primary := &mockFeed{fetchFn: func(context.Context) ([]byte, error) {
		if healthy {
			return []byte(primaryPayload), nil
		}
		return nil, errors.New("502")
	}}
	r := New(primary, failingFeed(), fastConfig(), nil)

	prev := r.FetchSignals(context.Background())
	require.Equal(t, domain.SourcePrimary, prev.Source)
	require.NotEmpty(t, prev.Signals)

	healthy = false
	cur := r.FetchSignals(context.Background())

	assert.Equal(t, domain.SourceStale, cur.Source)
	assert.Equal(t, prev.Signals, cur.Signals)
}

func TestFetchSignals_NilSecondary(t *testing.T) {
	r := New(failingFeed(), nil, fastConfig(), nil)
	res := r.FetchSignals(context.Background())
	assert.Equal(t, domain.SourceStale, res.Source)
}

func TestFetchSignals_OlderCycleDoesNotOverwriteLastGood(t *testing.T) {
	release := make(chan struct{})
	var n atomic.Int32
	primary := &mockFeed{fetchFn: func(ctx context.Context) ([]byte, error) {
		if n.Add(1) == 1 {
			<-release
			return []byte(`[{"id":"old","question":"Old?","quotedProbability":40}]`), nil
		}
		return []byte(`[{"id":"new","question":"New?","quotedProbability":40}]`), nil
	}}
	cfg := Config{PrimaryTimeout: time.Second, SecondaryTimeout: time.Second}
	r := New(primary, nil, cfg, nil)

	done := make(chan Result)
	go func() { done <- r.FetchSignals(context.Background()) }()
	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)

	newer := r.FetchSignals(context.Background())
	require.Equal(t, "new", newer.Signals[0].ID)

	close(release)
	<-done

	require.Len(t, r.LastGood(), 1)
	assert.Equal(t, "new", r.LastGood()[0].ID)
}

func TestNew_DefaultsTimeouts(t *testing.T) {
	r := New(failingFeed(), nil, Config{}, metrics.New())
	assert.Equal(t, DefaultPrimaryTimeout, r.cfg.PrimaryTimeout)
	assert.Equal(t, DefaultSecondaryTimeout, r.cfg.SecondaryTimeout)
}
