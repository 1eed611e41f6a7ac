package shorthorizon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	calls   atomic.Int32
	fetchFn func(ctx context.Context, call int32) (domain.ShortHorizonFeed, error)
}

func (m *mockProvider) FetchShortHorizon(ctx context.Context) (domain.ShortHorizonFeed, error) {
	return m.fetchFn(ctx, m.calls.Add(1))
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func feedAt(btc float64, markets ...domain.ShortHorizonMarket) domain.ShortHorizonFeed {
	return domain.ShortHorizonFeed{Markets: markets, BTCPrice: btc, Timestamp: t0}
}

func TestView_LiveCountdown(t *testing.T) {
	v := &View{Feed: domain.ShortHorizonFeed{
		Markets: []domain.ShortHorizonMarket{
			{ID: "late", EndsAt: t0.Add(290 * time.Second)},
			{ID: "soon", EndsAt: t0.Add(30 * time.Second)},
			{ID: "gone", EndsAt: t0.Add(-time.Second)},
			{ID: "open-ended"},
		},
		Signals: []domain.ShortHorizonSignal{{MarketID: "soon", Direction: domain.TrendUp, Confidence: 70}},
	}}

	live := v.Live(t0)
	require.Len(t, live, 3)
	assert.Equal(t, "open-ended", live[0].Market.ID, "sin EndsAt no tiene cuenta atrás")
	assert.Equal(t, "soon", live[1].Market.ID)
	assert.Equal(t, 30, live[1].SecondsLeft)
	assert.True(t, live[1].HasSignal)
	assert.Equal(t, domain.TrendUp, live[1].Signal.Direction)
	assert.Equal(t, "late", live[2].Market.ID)
	assert.False(t, live[2].HasSignal)

	// Entre polls la cuenta atrás baja sola.
	later := v.Live(t0.Add(10 * time.Second))
	assert.Equal(t, 20, later[1].SecondsLeft)

	// Al cerrar, el mercado desaparece de la vista.
	after := v.Live(t0.Add(31 * time.Second))
	require.Len(t, after, 2)
	assert.Equal(t, "late", after[1].Market.ID)

	var nilView *View
	assert.Nil(t, nilView.Live(t0))
}

func TestPoller_FailureKeepsPreviousView(t *testing.T) {
	prov := &mockProvider{fetchFn: func(_ context.Context, call int32) (domain.ShortHorizonFeed, error) {
		if call == 1 {
			return feedAt(97_000, domain.ShortHorizonMarket{ID: "m1"}), nil
		}
		return domain.ShortHorizonFeed{}, errors.New("503")
	}}
	p := New(Config{}, prov)

	require.True(t, p.Poll(context.Background()))
	assert.False(t, p.Poll(context.Background()))

	v := p.View()
	require.NotNil(t, v)
	assert.Equal(t, uint64(1), v.Seq)
	assert.InDelta(t, 97_000, v.Feed.BTCPrice, 1e-9)
}

func TestPoller_DiscardsStragglers(t *testing.T) {
	release := make(chan struct{})
	prov := &mockProvider{fetchFn: func(_ context.Context, call int32) (domain.ShortHorizonFeed, error) {
		if call == 1 {
			<-release
			return feedAt(1), nil
		}
		return feedAt(2), nil
	}}
	p := New(Config{PollInterval: 10 * time.Millisecond, Timeout: time.Second}, prov)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		v := p.View()
		return v != nil && v.Seq >= 3
	}, 2*time.Second, 5*time.Millisecond)

	close(release)
	cancel()
	require.NoError(t, <-done)

	assert.InDelta(t, 2.0, p.View().Feed.BTCPrice, 1e-9)
}

func TestPoller_TimeoutBoundsEachPoll(t *testing.T) {
	prov := &mockProvider{fetchFn: func(ctx context.Context, _ int32) (domain.ShortHorizonFeed, error) {
		<-ctx.Done()
		return domain.ShortHorizonFeed{}, ctx.Err()
	}}
	p := New(Config{Timeout: 20 * time.Millisecond}, prov)

	start := time.Now()
	assert.False(t, p.Poll(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
	assert.Nil(t, p.View())
}
