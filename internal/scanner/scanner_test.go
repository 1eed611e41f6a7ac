package scanner_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/alejandrodnm/blackedge/internal/ports"
	"github.com/alejandrodnm/blackedge/internal/router"
	"github.com/alejandrodnm/blackedge/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockFetcher struct {
	calls   atomic.Int32
	fetchFn func(ctx context.Context, call int32) router.Result
}

func (m *mockFetcher) FetchSignals(ctx context.Context) router.Result {
	return m.fetchFn(ctx, m.calls.Add(1))
}

type mockNotifier struct {
	mu       sync.Mutex
	calls    int
	source   domain.Source
	notified []domain.ScoredSignal
	seen     []string
	err      error
}

func (m *mockNotifier) Notify(_ context.Context, source domain.Source, ranked []domain.ScoredSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.source = source
	m.notified = ranked
	for _, r := range ranked {
		m.seen = append(m.seen, r.Signal.ID)
	}
	return m.err
}

type mockStorage struct {
	mu    sync.Mutex
	saved []*domain.Snapshot
	err   error
}

func (m *mockStorage) SaveSnapshot(_ context.Context, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, snap)
	return m.err
}

func (m *mockStorage) GetHistory(_ context.Context, _, _ time.Time) ([]domain.MarketSignal, error) {
	return nil, nil
}

func (m *mockStorage) Close() error { return nil }

type mockPublisher struct {
	published atomic.Int32
}

func (m *mockPublisher) PublishSnapshot(_ context.Context, _ *domain.Snapshot) error {
	m.published.Add(1)
	return nil
}

// --- helpers ---

func makeSignal(id string, edge, strength, vol float64) domain.MarketSignal {
	return domain.MarketSignal{
		ID:                id,
		Question:          "Question " + id,
		QuotedProbability: 50,
		ModelProbability:  50 + edge,
		EdgePct:           edge,
		Volume24h:         vol,
		RiskTier:          domain.RiskLow,
		SignalStrength:    strength,
	}
}

func constFetcher(res router.Result) *mockFetcher {
	return &mockFetcher{fetchFn: func(context.Context, int32) router.Result { return res }}
}

func newTestScanner(f scanner.SignalFetcher, n ports.Notifier, s ports.Storage, p ports.SnapshotPublisher) *scanner.Scanner {
	cfg := scanner.DefaultConfig()
	cfg.PollInterval = 20 * time.Millisecond
	cfg.Filter = scanner.FilterConfig{HideAvoid: true}
	return scanner.New(cfg, f, nil, s, n, p, nil)
}

// --- tests ---

func TestScanner_RunOnce_Success(t *testing.T) {
	signals := []domain.MarketSignal{
		makeSignal("buy", 3, 60, 10_000),
		makeSignal("avoid", -3, 90, 10_000),
		makeSignal("strong", 6, 72, 2_400_000),
	}
	fetcher := constFetcher(router.Result{Signals: signals, Source: domain.SourcePrimary})
	notifier := &mockNotifier{}
	storage := &mockStorage{}
	publisher := &mockPublisher{}

	s := newTestScanner(fetcher, notifier, storage, publisher)
	snap := s.RunOnce(context.Background())

	require.NotNil(t, snap)
	assert.Equal(t, uint64(1), snap.Seq)
	assert.Equal(t, domain.SourcePrimary, snap.Source)
	assert.Len(t, snap.Signals, 3, "el snapshot guarda la lista completa; el filtro solo afecta a la vista")

	require.Len(t, notifier.notified, 2)
	assert.Equal(t, "strong", notifier.notified[0].Signal.ID)
	assert.Equal(t, domain.RecStrongBuy, notifier.notified[0].Recommendation)
	assert.Equal(t, "buy", notifier.notified[1].Signal.ID)
	assert.Equal(t, domain.SourcePrimary, notifier.source)

	require.Len(t, storage.saved, 1)
	assert.Same(t, snap, storage.saved[0])
	assert.Equal(t, int32(1), publisher.published.Load())
}

func TestScanner_RunOnce_SideEffectErrorsAreNotFatal(t *testing.T) {
	fetcher := constFetcher(router.Result{Signals: []domain.MarketSignal{makeSignal("a", 3, 60, 1)}, Source: domain.SourceSecondary})
	notifier := &mockNotifier{err: errors.New("tty closed")}
	storage := &mockStorage{err: errors.New("disk full")}

	s := newTestScanner(fetcher, notifier, storage, nil)
	snap := s.RunOnce(context.Background())

	require.NotNil(t, snap)
	assert.Equal(t, domain.SourceSecondary, snap.Source)
	assert.Equal(t, 1, notifier.calls)
}

func TestScanner_StaleCycleKeepsPreviousList(t *testing.T) {
	good := []domain.MarketSignal{makeSignal("a", 3, 60, 1), makeSignal("b", 4, 60, 1)}
	fetcher := &mockFetcher{fetchFn: func(_ context.Context, call int32) router.Result {
		if call == 1 {
			return router.Result{Signals: good, Source: domain.SourcePrimary}
		}
		// Router sin historial propio: ambos feeds caídos y lista vacía.
		return router.Result{Source: domain.SourceStale}
	}}

	s := newTestScanner(fetcher, &mockNotifier{}, nil, nil)

	prev := s.RunOnce(context.Background())
	cur := s.RunOnce(context.Background())

	assert.Same(t, prev, cur, "un stale vacío nunca reemplaza una lista no vacía")
	assert.Equal(t, good, cur.Signals)
}

func TestScanner_Run_DiscardsStragglers(t *testing.T) {
	release := make(chan struct{})
	fetcher := &mockFetcher{fetchFn: func(_ context.Context, call int32) router.Result {
		if call == 1 {
			<-release
			return router.Result{Signals: []domain.MarketSignal{makeSignal("old", 3, 60, 1)}, Source: domain.SourcePrimary}
		}
		return router.Result{Signals: []domain.MarketSignal{makeSignal("new", 3, 60, 1)}, Source: domain.SourcePrimary}
	}}
	notifier := &mockNotifier{}
	s := newTestScanner(fetcher, notifier, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		snap := s.Store().Snapshot()
		return snap != nil && snap.Seq >= 3 && snap.Signals[0].ID == "new"
	}, 2*time.Second, 5*time.Millisecond)

	close(release)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, "new", s.Store().Snapshot().Signals[0].ID)
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.NotContains(t, notifier.seen, "old", "el ciclo 1 terminó tarde y se descarta")
}

func TestScanner_Run_StopsOnCancel(t *testing.T) {
	fetcher := constFetcher(router.Result{Source: domain.SourceStale})
	s := newTestScanner(fetcher, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return fetcher.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
