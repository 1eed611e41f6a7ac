package trial

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/alejandrodnm/blackedge/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_TickDecrementsAndFloors(t *testing.T) {
	g := New(3, nil)
	require.True(t, g.CanExecute())

	prev := g.Session().SecondsRemaining
	for i := 0; i < 10; i++ {
		s := g.Tick()
		assert.LessOrEqual(t, s.SecondsRemaining, prev, "nunca crece sin restart")
		assert.GreaterOrEqual(t, s.SecondsRemaining, 0)
		prev = s.SecondsRemaining
	}

	assert.Equal(t, 0, g.Session().SecondsRemaining)
	assert.True(t, g.Session().Expired())
	assert.False(t, g.CanExecute())
}

func TestGate_RestartOnlyOnRequest(t *testing.T) {
	g := New(2, nil)
	g.Tick()
	g.Tick()
	require.False(t, g.CanExecute())

	// Más ticks no reabren la ventana.
	g.Tick()
	assert.False(t, g.CanExecute())

	s := g.Restart()
	assert.Equal(t, 2, s.SecondsRemaining)
	assert.True(t, g.CanExecute())
}

func TestGate_Upgrade(t *testing.T) {
	g := New(1, nil)
	g.Tick()
	require.False(t, g.CanExecute())

	g.Upgrade()
	assert.True(t, g.CanExecute())
	assert.True(t, g.Session().Expired(), "la cuenta atrás sigue, pero ya no limita")
}

func TestGate_DefaultsTotal(t *testing.T) {
	g := New(0, nil)
	assert.Equal(t, domain.DefaultTrialSeconds, g.Session().TotalSeconds)
	assert.Equal(t, domain.DefaultTrialSeconds, g.Session().SecondsRemaining)
}

func TestGate_CatchUpUsesWallClock(t *testing.T) {
	g := New(60, metrics.New())
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := tickClock{anchor: anchor}

	// El receptor estuvo parado 10.5s: se cobran 10 segundos de golpe.
	g.catchUp(&c, anchor.Add(10500*time.Millisecond))
	assert.Equal(t, 50, g.Session().SecondsRemaining)

	// Un fire temprano del ticker no cobra nada extra.
	g.catchUp(&c, anchor.Add(10900*time.Millisecond))
	assert.Equal(t, 50, g.Session().SecondsRemaining)

	g.catchUp(&c, anchor.Add(11*time.Second))
	assert.Equal(t, 49, g.Session().SecondsRemaining)

	// Horas después: se agota sin pasar de 0.
	g.catchUp(&c, anchor.Add(3*time.Hour))
	assert.Equal(t, 0, g.Session().SecondsRemaining)
}

func TestGate_Run(t *testing.T) {
	g := New(3, nil)
	g.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	require.Eventually(t, func() bool { return !g.CanExecute() }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, 0, g.Session().SecondsRemaining)
}

func TestGate_RestartOnSignal(t *testing.T) {
	g := New(5, metrics.New())
	for i := 0; i < 5; i++ {
		g.Tick()
	}
	require.False(t, g.CanExecute())

	ctx, cancel := context.WithCancel(context.Background())
	requests := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- g.RestartOn(ctx, requests) }()

	requests <- syscall.SIGHUP
	require.Eventually(t, g.CanExecute, time.Second, 5*time.Millisecond)
	assert.Equal(t, 5, g.Session().SecondsRemaining)

	cancel()
	require.NoError(t, <-done)
}

func TestGate_RestartOnClosedChannel(t *testing.T) {
	g := New(5, metrics.New())
	g.Tick()
	requests := make(chan os.Signal)
	close(requests)

	require.NoError(t, g.RestartOn(context.Background(), requests))
	assert.Equal(t, 4, g.Session().SecondsRemaining, "un canal cerrado no reinicia")
}
