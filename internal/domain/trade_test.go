package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTradeState_TerminalAndActive(t *testing.T) {
	for _, s := range []TradeState{StateInsufficientBalance, StateSuccess, StateFailed} {
		assert.True(t, s.IsTerminal(), s)
		assert.False(t, s.IsActive(), s)
	}
	for _, s := range []TradeState{StateCheckingBalance, StateApproving, StateSubmitting, StateConfirming} {
		assert.False(t, s.IsTerminal(), s)
		assert.True(t, s.IsActive(), s)
	}
	assert.False(t, StateIdle.IsTerminal())
	assert.False(t, StateIdle.IsActive())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateIdle, StateCheckingBalance))
	assert.True(t, CanTransition(StateCheckingBalance, StateInsufficientBalance))
	assert.True(t, CanTransition(StateConfirming, StateSuccess))

	// No se salta la aprobación ni se vuelve atrás
	assert.False(t, CanTransition(StateCheckingBalance, StateSubmitting))
	assert.False(t, CanTransition(StateSuccess, StateCheckingBalance))
	assert.False(t, CanTransition(StateIdle, StateSuccess))
}

func TestTradeExecution_Projections(t *testing.T) {
	ex := TradeExecution{State: StateApproving}
	assert.True(t, ex.IsApproving())
	assert.True(t, ex.IsTrading())
	assert.False(t, ex.IsSuccess())

	ex.State = StateSuccess
	assert.False(t, ex.IsTrading())
	assert.True(t, ex.IsSuccess())

	ex.State = StateInsufficientBalance
	assert.True(t, ex.IsFailed())
}

func TestTradeError_InsufficientBalanceShortfall(t *testing.T) {
	err := NewInsufficientBalance(decimal.NewFromInt(100), decimal.NewFromInt(40))
	assert.True(t, err.Shortfall().Equal(decimal.NewFromInt(60)))
	assert.Contains(t, err.Error(), "need $100.00, have $40.00")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestTradeError_IsAndKindOf(t *testing.T) {
	cause := errors.New("user rejected")
	err := fmt.Errorf("wrapped: %w", NewTradeError(KindApprovalRejected, "approve", cause))

	assert.ErrorIs(t, err, ErrApprovalRejected)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrBuildFailed)
	assert.Equal(t, KindApprovalRejected, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestTrialSession_CanExecute(t *testing.T) {
	assert.True(t, TrialSession{TotalSeconds: 60, SecondsRemaining: 1}.CanExecute())
	assert.False(t, TrialSession{TotalSeconds: 60, SecondsRemaining: 0}.CanExecute())
	assert.True(t, TrialSession{TotalSeconds: 60, SecondsRemaining: 0, Upgraded: true}.CanExecute())
}

func TestParseTrendAndRisk(t *testing.T) {
	assert.Equal(t, TrendUp, ParseTrend("up"))
	assert.Equal(t, TrendDown, ParseTrend("bearish"))
	assert.Equal(t, TrendNeutral, ParseTrend(""))
	assert.Equal(t, RiskLow, ParseRiskTier("LOW"))
	assert.Equal(t, RiskMedium, ParseRiskTier("medium"))
	assert.Equal(t, RiskHigh, ParseRiskTier("???"))
}
