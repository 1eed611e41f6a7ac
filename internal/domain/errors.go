package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind clasifica los fallos del pipeline de datos y de ejecución.
type ErrorKind string

const (
	KindFeedUnavailable     ErrorKind = "FeedUnavailable"
	KindMalformedRecord     ErrorKind = "MalformedRecord"
	KindTrialExpired        ErrorKind = "TrialExpired"
	KindInvalidRequest      ErrorKind = "InvalidRequest"
	KindAlreadyInFlight     ErrorKind = "AlreadyInFlight"
	KindBalanceUnavailable  ErrorKind = "BalanceUnavailable"
	KindInsufficientBalance ErrorKind = "InsufficientBalance"
	KindApprovalRejected    ErrorKind = "ApprovalRejected"
	KindBuildFailed         ErrorKind = "BuildFailed"
	KindOnChainRevert       ErrorKind = "OnChainRevert"
)

// Sentinels para usar con errors.Is contra un *TradeError.
var (
	ErrFeedUnavailable     = errors.New("feed unavailable")
	ErrMalformedRecord     = errors.New("malformed record")
	ErrTrialExpired        = errors.New("trial expired")
	ErrInvalidRequest      = errors.New("invalid trade request")
	ErrAlreadyInFlight     = errors.New("trade already in progress")
	ErrBalanceUnavailable  = errors.New("balance unavailable")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrApprovalRejected    = errors.New("approval rejected")
	ErrBuildFailed         = errors.New("build transaction failed")
	ErrOnChainRevert       = errors.New("on-chain revert")
)

var sentinelByKind = map[ErrorKind]error{
	KindFeedUnavailable:     ErrFeedUnavailable,
	KindMalformedRecord:     ErrMalformedRecord,
	KindTrialExpired:        ErrTrialExpired,
	KindInvalidRequest:      ErrInvalidRequest,
	KindAlreadyInFlight:     ErrAlreadyInFlight,
	KindBalanceUnavailable:  ErrBalanceUnavailable,
	KindInsufficientBalance: ErrInsufficientBalance,
	KindApprovalRejected:    ErrApprovalRejected,
	KindBuildFailed:         ErrBuildFailed,
	KindOnChainRevert:       ErrOnChainRevert,
}

// TradeError es el error clasificado que devuelve el coordinador de ejecución.
type TradeError struct {
	Kind    ErrorKind
	Message string
	Cause   error

	// Solo para KindInsufficientBalance.
	Requested decimal.Decimal
	Available decimal.Decimal
}

// NewTradeError construye un TradeError con la causa opcional.
func NewTradeError(kind ErrorKind, msg string, cause error) *TradeError {
	return &TradeError{Kind: kind, Message: msg, Cause: cause}
}

// NewInsufficientBalance construye el error con los importes pedidos y disponibles.
func NewInsufficientBalance(requested, available decimal.Decimal) *TradeError {
	return &TradeError{
		Kind:      KindInsufficientBalance,
		Message:   fmt.Sprintf("need $%s, have $%s", requested.StringFixed(2), available.StringFixed(2)),
		Requested: requested,
		Available: available,
	}
}

// Shortfall devuelve cuánto falta para cubrir el importe pedido (0 si no aplica).
func (e *TradeError) Shortfall() decimal.Decimal {
	if e.Kind != KindInsufficientBalance {
		return decimal.Zero
	}
	d := e.Requested.Sub(e.Available)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func (e *TradeError) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap expone la causa original.
func (e *TradeError) Unwrap() error {
	return e.Cause
}

// Is permite errors.Is(err, domain.ErrTrialExpired) y similares.
func (e *TradeError) Is(target error) bool {
	return sentinelByKind[e.Kind] == target
}

// KindOf extrae la clasificación de un error, o "" si no es un TradeError.
func KindOf(err error) ErrorKind {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
