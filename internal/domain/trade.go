package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome es el lado del mercado binario que se compra.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// ExecutionSettings son las preferencias de ejecución. El backend las interpreta;
// aquí solo se transportan.
type ExecutionSettings struct {
	SlippageBps   int  `json:"slippageBps" yaml:"slippage_bps" validate:"gte=0,lte=10000"`
	MEVProtection bool `json:"mevProtection" yaml:"mev_protection"`
	PrivateRoute  bool `json:"privateRoute" yaml:"private_route"`
}

// TradeRequest es un intento de ejecución iniciado por el usuario.
// El coordinador guarda su propia copia: no se modifica una vez enviado.
type TradeRequest struct {
	MarketID string          `validate:"required"`
	Outcome  Outcome         `validate:"required,oneof=YES NO"`
	Amount   decimal.Decimal // > 0, unidades de la moneda del trade
	Settings ExecutionSettings
}

// TxDescriptor es la transacción sin firmar que construye el backend.
// Es opaca: se entrega tal cual al firmante.
type TxDescriptor struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasLimit uint64 `json:"gasLimit"`
}

// Receipt es el resultado on-chain de una transacción difundida.
type Receipt struct {
	TxHash      string
	Success     bool
	BlockNumber uint64
	GasUsed     uint64
	Reason      string // motivo del revert si el nodo lo reporta
}

// TradeState es el estado del ciclo de vida de una ejecución.
type TradeState string

const (
	StateIdle                TradeState = "Idle"
	StateCheckingBalance     TradeState = "CheckingBalance"
	StateInsufficientBalance TradeState = "InsufficientBalance"
	StateApproving           TradeState = "Approving"
	StateSubmitting          TradeState = "Submitting"
	StateConfirming          TradeState = "Confirming"
	StateSuccess             TradeState = "Success"
	StateFailed              TradeState = "Failed"
)

// IsTerminal devuelve true para los estados finales de un intento.
func (s TradeState) IsTerminal() bool {
	switch s {
	case StateInsufficientBalance, StateSuccess, StateFailed:
		return true
	default:
		return false
	}
}

// IsActive devuelve true mientras el intento ocupa el slot single-flight.
func (s TradeState) IsActive() bool {
	switch s {
	case StateCheckingBalance, StateApproving, StateSubmitting, StateConfirming:
		return true
	default:
		return false
	}
}

// validTransitions define el grafo de la máquina de estados.
var validTransitions = map[TradeState][]TradeState{
	StateIdle:            {StateCheckingBalance},
	StateCheckingBalance: {StateInsufficientBalance, StateApproving, StateFailed},
	StateApproving:       {StateSubmitting, StateFailed},
	StateSubmitting:      {StateConfirming, StateFailed},
	StateConfirming:      {StateSuccess, StateFailed},
}

// CanTransition indica si from → to es una transición válida.
func CanTransition(from, to TradeState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TradeExecution es el estado de un intento de ejecución.
// Los booleanos de la UI se derivan de State; no existen como campos.
type TradeExecution struct {
	ID        string
	Request   TradeRequest
	State     TradeState
	TxHash    string
	Err       *TradeError
	StartedAt time.Time
	UpdatedAt time.Time
}

// IsCheckingBalance proyecta el estado para la UI.
func (t TradeExecution) IsCheckingBalance() bool { return t.State == StateCheckingBalance }

// IsApproving proyecta el estado para la UI.
func (t TradeExecution) IsApproving() bool { return t.State == StateApproving }

// IsTrading es true durante cualquier fase no terminal.
func (t TradeExecution) IsTrading() bool { return t.State.IsActive() }

// IsSuccess es true solo tras confirmación on-chain.
func (t TradeExecution) IsSuccess() bool { return t.State == StateSuccess }

// IsFailed es true para Failed e InsufficientBalance.
func (t TradeExecution) IsFailed() bool {
	return t.State == StateFailed || t.State == StateInsufficientBalance
}
