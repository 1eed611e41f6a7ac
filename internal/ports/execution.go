package ports

import (
	"context"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/shopspring/decimal"
)

// TrialChecker indica si la sesión actual puede iniciar trades.
type TrialChecker interface {
	CanExecute() bool
}

// BalanceProvider devuelve el saldo gastable del usuario en la moneda del trade.
type BalanceProvider interface {
	Balance(ctx context.Context) (decimal.Decimal, error)
}

// TxBuilder pide al backend la transacción sin firmar para un trade.
type TxBuilder interface {
	BuildTx(ctx context.Context, req domain.TradeRequest) (domain.TxDescriptor, error)
}

// WalletSigner es el firmante externo. Este sistema no implementa lógica de wallet:
// solo la invoca e interpreta el resultado.
type WalletSigner interface {
	// Allowance devuelve cuánto puede gastar spender en nombre del usuario.
	Allowance(ctx context.Context, spender string) (decimal.Decimal, error)

	// Approve concede allowance a spender y espera su confirmación.
	Approve(ctx context.Context, spender string, amount decimal.Decimal) error

	// SendTransaction firma y difunde el descriptor; devuelve el hash.
	SendTransaction(ctx context.Context, tx domain.TxDescriptor) (string, error)

	// WaitForReceipt espera hasta que la transacción se mina o el contexto vence.
	WaitForReceipt(ctx context.Context, txHash string) (domain.Receipt, error)
}
