package onchain

// wallet.go: Polygon wallet used as the trade signer.
//
// The backend builds the transaction; this side only:
//   - reads the collateral balance and allowance (ERC20 balanceOf / allowance)
//   - approves the spender for the trade amount
//   - signs and broadcasts the descriptor (legacy tx, EIP-155)
//   - polls for the receipt

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const (
	polygonChainID = int64(137)

	// USDC.e collateral on Polygon
	usdcEAddress  = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	usdcEDecimals = int32(6)

	approvalGasLimit = uint64(80_000)
	defaultGasLimit  = uint64(300_000)

	gasPriceUpdateInterval = 5 * time.Minute
	defaultReceiptPoll     = 3 * time.Second
)

var erc20ABI abi.ABI

func init() {
	var err error
	erc20ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "balanceOf",
			"type": "function",
			"inputs": [{"name": "account", "type": "address"}],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "approve",
			"type": "function",
			"inputs": [
				{"name": "spender", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "allowance",
			"type": "function",
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "spender", "type": "address"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("erc20 abi parse: " + err.Error())
	}
}

// chainClient is the subset of *ethclient.Client the wallet needs.
type chainClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Config configures the wallet.
type Config struct {
	RPCURL        string
	PrivateKeyHex string // with or without 0x
	ChainID       int64  // 0 = Polygon mainnet
	Collateral    string // ERC20 token address; empty = USDC.e
	Decimals      int32  // 0 = 6
	ReceiptPoll   time.Duration
}

// Wallet implements ports.BalanceProvider and ports.WalletSigner.
type Wallet struct {
	client   chainClient
	key      *ecdsa.PrivateKey
	address  common.Address
	chainID  *big.Int
	token    common.Address
	decimals int32
	poll     time.Duration

	mu           sync.RWMutex
	cachedGasWei *big.Int
	gasUpdatedAt time.Time
}

// Dial connects to the RPC and loads the signing key.
func Dial(ctx context.Context, cfg Config) (*Wallet, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("onchain.Dial: rpc %s: %w", cfg.RPCURL, err)
	}
	w, err := newWallet(client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	return w, nil
}

func newWallet(client chainClient, cfg Config) (*Wallet, error) {
	keyBytes, err := hexutil.Decode("0x" + strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("onchain: decode private key: %w", err)
	}
	key, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("onchain: invalid private key: %w", err)
	}

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = polygonChainID
	}
	token := cfg.Collateral
	if token == "" {
		token = usdcEAddress
	}
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("onchain: invalid collateral address %q", token)
	}
	decimals := cfg.Decimals
	if decimals == 0 {
		decimals = usdcEDecimals
	}
	poll := cfg.ReceiptPoll
	if poll <= 0 {
		poll = defaultReceiptPoll
	}

	return &Wallet{
		client:   client,
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(chainID),
		token:    common.HexToAddress(token),
		decimals: decimals,
		poll:     poll,
	}, nil
}

// Address returns the checksummed signer address.
func (w *Wallet) Address() string { return w.address.Hex() }

// Close releases the RPC connection.
func (w *Wallet) Close() { w.client.Close() }

// Balance returns the collateral balance in token units (e.g. 40.5 USDC).
func (w *Wallet) Balance(ctx context.Context) (decimal.Decimal, error) {
	raw, err := w.callUint(ctx, "balanceOf", w.address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("onchain.Balance: %w", err)
	}
	return fromUnits(raw, w.decimals), nil
}

// Allowance returns how much spender may pull from this wallet.
func (w *Wallet) Allowance(ctx context.Context, spender string) (decimal.Decimal, error) {
	if !common.IsHexAddress(spender) {
		return decimal.Zero, fmt.Errorf("onchain.Allowance: invalid spender %q", spender)
	}
	raw, err := w.callUint(ctx, "allowance", w.address, common.HexToAddress(spender))
	if err != nil {
		return decimal.Zero, fmt.Errorf("onchain.Allowance: %w", err)
	}
	return fromUnits(raw, w.decimals), nil
}

// Approve grants spender exactly amount and waits for the approval to be mined.
func (w *Wallet) Approve(ctx context.Context, spender string, amount decimal.Decimal) error {
	if !common.IsHexAddress(spender) {
		return fmt.Errorf("onchain.Approve: invalid spender %q", spender)
	}
	callData, err := erc20ABI.Pack("approve", common.HexToAddress(spender), toUnits(amount, w.decimals))
	if err != nil {
		return fmt.Errorf("onchain.Approve: pack: %w", err)
	}

	signed, err := w.signAndSend(ctx, w.token, big.NewInt(0), approvalGasLimit, callData)
	if err != nil {
		return fmt.Errorf("onchain.Approve: %w", err)
	}
	slog.Info("approval sent", "spender", spender, "amount", amount.String(), "tx", signed.Hash().Hex())

	receipt, err := w.waitForReceipt(ctx, signed.Hash())
	if err != nil {
		return fmt.Errorf("onchain.Approve: wait receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("onchain.Approve: approve tx %s reverted", signed.Hash().Hex())
	}
	return nil
}

// SendTransaction signs the backend descriptor and broadcasts it. Returns the tx hash.
func (w *Wallet) SendTransaction(ctx context.Context, desc domain.TxDescriptor) (string, error) {
	to, value, data, err := decodeDescriptor(desc)
	if err != nil {
		return "", fmt.Errorf("onchain.SendTransaction: %w", err)
	}

	gas := desc.GasLimit
	if gas == 0 {
		gas = w.estimateGas(ctx, to, value, data)
	}

	signed, err := w.signAndSend(ctx, to, value, gas, data)
	if err != nil {
		return "", fmt.Errorf("onchain.SendTransaction: %w", err)
	}
	slog.Info("transaction sent", "to", to.Hex(), "gas", gas, "tx", signed.Hash().Hex())
	return signed.Hash().Hex(), nil
}

// WaitForReceipt polls until the transaction is mined or ctx expires.
func (w *Wallet) WaitForReceipt(ctx context.Context, txHash string) (domain.Receipt, error) {
	if len(strings.TrimPrefix(txHash, "0x")) != 64 {
		return domain.Receipt{}, fmt.Errorf("onchain.WaitForReceipt: invalid tx hash %q", txHash)
	}
	hash := common.HexToHash(txHash)

	receipt, err := w.waitForReceipt(ctx, hash)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("onchain.WaitForReceipt: %w", err)
	}
	return toDomainReceipt(hash, receipt), nil
}

func toDomainReceipt(hash common.Hash, r *types.Receipt) domain.Receipt {
	out := domain.Receipt{
		TxHash:  hash.Hex(),
		Success: r.Status == types.ReceiptStatusSuccessful,
		GasUsed: r.GasUsed,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	if !out.Success {
		out.Reason = "execution reverted"
	}
	return out
}

func (w *Wallet) callUint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	callData, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	result, err := w.client.CallContract(ctx, ethereum.CallMsg{To: &w.token, Data: callData}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	vals, err := erc20ABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", method, vals[0])
	}
	return v, nil
}

func (w *Wallet) signAndSend(ctx context.Context, to common.Address, value *big.Int, gas uint64, data []byte) (*types.Transaction, error) {
	nonce, err := w.client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := w.getGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, to, value, gas, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(w.chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}
	return signed, nil
}

// estimateGas asks the node and adds a 20% buffer; falls back to a conservative limit.
func (w *Wallet) estimateGas(ctx context.Context, to common.Address, value *big.Int, data []byte) uint64 {
	est, err := w.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		slog.Warn("gas estimate failed, using default", "err", err, "limit", defaultGasLimit)
		return defaultGasLimit
	}
	return est * 12 / 10
}

// getGasPrice returns the current gas price, with caching to avoid excessive RPC calls.
func (w *Wallet) getGasPrice(ctx context.Context) (*big.Int, error) {
	w.mu.RLock()
	cached := w.cachedGasWei
	updatedAt := w.gasUpdatedAt
	w.mu.RUnlock()

	if cached != nil && time.Since(updatedAt) < gasPriceUpdateInterval {
		return cached, nil
	}

	price, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		if cached != nil {
			return cached, nil
		}
		return nil, err
	}

	// +10% para entrar antes; copia para no mutar el valor devuelto por el cliente
	buffered := new(big.Int).Mul(price, big.NewInt(11))
	buffered.Div(buffered, big.NewInt(10))

	w.mu.Lock()
	w.cachedGasWei = buffered
	w.gasUpdatedAt = time.Now()
	w.mu.Unlock()

	return buffered, nil
}

// waitForReceipt polls for a transaction receipt until mined or ctx is done.
func (w *Wallet) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		receipt, err := w.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			slog.Debug("receipt poll failed", "tx", txHash.Hex(), "err", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// decodeDescriptor parses the opaque descriptor fields into tx inputs.
func decodeDescriptor(desc domain.TxDescriptor) (common.Address, *big.Int, []byte, error) {
	if !common.IsHexAddress(desc.To) {
		return common.Address{}, nil, nil, fmt.Errorf("invalid to address %q", desc.To)
	}

	valueStr := strings.TrimSpace(desc.Value)
	if valueStr == "" {
		valueStr = "0"
	}
	value, ok := new(big.Int).SetString(valueStr, 0)
	if !ok || value.Sign() < 0 {
		return common.Address{}, nil, nil, fmt.Errorf("invalid value %q", desc.Value)
	}

	dataStr := strings.TrimSpace(desc.Data)
	if dataStr == "" {
		dataStr = "0x"
	}
	data, err := hexutil.Decode(dataStr)
	if err != nil {
		return common.Address{}, nil, nil, fmt.Errorf("invalid data: %w", err)
	}
	return common.HexToAddress(desc.To), value, data, nil
}

// toUnits converts a token amount to base units, truncating extra precision.
func toUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

// fromUnits converts base units to a token amount.
func fromUnits(units *big.Int, decimals int32) decimal.Decimal {
	if units == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(units, -decimals)
}
