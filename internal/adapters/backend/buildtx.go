package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrInvalidDescriptor indica que el backend devolvió una transacción inutilizable.
var ErrInvalidDescriptor = errors.New("invalid transaction descriptor")

// BuildTx pide al backend la transacción sin firmar para el trade.
// Un único intento: el coordinador nunca reintenta ni fabrica la transacción.
func (c *Client) BuildTx(ctx context.Context, req domain.TradeRequest) (domain.TxDescriptor, error) {
	body := buildTxRequest{
		OpportunityID: req.MarketID,
		Outcome:       string(req.Outcome),
		Amount:        json.Number(req.Amount.String()),
		Settings:      req.Settings,
	}

	var resp buildTxResponse
	if err := c.post(ctx, buildTxPath, body, &resp); err != nil {
		return domain.TxDescriptor{}, fmt.Errorf("backend.BuildTx: %w", err)
	}

	desc, err := toDescriptor(resp)
	if err != nil {
		return domain.TxDescriptor{}, fmt.Errorf("backend.BuildTx: %w", err)
	}
	return desc, nil
}

// toDescriptor valida la respuesta y la convierte al descriptor de dominio.
func toDescriptor(resp buildTxResponse) (domain.TxDescriptor, error) {
	to := strings.TrimSpace(resp.To)
	if !common.IsHexAddress(to) {
		return domain.TxDescriptor{}, fmt.Errorf("%w: bad to address %q", ErrInvalidDescriptor, resp.To)
	}

	data := strings.TrimSpace(resp.Data)
	if data == "" {
		data = "0x"
	}
	if _, err := hexutil.Decode(data); err != nil {
		return domain.TxDescriptor{}, fmt.Errorf("%w: bad calldata: %v", ErrInvalidDescriptor, err)
	}

	value := string(resp.Value)
	if value == "" {
		value = "0"
	}
	if v, ok := new(big.Int).SetString(value, 0); !ok || v.Sign() < 0 {
		return domain.TxDescriptor{}, fmt.Errorf("%w: bad value %q", ErrInvalidDescriptor, value)
	}

	gas, err := parseGasLimit(string(resp.GasLimit))
	if err != nil {
		return domain.TxDescriptor{}, fmt.Errorf("%w: bad gasLimit: %v", ErrInvalidDescriptor, err)
	}

	return domain.TxDescriptor{
		To:       common.HexToAddress(to).Hex(),
		Data:     data,
		Value:    value,
		GasLimit: gas,
	}, nil
}

// parseGasLimit acepta decimal o hex. 0 significa "que lo estime el firmante".
func parseGasLimit(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return hexutil.DecodeUint64(strings.ToLower(s))
	}
	return strconv.ParseUint(s, 10, 64)
}
