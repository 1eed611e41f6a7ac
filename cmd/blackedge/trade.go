package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/blackedge/internal/adapters/onchain"
	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/alejandrodnm/blackedge/internal/execution"
	"github.com/alejandrodnm/blackedge/internal/ports"
	"github.com/shopspring/decimal"
)

// runTrade selecciona la señal del snapshot actual y la lleva a un estado terminal.
func (a *app) runTrade(ctx context.Context, id, outcome, amount string) error {
	if !a.cfg.CanTrade() {
		return errors.New("trading requires BLACKEDGE_PRIVATE_KEY")
	}

	amt, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return fmt.Errorf("invalid -amount %q: %w", amount, err)
	}

	// La ventana de prueba corre desde el arranque del proceso.
	trialCtx, stopTrial := context.WithCancel(ctx)
	defer stopTrial()
	go a.gate.Run(trialCtx)

	snap := a.scanner.RunOnce(ctx)
	sig, ok := snap.Find(id)
	if !ok {
		return fmt.Errorf("signal %q not in the current list (%d signals)", id, snap.Len())
	}

	wallet, err := onchain.Dial(ctx, onchain.Config{
		RPCURL:        a.cfg.Wallet.RPCURL,
		PrivateKeyHex: a.cfg.Wallet.PrivateKey,
		ChainID:       a.cfg.Wallet.ChainID,
		Collateral:    a.cfg.Wallet.Collateral,
	})
	if err != nil {
		return err
	}
	defer wallet.Close()

	var journal ports.TradeJournal
	if a.store != nil {
		journal = a.store
	}

	exec := a.cfg.Execution
	coord := execution.New(execution.Config{
		BalanceTimeout: seconds(exec.BalanceTimeoutSeconds),
		ApproveTimeout: seconds(exec.ApproveTimeoutSeconds),
		BuildTimeout:   seconds(exec.BuildTimeoutSeconds),
		ConfirmTimeout: seconds(exec.ConfirmTimeoutSeconds),
		Spender:        exec.Spender,
	}, a.gate, wallet, a.backend, wallet, journal, a.metrics)

	slog.Info("submitting trade",
		"signal", sig.ID,
		"question", domain.TruncateQuestion(sig.Question, sig.ID, 60),
		"outcome", strings.ToUpper(outcome),
		"amount", amt.String(),
		"wallet", wallet.Address(),
	)

	result, err := coord.Submit(ctx, domain.TradeRequest{
		MarketID: sig.ID,
		Outcome:  domain.Outcome(strings.ToUpper(outcome)),
		Amount:   amt,
		Settings: domain.ExecutionSettings{
			SlippageBps:   exec.SlippageBps,
			MEVProtection: exec.MEVProtection,
			PrivateRoute:  exec.PrivateRoute,
		},
	})

	var terr *domain.TradeError
	if errors.As(err, &terr) && result.State == domain.StateIdle {
		// rechazo previo: no hubo ejecución
		return terr
	}
	a.console.PrintTrade(result)
	if err != nil {
		return fmt.Errorf("trade %s: %w", result.ID, err)
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
