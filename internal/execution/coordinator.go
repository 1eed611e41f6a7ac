// Package execution drives a single trade from balance check to on-chain confirmation.
//
// State machine:
//
//	Idle → CheckingBalance → {InsufficientBalance | Approving} → Submitting → Confirming → {Success | Failed}
//
// At most one execution is in flight per coordinator. Nothing is retried automatically:
// a failed attempt is terminal and a retry is a fresh Submit.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/blackedge/internal/domain"
	"github.com/alejandrodnm/blackedge/internal/metrics"
	"github.com/alejandrodnm/blackedge/internal/ports"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Config holds the per-stage deadlines and the contract that needs spending allowance.
type Config struct {
	BalanceTimeout time.Duration
	ApproveTimeout time.Duration
	BuildTimeout   time.Duration
	ConfirmTimeout time.Duration

	// Spender is the contract that pulls collateral. Empty skips the allowance step.
	Spender string
}

// DefaultConfig returns the production deadlines.
func DefaultConfig() Config {
	return Config{
		BalanceTimeout: 10 * time.Second,
		ApproveTimeout: 2 * time.Minute,
		BuildTimeout:   10 * time.Second,
		ConfirmTimeout: 3 * time.Minute,
	}
}

// Coordinator is the ExecutionCoordinator. Safe for concurrent use.
type Coordinator struct {
	cfg      Config
	trial    ports.TrialChecker
	balance  ports.BalanceProvider
	builder  ports.TxBuilder
	signer   ports.WalletSigner
	journal  ports.TradeJournal // optional
	metrics  *metrics.Recorder
	validate *validator.Validate
	now      func() time.Time

	mu      sync.Mutex
	current *domain.TradeExecution
}

// New wires a Coordinator. journal and rec may be nil.
func New(
	cfg Config,
	trial ports.TrialChecker,
	balance ports.BalanceProvider,
	builder ports.TxBuilder,
	signer ports.WalletSigner,
	journal ports.TradeJournal,
	rec *metrics.Recorder,
) *Coordinator {
	def := DefaultConfig()
	if cfg.BalanceTimeout <= 0 {
		cfg.BalanceTimeout = def.BalanceTimeout
	}
	if cfg.ApproveTimeout <= 0 {
		cfg.ApproveTimeout = def.ApproveTimeout
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = def.BuildTimeout
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = def.ConfirmTimeout
	}
	return &Coordinator{
		cfg:      cfg,
		trial:    trial,
		balance:  balance,
		builder:  builder,
		signer:   signer,
		journal:  journal,
		metrics:  rec,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Current returns a copy of the latest execution, if any.
func (c *Coordinator) Current() (domain.TradeExecution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.TradeExecution{}, false
	}
	return *c.current, true
}

// Submit runs req to a terminal state and returns it. The error is a *domain.TradeError
// for every outcome other than Success.
//
// Trial, request and single-flight checks reject synchronously without touching any
// collaborator and without creating a new execution.
func (c *Coordinator) Submit(ctx context.Context, req domain.TradeRequest) (domain.TradeExecution, error) {
	if !c.trial.CanExecute() {
		return domain.TradeExecution{State: domain.StateIdle},
			domain.NewTradeError(domain.KindTrialExpired, "trial window is over, upgrade or restart to trade", nil)
	}
	if err := c.checkRequest(req); err != nil {
		return domain.TradeExecution{State: domain.StateIdle}, err
	}

	exec, err := c.begin(req)
	if err != nil {
		return domain.TradeExecution{State: domain.StateIdle}, err
	}
	c.record(ctx, c.snapshot(exec))

	if terr := c.run(ctx, exec); terr != nil {
		return c.snapshot(exec), terr
	}
	return c.snapshot(exec), nil
}

func (c *Coordinator) checkRequest(req domain.TradeRequest) *domain.TradeError {
	if !req.Amount.IsPositive() {
		return domain.NewTradeError(domain.KindInvalidRequest, fmt.Sprintf("amount must be > 0, got %s", req.Amount), nil)
	}
	if err := c.validate.Struct(req); err != nil {
		return domain.NewTradeError(domain.KindInvalidRequest, "invalid request", err)
	}
	return nil
}

// begin claims the single-flight slot and moves the new execution to CheckingBalance.
func (c *Coordinator) begin(req domain.TradeRequest) (*domain.TradeExecution, *domain.TradeError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.current.State.IsActive() {
		return nil, domain.NewTradeError(domain.KindAlreadyInFlight,
			fmt.Sprintf("trade %s is %s", c.current.ID, c.current.State), nil)
	}

	now := c.now()
	exec := &domain.TradeExecution{
		ID:        uuid.NewString(),
		Request:   req,
		State:     domain.StateIdle,
		StartedAt: now,
		UpdatedAt: now,
	}
	c.current = exec
	c.setStateLocked(exec, domain.StateCheckingBalance, nil)
	return exec, nil
}

// run executes the stages. Returns nil only on Success.
func (c *Coordinator) run(ctx context.Context, exec *domain.TradeExecution) *domain.TradeError {
	req := exec.Request

	// CheckingBalance
	bctx, cancel := context.WithTimeout(ctx, c.cfg.BalanceTimeout)
	balance, err := c.balance.Balance(bctx)
	cancel()
	if err != nil {
		return c.fail(ctx, exec, domain.StateFailed,
			domain.NewTradeError(domain.KindBalanceUnavailable, "could not read wallet balance", err))
	}
	if balance.LessThan(req.Amount) {
		return c.fail(ctx, exec, domain.StateInsufficientBalance,
			domain.NewInsufficientBalance(req.Amount, balance))
	}
	c.transition(ctx, exec, domain.StateApproving)

	// Approving
	if err := c.ensureAllowance(ctx, exec); err != nil {
		return c.fail(ctx, exec, domain.StateFailed,
			domain.NewTradeError(domain.KindApprovalRejected, "spending approval was not granted", err))
	}
	c.transition(ctx, exec, domain.StateSubmitting)

	// Submitting
	tctx, cancel := context.WithTimeout(ctx, c.cfg.BuildTimeout)
	desc, err := c.builder.BuildTx(tctx, req)
	cancel()
	if err == nil && strings.TrimSpace(desc.To) == "" {
		err = errors.New("descriptor has no destination")
	}
	if err != nil {
		return c.fail(ctx, exec, domain.StateFailed,
			domain.NewTradeError(domain.KindBuildFailed, "backend could not build the transaction", err))
	}
	c.transition(ctx, exec, domain.StateConfirming)

	// Confirming
	cctx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()

	txHash, err := c.signer.SendTransaction(cctx, desc)
	if err != nil {
		return c.fail(ctx, exec, domain.StateFailed,
			domain.NewTradeError(domain.KindOnChainRevert, "signer did not broadcast the transaction", err))
	}
	c.setTxHash(exec, txHash)

	receipt, err := c.signer.WaitForReceipt(cctx, txHash)
	if err != nil {
		return c.fail(ctx, exec, domain.StateFailed,
			domain.NewTradeError(domain.KindOnChainRevert, fmt.Sprintf("no confirmation for %s", txHash), err))
	}
	if !receipt.Success {
		reason := receipt.Reason
		if reason == "" {
			reason = "transaction reverted"
		}
		return c.fail(ctx, exec, domain.StateFailed,
			domain.NewTradeError(domain.KindOnChainRevert, fmt.Sprintf("%s in block %d", reason, receipt.BlockNumber), nil))
	}

	c.transition(ctx, exec, domain.StateSuccess)
	return nil
}

// ensureAllowance asks the signer for approval only when the current allowance is short.
func (c *Coordinator) ensureAllowance(ctx context.Context, exec *domain.TradeExecution) error {
	if c.cfg.Spender == "" {
		return nil
	}
	actx, cancel := context.WithTimeout(ctx, c.cfg.ApproveTimeout)
	defer cancel()

	allowance, err := c.signer.Allowance(actx, c.cfg.Spender)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}
	if !allowance.LessThan(exec.Request.Amount) {
		return nil
	}
	slog.Info("requesting spending approval",
		"trade_id", exec.ID,
		"spender", c.cfg.Spender,
		"amount", exec.Request.Amount.String(),
	)
	return c.signer.Approve(actx, c.cfg.Spender, exec.Request.Amount)
}

func (c *Coordinator) fail(ctx context.Context, exec *domain.TradeExecution, state domain.TradeState, terr *domain.TradeError) *domain.TradeError {
	c.mu.Lock()
	c.setStateLocked(exec, state, terr)
	snap := *exec
	c.mu.Unlock()

	slog.Warn("trade failed",
		"trade_id", exec.ID,
		"state", state,
		"kind", terr.Kind,
		"err", terr,
	)
	c.record(ctx, snap)
	return terr
}

func (c *Coordinator) transition(ctx context.Context, exec *domain.TradeExecution, to domain.TradeState) {
	c.mu.Lock()
	c.setStateLocked(exec, to, nil)
	snap := *exec
	c.mu.Unlock()

	c.record(ctx, snap)
}

func (c *Coordinator) setStateLocked(exec *domain.TradeExecution, to domain.TradeState, terr *domain.TradeError) {
	if !domain.CanTransition(exec.State, to) {
		slog.Error("invalid trade transition", "trade_id", exec.ID, "from", exec.State, "to", to)
	}
	slog.Info("trade state",
		"trade_id", exec.ID,
		"market_id", exec.Request.MarketID,
		"from", exec.State,
		"to", to,
	)
	exec.State = to
	exec.Err = terr
	exec.UpdatedAt = c.now()
}

func (c *Coordinator) setTxHash(exec *domain.TradeExecution, txHash string) {
	c.mu.Lock()
	exec.TxHash = txHash
	exec.UpdatedAt = c.now()
	c.mu.Unlock()
	slog.Info("transaction broadcast", "trade_id", exec.ID, "tx", txHash)
}

// record journals the transition and, on terminal states, counts it.
func (c *Coordinator) record(ctx context.Context, snap domain.TradeExecution) {
	if snap.State.IsTerminal() {
		kind := ""
		if snap.Err != nil {
			kind = string(snap.Err.Kind)
		}
		c.metrics.RecordTrade(string(snap.State), kind)
	}
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordTrade(context.WithoutCancel(ctx), snap); err != nil {
		slog.Warn("trade journal error", "trade_id", snap.ID, "err", err)
	}
}

func (c *Coordinator) snapshot(exec *domain.TradeExecution) domain.TradeExecution {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *exec
}
