package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stakemesh/fundcore/fund"
	"github.com/stakemesh/fundcore/internal/metrics"
	"github.com/stakemesh/fundcore/reward"
)

var (
	ErrLoggerRequired  = errors.New("logger is required")
	ErrFundRequired    = errors.New("fund ledger is required")
	ErrRewardsRequired = errors.New("reward ledger is required")
	ErrNoCommand       = errors.New("no command pending")
)

// Context is what one command execution sees.
type Context struct {
	Context context.Context
	Log     *slog.Logger
	Fund    *fund.Ledger
	Rewards *reward.Ledger

	// Slot is the run's slot, stamped by the caller.
	Slot uint64
}

type Config struct {
	Logger  *slog.Logger
	Fund    *fund.Ledger
	Rewards *reward.Ledger
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return ErrLoggerRequired
	}
	if c.Fund == nil {
		return ErrFundRequired
	}
	if c.Rewards == nil {
		return ErrRewardsRequired
	}
	return nil
}

// Runner executes at most one command per operator-run invocation,
// threading each command's follow-up to the next invocation.
type Runner struct {
	log     *slog.Logger
	fund    *fund.Ledger
	rewards *reward.Ledger
	pending Command
}

func NewRunner(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Runner{
		log:     cfg.Logger,
		fund:    cfg.Fund,
		rewards: cfg.Rewards,
	}, nil
}

// Submit replaces the pending command. The previous chain, if any, is
// abandoned.
func (r *Runner) Submit(cmd Command) {
	r.pending = cmd
}

// Pending reports whether a command awaits the next run.
func (r *Runner) Pending() bool { return r.pending != nil }

// PendingEntry serializes the pending command's hand-off descriptor, or nil
// when the chain is drained.
func (r *Runner) PendingEntry(rctx *Context) (*OperationCommandEntry, error) {
	if r.pending == nil {
		return nil, nil
	}
	return NewEntry(r.pending, rctx)
}

// RunOnce executes exactly one command. The command's follow-up, if any,
// becomes the new pending command. A failed command stays pending so the
// caller can retry; a failed command that hands back a follow-up anyway has
// persisted partial work, and the follow-up replaces it as the resume point.
func (r *Runner) RunOnce(ctx context.Context, slot uint64) (*Result, error) {
	if r.pending == nil {
		return nil, ErrNoCommand
	}

	cmd := r.pending
	rctx := &Context{
		Context: ctx,
		Log:     r.log,
		Fund:    r.fund,
		Rewards: r.rewards,
		Slot:    slot,
	}

	res, next, err := cmd.Execute(rctx)
	if err != nil {
		metrics.CommandErrors.WithLabelValues(cmd.Kind().String()).Inc()
		if next != nil {
			r.pending = next
		}
		return nil, fmt.Errorf("executing %s: %w", cmd.Kind(), err)
	}
	r.pending = next

	r.log.Info("Executed command",
		"kind", cmd.Kind().String(),
		"slot", slot,
		"chained", next != nil,
	)
	metrics.CommandsExecuted.WithLabelValues(cmd.Kind().String()).Inc()
	return res, nil
}
