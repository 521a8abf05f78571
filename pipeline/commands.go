package pipeline

import (
	"github.com/gagliardetto/solana-go"

	"github.com/stakemesh/fundcore/fund"
)

// Initialize creates the fund and reward records.
type Initialize struct {
	Params fund.InitParams
}

func (Initialize) Kind() Kind { return KindInitialize }

func (i Initialize) RequiredAccounts(c *Context) ([]solana.PublicKey, error) {
	return []solana.PublicKey{c.Fund.FundKey(), c.Rewards.RewardKey()}, nil
}

func (i Initialize) Execute(c *Context) (*Result, Command, error) {
	if err := c.Fund.Initialize(i.Params); err != nil {
		return nil, nil, err
	}
	if err := c.Rewards.Initialize(); err != nil {
		return nil, nil, err
	}
	return &Result{Kind: KindInitialize}, nil, nil
}

// EnqueueWithdrawalBatch closes the current batch boundary and, when
// anything was enqueued, chains an unstake sized to cover the batch's
// base-unit obligation from the given token.
type EnqueueWithdrawalBatch struct {
	Forced bool

	// Mint is the token unstaked to fund the batch.
	Mint solana.PublicKey
}

func (EnqueueWithdrawalBatch) Kind() Kind { return KindEnqueueWithdrawalBatch }

func (e EnqueueWithdrawalBatch) RequiredAccounts(c *Context) ([]solana.PublicKey, error) {
	return []solana.PublicKey{c.Fund.FundKey()}, nil
}

func (e EnqueueWithdrawalBatch) Execute(c *Context) (*Result, Command, error) {
	enqueued, err := c.Fund.EnqueueWithdrawalBatch(e.Forced)
	if err != nil {
		return nil, nil, err
	}
	res := &Result{Kind: KindEnqueueWithdrawalBatch, Amount: enqueued}
	if enqueued == 0 {
		return res, nil, nil
	}

	rec, err := c.Fund.Fund()
	if err != nil {
		return nil, nil, err
	}
	batchID := rec.Withdrawals.CurrentBatchID - 1

	baseDue, err := c.Fund.ReceiptBaseValue(enqueued)
	if err != nil {
		return nil, nil, err
	}
	tokenAmount, err := c.Fund.TokenAmountForBase(e.Mint, baseDue)
	if err != nil {
		return nil, nil, err
	}
	return res, Unstake{Mint: e.Mint, TokenAmount: tokenAmount, BatchID: batchID}, nil
}

// Stake deploys idle base units into a supported token, optionally chaining
// a fold into a normalized pool token.
type Stake struct {
	Mint       solana.PublicKey
	BaseAmount uint64

	// NormalizeTo, when set, folds the staked tokens into this mint next.
	NormalizeTo solana.PublicKey
}

func (Stake) Kind() Kind { return KindStake }

func (s Stake) RequiredAccounts(c *Context) ([]solana.PublicKey, error) {
	return []solana.PublicKey{c.Fund.FundKey(), s.Mint}, nil
}

func (s Stake) Execute(c *Context) (*Result, Command, error) {
	tokenAmount, err := c.Fund.Stake(s.Mint, s.BaseAmount)
	if err != nil {
		return nil, nil, err
	}
	res := &Result{Kind: KindStake, Mint: s.Mint, Amount: tokenAmount}
	if s.NormalizeTo.IsZero() {
		return res, nil, nil
	}
	return res, Normalize{FromMint: s.Mint, ToMint: s.NormalizeTo, TokenAmount: tokenAmount}, nil
}

// Unstake queues deployed token balance for redemption, chaining the claim
// that recognizes it once landed.
type Unstake struct {
	Mint        solana.PublicKey
	TokenAmount uint64

	// BatchID, when nonzero, is the withdrawal batch the eventual claim
	// completes.
	BatchID uint64
}

func (Unstake) Kind() Kind { return KindUnstake }

func (u Unstake) RequiredAccounts(c *Context) ([]solana.PublicKey, error) {
	return []solana.PublicKey{c.Fund.FundKey(), u.Mint}, nil
}

func (u Unstake) Execute(c *Context) (*Result, Command, error) {
	if err := c.Fund.Unstake(u.Mint, u.TokenAmount); err != nil {
		return nil, nil, err
	}
	res := &Result{Kind: KindUnstake, Mint: u.Mint, Amount: u.TokenAmount}
	return res, ClaimUnstaked{Mint: u.Mint, TokenAmount: u.TokenAmount, BatchID: u.BatchID}, nil
}

// ClaimUnstaked recognizes a landed redemption and, when tied to a batch,
// completes that withdrawal batch with the recovered base units.
type ClaimUnstaked struct {
	Mint        solana.PublicKey
	TokenAmount uint64
	BatchID     uint64

	// Claimed records that the claim bookkeeping already persisted; a
	// retry then resumes at the batch completion instead of replaying
	// the claim.
	Claimed       bool
	ClaimedAmount uint64
}

func (ClaimUnstaked) Kind() Kind { return KindClaimUnstaked }

func (cl ClaimUnstaked) RequiredAccounts(c *Context) ([]solana.PublicKey, error) {
	return []solana.PublicKey{c.Fund.FundKey(), cl.Mint}, nil
}

func (cl ClaimUnstaked) Execute(c *Context) (*Result, Command, error) {
	baseAmount := cl.ClaimedAmount
	if !cl.Claimed {
		var err error
		baseAmount, err = c.Fund.ClaimUnstaked(cl.Mint, cl.TokenAmount)
		if err != nil {
			return nil, nil, err
		}
	}
	if cl.BatchID != 0 {
		if err := c.Fund.CompleteWithdrawalBatch(cl.BatchID, baseAmount); err != nil {
			cl.Claimed = true
			cl.ClaimedAmount = baseAmount
			return nil, cl, err
		}
	}
	return &Result{Kind: KindClaimUnstaked, Mint: cl.Mint, Amount: baseAmount}, nil, nil
}

// Normalize folds deployed balance from one supported token into another at
// the cached prices.
type Normalize struct {
	FromMint    solana.PublicKey
	ToMint      solana.PublicKey
	TokenAmount uint64
}

func (Normalize) Kind() Kind { return KindNormalize }

func (n Normalize) RequiredAccounts(c *Context) ([]solana.PublicKey, error) {
	return []solana.PublicKey{c.Fund.FundKey(), n.FromMint, n.ToMint}, nil
}

func (n Normalize) Execute(c *Context) (*Result, Command, error) {
	toAmount, err := c.Fund.Normalize(n.FromMint, n.ToMint, n.TokenAmount)
	if err != nil {
		return nil, nil, err
	}
	return &Result{Kind: KindNormalize, Mint: n.ToMint, Amount: toAmount}, nil, nil
}

// Denormalize unfolds normalized pool balance back into an individual
// supported token.
type Denormalize struct {
	FromMint    solana.PublicKey
	ToMint      solana.PublicKey
	TokenAmount uint64
}

func (Denormalize) Kind() Kind { return KindDenormalize }

func (d Denormalize) RequiredAccounts(c *Context) ([]solana.PublicKey, error) {
	return []solana.PublicKey{c.Fund.FundKey(), d.FromMint, d.ToMint}, nil
}

func (d Denormalize) Execute(c *Context) (*Result, Command, error) {
	toAmount, err := c.Fund.Normalize(d.FromMint, d.ToMint, d.TokenAmount)
	if err != nil {
		return nil, nil, err
	}
	return &Result{Kind: KindDenormalize, Mint: d.ToMint, Amount: toAmount}, nil, nil
}

// Delegate hands deployed token balance to an external operator on the
// token ledger.
type Delegate struct {
	Mint        solana.PublicKey
	Delegate    solana.PublicKey
	TokenAmount uint64
}

func (Delegate) Kind() Kind { return KindDelegate }

func (d Delegate) RequiredAccounts(c *Context) ([]solana.PublicKey, error) {
	return []solana.PublicKey{c.Fund.FundKey(), d.Mint, d.Delegate}, nil
}

func (d Delegate) Execute(c *Context) (*Result, Command, error) {
	if err := c.Fund.Delegate(c.Context, d.Mint, d.Delegate, d.TokenAmount); err != nil {
		return nil, nil, err
	}
	return &Result{Kind: KindDelegate, Mint: d.Mint, Amount: d.TokenAmount}, nil, nil
}

// Undelegate pulls delegated balance back into the fund treasury.
type Undelegate struct {
	Mint        solana.PublicKey
	Delegate    solana.PublicKey
	TokenAmount uint64
}

func (Undelegate) Kind() Kind { return KindUndelegate }

func (u Undelegate) RequiredAccounts(c *Context) ([]solana.PublicKey, error) {
	return []solana.PublicKey{c.Fund.FundKey(), u.Mint, u.Delegate}, nil
}

func (u Undelegate) Execute(c *Context) (*Result, Command, error) {
	if err := c.Fund.Undelegate(c.Context, u.Mint, u.Delegate, u.TokenAmount); err != nil {
		return nil, nil, err
	}
	return &Result{Kind: KindUndelegate, Mint: u.Mint, Amount: u.TokenAmount}, nil, nil
}

// Harvest settles accrued yield into a reward pool at the run's slot.
type Harvest struct {
	PoolID   uint64
	RewardID uint64
	Amount   uint64
}

func (Harvest) Kind() Kind { return KindHarvest }

func (h Harvest) RequiredAccounts(c *Context) ([]solana.PublicKey, error) {
	return []solana.PublicKey{c.Rewards.RewardKey()}, nil
}

func (h Harvest) Execute(c *Context) (*Result, Command, error) {
	if err := c.Rewards.SettleReward(h.PoolID, h.RewardID, h.Amount, c.Slot); err != nil {
		return nil, nil, err
	}
	return &Result{Kind: KindHarvest, Amount: h.Amount}, nil, nil
}
