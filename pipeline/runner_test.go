package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/stakemesh/fundcore/fund"
	"github.com/stakemesh/fundcore/pipeline"
	"github.com/stakemesh/fundcore/pricing"
	"github.com/stakemesh/fundcore/reward"
	"github.com/stakemesh/fundcore/store/memstore"
	"github.com/stakemesh/fundcore/tokenledger"
)

func testKey(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	k[31] = b
	return k
}

var (
	testNamespace   = testKey(0x10)
	testReceiptMint = testKey(0x20)
	testAdmin       = testKey(0x30)
	testUser        = testKey(0x40)
	testTokenMint   = testKey(0x50)
)

type testEnv struct {
	runner  *pipeline.Runner
	fund    *fund.Ledger
	rewards *reward.Ledger
	bank    *tokenledger.InMemory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memstore.New()
	bank := tokenledger.NewInMemory()

	prices, err := pricing.New(pricing.Config{
		Logger:  logger,
		Sources: []pricing.Source{pricing.MockSource{}},
	})
	require.NoError(t, err)

	fundLedger, err := fund.New(fund.Config{
		Logger:           logger,
		Store:            st,
		Tokens:           bank,
		Prices:           prices,
		Namespace:        testNamespace,
		ReceiptTokenMint: testReceiptMint,
	})
	require.NoError(t, err)

	rewardLedger, err := reward.New(reward.Config{
		Logger:           logger,
		Store:            st,
		Tokens:           bank,
		Namespace:        testNamespace,
		ReceiptTokenMint: testReceiptMint,
	})
	require.NoError(t, err)

	runner, err := pipeline.NewRunner(pipeline.Config{
		Logger:  logger,
		Fund:    fundLedger,
		Rewards: rewardLedger,
	})
	require.NoError(t, err)

	return &testEnv{runner: runner, fund: fundLedger, rewards: rewardLedger, bank: bank}
}

// initializeFund runs the Initialize command through the pipeline and
// whitelists one token at a 1:1 price.
func initializeFund(t *testing.T, e *testEnv) {
	t.Helper()

	e.runner.Submit(pipeline.Initialize{Params: fund.InitParams{
		Admin:                testAdmin,
		ReceiptTokenDecimals: 0,
		SolCapacity:          1 << 40,
		WithdrawalEnabled:    true,
	}})
	res, err := e.runner.RunOnce(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, pipeline.KindInitialize, res.Kind)
	require.False(t, e.runner.Pending())

	require.NoError(t, e.fund.AddSupportedToken(testAdmin, fund.SupportedToken{
		Mint:               testTokenMint,
		Decimals:           0,
		PricingSource:      pricing.SourceRef{Kind: pricing.SourceMock, Mint: testTokenMint},
		CapacityAmount:     1 << 40,
		OneTokenAsBaseUnit: 1,
	}))
}

func TestRunner_RunOnce_NoCommand(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	_, err := e.runner.RunOnce(context.Background(), 1)
	require.ErrorIs(t, err, pipeline.ErrNoCommand)
}

func TestRunner_WithdrawalBatchChain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := newTestEnv(t)
	initializeFund(t, e)

	require.NoError(t, e.bank.Mint(ctx, fund.NativeMint, testUser, 1000))
	receipts, err := e.fund.DepositSol(ctx, testUser, 1000)
	require.NoError(t, err)

	_, err = e.fund.Stake(testTokenMint, 1000)
	require.NoError(t, err)

	_, err = e.fund.RequestWithdrawal(testUser, receipts)
	require.NoError(t, err)

	// One command per run: enqueue, then unstake, then claim-and-complete.
	e.runner.Submit(pipeline.EnqueueWithdrawalBatch{Forced: true, Mint: testTokenMint})

	res, err := e.runner.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, pipeline.KindEnqueueWithdrawalBatch, res.Kind)
	require.Equal(t, uint64(1000), res.Amount)
	require.True(t, e.runner.Pending())

	res, err = e.runner.RunOnce(ctx, 11)
	require.NoError(t, err)
	require.Equal(t, pipeline.KindUnstake, res.Kind)
	require.Equal(t, uint64(1000), res.Amount)
	require.True(t, e.runner.Pending())

	res, err = e.runner.RunOnce(ctx, 12)
	require.NoError(t, err)
	require.Equal(t, pipeline.KindClaimUnstaked, res.Kind)
	require.Equal(t, uint64(1000), res.Amount)
	require.False(t, e.runner.Pending())

	// The chain completed batch 1, so the user's withdrawal pays out.
	net, err := e.fund.Withdraw(ctx, testUser, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), net)
}

func TestRunner_StakeNormalizeChain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	normalizedMint := testKey(0x60)

	e := newTestEnv(t)
	initializeFund(t, e)
	require.NoError(t, e.fund.AddSupportedToken(testAdmin, fund.SupportedToken{
		Mint:               normalizedMint,
		Decimals:           0,
		PricingSource:      pricing.SourceRef{Kind: pricing.SourceMock, Mint: normalizedMint},
		CapacityAmount:     1 << 40,
		OneTokenAsBaseUnit: 2,
	}))

	require.NoError(t, e.bank.Mint(ctx, fund.NativeMint, testUser, 1000))
	_, err := e.fund.DepositSol(ctx, testUser, 1000)
	require.NoError(t, err)

	e.runner.Submit(pipeline.Stake{
		Mint:        testTokenMint,
		BaseAmount:  1000,
		NormalizeTo: normalizedMint,
	})

	res, err := e.runner.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, pipeline.KindStake, res.Kind)
	require.True(t, e.runner.Pending())

	res, err = e.runner.RunOnce(ctx, 11)
	require.NoError(t, err)
	require.Equal(t, pipeline.KindNormalize, res.Kind)
	require.Equal(t, uint64(500), res.Amount)
	require.False(t, e.runner.Pending())

	rec, err := e.fund.Fund()
	require.NoError(t, err)
	require.Equal(t, uint64(0), rec.SupportedToken(testTokenMint).OperationReservedAmount)
	require.Equal(t, uint64(500), rec.SupportedToken(normalizedMint).OperationReservedAmount)
}

func TestRunner_Harvest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := newTestEnv(t)
	initializeFund(t, e)

	rewardID, err := e.rewards.AddReward(testKey(0x70), 9)
	require.NoError(t, err)
	poolID, err := e.rewards.AddRewardPool("yield", 0, false, 1)
	require.NoError(t, err)

	e.runner.Submit(pipeline.Harvest{PoolID: poolID, RewardID: rewardID, Amount: 999})
	res, err := e.runner.RunOnce(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, pipeline.KindHarvest, res.Kind)

	rec, err := e.rewards.Reward()
	require.NoError(t, err)
	s := rec.RewardPools[0].Settlements[0]
	require.Equal(t, uint64(999), s.SettledAmount)
	require.Equal(t, uint64(42), s.SettledSlot)
}

func TestRunner_ClaimUnstakedResumesAfterCompletionFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := newTestEnv(t)
	initializeFund(t, e)

	require.NoError(t, e.bank.Mint(ctx, fund.NativeMint, testUser, 1000))
	_, err := e.fund.DepositSol(ctx, testUser, 1000)
	require.NoError(t, err)
	_, err = e.fund.Stake(testTokenMint, 1000)
	require.NoError(t, err)

	// Two enqueued batches: 400 receipts in batch 1, 600 in batch 2.
	_, err = e.fund.RequestWithdrawal(testUser, 400)
	require.NoError(t, err)
	_, err = e.fund.EnqueueWithdrawalBatch(true)
	require.NoError(t, err)
	_, err = e.fund.RequestWithdrawal(testUser, 600)
	require.NoError(t, err)
	_, err = e.fund.EnqueueWithdrawalBatch(true)
	require.NoError(t, err)

	// Fund batch 2 first. The claim lands, but completing batch 2 before
	// batch 1 breaks the ordering cursor.
	e.runner.Submit(pipeline.Unstake{Mint: testTokenMint, TokenAmount: 600, BatchID: 2})
	_, err = e.runner.RunOnce(ctx, 10)
	require.NoError(t, err)
	_, err = e.runner.RunOnce(ctx, 11)
	require.ErrorIs(t, err, fund.ErrBatchOutOfOrder)
	require.True(t, e.runner.Pending())

	rec, err := e.fund.Fund()
	require.NoError(t, err)
	require.Equal(t, uint64(600), rec.SolOperationReserved)
	require.Equal(t, uint64(0), rec.SupportedToken(testTokenMint).RebalancingAmount)

	// A retry re-attempts only the completion; the claim bookkeeping is
	// not replayed.
	_, err = e.runner.RunOnce(ctx, 12)
	require.ErrorIs(t, err, fund.ErrBatchOutOfOrder)
	require.True(t, e.runner.Pending())

	rec, err = e.fund.Fund()
	require.NoError(t, err)
	require.Equal(t, uint64(600), rec.SolOperationReserved)
	require.Equal(t, uint64(0), rec.SupportedToken(testTokenMint).RebalancingAmount)

	// Once batch 1 completes, the pending resume point finishes batch 2.
	err = e.fund.Unstake(testTokenMint, 400)
	require.NoError(t, err)
	_, err = e.fund.ClaimUnstaked(testTokenMint, 400)
	require.NoError(t, err)
	require.NoError(t, e.fund.CompleteWithdrawalBatch(1, 400))

	res, err := e.runner.RunOnce(ctx, 13)
	require.NoError(t, err)
	require.Equal(t, pipeline.KindClaimUnstaked, res.Kind)
	require.Equal(t, uint64(600), res.Amount)
	require.False(t, e.runner.Pending())

	rec, err = e.fund.Fund()
	require.NoError(t, err)
	require.Equal(t, uint64(2), rec.Withdrawals.LastCompletedBatchID)
	require.Equal(t, uint64(1000), rec.Withdrawals.ReservedFundBaseRemaining)

	// Both requests pay out in full.
	net, err := e.fund.Withdraw(ctx, testUser, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(400), net)
	net, err = e.fund.Withdraw(ctx, testUser, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(600), net)
}

func TestRunner_FailedCommandStaysPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := newTestEnv(t)
	initializeFund(t, e)

	// Staking an unsupported mint fails; the command must stay pending so
	// the caller can retry or replace it.
	e.runner.Submit(pipeline.Stake{Mint: testKey(0x77), BaseAmount: 10})
	_, err := e.runner.RunOnce(ctx, 10)
	require.ErrorIs(t, err, fund.ErrUnsupportedToken)
	require.True(t, e.runner.Pending())
}

func TestOperationCommandEntry_RoundTrip(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	initializeFund(t, e)

	e.runner.Submit(pipeline.Stake{Mint: testTokenMint, BaseAmount: 500})
	entry, err := e.runner.PendingEntry(&pipeline.Context{Fund: e.fund, Rewards: e.rewards})
	require.NoError(t, err)
	require.Equal(t, uint8(pipeline.KindStake), entry.Kind)
	require.Equal(t, []solana.PublicKey{e.fund.FundKey(), testTokenMint}, entry.RequiredAccounts)

	data, err := entry.Serialize()
	require.NoError(t, err)

	again, err := pipeline.DeserializeEntry(data)
	require.NoError(t, err)
	require.Equal(t, entry, again)
}
