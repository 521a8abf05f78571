package fund_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stakemesh/fundcore/fund"
)

// depositAndRequest funds the user, deposits base units at par, and files a
// withdrawal request for the minted receipts.
func depositAndRequest(t *testing.T, e *testEnv, amount uint64) uint64 {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, e.bank.Mint(ctx, fund.NativeMint, testUser, amount))
	receipts, err := e.ledger.DepositSol(ctx, testUser, amount)
	require.NoError(t, err)

	requestID, err := e.ledger.RequestWithdrawal(testUser, receipts)
	require.NoError(t, err)
	return requestID
}

func TestLedger_Withdraw_FullLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := newTestEnv(t)
	e.initialize(t, fund.InitParams{
		ReceiptTokenDecimals: 0,
		SolCapacity:          1 << 40,
		WithdrawalEnabled:    true,
		WithdrawalFeeRateBps: 50,
	})

	requestID := depositAndRequest(t, e, 10_000)

	enqueued, err := e.ledger.EnqueueWithdrawalBatch(true)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), enqueued)

	require.NoError(t, e.ledger.CompleteWithdrawalBatch(1, 10_000))

	// 50 bps on a 10000 base-unit payout is a 50 unit fee.
	net, err := e.ledger.Withdraw(ctx, testUser, requestID)
	require.NoError(t, err)
	require.Equal(t, uint64(9_950), net)

	require.Equal(t, uint64(9_950), e.bank.Balance(fund.NativeMint, testUser))
	require.Equal(t, uint64(0), e.bank.Balance(testReceiptMint, testUser))

	supply, err := e.bank.Supply(ctx, testReceiptMint)
	require.NoError(t, err)
	require.Equal(t, uint64(0), supply)

	// The fee stays behind in the payout pool.
	rec, err := e.ledger.Fund()
	require.NoError(t, err)
	require.Equal(t, uint64(50), rec.Withdrawals.ReservedFundBaseRemaining)

	// The pop consumed the request; paying it again must refuse.
	_, err = e.ledger.Withdraw(ctx, testUser, requestID)
	require.ErrorIs(t, err, fund.ErrRequestNotFound)
}

func TestLedger_Withdraw_RejectsUncompletedBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := newTestEnv(t)
	e.initialize(t, fund.InitParams{
		ReceiptTokenDecimals: 0,
		SolCapacity:          1 << 40,
		WithdrawalEnabled:    true,
	})

	requestID := depositAndRequest(t, e, 1_000)

	// Not even enqueued yet.
	_, err := e.ledger.Withdraw(ctx, testUser, requestID)
	require.ErrorIs(t, err, fund.ErrBatchNotYetCompleted)

	_, err = e.ledger.EnqueueWithdrawalBatch(true)
	require.NoError(t, err)

	// Enqueued but not completed.
	_, err = e.ledger.Withdraw(ctx, testUser, requestID)
	require.ErrorIs(t, err, fund.ErrBatchNotYetCompleted)
}

func TestLedger_CompleteWithdrawalBatch_Ordering(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.initialize(t, fund.InitParams{
		ReceiptTokenDecimals: 0,
		SolCapacity:          1 << 40,
		WithdrawalEnabled:    true,
	})
	depositAndRequest(t, e, 1_000)

	// Batch 1 has not been enqueued, so nothing is completable.
	require.ErrorIs(t, e.ledger.CompleteWithdrawalBatch(1, 0), fund.ErrBatchNotEnqueued)

	_, err := e.ledger.EnqueueWithdrawalBatch(true)
	require.NoError(t, err)
	depositAndRequest(t, e, 300)
	_, err = e.ledger.EnqueueWithdrawalBatch(true)
	require.NoError(t, err)

	// Two batches are enqueued; completing the second first breaks the
	// cursor.
	require.ErrorIs(t, e.ledger.CompleteWithdrawalBatch(2, 0), fund.ErrBatchOutOfOrder)

	require.NoError(t, e.ledger.CompleteWithdrawalBatch(1, 1_000))
	require.NoError(t, e.ledger.CompleteWithdrawalBatch(2, 300))
	require.ErrorIs(t, e.ledger.CompleteWithdrawalBatch(2, 0), fund.ErrBatchOutOfOrder)
}

func TestLedger_RequestWithdrawal_Guards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := newTestEnv(t)
	e.initialize(t, fund.InitParams{
		ReceiptTokenDecimals: 0,
		SolCapacity:          1 << 40,
	})

	_, err := e.ledger.RequestWithdrawal(testUser, 100)
	require.ErrorIs(t, err, fund.ErrWithdrawalDisabled)

	require.NoError(t, e.ledger.SetWithdrawalEnabled(testAdmin, true))
	require.NoError(t, e.bank.Mint(ctx, fund.NativeMint, testUser, 1_000))
	_, err = e.ledger.DepositSol(ctx, testUser, 1_000)
	require.NoError(t, err)

	for i := 0; i < fund.MaxWithdrawalRequests; i++ {
		_, err = e.ledger.RequestWithdrawal(testUser, 1)
		require.NoError(t, err)
	}
	_, err = e.ledger.RequestWithdrawal(testUser, 1)
	require.ErrorIs(t, err, fund.ErrTooManyPendingRequests)
}

func TestLedger_CancelWithdrawal(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.initialize(t, fund.InitParams{
		ReceiptTokenDecimals: 0,
		SolCapacity:          1 << 40,
		WithdrawalEnabled:    true,
	})

	requestID := depositAndRequest(t, e, 500)

	rec, err := e.ledger.Fund()
	require.NoError(t, err)
	require.Equal(t, uint64(500), rec.Withdrawals.PendingRequestedAmount)

	require.NoError(t, e.ledger.CancelWithdrawal(testUser, requestID))

	rec, err = e.ledger.Fund()
	require.NoError(t, err)
	require.Equal(t, uint64(0), rec.Withdrawals.PendingRequestedAmount)

	require.ErrorIs(t, e.ledger.CancelWithdrawal(testUser, requestID), fund.ErrRequestNotFound)
}

func TestLedger_CancelWithdrawal_RejectsBatchedRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := newTestEnv(t)
	e.initialize(t, fund.InitParams{
		ReceiptTokenDecimals: 0,
		SolCapacity:          1 << 40,
		WithdrawalEnabled:    true,
	})

	requestID := depositAndRequest(t, e, 500)
	_, err := e.ledger.EnqueueWithdrawalBatch(true)
	require.NoError(t, err)

	// The request's batch boundary already closed; the unstake covering
	// it is sized for this request, so cancel must refuse.
	_, err = e.ledger.RequestWithdrawal(testUser, 200)
	require.NoError(t, err)
	require.ErrorIs(t, e.ledger.CancelWithdrawal(testUser, requestID), fund.ErrRequestBatched)

	rec, err := e.ledger.Fund()
	require.NoError(t, err)
	require.Equal(t, uint64(200), rec.Withdrawals.PendingRequestedAmount)

	// The refused request stays payable through the normal batch path.
	require.NoError(t, e.ledger.CompleteWithdrawalBatch(1, 500))
	net, err := e.ledger.Withdraw(ctx, testUser, requestID)
	require.NoError(t, err)
	require.Equal(t, uint64(500), net)
}

func TestLedger_EnqueueWithdrawalBatch_ForcedEmptyIsNoOp(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.initialize(t, fund.InitParams{
		ReceiptTokenDecimals: 0,
		SolCapacity:          1 << 40,
		WithdrawalEnabled:    true,
	})

	// Forcing with nothing pending must not mint a batch id that nothing
	// can ever complete.
	enqueued, err := e.ledger.EnqueueWithdrawalBatch(true)
	require.NoError(t, err)
	require.Equal(t, uint64(0), enqueued)

	rec, err := e.ledger.Fund()
	require.NoError(t, err)
	require.Equal(t, uint64(1), rec.Withdrawals.CurrentBatchID)

	// The next real request lands in batch 1 and completes normally.
	depositAndRequest(t, e, 100)
	enqueued, err = e.ledger.EnqueueWithdrawalBatch(true)
	require.NoError(t, err)
	require.Equal(t, uint64(100), enqueued)
	require.NoError(t, e.ledger.CompleteWithdrawalBatch(1, 100))
}

func TestLedger_EnqueueWithdrawalBatch_Thresholds(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.initialize(t, fund.InitParams{
		ReceiptTokenDecimals: 0,
		SolCapacity:          1 << 40,
		WithdrawalEnabled:    true,
		BatchThreshold: fund.BatchThreshold{
			Amount:          500,
			DurationSeconds: 3600,
		},
	})

	depositAndRequest(t, e, 400)

	enqueued, err := e.ledger.EnqueueWithdrawalBatch(false)
	require.NoError(t, err)
	require.Equal(t, uint64(0), enqueued)

	// Crossing the amount threshold closes the batch.
	depositAndRequest(t, e, 200)
	enqueued, err = e.ledger.EnqueueWithdrawalBatch(false)
	require.NoError(t, err)
	require.Equal(t, uint64(600), enqueued)

	// Below the amount threshold again, but the clock can force it.
	depositAndRequest(t, e, 100)
	enqueued, err = e.ledger.EnqueueWithdrawalBatch(false)
	require.NoError(t, err)
	require.Equal(t, uint64(0), enqueued)

	e.clock.Advance(2 * time.Hour)
	enqueued, err = e.ledger.EnqueueWithdrawalBatch(false)
	require.NoError(t, err)
	require.Equal(t, uint64(100), enqueued)

	rec, err := e.ledger.Fund()
	require.NoError(t, err)
	require.Equal(t, uint64(3), rec.Withdrawals.CurrentBatchID)
}

func TestLedger_Withdraw_FeeMonotonicity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// A higher fee rate never pays out more for the same request.
	var prevNet uint64 = 1 << 62
	for _, feeBps := range []uint16{0, 10, 100, 1_000, 10_000} {
		e := newTestEnv(t)
		e.initialize(t, fund.InitParams{
			ReceiptTokenDecimals: 0,
			SolCapacity:          1 << 40,
			WithdrawalEnabled:    true,
			WithdrawalFeeRateBps: feeBps,
		})

		requestID := depositAndRequest(t, e, 9_973)
		_, err := e.ledger.EnqueueWithdrawalBatch(true)
		require.NoError(t, err)
		require.NoError(t, e.ledger.CompleteWithdrawalBatch(1, 9_973))

		net, err := e.ledger.Withdraw(ctx, testUser, requestID)
		require.NoError(t, err)
		require.LessOrEqual(t, net, prevNet)
		prevNet = net
	}
	// The full-fee endpoint pays nothing.
	require.Equal(t, uint64(0), prevNet)
}
