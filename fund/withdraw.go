package fund

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/stakemesh/fundcore/internal/arith"
	"github.com/stakemesh/fundcore/internal/metrics"
)

// RequestWithdrawal appends a withdrawal request tagged with the current,
// not-yet-processed batch id. The request joins a batch when the next
// EnqueueWithdrawalBatch boundary passes.
func (l *Ledger) RequestWithdrawal(user solana.PublicKey, receiptTokenAmount uint64) (uint64, error) {
	fund, err := l.loadFund()
	if err != nil {
		return 0, err
	}
	if !fund.Withdrawals.WithdrawalEnabled {
		return 0, ErrWithdrawalDisabled
	}

	userKey, userRec, err := l.loadUser(user)
	if err != nil {
		return 0, err
	}
	if len(userRec.WithdrawalRequests) >= MaxWithdrawalRequests {
		return 0, fmt.Errorf("%w: %d outstanding", ErrTooManyPendingRequests, len(userRec.WithdrawalRequests))
	}

	pending, err := arith.Add(fund.Withdrawals.PendingRequestedAmount, receiptTokenAmount)
	if err != nil {
		return 0, err
	}

	requestID := userRec.NextRequestID
	userRec.NextRequestID++
	userRec.WithdrawalRequests = append(userRec.WithdrawalRequests, WithdrawalRequest{
		BatchID:            fund.Withdrawals.CurrentBatchID,
		RequestID:          requestID,
		ReceiptTokenAmount: receiptTokenAmount,
		CreatedAt:          l.clock.Now().Unix(),
	})
	fund.Withdrawals.PendingRequestedAmount = pending

	if err := l.saveUser(userKey, userRec); err != nil {
		return 0, err
	}
	if err := l.saveFund(fund); err != nil {
		return 0, err
	}

	l.log.Info("Requested withdrawal",
		"fund", l.fundKey,
		"user", user,
		"requestId", requestID,
		"batchId", fund.Withdrawals.CurrentBatchID,
		"receiptAmount", receiptTokenAmount,
	)
	return requestID, nil
}

// CancelWithdrawal pops a request whose batch has not been enqueued yet and
// returns its receipt amount to the user's disposal. Once the batch boundary
// closes the request can only be settled through Withdraw.
func (l *Ledger) CancelWithdrawal(user solana.PublicKey, requestID uint64) error {
	fund, err := l.loadFund()
	if err != nil {
		return err
	}

	userKey, userRec, err := l.loadUser(user)
	if err != nil {
		return err
	}
	idx, req := userRec.request(requestID)
	if req == nil {
		return fmt.Errorf("%w: request %d", ErrRequestNotFound, requestID)
	}

	if req.BatchID < fund.Withdrawals.CurrentBatchID {
		// Its batch is already enqueued; the unstake covering it is in
		// flight and sized for this request.
		return fmt.Errorf("%w: request %d is in batch %d", ErrRequestBatched, requestID, req.BatchID)
	}
	fund.Withdrawals.PendingRequestedAmount, err = arith.Sub(fund.Withdrawals.PendingRequestedAmount, req.ReceiptTokenAmount)
	if err != nil {
		return err
	}
	userRec.WithdrawalRequests = append(userRec.WithdrawalRequests[:idx], userRec.WithdrawalRequests[idx+1:]...)

	if err := l.saveUser(userKey, userRec); err != nil {
		return err
	}
	if err := l.saveFund(fund); err != nil {
		return err
	}

	l.log.Info("Cancelled withdrawal request",
		"fund", l.fundKey,
		"user", user,
		"requestId", requestID,
	)
	return nil
}

// EnqueueWithdrawalBatch closes the current batch boundary when the
// aggregate amount threshold or the duration threshold is exceeded, or when
// forced. Returns the aggregated receipt amount enqueued (zero when below
// both thresholds).
func (l *Ledger) EnqueueWithdrawalBatch(forced bool) (uint64, error) {
	fund, err := l.loadFund()
	if err != nil {
		return 0, err
	}

	w := &fund.Withdrawals
	now := l.clock.Now().Unix()

	amountDue := w.BatchThreshold.Amount > 0 && w.PendingRequestedAmount >= w.BatchThreshold.Amount
	durationDue := w.BatchThreshold.DurationSeconds > 0 &&
		now-w.LastBatchEnqueuedAt >= int64(w.BatchThreshold.DurationSeconds)
	if !forced && !amountDue && !durationDue {
		return 0, nil
	}
	// Closing an empty boundary would mint a batch id nothing can ever
	// complete, wedging the strictly-ordered completion cursor.
	if w.PendingRequestedAmount == 0 {
		return 0, nil
	}

	batchID := w.CurrentBatchID
	enqueued := w.PendingRequestedAmount
	w.CurrentBatchID++
	w.PendingRequestedAmount = 0
	w.LastBatchEnqueuedAt = now

	if err := l.saveFund(fund); err != nil {
		return 0, err
	}

	l.log.Info("Enqueued withdrawal batch",
		"fund", l.fundKey,
		"batchId", batchID,
		"receiptAmount", enqueued,
		"forced", forced,
	)
	metrics.WithdrawalBatches.Inc()
	return enqueued, nil
}

// CompleteWithdrawalBatch funds the reserved payout pool for the next
// enqueued batch and advances the completion cursor. Batches complete
// strictly in order; a batch that never completes keeps user withdrawals
// failing with ErrBatchNotYetCompleted.
func (l *Ledger) CompleteWithdrawalBatch(batchID uint64, baseAmount uint64) error {
	fund, err := l.loadFund()
	if err != nil {
		return err
	}

	w := &fund.Withdrawals
	if batchID != w.LastCompletedBatchID+1 {
		return fmt.Errorf("%w: completing %d, last completed %d", ErrBatchOutOfOrder, batchID, w.LastCompletedBatchID)
	}
	if batchID >= w.CurrentBatchID {
		return fmt.Errorf("%w: batch %d", ErrBatchNotEnqueued, batchID)
	}

	// Earmarked base units move from the operating reserve into the
	// payout pool.
	fund.SolOperationReserved, err = arith.Sub(fund.SolOperationReserved, baseAmount)
	if err != nil {
		return err
	}
	w.ReservedFundBaseRemaining, err = arith.Add(w.ReservedFundBaseRemaining, baseAmount)
	if err != nil {
		return err
	}
	w.LastCompletedBatchID = batchID

	if err := l.saveFund(fund); err != nil {
		return err
	}

	l.log.Info("Completed withdrawal batch",
		"fund", l.fundKey,
		"batchId", batchID,
		"baseAmount", baseAmount,
	)
	return nil
}

// Withdraw pays out a completed request: pops it (the pop is the
// exactly-once consumption guard), burns the receipt tokens, and transfers
// the net base amount after the basis-point fee.
func (l *Ledger) Withdraw(ctx context.Context, user solana.PublicKey, requestID uint64) (uint64, error) {
	fund, err := l.loadFund()
	if err != nil {
		return 0, err
	}
	if !fund.Withdrawals.WithdrawalEnabled {
		return 0, ErrWithdrawalDisabled
	}

	userKey, userRec, err := l.loadUser(user)
	if err != nil {
		return 0, err
	}
	idx, req := userRec.request(requestID)
	if req == nil {
		return 0, fmt.Errorf("%w: request %d", ErrRequestNotFound, requestID)
	}
	if req.BatchID > fund.Withdrawals.LastCompletedBatchID {
		return 0, fmt.Errorf("%w: batch %d, last completed %d",
			ErrBatchNotYetCompleted, req.BatchID, fund.Withdrawals.LastCompletedBatchID)
	}

	scale, err := pow10Receipt(fund.ReceiptTokenDecimals)
	if err != nil {
		return 0, err
	}
	grossBase, err := arith.MulDiv(req.ReceiptTokenAmount, fund.OneReceiptTokenAsBaseUnit, scale)
	if err != nil {
		return 0, err
	}
	fee, err := arith.MulDiv(grossBase, uint64(fund.Withdrawals.WithdrawalFeeRateBps), FeeRateDivisor)
	if err != nil {
		return 0, err
	}
	netBase, err := arith.Sub(grossBase, fee)
	if err != nil {
		return 0, err
	}

	remaining, err := arith.Sub(fund.Withdrawals.ReservedFundBaseRemaining, netBase)
	if err != nil {
		return 0, err
	}

	// The mirrored holding is informational; external receipt transfers
	// may have drained it, so clamp instead of failing.
	receiptAmount := req.ReceiptTokenAmount
	userReceipts := userRec.ReceiptTokenAmount - min(userRec.ReceiptTokenAmount, receiptAmount)

	// Burn the receipts and pay out; bookkeeping persists only after both
	// ledger calls succeed.
	if err := l.tokens.Burn(ctx, l.receiptMint, user, receiptAmount); err != nil {
		return 0, err
	}
	if err := l.tokens.Transfer(ctx, NativeMint, l.fundKey, user, netBase); err != nil {
		if rbErr := l.tokens.Mint(ctx, l.receiptMint, user, receiptAmount); rbErr != nil {
			return 0, fmt.Errorf("rolling back receipt burn: %w (payout failed: %s)", rbErr, err)
		}
		return 0, err
	}

	userRec.WithdrawalRequests = append(userRec.WithdrawalRequests[:idx], userRec.WithdrawalRequests[idx+1:]...)
	userRec.ReceiptTokenAmount = userReceipts
	fund.Withdrawals.ReservedFundBaseRemaining = remaining

	if err := l.saveUser(userKey, userRec); err != nil {
		return 0, err
	}
	if err := l.saveFund(fund); err != nil {
		return 0, err
	}

	l.log.Info("Withdrew",
		"fund", l.fundKey,
		"user", user,
		"requestId", requestID,
		"receiptAmount", receiptAmount,
		"netBase", netBase,
		"fee", fee,
	)
	metrics.Withdrawals.Inc()
	metrics.WithdrawnAmount.Add(float64(netBase))
	return netBase, nil
}
