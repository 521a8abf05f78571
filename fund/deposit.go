package fund

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/stakemesh/fundcore/internal/arith"
	"github.com/stakemesh/fundcore/internal/metrics"
)

// DepositAsset admits amount of a supported token, mints receipt tokens
// worth the deposit's base-unit value, and reserves the deposit for
// operation. Fails with ErrCapacityExceeded before any state changes.
func (l *Ledger) DepositAsset(ctx context.Context, user, mint solana.PublicKey, amount uint64) (uint64, error) {
	fund, err := l.loadFund()
	if err != nil {
		return 0, err
	}

	token := fund.SupportedToken(mint)
	if token == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedToken, mint)
	}

	accumulated, err := arith.Add(token.AccumulatedDepositAmount, amount)
	if err != nil {
		return 0, err
	}
	if accumulated > token.CapacityAmount {
		return 0, fmt.Errorf("%w: deposit of %d would put %s at %d over capacity %d",
			ErrCapacityExceeded, amount, mint, accumulated, token.CapacityAmount)
	}

	reserved, err := arith.Add(token.OperationReservedAmount, amount)
	if err != nil {
		return 0, err
	}

	baseValue, err := tokenBaseValue(token, amount)
	if err != nil {
		return 0, err
	}
	receiptAmount, err := l.receiptsForBaseValue(fund, baseValue)
	if err != nil {
		return 0, err
	}

	userKey, userRec, err := l.loadUser(user)
	if err != nil {
		return 0, err
	}
	userReceipts, err := arith.Add(userRec.ReceiptTokenAmount, receiptAmount)
	if err != nil {
		return 0, err
	}

	// Move the asset in and mint receipts; bookkeeping persists only after
	// both ledger calls succeed.
	if err := l.tokens.Transfer(ctx, mint, user, l.fundKey, amount); err != nil {
		return 0, err
	}
	if err := l.tokens.Mint(ctx, l.receiptMint, user, receiptAmount); err != nil {
		// Leave the ledger as it was before this instruction.
		if rbErr := l.tokens.Transfer(ctx, mint, l.fundKey, user, amount); rbErr != nil {
			return 0, fmt.Errorf("rolling back deposit transfer: %w (mint failed: %s)", rbErr, err)
		}
		return 0, err
	}

	token.AccumulatedDepositAmount = accumulated
	token.OperationReservedAmount = reserved
	userRec.ReceiptTokenAmount = userReceipts

	if err := l.saveUser(userKey, userRec); err != nil {
		return 0, err
	}
	if err := l.saveFund(fund); err != nil {
		return 0, err
	}

	l.log.Info("Deposited asset",
		"fund", l.fundKey,
		"user", user,
		"mint", mint,
		"amount", amount,
		"baseValue", baseValue,
		"receiptAmount", receiptAmount,
	)
	metrics.Deposits.WithLabelValues(mint.String()).Inc()
	metrics.DepositedAmount.WithLabelValues(mint.String()).Add(float64(amount))
	return receiptAmount, nil
}

// DepositSol admits base units directly against the fund-level capacity.
func (l *Ledger) DepositSol(ctx context.Context, user solana.PublicKey, amount uint64) (uint64, error) {
	fund, err := l.loadFund()
	if err != nil {
		return 0, err
	}

	accumulated, err := arith.Add(fund.SolAccumulatedDeposit, amount)
	if err != nil {
		return 0, err
	}
	if accumulated > fund.SolCapacity {
		return 0, fmt.Errorf("%w: deposit of %d would put the fund at %d over capacity %d",
			ErrCapacityExceeded, amount, accumulated, fund.SolCapacity)
	}
	reserved, err := arith.Add(fund.SolOperationReserved, amount)
	if err != nil {
		return 0, err
	}

	receiptAmount, err := l.receiptsForBaseValue(fund, amount)
	if err != nil {
		return 0, err
	}

	userKey, userRec, err := l.loadUser(user)
	if err != nil {
		return 0, err
	}
	userReceipts, err := arith.Add(userRec.ReceiptTokenAmount, receiptAmount)
	if err != nil {
		return 0, err
	}

	if err := l.tokens.Transfer(ctx, NativeMint, user, l.fundKey, amount); err != nil {
		return 0, err
	}
	if err := l.tokens.Mint(ctx, l.receiptMint, user, receiptAmount); err != nil {
		if rbErr := l.tokens.Transfer(ctx, NativeMint, l.fundKey, user, amount); rbErr != nil {
			return 0, fmt.Errorf("rolling back deposit transfer: %w (mint failed: %s)", rbErr, err)
		}
		return 0, err
	}

	fund.SolAccumulatedDeposit = accumulated
	fund.SolOperationReserved = reserved
	userRec.ReceiptTokenAmount = userReceipts

	if err := l.saveUser(userKey, userRec); err != nil {
		return 0, err
	}
	if err := l.saveFund(fund); err != nil {
		return 0, err
	}

	l.log.Info("Deposited base units",
		"fund", l.fundKey,
		"user", user,
		"amount", amount,
		"receiptAmount", receiptAmount,
	)
	metrics.Deposits.WithLabelValues("native").Inc()
	metrics.DepositedAmount.WithLabelValues("native").Add(float64(amount))
	return receiptAmount, nil
}

// receiptsForBaseValue converts a base-unit value into receipt tokens at the
// cached NAV.
func (l *Ledger) receiptsForBaseValue(fund *FundAccount, baseValue uint64) (uint64, error) {
	scale, err := pow10Receipt(fund.ReceiptTokenDecimals)
	if err != nil {
		return 0, err
	}
	return arith.MulDiv(baseValue, scale, fund.OneReceiptTokenAsBaseUnit)
}

// tokenBaseValue converts a token amount into base units at the cached
// per-token price.
func tokenBaseValue(token *SupportedToken, amount uint64) (uint64, error) {
	scale, err := pow10Receipt(token.Decimals)
	if err != nil {
		return 0, err
	}
	return arith.MulDiv(amount, token.OneTokenAsBaseUnit, scale)
}
