package fund

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/stakemesh/fundcore/internal/arith"
	"github.com/stakemesh/fundcore/internal/metrics"
)

// Stake converts idle native base units into a supported token at the cached
// price, moving the value from the operating reserve into the token's
// deployed balance.
func (l *Ledger) Stake(mint solana.PublicKey, baseAmount uint64) (uint64, error) {
	fund, err := l.loadFund()
	if err != nil {
		return 0, err
	}
	token := fund.SupportedToken(mint)
	if token == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedToken, mint)
	}

	tokenAmount, err := tokenAmountForBaseValue(token, baseAmount)
	if err != nil {
		return 0, err
	}
	fund.SolOperationReserved, err = arith.Sub(fund.SolOperationReserved, baseAmount)
	if err != nil {
		return 0, err
	}
	token.OperationReservedAmount, err = arith.Add(token.OperationReservedAmount, tokenAmount)
	if err != nil {
		return 0, err
	}
	if err := l.saveFund(fund); err != nil {
		return 0, err
	}

	l.log.Debug("Staked base units into token", "mint", mint.String(), "baseAmount", baseAmount, "tokenAmount", tokenAmount)
	metrics.StakedAmount.WithLabelValues(mint.String()).Add(float64(baseAmount))
	return tokenAmount, nil
}

// Unstake queues deployed token balance for redemption. The amount leaves the
// deployed balance immediately and sits in the rebalancing bucket until the
// redemption lands and ClaimUnstaked is called.
func (l *Ledger) Unstake(mint solana.PublicKey, tokenAmount uint64) error {
	fund, err := l.loadFund()
	if err != nil {
		return err
	}
	token := fund.SupportedToken(mint)
	if token == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedToken, mint)
	}

	token.OperationReservedAmount, err = arith.Sub(token.OperationReservedAmount, tokenAmount)
	if err != nil {
		return err
	}
	token.RebalancingAmount, err = arith.Add(token.RebalancingAmount, tokenAmount)
	if err != nil {
		return err
	}
	if err := l.saveFund(fund); err != nil {
		return err
	}

	l.log.Debug("Queued token amount for redemption", "mint", mint.String(), "tokenAmount", tokenAmount)
	return nil
}

// ClaimUnstaked recognizes a landed redemption, converting rebalancing token
// balance back into native base units at the cached price.
func (l *Ledger) ClaimUnstaked(mint solana.PublicKey, tokenAmount uint64) (uint64, error) {
	fund, err := l.loadFund()
	if err != nil {
		return 0, err
	}
	token := fund.SupportedToken(mint)
	if token == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedToken, mint)
	}

	baseAmount, err := tokenBaseValue(token, tokenAmount)
	if err != nil {
		return 0, err
	}
	token.RebalancingAmount, err = arith.Sub(token.RebalancingAmount, tokenAmount)
	if err != nil {
		return 0, err
	}
	fund.SolOperationReserved, err = arith.Add(fund.SolOperationReserved, baseAmount)
	if err != nil {
		return 0, err
	}
	if err := l.saveFund(fund); err != nil {
		return 0, err
	}

	l.log.Debug("Claimed redeemed token amount", "mint", mint.String(), "tokenAmount", tokenAmount, "baseAmount", baseAmount)
	metrics.UnstakedAmount.WithLabelValues(mint.String()).Add(float64(baseAmount))
	return baseAmount, nil
}

// Normalize moves deployed balance from one supported token into another,
// preserving base-unit value at the cached prices of both tokens. It is used
// to fold individual restaking tokens into a normalized pool token and, with
// the arguments flipped, to unfold them again.
func (l *Ledger) Normalize(fromMint, toMint solana.PublicKey, tokenAmount uint64) (uint64, error) {
	fund, err := l.loadFund()
	if err != nil {
		return 0, err
	}
	from := fund.SupportedToken(fromMint)
	if from == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedToken, fromMint)
	}
	to := fund.SupportedToken(toMint)
	if to == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedToken, toMint)
	}

	baseValue, err := tokenBaseValue(from, tokenAmount)
	if err != nil {
		return 0, err
	}
	toAmount, err := tokenAmountForBaseValue(to, baseValue)
	if err != nil {
		return 0, err
	}
	from.OperationReservedAmount, err = arith.Sub(from.OperationReservedAmount, tokenAmount)
	if err != nil {
		return 0, err
	}
	to.OperationReservedAmount, err = arith.Add(to.OperationReservedAmount, toAmount)
	if err != nil {
		return 0, err
	}
	if err := l.saveFund(fund); err != nil {
		return 0, err
	}

	l.log.Debug("Converted deployed balance between tokens",
		"fromMint", fromMint.String(), "toMint", toMint.String(),
		"fromAmount", tokenAmount, "toAmount", toAmount)
	return toAmount, nil
}

// Delegate moves deployed token balance from the fund treasury to an
// external delegate on the token ledger. Deployed bookkeeping is unchanged;
// the balance still belongs to the fund.
func (l *Ledger) Delegate(ctx context.Context, mint, delegate solana.PublicKey, amount uint64) error {
	if err := l.tokens.Transfer(ctx, mint, l.fundKey, delegate, amount); err != nil {
		return err
	}
	l.log.Info("Delegated token balance", "mint", mint, "delegate", delegate, "amount", amount)
	return nil
}

// Undelegate pulls delegated balance back into the fund treasury.
func (l *Ledger) Undelegate(ctx context.Context, mint, delegate solana.PublicKey, amount uint64) error {
	if err := l.tokens.Transfer(ctx, mint, delegate, l.fundKey, amount); err != nil {
		return err
	}
	l.log.Info("Undelegated token balance", "mint", mint, "delegate", delegate, "amount", amount)
	return nil
}

// ReceiptBaseValue converts receipt tokens into base units at the cached
// NAV.
func (l *Ledger) ReceiptBaseValue(receiptAmount uint64) (uint64, error) {
	fund, err := l.loadFund()
	if err != nil {
		return 0, err
	}
	scale, err := pow10Receipt(fund.ReceiptTokenDecimals)
	if err != nil {
		return 0, err
	}
	return arith.MulDiv(receiptAmount, fund.OneReceiptTokenAsBaseUnit, scale)
}

// TokenAmountForBase converts base units into a supported token's units at
// the cached per-token price.
func (l *Ledger) TokenAmountForBase(mint solana.PublicKey, baseValue uint64) (uint64, error) {
	fund, err := l.loadFund()
	if err != nil {
		return 0, err
	}
	token := fund.SupportedToken(mint)
	if token == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedToken, mint)
	}
	return tokenAmountForBaseValue(token, baseValue)
}

// tokenAmountForBaseValue converts a base-unit value into token units at the
// cached per-token price.
func tokenAmountForBaseValue(token *SupportedToken, baseValue uint64) (uint64, error) {
	scale, err := pow10Receipt(token.Decimals)
	if err != nil {
		return 0, err
	}
	return arith.MulDiv(baseValue, scale, token.OneTokenAsBaseUnit)
}
