package fund

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/stakemesh/fundcore/internal/arith"
	"github.com/stakemesh/fundcore/internal/metrics"
	"github.com/stakemesh/fundcore/pricing"
)

// NativeMint denotes the fund's base unit on the token ledger.
var NativeMint = solana.PublicKey{}

func pow10Receipt(decimals uint8) (uint64, error) {
	return pricing.Pow10(decimals)
}

// SourceAccounts supplies the external accounts each supported token's
// pricing source needs, keyed by token mint.
type SourceAccounts map[solana.PublicKey][]pricing.Account

// UpdatePrices resolves every supported token's value through the pricing
// aggregator, recomputes the receipt token NAV, and persists the whole
// price set atomically. A missing source or any arithmetic fault aborts the
// update with no partial NAV persisted.
func (l *Ledger) UpdatePrices(ctx context.Context, sources SourceAccounts) error {
	fund, err := l.loadFund()
	if err != nil {
		return err
	}

	// priceOf serves composite numerators (normalized pools holding other
	// supported tokens) from the working copy, so an already-updated price
	// in this pass is preferred over the cached one.
	priceOf := func(asset solana.PublicKey) (uint64, uint8, error) {
		token := fund.SupportedToken(asset)
		if token == nil {
			return 0, 0, fmt.Errorf("%w: numerator asset %s is not a supported token", pricing.ErrSourceNotFound, asset)
		}
		return token.OneTokenAsBaseUnit, token.Decimals, nil
	}

	for i := range fund.SupportedTokens {
		token := &fund.SupportedTokens[i]

		accounts, ok := sources[token.Mint]
		if !ok {
			return fmt.Errorf("%w: no source accounts for %s", pricing.ErrSourceNotFound, token.Mint)
		}

		ratio, err := l.prices.ResolveValue(token.Mint, token.PricingSource, accounts)
		if err != nil {
			return err
		}
		value, err := pricing.OneTokenBaseUnitValue(ratio, token.Decimals, priceOf)
		if err != nil {
			return err
		}
		token.OneTokenAsBaseUnit = value
	}

	total, err := assetsTotalValue(fund)
	if err != nil {
		return err
	}

	supply, err := l.tokens.Supply(ctx, l.receiptMint)
	if err != nil {
		return err
	}

	scale, err := pow10Receipt(fund.ReceiptTokenDecimals)
	if err != nil {
		return err
	}
	if supply == 0 {
		// Nothing outstanding; one receipt token stays at par.
		fund.OneReceiptTokenAsBaseUnit = scale
	} else {
		fund.OneReceiptTokenAsBaseUnit, err = arith.MulDiv(total, scale, supply)
		if err != nil {
			return err
		}
	}

	if err := l.saveFund(fund); err != nil {
		return err
	}

	l.log.Info("Updated prices",
		"fund", l.fundKey,
		"totalValue", total,
		"receiptSupply", supply,
		"oneReceiptTokenValue", fund.OneReceiptTokenAsBaseUnit,
	)
	metrics.PriceUpdates.Inc()
	metrics.ReceiptTokenValue.Set(float64(fund.OneReceiptTokenAsBaseUnit))
	return nil
}

// AssetsTotalValue sums the supported assets' deployed value in base units
// plus the native reserve, at the cached prices.
func (l *Ledger) AssetsTotalValue() (uint64, error) {
	fund, err := l.loadFund()
	if err != nil {
		return 0, err
	}
	return assetsTotalValue(fund)
}

func assetsTotalValue(fund *FundAccount) (uint64, error) {
	// Native reserve: idle base units awaiting deployment plus the payout
	// pool backing completed batches (their receipts are still
	// outstanding until claimed).
	total := fund.SolOperationReserved

	var err error
	total, err = arith.Add(total, fund.Withdrawals.ReservedFundBaseRemaining)
	if err != nil {
		return 0, err
	}

	for i := range fund.SupportedTokens {
		token := &fund.SupportedTokens[i]

		deployed, err := arith.Add(token.OperationReservedAmount, token.RebalancingAmount)
		if err != nil {
			return 0, err
		}
		value, err := tokenBaseValue(token, deployed)
		if err != nil {
			return 0, err
		}
		total, err = arith.Add(total, value)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// OneReceiptTokenValue reports the cached NAV.
func (l *Ledger) OneReceiptTokenValue() (uint64, error) {
	fund, err := l.loadFund()
	if err != nil {
		return 0, err
	}
	return fund.OneReceiptTokenAsBaseUnit, nil
}

// Fund returns a copy of the fund record for inspection.
func (l *Ledger) Fund() (*FundAccount, error) {
	return l.loadFund()
}

// User returns a copy of a user's record for inspection.
func (l *Ledger) User(user solana.PublicKey) (*UserFundAccount, error) {
	_, rec, err := l.loadUser(user)
	return rec, err
}
