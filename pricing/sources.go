package pricing

import (
	"fmt"
)

// StakePoolSource prices a stake-pool token as total pool lamports over pool
// token supply.
type StakePoolSource struct{}

func (StakePoolSource) Kind() SourceKind { return SourceStakePool }

func (StakePoolSource) Quote(ref SourceRef, accounts []Account) (Ratio, error) {
	var pool StakePoolLayout
	if err := decodeSourceAccount(ref, accounts, &pool); err != nil {
		return Ratio{}, err
	}
	if !pool.PoolMint.Equals(ref.Mint) {
		return Ratio{}, fmt.Errorf("%w: stake pool mints %s, want %s", ErrMintMismatch, pool.PoolMint, ref.Mint)
	}
	if pool.PoolSupply == 0 {
		return Ratio{}, ErrZeroSupply
	}

	return Ratio{
		Numerator:   []AssetAmount{{Asset: NativeAsset, Amount: pool.TotalLamports}},
		Denominator: pool.PoolSupply,
	}, nil
}

// ExternalVaultSource prices a vault receipt token as total vault assets
// over receipt supply. The vault's underlying asset keeps its own pricing
// source; the numerator names it rather than collapsing it here.
type ExternalVaultSource struct{}

func (ExternalVaultSource) Kind() SourceKind { return SourceExternalVault }

func (ExternalVaultSource) Quote(ref SourceRef, accounts []Account) (Ratio, error) {
	var vault VaultLayout
	if err := decodeSourceAccount(ref, accounts, &vault); err != nil {
		return Ratio{}, err
	}
	if !vault.ReceiptMint.Equals(ref.Mint) {
		return Ratio{}, fmt.Errorf("%w: vault mints %s, want %s", ErrMintMismatch, vault.ReceiptMint, ref.Mint)
	}
	if vault.ReceiptSupply == 0 {
		return Ratio{}, ErrZeroSupply
	}

	return Ratio{
		Numerator:   []AssetAmount{{Asset: vault.UnderlyingMint, Amount: vault.TotalAssets}},
		Denominator: vault.ReceiptSupply,
	}, nil
}

// NormalizedTokenPoolSource prices a normalized token as the pool's combined
// asset balances over normalized supply.
type NormalizedTokenPoolSource struct{}

func (NormalizedTokenPoolSource) Kind() SourceKind { return SourceNormalizedTokenPool }

func (NormalizedTokenPoolSource) Quote(ref SourceRef, accounts []Account) (Ratio, error) {
	var pool NormalizedPoolLayout
	if err := decodeSourceAccount(ref, accounts, &pool); err != nil {
		return Ratio{}, err
	}
	if !pool.NormalizedMint.Equals(ref.Mint) {
		return Ratio{}, fmt.Errorf("%w: pool mints %s, want %s", ErrMintMismatch, pool.NormalizedMint, ref.Mint)
	}
	if pool.NormalizedSupply == 0 {
		return Ratio{}, ErrZeroSupply
	}

	numerator := make([]AssetAmount, len(pool.Balances))
	copy(numerator, pool.Balances)
	return Ratio{Numerator: numerator, Denominator: pool.NormalizedSupply}, nil
}

// SwapPoolSource prices the quote token of a constant-product pool by its
// base-unit reserves.
type SwapPoolSource struct{}

func (SwapPoolSource) Kind() SourceKind { return SourceSwapPool }

func (SwapPoolSource) Quote(ref SourceRef, accounts []Account) (Ratio, error) {
	var pool SwapPoolLayout
	if err := decodeSourceAccount(ref, accounts, &pool); err != nil {
		return Ratio{}, err
	}
	if !pool.QuoteMint.Equals(ref.Mint) {
		return Ratio{}, fmt.Errorf("%w: swap pool quotes %s, want %s", ErrMintMismatch, pool.QuoteMint, ref.Mint)
	}
	if pool.QuoteReserve == 0 {
		return Ratio{}, ErrZeroSupply
	}

	return Ratio{
		Numerator:   []AssetAmount{{Asset: NativeAsset, Amount: pool.BaseReserve}},
		Denominator: pool.QuoteReserve,
	}, nil
}

// MockSource returns canned ratios keyed by mint. Test only.
type MockSource struct {
	Ratios map[string]Ratio
	Err    error
}

func (MockSource) Kind() SourceKind { return SourceMock }

func (m MockSource) Quote(ref SourceRef, accounts []Account) (Ratio, error) {
	if m.Err != nil {
		return Ratio{}, m.Err
	}
	r, ok := m.Ratios[ref.Mint.String()]
	if !ok {
		return Ratio{}, fmt.Errorf("%w: no mock ratio for %s", ErrMintMismatch, ref.Mint)
	}
	return r, nil
}
