// Package pricing resolves a token's redemption value into a normalized
// (numerator assets, denominator supply) ratio by dispatching to one of a
// closed set of pricing-source adapters. Adapters validate the external
// accounts they are handed before decoding them; a bad owner or mint aborts
// the whole value computation rather than feeding a stale or partial figure
// into NAV.
package pricing

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/stakemesh/fundcore/internal/arith"
)

var (
	ErrSourceNotFound  = errors.New("pricing source not found")
	ErrUnexpectedOwner = errors.New("unexpected account owner")
	ErrMintMismatch    = errors.New("mint mismatch")
	ErrNoAccounts      = errors.New("no source accounts supplied")
	ErrZeroSupply      = errors.New("pricing source has zero circulating supply")
)

// NativeAsset marks a numerator entry denominated directly in the fund's
// base unit.
var NativeAsset = solana.PublicKey{}

type SourceKind uint8

const (
	SourceStakePool SourceKind = iota + 1
	SourceExternalVault
	SourceNormalizedTokenPool
	SourceSwapPool

	// SourceMock is registered by tests only.
	SourceMock SourceKind = 255
)

func (k SourceKind) String() string {
	switch k {
	case SourceStakePool:
		return "stake-pool"
	case SourceExternalVault:
		return "external-vault"
	case SourceNormalizedTokenPool:
		return "normalized-token-pool"
	case SourceSwapPool:
		return "swap-pool"
	case SourceMock:
		return "mock"
	default:
		return "unknown"
	}
}

// ParseSourceKind is the inverse of SourceKind.String for the production
// adapters.
func ParseSourceKind(s string) (SourceKind, error) {
	switch s {
	case "stake-pool":
		return SourceStakePool, nil
	case "external-vault":
		return SourceExternalVault, nil
	case "normalized-token-pool":
		return SourceNormalizedTokenPool, nil
	case "swap-pool":
		return SourceSwapPool, nil
	default:
		return 0, fmt.Errorf("unknown pricing source kind %q", s)
	}
}

// SourceRef names the external account a token's value is derived from and
// what the adapter must verify about it.
type SourceRef struct {
	Kind    SourceKind
	Address solana.PublicKey // the source account to decode
	Program solana.PublicKey // expected owner of that account
	Mint    solana.PublicKey // the token being priced
}

// AssetAmount is one numerator component of an exchange ratio.
type AssetAmount struct {
	Asset  solana.PublicKey
	Amount uint64
}

// Ratio expresses total underlying value over total circulating supply of
// the token being priced.
type Ratio struct {
	Numerator   []AssetAmount
	Denominator uint64
}

// Source is one pricing adapter.
type Source interface {
	Kind() SourceKind
	Quote(ref SourceRef, accounts []Account) (Ratio, error)
}

// Account is a raw external account handed to an adapter.
type Account struct {
	Address solana.PublicKey
	Owner   solana.PublicKey
	Data    []byte
}

// PriceFunc returns the cached base-unit value of one whole token of asset,
// together with the asset's decimals. Such a function backs composite
// numerators (normalized pools holding other priced tokens).
type PriceFunc func(asset solana.PublicKey) (value uint64, decimals uint8, err error)

var pow10 = [...]uint64{
	1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000, 100_000_000,
	1_000_000_000, 10_000_000_000, 100_000_000_000, 1_000_000_000_000,
	10_000_000_000_000, 100_000_000_000_000, 1_000_000_000_000_000,
	10_000_000_000_000_000, 100_000_000_000_000_000, 1_000_000_000_000_000_000,
	10_000_000_000_000_000_000,
}

// Pow10 returns 10^n for token decimal scaling.
func Pow10(n uint8) (uint64, error) {
	if int(n) >= len(pow10) {
		return 0, arith.ErrOverflow
	}
	return pow10[n], nil
}

// OneTokenBaseUnitValue collapses a ratio into the base-unit value of one
// whole token: floor(10^decimals * value(numerator) / denominator). Every
// division floors on a 128-bit intermediate.
func OneTokenBaseUnitValue(r Ratio, decimals uint8, priceOf PriceFunc) (uint64, error) {
	if r.Denominator == 0 {
		return 0, ErrZeroSupply
	}

	var total uint64
	for _, na := range r.Numerator {
		value := na.Amount
		if !na.Asset.Equals(NativeAsset) {
			price, dec, err := priceOf(na.Asset)
			if err != nil {
				return 0, err
			}
			scale, err := Pow10(dec)
			if err != nil {
				return 0, err
			}
			value, err = arith.MulDiv(na.Amount, price, scale)
			if err != nil {
				return 0, err
			}
		}

		var err error
		total, err = arith.Add(total, value)
		if err != nil {
			return 0, err
		}
	}

	scale, err := Pow10(decimals)
	if err != nil {
		return 0, err
	}
	return arith.MulDiv(total, scale, r.Denominator)
}
