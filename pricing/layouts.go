package pricing

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// External account layouts decoded by the adapters. Each carries the mint it
// prices so adapters can verify the ref before trusting any figure.

// StakePoolLayout is the subset of a stake-pool account the stake-pool
// adapter reads.
type StakePoolLayout struct {
	PoolMint      solana.PublicKey // 32
	TotalLamports uint64           // 8
	PoolSupply    uint64           // 8
}

// VaultLayout is the subset of an external vault account the vault adapter
// reads.
type VaultLayout struct {
	ReceiptMint    solana.PublicKey // 32
	UnderlyingMint solana.PublicKey // 32
	TotalAssets    uint64           // 8
	ReceiptSupply  uint64           // 8
}

// NormalizedPoolLayout describes a pool that wraps several assets behind one
// normalized token.
type NormalizedPoolLayout struct {
	NormalizedMint   solana.PublicKey // 32
	NormalizedSupply uint64           // 8
	Balances         []AssetAmount    // borsh vec
}

// SwapPoolLayout is the subset of a constant-product swap pool the swap
// adapter reads. The base vault is denominated in the fund's base unit.
type SwapPoolLayout struct {
	BaseMint     solana.PublicKey // 32
	QuoteMint    solana.PublicKey // 32
	BaseReserve  uint64           // 8
	QuoteReserve uint64           // 8
}

func decodeSourceAccount(ref SourceRef, accounts []Account, out any) error {
	if len(accounts) == 0 {
		return ErrNoAccounts
	}

	acc := accounts[0]
	if !acc.Owner.Equals(ref.Program) {
		return fmt.Errorf("%w: account %s is owned by %s, want %s",
			ErrUnexpectedOwner, acc.Address, acc.Owner, ref.Program)
	}
	if err := bin.NewBorshDecoder(acc.Data).Decode(out); err != nil {
		return fmt.Errorf("decoding %s source account %s: %w", ref.Kind, acc.Address, err)
	}
	return nil
}
