package store

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

var (
	SeedPrefix          = []byte("fundcore")
	SeedFundAccount     = []byte("fund-account")
	SeedUserFundAccount = []byte("user-fund-account")
	SeedRewardAccount   = []byte("reward-account")
	SeedUserReward      = []byte("user-reward-account")
	SeedWithdrawalBatch = []byte("withdrawal-batch")
)

// deriveSeed hashes the namespace program id and the named seeds into a
// base58 seed string accepted by CreateWithSeed.
func deriveSeed(namespace solana.PublicKey, seeds ...[]byte) (string, error) {
	h := sha256.New()
	h.Write(namespace[:])
	h.Write(SeedPrefix)
	for _, seed := range seeds {
		h.Write(seed)
	}

	encoded := base58.Encode(h.Sum(nil))
	if len(encoded) < 32 {
		return "", fmt.Errorf("derived seed is too short")
	}
	return encoded[:32], nil
}

func deriveAddress(base, namespace solana.PublicKey, seeds ...[]byte) (solana.PublicKey, error) {
	seed, err := deriveSeed(namespace, seeds...)
	if err != nil {
		return solana.PublicKey{}, err
	}

	addr, err := solana.CreateWithSeed(base, seed, namespace)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("create_with_seed failed: %w", err)
	}
	return addr, nil
}

// FundAccountAddress derives the singleton fund record address for a receipt
// token mint.
func FundAccountAddress(namespace, receiptMint solana.PublicKey) (solana.PublicKey, error) {
	return deriveAddress(namespace, namespace, SeedFundAccount, receiptMint[:])
}

// UserFundAccountAddress derives the per-(user, receipt mint) fund record
// address.
func UserFundAccountAddress(namespace, user, receiptMint solana.PublicKey) (solana.PublicKey, error) {
	return deriveAddress(namespace, namespace, SeedUserFundAccount, user[:], receiptMint[:])
}

// RewardAccountAddress derives the singleton reward record address for a
// receipt token mint.
func RewardAccountAddress(namespace, receiptMint solana.PublicKey) (solana.PublicKey, error) {
	return deriveAddress(namespace, namespace, SeedRewardAccount, receiptMint[:])
}

// UserRewardAccountAddress derives the per-user reward record address.
func UserRewardAccountAddress(namespace, user solana.PublicKey) (solana.PublicKey, error) {
	return deriveAddress(namespace, namespace, SeedUserReward, user[:])
}

// WithdrawalBatchAddress derives the per-(receipt mint, batch id) withdrawal
// batch record address.
func WithdrawalBatchAddress(namespace, receiptMint solana.PublicKey, batchID uint64) (solana.PublicKey, error) {
	return deriveAddress(namespace, namespace, SeedWithdrawalBatch, receiptMint[:], BatchSeed(batchID))
}

// BatchSeed encodes a batch id as a little-endian seed component.
func BatchSeed(batchID uint64) []byte {
	seed := make([]byte, 8)
	binary.LittleEndian.PutUint64(seed, batchID)
	return seed
}
