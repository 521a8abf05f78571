package reward

import (
	"bytes"
	"io"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stakemesh/fundcore/record"
)

// MaxHolders bounds the registered holders per reward account.
const MaxHolders = 64

// MaxPoolNameLength bounds reward pool names.
const MaxPoolNameLength = 32

// DefaultAccrualRate is the contribution accrual rate applied when a pool
// has no custom per-holder rate. Rates carry two implied decimals, so 100
// reads as 1.00x.
const DefaultAccrualRate = 100

// Holder is a registered participant eligible for custom accrual rates.
// Holder ids start at 1; 0 means "no holder restriction" on a pool.
type Holder struct {
	HolderID uint64           // 8
	Address  solana.PublicKey // 32
	RateBps2 uint64           // 8, two implied decimals
}

// Reward names a claimable token. Once claimable, mint and decimals are
// frozen.
type Reward struct {
	RewardID  uint64           // 8
	Mint      solana.PublicKey // 32
	Decimals  uint8            // 1
	Claimable bool             // 1
}

// RewardSettlement is a pool's cumulative settlement cursor for one reward.
type RewardSettlement struct {
	RewardID            uint64 // 8
	SettledAmount       uint64 // 8
	SettledContribution uint64 // 8
	SettledSlot         uint64 // 8
}

// RewardPool apportions settled reward amounts by contribution.
type RewardPool struct {
	PoolID uint64 // 8
	Name   string

	// HolderID restricts the pool to one registered holder; 0 leaves it
	// open.
	HolderID             uint64 // 8
	CustomAccrualEnabled bool   // 1

	TotalContribution uint64 // 8
	UpdatedSlot       uint64 // 8
	Settlements       []RewardSettlement
}

// settlement finds or lazily creates the pool's cursor for a reward.
func (p *RewardPool) settlement(rewardID uint64) *RewardSettlement {
	for i := range p.Settlements {
		if p.Settlements[i].RewardID == rewardID {
			return &p.Settlements[i]
		}
	}
	p.Settlements = append(p.Settlements, RewardSettlement{RewardID: rewardID})
	return &p.Settlements[len(p.Settlements)-1]
}

// RewardAccount is the singleton reward record for one receipt token mint.
type RewardAccount struct {
	ReceiptTokenMint solana.PublicKey // 32
	Holders          []Holder
	Rewards          []Reward
	RewardPools      []RewardPool
}

func (r *RewardAccount) Serialize(w io.Writer) error {
	return bin.NewBorshEncoder(w).Encode(*r)
}

func (r *RewardAccount) Deserialize(data []byte) error {
	return bin.NewBorshDecoder(data).Decode(r)
}

func (r *RewardAccount) reward(rewardID uint64) *Reward {
	for i := range r.Rewards {
		if r.Rewards[i].RewardID == rewardID {
			return &r.Rewards[i]
		}
	}
	return nil
}

func (r *RewardAccount) pool(poolID uint64) *RewardPool {
	for i := range r.RewardPools {
		if r.RewardPools[i].PoolID == poolID {
			return &r.RewardPools[i]
		}
	}
	return nil
}

func (r *RewardAccount) holder(holderID uint64) *Holder {
	for i := range r.Holders {
		if r.Holders[i].HolderID == holderID {
			return &r.Holders[i]
		}
	}
	return nil
}

// AllocationRecord is one historical allocation segment. Segments are never
// rewritten; a rate change starts a new segment.
type AllocationRecord struct {
	Amount   uint64 // 8
	RateBps2 uint64 // 8
}

// UserRewardSettlement is the user's cumulative settlement state for one
// reward within one pool.
type UserRewardSettlement struct {
	RewardID            uint64 // 8
	SettledAmount       uint64 // 8
	SettledContribution uint64 // 8
	SettledSlot         uint64 // 8

	// PoolSettledAmount is the catch-up cursor: the pool's SettledAmount
	// the last time this user's share was computed.
	PoolSettledAmount uint64 // 8

	ClaimedAmount uint64 // 8
}

// UserRewardPool is the user's view of one reward pool.
type UserRewardPool struct {
	RewardPoolID      uint64 // 8
	AllocationRecords []AllocationRecord
	Contribution      uint64 // 8
	UpdatedSlot       uint64 // 8
	Settlements       []UserRewardSettlement
}

func (p *UserRewardPool) settlement(rewardID uint64) *UserRewardSettlement {
	for i := range p.Settlements {
		if p.Settlements[i].RewardID == rewardID {
			return &p.Settlements[i]
		}
	}
	return nil
}

// UserRewardAccount is one user's reward record across all pools.
type UserRewardAccount struct {
	User            solana.PublicKey // 32
	UserRewardPools []UserRewardPool
}

func (u *UserRewardAccount) Serialize(w io.Writer) error {
	return bin.NewBorshEncoder(w).Encode(*u)
}

func (u *UserRewardAccount) Deserialize(data []byte) error {
	return bin.NewBorshDecoder(data).Decode(u)
}

func (u *UserRewardAccount) pool(poolID uint64) *UserRewardPool {
	for i := range u.UserRewardPools {
		if u.UserRewardPools[i].RewardPoolID == poolID {
			return &u.UserRewardPools[i]
		}
	}
	return nil
}

// Version history. Reward v0 carried flat amount-only settlements with no
// pools; migrating folds them into a default open pool. User reward v0
// lacked the per-settlement pool cursor; migrating seeds it from the user's
// own settled amount, the only cursor value the old shape recorded.

type rewardSettlementV0 struct {
	RewardID      uint64
	SettledAmount uint64
}

type rewardAccountV0 struct {
	ReceiptTokenMint solana.PublicKey
	Holders          []Holder
	Rewards          []Reward
	Settlements      []rewardSettlementV0
}

func migrateRewardAccountV0(data []byte) ([]byte, error) {
	var old rewardAccountV0
	if err := bin.NewBorshDecoder(data[1:]).Decode(&old); err != nil {
		return nil, err
	}

	next := RewardAccount{
		ReceiptTokenMint: old.ReceiptTokenMint,
		Holders:          old.Holders,
		Rewards:          old.Rewards,
	}
	if len(old.Settlements) > 0 {
		pool := RewardPool{
			PoolID:      1,
			Name:        "default",
			Settlements: make([]RewardSettlement, len(old.Settlements)),
		}
		for i, s := range old.Settlements {
			pool.Settlements[i] = RewardSettlement{
				RewardID:      s.RewardID,
				SettledAmount: s.SettledAmount,
			}
		}
		next.RewardPools = []RewardPool{pool}
	}

	var buf bytes.Buffer
	buf.WriteByte(1)
	if err := bin.NewBorshEncoder(&buf).Encode(next); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type userRewardSettlementV0 struct {
	RewardID            uint64
	SettledAmount       uint64
	SettledContribution uint64
	SettledSlot         uint64
	ClaimedAmount       uint64
}

type userRewardPoolV0 struct {
	RewardPoolID      uint64
	AllocationRecords []AllocationRecord
	Contribution      uint64
	UpdatedSlot       uint64
	Settlements       []userRewardSettlementV0
}

type userRewardAccountV0 struct {
	User            solana.PublicKey
	UserRewardPools []userRewardPoolV0
}

func migrateUserRewardAccountV0(data []byte) ([]byte, error) {
	var old userRewardAccountV0
	if err := bin.NewBorshDecoder(data[1:]).Decode(&old); err != nil {
		return nil, err
	}

	next := UserRewardAccount{
		User:            old.User,
		UserRewardPools: make([]UserRewardPool, len(old.UserRewardPools)),
	}
	for i, p := range old.UserRewardPools {
		pool := UserRewardPool{
			RewardPoolID:      p.RewardPoolID,
			AllocationRecords: p.AllocationRecords,
			Contribution:      p.Contribution,
			UpdatedSlot:       p.UpdatedSlot,
			Settlements:       make([]UserRewardSettlement, len(p.Settlements)),
		}
		for j, s := range p.Settlements {
			pool.Settlements[j] = UserRewardSettlement{
				RewardID:            s.RewardID,
				SettledAmount:       s.SettledAmount,
				SettledContribution: s.SettledContribution,
				SettledSlot:         s.SettledSlot,
				PoolSettledAmount:   s.SettledAmount,
				ClaimedAmount:       s.ClaimedAmount,
			}
		}
		next.UserRewardPools[i] = pool
	}

	var buf bytes.Buffer
	buf.WriteByte(1)
	if err := bin.NewBorshEncoder(&buf).Encode(next); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var rewardSchema = record.NewSchema("reward_account", 1,
	func() *RewardAccount { return &RewardAccount{} },
	migrateRewardAccountV0,
)

var userRewardSchema = record.NewSchema("user_reward_account", 1,
	func() *UserRewardAccount { return &UserRewardAccount{} },
	migrateUserRewardAccountV0,
)
