package reward

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// AddReward registers a token as a distributable reward. It starts out
// non-claimable so settlement can accrue before payouts open.
func (l *Ledger) AddReward(mint solana.PublicKey, decimals uint8) (uint64, error) {
	rec, err := l.loadReward()
	if err != nil {
		return 0, err
	}

	rewardID := uint64(len(rec.Rewards)) + 1
	rec.Rewards = append(rec.Rewards, Reward{
		RewardID: rewardID,
		Mint:     mint,
		Decimals: decimals,
	})
	if err := l.saveReward(rec); err != nil {
		return 0, err
	}

	l.log.Info("Added reward",
		"reward", l.rewardKey,
		"rewardId", rewardID,
		"mint", mint,
	)
	return rewardID, nil
}

// SetRewardClaimable opens a reward for claiming. Claimability is one-way;
// once set, the reward's mint and decimals are frozen and there is no way
// back.
func (l *Ledger) SetRewardClaimable(rewardID uint64) error {
	rec, err := l.loadReward()
	if err != nil {
		return err
	}

	reward := rec.reward(rewardID)
	if reward == nil {
		return fmt.Errorf("%w: reward %d", ErrRewardNotFound, rewardID)
	}
	if reward.Claimable {
		return nil
	}
	reward.Claimable = true

	l.log.Info("Set reward claimable",
		"reward", l.rewardKey,
		"rewardId", rewardID,
	)
	return l.saveReward(rec)
}

// AddHolder registers a participant eligible for custom accrual rates.
func (l *Ledger) AddHolder(address solana.PublicKey, rateBps2 uint64) (uint64, error) {
	rec, err := l.loadReward()
	if err != nil {
		return 0, err
	}
	if len(rec.Holders) >= MaxHolders {
		return 0, fmt.Errorf("%w: %d registered", ErrExceededMaxHolders, len(rec.Holders))
	}

	holderID := uint64(len(rec.Holders)) + 1
	rec.Holders = append(rec.Holders, Holder{
		HolderID: holderID,
		Address:  address,
		RateBps2: rateBps2,
	})
	if err := l.saveReward(rec); err != nil {
		return 0, err
	}

	l.log.Info("Added holder",
		"reward", l.rewardKey,
		"holderId", holderID,
		"address", address,
		"rate", rateBps2,
	)
	return holderID, nil
}

// SetHolderRate changes a holder's accrual rate going forward. Allocation
// segments recorded at the old rate are never rewritten.
func (l *Ledger) SetHolderRate(holderID, rateBps2 uint64) error {
	rec, err := l.loadReward()
	if err != nil {
		return err
	}
	holder := rec.holder(holderID)
	if holder == nil {
		return fmt.Errorf("%w: holder %d", ErrInvalidHolderID, holderID)
	}
	holder.RateBps2 = rateBps2

	l.log.Info("Set holder rate",
		"reward", l.rewardKey,
		"holderId", holderID,
		"rate", rateBps2,
	)
	return l.saveReward(rec)
}

// AddRewardPool appends a pool with an empty settlement list. holderID 0
// leaves the pool open to everyone; a nonzero id must name a registered
// holder. Two pools with the same holder restriction and accrual mode are
// equivalent and refused.
func (l *Ledger) AddRewardPool(name string, holderID uint64, customAccrualEnabled bool, initialSlot uint64) (uint64, error) {
	if len(name) == 0 || len(name) > MaxPoolNameLength {
		return 0, fmt.Errorf("%w: %d characters", ErrInvalidNameLength, len(name))
	}

	rec, err := l.loadReward()
	if err != nil {
		return 0, err
	}
	if holderID != 0 && rec.holder(holderID) == nil {
		return 0, fmt.Errorf("%w: holder %d", ErrInvalidHolderID, holderID)
	}
	for i := range rec.RewardPools {
		p := &rec.RewardPools[i]
		if p.HolderID == holderID && p.CustomAccrualEnabled == customAccrualEnabled {
			return 0, fmt.Errorf("%w: pool %d", ErrDuplicatePool, p.PoolID)
		}
	}

	poolID := uint64(len(rec.RewardPools)) + 1
	rec.RewardPools = append(rec.RewardPools, RewardPool{
		PoolID:               poolID,
		Name:                 name,
		HolderID:             holderID,
		CustomAccrualEnabled: customAccrualEnabled,
		UpdatedSlot:          initialSlot,
	})
	if err := l.saveReward(rec); err != nil {
		return 0, err
	}

	l.log.Info("Added reward pool",
		"reward", l.rewardKey,
		"poolId", poolID,
		"name", name,
		"holderId", holderID,
		"customAccrual", customAccrualEnabled,
	)
	return poolID, nil
}
