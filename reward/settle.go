package reward

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/stakemesh/fundcore/internal/arith"
	"github.com/stakemesh/fundcore/internal/metrics"
)

// AllocateTokens records a user's allocation into a pool as a new historical
// segment at the pool's effective accrual rate. The user is caught up
// against the pool's settlements first, so past yield is apportioned at the
// contribution that earned it, never at the new one.
func (l *Ledger) AllocateTokens(user solana.PublicKey, poolID, amount, currentSlot uint64) error {
	rec, err := l.loadReward()
	if err != nil {
		return err
	}
	pool := rec.pool(poolID)
	if pool == nil {
		return fmt.Errorf("%w: pool %d", ErrPoolNotFound, poolID)
	}

	holder := rec.holderByAddress(user)
	if pool.HolderID != 0 && (holder == nil || holder.HolderID != pool.HolderID) {
		return fmt.Errorf("%w: pool %d is restricted to holder %d", ErrInvalidHolderID, poolID, pool.HolderID)
	}
	rate := uint64(DefaultAccrualRate)
	if pool.CustomAccrualEnabled && holder != nil {
		rate = holder.RateBps2
	}

	delta, err := arith.Mul(amount, rate)
	if err != nil {
		return err
	}

	userKey, userRec, err := l.loadUser(user)
	if err != nil {
		return err
	}
	up := userRec.pool(poolID)
	if up == nil {
		up = userRec.joinPool(pool)
	}
	if err := catchUpUserPool(pool, up, currentSlot); err != nil {
		return err
	}

	up.Contribution, err = arith.Add(up.Contribution, delta)
	if err != nil {
		return err
	}
	pool.TotalContribution, err = arith.Add(pool.TotalContribution, delta)
	if err != nil {
		return err
	}
	up.AllocationRecords = append(up.AllocationRecords, AllocationRecord{
		Amount:   amount,
		RateBps2: rate,
	})
	up.UpdatedSlot = currentSlot
	pool.UpdatedSlot = currentSlot

	if err := l.saveUser(userKey, userRec); err != nil {
		return err
	}
	if err := l.saveReward(rec); err != nil {
		return err
	}

	l.log.Info("Allocated tokens",
		"reward", l.rewardKey,
		"user", user,
		"poolId", poolID,
		"amount", amount,
		"rate", rate,
		"slot", currentSlot,
	)
	return nil
}

// SettleReward credits newly available reward amount into a pool at a point
// in slot time, independent of any user. The pool's total contribution is
// snapshotted so later user catch-ups apportion at settlement-time weights.
func (l *Ledger) SettleReward(poolID, rewardID, amount, currentSlot uint64) error {
	rec, err := l.loadReward()
	if err != nil {
		return err
	}
	if rec.reward(rewardID) == nil {
		return fmt.Errorf("%w: reward %d", ErrRewardNotFound, rewardID)
	}
	pool := rec.pool(poolID)
	if pool == nil {
		return fmt.Errorf("%w: pool %d", ErrPoolNotFound, poolID)
	}

	s := pool.settlement(rewardID)
	s.SettledAmount, err = arith.Add(s.SettledAmount, amount)
	if err != nil {
		return err
	}
	s.SettledContribution = pool.TotalContribution
	s.SettledSlot = currentSlot
	pool.UpdatedSlot = currentSlot

	if err := l.saveReward(rec); err != nil {
		return err
	}

	l.log.Info("Settled reward",
		"reward", l.rewardKey,
		"poolId", poolID,
		"rewardId", rewardID,
		"amount", amount,
		"slot", currentSlot,
	)
	metrics.RewardsSettled.WithLabelValues(pool.Name).Add(float64(amount))
	return nil
}

// UpdateUserRewardPools lazily catches one user up against every pool,
// backfilling pools the user has not seen. Re-running at the same slot with
// no intervening settlement is a no-op: each settlement diff is driven by
// the per-reward pool cursor, not re-derived from totals.
func (l *Ledger) UpdateUserRewardPools(user solana.PublicKey, currentSlot uint64) error {
	rec, err := l.loadReward()
	if err != nil {
		return err
	}
	userKey, userRec, err := l.loadUser(user)
	if err != nil {
		return err
	}

	for i := range rec.RewardPools {
		pool := &rec.RewardPools[i]
		up := userRec.pool(pool.PoolID)
		if up == nil {
			up = userRec.joinPool(pool)
		}
		if err := catchUpUserPool(pool, up, currentSlot); err != nil {
			return err
		}
	}

	if err := l.saveUser(userKey, userRec); err != nil {
		return err
	}

	l.log.Debug("Updated user reward pools",
		"reward", l.rewardKey,
		"user", user,
		"slot", currentSlot,
	)
	return nil
}

// ClaimReward pays out settled reward amount. The transfer goes out before
// the claim bookkeeping commits, so a failed transfer leaves the claimable
// balance untouched.
func (l *Ledger) ClaimReward(ctx context.Context, user solana.PublicKey, poolID, rewardID, amount uint64) error {
	rec, err := l.loadReward()
	if err != nil {
		return err
	}
	reward := rec.reward(rewardID)
	if reward == nil {
		return fmt.Errorf("%w: reward %d", ErrRewardNotFound, rewardID)
	}
	if !reward.Claimable {
		return fmt.Errorf("%w: reward %d", ErrRewardNotClaimable, rewardID)
	}

	userKey, userRec, err := l.loadUser(user)
	if err != nil {
		return err
	}
	up := userRec.pool(poolID)
	if up == nil {
		return fmt.Errorf("%w: pool %d", ErrPoolNotFound, poolID)
	}
	us := up.settlement(rewardID)
	if us == nil {
		return fmt.Errorf("%w: nothing settled for reward %d", ErrInsufficientSettledAmount, rewardID)
	}

	claimed, err := arith.Add(us.ClaimedAmount, amount)
	if err != nil {
		return err
	}
	if claimed > us.SettledAmount {
		return fmt.Errorf("%w: claiming %d of %d settled with %d already claimed",
			ErrInsufficientSettledAmount, amount, us.SettledAmount, us.ClaimedAmount)
	}

	if err := l.tokens.Transfer(ctx, reward.Mint, l.rewardKey, user, amount); err != nil {
		return err
	}
	us.ClaimedAmount = claimed

	if err := l.saveUser(userKey, userRec); err != nil {
		return err
	}

	l.log.Info("Claimed reward",
		"reward", l.rewardKey,
		"user", user,
		"poolId", poolID,
		"rewardId", rewardID,
		"amount", amount,
	)
	metrics.RewardsClaimed.Add(float64(amount))
	return nil
}

// joinPool attaches a user to a pool with settlement cursors seeded at the
// pool's current values, so pre-existing yield never accrues to a newcomer.
func (u *UserRewardAccount) joinPool(pool *RewardPool) *UserRewardPool {
	up := UserRewardPool{
		RewardPoolID: pool.PoolID,
		UpdatedSlot:  pool.UpdatedSlot,
		Settlements:  make([]UserRewardSettlement, len(pool.Settlements)),
	}
	for i, s := range pool.Settlements {
		up.Settlements[i] = UserRewardSettlement{
			RewardID:            s.RewardID,
			SettledContribution: s.SettledContribution,
			SettledSlot:         s.SettledSlot,
			PoolSettledAmount:   s.SettledAmount,
		}
	}
	u.UserRewardPools = append(u.UserRewardPools, up)
	return &u.UserRewardPools[len(u.UserRewardPools)-1]
}

// catchUpUserPool credits the user's share of everything the pool settled
// since the user's last-seen cursor for each reward.
func catchUpUserPool(pool *RewardPool, up *UserRewardPool, currentSlot uint64) error {
	for i := range pool.Settlements {
		s := &pool.Settlements[i]

		us := up.settlement(s.RewardID)
		if us == nil {
			// The reward appeared after the user joined; everything it
			// settled since then is eligible.
			up.Settlements = append(up.Settlements, UserRewardSettlement{RewardID: s.RewardID})
			us = &up.Settlements[len(up.Settlements)-1]
		}

		delta, err := arith.Sub(s.SettledAmount, us.PoolSettledAmount)
		if err != nil {
			return err
		}
		if delta > 0 && s.SettledContribution > 0 {
			share, err := arith.MulDiv(delta, up.Contribution, s.SettledContribution)
			if err != nil {
				return err
			}
			us.SettledAmount, err = arith.Add(us.SettledAmount, share)
			if err != nil {
				return err
			}
		}
		us.PoolSettledAmount = s.SettledAmount
		us.SettledContribution = s.SettledContribution
		us.SettledSlot = currentSlot
	}
	up.UpdatedSlot = currentSlot
	return nil
}

// holderByAddress finds a registered holder by wallet address.
func (r *RewardAccount) holderByAddress(address solana.PublicKey) *Holder {
	for i := range r.Holders {
		if r.Holders[i].Address.Equals(address) {
			return &r.Holders[i]
		}
	}
	return nil
}
