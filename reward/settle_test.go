package reward_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/stakemesh/fundcore/reward"
)

// setupPool registers one reward and one open pool and returns their ids.
func setupPool(t *testing.T, ledger *reward.Ledger) (poolID, rewardID uint64) {
	t.Helper()

	rewardID, err := ledger.AddReward(testRewardMint, 9)
	require.NoError(t, err)
	poolID, err = ledger.AddRewardPool("yield", 0, false, 1)
	require.NoError(t, err)
	return poolID, rewardID
}

func TestLedger_SettleAndCatchUp_ProRata(t *testing.T) {
	t.Parallel()

	ledger, _ := newTestLedger(t)
	poolID, rewardID := setupPool(t, ledger)

	alice := testKey(0xa1)
	bob := testKey(0xb2)

	// Contributions 1:3 at the default 1.00x rate.
	require.NoError(t, ledger.AllocateTokens(alice, poolID, 1_000, 10))
	require.NoError(t, ledger.AllocateTokens(bob, poolID, 3_000, 10))

	require.NoError(t, ledger.SettleReward(poolID, rewardID, 1_000, 20))

	require.NoError(t, ledger.UpdateUserRewardPools(alice, 30))
	require.NoError(t, ledger.UpdateUserRewardPools(bob, 30))

	aliceRec, err := ledger.User(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(250), aliceRec.UserRewardPools[0].Settlements[0].SettledAmount)

	bobRec, err := ledger.User(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(750), bobRec.UserRewardPools[0].Settlements[0].SettledAmount)
}

func TestLedger_UpdateUserRewardPools_Idempotent(t *testing.T) {
	t.Parallel()

	ledger, _ := newTestLedger(t)
	poolID, rewardID := setupPool(t, ledger)

	require.NoError(t, ledger.AllocateTokens(testUser, poolID, 1_000, 10))
	require.NoError(t, ledger.SettleReward(poolID, rewardID, 500, 20))

	require.NoError(t, ledger.UpdateUserRewardPools(testUser, 30))
	first, err := ledger.User(testUser)
	require.NoError(t, err)

	// No intervening settlement: the second catch-up at the same slot must
	// leave the record bit-identical.
	require.NoError(t, ledger.UpdateUserRewardPools(testUser, 30))
	second, err := ledger.User(testUser)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("user reward state changed on idempotent update (-first +second):\n%s", diff)
	}
	require.Equal(t, uint64(500), second.UserRewardPools[0].Settlements[0].SettledAmount)
}

func TestLedger_AllocateTokens_RateChangeSegments(t *testing.T) {
	t.Parallel()

	ledger, _ := newTestLedger(t)
	_, err := ledger.AddReward(testRewardMint, 9)
	require.NoError(t, err)

	holderID, err := ledger.AddHolder(testUser, 100)
	require.NoError(t, err)
	poolID, err := ledger.AddRewardPool("boosted", holderID, true, 1)
	require.NoError(t, err)

	// 500 units at 1.00x, then the rate doubles and another 500 land at
	// 2.00x. The first segment is never rewritten.
	require.NoError(t, ledger.AllocateTokens(testUser, poolID, 500, 10))
	require.NoError(t, ledger.SetHolderRate(holderID, 200))
	require.NoError(t, ledger.AllocateTokens(testUser, poolID, 500, 20))

	userRec, err := ledger.User(testUser)
	require.NoError(t, err)
	up := userRec.UserRewardPools[0]
	require.Equal(t, uint64(500*100+500*200), up.Contribution)
	require.Equal(t, []reward.AllocationRecord{
		{Amount: 500, RateBps2: 100},
		{Amount: 500, RateBps2: 200},
	}, up.AllocationRecords)

	rec, err := ledger.Reward()
	require.NoError(t, err)
	require.Equal(t, uint64(150_000), rec.RewardPools[0].TotalContribution)
}

func TestLedger_AllocateTokens_RestrictedPool(t *testing.T) {
	t.Parallel()

	ledger, _ := newTestLedger(t)
	holderID, err := ledger.AddHolder(testUser, 150)
	require.NoError(t, err)
	poolID, err := ledger.AddRewardPool("members", holderID, false, 1)
	require.NoError(t, err)

	require.NoError(t, ledger.AllocateTokens(testUser, poolID, 100, 5))

	outsider := testKey(0xcc)
	require.ErrorIs(t, ledger.AllocateTokens(outsider, poolID, 100, 5), reward.ErrInvalidHolderID)

	require.ErrorIs(t, ledger.AllocateTokens(testUser, 42, 100, 5), reward.ErrPoolNotFound)
}

func TestLedger_CatchUp_NewcomerNotCredited(t *testing.T) {
	t.Parallel()

	ledger, _ := newTestLedger(t)
	poolID, rewardID := setupPool(t, ledger)

	require.NoError(t, ledger.AllocateTokens(testUser, poolID, 1_000, 10))
	require.NoError(t, ledger.SettleReward(poolID, rewardID, 900, 20))

	// A newcomer joins after settlement; the cursor seeds at the pool's
	// current settled amount, leaving nothing eligible.
	late := testKey(0xdd)
	require.NoError(t, ledger.AllocateTokens(late, poolID, 5_000, 30))
	require.NoError(t, ledger.UpdateUserRewardPools(late, 40))

	lateRec, err := ledger.User(late)
	require.NoError(t, err)
	require.Equal(t, uint64(0), lateRec.UserRewardPools[0].Settlements[0].SettledAmount)

	// The incumbent still receives the full settlement.
	require.NoError(t, ledger.UpdateUserRewardPools(testUser, 40))
	userRec, err := ledger.User(testUser)
	require.NoError(t, err)
	require.Equal(t, uint64(900), userRec.UserRewardPools[0].Settlements[0].SettledAmount)
}

func TestLedger_ClaimReward(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger, bank := newTestLedger(t)
	poolID, rewardID := setupPool(t, ledger)

	require.NoError(t, ledger.AllocateTokens(testUser, poolID, 1_000, 10))
	require.NoError(t, ledger.SettleReward(poolID, rewardID, 600, 20))
	require.NoError(t, ledger.UpdateUserRewardPools(testUser, 30))

	// Claims are rejected until the reward opens.
	err := ledger.ClaimReward(ctx, testUser, poolID, rewardID, 100)
	require.ErrorIs(t, err, reward.ErrRewardNotClaimable)

	require.NoError(t, ledger.SetRewardClaimable(rewardID))
	require.NoError(t, bank.Mint(ctx, testRewardMint, ledger.RewardKey(), 600))

	require.NoError(t, ledger.ClaimReward(ctx, testUser, poolID, rewardID, 400))
	require.Equal(t, uint64(400), bank.Balance(testRewardMint, testUser))

	// 200 settled remain; claiming 201 would overdraw.
	err = ledger.ClaimReward(ctx, testUser, poolID, rewardID, 201)
	require.ErrorIs(t, err, reward.ErrInsufficientSettledAmount)

	require.NoError(t, ledger.ClaimReward(ctx, testUser, poolID, rewardID, 200))
	require.Equal(t, uint64(600), bank.Balance(testRewardMint, testUser))

	err = ledger.ClaimReward(ctx, testUser, poolID, rewardID, 1)
	require.ErrorIs(t, err, reward.ErrInsufficientSettledAmount)
}

func TestLedger_ClaimReward_TransferFailureLeavesClaimable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger, bank := newTestLedger(t)
	poolID, rewardID := setupPool(t, ledger)

	require.NoError(t, ledger.AllocateTokens(testUser, poolID, 1_000, 10))
	require.NoError(t, ledger.SettleReward(poolID, rewardID, 500, 20))
	require.NoError(t, ledger.UpdateUserRewardPools(testUser, 30))
	require.NoError(t, ledger.SetRewardClaimable(rewardID))

	// The treasury is empty, so the transfer fails and no claim commits.
	err := ledger.ClaimReward(ctx, testUser, poolID, rewardID, 500)
	require.Error(t, err)

	require.NoError(t, bank.Mint(ctx, testRewardMint, ledger.RewardKey(), 500))
	require.NoError(t, ledger.ClaimReward(ctx, testUser, poolID, rewardID, 500))
	require.Equal(t, uint64(500), bank.Balance(testRewardMint, testUser))
}
