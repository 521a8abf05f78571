package fund

import (
	"bytes"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/stakemesh/fundcore/pricing"
)

func TestFundAccount_MigrateV0(t *testing.T) {
	t.Parallel()

	admin := solana.PublicKey{1}
	mint := solana.PublicKey{2}
	tokenMint := solana.PublicKey{3}

	old := fundAccountV0{
		Admin:                     admin,
		ReceiptTokenMint:          mint,
		ReceiptTokenDecimals:      9,
		SolCapacity:               5_000,
		SolAccumulatedDeposit:     1_200,
		SolOperationReserved:      800,
		OneReceiptTokenAsBaseUnit: 1_050_000_000,
		SupportedTokens: []supportedTokenV0{{
			Mint:     tokenMint,
			Decimals: 9,
			PricingSource: pricing.SourceRef{
				Kind: pricing.SourceStakePool,
				Mint: tokenMint,
			},
			CapacityAmount:           9_000,
			AccumulatedDepositAmount: 400,
			OperationReservedAmount:  300,
			OneTokenAsBaseUnit:       1_100_000_000,
			RebalancingAmount:        25,
		}},
		Withdrawals: withdrawalStatusV0{
			WithdrawalEnabled:         true,
			WithdrawalFeeRateBps:      25,
			ReservedFundBaseRemaining: 77,
			LastCompletedBatchID:      3,
			CurrentBatchID:            5,
			PendingRequestedAmount:    42,
			LastBatchEnqueuedAt:       1_700_000_000,
		},
	}

	var buf bytes.Buffer
	buf.WriteByte(0)
	require.NoError(t, bin.NewBorshEncoder(&buf).Encode(old))

	rec, upgraded, err := fundSchema.Load(buf.Bytes())
	require.NoError(t, err)
	require.True(t, upgraded)

	require.Equal(t, admin, rec.Admin)
	require.Equal(t, uint8(9), rec.ReceiptTokenDecimals)
	require.Equal(t, uint64(1_050_000_000), rec.OneReceiptTokenAsBaseUnit)
	require.Equal(t, uint64(800), rec.SolOperationReserved)

	require.Len(t, rec.SupportedTokens, 1)
	token := rec.SupportedTokens[0]
	require.Equal(t, tokenMint, token.Mint)
	require.Equal(t, uint64(1_100_000_000), token.OneTokenAsBaseUnit)
	require.Equal(t, uint64(25), token.RebalancingAmount)
	// New field defaults to zero until the admin assigns weights.
	require.Equal(t, uint64(0), token.SolAllocationWeight)

	w := rec.Withdrawals
	require.True(t, w.WithdrawalEnabled)
	require.Equal(t, uint16(25), w.WithdrawalFeeRateBps)
	require.Equal(t, uint64(3), w.LastCompletedBatchID)
	require.Equal(t, uint64(5), w.CurrentBatchID)
	// New thresholds default to zero, which disables automatic batching.
	require.Equal(t, BatchThreshold{}, w.BatchThreshold)

	// Saving and reloading the migrated record round-trips at the latest
	// version.
	data, err := fundSchema.Save(rec)
	require.NoError(t, err)
	again, upgraded, err := fundSchema.Load(data)
	require.NoError(t, err)
	require.False(t, upgraded)
	require.Equal(t, rec, again)
}

func TestUserFundAccount_RoundTrip(t *testing.T) {
	t.Parallel()

	rec := &UserFundAccount{
		User:               solana.PublicKey{7},
		ReceiptTokenMint:   solana.PublicKey{8},
		ReceiptTokenAmount: 123_456,
		NextRequestID:      4,
		WithdrawalRequests: []WithdrawalRequest{
			{BatchID: 2, RequestID: 1, ReceiptTokenAmount: 100, CreatedAt: 1_700_000_100},
			{BatchID: 3, RequestID: 3, ReceiptTokenAmount: 250, CreatedAt: 1_700_000_200},
		},
	}

	data, err := userFundSchema.Save(rec)
	require.NoError(t, err)
	again, upgraded, err := userFundSchema.Load(data)
	require.NoError(t, err)
	require.False(t, upgraded)
	require.Equal(t, rec, again)
}
