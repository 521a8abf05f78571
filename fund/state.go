package fund

import (
	"bytes"
	"io"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stakemesh/fundcore/pricing"
	"github.com/stakemesh/fundcore/record"
)

// MaxWithdrawalRequests bounds the outstanding requests per user.
const MaxWithdrawalRequests = 10

// FeeRateDivisor is the basis-point divisor for withdrawal fees.
const FeeRateDivisor = 10_000

// SupportedToken is one whitelisted asset inside a fund.
type SupportedToken struct {
	Mint     solana.PublicKey // 32
	Decimals uint8            // 1

	PricingSource pricing.SourceRef

	CapacityAmount           uint64 // 8
	AccumulatedDepositAmount uint64 // 8
	OperationReservedAmount  uint64 // 8

	// OneTokenAsBaseUnit caches the last resolved base-unit value of one
	// whole token.
	OneTokenAsBaseUnit uint64 // 8

	RebalancingAmount   uint64 // 8
	SolAllocationWeight uint64 // 8
}

// BatchThreshold gates batch enqueueing on aggregate amount or elapsed time.
type BatchThreshold struct {
	Amount          uint64 // 8
	DurationSeconds uint64 // 8
}

// WithdrawalStatus is the fund-level withdrawal batch state machine.
type WithdrawalStatus struct {
	WithdrawalEnabled    bool   // 1
	WithdrawalFeeRateBps uint16 // 2, divisor 10_000

	// ReservedFundBaseRemaining is the base-unit pool completed batches
	// draw payouts from.
	ReservedFundBaseRemaining uint64 // 8

	LastCompletedBatchID uint64 // 8

	// CurrentBatchID tags new requests; enqueueing a batch advances it.
	CurrentBatchID uint64 // 8

	// PendingRequestedAmount aggregates receipt tokens requested since the
	// last batch boundary.
	PendingRequestedAmount uint64 // 8

	LastBatchEnqueuedAt int64 // 8, unix seconds

	BatchThreshold BatchThreshold
}

// FundAccount is the singleton fund record for one receipt token mint.
type FundAccount struct {
	Admin                solana.PublicKey // 32
	ReceiptTokenMint     solana.PublicKey // 32
	ReceiptTokenDecimals uint8            // 1

	SolCapacity           uint64 // 8
	SolAccumulatedDeposit uint64 // 8
	SolOperationReserved  uint64 // 8

	// OneReceiptTokenAsBaseUnit caches the last computed NAV of one whole
	// receipt token.
	OneReceiptTokenAsBaseUnit uint64 // 8

	SupportedTokens []SupportedToken
	Withdrawals     WithdrawalStatus
}

func (f *FundAccount) Serialize(w io.Writer) error {
	return bin.NewBorshEncoder(w).Encode(*f)
}

func (f *FundAccount) Deserialize(data []byte) error {
	return bin.NewBorshDecoder(data).Decode(f)
}

// SupportedToken finds a whitelisted asset by mint.
func (f *FundAccount) SupportedToken(mint solana.PublicKey) *SupportedToken {
	for i := range f.SupportedTokens {
		if f.SupportedTokens[i].Mint.Equals(mint) {
			return &f.SupportedTokens[i]
		}
	}
	return nil
}

// WithdrawalRequest is one user's pending claim on a withdrawal batch.
type WithdrawalRequest struct {
	BatchID            uint64 // 8
	RequestID          uint64 // 8
	ReceiptTokenAmount uint64 // 8
	CreatedAt          int64  // 8, unix seconds
}

// UserFundAccount is the per-(user, receipt mint) record.
type UserFundAccount struct {
	User             solana.PublicKey // 32
	ReceiptTokenMint solana.PublicKey // 32

	// ReceiptTokenAmount mirrors the user's receipt holdings for off-chain
	// indexing; transfers outside the fund are not reflected here.
	ReceiptTokenAmount uint64 // 8

	NextRequestID      uint64 // 8
	WithdrawalRequests []WithdrawalRequest
}

func (u *UserFundAccount) Serialize(w io.Writer) error {
	return bin.NewBorshEncoder(w).Encode(*u)
}

func (u *UserFundAccount) Deserialize(data []byte) error {
	return bin.NewBorshDecoder(data).Decode(u)
}

// request finds a pending request by id.
func (u *UserFundAccount) request(requestID uint64) (int, *WithdrawalRequest) {
	for i := range u.WithdrawalRequests {
		if u.WithdrawalRequests[i].RequestID == requestID {
			return i, &u.WithdrawalRequests[i]
		}
	}
	return -1, nil
}

// Version history. v0 predates batch thresholds and per-token allocation
// weights; migrating defaults both to zero.

type supportedTokenV0 struct {
	Mint                     solana.PublicKey
	Decimals                 uint8
	PricingSource            pricing.SourceRef
	CapacityAmount           uint64
	AccumulatedDepositAmount uint64
	OperationReservedAmount  uint64
	OneTokenAsBaseUnit       uint64
	RebalancingAmount        uint64
}

type withdrawalStatusV0 struct {
	WithdrawalEnabled         bool
	WithdrawalFeeRateBps      uint16
	ReservedFundBaseRemaining uint64
	LastCompletedBatchID      uint64
	CurrentBatchID            uint64
	PendingRequestedAmount    uint64
	LastBatchEnqueuedAt       int64
}

type fundAccountV0 struct {
	Admin                     solana.PublicKey
	ReceiptTokenMint          solana.PublicKey
	ReceiptTokenDecimals      uint8
	SolCapacity               uint64
	SolAccumulatedDeposit     uint64
	SolOperationReserved      uint64
	OneReceiptTokenAsBaseUnit uint64
	SupportedTokens           []supportedTokenV0
	Withdrawals               withdrawalStatusV0
}

func migrateFundAccountV0(data []byte) ([]byte, error) {
	var old fundAccountV0
	if err := bin.NewBorshDecoder(data[1:]).Decode(&old); err != nil {
		return nil, err
	}

	next := FundAccount{
		Admin:                     old.Admin,
		ReceiptTokenMint:          old.ReceiptTokenMint,
		ReceiptTokenDecimals:      old.ReceiptTokenDecimals,
		SolCapacity:               old.SolCapacity,
		SolAccumulatedDeposit:     old.SolAccumulatedDeposit,
		SolOperationReserved:      old.SolOperationReserved,
		OneReceiptTokenAsBaseUnit: old.OneReceiptTokenAsBaseUnit,
		SupportedTokens:           make([]SupportedToken, len(old.SupportedTokens)),
		Withdrawals: WithdrawalStatus{
			WithdrawalEnabled:         old.Withdrawals.WithdrawalEnabled,
			WithdrawalFeeRateBps:      old.Withdrawals.WithdrawalFeeRateBps,
			ReservedFundBaseRemaining: old.Withdrawals.ReservedFundBaseRemaining,
			LastCompletedBatchID:      old.Withdrawals.LastCompletedBatchID,
			CurrentBatchID:            old.Withdrawals.CurrentBatchID,
			PendingRequestedAmount:    old.Withdrawals.PendingRequestedAmount,
			LastBatchEnqueuedAt:       old.Withdrawals.LastBatchEnqueuedAt,
		},
	}
	for i, tok := range old.SupportedTokens {
		next.SupportedTokens[i] = SupportedToken{
			Mint:                     tok.Mint,
			Decimals:                 tok.Decimals,
			PricingSource:            tok.PricingSource,
			CapacityAmount:           tok.CapacityAmount,
			AccumulatedDepositAmount: tok.AccumulatedDepositAmount,
			OperationReservedAmount:  tok.OperationReservedAmount,
			OneTokenAsBaseUnit:       tok.OneTokenAsBaseUnit,
			RebalancingAmount:        tok.RebalancingAmount,
		}
	}

	var buf bytes.Buffer
	buf.WriteByte(1)
	if err := bin.NewBorshEncoder(&buf).Encode(next); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var fundSchema = record.NewSchema("fund_account", 1,
	func() *FundAccount { return &FundAccount{} },
	migrateFundAccountV0,
)

var userFundSchema = record.NewSchema("user_fund_account", 0,
	func() *UserFundAccount { return &UserFundAccount{} },
)
