package fund

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// InitParams seeds a new fund record.
type InitParams struct {
	Admin                solana.PublicKey
	ReceiptTokenDecimals uint8
	SolCapacity          uint64
	WithdrawalEnabled    bool
	WithdrawalFeeRateBps uint16
	BatchThreshold       BatchThreshold
}

// Initialize creates the singleton fund record for the ledger's receipt
// token mint.
func (l *Ledger) Initialize(params InitParams) error {
	if params.WithdrawalFeeRateBps > FeeRateDivisor {
		return ErrInvalidFeeRate
	}

	if err := l.store.Create(l.fundKey, l.namespace, fundRecordSize); err != nil {
		return fmt.Errorf("creating fund account: %w", err)
	}

	scale, err := pow10Receipt(params.ReceiptTokenDecimals)
	if err != nil {
		return err
	}

	fund := &FundAccount{
		Admin:                params.Admin,
		ReceiptTokenMint:     l.receiptMint,
		ReceiptTokenDecimals: params.ReceiptTokenDecimals,
		SolCapacity:          params.SolCapacity,
		// One receipt token is worth exactly one whole base token until
		// the first price update.
		OneReceiptTokenAsBaseUnit: scale,
		Withdrawals: WithdrawalStatus{
			WithdrawalEnabled:    params.WithdrawalEnabled,
			WithdrawalFeeRateBps: params.WithdrawalFeeRateBps,
			CurrentBatchID:       1,
			LastBatchEnqueuedAt:  l.clock.Now().Unix(),
			BatchThreshold:       params.BatchThreshold,
		},
	}

	l.log.Info("Initialized fund",
		"fund", l.fundKey,
		"receiptMint", l.receiptMint,
		"solCapacity", params.SolCapacity,
	)
	return l.saveFund(fund)
}

// AddSupportedToken whitelists an asset for deposits.
func (l *Ledger) AddSupportedToken(admin solana.PublicKey, token SupportedToken) error {
	fund, err := l.loadFund()
	if err != nil {
		return err
	}
	if !fund.Admin.Equals(admin) {
		return ErrNotAdmin
	}
	if fund.SupportedToken(token.Mint) != nil {
		return fmt.Errorf("%w: %s", ErrTokenExists, token.Mint)
	}

	token.AccumulatedDepositAmount = 0
	token.OperationReservedAmount = 0
	token.RebalancingAmount = 0
	fund.SupportedTokens = append(fund.SupportedTokens, token)

	l.log.Info("Added supported token",
		"fund", l.fundKey,
		"mint", token.Mint,
		"capacity", token.CapacityAmount,
		"source", token.PricingSource.Kind.String(),
	)
	return l.saveFund(fund)
}

// SetWithdrawalEnabled toggles withdrawal admission.
func (l *Ledger) SetWithdrawalEnabled(admin solana.PublicKey, enabled bool) error {
	fund, err := l.loadFund()
	if err != nil {
		return err
	}
	if !fund.Admin.Equals(admin) {
		return ErrNotAdmin
	}

	fund.Withdrawals.WithdrawalEnabled = enabled
	return l.saveFund(fund)
}

// SetWithdrawalFeeRate updates the fee rate in basis points.
func (l *Ledger) SetWithdrawalFeeRate(admin solana.PublicKey, feeRateBps uint16) error {
	if feeRateBps > FeeRateDivisor {
		return ErrInvalidFeeRate
	}

	fund, err := l.loadFund()
	if err != nil {
		return err
	}
	if !fund.Admin.Equals(admin) {
		return ErrNotAdmin
	}

	fund.Withdrawals.WithdrawalFeeRateBps = feeRateBps
	return l.saveFund(fund)
}

// SetSolCapacity raises or lowers the fund-level base capacity. Lowering it
// below the accumulated deposit only throttles new deposits; existing
// deposits stay.
func (l *Ledger) SetSolCapacity(admin solana.PublicKey, capacity uint64) error {
	fund, err := l.loadFund()
	if err != nil {
		return err
	}
	if !fund.Admin.Equals(admin) {
		return ErrNotAdmin
	}

	fund.SolCapacity = capacity
	return l.saveFund(fund)
}

// SetTokenCapacity adjusts one supported token's deposit capacity.
func (l *Ledger) SetTokenCapacity(admin solana.PublicKey, mint solana.PublicKey, capacity uint64) error {
	fund, err := l.loadFund()
	if err != nil {
		return err
	}
	if !fund.Admin.Equals(admin) {
		return ErrNotAdmin
	}

	token := fund.SupportedToken(mint)
	if token == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedToken, mint)
	}
	token.CapacityAmount = capacity
	return l.saveFund(fund)
}

// fundRecordSize is the creation size hint for fund records; the in-memory
// store only checks it against rent funding.
const fundRecordSize = 4096
