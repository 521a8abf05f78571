package fund

import "errors"

var (
	// Capacity and limit violations: user-correctable, surfaced verbatim.
	ErrCapacityExceeded       = errors.New("capacity exceeded")
	ErrTooManyPendingRequests = errors.New("too many pending withdrawal requests")

	// State preconditions: the caller retries later or takes another path.
	ErrWithdrawalDisabled   = errors.New("withdrawals are disabled")
	ErrBatchNotYetCompleted = errors.New("withdrawal batch not yet completed")
	ErrRequestNotFound      = errors.New("withdrawal request not found")
	ErrBatchOutOfOrder      = errors.New("batch must be completed in order")
	ErrBatchNotEnqueued     = errors.New("batch has not been enqueued")
	ErrRequestBatched       = errors.New("withdrawal request is already batched")

	// Validation.
	ErrUnsupportedToken = errors.New("token is not supported by the fund")
	ErrTokenExists      = errors.New("token is already supported by the fund")
	ErrInvalidFeeRate   = errors.New("withdrawal fee rate exceeds 10000 basis points")
	ErrNotAdmin         = errors.New("caller is not the fund admin")
)
