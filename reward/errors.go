package reward

import "errors"

var (
	ErrInvalidNameLength         = errors.New("pool name length out of range")
	ErrInvalidHolderID           = errors.New("invalid holder id")
	ErrDuplicatePool             = errors.New("equivalent reward pool already exists")
	ErrExceededMaxHolders        = errors.New("exceeded maximum number of holders")
	ErrPoolNotFound              = errors.New("reward pool not found")
	ErrRewardNotFound            = errors.New("reward not found")
	ErrRewardNotClaimable        = errors.New("reward is not claimable")
	ErrInsufficientSettledAmount = errors.New("insufficient settled amount")
)
