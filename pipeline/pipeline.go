// Package pipeline is a small interpreter that threads a fund through an
// ordered sequence of operation commands. Each operator-run invocation
// executes exactly one command; a command may hand back a follow-up command,
// which runs on the next invocation.
package pipeline

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	borsh "github.com/near/borsh-go"
)

// Kind tags the closed set of operation commands.
type Kind uint8

const (
	KindInitialize Kind = iota + 1
	KindEnqueueWithdrawalBatch
	KindClaimUnstaked
	KindStake
	KindUnstake
	KindNormalize
	KindDenormalize
	KindDelegate
	KindUndelegate
	KindHarvest
)

func (k Kind) String() string {
	switch k {
	case KindInitialize:
		return "initialize"
	case KindEnqueueWithdrawalBatch:
		return "enqueue-withdrawal-batch"
	case KindClaimUnstaked:
		return "claim-unstaked"
	case KindStake:
		return "stake"
	case KindUnstake:
		return "unstake"
	case KindNormalize:
		return "normalize"
	case KindDenormalize:
		return "denormalize"
	case KindDelegate:
		return "delegate"
	case KindUndelegate:
		return "undelegate"
	case KindHarvest:
		return "harvest"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Result summarizes one executed command.
type Result struct {
	Kind   Kind
	Mint   solana.PublicKey
	Amount uint64
}

// Command is one step of an operator run. RequiredAccounts is independent of
// execution so a caller can pre-validate and supply exactly the accounts the
// command will touch. Execute returns the follow-up command to run next, if
// any; a command that fails after persisting part of its work returns a
// follow-up alongside the error to mark where a retry resumes.
type Command interface {
	Kind() Kind
	RequiredAccounts(*Context) ([]solana.PublicKey, error)
	Execute(*Context) (*Result, Command, error)
}

// OperationCommandEntry is the serialized hand-off descriptor for a pending
// command between operator runs.
type OperationCommandEntry struct {
	Kind             uint8
	RequiredAccounts []solana.PublicKey
}

// NewEntry captures a command's kind and account requirements for hand-off.
func NewEntry(cmd Command, c *Context) (*OperationCommandEntry, error) {
	accounts, err := cmd.RequiredAccounts(c)
	if err != nil {
		return nil, err
	}
	return &OperationCommandEntry{
		Kind:             uint8(cmd.Kind()),
		RequiredAccounts: accounts,
	}, nil
}

func (e *OperationCommandEntry) Serialize() ([]byte, error) {
	return borsh.Serialize(*e)
}

func DeserializeEntry(data []byte) (*OperationCommandEntry, error) {
	var e OperationCommandEntry
	if err := borsh.Deserialize(&e, data); err != nil {
		return nil, fmt.Errorf("decoding operation command entry: %w", err)
	}
	return &e, nil
}
