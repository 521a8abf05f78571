// Package tokenledger defines the token transfer collaborator the accounting
// core signals mints, burns and transfers to. Calls are atomic from the
// core's point of view: bookkeeping commits only after a call succeeds.
package tokenledger

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

var ErrTransferFailed = errors.New("token transfer failed")

type TokenLedger interface {
	Mint(ctx context.Context, mint, to solana.PublicKey, amount uint64) error
	Burn(ctx context.Context, mint, from solana.PublicKey, amount uint64) error
	Transfer(ctx context.Context, mint, from, to solana.PublicKey, amount uint64) error
	Supply(ctx context.Context, mint solana.PublicKey) (uint64, error)
}
