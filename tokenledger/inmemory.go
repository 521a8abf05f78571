package tokenledger

import (
	"context"
	"fmt"
	"math/bits"
	"sync"

	"github.com/gagliardetto/solana-go"
)

type holding struct {
	mint  solana.PublicKey
	owner solana.PublicKey
}

// InMemory is a map-backed TokenLedger for tests and local operator runs.
type InMemory struct {
	mu       sync.Mutex
	supply   map[solana.PublicKey]uint64
	balances map[holding]uint64
}

func NewInMemory() *InMemory {
	return &InMemory{
		supply:   make(map[solana.PublicKey]uint64),
		balances: make(map[holding]uint64),
	}
}

func (l *InMemory) Mint(ctx context.Context, mint, to solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sum, carry := bits.Add64(l.supply[mint], amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: supply overflow for mint %s", ErrTransferFailed, mint)
	}
	l.supply[mint] = sum
	l.balances[holding{mint, to}] += amount
	return nil
}

func (l *InMemory) Burn(ctx context.Context, mint, from solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h := holding{mint, from}
	if l.balances[h] < amount {
		return fmt.Errorf("%w: insufficient balance to burn %d from %s", ErrTransferFailed, amount, from)
	}
	l.balances[h] -= amount
	l.supply[mint] -= amount
	return nil
}

func (l *InMemory) Transfer(ctx context.Context, mint, from, to solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	src := holding{mint, from}
	if l.balances[src] < amount {
		return fmt.Errorf("%w: insufficient balance to transfer %d from %s", ErrTransferFailed, amount, from)
	}
	l.balances[src] -= amount
	l.balances[holding{mint, to}] += amount
	return nil
}

func (l *InMemory) Supply(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.supply[mint], nil
}

// Balance reports a holder's balance for a mint. Test helper.
func (l *InMemory) Balance(mint, owner solana.PublicKey) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balances[holding{mint, owner}]
}
