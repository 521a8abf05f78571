// Package store defines the keyed record store the accounting core reads and
// writes through. The host ledger provides the real implementation; memstore
// provides an in-process one for tests and local operator runs.
package store

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrAlreadyExists     = errors.New("record already exists")
	ErrInsufficientFunds = errors.New("insufficient funds to create record")
)

// Account is a raw stored record together with the program that owns it.
type Account struct {
	Owner solana.PublicKey
	Data  []byte
}

// KeyedStore is the persistence collaborator. Every instruction runs with
// exclusive write access to the records it touches; the store does no
// locking of its own.
type KeyedStore interface {
	Get(key solana.PublicKey) (Account, error)
	Put(key solana.PublicKey, acc Account) error
	Create(key solana.PublicKey, owner solana.PublicKey, size int) error
}
