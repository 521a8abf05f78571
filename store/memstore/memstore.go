// Package memstore is a map-backed KeyedStore for tests and local operator
// runs. Callers get the same single-writer-per-record guarantee the host
// ledger provides, so no locking happens here beyond a map guard.
package memstore

import (
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/stakemesh/fundcore/store"
)

type Store struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]store.Account

	// MaxRecordSize rejects Create calls above this size with
	// ErrInsufficientFunds, mirroring rent-funding failures on a real
	// ledger. Zero means unlimited.
	MaxRecordSize int
}

func New() *Store {
	return &Store{
		accounts: make(map[solana.PublicKey]store.Account),
	}
}

func (s *Store) Get(key solana.PublicKey) (store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[key]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return acc, nil
}

func (s *Store) Put(key solana.PublicKey, acc store.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[key] = acc
	return nil
}

func (s *Store) Create(key solana.PublicKey, owner solana.PublicKey, size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[key]; ok {
		return store.ErrAlreadyExists
	}
	if s.MaxRecordSize > 0 && size > s.MaxRecordSize {
		return store.ErrInsufficientFunds
	}
	s.accounts[key] = store.Account{Owner: owner, Data: make([]byte, 0, size)}
	return nil
}
