// Package fund is the accounting core of a multi-asset liquid-restaking
// fund: per-asset capacity and reservation bookkeeping, receipt-token NAV
// computation, and the withdrawal batch state machine.
//
// Every operation is single-shot atomic: it loads working copies of the
// records it touches, mutates them, signals the token ledger, and persists
// only on success. Execution is strictly single-threaded per record; the
// host guarantees single-writer access, so nothing here locks.
package fund

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stakemesh/fundcore/pricing"
	"github.com/stakemesh/fundcore/store"
	"github.com/stakemesh/fundcore/tokenledger"
)

var (
	ErrLoggerRequired    = errors.New("logger is required")
	ErrStoreRequired     = errors.New("store is required")
	ErrTokensRequired    = errors.New("token ledger is required")
	ErrPricesRequired    = errors.New("pricing aggregator is required")
	ErrNamespaceRequired = errors.New("namespace is required")
	ErrMintRequired      = errors.New("receipt token mint is required")
)

type Config struct {
	Logger *slog.Logger
	Store  store.KeyedStore
	Tokens tokenledger.TokenLedger
	Prices *pricing.Aggregator
	Clock  clockwork.Clock

	// Namespace is the program id record addresses derive under.
	Namespace solana.PublicKey

	// ReceiptTokenMint selects the fund this ledger operates on.
	ReceiptTokenMint solana.PublicKey
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return ErrLoggerRequired
	}
	if c.Store == nil {
		return ErrStoreRequired
	}
	if c.Tokens == nil {
		return ErrTokensRequired
	}
	if c.Prices == nil {
		return ErrPricesRequired
	}
	if c.Namespace.IsZero() {
		return ErrNamespaceRequired
	}
	if c.ReceiptTokenMint.IsZero() {
		return ErrMintRequired
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Ledger executes fund instructions against one receipt token mint.
type Ledger struct {
	log    *slog.Logger
	store  store.KeyedStore
	tokens tokenledger.TokenLedger
	prices *pricing.Aggregator
	clock  clockwork.Clock

	namespace   solana.PublicKey
	receiptMint solana.PublicKey
	fundKey     solana.PublicKey
}

func New(cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	fundKey, err := store.FundAccountAddress(cfg.Namespace, cfg.ReceiptTokenMint)
	if err != nil {
		return nil, fmt.Errorf("deriving fund account address: %w", err)
	}

	return &Ledger{
		log:         cfg.Logger,
		store:       cfg.Store,
		tokens:      cfg.Tokens,
		prices:      cfg.Prices,
		clock:       cfg.Clock,
		namespace:   cfg.Namespace,
		receiptMint: cfg.ReceiptTokenMint,
		fundKey:     fundKey,
	}, nil
}

// FundKey is the derived address of the fund record; it doubles as the
// fund's treasury holder on the token ledger.
func (l *Ledger) FundKey() solana.PublicKey { return l.fundKey }

func (l *Ledger) loadFund() (*FundAccount, error) {
	acc, err := l.store.Get(l.fundKey)
	if err != nil {
		return nil, fmt.Errorf("loading fund account: %w", err)
	}

	fund, upgraded, err := fundSchema.Load(acc.Data)
	if err != nil {
		return nil, err
	}
	if upgraded {
		l.log.Info("Upgraded fund account schema",
			"fund", l.fundKey,
			"version", fundSchema.Latest(),
		)
		if err := l.saveFund(fund); err != nil {
			return nil, err
		}
	}
	return fund, nil
}

func (l *Ledger) saveFund(fund *FundAccount) error {
	data, err := fundSchema.Save(fund)
	if err != nil {
		return err
	}
	return l.store.Put(l.fundKey, store.Account{Owner: l.namespace, Data: data})
}

// loadUser fetches the per-user record, creating it lazily on first
// interaction.
func (l *Ledger) loadUser(user solana.PublicKey) (solana.PublicKey, *UserFundAccount, error) {
	key, err := store.UserFundAccountAddress(l.namespace, user, l.receiptMint)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}

	acc, err := l.store.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return key, &UserFundAccount{User: user, ReceiptTokenMint: l.receiptMint}, nil
	}
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("loading user fund account: %w", err)
	}

	rec, _, err := userFundSchema.Load(acc.Data)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	return key, rec, nil
}

func (l *Ledger) saveUser(key solana.PublicKey, rec *UserFundAccount) error {
	data, err := userFundSchema.Save(rec)
	if err != nil {
		return err
	}
	return l.store.Put(key, store.Account{Owner: l.namespace, Data: data})
}
