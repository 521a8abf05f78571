// Package reward distributes yield to depositors through
// contribution-weighted reward pools: pool and holder registration,
// slot-indexed settlement, lazy per-user catch-up, and claim bookkeeping.
//
// Settlement is cumulative and cursor-based. Yield lands in a pool through
// SettleReward; each user's share is derived lazily by diffing the pool's
// cumulative settled amount against the user's last-seen cursor, so catch-up
// updates are idempotent and never double-apply on retry.
package reward

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/stakemesh/fundcore/store"
	"github.com/stakemesh/fundcore/tokenledger"
)

var (
	ErrLoggerRequired    = errors.New("logger is required")
	ErrStoreRequired     = errors.New("store is required")
	ErrTokensRequired    = errors.New("token ledger is required")
	ErrNamespaceRequired = errors.New("namespace is required")
	ErrMintRequired      = errors.New("receipt token mint is required")
)

type Config struct {
	Logger *slog.Logger
	Store  store.KeyedStore
	Tokens tokenledger.TokenLedger

	// Namespace is the program id record addresses derive under.
	Namespace solana.PublicKey

	// ReceiptTokenMint selects the fund whose rewards this ledger manages.
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
	if c.Namespace.IsZero() {
		return ErrNamespaceRequired
	}
	if c.ReceiptTokenMint.IsZero() {
		return ErrMintRequired
	}
	return nil
}

// Ledger executes reward instructions against one receipt token mint.
type Ledger struct {
	log    *slog.Logger
	store  store.KeyedStore
	tokens tokenledger.TokenLedger

	namespace   solana.PublicKey
	receiptMint solana.PublicKey
	rewardKey   solana.PublicKey
}

func New(cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rewardKey, err := store.RewardAccountAddress(cfg.Namespace, cfg.ReceiptTokenMint)
	if err != nil {
		return nil, fmt.Errorf("deriving reward account address: %w", err)
	}

	return &Ledger{
		log:         cfg.Logger,
		store:       cfg.Store,
		tokens:      cfg.Tokens,
		namespace:   cfg.Namespace,
		receiptMint: cfg.ReceiptTokenMint,
		rewardKey:   rewardKey,
	}, nil
}

// RewardKey is the derived address of the reward record; it doubles as the
// reward treasury holder on the token ledger.
func (l *Ledger) RewardKey() solana.PublicKey { return l.rewardKey }

// Initialize creates the singleton reward record for the ledger's receipt
// token mint.
func (l *Ledger) Initialize() error {
	if err := l.store.Create(l.rewardKey, l.namespace, rewardRecordSize); err != nil {
		return fmt.Errorf("creating reward account: %w", err)
	}

	l.log.Info("Initialized reward account",
		"reward", l.rewardKey,
		"receiptMint", l.receiptMint,
	)
	return l.saveReward(&RewardAccount{ReceiptTokenMint: l.receiptMint})
}

func (l *Ledger) loadReward() (*RewardAccount, error) {
	acc, err := l.store.Get(l.rewardKey)
	if err != nil {
		return nil, fmt.Errorf("loading reward account: %w", err)
	}

	rec, upgraded, err := rewardSchema.Load(acc.Data)
	if err != nil {
		return nil, err
	}
	if upgraded {
		l.log.Info("Upgraded reward account schema",
			"reward", l.rewardKey,
			"version", rewardSchema.Latest(),
		)
		if err := l.saveReward(rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (l *Ledger) saveReward(rec *RewardAccount) error {
	data, err := rewardSchema.Save(rec)
	if err != nil {
		return err
	}
	return l.store.Put(l.rewardKey, store.Account{Owner: l.namespace, Data: data})
}

// loadUser fetches the per-user record, creating it lazily on first
// interaction.
func (l *Ledger) loadUser(user solana.PublicKey) (solana.PublicKey, *UserRewardAccount, error) {
	key, err := store.UserRewardAccountAddress(l.namespace, user)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}

	acc, err := l.store.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return key, &UserRewardAccount{User: user}, nil
	}
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("loading user reward account: %w", err)
	}

	rec, upgraded, err := userRewardSchema.Load(acc.Data)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	if upgraded {
		l.log.Info("Upgraded user reward account schema",
			"user", user,
			"version", userRewardSchema.Latest(),
		)
	}
	return key, rec, nil
}

func (l *Ledger) saveUser(key solana.PublicKey, rec *UserRewardAccount) error {
	data, err := userRewardSchema.Save(rec)
	if err != nil {
		return err
	}
	return l.store.Put(key, store.Account{Owner: l.namespace, Data: data})
}

// Reward returns a copy of the reward record for inspection.
func (l *Ledger) Reward() (*RewardAccount, error) {
	return l.loadReward()
}

// User returns a copy of a user's reward record for inspection.
func (l *Ledger) User(user solana.PublicKey) (*UserRewardAccount, error) {
	_, rec, err := l.loadUser(user)
	return rec, err
}

const rewardRecordSize = 4096
