package pricing

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jellydator/ttlcache/v3"
)

var (
	ErrLoggerRequired = errors.New("logger is required")
	ErrNoSources      = errors.New("at least one pricing source is required")
)

type Config struct {
	Logger  *slog.Logger
	Sources []Source

	// QuoteTTL memoizes quotes per source account. Zero disables the
	// cache; price updates then always hit the adapters.
	QuoteTTL time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return ErrLoggerRequired
	}
	if len(c.Sources) == 0 {
		return ErrNoSources
	}
	return nil
}

// Aggregator dispatches value resolution over the closed set of source
// kinds.
type Aggregator struct {
	log     *slog.Logger
	sources map[SourceKind]Source
	cache   *ttlcache.Cache[solana.PublicKey, Ratio]
}

func New(cfg Config) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	sources := make(map[SourceKind]Source, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if _, ok := sources[src.Kind()]; ok {
			return nil, fmt.Errorf("duplicate pricing source kind %s", src.Kind())
		}
		sources[src.Kind()] = src
	}

	a := &Aggregator{
		log:     cfg.Logger,
		sources: sources,
	}
	if cfg.QuoteTTL > 0 {
		a.cache = ttlcache.New(
			ttlcache.WithTTL[solana.PublicKey, Ratio](cfg.QuoteTTL),
		)
	}
	return a, nil
}

// ResolveValue quotes the ratio for asset through its configured source.
func (a *Aggregator) ResolveValue(asset solana.PublicKey, ref SourceRef, accounts []Account) (Ratio, error) {
	if a.cache != nil {
		if item := a.cache.Get(ref.Address); item != nil {
			return item.Value(), nil
		}
	}

	src, ok := a.sources[ref.Kind]
	if !ok {
		return Ratio{}, fmt.Errorf("%w: no adapter for kind %s pricing %s", ErrSourceNotFound, ref.Kind, asset)
	}

	ratio, err := src.Quote(ref, accounts)
	if err != nil {
		return Ratio{}, fmt.Errorf("quoting %s through %s: %w", asset, ref.Kind, err)
	}

	a.log.Debug("Resolved asset value",
		"asset", asset,
		"source", ref.Kind.String(),
		"denominator", ratio.Denominator,
	)
	if a.cache != nil {
		a.cache.Set(ref.Address, ratio, ttlcache.DefaultTTL)
	}
	return ratio, nil
}
