package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stakemesh/fundcore/config"
	"github.com/stakemesh/fundcore/fund"
	"github.com/stakemesh/fundcore/internal/metrics"
	"github.com/stakemesh/fundcore/pipeline"
	"github.com/stakemesh/fundcore/pricing"
	"github.com/stakemesh/fundcore/reward"
	"github.com/stakemesh/fundcore/store"
	"github.com/stakemesh/fundcore/store/memstore"
	"github.com/stakemesh/fundcore/tokenledger"
)

const (
	defaultInterval    = 1 * time.Minute
	defaultMetricsAddr = ":2112"
	defaultQuoteTTL    = 30 * time.Second
)

var (
	env             string
	verbose         bool
	metricsAddr     string
	interval        time.Duration
	quoteTTL        time.Duration
	receiptDecimals uint8
	solCapacity     uint64
	feeRateBps      uint16
	batchAmount     uint64
	batchDuration   uint64
	statusBatchID   uint64
	tokenSpecs      []string

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "fundcore",
	Short: "Multi-asset liquid restaking fund accounting core",
	Long: `fundcore maintains the accounting records of a multi-asset liquid
restaking fund: per-asset capacity bookkeeping, receipt token NAV, the
withdrawal batch state machine, and reward settlement.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// FUNDCORE_* environment variables (including any loaded from
		// .env) seed flags not set on the command line.
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				return
			}
			name := "FUNDCORE_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if v, ok := os.LookupEnv(name); ok {
				_ = f.Value.Set(v)
			}
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fundcore %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the operator pipeline loop",
	Long: `Run initializes the fund against an in-memory record store, refreshes
token prices from the configured ledger RPC every interval, and drains any
pending pipeline command one step per tick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(verbose)

		op, err := newOperator(log)
		if err != nil {
			return err
		}

		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go serveMetrics(log)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return op.run(ctx)
	},
}

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Resolve token prices once and print the resulting NAV",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(verbose)

		op, err := newOperator(log)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := op.updatePrices(ctx); err != nil {
			return err
		}

		state, err := op.fund.Fund()
		if err != nil {
			return err
		}
		for _, token := range state.SupportedTokens {
			fmt.Printf("%s  decimals=%d  one_token_base_units=%d\n",
				token.Mint, token.Decimals, token.OneTokenAsBaseUnit)
		}
		fmt.Printf("receipt token NAV: %d base units\n", state.OneReceiptTokenAsBaseUnit)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the network configuration and derived record addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		networkConfig, err := config.NetworkConfigForEnv(env)
		if err != nil {
			return err
		}

		fundKey, err := store.FundAccountAddress(networkConfig.FundProgramID, networkConfig.ReceiptTokenMint)
		if err != nil {
			return err
		}
		rewardKey, err := store.RewardAccountAddress(networkConfig.FundProgramID, networkConfig.ReceiptTokenMint)
		if err != nil {
			return err
		}
		batchKey, err := store.WithdrawalBatchAddress(networkConfig.FundProgramID, networkConfig.ReceiptTokenMint, statusBatchID)
		if err != nil {
			return err
		}

		fmt.Println("environment:        ", networkConfig.Moniker)
		fmt.Println("ledger rpc url:     ", networkConfig.LedgerPublicRPCURL)
		fmt.Println("fund program:       ", networkConfig.FundProgramID)
		fmt.Println("receipt token mint: ", networkConfig.ReceiptTokenMint)
		fmt.Println("fund account:       ", fundKey)
		fmt.Println("reward account:     ", rewardKey)
		fmt.Printf("withdrawal batch %d: %s\n", statusBatchID, batchKey)
		return nil
	},
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func serveMetrics(log *slog.Logger) {
	listener, err := net.Listen("tcp", metricsAddr)
	if err != nil {
		log.Error("Failed to start prometheus metrics server listener", "error", err)
		return
	}
	log.Info("Prometheus metrics server listening", "address", listener.Addr().String())
	http.Handle("/metrics", promhttp.Handler())
	if err := http.Serve(listener, nil); err != nil {
		log.Error("Failed to start prometheus metrics server", "error", err)
	}
}

// operator owns a fund, its reward ledger, and a command runner wired
// against an in-memory record store, with prices fed from the ledger RPC.
type operator struct {
	log     *slog.Logger
	network *config.NetworkConfig
	rpc     *solanarpc.Client

	fund    *fund.Ledger
	rewards *reward.Ledger
	runner  *pipeline.Runner
}

func newOperator(log *slog.Logger) (*operator, error) {
	networkConfig, err := config.NetworkConfigForEnv(env)
	if err != nil {
		return nil, err
	}

	rpcClient := solanarpc.New(networkConfig.LedgerPublicRPCURL)

	prices, err := pricing.New(pricing.Config{
		Logger: log,
		Sources: []pricing.Source{
			pricing.StakePoolSource{},
			pricing.ExternalVaultSource{},
			pricing.NormalizedTokenPoolSource{},
			pricing.SwapPoolSource{},
		},
		QuoteTTL: quoteTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pricing aggregator: %w", err)
	}

	records := memstore.New()
	bank := tokenledger.NewInMemory()

	fundLedger, err := fund.New(fund.Config{
		Logger:           log,
		Store:            records,
		Tokens:           bank,
		Prices:           prices,
		Namespace:        networkConfig.FundProgramID,
		ReceiptTokenMint: networkConfig.ReceiptTokenMint,
	})
	if err != nil {
		return nil, fmt.Errorf("creating fund ledger: %w", err)
	}

	rewardLedger, err := reward.New(reward.Config{
		Logger:           log,
		Store:            records,
		Tokens:           bank,
		Namespace:        networkConfig.FundProgramID,
		ReceiptTokenMint: networkConfig.ReceiptTokenMint,
	})
	if err != nil {
		return nil, fmt.Errorf("creating reward ledger: %w", err)
	}

	runner, err := pipeline.NewRunner(pipeline.Config{
		Logger:  log,
		Fund:    fundLedger,
		Rewards: rewardLedger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pipeline runner: %w", err)
	}

	op := &operator{
		log:     log,
		network: networkConfig,
		rpc:     rpcClient,
		fund:    fundLedger,
		rewards: rewardLedger,
		runner:  runner,
	}
	if err := op.initialize(); err != nil {
		return nil, err
	}
	return op, nil
}

// initialize creates the fund and reward records and registers the tokens
// named on the command line. The record store is in-memory, so every
// invocation starts from a fresh fund.
func (op *operator) initialize() error {
	if err := op.fund.Initialize(fund.InitParams{
		Admin:                op.fund.FundKey(),
		ReceiptTokenDecimals: receiptDecimals,
		SolCapacity:          solCapacity,
		WithdrawalEnabled:    true,
		WithdrawalFeeRateBps: feeRateBps,
		BatchThreshold: fund.BatchThreshold{
			Amount:          batchAmount,
			DurationSeconds: batchDuration,
		},
	}); err != nil {
		return fmt.Errorf("initializing fund: %w", err)
	}
	if err := op.rewards.Initialize(); err != nil {
		return fmt.Errorf("initializing rewards: %w", err)
	}

	for _, spec := range tokenSpecs {
		token, err := parseTokenSpec(spec, op.network)
		if err != nil {
			return fmt.Errorf("parsing token spec %q: %w", spec, err)
		}
		if err := op.fund.AddSupportedToken(op.fund.FundKey(), token); err != nil {
			return fmt.Errorf("adding supported token %s: %w", token.Mint, err)
		}
		op.log.Info("Registered supported token",
			"mint", token.Mint,
			"decimals", token.Decimals,
			"source", token.PricingSource.Kind,
		)
	}
	return nil
}

func (op *operator) run(ctx context.Context) error {
	op.log.Info("Operator loop started",
		"env", op.network.Moniker,
		"interval", interval,
		"tokens", len(tokenSpecs),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := op.tick(ctx); err != nil {
			op.log.Error("Tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			op.log.Info("Operator loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (op *operator) tick(ctx context.Context) error {
	if err := op.updatePrices(ctx); err != nil {
		return err
	}

	if !op.runner.Pending() {
		return nil
	}
	slot, err := op.rpc.GetSlot(ctx, solanarpc.CommitmentFinalized)
	if err != nil {
		return fmt.Errorf("fetching current slot: %w", err)
	}
	result, err := op.runner.RunOnce(ctx, slot)
	if err != nil {
		return err
	}
	op.log.Info("Pipeline step completed", "command", result.Kind, "amount", result.Amount)
	return nil
}

// updatePrices pulls each supported token's pricing source account from the
// ledger and feeds the whole set to the fund in one atomic pass.
func (op *operator) updatePrices(ctx context.Context) error {
	state, err := op.fund.Fund()
	if err != nil {
		return err
	}

	sources := make(fund.SourceAccounts, len(state.SupportedTokens))
	for _, token := range state.SupportedTokens {
		account, err := op.fetchAccount(ctx, token.PricingSource.Address)
		if err != nil {
			return fmt.Errorf("fetching pricing source for %s: %w", token.Mint, err)
		}
		sources[token.Mint] = []pricing.Account{account}
	}

	return op.fund.UpdatePrices(ctx, sources)
}

func (op *operator) fetchAccount(ctx context.Context, address solana.PublicKey) (pricing.Account, error) {
	info, err := op.rpc.GetAccountInfo(ctx, address)
	if err != nil {
		return pricing.Account{}, err
	}
	if info.Value == nil {
		return pricing.Account{}, fmt.Errorf("account %s not found", address)
	}
	return pricing.Account{
		Address: address,
		Owner:   info.Value.Owner,
		Data:    info.Value.Data.GetBinary(),
	}, nil
}

// parseTokenSpec decodes a --token flag of the form
// mint:decimals:capacity:kind:source-address. The owning program of the
// source account comes from the network configuration for the kind.
func parseTokenSpec(spec string, networkConfig *config.NetworkConfig) (fund.SupportedToken, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 5 {
		return fund.SupportedToken{}, fmt.Errorf("expected mint:decimals:capacity:kind:source-address, got %d fields", len(parts))
	}

	mint, err := solana.PublicKeyFromBase58(parts[0])
	if err != nil {
		return fund.SupportedToken{}, fmt.Errorf("parsing mint: %w", err)
	}
	decimals, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return fund.SupportedToken{}, fmt.Errorf("parsing decimals: %w", err)
	}
	capacity, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return fund.SupportedToken{}, fmt.Errorf("parsing capacity: %w", err)
	}
	kind, err := pricing.ParseSourceKind(parts[3])
	if err != nil {
		return fund.SupportedToken{}, err
	}
	sourceAddress, err := solana.PublicKeyFromBase58(parts[4])
	if err != nil {
		return fund.SupportedToken{}, fmt.Errorf("parsing source address: %w", err)
	}
	program, err := networkConfig.SourceProgramID(kind.String())
	if err != nil {
		return fund.SupportedToken{}, err
	}

	return fund.SupportedToken{
		Mint:     mint,
		Decimals: uint8(decimals),
		PricingSource: pricing.SourceRef{
			Kind:    kind,
			Address: sourceAddress,
			Program: program,
			Mint:    mint,
		},
		CapacityAmount: capacity,
	}, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&env, "env", config.EnvDevnet, "Environment to run against (devnet, testnet, mainnet-beta)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().Uint8Var(&receiptDecimals, "receipt-decimals", 9, "Receipt token decimals")
	rootCmd.PersistentFlags().Uint64Var(&solCapacity, "sol-capacity", 0, "Native deposit capacity in base units (0 disables native deposits)")
	rootCmd.PersistentFlags().Uint16Var(&feeRateBps, "withdrawal-fee-bps", 0, "Withdrawal fee in basis points")
	rootCmd.PersistentFlags().StringArrayVar(&tokenSpecs, "token", nil, "Supported token as mint:decimals:capacity:kind:source-address (repeatable)")

	runCmd.Flags().DurationVar(&interval, "interval", defaultInterval, "Price refresh and pipeline tick interval")
	runCmd.Flags().DurationVar(&quoteTTL, "quote-ttl", defaultQuoteTTL, "Pricing quote cache TTL (0 disables the cache)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	runCmd.Flags().Uint64Var(&batchAmount, "batch-threshold-amount", 0, "Receipt token amount that makes a withdrawal batch eligible")
	runCmd.Flags().Uint64Var(&batchDuration, "batch-threshold-duration", 0, "Seconds since the last batch that make the next one eligible")

	statusCmd.Flags().Uint64Var(&statusBatchID, "batch", 1, "Withdrawal batch id to derive the record address for")

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pricesCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	_ = godotenv.Load()

	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
