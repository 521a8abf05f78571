package config

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
)

const (
	EnvMainnetBeta = "mainnet-beta"
	EnvMainnet     = "mainnet"
	EnvTestnet     = "testnet"
	EnvDevnet      = "devnet"
)

var (
	ErrInvalidEnvironment = fmt.Errorf("invalid environment")
)

// NetworkConfig is the per-network registry the fund core is constructed
// from: the fund program namespace, the receipt token mint, and the external
// programs that own each kind of pricing-source account.
type NetworkConfig struct {
	Moniker            string
	LedgerPublicRPCURL string

	FundProgramID    solana.PublicKey
	ReceiptTokenMint solana.PublicKey

	StakePoolProgramID      solana.PublicKey
	VaultProgramID          solana.PublicKey
	NormalizedPoolProgramID solana.PublicKey
	SwapPoolProgramID       solana.PublicKey
}

func NetworkConfigForEnv(env string) (*NetworkConfig, error) {
	var config *NetworkConfig
	switch env {
	case EnvMainnetBeta, EnvMainnet:
		config = &NetworkConfig{
			Moniker:                 EnvMainnetBeta,
			LedgerPublicRPCURL:      MainnetLedgerPublicRPCURL,
			FundProgramID:           solana.MustPublicKeyFromBase58(MainnetFundProgramID),
			ReceiptTokenMint:        solana.MustPublicKeyFromBase58(MainnetReceiptTokenMint),
			StakePoolProgramID:      solana.MustPublicKeyFromBase58(MainnetStakePoolProgramID),
			VaultProgramID:          solana.MustPublicKeyFromBase58(MainnetVaultProgramID),
			NormalizedPoolProgramID: solana.MustPublicKeyFromBase58(MainnetNormalizedPoolProgramID),
			SwapPoolProgramID:       solana.MustPublicKeyFromBase58(MainnetSwapPoolProgramID),
		}
	case EnvTestnet:
		config = &NetworkConfig{
			Moniker:                 EnvTestnet,
			LedgerPublicRPCURL:      TestnetLedgerPublicRPCURL,
			FundProgramID:           solana.MustPublicKeyFromBase58(TestnetFundProgramID),
			ReceiptTokenMint:        solana.MustPublicKeyFromBase58(TestnetReceiptTokenMint),
			StakePoolProgramID:      solana.MustPublicKeyFromBase58(TestnetStakePoolProgramID),
			VaultProgramID:          solana.MustPublicKeyFromBase58(TestnetVaultProgramID),
			NormalizedPoolProgramID: solana.MustPublicKeyFromBase58(TestnetNormalizedPoolProgramID),
			SwapPoolProgramID:       solana.MustPublicKeyFromBase58(TestnetSwapPoolProgramID),
		}
	case EnvDevnet:
		config = &NetworkConfig{
			Moniker:                 EnvDevnet,
			LedgerPublicRPCURL:      DevnetLedgerPublicRPCURL,
			FundProgramID:           solana.MustPublicKeyFromBase58(DevnetFundProgramID),
			ReceiptTokenMint:        solana.MustPublicKeyFromBase58(DevnetReceiptTokenMint),
			StakePoolProgramID:      solana.MustPublicKeyFromBase58(DevnetStakePoolProgramID),
			VaultProgramID:          solana.MustPublicKeyFromBase58(DevnetVaultProgramID),
			NormalizedPoolProgramID: solana.MustPublicKeyFromBase58(DevnetNormalizedPoolProgramID),
			SwapPoolProgramID:       solana.MustPublicKeyFromBase58(DevnetSwapPoolProgramID),
		}
	default:
		return nil, ErrInvalidEnvironment
	}

	ledgerRPCURL := os.Getenv("FUNDCORE_LEDGER_RPC_URL")
	if ledgerRPCURL != "" {
		config.LedgerPublicRPCURL = ledgerRPCURL
	}

	return config, nil
}

// SourceProgramID maps a pricing source kind name to the owning program for
// this network.
func (c *NetworkConfig) SourceProgramID(kind string) (solana.PublicKey, error) {
	switch kind {
	case "stake-pool":
		return c.StakePoolProgramID, nil
	case "external-vault":
		return c.VaultProgramID, nil
	case "normalized-token-pool":
		return c.NormalizedPoolProgramID, nil
	case "swap-pool":
		return c.SwapPoolProgramID, nil
	default:
		return solana.PublicKey{}, fmt.Errorf("unknown pricing source kind %q", kind)
	}
}
