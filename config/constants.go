package config

const (
	// Mainnet constants.
	MainnetLedgerPublicRPCURL      = "https://api.mainnet-beta.solana.com"
	MainnetFundProgramID           = "A7pAa4F8mooxJLqsdSAHrhnRr7H1rAPmddxmaEM6foch"
	MainnetReceiptTokenMint        = "C1CMSnDmSzci7wyaN9oR2uU5Zr3HmwuAqgw2yeARMdam"
	MainnetStakePoolProgramID      = "6ssMbqZDR26jw41oUL8smP7iQDVsFehNKMvr1Q1MHHU1"
	MainnetVaultProgramID          = "4KBawKmWtEbdGD9i67PYGRpzseis1cyYgDe7PpdTWUHt"
	MainnetNormalizedPoolProgramID = "5TGzXJeGEYm48Vj9nxe8oGBT7Gp7nMJ5XK2U9wXnzP4g"
	MainnetSwapPoolProgramID       = "EyTF6oizuHJshWDNM6NFUEmtJMyKj8r2J9nWhpzA8ib9"

	// Testnet constants.
	TestnetLedgerPublicRPCURL      = "https://api.testnet.solana.com"
	TestnetFundProgramID           = "2gnCs6vp2VEC5UiraEmFgBwhkWtCeSNmo6WtYcsdHLKs"
	TestnetReceiptTokenMint        = "Drk4Ka37hyHeYTChLZUChYbNQAj2xSZJBQLZVR69w5B3"
	TestnetStakePoolProgramID      = "EQ6cP4UKKXZuXnSbcqZ3tYSsJVvzUQo7Hh9T6H5RVgUv"
	TestnetVaultProgramID          = "DCrDG8uuafENykcpA6P1KSuRHNZhPZUaqemhYDV5Hysc"
	TestnetNormalizedPoolProgramID = "BwRJSnaXFt9YAngfkzPRv879ciobKxR62ZfcgbAczogm"
	TestnetSwapPoolProgramID       = "2ndqN4wzRt4LoSvRX2cSohjXo45Y46WdyFUzbtN374vt"

	// Devnet constants.
	DevnetLedgerPublicRPCURL      = "https://api.devnet.solana.com"
	DevnetFundProgramID           = "3UbooMWQ7iaeFCG4SUvpCBSRTmP7HKcm1StUExa6Xhdv"
	DevnetReceiptTokenMint        = "915j1HZoboRFdpddNgsPqfWA3R7fb8CJigBEus3WUdb3"
	DevnetStakePoolProgramID      = "8Kr6a5wHJ8dR1udB8BPukKujxik8aHtDiDwrxHnBALVF"
	DevnetVaultProgramID          = "AX9Lh6A49Ljyu8efZ7DfF54yqdF8Tm5oNM692zB78jYb"
	DevnetNormalizedPoolProgramID = "DPU1Ku6hPcCjWoMokk6KvFfHexaDQDmgZf97PDPtPLeV"
	DevnetSwapPoolProgramID       = "3mGLp3jaRjABvAE73DFtob2Lhka4y1o6FQJ1GUzWVr81"
)
