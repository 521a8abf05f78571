package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Metrics names.
	MetricNameBuildInfo         = "fundcore_build_info"
	MetricNameDeposits          = "fundcore_deposits_total"
	MetricNameDepositedAmount   = "fundcore_deposited_amount_total"
	MetricNameWithdrawals       = "fundcore_withdrawals_total"
	MetricNameWithdrawnAmount   = "fundcore_withdrawn_amount_total"
	MetricNameWithdrawalBatches = "fundcore_withdrawal_batches_total"
	MetricNamePriceUpdates      = "fundcore_price_updates_total"
	MetricNameReceiptTokenValue = "fundcore_receipt_token_value_base_units"
	MetricNameStakedAmount      = "fundcore_staked_amount_total"
	MetricNameUnstakedAmount    = "fundcore_unstaked_amount_total"
	MetricNameRewardsSettled    = "fundcore_rewards_settled_total"
	MetricNameRewardsClaimed    = "fundcore_rewards_claimed_total"
	MetricNameCommandsExecuted  = "fundcore_commands_executed_total"
	MetricNameCommandErrors     = "fundcore_command_errors_total"

	// Labels.
	LabelVersion = "version"
	LabelCommit  = "commit"
	LabelDate    = "date"
	LabelMint    = "mint"
	LabelPool    = "pool"
	LabelCommand = "command"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameBuildInfo,
			Help: "Build information of the fundcore agent",
		},
		[]string{LabelVersion, LabelCommit, LabelDate},
	)

	Deposits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameDeposits,
			Help: "Number of deposits accepted",
		},
		[]string{LabelMint},
	)

	DepositedAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameDepositedAmount,
			Help: "Total deposited amount in asset units",
		},
		[]string{LabelMint},
	)

	Withdrawals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameWithdrawals,
			Help: "Number of withdrawals paid out",
		},
	)

	WithdrawnAmount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameWithdrawnAmount,
			Help: "Total withdrawn amount in base units, net of fees",
		},
	)

	WithdrawalBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameWithdrawalBatches,
			Help: "Number of withdrawal batches enqueued",
		},
	)

	PriceUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNamePriceUpdates,
			Help: "Number of successful price refresh rounds",
		},
	)

	ReceiptTokenValue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameReceiptTokenValue,
			Help: "Base-unit value of one whole receipt token",
		},
	)

	StakedAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameStakedAmount,
			Help: "Total base units staked into supported tokens",
		},
		[]string{LabelMint},
	)

	UnstakedAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameUnstakedAmount,
			Help: "Total base units claimed back from supported tokens",
		},
		[]string{LabelMint},
	)

	RewardsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameRewardsSettled,
			Help: "Total reward amount settled into pools",
		},
		[]string{LabelPool},
	)

	RewardsClaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameRewardsClaimed,
			Help: "Total reward amount claimed by users",
		},
	)

	CommandsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameCommandsExecuted,
			Help: "Number of operation commands executed",
		},
		[]string{LabelCommand},
	)

	CommandErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameCommandErrors,
			Help: "Number of operation commands that failed",
		},
		[]string{LabelCommand},
	)
)
