package service

import (
	"context"
	"math/big"

	"go-validator-pool-sync/ledger"
)

// Ledger is the typed view of the remote ledger the engine reads. It is
// implemented by *ledger.Contracts.
type Ledger interface {
	BlockNumber(ctx context.Context) (uint64, error)
	Header(ctx context.Context, at ledger.BlockRef) (*ledger.Header, error)
	Balance(ctx context.Context, at ledger.BlockRef, address string) (*big.Int, error)

	CandidateMinStake(ctx context.Context, at ledger.BlockRef) (*big.Int, error)
	DelegatorMinStake(ctx context.Context, at ledger.BlockRef) (*big.Int, error)
	EpochDuration(ctx context.Context, at ledger.BlockRef) (uint64, error)
	WithdrawDisallowPeriod(ctx context.Context, at ledger.BlockRef) (uint64, error)

	StakingEpoch(ctx context.Context, at ledger.BlockRef) (uint64, error)
	EpochStartBlock(ctx context.Context, at ledger.BlockRef) (uint64, error)
	EpochStartTime(ctx context.Context, at ledger.BlockRef) (uint64, error)
	EpochEndTime(ctx context.Context, at ledger.BlockRef) (uint64, error)
	DeltaPot(ctx context.Context, at ledger.BlockRef) (*big.Int, error)
	ReinsertPot(ctx context.Context, at ledger.BlockRef) (*big.Int, error)
	CanStakeOrWithdrawNow(ctx context.Context, at ledger.BlockRef) (bool, error)

	Validators(ctx context.Context, at ledger.BlockRef) ([]string, error)
	PendingValidators(ctx context.Context, at ledger.BlockRef) ([]string, error)
	Pools(ctx context.Context, at ledger.BlockRef) ([]string, error)
	InactivePools(ctx context.Context, at ledger.BlockRef) ([]string, error)
	PoolsToBeElected(ctx context.Context, at ledger.BlockRef) ([]string, error)

	MiningAddress(ctx context.Context, at ledger.BlockRef, stakingAddress string) (string, error)
	PublicKey(ctx context.Context, at ledger.BlockRef, miningAddress string) ([]byte, error)
	StakeAmount(ctx context.Context, at ledger.BlockRef, pool, staker string) (*big.Int, error)
	TotalStake(ctx context.Context, at ledger.BlockRef, pool string) (*big.Int, error)
	StakeFirstEpoch(ctx context.Context, at ledger.BlockRef, pool, staker string) (*big.Int, error)
	RewardAmount(ctx context.Context, at ledger.BlockRef, pool, staker string) (*big.Int, error)
	BannedUntil(ctx context.Context, at ledger.BlockRef, miningAddress string) (*big.Int, error)
	BanCount(ctx context.Context, at ledger.BlockRef, miningAddress string) (uint64, error)
	AvailableSince(ctx context.Context, at ledger.BlockRef, miningAddress string) (*big.Int, error)
	KeyGenParts(ctx context.Context, at ledger.BlockRef, miningAddress string) ([]byte, error)
	AcksLength(ctx context.Context, at ledger.BlockRef, miningAddress string) (uint64, error)
}

// HeadSource reports new blocks to the watcher.
type HeadSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	SubscribeNewHeads(ctx context.Context, ch chan<- *ledger.Header) (ledger.Subscription, error)
}

var (
	_ Ledger     = (*ledger.Contracts)(nil)
	_ HeadSource = (*ledger.Contracts)(nil)
)
