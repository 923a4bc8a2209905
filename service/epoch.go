package service

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"go-validator-pool-sync/ledger"
	"go-validator-pool-sync/logger"
	"go-validator-pool-sync/model"
)

// EpochState is the outcome of comparing the ledger's staking epoch with the
// committed one.
type EpochState int

const (
	StableEpoch EpochState = iota
	TransitioningEpoch
)

func (s EpochState) String() string {
	if s == TransitioningEpoch {
		return "transitioning"
	}
	return "stable"
}

// ErrEpochRegressed is returned when a live pass reads an epoch below the
// committed one.
var ErrEpochRegressed = errors.New("staking epoch regressed")

// EpochTracker detects staking epoch changes and refreshes the epoch-scoped
// values of the context.
type EpochTracker struct {
	ledger Ledger
}

// NewEpochTracker returns a tracker reading from l.
func NewEpochTracker(l Ledger) *EpochTracker {
	return &EpochTracker{ledger: l}
}

// Refresh reads the staking epoch at the given block. When no epoch was
// committed yet or the epoch differs from the one in working, the epoch-scoped
// values are fetched and applied to working together. A lower epoch is an
// error unless allowRegression is set.
func (t *EpochTracker) Refresh(ctx context.Context, at ledger.BlockRef, working *model.GlobalContext, known, allowRegression bool) (EpochState, error) {
	epoch, err := t.ledger.StakingEpoch(ctx, at)
	if err != nil {
		return StableEpoch, err
	}
	if known && epoch == working.StakingEpoch {
		return StableEpoch, nil
	}
	if known && epoch < working.StakingEpoch && !allowRegression {
		return StableEpoch, errors.Wrapf(ErrEpochRegressed, "read %d at %s, committed %d", epoch, at, working.StakingEpoch)
	}

	var (
		startBlock, startTime, endTime uint64
		deltaPot, reinsertPot          *big.Int
	)
	if startBlock, err = t.ledger.EpochStartBlock(ctx, at); err != nil {
		return StableEpoch, err
	}
	if startTime, err = t.ledger.EpochStartTime(ctx, at); err != nil {
		return StableEpoch, err
	}
	if endTime, err = t.ledger.EpochEndTime(ctx, at); err != nil {
		return StableEpoch, err
	}
	if deltaPot, err = t.ledger.DeltaPot(ctx, at); err != nil {
		return StableEpoch, err
	}
	if reinsertPot, err = t.ledger.ReinsertPot(ctx, at); err != nil {
		return StableEpoch, err
	}

	logger.LogInfo("staking epoch changed",
		zap.Uint64("from", working.StakingEpoch),
		zap.Uint64("to", epoch),
		zap.Uint64("startBlock", startBlock))

	working.StakingEpoch = epoch
	working.EpochStartBlock = startBlock
	working.EpochStartTime = startTime
	working.EpochEndTime = endTime
	working.DeltaPot = model.FromWei(deltaPot)
	working.ReinsertPot = model.FromWei(reinsertPot)
	return TransitioningEpoch, nil
}
