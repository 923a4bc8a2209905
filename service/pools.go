package service

import (
	"context"
	"math/big"

	"go-validator-pool-sync/ledger"
	"go-validator-pool-sync/model"
)

// membership holds the address sets read at the start of a pass.
type membership struct {
	validators  model.AddressSet
	pending     model.AddressSet
	active      model.AddressSet
	toBeElected model.AddressSet
}

// updatePool refreshes p from the ledger. Every lookup is made against a
// private copy which replaces *p only when all of them succeeded.
func (e *Engine) updatePool(ctx context.Context, at ledger.BlockRef, p *model.Pool, m *membership, me string, boundary bool) error {
	u := p.Clone()
	var err error

	if u.MiningAddress, err = e.ledger.MiningAddress(ctx, at, u.StakingAddress); err != nil {
		return err
	}
	if u.MiningPublicKey, err = e.ledger.PublicKey(ctx, at, u.MiningAddress); err != nil {
		return err
	}

	u.IsActive = m.active.Has(u.StakingAddress)
	u.IsToBeElected = m.toBeElected.Has(u.StakingAddress)
	u.IsPendingValidator = m.pending.Has(u.MiningAddress)
	u.IsCurrentValidator = m.validators.Has(u.MiningAddress)

	if u.CandidateStake, err = e.ledger.StakeAmount(ctx, at, u.StakingAddress, u.StakingAddress); err != nil {
		return err
	}
	if u.TotalStake, err = e.ledger.TotalStake(ctx, at, u.StakingAddress); err != nil {
		return err
	}

	if me == "" {
		u.MyStake = new(big.Int)
		u.ClaimableReward = new(big.Int)
	} else {
		if u.MyStake, err = e.ledger.StakeAmount(ctx, at, u.StakingAddress, me); err != nil {
			return err
		}
		if boundary {
			if u.ClaimableReward, err = e.claimableReward(ctx, at, u.StakingAddress, me); err != nil {
				return err
			}
		}
	}

	if u.BannedUntil, err = e.ledger.BannedUntil(ctx, at, u.MiningAddress); err != nil {
		return err
	}
	if u.BanCount, err = e.ledger.BanCount(ctx, at, u.MiningAddress); err != nil {
		return err
	}
	if u.AvailableSince, err = e.ledger.AvailableSince(ctx, at, u.MiningAddress); err != nil {
		return err
	}
	u.IsAvailable = u.AvailableSince.Sign() != 0

	if u.IsPendingValidator {
		if u.Parts, err = e.ledger.KeyGenParts(ctx, at, u.MiningAddress); err != nil {
			return err
		}
		if u.NumberOfAcks, err = e.ledger.AcksLength(ctx, at, u.MiningAddress); err != nil {
			return err
		}
	} else {
		u.Parts = nil
		u.NumberOfAcks = 0
	}

	*p = *u
	return nil
}

// claimableReward is the staker's reward in the pool, zero when the staker
// has never staked in it.
func (e *Engine) claimableReward(ctx context.Context, at ledger.BlockRef, pool, staker string) (*big.Int, error) {
	if pool != staker {
		first, err := e.ledger.StakeFirstEpoch(ctx, at, pool, staker)
		if err != nil {
			return nil, err
		}
		if first.Sign() == 0 {
			return new(big.Int), nil
		}
	}
	return e.ledger.RewardAmount(ctx, at, pool, staker)
}
