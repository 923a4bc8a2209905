package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// Pool is a staking pool identified by its staking address. Pools are created
// once per discovered staking address and are never removed.
type Pool struct {
	StakingAddress  string        `json:"stakingAddress"`
	MiningAddress   string        `json:"miningAddress"`
	MiningPublicKey hexutil.Bytes `json:"miningPublicKey"`

	IsActive           bool `json:"isActive"`
	IsToBeElected      bool `json:"isToBeElected"`
	IsPendingValidator bool `json:"isPendingValidator"`
	IsCurrentValidator bool `json:"isCurrentValidator"`

	CandidateStake *big.Int `json:"candidateStake"`
	TotalStake     *big.Int `json:"totalStake"`
	MyStake        *big.Int `json:"myStake"`
	// ClaimableReward is refreshed on epoch boundaries only.
	ClaimableReward *big.Int `json:"claimableReward"`

	BannedUntil    *big.Int `json:"bannedUntil"`
	BanCount       uint64   `json:"banCount"`
	AvailableSince *big.Int `json:"availableSince"`
	IsAvailable    bool     `json:"isAvailable"`

	// Key generation progress, set while the pool is a pending validator.
	Parts        hexutil.Bytes `json:"parts"`
	NumberOfAcks uint64        `json:"numberOfAcks"`
}

// NewPool returns a pool with zero values for every derived field.
func NewPool(stakingAddress string) *Pool {
	return &Pool{
		StakingAddress:  stakingAddress,
		CandidateStake:  new(big.Int),
		TotalStake:      new(big.Int),
		MyStake:         new(big.Int),
		ClaimableReward: new(big.Int),
		BannedUntil:     new(big.Int),
		AvailableSince:  new(big.Int),
	}
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	c := *p
	c.MiningPublicKey = cloneBytes(p.MiningPublicKey)
	c.Parts = cloneBytes(p.Parts)
	c.CandidateStake = cloneInt(p.CandidateStake)
	c.TotalStake = cloneInt(p.TotalStake)
	c.MyStake = cloneInt(p.MyStake)
	c.ClaimableReward = cloneInt(p.ClaimableReward)
	c.BannedUntil = cloneInt(p.BannedUntil)
	c.AvailableSince = cloneInt(p.AvailableSince)
	return &c
}

// GlobalContext is a snapshot of the chain-derived facts about the validator
// set as of CurrentBlockNumber.
type GlobalContext struct {
	CurrentBlockNumber uint64 `json:"currentBlockNumber"`
	LatestBlockNumber  uint64 `json:"latestBlockNumber"`
	CurrentTimestamp   uint64 `json:"currentTimestamp"`

	// Epoch-scoped values, replaced together when the staking epoch changes.
	StakingEpoch    uint64 `json:"stakingEpoch"`
	EpochStartBlock uint64 `json:"epochStartBlock"`
	EpochStartTime  uint64 `json:"epochStartTime"`
	EpochEndTime    uint64 `json:"epochEndTime"`
	DeltaPot        string `json:"deltaPot"`
	ReinsertPot     string `json:"reinsertPot"`

	// Economic constants, fetched once.
	CandidateMinStake      *big.Int `json:"candidateMinStake"`
	DelegatorMinStake      *big.Int `json:"delegatorMinStake"`
	EpochDuration          uint64   `json:"epochDuration"`
	WithdrawDisallowPeriod uint64   `json:"withdrawDisallowPeriod"`

	CurrentValidators             []string `json:"currentValidators"`
	CurrentValidatorsWithoutPools []string `json:"currentValidatorsWithoutPools"`
	Pools                         []*Pool  `json:"pools"`
	NumberOfValidators            int      `json:"numberOfValidators"`
	CanStakeOrWithdrawNow         bool     `json:"canStakeOrWithdrawNow"`

	MyAddress string   `json:"myAddress,omitempty"`
	MyBalance *big.Int `json:"myBalance"`
}

// NewGlobalContext returns an empty context.
func NewGlobalContext(myAddress string) *GlobalContext {
	return &GlobalContext{
		DeltaPot:                      "0",
		ReinsertPot:                   "0",
		CandidateMinStake:             new(big.Int),
		DelegatorMinStake:             new(big.Int),
		CurrentValidators:             []string{},
		CurrentValidatorsWithoutPools: []string{},
		Pools:                         []*Pool{},
		MyAddress:                     myAddress,
		MyBalance:                     new(big.Int),
	}
}

// Clone returns a deep copy of the context, pools included.
func (c *GlobalContext) Clone() *GlobalContext {
	n := *c
	n.CandidateMinStake = cloneInt(c.CandidateMinStake)
	n.DelegatorMinStake = cloneInt(c.DelegatorMinStake)
	n.MyBalance = cloneInt(c.MyBalance)
	n.CurrentValidators = append([]string{}, c.CurrentValidators...)
	n.CurrentValidatorsWithoutPools = append([]string{}, c.CurrentValidatorsWithoutPools...)
	n.Pools = make([]*Pool, len(c.Pools))
	for i, p := range c.Pools {
		n.Pools[i] = p.Clone()
	}
	return &n
}

// Pool returns the tracked pool with the given staking address.
func (c *GlobalContext) Pool(stakingAddress string) (*Pool, bool) {
	for _, p := range c.Pools {
		if p.StakingAddress == stakingAddress {
			return p, true
		}
	}
	return nil, false
}

// FromWei converts an amount in the ledger's minor unit to a decimal string in
// the major unit, dropping trailing zeros.
func FromWei(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -18).String()
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
