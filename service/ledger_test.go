package service

import (
	"context"
	"math/big"
	"sync"

	"github.com/pkg/errors"

	"go-validator-pool-sync/ledger"
)

// poolState is what fakeLedger reports for one staking address.
type poolState struct {
	mining         string
	publicKey      []byte
	candidateStake int64
	totalStake     int64
	bannedUntil    int64
	banCount       uint64
	availableSince int64
	parts          []byte
	acks           uint64
	// per staker
	stakes      map[string]int64
	firstEpochs map[string]int64
	rewards     map[string]int64
}

// fakeLedger is an in-memory ledger. Every call is counted by method name;
// failures injects errors and onCall runs before each answer.
type fakeLedger struct {
	mu sync.Mutex

	head      uint64
	timestamp uint64

	candidateMinStake int64
	delegatorMinStake int64
	epochDuration     uint64
	withdrawDisallow  uint64

	epoch       uint64
	startBlock  uint64
	startTime   uint64
	endTime     uint64
	deltaPot    *big.Int
	reinsertPot *big.Int
	canStake    bool
	balances    map[string]int64

	validators  []string
	pending     []string
	active      []string
	inactive    []string
	toBeElected []string
	pools       map[string]*poolState

	failures map[string]error
	calls    map[string]int
	heights  map[uint64]bool
	onCall   func(method string)
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		head:        100,
		timestamp:   1600000000,
		deltaPot:    new(big.Int),
		reinsertPot: new(big.Int),
		balances:    map[string]int64{},
		pools:       map[string]*poolState{},
		failures:    map[string]error{},
		calls:       map[string]int{},
		heights:     map[uint64]bool{},
	}
}

func (f *fakeLedger) addPool(staking, mining string) *poolState {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &poolState{
		mining:      mining,
		stakes:      map[string]int64{},
		firstEpochs: map[string]int64{},
		rewards:     map[string]int64{},
	}
	f.pools[staking] = p
	return p
}

func (f *fakeLedger) set(fn func(f *fakeLedger)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeLedger) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeLedger) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = map[string]int{}
}

// enter records the call and returns the injected failure, if any.
func (f *fakeLedger) enter(method string, at ledger.BlockRef) error {
	f.mu.Lock()
	f.calls[method]++
	if !at.IsLatest() {
		f.heights[at.Height()] = true
	}
	err := f.failures[method]
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(method)
	}
	return err
}

func (f *fakeLedger) pool(addr string) (*poolState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pools[addr]
	if !ok {
		for _, s := range f.pools {
			if s.mining == addr {
				return s, nil
			}
		}
		return nil, errors.Errorf("unknown pool %s", addr)
	}
	return p, nil
}

func (f *fakeLedger) BlockNumber(context.Context) (uint64, error) {
	if err := f.enter("BlockNumber", ledger.Latest()); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeLedger) SubscribeNewHeads(context.Context, chan<- *ledger.Header) (ledger.Subscription, error) {
	return nil, ledger.ErrSubscriptionUnsupported
}

func (f *fakeLedger) Header(_ context.Context, at ledger.BlockRef) (*ledger.Header, error) {
	if err := f.enter("Header", at); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &ledger.Header{Number: at.Height(), Time: f.timestamp + at.Height()}, nil
}

func (f *fakeLedger) Balance(_ context.Context, at ledger.BlockRef, address string) (*big.Int, error) {
	if err := f.enter("Balance", at); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return big.NewInt(f.balances[address]), nil
}

func (f *fakeLedger) CandidateMinStake(_ context.Context, at ledger.BlockRef) (*big.Int, error) {
	if err := f.enter("CandidateMinStake", at); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return big.NewInt(f.candidateMinStake), nil
}

func (f *fakeLedger) DelegatorMinStake(_ context.Context, at ledger.BlockRef) (*big.Int, error) {
	if err := f.enter("DelegatorMinStake", at); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return big.NewInt(f.delegatorMinStake), nil
}

func (f *fakeLedger) EpochDuration(_ context.Context, at ledger.BlockRef) (uint64, error) {
	if err := f.enter("EpochDuration", at); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.epochDuration, nil
}

func (f *fakeLedger) WithdrawDisallowPeriod(_ context.Context, at ledger.BlockRef) (uint64, error) {
	if err := f.enter("WithdrawDisallowPeriod", at); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.withdrawDisallow, nil
}

func (f *fakeLedger) StakingEpoch(_ context.Context, at ledger.BlockRef) (uint64, error) {
	if err := f.enter("StakingEpoch", at); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.epoch, nil
}

func (f *fakeLedger) EpochStartBlock(_ context.Context, at ledger.BlockRef) (uint64, error) {
	if err := f.enter("EpochStartBlock", at); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startBlock, nil
}

func (f *fakeLedger) EpochStartTime(_ context.Context, at ledger.BlockRef) (uint64, error) {
	if err := f.enter("EpochStartTime", at); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startTime, nil
}

func (f *fakeLedger) EpochEndTime(_ context.Context, at ledger.BlockRef) (uint64, error) {
	if err := f.enter("EpochEndTime", at); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endTime, nil
}

func (f *fakeLedger) DeltaPot(_ context.Context, at ledger.BlockRef) (*big.Int, error) {
	if err := f.enter("DeltaPot", at); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.deltaPot), nil
}

func (f *fakeLedger) ReinsertPot(_ context.Context, at ledger.BlockRef) (*big.Int, error) {
	if err := f.enter("ReinsertPot", at); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.reinsertPot), nil
}

func (f *fakeLedger) CanStakeOrWithdrawNow(_ context.Context, at ledger.BlockRef) (bool, error) {
	if err := f.enter("CanStakeOrWithdrawNow", at); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canStake, nil
}

func (f *fakeLedger) list(method string, at ledger.BlockRef, get func() []string) ([]string, error) {
	if err := f.enter(method, at); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, get()...), nil
}

func (f *fakeLedger) Validators(_ context.Context, at ledger.BlockRef) ([]string, error) {
	return f.list("Validators", at, func() []string { return f.validators })
}

func (f *fakeLedger) PendingValidators(_ context.Context, at ledger.BlockRef) ([]string, error) {
	return f.list("PendingValidators", at, func() []string { return f.pending })
}

func (f *fakeLedger) Pools(_ context.Context, at ledger.BlockRef) ([]string, error) {
	return f.list("Pools", at, func() []string { return f.active })
}

func (f *fakeLedger) InactivePools(_ context.Context, at ledger.BlockRef) ([]string, error) {
	return f.list("InactivePools", at, func() []string { return f.inactive })
}

func (f *fakeLedger) PoolsToBeElected(_ context.Context, at ledger.BlockRef) ([]string, error) {
	return f.list("PoolsToBeElected", at, func() []string { return f.toBeElected })
}

// lookup answers a per-pool call from the pool's state.
func (f *fakeLedger) lookup(method string, at ledger.BlockRef, addr string, get func(p *poolState) interface{}) (interface{}, error) {
	if err := f.enter(method, at); err != nil {
		return nil, err
	}
	p, err := f.pool(addr)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return get(p), nil
}

func (f *fakeLedger) MiningAddress(_ context.Context, at ledger.BlockRef, staking string) (string, error) {
	v, err := f.lookup("MiningAddress", at, staking, func(p *poolState) interface{} { return p.mining })
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (f *fakeLedger) PublicKey(_ context.Context, at ledger.BlockRef, mining string) ([]byte, error) {
	v, err := f.lookup("PublicKey", at, mining, func(p *poolState) interface{} { return append([]byte{}, p.publicKey...) })
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (f *fakeLedger) bigLookup(method string, at ledger.BlockRef, addr string, get func(p *poolState) int64) (*big.Int, error) {
	v, err := f.lookup(method, at, addr, func(p *poolState) interface{} { return get(p) })
	if err != nil {
		return nil, err
	}
	return big.NewInt(v.(int64)), nil
}

func (f *fakeLedger) StakeAmount(_ context.Context, at ledger.BlockRef, pool, staker string) (*big.Int, error) {
	return f.bigLookup("StakeAmount", at, pool, func(p *poolState) int64 {
		if staker == pool {
			return p.candidateStake
		}
		return p.stakes[staker]
	})
}

func (f *fakeLedger) TotalStake(_ context.Context, at ledger.BlockRef, pool string) (*big.Int, error) {
	return f.bigLookup("TotalStake", at, pool, func(p *poolState) int64 { return p.totalStake })
}

func (f *fakeLedger) StakeFirstEpoch(_ context.Context, at ledger.BlockRef, pool, staker string) (*big.Int, error) {
	return f.bigLookup("StakeFirstEpoch", at, pool, func(p *poolState) int64 { return p.firstEpochs[staker] })
}

func (f *fakeLedger) RewardAmount(_ context.Context, at ledger.BlockRef, pool, staker string) (*big.Int, error) {
	return f.bigLookup("RewardAmount", at, pool, func(p *poolState) int64 { return p.rewards[staker] })
}

func (f *fakeLedger) BannedUntil(_ context.Context, at ledger.BlockRef, mining string) (*big.Int, error) {
	return f.bigLookup("BannedUntil", at, mining, func(p *poolState) int64 { return p.bannedUntil })
}

func (f *fakeLedger) BanCount(_ context.Context, at ledger.BlockRef, mining string) (uint64, error) {
	v, err := f.lookup("BanCount", at, mining, func(p *poolState) interface{} { return p.banCount })
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

func (f *fakeLedger) AvailableSince(_ context.Context, at ledger.BlockRef, mining string) (*big.Int, error) {
	return f.bigLookup("AvailableSince", at, mining, func(p *poolState) int64 { return p.availableSince })
}

func (f *fakeLedger) KeyGenParts(_ context.Context, at ledger.BlockRef, mining string) ([]byte, error) {
	v, err := f.lookup("KeyGenParts", at, mining, func(p *poolState) interface{} { return append([]byte{}, p.parts...) })
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (f *fakeLedger) AcksLength(_ context.Context, at ledger.BlockRef, mining string) (uint64, error) {
	v, err := f.lookup("AcksLength", at, mining, func(p *poolState) interface{} { return p.acks })
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

var _ Ledger = (*fakeLedger)(nil)
