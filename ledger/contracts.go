package ledger

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Addresses locates the system contracts.
type Addresses struct {
	ValidatorSet  string
	Staking       string
	BlockReward   string
	KeyGenHistory string
}

type boundContract struct {
	name    string
	address string
	abi     abi.ABI
}

func bind(name, address, definition string) (*boundContract, error) {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s abi", name)
	}
	return &boundContract{name: name, address: address, abi: parsed}, nil
}

// Contracts is a typed read-only view of the hbbft system contracts. Every
// call is bounded by the configured timeout and fails with a *CallError.
type Contracts struct {
	client  Client
	timeout time.Duration

	validatorSet  *boundContract
	staking       *boundContract
	blockReward   *boundContract
	keyGenHistory *boundContract
}

// NewContracts binds the system contracts at addrs to client.
func NewContracts(client Client, addrs Addresses, timeout time.Duration) (*Contracts, error) {
	c := &Contracts{client: client, timeout: timeout}
	var err error
	if c.validatorSet, err = bind("ValidatorSetHbbft", addrs.ValidatorSet, validatorSetABI); err != nil {
		return nil, err
	}
	if c.staking, err = bind("StakingHbbft", addrs.Staking, stakingABI); err != nil {
		return nil, err
	}
	if c.blockReward, err = bind("BlockRewardHbbft", addrs.BlockReward, blockRewardABI); err != nil {
		return nil, err
	}
	if c.keyGenHistory, err = bind("KeyGenHistory", addrs.KeyGenHistory, keyGenHistoryABI); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Contracts) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Contracts) call(ctx context.Context, at BlockRef, bc *boundContract, method string, args ...interface{}) (interface{}, error) {
	fail := func(err error) error {
		return &CallError{Contract: bc.name, Method: method, Err: err}
	}
	data, err := bc.abi.Pack(method, args...)
	if err != nil {
		return nil, fail(err)
	}
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	raw, err := c.client.CallContract(ctx, bc.address, data, at)
	if err != nil {
		return nil, fail(err)
	}
	out, err := bc.abi.Unpack(method, raw)
	if err != nil {
		return nil, fail(err)
	}
	if len(out) != 1 {
		return nil, fail(errors.Errorf("expected 1 output, got %d", len(out)))
	}
	return out[0], nil
}

func (c *Contracts) callBig(ctx context.Context, at BlockRef, bc *boundContract, method string, args ...interface{}) (*big.Int, error) {
	v, err := c.call(ctx, at, bc, method, args...)
	if err != nil {
		return nil, err
	}
	n, ok := v.(*big.Int)
	if !ok {
		return nil, &CallError{Contract: bc.name, Method: method, Err: errors.Errorf("unexpected output type %T", v)}
	}
	return n, nil
}

func (c *Contracts) callUint64(ctx context.Context, at BlockRef, bc *boundContract, method string, args ...interface{}) (uint64, error) {
	n, err := c.callBig(ctx, at, bc, method, args...)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, &CallError{Contract: bc.name, Method: method, Err: errors.Errorf("value %s overflows uint64", n)}
	}
	return n.Uint64(), nil
}

func (c *Contracts) callBool(ctx context.Context, at BlockRef, bc *boundContract, method string) (bool, error) {
	v, err := c.call(ctx, at, bc, method)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &CallError{Contract: bc.name, Method: method, Err: errors.Errorf("unexpected output type %T", v)}
	}
	return b, nil
}

func (c *Contracts) callAddresses(ctx context.Context, at BlockRef, bc *boundContract, method string) ([]string, error) {
	v, err := c.call(ctx, at, bc, method)
	if err != nil {
		return nil, err
	}
	addrs, ok := v.([]common.Address)
	if !ok {
		return nil, &CallError{Contract: bc.name, Method: method, Err: errors.Errorf("unexpected output type %T", v)}
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	return out, nil
}

func (c *Contracts) callBytes(ctx context.Context, at BlockRef, bc *boundContract, method string, args ...interface{}) ([]byte, error) {
	v, err := c.call(ctx, at, bc, method, args...)
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, &CallError{Contract: bc.name, Method: method, Err: errors.Errorf("unexpected output type %T", v)}
	}
	return b, nil
}

func addr(s string) common.Address { return common.HexToAddress(s) }

// BlockNumber returns the latest block height.
func (c *Contracts) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	n, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, &CallError{Contract: "eth", Method: "blockNumber", Err: err}
	}
	return n, nil
}

// Header returns the metadata of the referenced block.
func (c *Contracts) Header(ctx context.Context, at BlockRef) (*Header, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	h, err := c.client.HeaderByNumber(ctx, at)
	if err != nil {
		return nil, &CallError{Contract: "eth", Method: "getBlockByNumber", Err: err}
	}
	return h, nil
}

// Balance returns the native balance of address.
func (c *Contracts) Balance(ctx context.Context, at BlockRef, address string) (*big.Int, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	b, err := c.client.BalanceAt(ctx, address, at)
	if err != nil {
		return nil, &CallError{Contract: "eth", Method: "getBalance", Err: err}
	}
	return b, nil
}

// SubscribeNewHeads forwards to the underlying client.
func (c *Contracts) SubscribeNewHeads(ctx context.Context, ch chan<- *Header) (Subscription, error) {
	return c.client.SubscribeNewHeads(ctx, ch)
}

func (c *Contracts) CandidateMinStake(ctx context.Context, at BlockRef) (*big.Int, error) {
	return c.callBig(ctx, at, c.staking, "candidateMinStake")
}

func (c *Contracts) DelegatorMinStake(ctx context.Context, at BlockRef) (*big.Int, error) {
	return c.callBig(ctx, at, c.staking, "delegatorMinStake")
}

func (c *Contracts) EpochDuration(ctx context.Context, at BlockRef) (uint64, error) {
	return c.callUint64(ctx, at, c.staking, "stakingFixedEpochDuration")
}

func (c *Contracts) WithdrawDisallowPeriod(ctx context.Context, at BlockRef) (uint64, error) {
	return c.callUint64(ctx, at, c.staking, "stakingWithdrawDisallowPeriod")
}

func (c *Contracts) StakingEpoch(ctx context.Context, at BlockRef) (uint64, error) {
	return c.callUint64(ctx, at, c.staking, "stakingEpoch")
}

func (c *Contracts) EpochStartBlock(ctx context.Context, at BlockRef) (uint64, error) {
	return c.callUint64(ctx, at, c.staking, "stakingEpochStartBlock")
}

func (c *Contracts) EpochStartTime(ctx context.Context, at BlockRef) (uint64, error) {
	return c.callUint64(ctx, at, c.staking, "stakingEpochStartTime")
}

func (c *Contracts) EpochEndTime(ctx context.Context, at BlockRef) (uint64, error) {
	return c.callUint64(ctx, at, c.staking, "stakingFixedEpochEndTime")
}

func (c *Contracts) CanStakeOrWithdrawNow(ctx context.Context, at BlockRef) (bool, error) {
	return c.callBool(ctx, at, c.staking, "areStakeAndWithdrawAllowed")
}

func (c *Contracts) DeltaPot(ctx context.Context, at BlockRef) (*big.Int, error) {
	return c.callBig(ctx, at, c.blockReward, "deltaPot")
}

func (c *Contracts) ReinsertPot(ctx context.Context, at BlockRef) (*big.Int, error) {
	return c.callBig(ctx, at, c.blockReward, "reinsertPot")
}

// Validators returns the mining addresses of the current validator set.
func (c *Contracts) Validators(ctx context.Context, at BlockRef) ([]string, error) {
	return c.callAddresses(ctx, at, c.validatorSet, "getValidators")
}

// PendingValidators returns the mining addresses elected for the next epoch.
func (c *Contracts) PendingValidators(ctx context.Context, at BlockRef) ([]string, error) {
	return c.callAddresses(ctx, at, c.validatorSet, "getPendingValidators")
}

// Pools returns the staking addresses of active pools.
func (c *Contracts) Pools(ctx context.Context, at BlockRef) ([]string, error) {
	return c.callAddresses(ctx, at, c.staking, "getPools")
}

// InactivePools returns the staking addresses of inactive pools.
func (c *Contracts) InactivePools(ctx context.Context, at BlockRef) ([]string, error) {
	return c.callAddresses(ctx, at, c.staking, "getPoolsInactive")
}

// PoolsToBeElected returns the staking addresses of pools that can be elected.
func (c *Contracts) PoolsToBeElected(ctx context.Context, at BlockRef) ([]string, error) {
	return c.callAddresses(ctx, at, c.staking, "getPoolsToBeElected")
}

func (c *Contracts) MiningAddress(ctx context.Context, at BlockRef, stakingAddress string) (string, error) {
	v, err := c.call(ctx, at, c.validatorSet, "miningByStakingAddress", addr(stakingAddress))
	if err != nil {
		return "", err
	}
	a, ok := v.(common.Address)
	if !ok {
		return "", &CallError{Contract: c.validatorSet.name, Method: "miningByStakingAddress", Err: errors.Errorf("unexpected output type %T", v)}
	}
	return a.Hex(), nil
}

func (c *Contracts) PublicKey(ctx context.Context, at BlockRef, miningAddress string) ([]byte, error) {
	return c.callBytes(ctx, at, c.validatorSet, "getPublicKey", addr(miningAddress))
}

func (c *Contracts) StakeAmount(ctx context.Context, at BlockRef, pool, staker string) (*big.Int, error) {
	return c.callBig(ctx, at, c.staking, "stakeAmount", addr(pool), addr(staker))
}

func (c *Contracts) TotalStake(ctx context.Context, at BlockRef, pool string) (*big.Int, error) {
	return c.callBig(ctx, at, c.staking, "stakeAmountTotal", addr(pool))
}

func (c *Contracts) StakeFirstEpoch(ctx context.Context, at BlockRef, pool, staker string) (*big.Int, error) {
	return c.callBig(ctx, at, c.staking, "stakeFirstEpoch", addr(pool), addr(staker))
}

// RewardAmount returns the reward staker can claim from pool over all epochs.
func (c *Contracts) RewardAmount(ctx context.Context, at BlockRef, pool, staker string) (*big.Int, error) {
	return c.callBig(ctx, at, c.staking, "getRewardAmount", []*big.Int{}, addr(pool), addr(staker))
}

func (c *Contracts) BannedUntil(ctx context.Context, at BlockRef, miningAddress string) (*big.Int, error) {
	return c.callBig(ctx, at, c.validatorSet, "bannedUntil", addr(miningAddress))
}

func (c *Contracts) BanCount(ctx context.Context, at BlockRef, miningAddress string) (uint64, error) {
	return c.callUint64(ctx, at, c.validatorSet, "banCounter", addr(miningAddress))
}

func (c *Contracts) AvailableSince(ctx context.Context, at BlockRef, miningAddress string) (*big.Int, error) {
	return c.callBig(ctx, at, c.validatorSet, "validatorAvailableSince", addr(miningAddress))
}

func (c *Contracts) KeyGenParts(ctx context.Context, at BlockRef, miningAddress string) ([]byte, error) {
	return c.callBytes(ctx, at, c.keyGenHistory, "parts", addr(miningAddress))
}

func (c *Contracts) AcksLength(ctx context.Context, at BlockRef, miningAddress string) (uint64, error) {
	return c.callUint64(ctx, at, c.keyGenHistory, "getAcksLength", addr(miningAddress))
}
