package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-validator-pool-sync/ledger"
	"go-validator-pool-sync/logger"
	"go-validator-pool-sync/model"
)

var (
	// ErrStalePass is returned when the observed head moved while a pass was
	// reading. The pass commits nothing.
	ErrStalePass = errors.New("block height changed during pass")
	// ErrPassInProgress is returned when a pass is requested while another one runs.
	ErrPassInProgress = errors.New("pass already in progress")
)

// Engine runs reconciliation passes that rebuild the context from the ledger.
type Engine struct {
	ledger      Ledger
	store       *ContextStore
	epochs      *EpochTracker
	notifier    *Notifier
	concurrency int

	running atomic.Bool
}

// NewEngine returns an engine committing into store. notifier may be nil.
func NewEngine(l Ledger, store *ContextStore, notifier *Notifier, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Engine{
		ledger:      l,
		store:       store,
		epochs:      NewEpochTracker(l),
		notifier:    notifier,
		concurrency: concurrency,
	}
}

// Bootstrap reads the current head and runs the initial pass.
func (e *Engine) Bootstrap(ctx context.Context) error {
	head, err := e.ledger.BlockNumber(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read block number")
	}
	e.store.observeHead(head)
	_headMtc.Set(float64(head))
	return e.Sync(ctx, true)
}

// Sync runs one pass at the current head. force applies epoch boundary
// semantics regardless of the epoch.
func (e *Engine) Sync(ctx context.Context, force bool) error {
	if !e.running.CompareAndSwap(false, true) {
		_passMtc.WithLabelValues(resultSkipped).Inc()
		return ErrPassInProgress
	}
	defer e.running.Store(false)

	historic, _ := e.store.Historic()
	begin := e.store.Head()
	e.store.busy.Store(true)
	e.publish(Event{Kind: PassStarted, Block: begin})
	start := time.Now()

	err := e.pass(ctx, begin, historic, force)

	_passDurationMtc.Observe(time.Since(start).Seconds())
	e.store.busy.Store(false)
	switch {
	case err == nil:
		e.store.lastErr.Store(nil)
		_passMtc.WithLabelValues(resultCompleted).Inc()
		logger.LogInfo("pass completed",
			zap.Uint64("block", begin),
			zap.Duration("took", time.Since(start)))
		e.publish(Event{Kind: PassFinished, Block: begin})
	case errors.Is(err, ErrStalePass):
		_passMtc.WithLabelValues(resultStale).Inc()
		logger.LogInfo("pass abandoned",
			zap.Uint64("block", begin),
			zap.Uint64("head", e.store.Head()))
		e.publish(Event{Kind: PassStale, Block: begin})
	default:
		e.store.lastErr.Store(err)
		_passMtc.WithLabelValues(resultFailed).Inc()
		logger.LogError(err, zap.Uint64("block", begin))
		e.publish(Event{Kind: PassFailed, Block: begin, Err: err})
	}
	return err
}

func (e *Engine) publish(ev Event) {
	if e.notifier != nil {
		e.notifier.Publish(ev)
	}
}

func (e *Engine) stale(begin uint64) error {
	if e.store.Head() != begin {
		return ErrStalePass
	}
	return nil
}

func (e *Engine) pass(ctx context.Context, begin uint64, historic, force bool) error {
	at := ledger.AtHeight(begin)
	committed := e.store.Snapshot()
	working := committed.Clone()
	first := e.store.CompletedPasses() == 0

	header, err := e.ledger.Header(ctx, at)
	if err != nil {
		return errors.Wrapf(err, "failed to read block %d", begin)
	}
	working.CurrentBlockNumber = header.Number
	working.CurrentTimestamp = header.Time
	if latest := e.store.Latest(); latest > begin {
		working.LatestBlockNumber = latest
	} else {
		working.LatestBlockNumber = begin
	}

	if first {
		if err := e.loadConstants(ctx, at, working); err != nil {
			return err
		}
	}

	state, err := e.epochs.Refresh(ctx, at, working, !first, historic)
	if err != nil {
		// a regression seen after the head moved belongs to a superseded pass
		if errors.Is(err, ErrEpochRegressed) {
			if stale := e.stale(begin); stale != nil {
				return stale
			}
		}
		return err
	}
	boundary := force || state == TransitioningEpoch

	if working.CanStakeOrWithdrawNow, err = e.ledger.CanStakeOrWithdrawNow(ctx, at); err != nil {
		return err
	}
	if working.MyAddress != "" {
		if working.MyBalance, err = e.ledger.Balance(ctx, at, working.MyAddress); err != nil {
			return err
		}
	}

	validators, err := e.ledger.Validators(ctx, at)
	if err != nil {
		return err
	}
	if err := e.stale(begin); err != nil {
		return err
	}
	active, err := e.ledger.Pools(ctx, at)
	if err != nil {
		return err
	}
	if err := e.stale(begin); err != nil {
		return err
	}
	inactive, err := e.ledger.InactivePools(ctx, at)
	if err != nil {
		return err
	}
	if err := e.stale(begin); err != nil {
		return err
	}
	toBeElected, err := e.ledger.PoolsToBeElected(ctx, at)
	if err != nil {
		return err
	}
	if err := e.stale(begin); err != nil {
		return err
	}
	pending, err := e.ledger.PendingValidators(ctx, at)
	if err != nil {
		return err
	}
	if err := e.stale(begin); err != nil {
		return err
	}

	working.CurrentValidators = model.SortedCopy(validators)
	if !first && !model.EqualAddresses(committed.CurrentValidators, working.CurrentValidators) {
		logger.LogInfo("validator set changed",
			zap.Strings("from", committed.CurrentValidators),
			zap.Strings("to", working.CurrentValidators))
	}

	known := make([]string, 0, len(active)+len(inactive))
	known = append(known, active...)
	known = append(known, inactive...)
	if added := model.EnsureTracked(working, known); len(added) > 0 {
		logger.LogInfo("tracking new pools", zap.Strings("pools", added))
	}

	m := &membership{
		validators:  model.NewAddressSet(validators),
		pending:     model.NewAddressSet(pending),
		active:      model.NewAddressSet(active),
		toBeElected: model.NewAddressSet(toBeElected),
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, p := range working.Pools {
		p := p
		g.Go(func() error {
			if err := e.stale(begin); err != nil {
				return err
			}
			return errors.Wrapf(e.updatePool(gctx, at, p, m, working.MyAddress, boundary), "pool %s", p.StakingAddress)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	working.NumberOfValidators = model.CountCurrentValidators(working.Pools)
	working.CurrentValidatorsWithoutPools = model.ValidatorsWithoutPools(working.CurrentValidators, working.Pools)
	model.SortPools(working.Pools)

	e.store.commit(working)
	_poolsMtc.Set(float64(len(working.Pools)))
	return nil
}

func (e *Engine) loadConstants(ctx context.Context, at ledger.BlockRef, working *model.GlobalContext) error {
	var err error
	if working.CandidateMinStake, err = e.ledger.CandidateMinStake(ctx, at); err != nil {
		return err
	}
	if working.DelegatorMinStake, err = e.ledger.DelegatorMinStake(ctx, at); err != nil {
		return err
	}
	if working.EpochDuration, err = e.ledger.EpochDuration(ctx, at); err != nil {
		return err
	}
	if working.WithdrawDisallowPeriod, err = e.ledger.WithdrawDisallowPeriod(ctx, at); err != nil {
		return err
	}
	return nil
}
