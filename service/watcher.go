package service

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"go-validator-pool-sync/ledger"
	"go-validator-pool-sync/logger"
)

// PassRunner runs a single pass. It is implemented by *Engine.
type PassRunner interface {
	Sync(ctx context.Context, force bool) error
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	PollInterval time.Duration
	// MaxResubscribe bounds consecutive failed subscriptions before the
	// watcher falls back to polling.
	MaxResubscribe int
	// Subscribe follows new heads over a subscription instead of polling.
	Subscribe bool
	Clock     clock.Clock
}

// Watcher tracks the ledger head and requests passes. Requests made while a
// pass runs collapse into one pending request.
type Watcher struct {
	runner PassRunner
	heads  HeadSource
	store  *ContextStore
	cfg    WatcherConfig
	clock  clock.Clock
	wake   chan struct{}

	mu           sync.Mutex
	pending      bool
	pendingForce bool
	runCtx       context.Context
	stopFollow   context.CancelFunc
	followDone   chan struct{}
}

// NewWatcher returns a watcher driving runner.
func NewWatcher(runner PassRunner, heads HeadSource, store *ContextStore, cfg WatcherConfig) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	ck := cfg.Clock
	if ck == nil {
		ck = clock.New()
	}
	return &Watcher{
		runner: runner,
		heads:  heads,
		store:  store,
		cfg:    cfg,
		clock:  ck,
		wake:   make(chan struct{}, 1),
	}
}

// Run follows the head and executes pass requests one at a time until ctx is
// done.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	w.runCtx = ctx
	if historic, _ := w.store.Historic(); !historic {
		w.startFollowLocked()
	}
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		done := w.followDone
		w.stopFollowLocked()
		w.runCtx = nil
		w.mu.Unlock()
		if done != nil {
			<-done
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.wake:
		}
		force, ok := w.takePending()
		if !ok {
			continue
		}
		// outcomes are recorded by the engine
		_ = w.runner.Sync(ctx, force)
	}
}

// ShowHistoric stops following the head and pins the context to height.
// Asking for the pinned height again does nothing.
func (w *Watcher) ShowHistoric(height uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if historic, h := w.store.Historic(); historic && h == height {
		return
	}
	w.stopFollowLocked()
	w.store.setHistoric(true, height)
	w.store.pinHead(height)
	logger.LogInfo("showing historic block", zap.Uint64("block", height))
	w.requestLocked(true)
}

// ShowLatest resumes following the head.
func (w *Watcher) ShowLatest(ctx context.Context) error {
	head, err := w.heads.BlockNumber(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read block number")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if historic, _ := w.store.Historic(); !historic {
		return nil
	}
	w.store.setHistoric(false, 0)
	w.store.pinHead(head)
	w.store.observeHead(head)
	_headMtc.Set(float64(head))
	logger.LogInfo("showing latest block", zap.Uint64("block", head))
	w.startFollowLocked()
	w.requestLocked(true)
	return nil
}

func (w *Watcher) takePending() (force, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	force, ok = w.pendingForce, w.pending
	w.pending, w.pendingForce = false, false
	return force, ok
}

func (w *Watcher) requestLocked(force bool) {
	w.pending = true
	w.pendingForce = w.pendingForce || force
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) startFollowLocked() {
	if w.runCtx == nil || w.stopFollow != nil {
		return
	}
	ctx, cancel := context.WithCancel(w.runCtx)
	done := make(chan struct{})
	w.stopFollow, w.followDone = cancel, done
	go func() {
		defer close(done)
		w.follow(ctx)
	}()
}

func (w *Watcher) stopFollowLocked() {
	if w.stopFollow == nil {
		return
	}
	w.stopFollow()
	w.stopFollow, w.followDone = nil, nil
}

// observe records a head reported by the follower of ctx.
func (w *Watcher) observe(ctx context.Context, head uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if historic, _ := w.store.Historic(); historic {
		return
	}
	if w.store.observeHead(head) {
		_headMtc.Set(float64(head))
		w.requestLocked(false)
	}
}

func (w *Watcher) follow(ctx context.Context) {
	if w.cfg.Subscribe {
		err := w.subscribe(ctx)
		if ctx.Err() != nil {
			return
		}
		logger.LogError(errors.Wrap(err, "falling back to polling"))
	}
	w.poll(ctx)
}

func (w *Watcher) poll(ctx context.Context) {
	ticker := w.clock.Ticker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkHead(ctx)
		}
	}
}

func (w *Watcher) checkHead(ctx context.Context) {
	head, err := w.heads.BlockNumber(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.LogError(errors.Wrap(err, "failed to read block number"))
		}
		return
	}
	w.observe(ctx, head)
}

// subscribe follows heads over subscriptions, resubscribing with exponential
// backoff. It returns once MaxResubscribe consecutive attempts failed, the
// ledger does not support subscriptions or ctx is done.
func (w *Watcher) subscribe(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	failures := 0
	for {
		delivered, err := w.subscribeOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ledger.ErrSubscriptionUnsupported) {
			return err
		}
		if delivered {
			b.Reset()
			failures = 0
		}
		failures++
		if failures > w.cfg.MaxResubscribe {
			return errors.Wrapf(err, "head subscription failed %d times", failures)
		}
		d := b.NextBackOff()
		_resubscribeMtc.Inc()
		logger.L().Warn("head subscription failed, resubscribing",
			zap.Error(err),
			zap.Duration("in", d))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clock.After(d):
		}
	}
}

// subscribeOnce runs one subscription until it fails and reports whether it
// delivered any head.
func (w *Watcher) subscribeOnce(ctx context.Context) (bool, error) {
	ch := make(chan *ledger.Header, 16)
	sub, err := w.heads.SubscribeNewHeads(ctx, ch)
	if err != nil {
		return false, err
	}
	defer sub.Unsubscribe()

	// heads produced before the subscription was established
	w.checkHead(ctx)

	delivered := false
	for {
		select {
		case <-ctx.Done():
			return delivered, ctx.Err()
		case h := <-ch:
			delivered = true
			w.observe(ctx, h.Number)
		case err, ok := <-sub.Err():
			if !ok || err == nil {
				err = ledger.ErrSubscriptionClosed
			}
			return delivered, err
		}
	}
}
