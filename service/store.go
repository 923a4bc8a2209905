package service

import (
	"go.uber.org/atomic"

	"go-validator-pool-sync/model"
)

// ContextStore owns the GlobalContext. It is created once at startup and
// shared by reference between the engine, the watcher and the read surface.
//
// The committed context is immutable once stored: a pass works on a deep copy
// and replaces the pointer when it completes, so readers never block and
// always observe a whole pass.
type ContextStore struct {
	snapshot atomic.Pointer[model.GlobalContext]

	// head is the authoritative height every pass is fenced against.
	head   atomic.Uint64
	latest atomic.Uint64

	busy    atomic.Bool
	lastErr atomic.Error
	passes  atomic.Uint64

	historic       atomic.Bool
	historicHeight atomic.Uint64
}

// NewContextStore returns a store holding an empty context.
func NewContextStore(myAddress string) *ContextStore {
	s := &ContextStore{}
	s.snapshot.Store(model.NewGlobalContext(myAddress))
	return s
}

// Snapshot returns the last committed context. It must not be modified.
func (s *ContextStore) Snapshot() *model.GlobalContext {
	return s.snapshot.Load()
}

// View is the read-only state exposed to UI collaborators.
type View struct {
	*model.GlobalContext
	Busy            bool   `json:"busy"`
	LastError       string `json:"lastError,omitempty"`
	Historic        bool   `json:"historic"`
	HistoricBlock   uint64 `json:"historicBlock,omitempty"`
	CompletedPasses uint64 `json:"completedPasses"`
}

// View returns the committed context together with the engine status.
func (s *ContextStore) View() View {
	c := *s.Snapshot()
	if latest := s.latest.Load(); latest > c.LatestBlockNumber {
		c.LatestBlockNumber = latest
	}
	v := View{
		GlobalContext:   &c,
		Busy:            s.busy.Load(),
		Historic:        s.historic.Load(),
		CompletedPasses: s.passes.Load(),
	}
	if v.Historic {
		v.HistoricBlock = s.historicHeight.Load()
	}
	if err := s.lastErr.Load(); err != nil {
		v.LastError = err.Error()
	}
	return v
}

// Head returns the authoritative height.
func (s *ContextStore) Head() uint64 { return s.head.Load() }

// Latest returns the highest head observed on the live chain.
func (s *ContextStore) Latest() uint64 { return s.latest.Load() }

// Busy reports whether a pass is running.
func (s *ContextStore) Busy() bool { return s.busy.Load() }

// LastError returns the error of the last failed pass, nil after a completed one.
func (s *ContextStore) LastError() error { return s.lastErr.Load() }

// CompletedPasses returns the number of committed passes.
func (s *ContextStore) CompletedPasses() uint64 { return s.passes.Load() }

// Historic reports whether a historic height is pinned, and which.
func (s *ContextStore) Historic() (bool, uint64) {
	return s.historic.Load(), s.historicHeight.Load()
}

// observeHead advances the head if h is above it and reports whether it did.
func (s *ContextStore) observeHead(h uint64) bool {
	for {
		cur := s.latest.Load()
		if h <= cur || s.latest.CompareAndSwap(cur, h) {
			break
		}
	}
	for {
		cur := s.head.Load()
		if h <= cur {
			return false
		}
		if s.head.CompareAndSwap(cur, h) {
			return true
		}
	}
}

// pinHead moves the head to h unconditionally.
func (s *ContextStore) pinHead(h uint64) {
	s.head.Store(h)
}

func (s *ContextStore) setHistoric(historic bool, height uint64) {
	s.historicHeight.Store(height)
	s.historic.Store(historic)
}

func (s *ContextStore) commit(c *model.GlobalContext) {
	s.snapshot.Store(c)
	s.passes.Inc()
}
