package reorder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Store is the persisted side of the view. UpdateOrder touches one entry and
// there is no multi-entry transaction.
type Store[E any] interface {
	List(ctx context.Context) ([]E, error)
	UpdateOrder(ctx context.Context, id string, order int) error
}

// Lease serializes moves beyond this process. Acquire fails when another
// holder owns the lease. While it is held the coordinator checks its view
// against the store before moving, since another process may have moved.
type Lease interface {
	Acquire(ctx context.Context) (release func(), err error)
}

type Kind int

const (
	Applied Kind = iota + 1
	Rejected
	Reverted
)

func (k Kind) String() string {
	switch k {
	case Applied:
		return "applied"
	case Rejected:
		return "rejected"
	case Reverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Outcome is the result of SubmitMove. Err is nil when Kind is Applied,
// ErrInvalidIndices, ErrBusy, ErrStale or a *FetchError when Rejected, and a
// *WriteError when Reverted.
type Outcome struct {
	Kind Kind
	Err  error
}

type state int

const (
	stateIdle state = iota
	stateApplying
	statePersisting
)

func (s state) String() string {
	switch s {
	case stateApplying:
		return "applying"
	case statePersisting:
		return "persisting"
	default:
		return "idle"
	}
}

type Options struct {
	// Timeout bounds the wait for all order writes of a move. Zero waits
	// until the writes settle or ctx is done.
	Timeout time.Duration
	// Retries is the number of extra attempts per failed write.
	Retries int
	// Backoff is the delay before the first retry, doubled on each attempt.
	Backoff time.Duration
	// Concurrency caps in-flight writes. Zero dispatches all writes at once.
	Concurrency int
	Lease       Lease
	Logger      *log.Logger
}

// Coordinator turns moves into durable order changes: apply to the view
// first, write every order, then keep the result or revert to the snapshot.
type Coordinator[E Entry[E]] struct {
	store  Store[E]
	view   *View[E]
	opts   Options
	logger *log.Logger

	mu       sync.Mutex
	state    state
	deferred []E
	hasLoad  bool
}

func NewCoordinator[E Entry[E]](store Store[E], opts Options) *Coordinator[E] {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator[E]{
		store:  store,
		view:   NewView[E](),
		opts:   opts,
		logger: logger.WithPrefix("reorder"),
	}
}

// Entries returns the current ordered sequence.
func (c *Coordinator[E]) Entries() []E {
	return c.view.Entries()
}

// State reports "idle", "applying" or "persisting".
func (c *Coordinator[E]) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.String()
}

// Load replaces the view with a freshly observed list. While a move is in
// flight the list is held back until the move resolves; Load then reports false.
func (c *Coordinator[E]) Load(entries []E) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateIdle {
		c.deferred = cloneEntries(entries)
		c.hasLoad = true
		return false
	}
	c.view.Load(entries)
	return true
}

// Refresh lists the store and loads the result. A failed list leaves the
// view as it was and returns a *FetchError.
func (c *Coordinator[E]) Refresh(ctx context.Context) error {
	entries, err := c.store.List(ctx)
	if err != nil {
		return &FetchError{Err: err}
	}
	if !c.Load(entries) {
		c.logger.Debug("refresh deferred until move resolves", "entries", len(entries))
	}
	return nil
}

// SubmitMove moves the entry at from to position to and persists the new
// order of every entry.
func (c *Coordinator[E]) SubmitMove(ctx context.Context, from, to int) Outcome {
	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return Outcome{Kind: Rejected, Err: ErrBusy}
	}
	n := c.view.Len()
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		c.mu.Unlock()
		return Outcome{Kind: Rejected, Err: ErrInvalidIndices}
	}
	c.state = stateApplying
	c.mu.Unlock()

	release := func() {}
	if c.opts.Lease != nil {
		r, err := c.opts.Lease.Acquire(ctx)
		if err != nil {
			c.logger.Warn("move lease unavailable", "err", err)
			c.resolve(nil, false)
			return Outcome{Kind: Rejected, Err: fmt.Errorf("%w: %v", ErrBusy, err)}
		}
		release = r
	}
	defer release()

	if c.opts.Lease != nil {
		if out, ok := c.checkCurrent(ctx); !ok {
			return out
		}
	}

	snapshot := c.view.Snapshot()
	next, err := c.view.ApplyMove(from, to)
	if err != nil {
		c.resolve(nil, false)
		return Outcome{Kind: Rejected, Err: ErrInvalidIndices}
	}

	c.mu.Lock()
	c.state = statePersisting
	c.mu.Unlock()

	failures := c.persist(ctx, next)
	if len(failures) == 0 {
		refetch := c.resolve(nil, true)
		c.logger.Info("move applied", "from", from, "to", to, "entries", len(next))
		if refetch {
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("reload after move failed", "err", err)
			}
		}
		return Outcome{Kind: Applied}
	}

	c.resolve(&snapshot, false)
	werr := &WriteError{Attempted: len(next), Failures: failures}
	c.logger.Warn("move reverted", "from", from, "to", to, "err", werr)
	return Outcome{Kind: Reverted, Err: werr}
}

// resolve ends a move. On success the view's orders become index+1; a list
// observed meanwhile predates the move's writes, so resolve reports true and
// the caller lists the store again. Otherwise the snapshot, if any, is
// restored and a held-back list is loaded on top.
func (c *Coordinator[E]) resolve(snapshot *Snapshot[E], ok bool) (refetch bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ok {
		c.view.Densify()
		refetch = c.hasLoad
	} else {
		if snapshot != nil {
			c.view.Restore(*snapshot)
		}
		if c.hasLoad {
			c.view.Load(c.deferred)
		}
	}
	c.deferred = nil
	c.hasLoad = false
	c.state = stateIdle
	return refetch
}

// checkCurrent lists the store and compares its order with the view. A
// different order means another process changed the timeline; the fresh
// list replaces the view and the move is rejected with ErrStale.
func (c *Coordinator[E]) checkCurrent(ctx context.Context) (Outcome, bool) {
	fresh, err := c.store.List(ctx)
	if err != nil {
		c.resolve(nil, false)
		return Outcome{Kind: Rejected, Err: &FetchError{Err: err}}, false
	}
	current := NewView[E]()
	current.Load(fresh)
	if sameKeys(current.Entries(), c.view.Entries()) {
		return Outcome{}, true
	}

	c.mu.Lock()
	c.deferred = cloneEntries(fresh)
	c.hasLoad = true
	c.mu.Unlock()
	c.resolve(nil, false)
	c.logger.Info("view out of date, move rejected", "entries", len(fresh))
	return Outcome{Kind: Rejected, Err: ErrStale}, false
}

func sameKeys[E Entry[E]](a, b []E) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key() != b[i].Key() {
			return false
		}
	}
	return true
}

type writeResult struct {
	index int
	err   error
}

func (c *Coordinator[E]) persist(ctx context.Context, next []E) []EntryFailure {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	results := make(chan writeResult, len(next))
	go func() {
		var g errgroup.Group
		if c.opts.Concurrency > 0 {
			g.SetLimit(c.opts.Concurrency)
		}
		for i, entry := range next {
			id := entry.Key()
			g.Go(func() error {
				results <- writeResult{index: i, err: c.write(ctx, id, i+1)}
				return nil
			})
		}
		_ = g.Wait()
	}()

	settled := make([]bool, len(next))
	var failures []EntryFailure
	for pending := len(next); pending > 0; pending-- {
		select {
		case res := <-results:
			settled[res.index] = true
			if res.err != nil {
				failures = append(failures, EntryFailure{ID: next[res.index].Key(), Order: res.index + 1, Err: res.err})
			}
		case <-ctx.Done():
			for i, done := range settled {
				if !done {
					failures = append(failures, EntryFailure{ID: next[i].Key(), Order: i + 1, Err: ctx.Err()})
				}
			}
			return sortFailures(failures)
		}
	}
	return sortFailures(failures)
}

func sortFailures(failures []EntryFailure) []EntryFailure {
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Order < failures[j].Order
	})
	return failures
}

func (c *Coordinator[E]) write(ctx context.Context, id string, order int) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.Backoff
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	attempt := 0
	return backoff.RetryNotify(
		func() error { return c.store.UpdateOrder(ctx, id, order) },
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(max(c.opts.Retries, 0))), ctx),
		func(err error, wait time.Duration) {
			attempt++
			c.logger.Debug("retrying order write", "id", id, "attempt", attempt, "wait", wait, "err", err)
		},
	)
}
