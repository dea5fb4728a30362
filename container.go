package disjoint

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Container is the process-wide registry of disjunctions (spec.md §5):
// every Handle created through it is tracked weakly so a background sweep
// can cull disjunctions whose last strong Handle has already gone away and,
// optionally, run a collection pass across all the rest.
type Container struct {
	mu           sync.Mutex
	disjunctions []*WeakHandle
	addCache     []*WeakHandle
	collecting   bool

	currentMu sync.Mutex
	current   map[int64]*Handle
}

// NewContainer returns an empty disjunction registry.
func NewContainer() *Container {
	return &Container{}
}

// CreateNewDisjunction allocates a new disjoint Module, registers it weakly
// with the container, and returns the owning Handle. A registration racing
// a Sweep is buffered in addCache rather than appended directly, the same
// add-cache discipline a Module uses for mutator ops racing a collection.
func (c *Container) CreateNewDisjunction() *Handle {
	h := NewHandle()
	weak := h.Weak()
	c.mu.Lock()
	if c.collecting {
		c.addCache = append(c.addCache, weak)
	} else {
		c.disjunctions = append(c.disjunctions, weak)
	}
	c.mu.Unlock()
	return h
}

// Sweep walks every registered disjunction, dropping any whose last Handle
// has already gone away, and -- when collect is true -- runs a bounded
// concurrency Collect across every disjunction still alive (spec.md §5's
// bulk collect-all-disjunctions pass). maxConcurrent bounds how many
// Collect calls may run at once; zero leaves the errgroup unbounded.
func (c *Container) Sweep(ctx context.Context, collect bool, maxConcurrent int) error {
	c.mu.Lock()
	c.collecting = true
	live := make([]*WeakHandle, 0, len(c.disjunctions))
	for _, w := range c.disjunctions {
		if !w.Expired() {
			live = append(live, w)
		}
	}
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	if maxConcurrent > 0 {
		g.SetLimit(maxConcurrent)
	}

	if collect {
		for _, w := range live {
			w := w
			g.Go(func() error {
				if h, ok := w.Lock(); ok {
					h.Module().BlockingCollect()
					h.Reset()
				}
				return gctx.Err()
			})
		}
	}
	err := g.Wait()

	c.mu.Lock()
	c.disjunctions = append(live, c.addCache...)
	c.addCache = c.addCache[:0]
	c.collecting = false
	c.mu.Unlock()
	return err
}

// Len reports how many disjunctions the container last knew to be live.
// Accurate only as of the last Sweep, or at registration time for ones
// added since.
func (c *Container) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.disjunctions) + len(c.addCache)
}

var (
	primaryOnce   sync.Once
	primaryHandle *Handle
)

// Primary returns the process's static primary disjunction, created lazily
// on first use. Go has no static-destructor ordering to rely on for a
// process-lifetime singleton, so the primary disjunction is deliberately
// leaked for the remaining life of the process rather than ever torn down.
func Primary() *Handle {
	primaryOnce.Do(func() {
		primaryHandle = NewHandle()
	})
	return primaryHandle
}

// Current returns the disjunction the calling goroutine is currently
// operating against, defaulting to Primary if SetCurrent was never called
// on this goroutine. A goroutine-id-keyed map stands in for the thread-local
// storage the spec describes; goroutineID already serves this role for
// reentrancy detection in module.go.
func (c *Container) Current() *Handle {
	gid := goroutineID()
	c.currentMu.Lock()
	h, ok := c.current[gid]
	c.currentMu.Unlock()
	if ok {
		return h
	}
	return Primary()
}

// SetCurrent pins h as the calling goroutine's current disjunction.
func (c *Container) SetCurrent(h *Handle) {
	gid := goroutineID()
	c.currentMu.Lock()
	if c.current == nil {
		c.current = make(map[int64]*Handle)
	}
	c.current[gid] = h
	c.currentMu.Unlock()
}
