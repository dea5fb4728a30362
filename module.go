package disjoint

import (
	"sync"

	"github.com/zephyrtronium/contains"
)

// Module is a disjoint module: one independent collection arena (spec.md
// §2 layer 2). All mutator operations on a Module serialize on its internal
// mutex; a collection runs mostly outside that mutex, consulting action
// caches to stay consistent with mutators that proceed concurrently.
type Module struct {
	mu sync.Mutex

	reg   registry
	roots map[*Slot]struct{}

	caches *actionCaches

	// collectorGoroutine is the id of the goroutine currently running
	// Collect on this Module, or 0 if none is. It is the Go-native
	// substitute for spec.md's collector_thread sentinel.
	collectorGoroutine int64

	// cacheRefCountDelActions is set together with collectorGoroutine at
	// admission but cleared earlier, in phase 6, so that refcount-zero
	// deletions during phases 7-9 run immediately while other mutator
	// operations are still cached until collectorGoroutine is reset.
	cacheRefCountDelActions bool

	ignoreCount int

	log *moduleLogger
}

// NewModule creates a new, empty disjoint module.
func NewModule() *Module {
	m := &Module{
		roots:  make(map[*Slot]struct{}),
		caches: newActionCaches(),
		log:    newModuleLogger(),
	}
	m.reg.init()
	return m
}

func (m *Module) collecting() bool {
	return m.collectorGoroutine != 0
}

// assertIdleCachesEmpty panics if a mutator is about to take the immediate
// path while some cache is non-empty; this invariant (spec.md §3, §4.1) must
// never be violated and a violation means the core itself has a bug.
func (m *Module) assertIdleCachesEmpty() {
	if !m.collecting() && !m.caches.empty() {
		panic("disjoint: action caches non-empty while no collection is running")
	}
}

// currentTarget resolves the logical current target of s: a pending cached
// repoint takes precedence over the slot's committed raw pointer. Must be
// called with mu held. This is __get_current_target from spec.md §4.1.
func (m *Module) currentTarget(s *Slot) *record {
	if t, ok := m.caches.repoint[s]; ok {
		return t
	}
	return s.target
}

func (m *Module) registerLocked(r *record) {
	if m.collecting() {
		m.caches.objsAdd[r] = struct{}{}
		return
	}
	m.assertIdleCachesEmpty()
	m.reg.pushBack(r)
}

func (m *Module) addRootLocked(s *Slot) {
	if m.collecting() {
		m.caches.addRoot(s)
		return
	}
	m.assertIdleCachesEmpty()
	m.roots[s] = struct{}{}
}

func (m *Module) removeRootLocked(s *Slot) {
	if m.collecting() {
		m.caches.removeRoot(s)
		return
	}
	m.assertIdleCachesEmpty()
	delete(m.roots, s)
}

func (m *Module) setTargetLocked(s *Slot, target *record) {
	if m.collecting() {
		m.caches.setRepoint(s, target)
		return
	}
	m.assertIdleCachesEmpty()
	s.target = target
}

// decRefLocked decrements r's reference count and, if it reaches zero,
// applies the three-way branch of spec.md §4.1's "Reference-count decrement
// semantics". mu must be held on entry; it is held again on return,
// regardless of whether a destructor ran in between (the mutex is always
// released before user code runs and reacquired immediately after, so that
// re-entrant mutator calls from within a destructor see a consistent lock
// state).
func (m *Module) decRefLocked(r *record) {
	r.refCount--
	if r.refCount > 0 {
		return
	}
	if _, ok := m.caches.objsAdd[r]; ok {
		// Never spliced into the registry; safe to act immediately.
		delete(m.caches.objsAdd, r)
		m.mu.Unlock()
		r.destroy()
		r.deallocate()
		m.mu.Lock()
		return
	}
	if !m.cacheRefCountDelActions {
		m.reg.remove(r)
		m.mu.Unlock()
		r.destroy()
		r.deallocate()
		m.mu.Lock()
		return
	}
	m.caches.refCountDel[r] = struct{}{}
}

// CreateNull attaches s to m as a rooted slot with no target.
func (m *Module) CreateNull(s *Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.module = m
	m.setTargetLocked(s, nil)
	m.addRootLocked(s)
}

// CreateBindNew attaches s to m, registers a freshly allocated record with
// reference count 1 wrapping payload, and roots s at it. destroy and
// deallocate are invoked, in that order, only once the record becomes
// unreachable; route enumerates the record's outgoing arcs and may be nil
// for a record with none.
func (m *Module) CreateBindNew(s *Slot, payload any, destroy, deallocate func(), route Router) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.module = m
	r := newRecord(m, payload, destroy, deallocate, route)
	m.registerLocked(r)
	m.setTargetLocked(s, r)
	m.addRootLocked(s)
}

// CreateAlias attaches s to src's module, aiming it at src's current target
// (incrementing that target's reference count if non-null), and roots s.
// src must already belong to a Module; the module s joins is src's, not any
// module the caller may otherwise have in hand.
func CreateAlias(s *Slot, src *Slot) {
	m := src.Module()
	m.mu.Lock()
	defer m.mu.Unlock()
	target := m.currentTarget(src)
	s.module = m
	m.setTargetLocked(s, target)
	if target != nil {
		target.refCount++
	}
	m.addRootLocked(s)
}

// Destroy unroots s, purges any pending repoint of s, and releases s's
// reference to its current target, running destructors as needed.
func (m *Module) Destroy(s *Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeRootLocked(s)
	target := m.currentTarget(s)
	m.caches.clearRepoint(s)
	if target != nil {
		m.decRefLocked(target)
	}
	s.target = nil
}

// Unroot removes s from the root set without otherwise changing it.
func (m *Module) Unroot(s *Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeRootLocked(s)
}

// RepointNull repoints s to null, releasing its reference to its previous
// target.
func (m *Module) RepointNull(s *Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.currentTarget(s)
	m.setTargetLocked(s, nil)
	if old != nil {
		m.decRefLocked(old)
	}
}

// Repoint aims s at new's current target instead of its own, incrementing
// the new target's reference count and decrementing the old one's, unless
// they are already the same record. Fails with ErrDisjunctionViolation, and
// changes nothing, if new's target belongs to a different disjunction than
// s.
func (m *Module) Repoint(s *Slot, new *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldTarget := m.currentTarget(s)
	newTarget := m.currentTarget(new)
	if newTarget != nil && newTarget.module != s.module {
		return ErrDisjunctionViolation
	}
	if oldTarget == newTarget {
		return nil
	}
	m.setTargetLocked(s, newTarget)
	if newTarget != nil {
		newTarget.refCount++
	}
	if oldTarget != nil {
		m.decRefLocked(oldTarget)
	}
	return nil
}

// RepointSwap exchanges the targets of a and b. No reference counts change,
// since the net effect is zero. Fails with ErrDisjunctionViolation, and
// changes nothing, if a and b belong to different disjunctions.
func (m *Module) RepointSwap(a, b *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.module != b.module {
		return ErrDisjunctionViolation
	}
	ta := m.currentTarget(a)
	tb := m.currentTarget(b)
	if ta == tb {
		return nil
	}
	// Both cache writes happen before either slot's prior target could be
	// destroyed: no ref count changes, and mu is held throughout, so neither
	// write can race a decRef that would free what the other write is about
	// to read (spec.md §9, "swap under collection").
	m.setTargetLocked(a, tb)
	m.setTargetLocked(b, ta)
	return nil
}

// BeginIgnore suppresses collection on m until a matching EndIgnore. Pairs
// must be balanced; nesting is permitted.
func (m *Module) BeginIgnore() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignoreCount++
}

// EndIgnore reverses one BeginIgnore. Calling it without a matching prior
// BeginIgnore is a programming error.
func (m *Module) EndIgnore() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ignoreCount == 0 {
		panic("disjoint: EndIgnore without matching BeginIgnore")
	}
	m.ignoreCount--
}

// Ignore brackets a region that must not be collected, returning a function
// that ends it. Intended for defer: defer m.Ignore()().
func (m *Module) Ignore() func() {
	m.BeginIgnore()
	return m.EndIgnore
}

// ThisIsCollectorThread reports whether the calling goroutine is the one
// currently running a collection on m.
func (m *Module) ThisIsCollectorThread() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectorGoroutine != 0 && m.collectorGoroutine == goroutineID()
}

// CollectStats summarizes one Collect call, for diagnostics and tests only;
// no invariant in spec.md depends on it.
type CollectStats struct {
	Destroyed int
	Deferred  int
}

// Collect runs one admission attempt and, if admitted, a full mark-sweep
// collection of m (spec.md §4.2). It returns true if a collection ran to
// completion, was unnecessary (suppressed by an ignore sentry), or was a
// no-op reentrant call; it returns false only if another goroutine is
// already collecting m, in which case the caller may retry.
func (m *Module) Collect() (bool, CollectStats) {
	gid := goroutineID()

	m.mu.Lock()
	if m.ignoreCount > 0 {
		m.mu.Unlock()
		return true, CollectStats{}
	}
	if m.collectorGoroutine != 0 {
		if m.collectorGoroutine == gid {
			m.mu.Unlock()
			return true, CollectStats{}
		}
		m.mu.Unlock()
		return false, CollectStats{}
	}
	m.collectorGoroutine = gid
	m.cacheRefCountDelActions = true
	if !m.caches.empty() {
		m.mu.Unlock()
		panic("disjoint: action caches non-empty at collection admission")
	}
	m.mu.Unlock()

	stats := m.runCollection()

	m.mu.Lock()
	m.collectorGoroutine = 0
	m.drainCachesLocked()
	m.mu.Unlock()

	m.log.l.Debug().Int("destroyed", stats.Destroyed).Int("deferred", stats.Deferred).Msg("collect")

	return true, stats
}

// BlockingCollect calls Collect repeatedly until it returns true.
func (m *Module) BlockingCollect() CollectStats {
	for {
		ok, stats := m.Collect()
		if ok {
			return stats
		}
	}
}

// runCollection performs phases 1-8 of spec.md §4.2. The caller has already
// performed phase 0 admission and holds no lock; it will perform phase 9
// itself after this returns.
func (m *Module) runCollection() CollectStats {
	// Phase 1 — prepare snapshot (no mutex).
	m.reg.each(func(r *record) {
		r.mark = false
		r.route.Route(RouteMutable, func(s *Slot) {
			delete(m.roots, s)
		})
	})

	// Phase 2 — drain caches that add information (under mutex).
	var roots []*record
	m.mu.Lock()
	for r := range m.caches.objsAdd {
		r.mark = false
		m.reg.pushBack(r)
	}
	m.caches.objsAdd = make(map[*record]struct{})
	for s := range m.caches.rootsAdd {
		m.roots[s] = struct{}{}
	}
	m.caches.rootsAdd = make(map[*Slot]struct{})
	for s := range m.caches.rootsRemove {
		delete(m.roots, s)
	}
	m.caches.rootsRemove = make(map[*Slot]struct{})
	for s, target := range m.caches.repoint {
		s.target = target
	}
	m.caches.repoint = make(map[*Slot]*record)
	for s := range m.roots {
		if s.target != nil {
			roots = append(roots, s.target)
		}
	}
	m.mu.Unlock()

	// Phase 3 — mark (no mutex).
	var seen contains.Set
	seen.Reset()
	var mark func(r *record)
	mark = func(r *record) {
		if r.mark {
			return
		}
		r.mark = true
		r.route.Route(RouteImmutable, func(s *Slot) {
			t := s.target
			if t == nil || t.mark {
				return
			}
			if seen.Add(recordID(t)) {
				mark(t)
			}
		})
	}
	for _, r := range roots {
		mark(r)
	}

	// Phase 4 — sweep.
	var delList []*record
	m.reg.each(func(r *record) {
		if !r.mark {
			delList = append(delList, r)
		}
	})
	for _, r := range delList {
		m.reg.remove(r)
	}

	// Phase 5 — destroy unreachables. Destructors may decrement other
	// records' reference counts; those decrements are still cached, since
	// cacheRefCountDelActions is still true.
	for _, r := range delList {
		r.destroy()
	}

	// Phase 6 — resume immediate ref-count deletion (under mutex). This must
	// flip cacheRefCountDelActions off before phases 7/8 run any further
	// destructors: otherwise a refcount-zero event they trigger on some
	// other, still-live peer would be added to refCountDel after this
	// snapshot already cleared it, and then never be drained.
	m.mu.Lock()
	m.cacheRefCountDelActions = false
	for _, r := range delList {
		delete(m.caches.refCountDel, r)
	}
	var refCountDel []*record
	for r := range m.caches.refCountDel {
		m.reg.remove(r)
		refCountDel = append(refCountDel, r)
	}
	m.caches.refCountDel = make(map[*record]struct{})
	m.mu.Unlock()

	// Phase 7 — deallocate unreachables, only after every destructor in
	// phase 5 has completed, since destructors may still traverse peers.
	for _, r := range delList {
		r.deallocate()
	}

	// Phase 8 — destroy & deallocate deferred ref-count deletions. These
	// records have reference count zero, so no peer holds a live edge to
	// them; destroy and deallocate may be fused per record.
	for _, r := range refCountDel {
		r.destroy()
		r.deallocate()
	}

	return CollectStats{Destroyed: len(delList), Deferred: len(refCountDel)}
}

// drainCachesLocked is phase 9: re-apply whatever accumulated in the caches
// between phase 2 and now into the live registry/root-set/slots. mu must be
// held.
func (m *Module) drainCachesLocked() {
	for r := range m.caches.objsAdd {
		m.reg.pushBack(r)
	}
	m.caches.objsAdd = make(map[*record]struct{})
	for s := range m.caches.rootsAdd {
		m.roots[s] = struct{}{}
	}
	m.caches.rootsAdd = make(map[*Slot]struct{})
	for s := range m.caches.rootsRemove {
		delete(m.roots, s)
	}
	m.caches.rootsRemove = make(map[*Slot]struct{})
	for s, target := range m.caches.repoint {
		s.target = target
	}
	m.caches.repoint = make(map[*Slot]*record)
}

// Len returns the number of records currently registered. For tests and
// diagnostics.
func (m *Module) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg.len()
}

// Roots returns the number of slots currently rooted. For tests and
// diagnostics.
func (m *Module) Roots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.roots)
}

// teardown asserts the module is empty and is called only from a Handle's
// final reset, after a blocking final collection. Panics (per spec.md §7,
// an unrecoverable usage violation) if objects or roots remain.
func (m *Module) teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reg.len() != 0 || len(m.roots) != 0 {
		panic(&ErrModuleNotEmpty{Objects: m.reg.len(), Roots: len(m.roots)})
	}
}
