package disjoint

// record is one managed allocation's bookkeeping entry: the "info" block of
// spec.md §3. It is created when a managed allocation is registered and
// destroyed only by the collector or by reference-count-driven deletion.
//
// The intrusive doubly-linked list shape (sentinel head/tail, prev/next
// fields on the payload record itself) follows the same construction as a
// cache eviction list elsewhere in the corpus: fake head/tail nodes so that
// list surgery never needs a nil check.
type record struct {
	// payload is the user object this record tracks. The core never
	// interprets it; it is returned by Slot.Value, and gives
	// destroy/deallocate/route something to close over if a caller builds
	// them generically instead of via closures.
	payload any

	destroy    func()
	deallocate func()
	route      Router

	// module is the disjunction tag: the arena this record was registered
	// into. Immutable for the record's lifetime.
	module *Module

	// refCount is mutated only under module.mu. Strictly positive while the
	// record is in the registry or the add-cache.
	refCount int64

	// mark is used exclusively during a collection.
	mark bool

	prev, next *record
}

// newRecord builds a record with refCount 1, ready to be registered.
func newRecord(m *Module, payload any, destroy, deallocate func(), route Router) *record {
	if route == nil {
		route = NoArcs
	}
	return &record{
		payload:    payload,
		destroy:    destroy,
		deallocate: deallocate,
		route:      route,
		module:     m,
		refCount:   1,
	}
}

// registry is the intrusive doubly-linked list of live records for one
// Module. nil <- fakeHead <-> r0 <-> ... <-> rN <-> fakeTail -> nil.
type registry struct {
	fakeHead, fakeTail *record
	n                  int
}

func (l *registry) init() {
	l.fakeHead, l.fakeTail = &record{}, &record{}
	linkRecords(l.fakeHead, l.fakeTail)
}

func linkRecords(a, b *record) {
	a.next, b.prev = b, a
}

func (l *registry) head() *record { return l.fakeHead.next }
func (l *registry) end(r *record) bool { return r == l.fakeTail }

// pushBack registers a new record at the tail of the list.
func (l *registry) pushBack(r *record) {
	linkRecords(l.fakeTail.prev, r)
	linkRecords(r, l.fakeTail)
	l.n++
}

// remove detaches r from the list. r must currently be a member.
func (l *registry) remove(r *record) {
	linkRecords(r.prev, r.next)
	r.prev, r.next = nil, nil
	l.n--
}

// len returns the number of records currently registered.
func (l *registry) len() int { return l.n }

// each calls f for every record in the list, in list order. f must not
// mutate the list.
func (l *registry) each(f func(*record)) {
	for r := l.head(); !l.end(r); r = r.next {
		f(r)
	}
}
