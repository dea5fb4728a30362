package disjoint

// actionCaches buffers mutator operations applied to a Module while a
// collection is in progress (spec.md §3, "Action caches"). All five caches
// are empty whenever no collector is running; that emptiness is asserted at
// the points spec.md calls out (module.go).
type actionCaches struct {
	// objsAdd holds newly registered records not yet spliced into the
	// registry.
	objsAdd map[*record]struct{}

	// rootsAdd and rootsRemove hold pending root/unroot operations. The
	// Module guarantees these two sets are always disjoint: inserting an
	// address into one removes it from the other.
	rootsAdd    map[*Slot]struct{}
	rootsRemove map[*Slot]struct{}

	// repoint holds pending arc-slot repointings, keyed by slot address.
	// A nil value represents a repoint to null.
	repoint map[*Slot]*record

	// refCountDel holds records whose reference count fell to zero while a
	// collection was in progress; their destruction is deferred to the end
	// of that collection.
	refCountDel map[*record]struct{}
}

func newActionCaches() *actionCaches {
	return &actionCaches{
		objsAdd:     make(map[*record]struct{}),
		rootsAdd:    make(map[*Slot]struct{}),
		rootsRemove: make(map[*Slot]struct{}),
		repoint:     make(map[*Slot]*record),
		refCountDel: make(map[*record]struct{}),
	}
}

// empty reports whether every cache is currently empty, the invariant that
// must hold iff no collector is running on the owning Module.
func (c *actionCaches) empty() bool {
	return len(c.objsAdd) == 0 &&
		len(c.rootsAdd) == 0 &&
		len(c.rootsRemove) == 0 &&
		len(c.repoint) == 0 &&
		len(c.refCountDel) == 0
}

// addRoot records a pending root of slot, removing any pending unroot of the
// same slot so the two caches stay disjoint.
func (c *actionCaches) addRoot(s *Slot) {
	delete(c.rootsRemove, s)
	c.rootsAdd[s] = struct{}{}
}

// removeRoot records a pending unroot of slot, removing any pending root of
// the same slot so the two caches stay disjoint.
func (c *actionCaches) removeRoot(s *Slot) {
	delete(c.rootsAdd, s)
	c.rootsRemove[s] = struct{}{}
}

// setRepoint overwrites any prior cached repoint for slot with target.
func (c *actionCaches) setRepoint(s *Slot, target *record) {
	c.repoint[s] = target
}

// clearRepoint purges any pending repoint for slot, used when the slot
// itself is being destroyed.
func (c *actionCaches) clearRepoint(s *Slot) {
	delete(c.repoint, s)
}
