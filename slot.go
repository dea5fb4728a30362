package disjoint

// Slot is the core's view of an "arc slot": one edge from some enclosing
// structure to a managed record. The enclosing structure (the user-facing
// smart pointer type, or a container that embeds one) owns the Slot's
// storage and lifetime; the core never allocates a Slot, only reads and
// repoints the one given to it.
//
// A Slot's zero value is a valid, unrooted, targetless slot not yet attached
// to any Module. It becomes associated with a Module and a disjunction tag
// the first time one of Module's create_* operations is applied to it.
type Slot struct {
	// module is the disjunction tag, captured the first time this slot is
	// attached to a Module. Immutable thereafter.
	module *Module

	// target is the record this slot currently aims at, or nil. Mutated only
	// under the owning Module's mutex, or overwritten wholesale when a
	// pending repoint from the Module's repoint cache is applied.
	target *record
}

// Module returns the disjunction this slot belongs to, or nil if the slot
// has never been attached to one.
func (s *Slot) Module() *Module {
	return s.module
}

// Value returns the payload of the record this slot currently targets, or
// nil if the slot is null or unattached. Safe to call without holding any
// lock only when the caller already has some other guarantee of
// quiescence (e.g. it owns the enclosing object and nothing else can repoint
// this slot concurrently); otherwise the caller must provide its own
// external synchronization, exactly as the router contract requires for
// mutable containers.
func (s *Slot) Value() any {
	if s.target == nil {
		return nil
	}
	return s.target.payload
}

// isNull reports whether the slot currently targets nothing.
func (s *Slot) isNull() bool {
	return s.target == nil
}
