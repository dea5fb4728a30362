// Package disjoint implements a tracing garbage collector that coexists with
// deterministic reference counting, partitioned into isolated collection
// arenas called disjunctions.
//
// A Module is one such arena: a closed sub-universe of managed records that
// only ever aim at each other. Acyclic garbage is reclaimed promptly by
// reference counting; cycles are reclaimed by a stop-the-world mark-sweep
// collection local to a single Module, which may run concurrently with
// mutator goroutines that create, destroy, re-aim, and swap managed pointers.
//
// Handle and WeakHandle give a Module itself shared/weak ownership, with
// lock/upgrade semantics resembling weak-pointer promotion. Container tracks
// every live disjunction process-wide and drives the periodic background
// sweep.
//
// Package disjoint is the engine only, plus the background sweep loop
// (Container.RunBackground). The user-facing smart pointer type and
// container adapters are not part of this package; it defines only the
// contracts (Router) they need to hook into.
package disjoint
