package disjoint

import (
	"runtime"
	"sync/atomic"
)

// Packed atomic tag word layout (spec.md §3, "Disjoint-module handle tag"):
// a single uint64 split into three bit-fields so that weak-to-strong
// upgrade can succeed or fail with a bounded, ABA-free sequence of RMWs.
const (
	strongBits = 24
	weakBits   = 24
	lockBits   = 16

	strongShift = 0
	weakShift   = strongBits
	lockShift   = strongBits + weakBits

	strongMask uint64 = (1<<strongBits - 1) << strongShift
	weakMask   uint64 = (1<<weakBits - 1) << weakShift
	lockMask   uint64 = (1<<lockBits - 1) << lockShift

	strongOne uint64 = 1 << strongShift
	weakOne   uint64 = 1 << weakShift
	lockOne   uint64 = 1 << lockShift
)

// negate returns the uint64 two's-complement negation of x, i.e. the delta
// to pass to atomic.AddUint64 to subtract x. Adding it to the packed word
// only affects the target field(s) as long as that field does not
// underflow past zero first -- overflow or underflow of any field is a
// programming error and produces undefined bit-field carry, exactly as
// spec.md §3 describes.
func negate(x uint64) uint64 {
	return ^x + 1
}

func strongOf(tag uint64) uint64 { return (tag & strongMask) >> strongShift }
func weakOf(tag uint64) uint64   { return (tag & weakMask) >> weakShift }
func lockOf(tag uint64) uint64   { return (tag & lockMask) >> lockShift }

// handleData is the block a shared/weak Handle pair refers to: the packed
// tag plus the Module it keeps alive. It is never explicitly freed in Go --
// the runtime's own GC reclaims it once no Handle or WeakHandle points to it
// -- but destroyedFlag is still required to let a concurrent weak dropper
// know it is safe to stop waiting and treat the module as finished, exactly
// as in spec.md §4.4.
type handleData struct {
	tag           uint64
	module        *Module
	destroyedFlag uint32
}

// Handle is a shared, reference-counted ownership of an entire disjoint
// Module, analogous to a managed pointer but at the granularity of a whole
// disjunction.
type Handle struct {
	data *handleData
}

// WeakHandle is a weak reference to the Module owned by some Handle. It
// does not keep the Module alive; Lock attempts to promote it to a Handle.
type WeakHandle struct {
	data *handleData
}

// NewHandle allocates a fresh disjoint Module and returns a Handle owning
// it with a strong count of one.
func NewHandle() *Handle {
	return &Handle{data: &handleData{module: NewModule(), tag: strongOne}}
}

// Module returns the disjoint module this handle owns, or nil if the
// handle is empty.
func (h *Handle) Module() *Module {
	if h == nil || h.data == nil {
		return nil
	}
	return h.data.module
}

// Clone returns a new Handle aliasing the same module, incrementing the
// strong count.
func (h *Handle) Clone() *Handle {
	if h == nil || h.data == nil {
		return &Handle{}
	}
	atomic.AddUint64(&h.data.tag, strongOne)
	return &Handle{data: h.data}
}

// Weak returns a new WeakHandle aliasing the same module, incrementing the
// weak count.
func (h *Handle) Weak() *WeakHandle {
	if h == nil || h.data == nil {
		return &WeakHandle{}
	}
	atomic.AddUint64(&h.data.tag, weakOne)
	return &WeakHandle{data: h.data}
}

// Assign repoints h to alias other (which may be nil), following spec.md
// §4.4's reset semantics: if h was the last strong reference to its
// previous module, that module receives a final blocking collection and
// teardown before the reference is released.
func (h *Handle) Assign(other *Handle) {
	var otherData *handleData
	if other != nil {
		otherData = other.data
	}
	if h.data == otherData {
		return
	}
	old := h.data
	if old != nil {
		newTag := atomic.AddUint64(&old.tag, negate(strongOne))
		prevStrong := strongOf(newTag) + 1
		if prevStrong == 1 {
			old.module.BlockingCollect()
			old.module.teardown()
			if weakOf(newTag) != 0 {
				atomic.StoreUint32(&old.destroyedFlag, 1)
			}
		}
	}
	if otherData != nil {
		atomic.AddUint64(&otherData.tag, strongOne)
	}
	h.data = otherData
}

// Reset is shorthand for h.Assign(nil): it drops h's strong reference,
// running a final collection and teardown if this was the last one.
func (h *Handle) Reset() {
	h.Assign(nil)
}

// Assign repoints w to alias other's module weakly (other may be nil).
func (w *WeakHandle) Assign(other *WeakHandle) {
	var otherData *handleData
	if other != nil {
		otherData = other.data
	}
	if w.data == otherData {
		return
	}
	old := w.data
	if old != nil {
		newTag := atomic.AddUint64(&old.tag, negate(weakOne))
		prevWeak := weakOf(newTag) + 1
		if prevWeak == 1 && strongOf(newTag) == 0 {
			for atomic.LoadUint32(&old.destroyedFlag) == 0 {
				runtime.Gosched()
			}
		}
	}
	if otherData != nil {
		atomic.AddUint64(&otherData.tag, weakOne)
	}
	w.data = otherData
}

// Reset drops w's weak reference.
func (w *WeakHandle) Reset() {
	w.Assign(nil)
}

// Lock attempts to promote w to a shared Handle. It fails, returning
// (nil, false), iff the module has already received its final collection
// (no non-transient strong reference remained at the instant of the
// attempt). The lockOne field disambiguates two concurrent upgrades racing
// against a non-lock-strong count of zero: at most one can succeed.
func (w *WeakHandle) Lock() (*Handle, bool) {
	if w.data == nil {
		return nil, false
	}
	d := w.data
	newTag := atomic.AddUint64(&d.tag, strongOne|lockOne)
	nonLockStrong := strongOf(newTag) - lockOf(newTag)
	if nonLockStrong >= 1 {
		atomic.AddUint64(&d.tag, negate(lockOne))
		return &Handle{data: d}, true
	}
	atomic.AddUint64(&d.tag, negate(strongOne|lockOne))
	return nil, false
}

// Expired reports whether the module has already received its final
// collection. It loads the tag with acquire ordering only (not acq_rel; a
// pure load has nothing to release), and checks the full strong field,
// including the transient strong of any in-flight upgrade, so that a
// successful upgrade whose lock bit is not yet cleared is not read as
// expired.
func (w *WeakHandle) Expired() bool {
	if w.data == nil {
		return true
	}
	tag := atomic.LoadUint64(&w.data.tag)
	return strongOf(tag) == 0
}
