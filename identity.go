package disjoint

import "reflect"

// recordID returns a stable per-record identity usable as a contains.Set
// key, the same reflect-based approach the corpus uses elsewhere for object
// identity when no native thread/object id is available.
func recordID(r *record) uintptr {
	return reflect.ValueOf(r).Pointer()
}
