package disjoint

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns the numeric id of the calling goroutine, parsed from
// its own stack trace header ("goroutine 123 [running]: ..."). Go has no
// supported API for this; it is the accepted substitute wherever Go code
// needs the equivalent of a native thread id for reentrancy detection (the
// role spec.md's collector_thread sentinel plays: "is the caller the
// goroutine already running collect() on this Module").
//
// It is used only for comparison and lookup: the no-op-on-reentry check in
// Module.Collect, Module.ThisIsCollectorThread, and as the key of
// Container's per-goroutine current-disjunction map.
func goroutineID() int64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	i := bytes.IndexByte(buf, ' ')
	if i < 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(buf[:i]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
