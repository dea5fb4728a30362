package disjoint

import "testing"

// cell is the test suite's stand-in for a user-defined managed object: a
// single outgoing arc slot plus a counter so tests can observe when destroy
// ran.
type cell struct {
	out       Slot
	destroyed *int
}

func (c *cell) router() Router {
	return RouterFunc(func(mode RouteMode, visit func(*Slot)) {
		visit(&c.out)
	})
}

// bindCell registers a new cell record in m, rooted at s, and returns the
// cell so the test can aim c.out at something with Repoint. c.out is itself
// attached to m (via CreateNull then Unroot) so it carries the disjunction
// tag Repoint's cross-disjunction check relies on, without counting as an
// independent root -- it is reachable only through the owning record.
func bindCell(m *Module, s *Slot, destroyed *int) *cell {
	c := &cell{destroyed: destroyed}
	m.CreateNull(&c.out)
	m.Unroot(&c.out)
	m.CreateBindNew(s, c, func() { *destroyed++ }, func() {}, c.router())
	return c
}

// wantLen fails the test if m's registered-record count doesn't match want.
func wantLen(t *testing.T, m *Module, want int) {
	t.Helper()
	if got := m.Len(); got != want {
		t.Fatalf("len = %d, want %d", got, want)
	}
}

// wantRoots fails the test if m's root count doesn't match want.
func wantRoots(t *testing.T, m *Module, want int) {
	t.Helper()
	if got := m.Roots(); got != want {
		t.Fatalf("roots = %d, want %d", got, want)
	}
}

// wantDestroyed fails the test if got != want, naming what was being checked.
func wantDestroyed(t *testing.T, what string, got, want int) {
	t.Helper()
	if got != want {
		t.Fatalf("%s destroyed %d times, want %d", what, got, want)
	}
}

// mustCollect runs Collect and fails the test if it refused to run.
func mustCollect(t *testing.T, m *Module) CollectStats {
	t.Helper()
	ok, stats := m.Collect()
	if !ok {
		t.Fatal("collect refused to run")
	}
	return stats
}

// mustRepoint fails the test if Repoint returns an error.
func mustRepoint(t *testing.T, m *Module, s, new *Slot) {
	t.Helper()
	if err := m.Repoint(s, new); err != nil {
		t.Fatal(err)
	}
}
