package disjoint

import "testing"

func checkRegistryOrder(t *testing.T, reg *registry, want []*record) {
	t.Helper()
	if reg.len() != len(want) {
		t.Fatalf("len = %d, want %d", reg.len(), len(want))
	}
	var got []*record
	reg.each(func(r *record) { got = append(got, r) })
	if len(got) != len(want) {
		t.Fatalf("each yielded %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order[%d] = %p, want %p", i, got[i], want[i])
		}
	}
}

func TestRegistryPushRemove(t *testing.T) {
	var reg registry
	reg.init()
	checkRegistryOrder(t, &reg, nil)

	a := &record{}
	b := &record{}
	c := &record{}

	t.Run("pushBack appends in order", func(t *testing.T) {
		reg.pushBack(a)
		reg.pushBack(b)
		reg.pushBack(c)
		checkRegistryOrder(t, &reg, []*record{a, b, c})
	})

	t.Run("remove detaches the middle element", func(t *testing.T) {
		reg.remove(b)
		checkRegistryOrder(t, &reg, []*record{a, c})
	})
}

func TestNewRecordDefaults(t *testing.T) {
	m := NewModule()
	r := newRecord(m, "x", func() {}, func() {}, nil)

	t.Run("refcount starts at one", func(t *testing.T) {
		if r.refCount != 1 {
			t.Fatalf("refCount = %d, want 1", r.refCount)
		}
	})
	t.Run("nil route defaults to NoArcs", func(t *testing.T) {
		if r.route == nil {
			t.Fatal("route defaulted to nil, want NoArcs")
		}
		called := false
		r.route.Route(RouteImmutable, func(*Slot) { called = true })
		if called {
			t.Fatal("NoArcs visited a slot")
		}
	})
}
