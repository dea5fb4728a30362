package disjoint

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// An 11-node ring, entirely unreachable once unrooted, must be reclaimed in
// full by one Collect despite no node's own reference count ever reaching
// zero through refcounting alone.
func TestScenarioElevenNodeCycleReclaim(t *testing.T) {
	const n = 11
	m := NewModule()

	var root Slot
	destroyed := make([]int, n)
	cells := make([]*cell, n)
	cells[0] = bindCell(m, &root, &destroyed[0])
	for i := 1; i < n; i++ {
		var tmp Slot
		cells[i] = bindCell(m, &tmp, &destroyed[i])
		mustRepoint(t, m, &cells[i-1].out, &tmp)
		m.Unroot(&tmp)
	}
	mustRepoint(t, m, &cells[n-1].out, &root)
	m.Unroot(&root)

	wantLen(t, m, n)
	mustCollect(t, m)

	for i, d := range destroyed {
		name := fmt.Sprintf("node_%02d", i)
		t.Run(name, func(t *testing.T) {
			wantDestroyed(t, name, d, 1)
		})
	}
	wantLen(t, m, 0)
}

// Three cells form a ring, and their three root slots are swapped
// repeatedly with RepointSwap; no record should be created or lost across
// any swap, the roots must still hold some permutation of the three cells
// afterward, and once unrooted the ring is reclaimed in full.
func TestScenarioThreePointerRotationStress(t *testing.T) {
	m := NewModule()
	var sa, sb, sc Slot
	da, db, dc := 0, 0, 0
	a := bindCell(m, &sa, &da)
	b := bindCell(m, &sb, &db)
	c := bindCell(m, &sc, &dc)

	mustRepoint(t, m, &a.out, &sb)
	mustRepoint(t, m, &b.out, &sc)
	mustRepoint(t, m, &c.out, &sa)

	before := m.Len()

	rotations := []struct {
		name string
		a, b *Slot
	}{
		{"swap ab", &sa, &sb},
		{"swap bc", &sb, &sc},
	}
	for round := 0; round < 50; round++ {
		for _, r := range rotations {
			t.Run(r.name, func(t *testing.T) {
				if err := m.RepointSwap(r.a, r.b); err != nil {
					t.Fatal(err)
				}
			})
		}
	}
	wantLen(t, m, before)

	// The three values are still some permutation of a, b, c regardless of
	// rotation; nothing should have been destroyed or lost.
	seen := map[any]bool{sa.Value(): true, sb.Value(): true, sc.Value(): true}
	if len(seen) != 3 {
		t.Fatalf("rotation lost or duplicated a target: %v", seen)
	}

	m.Unroot(&sa)
	m.Unroot(&sb)
	m.Unroot(&sc)
	mustCollect(t, m)
	wantDestroyed(t, "a", da, 1)
	wantDestroyed(t, "b", db, 1)
	wantDestroyed(t, "c", dc, 1)
}

// Aiming a slot belonging to one disjunction at a record belonging to
// another must fail synchronously and leave both disjunctions untouched.
func TestScenarioCrossDisjunctionAimFails(t *testing.T) {
	c := NewContainer()
	h1 := c.CreateNewDisjunction()
	h2 := c.CreateNewDisjunction()
	m1, m2 := h1.Module(), h2.Module()

	var s1, s2 Slot
	d1, d2 := 0, 0
	bindCell(m1, &s1, &d1)
	bindCell(m2, &s2, &d2)

	if err := m1.Repoint(&s1, &s2); err != ErrDisjunctionViolation {
		t.Fatalf("err = %v, want ErrDisjunctionViolation", err)
	}
	t.Run("neither disjunction changed", func(t *testing.T) {
		wantLen(t, m1, 1)
		wantLen(t, m2, 1)
	})

	m1.Destroy(&s1)
	m2.Destroy(&s2)
	h1.Reset()
	h2.Reset()
}

// A record whose destructor, invoked mid-collection, severs the sole
// remaining reference to an otherwise-live record must defer that record's
// destruction to the end of the same collection rather than run it
// immediately, since the collector is already mid-sweep.
func TestScenarioDeferredRefCountDeleteDuringCollection(t *testing.T) {
	m := NewModule()

	var sc Slot
	cDestroyed := 0
	m.CreateBindNew(&sc, "C", func() { cDestroyed++ }, func() {}, nil)

	var sa Slot
	aDestroyed := 0
	m.CreateBindNew(&sa, "A", func() {
		aDestroyed++
		m.Destroy(&sc)
	}, func() {}, nil)
	m.Unroot(&sa)

	stats := mustCollect(t, m)
	wantDestroyed(t, "A", aDestroyed, 1)
	wantDestroyed(t, "C", cDestroyed, 1)
	if stats.Destroyed != 1 {
		t.Fatalf("stats.Destroyed = %d, want 1 (A, swept normally)", stats.Destroyed)
	}
	if stats.Deferred != 1 {
		t.Fatalf("stats.Deferred = %d, want 1 (C, severed mid-collection)", stats.Deferred)
	}
	wantLen(t, m, 0)
}

// A background sweep loop must cull a disjunction whose last strong Handle
// has gone away without requiring anyone to call Sweep directly.
func TestScenarioBackgroundCullOfExpiredWeakHandle(t *testing.T) {
	c := NewContainer()
	h := c.CreateNewDisjunction()
	w := h.Weak()
	h.Reset()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cfg := StrategyConfig{Strategy: []string{"manual"}, Period: 5 * time.Millisecond}
	done := make(chan struct{})
	go func() {
		c.RunBackground(ctx, cfg, nil)
		close(done)
	}()
	<-done

	if !w.Expired() {
		t.Fatal("weak handle not expired after strong handle reset")
	}
	if c.Len() != 0 {
		t.Fatalf("container len = %d, want 0 after background cull", c.Len())
	}
}

// A record that holds an arc to itself must still be reclaimed once
// unrooted: the self-reference keeps its reference count above zero
// forever, so only mark-and-sweep -- not refcounting -- can free it.
func TestScenarioSelfOwningRecordReclaim(t *testing.T) {
	m := NewModule()
	var s Slot
	destroyed := 0
	c := bindCell(m, &s, &destroyed)

	mustRepoint(t, m, &c.out, &s)
	m.Unroot(&s)

	stats := mustCollect(t, m)
	if stats.Destroyed != 1 {
		t.Fatalf("stats.Destroyed = %d, want 1", stats.Destroyed)
	}
	wantDestroyed(t, "cell", destroyed, 1)
	wantLen(t, m, 0)
}
