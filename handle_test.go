package disjoint

import "testing"

func checkModuleEmpty(t *testing.T, m *Module) {
	t.Helper()
	wantLen(t, m, 0)
	wantRoots(t, m, 0)
}

func TestHandleLifecycleTearsDownEmptyModule(t *testing.T) {
	h := NewHandle()
	m := h.Module()
	if m == nil {
		t.Fatal("new handle has no module")
	}
	h.Reset()
	checkModuleEmpty(t, m)
}

func TestHandleCloneKeepsModuleAliveUntilLastDrop(t *testing.T) {
	h := NewHandle()
	h2 := h.Clone()

	h.Reset()
	// h2 still holds a strong reference; the module must not have run its
	// final collection yet, so creating new state on it must still succeed
	// without panicking in teardown.
	m := h2.Module()
	var s Slot
	m.CreateNull(&s)
	m.Destroy(&s)

	h2.Reset()
}

func TestWeakHandleLockAndExpire(t *testing.T) {
	h := NewHandle()
	w := h.Weak()

	t.Run("not expired while strong handle alive", func(t *testing.T) {
		if w.Expired() {
			t.Fatal("weak handle expired while strong handle alive")
		}
	})

	t.Run("lock succeeds while strong handle alive", func(t *testing.T) {
		locked, ok := w.Lock()
		if !ok {
			t.Fatal("lock failed while strong handle alive")
		}
		if locked.Module() != h.Module() {
			t.Fatal("locked handle aims at the wrong module")
		}
		locked.Reset()
	})

	h.Reset()

	t.Run("expired after last strong handle resets", func(t *testing.T) {
		if !w.Expired() {
			t.Fatal("weak handle not expired after last strong handle reset")
		}
	})

	t.Run("lock fails once expired", func(t *testing.T) {
		if _, ok := w.Lock(); ok {
			t.Fatal("lock succeeded on an expired weak handle")
		}
	})
}

func TestWeakHandleResetWaitsForDestroyedFlag(t *testing.T) {
	h := NewHandle()
	w := h.Weak()
	h.Reset()
	// The strong side has already run its final collection and published
	// destroyedFlag by the time Reset returns, so this must not hang.
	w.Reset()
}
