package buffer

import (
	"testing"

	"tinydb/pkg/primitives"
)

func TestLRUReplacer_VictimOrder(t *testing.T) {
	r := NewLRUReplacer(7)

	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3)

	// Victims come back least-recently-unpinned first.
	expected := []primitives.FrameID{1, 2, 3}
	for _, want := range expected {
		got, ok := r.Victim()
		if !ok {
			t.Fatal("expected a victim")
		}
		if got != want {
			t.Errorf("expected victim %d, got %d", want, got)
		}
	}

	if _, ok := r.Victim(); ok {
		t.Error("empty replacer should have no victim")
	}
}

func TestLRUReplacer_UnpinRefreshesRecency(t *testing.T) {
	r := NewLRUReplacer(7)

	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(1) // 1 becomes most recent; 2 is now the LRU

	got, ok := r.Victim()
	if !ok || got != 2 {
		t.Errorf("expected victim 2, got %d (ok=%v)", got, ok)
	}
}

func TestLRUReplacer_PinRemovesFrame(t *testing.T) {
	r := NewLRUReplacer(7)

	r.Unpin(1)
	r.Unpin(2)
	r.Pin(1)

	if r.Size() != 1 {
		t.Errorf("expected size 1, got %d", r.Size())
	}

	got, ok := r.Victim()
	if !ok || got != 2 {
		t.Errorf("expected victim 2, got %d (ok=%v)", got, ok)
	}

	// Pinning an untracked frame is a no-op.
	r.Pin(99)
}

func TestLRUReplacer_CapacityOverflowIgnored(t *testing.T) {
	r := NewLRUReplacer(2)

	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3) // Beyond capacity, silently dropped

	if r.Size() != 2 {
		t.Errorf("expected size 2, got %d", r.Size())
	}

	got, _ := r.Victim()
	if got != 1 {
		t.Errorf("expected victim 1, got %d", got)
	}
}

func TestLRUReplacer_DoubleUnpinKeepsOneEntry(t *testing.T) {
	r := NewLRUReplacer(4)

	r.Unpin(5)
	r.Unpin(5)
	if r.Size() != 1 {
		t.Errorf("expected size 1 after double unpin, got %d", r.Size())
	}
}
