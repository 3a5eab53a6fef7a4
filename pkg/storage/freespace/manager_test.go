package freespace

import (
	"errors"
	"path/filepath"
	"testing"

	"tinydb/pkg/buffer"
	"tinydb/pkg/primitives"
	"tinydb/pkg/storage/disk"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	m, _ := openManager(t, path)
	return m, path
}

func openManager(t *testing.T, path string) (*Manager, *buffer.PoolManager) {
	t.Helper()
	dm, err := disk.NewManager(path)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { dm.Close() })

	pool := buffer.NewPoolManager(8, dm)
	m := NewManager(pool)
	if _, err := m.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return m, pool
}

func TestManager_InitializeFreshDatabase(t *testing.T) {
	m, _ := newTestManager(t)

	count, err := m.PageCount()
	if err != nil {
		t.Fatalf("PageCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("fresh database should have page count 2, got %d", count)
	}

	for pid := primitives.PageID(0); pid < 2; pid++ {
		allocated, err := m.IsAllocated(pid)
		if err != nil {
			t.Fatalf("IsAllocated failed: %v", err)
		}
		if !allocated {
			t.Errorf("reserved page %d should be allocated", pid)
		}
	}
}

func TestManager_InitializeExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	m1, pool1 := openManager(t, path)
	pid, err := m1.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage failed: %v", err)
	}
	if pid != 2 {
		t.Fatalf("expected page 2, got %d", pid)
	}
	if err := pool1.FlushAll(); err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}

	// Reopen and verify the allocation survived.
	m2, _ := openManager(t, path)
	allocated, err := m2.IsAllocated(2)
	if err != nil {
		t.Fatalf("IsAllocated failed: %v", err)
	}
	if !allocated {
		t.Error("allocation must survive a restart")
	}

	count, _ := m2.PageCount()
	if count != 3 {
		t.Errorf("expected page count 3 after restart, got %d", count)
	}
}

func TestManager_AllocateSequential(t *testing.T) {
	m, _ := newTestManager(t)

	for want := primitives.PageID(2); want < 6; want++ {
		got, err := m.AllocatePage()
		if err != nil {
			t.Fatalf("AllocatePage failed: %v", err)
		}
		if got != want {
			t.Errorf("expected page %d, got %d", want, got)
		}
	}
}

func TestManager_FreedPageIsReused(t *testing.T) {
	m, _ := newTestManager(t)

	p2, _ := m.AllocatePage()
	p3, _ := m.AllocatePage()
	if p2 != 2 || p3 != 3 {
		t.Fatalf("expected pages 2 and 3, got %d and %d", p2, p3)
	}

	if err := m.DeallocatePage(p2); err != nil {
		t.Fatalf("DeallocatePage failed: %v", err)
	}

	reused, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage failed: %v", err)
	}
	if reused != p2 {
		t.Errorf("expected freed page %d to be reused, got %d", p2, reused)
	}

	next, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage failed: %v", err)
	}
	if next != 4 {
		t.Errorf("expected page 4 after reuse, got %d", next)
	}
}

func TestManager_AllocatedStaysAllocatedUntilFreed(t *testing.T) {
	m, _ := newTestManager(t)

	pid, _ := m.AllocatePage()
	allocated, _ := m.IsAllocated(pid)
	if !allocated {
		t.Fatalf("page %d should be allocated", pid)
	}

	m.DeallocatePage(pid)
	allocated, _ = m.IsAllocated(pid)
	if allocated {
		t.Errorf("page %d should be free after deallocation", pid)
	}
}

func TestManager_DeallocateReservedPagesRejected(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.DeallocatePage(0); !errors.Is(err, ErrReservedPage) {
		t.Errorf("expected ErrReservedPage for page 0, got %v", err)
	}
	if err := m.DeallocatePage(1); !errors.Is(err, ErrReservedPage) {
		t.Errorf("expected ErrReservedPage for page 1, got %v", err)
	}
}

func TestManager_CatalogRootRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	m1, pool1 := openManager(t, path)
	root, err := m1.CatalogRoot()
	if err != nil {
		t.Fatalf("CatalogRoot failed: %v", err)
	}
	if root != primitives.InvalidPageID {
		t.Errorf("fresh database should have no catalog root, got %d", root)
	}

	if err := m1.SetCatalogRoot(2); err != nil {
		t.Fatalf("SetCatalogRoot failed: %v", err)
	}
	if err := pool1.FlushAll(); err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}

	m2, _ := openManager(t, path)
	root, err = m2.CatalogRoot()
	if err != nil {
		t.Fatalf("CatalogRoot failed: %v", err)
	}
	if root != 2 {
		t.Errorf("expected catalog root 2 after restart, got %d", root)
	}
}

func TestManager_UnstampedFileReinitializedAsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// A file with a zeroed first page has no magic; opening it starts a
	// fresh database rather than trusting the contents.
	dm, err := disk.NewManager(path)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := dm.WritePage(0, make([]byte, 4096)); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}
	dm.Close()

	m, _ := openManager(t, path)
	count, err := m.PageCount()
	if err != nil {
		t.Fatalf("PageCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("reinitialized database should have page count 2, got %d", count)
	}

	pid, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage failed: %v", err)
	}
	if pid != 2 {
		t.Errorf("expected first allocation to be page 2, got %d", pid)
	}
}

func TestHeader_MagicValidation(t *testing.T) {
	data := make([]byte, 4096)
	h := NewHeader(data)

	if h.IsValid() {
		t.Error("zeroed header must not validate")
	}

	h.Initialize()
	if !h.IsValid() {
		t.Error("initialized header must validate")
	}
	if h.PageCount() != 2 {
		t.Errorf("expected page count 2, got %d", h.PageCount())
	}
	if h.FreeSpaceMapRoot() != primitives.FreeSpaceMapPageID {
		t.Errorf("expected fsm root 1, got %d", h.FreeSpaceMapRoot())
	}
	if h.CatalogRoot() != primitives.InvalidPageID {
		t.Errorf("expected invalid catalog root, got %d", h.CatalogRoot())
	}
}
