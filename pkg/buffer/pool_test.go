package buffer

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"golang.org/x/sync/errgroup"

	"tinydb/pkg/primitives"
	"tinydb/pkg/storage/disk"
	"tinydb/pkg/storage/page"
)

func newTestPool(t *testing.T, poolSize int) (*PoolManager, *disk.Manager) {
	t.Helper()
	dm, err := disk.NewManager(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { dm.Close() })
	return NewPoolManager(poolSize, dm), dm
}

// seedPage writes a recognizable page directly to disk.
func seedPage(t *testing.T, dm *disk.Manager, pid primitives.PageID, marker byte) {
	t.Helper()
	data := make([]byte, page.PageSize)
	for i := range data {
		data[i] = marker
	}
	if err := dm.WritePage(pid, data); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}
}

func TestPoolManager_FetchReadsFromDisk(t *testing.T) {
	pool, dm := newTestPool(t, 4)
	seedPage(t, dm, 0, 0x5A)

	frame, err := pool.FetchPage(0)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if frame.ID() != 0 {
		t.Errorf("expected page id 0, got %d", frame.ID())
	}
	if frame.PinCount() != 1 {
		t.Errorf("expected pin count 1, got %d", frame.PinCount())
	}
	if frame.Data()[100] != 0x5A {
		t.Error("frame does not hold the page's bytes")
	}

	if err := pool.UnpinPage(0, false); err != nil {
		t.Fatalf("UnpinPage failed: %v", err)
	}
}

func TestPoolManager_FetchMissingPage(t *testing.T) {
	pool, _ := newTestPool(t, 4)

	_, err := pool.FetchPage(9)
	if !errors.Is(err, disk.ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
}

func TestPoolManager_FetchCachedIncrementsPin(t *testing.T) {
	pool, dm := newTestPool(t, 4)
	seedPage(t, dm, 0, 1)

	frame1, err := pool.FetchPage(0)
	if err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	frame2, err := pool.FetchPage(0)
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if frame1 != frame2 {
		t.Error("same page must map to the same frame")
	}
	if frame1.PinCount() != 2 {
		t.Errorf("expected pin count 2, got %d", frame1.PinCount())
	}

	pool.UnpinPage(0, false)
	pool.UnpinPage(0, false)
}

func TestPoolManager_NewPageZeroesBuffer(t *testing.T) {
	pool, _ := newTestPool(t, 4)

	frame, err := pool.NewPage(7)
	if err != nil {
		t.Fatalf("NewPage failed: %v", err)
	}
	for _, b := range frame.Data() {
		if b != 0 {
			t.Fatal("new page buffer must be zeroed")
		}
	}
	if frame.PinCount() != 1 {
		t.Errorf("expected pin count 1, got %d", frame.PinCount())
	}
	pool.UnpinPage(7, true)
}

func TestPoolManager_UnpinErrors(t *testing.T) {
	pool, dm := newTestPool(t, 4)
	seedPage(t, dm, 0, 1)

	if err := pool.UnpinPage(0, false); !errors.Is(err, ErrPageNotCached) {
		t.Errorf("expected ErrPageNotCached, got %v", err)
	}

	if _, err := pool.FetchPage(0); err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if err := pool.UnpinPage(0, false); err != nil {
		t.Fatalf("UnpinPage failed: %v", err)
	}
	if err := pool.UnpinPage(0, false); err == nil {
		t.Error("unpinning an unpinned page should fail")
	}
}

func TestPoolManager_PoolExhausted(t *testing.T) {
	pool, dm := newTestPool(t, 2)
	for pid := primitives.PageID(0); pid < 3; pid++ {
		seedPage(t, dm, pid, byte(pid))
	}

	if _, err := pool.FetchPage(0); err != nil {
		t.Fatalf("fetch 0 failed: %v", err)
	}
	if _, err := pool.FetchPage(1); err != nil {
		t.Fatalf("fetch 1 failed: %v", err)
	}

	_, err := pool.FetchPage(2)
	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}

	// Releasing one pin frees a victim for the next fetch.
	if err := pool.UnpinPage(0, false); err != nil {
		t.Fatalf("UnpinPage failed: %v", err)
	}
	if _, err := pool.FetchPage(2); err != nil {
		t.Fatalf("fetch after release failed: %v", err)
	}
}

func TestPoolManager_EvictionWritesBackDirtyPage(t *testing.T) {
	pool, dm := newTestPool(t, 2)
	for pid := primitives.PageID(0); pid < 3; pid++ {
		seedPage(t, dm, pid, 0)
	}

	frame, err := pool.FetchPage(0)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	copy(frame.Data(), []byte("modified bytes"))
	if err := pool.UnpinPage(0, true); err != nil {
		t.Fatalf("unpin failed: %v", err)
	}

	// Fill the pool so that page 0 gets evicted.
	for pid := primitives.PageID(1); pid < 3; pid++ {
		if _, err := pool.FetchPage(pid); err != nil {
			t.Fatalf("fetch %d failed: %v", pid, err)
		}
		if err := pool.UnpinPage(pid, false); err != nil {
			t.Fatalf("unpin %d failed: %v", pid, err)
		}
	}

	// The dirty evictee must have reached disk.
	read := make([]byte, page.PageSize)
	if err := dm.ReadPage(0, read); err != nil {
		t.Fatalf("disk read failed: %v", err)
	}
	if !bytes.HasPrefix(read, []byte("modified bytes")) {
		t.Error("dirty page was not written back on eviction")
	}

	// Re-fetching reads the written-back image.
	frame, err = pool.FetchPage(0)
	if err != nil {
		t.Fatalf("re-fetch failed: %v", err)
	}
	if !bytes.HasPrefix(frame.Data(), []byte("modified bytes")) {
		t.Error("re-fetched page lost its modifications")
	}
	pool.UnpinPage(0, false)
}

func TestPoolManager_PinnedPageNeverEvicted(t *testing.T) {
	pool, dm := newTestPool(t, 2)
	for pid := primitives.PageID(0); pid < 4; pid++ {
		seedPage(t, dm, pid, byte(pid+1))
	}

	pinned, err := pool.FetchPage(0)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	// Cycle other pages through the remaining frame.
	for pid := primitives.PageID(1); pid < 4; pid++ {
		if _, err := pool.FetchPage(pid); err != nil {
			t.Fatalf("fetch %d failed: %v", pid, err)
		}
		if err := pool.UnpinPage(pid, false); err != nil {
			t.Fatalf("unpin %d failed: %v", pid, err)
		}
	}

	if pinned.ID() != 0 {
		t.Error("pinned frame was reused for another page")
	}
	if pinned.Data()[0] != 1 {
		t.Error("pinned frame's bytes were clobbered")
	}
	pool.UnpinPage(0, false)
}

func TestPoolManager_FlushPageClearsDirty(t *testing.T) {
	pool, dm := newTestPool(t, 4)
	seedPage(t, dm, 0, 0)

	frame, _ := pool.FetchPage(0)
	frame.Data()[0] = 0xEE
	pool.UnpinPage(0, true)

	if err := pool.FlushPage(0); err != nil {
		t.Fatalf("FlushPage failed: %v", err)
	}
	if frame.IsDirty() {
		t.Error("flush should clear the dirty flag")
	}

	read := make([]byte, page.PageSize)
	if err := dm.ReadPage(0, read); err != nil {
		t.Fatalf("disk read failed: %v", err)
	}
	if read[0] != 0xEE {
		t.Error("flushed bytes did not reach disk")
	}

	// Flushing an uncached page is a no-op.
	if err := pool.FlushPage(42); err != nil {
		t.Errorf("flush of uncached page should be a no-op, got %v", err)
	}
}

func TestPoolManager_DeletePage(t *testing.T) {
	pool, _ := newTestPool(t, 4)

	if _, err := pool.NewPage(5); err != nil {
		t.Fatalf("NewPage failed: %v", err)
	}

	if err := pool.DeletePage(5); !errors.Is(err, ErrPagePinned) {
		t.Fatalf("expected ErrPagePinned, got %v", err)
	}

	pool.UnpinPage(5, false)
	if err := pool.DeletePage(5); err != nil {
		t.Fatalf("DeletePage failed: %v", err)
	}

	// Deleting an unknown page is a no-op.
	if err := pool.DeletePage(5); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}

func TestPoolManager_ConcurrentFetchUnpin(t *testing.T) {
	const poolSize = 8
	pool, dm := newTestPool(t, poolSize)
	for pid := primitives.PageID(0); pid < 16; pid++ {
		seedPage(t, dm, pid, byte(pid))
	}

	var g errgroup.Group
	for worker := 0; worker < 4; worker++ {
		worker := worker
		g.Go(func() error {
			for i := 0; i < 200; i++ {
				pid := primitives.PageID((worker*7 + i) % 16)
				frame, err := pool.FetchPage(pid)
				if err != nil {
					if errors.Is(err, ErrPoolExhausted) {
						continue
					}
					return err
				}
				if frame.Data()[0] != byte(pid) {
					return fmt.Errorf("page %d holds wrong bytes", pid)
				}
				if err := pool.UnpinPage(pid, false); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent access failed: %v", err)
	}
}
