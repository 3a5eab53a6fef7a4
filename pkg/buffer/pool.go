package buffer

import (
	"errors"
	"fmt"
	"sync"

	"tinydb/pkg/logging"
	"tinydb/pkg/primitives"
	"tinydb/pkg/storage/disk"
	"tinydb/pkg/storage/page"
)

var (
	// ErrPoolExhausted is returned when every frame is pinned and no victim
	// can be found. Callers should release pins and retry.
	ErrPoolExhausted = errors.New("buffer pool exhausted: all frames pinned")

	// ErrPageNotCached is returned by UnpinPage for a page the pool does not
	// currently hold.
	ErrPageNotCached = errors.New("page not in buffer pool")

	// ErrPagePinned is returned by DeletePage when the page still has
	// outstanding pins.
	ErrPagePinned = errors.New("page is pinned")
)

// PoolManager caches a bounded number of pages in memory on behalf of the
// storage layer. It maintains a page table mapping page ids to frames, a
// free list of frames holding no page, and an LRU replacer over the unpinned
// frames. A single mutex guards all of that state.
//
// Invariants:
//   - a frame with pin count > 0 is never in the replacer
//   - a frame on the free list holds no page (id is invalid)
//   - a page id maps to at most one frame
//   - a dirty frame is written back before its frame is reused
type PoolManager struct {
	frames    []*page.Page
	pageTable map[primitives.PageID]primitives.FrameID
	freeList  []primitives.FrameID
	replacer  *LRUReplacer
	disk      *disk.Manager
	mutex     sync.Mutex
}

// NewPoolManager creates a pool of poolSize frames backed by the given disk
// manager.
func NewPoolManager(poolSize int, dm *disk.Manager) *PoolManager {
	frames := make([]*page.Page, poolSize)
	freeList := make([]primitives.FrameID, 0, poolSize)
	for i := range frames {
		frames[i] = page.NewPage()
		freeList = append(freeList, primitives.FrameID(i))
	}

	return &PoolManager{
		frames:    frames,
		pageTable: make(map[primitives.PageID]primitives.FrameID),
		freeList:  freeList,
		replacer:  NewLRUReplacer(poolSize),
		disk:      dm,
	}
}

// FetchPage returns the frame holding pid, reading it from disk if needed.
// The returned frame is pinned; the caller must pair this call with exactly
// one UnpinPage. Returns disk.ErrPageNotFound when the page does not exist
// on disk, or ErrPoolExhausted when no frame can be freed.
func (bp *PoolManager) FetchPage(pid primitives.PageID) (*page.Page, error) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	if fid, exists := bp.pageTable[pid]; exists {
		frame := bp.frames[fid]
		frame.IncPin()
		bp.replacer.Pin(fid)
		return frame, nil
	}

	fid, err := bp.acquireFrame()
	if err != nil {
		return nil, err
	}

	frame := bp.frames[fid]
	if err := bp.disk.ReadPage(pid, frame.Data()); err != nil {
		// Hand the frame back; absence of the page is not fatal.
		bp.freeList = append(bp.freeList, fid)
		return nil, err
	}

	frame.SetID(pid)
	frame.IncPin()
	frame.SetDirty(false)
	bp.pageTable[pid] = fid
	return frame, nil
}

// NewPage installs a freshly allocated page id into a frame with zeroed
// contents. The free-space manager hands out the id; the pool only
// materializes it. The returned frame is pinned.
func (bp *PoolManager) NewPage(pid primitives.PageID) (*page.Page, error) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	fid, err := bp.acquireFrame()
	if err != nil {
		return nil, err
	}

	frame := bp.frames[fid]
	frame.Reset()
	frame.SetID(pid)
	frame.IncPin()
	bp.pageTable[pid] = fid
	return frame, nil
}

// UnpinPage drops one pin on pid. If dirty is true the frame is marked dirty
// and stays dirty until flushed. When the pin count reaches zero the frame
// becomes evictable.
func (bp *PoolManager) UnpinPage(pid primitives.PageID, dirty bool) error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	fid, exists := bp.pageTable[pid]
	if !exists {
		return fmt.Errorf("%w: page %d", ErrPageNotCached, pid)
	}

	frame := bp.frames[fid]
	if frame.PinCount() <= 0 {
		return fmt.Errorf("page %d is not pinned", pid)
	}

	if dirty {
		frame.SetDirty(true)
	}

	frame.DecPin()
	if frame.PinCount() == 0 {
		bp.replacer.Unpin(fid)
	}
	return nil
}

// FlushPage writes pid's bytes to disk and clears the dirty flag. Flushing a
// page the pool does not hold is a no-op.
func (bp *PoolManager) FlushPage(pid primitives.PageID) error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()
	return bp.flushLocked(pid)
}

// FlushAll writes every cached page back to disk. Invoked on teardown; there
// is no background flusher.
func (bp *PoolManager) FlushAll() error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	for pid := range bp.pageTable {
		if err := bp.flushLocked(pid); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage evicts pid from the pool and returns its frame to the free
// list. Fails with ErrPagePinned while pins are outstanding. Deallocation on
// disk is the free-space manager's job, not the pool's.
func (bp *PoolManager) DeletePage(pid primitives.PageID) error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	fid, exists := bp.pageTable[pid]
	if !exists {
		return nil
	}

	frame := bp.frames[fid]
	if frame.PinCount() > 0 {
		return fmt.Errorf("%w: page %d has %d pins", ErrPagePinned, pid, frame.PinCount())
	}

	bp.replacer.Pin(fid)
	delete(bp.pageTable, pid)
	frame.Reset()
	bp.freeList = append(bp.freeList, fid)
	return nil
}

// PoolSize returns the number of frames in the pool.
func (bp *PoolManager) PoolSize() int {
	return len(bp.frames)
}

// acquireFrame obtains a frame from the free list, or evicts the LRU victim.
// The evicted page is written back first when dirty. Must be called with the
// pool mutex held.
func (bp *PoolManager) acquireFrame() (primitives.FrameID, error) {
	if len(bp.freeList) > 0 {
		fid := bp.freeList[len(bp.freeList)-1]
		bp.freeList = bp.freeList[:len(bp.freeList)-1]
		return fid, nil
	}

	fid, ok := bp.replacer.Victim()
	if !ok {
		return primitives.InvalidFrameID, ErrPoolExhausted
	}

	victim := bp.frames[fid]
	if victim.ID() != primitives.InvalidPageID {
		if victim.IsDirty() {
			if err := bp.disk.WritePage(victim.ID(), victim.Data()); err != nil {
				return primitives.InvalidFrameID, fmt.Errorf("failed to write back evicted page %d: %w", victim.ID(), err)
			}
			logging.WithPage(int(victim.ID())).Debug("dirty page written back on eviction")
		}
		delete(bp.pageTable, victim.ID())
	}

	victim.Reset()
	return fid, nil
}

// flushLocked writes one page and clears its dirty flag. Must be called with
// the pool mutex held.
func (bp *PoolManager) flushLocked(pid primitives.PageID) error {
	fid, exists := bp.pageTable[pid]
	if !exists {
		return nil
	}

	frame := bp.frames[fid]
	if err := bp.disk.WritePage(pid, frame.Data()); err != nil {
		return fmt.Errorf("failed to flush page %d: %w", pid, err)
	}
	frame.SetDirty(false)
	return nil
}
