package freespace

import (
	"errors"
	"fmt"

	"tinydb/pkg/buffer"
	"tinydb/pkg/primitives"
	"tinydb/pkg/storage/disk"
	"tinydb/pkg/storage/page"
)

var (
	// ErrReservedPage is returned when deallocating page 0 or 1.
	ErrReservedPage = errors.New("cannot deallocate a reserved page")

	// ErrBitmapFull is returned when the single bitmap page cannot describe
	// any more page ids.
	ErrBitmapFull = errors.New("free-space bitmap full")
)

// maxTrackedPages is how many page ids one bitmap page can describe.
const maxTrackedPages = page.PageSize * 8

// Manager allocates and frees page ids using a bitmap on page 1, with the
// high-water mark kept in the header on page 0. One bit per page id: set
// means allocated. Bits 0 and 1 are always set.
//
// Every operation pins the relevant page through the buffer pool, mutates
// it, marks it dirty and unpins it.
type Manager struct {
	pool *buffer.PoolManager
}

// NewManager creates a free-space manager on top of the buffer pool.
func NewManager(pool *buffer.PoolManager) *Manager {
	return &Manager{pool: pool}
}

// Initialize prepares the header and bitmap pages. A database file that is
// absent, or whose page 0 carries no valid magic, is (re)initialized as a
// fresh database; a valid header is left untouched. Returns true when a
// fresh database was created.
func (m *Manager) Initialize() (bool, error) {
	frame, err := m.pool.FetchPage(primitives.HeaderPageID)
	if err == nil {
		header := NewHeader(frame.Data())
		if header.IsValid() {
			return false, m.pool.UnpinPage(primitives.HeaderPageID, false)
		}

		// Page 0 exists but was never stamped; treat the file as fresh.
		header.Initialize()
		if err := m.pool.UnpinPage(primitives.HeaderPageID, true); err != nil {
			return false, err
		}
		if err := m.pool.FlushPage(primitives.HeaderPageID); err != nil {
			return false, err
		}
		return true, m.createBitmap(true)
	}
	if !errors.Is(err, disk.ErrPageNotFound) {
		return false, fmt.Errorf("failed to read header page: %w", err)
	}

	return true, m.create()
}

// create materializes pages 0 and 1 for a brand new database file.
func (m *Manager) create() error {
	frame, err := m.pool.NewPage(primitives.HeaderPageID)
	if err != nil {
		return fmt.Errorf("failed to create header page: %w", err)
	}
	header := NewHeader(frame.Data())
	header.Initialize()
	if err := m.pool.UnpinPage(primitives.HeaderPageID, true); err != nil {
		return err
	}
	if err := m.pool.FlushPage(primitives.HeaderPageID); err != nil {
		return err
	}
	return m.createBitmap(false)
}

// createBitmap initializes the allocation bitmap on page 1 with the two
// reserved bits set. When the page may already exist on disk it is fetched
// and zeroed rather than materialized anew.
func (m *Manager) createBitmap(mayExist bool) error {
	var frame *page.Page
	var err error

	if mayExist {
		frame, err = m.pool.FetchPage(primitives.FreeSpaceMapPageID)
		if err != nil {
			if !errors.Is(err, disk.ErrPageNotFound) {
				return fmt.Errorf("failed to read free-space map page: %w", err)
			}
			frame, err = m.pool.NewPage(primitives.FreeSpaceMapPageID)
		} else {
			clear(frame.Data())
		}
	} else {
		frame, err = m.pool.NewPage(primitives.FreeSpaceMapPageID)
	}
	if err != nil {
		return fmt.Errorf("failed to create free-space map page: %w", err)
	}

	setBit(frame.Data(), primitives.HeaderPageID)
	setBit(frame.Data(), primitives.FreeSpaceMapPageID)
	if err := m.pool.UnpinPage(primitives.FreeSpaceMapPageID, true); err != nil {
		return err
	}
	return m.pool.FlushPage(primitives.FreeSpaceMapPageID)
}

// AllocatePage hands out a page id: a previously freed id when one exists,
// otherwise the high-water mark, which is then advanced.
func (m *Manager) AllocatePage() (primitives.PageID, error) {
	headerFrame, err := m.pool.FetchPage(primitives.HeaderPageID)
	if err != nil {
		return primitives.InvalidPageID, fmt.Errorf("failed to fetch header page: %w", err)
	}
	header := NewHeader(headerFrame.Data())

	bitmapFrame, err := m.pool.FetchPage(primitives.FreeSpaceMapPageID)
	if err != nil {
		m.pool.UnpinPage(primitives.HeaderPageID, false)
		return primitives.InvalidPageID, fmt.Errorf("failed to fetch free-space map: %w", err)
	}
	bitmap := bitmapFrame.Data()

	// Reuse a freed id below the high-water mark when possible.
	pageCount := header.PageCount()
	for pid := primitives.FirstDataPageID; uint32(pid) < pageCount; pid++ {
		if !testBit(bitmap, pid) {
			setBit(bitmap, pid)
			m.pool.UnpinPage(primitives.FreeSpaceMapPageID, true)
			m.pool.UnpinPage(primitives.HeaderPageID, false)
			return pid, nil
		}
	}

	if pageCount >= maxTrackedPages {
		m.pool.UnpinPage(primitives.FreeSpaceMapPageID, false)
		m.pool.UnpinPage(primitives.HeaderPageID, false)
		return primitives.InvalidPageID, ErrBitmapFull
	}

	pid := primitives.PageID(pageCount)
	setBit(bitmap, pid)
	header.SetPageCount(pageCount + 1)
	m.pool.UnpinPage(primitives.FreeSpaceMapPageID, true)
	m.pool.UnpinPage(primitives.HeaderPageID, true)
	return pid, nil
}

// DeallocatePage clears the bit for pid, making the id reusable. The two
// reserved pages are rejected.
func (m *Manager) DeallocatePage(pid primitives.PageID) error {
	if pid == primitives.HeaderPageID || pid == primitives.FreeSpaceMapPageID {
		return fmt.Errorf("%w: %d", ErrReservedPage, pid)
	}

	frame, err := m.pool.FetchPage(primitives.FreeSpaceMapPageID)
	if err != nil {
		return fmt.Errorf("failed to fetch free-space map: %w", err)
	}
	clearBit(frame.Data(), pid)
	return m.pool.UnpinPage(primitives.FreeSpaceMapPageID, true)
}

// IsAllocated reports whether pid's bit is set.
func (m *Manager) IsAllocated(pid primitives.PageID) (bool, error) {
	frame, err := m.pool.FetchPage(primitives.FreeSpaceMapPageID)
	if err != nil {
		return false, fmt.Errorf("failed to fetch free-space map: %w", err)
	}
	allocated := testBit(frame.Data(), pid)
	if err := m.pool.UnpinPage(primitives.FreeSpaceMapPageID, false); err != nil {
		return false, err
	}
	return allocated, nil
}

// PageCount returns the current high-water mark from the header.
func (m *Manager) PageCount() (uint32, error) {
	frame, err := m.pool.FetchPage(primitives.HeaderPageID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch header page: %w", err)
	}
	count := NewHeader(frame.Data()).PageCount()
	if err := m.pool.UnpinPage(primitives.HeaderPageID, false); err != nil {
		return 0, err
	}
	return count, nil
}

// CatalogRoot reads the catalog root page id from the header.
func (m *Manager) CatalogRoot() (primitives.PageID, error) {
	frame, err := m.pool.FetchPage(primitives.HeaderPageID)
	if err != nil {
		return primitives.InvalidPageID, fmt.Errorf("failed to fetch header page: %w", err)
	}
	root := NewHeader(frame.Data()).CatalogRoot()
	if err := m.pool.UnpinPage(primitives.HeaderPageID, false); err != nil {
		return primitives.InvalidPageID, err
	}
	return root, nil
}

// SetCatalogRoot persists the catalog root page id into the header.
func (m *Manager) SetCatalogRoot(pid primitives.PageID) error {
	frame, err := m.pool.FetchPage(primitives.HeaderPageID)
	if err != nil {
		return fmt.Errorf("failed to fetch header page: %w", err)
	}
	NewHeader(frame.Data()).SetCatalogRoot(pid)
	if err := m.pool.UnpinPage(primitives.HeaderPageID, true); err != nil {
		return err
	}
	return m.pool.FlushPage(primitives.HeaderPageID)
}

func setBit(bitmap []byte, pid primitives.PageID) {
	bitmap[pid/8] |= 1 << (uint(pid) % 8)
}

func clearBit(bitmap []byte, pid primitives.PageID) {
	bitmap[pid/8] &^= 1 << (uint(pid) % 8)
}

func testBit(bitmap []byte, pid primitives.PageID) bool {
	return bitmap[pid/8]&(1<<(uint(pid)%8)) != 0
}
