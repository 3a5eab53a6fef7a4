package heap

import (
	"errors"
	"fmt"

	"tinydb/pkg/buffer"
	"tinydb/pkg/primitives"
	"tinydb/pkg/storage/freespace"
	"tinydb/pkg/tuple"
)

// ErrNoFreeSpaceManager is returned when an insert would extend the heap
// but no free-space manager was supplied to allocate the page.
var ErrNoFreeSpaceManager = errors.New("table heap has no free-space manager, cannot extend")

// TableHeap is a singly linked chain of table pages rooted at a first page
// id recorded in the catalog. Records are addressed by (page, slot) ids that
// stay stable for the record's lifetime.
type TableHeap struct {
	pool        *buffer.PoolManager
	fsm         *freespace.Manager
	firstPageID primitives.PageID
}

// NewTableHeap opens a heap rooted at firstPageID. Pass InvalidPageID for an
// empty heap whose first page is created on first insert. fsm may be nil for
// read-only heaps; such a heap fails on any insert that would extend it.
func NewTableHeap(pool *buffer.PoolManager, fsm *freespace.Manager, firstPageID primitives.PageID) *TableHeap {
	return &TableHeap{pool: pool, fsm: fsm, firstPageID: firstPageID}
}

// FirstPageID returns the root page id of the chain, or InvalidPageID for a
// heap that has never held a record.
func (th *TableHeap) FirstPageID() primitives.PageID {
	return th.firstPageID
}

// Insert walks the chain and places the record on the first page with
// enough room, extending the chain with a freshly allocated page when no
// page fits.
func (th *TableHeap) Insert(record []byte) (tuple.RecordID, error) {
	if th.firstPageID == primitives.InvalidPageID {
		pid, err := th.extend()
		if err != nil {
			return tuple.InvalidRecordID, err
		}
		th.firstPageID = pid
	}

	pid := th.firstPageID
	for {
		frame, err := th.pool.FetchPage(pid)
		if err != nil {
			return tuple.InvalidRecordID, fmt.Errorf("failed to fetch heap page %d: %w", pid, err)
		}

		tp := NewTablePage(frame)
		slot, err := tp.Insert(record)
		if err == nil {
			if unpinErr := th.pool.UnpinPage(pid, true); unpinErr != nil {
				return tuple.InvalidRecordID, unpinErr
			}
			return tuple.RecordID{PageID: pid, Slot: slot}, nil
		}
		if !errors.Is(err, ErrNoSpace) {
			th.pool.UnpinPage(pid, false)
			return tuple.InvalidRecordID, err
		}

		next := tp.NextPageID()
		if next == primitives.InvalidPageID {
			// Last page is full; grow the chain and link it in while the
			// current page is still pinned.
			newPid, err := th.extend()
			if err != nil {
				th.pool.UnpinPage(pid, false)
				return tuple.InvalidRecordID, err
			}
			tp.SetNextPageID(newPid)
			if err := th.pool.UnpinPage(pid, true); err != nil {
				return tuple.InvalidRecordID, err
			}
			pid = newPid
			continue
		}

		if err := th.pool.UnpinPage(pid, false); err != nil {
			return tuple.InvalidRecordID, err
		}
		pid = next
	}
}

// Get reads the record at rid. The returned Record owns a copy of the
// bytes, taken before the page pin is released.
func (th *TableHeap) Get(rid tuple.RecordID) (tuple.Record, error) {
	frame, err := th.pool.FetchPage(rid.PageID)
	if err != nil {
		return tuple.Record{}, fmt.Errorf("failed to fetch page %d: %w", rid.PageID, err)
	}

	tp := NewTablePage(frame)
	view, err := tp.Get(rid.Slot)
	if err != nil {
		th.pool.UnpinPage(rid.PageID, false)
		return tuple.Record{}, err
	}

	data := make([]byte, len(view))
	copy(data, view)
	if err := th.pool.UnpinPage(rid.PageID, false); err != nil {
		return tuple.Record{}, err
	}
	return tuple.Record{RID: rid, Data: data}, nil
}

// Delete tombstones the record at rid.
func (th *TableHeap) Delete(rid tuple.RecordID) error {
	frame, err := th.pool.FetchPage(rid.PageID)
	if err != nil {
		return fmt.Errorf("failed to fetch page %d: %w", rid.PageID, err)
	}

	tp := NewTablePage(frame)
	if err := tp.Delete(rid.Slot); err != nil {
		th.pool.UnpinPage(rid.PageID, false)
		return err
	}
	return th.pool.UnpinPage(rid.PageID, true)
}

// Update rewrites the record at rid, in place when the page can hold the
// new bytes. When it cannot, the record is deleted and reinserted, which
// may move it to another page; the returned id is the record's new address.
func (th *TableHeap) Update(rid tuple.RecordID, record []byte) (tuple.RecordID, error) {
	frame, err := th.pool.FetchPage(rid.PageID)
	if err != nil {
		return tuple.InvalidRecordID, fmt.Errorf("failed to fetch page %d: %w", rid.PageID, err)
	}

	tp := NewTablePage(frame)
	err = tp.Update(rid.Slot, record)
	if err == nil {
		if unpinErr := th.pool.UnpinPage(rid.PageID, true); unpinErr != nil {
			return tuple.InvalidRecordID, unpinErr
		}
		return rid, nil
	}

	th.pool.UnpinPage(rid.PageID, false)
	if !errors.Is(err, ErrNoSpace) {
		return tuple.InvalidRecordID, err
	}

	if err := th.Delete(rid); err != nil {
		return tuple.InvalidRecordID, err
	}
	return th.Insert(record)
}

// Iterator returns a new iterator positioned before the first record.
func (th *TableHeap) Iterator() *Iterator {
	return NewIterator(th)
}

// extend allocates and materializes a fresh, empty table page. The caller
// links it into the chain.
func (th *TableHeap) extend() (primitives.PageID, error) {
	if th.fsm == nil {
		return primitives.InvalidPageID, ErrNoFreeSpaceManager
	}

	pid, err := th.fsm.AllocatePage()
	if err != nil {
		return primitives.InvalidPageID, fmt.Errorf("failed to allocate heap page: %w", err)
	}

	frame, err := th.pool.NewPage(pid)
	if err != nil {
		th.fsm.DeallocatePage(pid)
		return primitives.InvalidPageID, fmt.Errorf("failed to materialize heap page %d: %w", pid, err)
	}

	NewTablePage(frame).Init()
	if err := th.pool.UnpinPage(pid, true); err != nil {
		return primitives.InvalidPageID, err
	}
	return pid, nil
}
