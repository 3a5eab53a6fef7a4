package heap

import (
	"errors"
	"fmt"

	"tinydb/pkg/primitives"
	"tinydb/pkg/tuple"
)

// Iterator walks a table heap in (page, slot) order, skipping tombstones and
// following NextPageId links. It is a lazy single-pass sequence: each step
// fetches and unpins the current page, so no pin is held between calls.
//
// Mutating the heap during iteration is safe but unspecified: records
// yielded so far keep valid ids; records inserted mid-scan may or may not be
// seen. Termination is guaranteed because chains only ever append fresh page
// ids and so form no cycles.
type Iterator struct {
	heap     *TableHeap
	pageID   primitives.PageID
	nextSlot primitives.SlotNumber
	current  *tuple.Record
	err      error
	done     bool
}

// NewIterator creates an iterator positioned before the first record. Call
// Next to advance.
func NewIterator(heap *TableHeap) *Iterator {
	return &Iterator{
		heap:   heap,
		pageID: heap.FirstPageID(),
	}
}

// Next advances to the next live record. It returns false when the heap is
// exhausted or an I/O error occurs; Err distinguishes the two.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}

	rec, err := it.advance()
	if err != nil {
		it.err = err
		it.done = true
		it.current = nil
		return false
	}
	if rec == nil {
		it.done = true
		it.current = nil
		return false
	}

	it.current = rec
	return true
}

// Record returns the record the iterator is positioned on. Only valid after
// a Next call that returned true.
func (it *Iterator) Record() tuple.Record {
	return *it.current
}

// Err returns the first I/O error the iterator hit, if any.
func (it *Iterator) Err() error {
	return it.err
}

// advance scans forward from the iterator's cursor to the next live slot,
// hopping across pages as needed. Returns nil with no error at end of heap.
func (it *Iterator) advance() (*tuple.Record, error) {
	for it.pageID != primitives.InvalidPageID {
		frame, err := it.heap.pool.FetchPage(it.pageID)
		if err != nil {
			return nil, fmt.Errorf("iterator failed to fetch page %d: %w", it.pageID, err)
		}

		tp := NewTablePage(frame)
		numRecords := tp.NumRecords()
		for slot := it.nextSlot; uint32(slot) < numRecords; slot++ {
			view, err := tp.Get(slot)
			if err != nil {
				if errors.Is(err, ErrRecordNotFound) {
					continue // Tombstone
				}
				it.heap.pool.UnpinPage(it.pageID, false)
				return nil, err
			}

			data := make([]byte, len(view))
			copy(data, view)
			rec := &tuple.Record{
				RID:  tuple.RecordID{PageID: it.pageID, Slot: slot},
				Data: data,
			}
			it.nextSlot = slot + 1
			if err := it.heap.pool.UnpinPage(it.pageID, false); err != nil {
				return nil, err
			}
			return rec, nil
		}

		next := tp.NextPageID()
		if err := it.heap.pool.UnpinPage(it.pageID, false); err != nil {
			return nil, err
		}
		it.pageID = next
		it.nextSlot = 0
	}

	return nil, nil
}
