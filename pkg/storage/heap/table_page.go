// Package heap implements the table storage: slotted pages chained into a
// singly linked heap, addressed by (page, slot) record ids.
package heap

import (
	"encoding/binary"
	"errors"
	"fmt"

	"tinydb/pkg/primitives"
	"tinydb/pkg/storage/page"
)

var (
	// ErrRecordNotFound is returned for out-of-range slots and tombstones.
	ErrRecordNotFound = errors.New("record not found")

	// ErrNoSpace is returned when a page cannot fit a record.
	ErrNoSpace = errors.New("not enough space on page")
)

// Slotted page layout, little-endian:
//
//	offset 0  : NextPageId (i32)
//	offset 4  : NumRecords (u32)
//	offset 8  : FreeSpacePointer (u32, byte offset)
//	offset 12 : slot directory growing forward, 8 bytes per slot
//	          : ... free space ...
//	          : record bytes growing backward from PageSize
//
// Each slot is (offset u32, size u32); size 0 is a tombstone. Slot indices
// are stable once assigned: inserts append new slots, deletes only clear the
// size. The free-space pointer only ever decreases within a page's lifetime.
const (
	nextPageIDOffset   = 0
	numRecordsOffset   = 4
	freeSpacePtrOffset = 8
	slotsOffset        = 12
	slotSize           = 8
)

// TablePage is a typed overlay over a pinned frame's bytes. It owns no
// memory and must not outlive the pin on its frame.
type TablePage struct {
	data []byte
	id   primitives.PageID
}

// NewTablePage wraps a pinned frame as a table page.
func NewTablePage(frame *page.Page) *TablePage {
	return &TablePage{data: frame.Data(), id: frame.ID()}
}

// Init formats the page as an empty table page: no next page, no records,
// free space spanning everything past the header.
func (tp *TablePage) Init() {
	tp.SetNextPageID(primitives.InvalidPageID)
	tp.setNumRecords(0)
	tp.setFreeSpacePointer(page.PageSize)
}

// NextPageID returns the id of the next page in the heap chain, or
// InvalidPageID on the last page.
func (tp *TablePage) NextPageID() primitives.PageID {
	return primitives.PageID(int32(binary.LittleEndian.Uint32(tp.data[nextPageIDOffset:])))
}

// SetNextPageID links this page to its successor.
func (tp *TablePage) SetNextPageID(pid primitives.PageID) {
	binary.LittleEndian.PutUint32(tp.data[nextPageIDOffset:], uint32(pid))
}

// NumRecords returns the number of slots in the directory, tombstones
// included.
func (tp *TablePage) NumRecords() uint32 {
	return binary.LittleEndian.Uint32(tp.data[numRecordsOffset:])
}

func (tp *TablePage) setNumRecords(n uint32) {
	binary.LittleEndian.PutUint32(tp.data[numRecordsOffset:], n)
}

// FreeSpacePointer returns the byte offset where record data begins; bytes
// in [pointer, PageSize) are occupied by records.
func (tp *TablePage) FreeSpacePointer() uint32 {
	return binary.LittleEndian.Uint32(tp.data[freeSpacePtrOffset:])
}

func (tp *TablePage) setFreeSpacePointer(ptr uint32) {
	binary.LittleEndian.PutUint32(tp.data[freeSpacePtrOffset:], ptr)
}

// FreeSpaceRemaining returns the bytes between the end of the slot
// directory and the start of record data.
func (tp *TablePage) FreeSpaceRemaining() uint32 {
	used := slotsOffset + tp.NumRecords()*slotSize
	ptr := tp.FreeSpacePointer()
	if ptr < used {
		return 0
	}
	return ptr - used
}

// slot reads the directory entry at index i.
func (tp *TablePage) slot(i primitives.SlotNumber) (offset, size uint32) {
	base := slotsOffset + uint32(i)*slotSize
	return binary.LittleEndian.Uint32(tp.data[base:]), binary.LittleEndian.Uint32(tp.data[base+4:])
}

func (tp *TablePage) setSlot(i primitives.SlotNumber, offset, size uint32) {
	base := slotsOffset + uint32(i)*slotSize
	binary.LittleEndian.PutUint32(tp.data[base:], offset)
	binary.LittleEndian.PutUint32(tp.data[base+4:], size)
}

// HasSpaceFor reports whether a record of the given size fits, counting the
// new slot directory entry.
func (tp *TablePage) HasSpaceFor(recordSize uint32) bool {
	return tp.FreeSpaceRemaining() >= recordSize+slotSize
}

// Insert appends a new slot and copies the record bytes in front of the
// existing record data. Returns the assigned slot number.
func (tp *TablePage) Insert(record []byte) (primitives.SlotNumber, error) {
	size := uint32(len(record))
	if !tp.HasSpaceFor(size) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrNoSpace, size+slotSize, tp.FreeSpaceRemaining())
	}

	offset := tp.FreeSpacePointer() - size
	copy(tp.data[offset:], record)

	slotIdx := primitives.SlotNumber(tp.NumRecords())
	tp.setSlot(slotIdx, offset, size)
	tp.setFreeSpacePointer(offset)
	tp.setNumRecords(tp.NumRecords() + 1)
	return slotIdx, nil
}

// Get returns a view of the record bytes at the given slot. The view aliases
// the page buffer; callers must copy before the pin is released. Tombstoned
// and out-of-range slots report ErrRecordNotFound.
func (tp *TablePage) Get(slotIdx primitives.SlotNumber) ([]byte, error) {
	if uint32(slotIdx) >= tp.NumRecords() {
		return nil, fmt.Errorf("%w: slot %d out of range", ErrRecordNotFound, slotIdx)
	}

	offset, size := tp.slot(slotIdx)
	if size == 0 {
		return nil, fmt.Errorf("%w: slot %d is deleted", ErrRecordNotFound, slotIdx)
	}
	return tp.data[offset : offset+size], nil
}

// Delete tombstones the slot by clearing its size. The record bytes become
// dead space; the slot index is never reused.
func (tp *TablePage) Delete(slotIdx primitives.SlotNumber) error {
	if uint32(slotIdx) >= tp.NumRecords() {
		return fmt.Errorf("%w: slot %d out of range", ErrRecordNotFound, slotIdx)
	}

	offset, size := tp.slot(slotIdx)
	if size == 0 {
		return fmt.Errorf("%w: slot %d already deleted", ErrRecordNotFound, slotIdx)
	}
	tp.setSlot(slotIdx, offset, 0)
	return nil
}

// Update rewrites the record at the given slot. A record no larger than the
// current one is overwritten in place, shrinking the recorded size. A larger
// record is written into fresh space from the free-space pointer and the
// slot re-pointed, leaving the old bytes dead. Fails with ErrNoSpace when
// neither fits; the heap layer then falls back to delete+insert elsewhere.
func (tp *TablePage) Update(slotIdx primitives.SlotNumber, record []byte) error {
	if uint32(slotIdx) >= tp.NumRecords() {
		return fmt.Errorf("%w: slot %d out of range", ErrRecordNotFound, slotIdx)
	}

	offset, size := tp.slot(slotIdx)
	if size == 0 {
		return fmt.Errorf("%w: slot %d is deleted", ErrRecordNotFound, slotIdx)
	}

	newSize := uint32(len(record))
	if newSize <= size {
		copy(tp.data[offset:], record)
		tp.setSlot(slotIdx, offset, newSize)
		return nil
	}

	if tp.FreeSpaceRemaining() < newSize {
		return fmt.Errorf("%w: update needs %d bytes, have %d", ErrNoSpace, newSize, tp.FreeSpaceRemaining())
	}

	newOffset := tp.FreeSpacePointer() - newSize
	copy(tp.data[newOffset:], record)
	tp.setSlot(slotIdx, newOffset, newSize)
	tp.setFreeSpacePointer(newOffset)
	return nil
}
