// Package freespace owns the two reserved pages of the database file: the
// header superblock on page 0 and the allocation bitmap on page 1.
package freespace

import (
	"bytes"
	"encoding/binary"

	"tinydb/pkg/primitives"
)

// Magic identifies an initialized database file. A valid magic on page 0 is
// the definition of "this file is a tinydb database".
const Magic = "TINYDB01"

// Header page layout, little-endian:
//
//	offset 0  : magic bytes "TINYDB01"
//	offset 8  : page count (u32, high-water mark)
//	offset 12 : catalog tables root page id (i32)
//	offset 16 : free-space map root page id (i32, always 1)
//	remainder : zero padding to PageSize
const (
	magicOffset       = 0
	pageCountOffset   = 8
	catalogRootOffset = 12
	fsmRootOffset     = 16
)

// Header is a typed overlay over the raw bytes of page 0. It owns no memory;
// the caller keeps the underlying frame pinned for the overlay's lifetime.
type Header struct {
	data []byte
}

// NewHeader wraps the given page bytes.
func NewHeader(data []byte) *Header {
	return &Header{data: data}
}

// IsValid reports whether the magic bytes identify an initialized database.
func (h *Header) IsValid() bool {
	return bytes.Equal(h.data[magicOffset:magicOffset+len(Magic)], []byte(Magic))
}

// Initialize stamps the magic and resets the counters for a fresh database.
func (h *Header) Initialize() {
	copy(h.data[magicOffset:], Magic)
	h.SetPageCount(uint32(primitives.FirstDataPageID))
	h.SetCatalogRoot(primitives.InvalidPageID)
	h.SetFreeSpaceMapRoot(primitives.FreeSpaceMapPageID)
}

// PageCount returns the high-water mark: the largest page id ever allocated
// plus one.
func (h *Header) PageCount() uint32 {
	return binary.LittleEndian.Uint32(h.data[pageCountOffset:])
}

// SetPageCount updates the high-water mark.
func (h *Header) SetPageCount(count uint32) {
	binary.LittleEndian.PutUint32(h.data[pageCountOffset:], count)
}

// CatalogRoot returns the first page id of the __catalog_tables heap.
func (h *Header) CatalogRoot() primitives.PageID {
	return primitives.PageID(int32(binary.LittleEndian.Uint32(h.data[catalogRootOffset:])))
}

// SetCatalogRoot records the first page id of the __catalog_tables heap.
func (h *Header) SetCatalogRoot(pid primitives.PageID) {
	binary.LittleEndian.PutUint32(h.data[catalogRootOffset:], uint32(pid))
}

// FreeSpaceMapRoot returns the page id of the allocation bitmap.
func (h *Header) FreeSpaceMapRoot() primitives.PageID {
	return primitives.PageID(int32(binary.LittleEndian.Uint32(h.data[fsmRootOffset:])))
}

// SetFreeSpaceMapRoot records the page id of the allocation bitmap.
func (h *Header) SetFreeSpaceMapRoot(pid primitives.PageID) {
	binary.LittleEndian.PutUint32(h.data[fsmRootOffset:], uint32(pid))
}
