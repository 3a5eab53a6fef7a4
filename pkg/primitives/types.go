package primitives

// PageID identifies a page within the database file. Pages 0 and 1 are
// reserved for the header and the free-space bitmap; data pages start at 2.
type PageID int32

// FrameID is an index into the buffer pool's frame array.
type FrameID int32

// TableID identifies a table in the catalog. IDs 0 and 1 are reserved for
// the system tables; user tables start at 2.
type TableID int32

// SlotNumber identifies a slot within a table page.
type SlotNumber uint32

// Sentinel values for invalid/unset identifiers
const (
	// InvalidPageID marks the absence of a page reference, e.g. the
	// NextPageId of the last page in a table heap chain.
	InvalidPageID PageID = -1

	// InvalidFrameID represents an invalid or unset frame index.
	InvalidFrameID FrameID = -1

	// InvalidTableID represents an invalid or unset table identifier.
	InvalidTableID TableID = -1
)

// Reserved page ids in every database file.
const (
	// HeaderPageID is the superblock: magic, page count, catalog root.
	HeaderPageID PageID = 0

	// FreeSpaceMapPageID holds the allocation bitmap.
	FreeSpaceMapPageID PageID = 1

	// FirstDataPageID is the first page id handed out to table data.
	FirstDataPageID PageID = 2
)
