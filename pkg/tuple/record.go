package tuple

import (
	"fmt"

	"tinydb/pkg/primitives"
)

// RecordID identifies a row by its page and slot. It stays valid for the
// row's lifetime on that page: slot indices never shift, deletes only
// tombstone the slot.
type RecordID struct {
	PageID primitives.PageID
	Slot   primitives.SlotNumber
}

// InvalidRecordID is the sentinel for an unset record id: InvalidPageID,
// slot 0. It differs from the zero RecordID, which names page 0, slot 0.
var InvalidRecordID = RecordID{PageID: primitives.InvalidPageID}

// String returns "(page, slot)" for diagnostics.
func (r RecordID) String() string {
	return fmt.Sprintf("(%d, %d)", r.PageID, r.Slot)
}

// Record is a row's serialized bytes together with its location. The heap
// layer copies bytes out of the pinned frame before unpinning, so a Record
// owns its data and outlives the pin that produced it.
type Record struct {
	RID  RecordID
	Data []byte
}
