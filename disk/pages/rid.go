package pages

import "fmt"

// RID (record id) locates a single tuple inside the heap: the page it lives on and
// its slot number within that page's slot array. RID is a plain value type, total
// ordered and hashable, so it can be used directly as a map key or lock table key.
type RID struct {
	PageID  PageID
	SlotNum uint32
}

func NewRID(pageID PageID, slot uint32) RID {
	return RID{PageID: pageID, SlotNum: slot}
}

func (r RID) Less(other RID) bool {
	if r.PageID != other.PageID {
		return r.PageID < other.PageID
	}
	return r.SlotNum < other.SlotNum
}

func (r RID) String() string {
	return fmt.Sprintf("%d:%d", r.PageID, r.SlotNum)
}
