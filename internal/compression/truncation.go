package compression

import "fmt"

// TruncationReason indicates why items were dropped from a report
type TruncationReason string

const (
	// TruncBudget indicates truncation due to the byte budget
	TruncBudget TruncationReason = "budget-exceeded"

	// TruncNone indicates no truncation occurred
	TruncNone TruncationReason = ""
)

// TruncationInfo records how many report items the byte budget dropped
type TruncationInfo struct {
	Reason        TruncationReason `json:"reason"`
	OriginalCount int              `json:"originalCount"`
	ReturnedCount int              `json:"returnedCount"`
	DroppedCount  int              `json:"droppedCount"`
	// DroppedKinds counts the dropped items per kind
	DroppedKinds map[Kind]int `json:"droppedKinds,omitempty"`
}

// NewTruncationInfo creates a new TruncationInfo with calculated dropped count
func NewTruncationInfo(reason TruncationReason, original, returned int) *TruncationInfo {
	dropped := original - returned
	if dropped < 0 {
		dropped = 0
	}

	return &TruncationInfo{
		Reason:        reason,
		OriginalCount: original,
		ReturnedCount: returned,
		DroppedCount:  dropped,
	}
}

// WasTruncated returns true if any data was dropped
func (t *TruncationInfo) WasTruncated() bool {
	return t != nil && t.DroppedCount > 0
}

// IsEmpty returns true if no truncation info is present
func (t *TruncationInfo) IsEmpty() bool {
	return t == nil || t.Reason == TruncNone
}

// String returns a human-readable description of the truncation
func (t *TruncationInfo) String() string {
	if t == nil || !t.WasTruncated() {
		return "no truncation"
	}
	return fmt.Sprintf("%s: dropped %d of %d items", t.Reason, t.DroppedCount, t.OriginalCount)
}
