// core/errors.go
package core

import "fmt"

// AlignmentError reports cell series that do not share a common time
// index. The ingestion layer is expected to hand the engines dense,
// equal-length series; anything else is a fatal input defect.
type AlignmentError struct {
	CellID int
	Got    int
	Want   int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("cell %d series has %d slots, want %d (series must share one time index)", e.CellID, e.Got, e.Want)
}

// DegenerateTrafficError reports a link whose aggregate traffic has a
// zero mean. PAPR is undefined for such a link and it cannot be
// optimized; callers report it instead of defaulting.
type DegenerateTrafficError struct {
	LinkID int
}

func (e *DegenerateTrafficError) Error() string {
	return fmt.Sprintf("link %d carries no traffic, PAPR undefined", e.LinkID)
}

// NoFeasibleCapacityError reports that even provisioning the link at
// its traffic peak does not meet the loss target. The caller must treat
// this as "upgrade required"; the optimizer never substitutes a
// capacity that violates the constraint.
type NoFeasibleCapacityError struct {
	LinkID    int
	PeakGbps  float64
	LossRatio float64
	LossLimit float64
}

func (e *NoFeasibleCapacityError) Error() string {
	return fmt.Sprintf("link %d: loss ratio %.4f at peak capacity %.2f Gbps exceeds limit %.4f", e.LinkID, e.LossRatio, e.PeakGbps, e.LossLimit)
}
