// core/signal.go
package core

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// CellSeries is one cell's telemetry aligned on the common slot index.
// Slot t of every field refers to the same time interval; the ingestion
// layer guarantees a dense index with no gaps or duplicates.
type CellSeries struct {
	CellID int

	// ThroughputGbps is the slot-level traffic rate.
	ThroughputGbps []float64

	// Loss is the effective packet-loss count per slot. The topology
	// engine only cares whether a slot saw any loss, not how much, so
	// the count is binarized before correlation.
	Loss []float64
}

// Len returns the number of slots in the series.
func (s *CellSeries) Len() int { return len(s.ThroughputGbps) }

// LossIndicator returns the binarized loss signal: true for every slot
// with a loss count greater than zero. Binarizing removes magnitude
// bias so a cell with many small losses compares fairly against one
// with fewer large losses.
func (s *CellSeries) LossIndicator() []bool {
	out := make([]bool, len(s.Loss))
	for i, v := range s.Loss {
		out[i] = v > 0
	}
	return out
}

// AggregatedLinkTraffic is the slot-level traffic of one shared link,
// obtained by summing the throughput of every cell in its group.
type AggregatedLinkTraffic struct {
	LinkID         int
	ThroughputGbps []float64
}

// Peak returns the maximum slot rate, or 0 for an empty series.
func (t AggregatedLinkTraffic) Peak() float64 {
	peak := 0.0
	for _, v := range t.ThroughputGbps {
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Mean returns the average slot rate, or 0 for an empty series.
func (t AggregatedLinkTraffic) Mean() float64 {
	if len(t.ThroughputGbps) == 0 {
		return 0
	}
	return stat.Mean(t.ThroughputGbps, nil)
}

// PAPR returns the peak-to-average ratio, or 0 when the mean is zero.
func (t AggregatedLinkTraffic) PAPR() float64 {
	mean := t.Mean()
	if mean == 0 {
		return 0
	}
	return t.Peak() / mean
}

// AggregateLinkTraffic sums per-cell throughput across a link group,
// slot by slot. Cells missing from the series map are skipped; the
// result is as long as the longest participating series so no traffic
// is silently dropped.
func AggregateLinkTraffic(group LinkGroup, series map[int]*CellSeries) AggregatedLinkTraffic {
	length := 0
	for _, id := range group.Cells {
		if s, ok := series[id]; ok && s.Len() > length {
			length = s.Len()
		}
	}

	total := make([]float64, length)
	for _, id := range group.Cells {
		s, ok := series[id]
		if !ok {
			continue
		}
		for t, v := range s.ThroughputGbps {
			total[t] += v
		}
	}

	return AggregatedLinkTraffic{LinkID: group.LinkID, ThroughputGbps: total}
}

// sortedCellIDs returns the map's keys in ascending order, the
// canonical iteration order for every deterministic computation.
func sortedCellIDs(series map[int]*CellSeries) []int {
	ids := make([]int, 0, len(series))
	for id := range series {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// checkAlignment verifies that every series has the same slot count.
// The reference length is taken from the smallest cell ID so the error
// message is stable across runs.
func checkAlignment(series map[int]*CellSeries) error {
	ids := sortedCellIDs(series)
	if len(ids) == 0 {
		return nil
	}

	want := series[ids[0]].Len()
	for _, id := range ids {
		s := series[id]
		if s.Len() != want {
			return &AlignmentError{CellID: id, Got: s.Len(), Want: want}
		}
		if len(s.Loss) != s.Len() {
			return &AlignmentError{CellID: id, Got: len(s.Loss), Want: s.Len()}
		}
	}
	return nil
}
