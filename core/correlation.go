// core/correlation.go
package core

import (
	"gonum.org/v1/gonum/stat"
)

// CorrelationMatrix holds pairwise Pearson correlations of the
// binarized loss signals for one discovery run. It is symmetric, has a
// unit diagonal, and is immutable once produced.
type CorrelationMatrix struct {
	cells []int
	index map[int]int
	vals  [][]float64
}

// Cells returns the cell IDs covered by the matrix, ascending.
func (m *CorrelationMatrix) Cells() []int {
	out := make([]int, len(m.cells))
	copy(out, m.cells)
	return out
}

// At returns the correlation between two cells. Unknown cell IDs
// report 0 rather than panicking; callers asking about cells that were
// not part of the run get the same answer as a degenerate pair.
func (m *CorrelationMatrix) At(a, b int) float64 {
	i, okA := m.index[a]
	j, okB := m.index[b]
	if !okA || !okB {
		return 0
	}
	return m.vals[i][j]
}

// newCorrelationMatrix computes pairwise Pearson correlations over the
// binarized loss indicators of every cell. A cell whose indicator is
// constant (typically: no loss ever observed) has an undefined
// correlation with everything; those entries are defined as 0 instead
// of NaN, and the cell is reported as degenerate so the clustering
// step can force it into a singleton group.
func newCorrelationMatrix(series map[int]*CellSeries) (*CorrelationMatrix, map[int]bool) {
	ids := sortedCellIDs(series)
	n := len(ids)

	index := make(map[int]int, n)
	signals := make([][]float64, n)
	degenerate := make(map[int]bool, n)

	for i, id := range ids {
		index[id] = i
		signals[i] = binarize(series[id].Loss)
		if isConstant(signals[i]) {
			degenerate[id] = true
		}
	}

	vals := make([][]float64, n)
	for i := range vals {
		vals[i] = make([]float64, n)
		vals[i][i] = 1.0
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := 0.0
			if !degenerate[ids[i]] && !degenerate[ids[j]] {
				r = stat.Correlation(signals[i], signals[j], nil)
			}
			vals[i][j] = r
			vals[j][i] = r
		}
	}

	return &CorrelationMatrix{cells: ids, index: index, vals: vals}, degenerate
}

// binarize maps loss counts to a 0/1 signal.
func binarize(loss []float64) []float64 {
	out := make([]float64, len(loss))
	for i, v := range loss {
		if v > 0 {
			out[i] = 1
		}
	}
	return out
}

// isConstant reports whether every sample equals the first one. A
// constant signal has zero variance, which makes Pearson correlation
// undefined.
func isConstant(signal []float64) bool {
	if len(signal) == 0 {
		return true
	}
	first := signal[0]
	for _, v := range signal[1:] {
		if v != first {
			return false
		}
	}
	return true
}
