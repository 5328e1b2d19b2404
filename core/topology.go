// core/topology.go
package core

import "sort"

// LinkGroup is a set of cells judged to share one physical link.
// Groups partition the cell set: every cell belongs to exactly one
// group, and a cell with no correlated peer forms a singleton.
type LinkGroup struct {
	// LinkID is assigned at discovery time, ascending by the smallest
	// cell ID in each group, so repeated runs over the same data give
	// identical IDs.
	LinkID int

	// Cells holds the member cell IDs, ascending.
	Cells []int

	// Confidence is the mean pairwise correlation among the members,
	// 1.0 for singletons by convention.
	Confidence float64
}

// Topology is the output of one discovery run.
type Topology struct {
	Groups      []LinkGroup
	Correlation *CorrelationMatrix
}

// Group returns the group containing the given cell, or nil.
func (t *Topology) Group(cellID int) *LinkGroup {
	for i := range t.Groups {
		for _, id := range t.Groups[i].Cells {
			if id == cellID {
				return &t.Groups[i]
			}
		}
	}
	return nil
}

// DiscoverTopology reconstructs shared-link groupings from loss-event
// correlation. Cells whose binarized loss signals correlate at or
// above cfg.CorrelationThreshold are placed in the same group; because
// per-cell correlated sets can overlap without being identical, the
// sets are merged with a union-find pass so the result is a true
// partition. Degenerate cells (no loss ever observed) always form
// singleton groups regardless of the threshold.
//
// All series must be aligned on one slot index; a length mismatch is
// reported as an AlignmentError. Fewer than two cells is not an error:
// discovery degenerates to one singleton group per cell.
func DiscoverTopology(series map[int]*CellSeries, cfg Config) (*Topology, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkAlignment(series); err != nil {
		return nil, err
	}

	matrix, degenerate := newCorrelationMatrix(series)
	ids := matrix.Cells()

	uf := newUnionFind(ids)
	for _, a := range ids {
		if degenerate[a] {
			continue
		}
		for _, b := range ids {
			if a == b || degenerate[b] {
				continue
			}
			if matrix.At(a, b) >= cfg.CorrelationThreshold {
				uf.union(a, b)
			}
		}
	}

	// Collect components keyed by their representative.
	members := make(map[int][]int)
	for _, id := range ids {
		root := uf.find(id)
		members[root] = append(members[root], id)
	}

	groups := make([]LinkGroup, 0, len(members))
	for _, cells := range members {
		sort.Ints(cells)
		groups = append(groups, LinkGroup{
			Cells:      cells,
			Confidence: groupConfidence(cells, matrix),
		})
	}

	// Deterministic link IDs: ascending by smallest member cell.
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Cells[0] < groups[j].Cells[0]
	})
	for i := range groups {
		groups[i].LinkID = i + 1
	}

	return &Topology{Groups: groups, Correlation: matrix}, nil
}

// groupConfidence is the mean pairwise correlation among the group's
// members; singletons report 1.0.
func groupConfidence(cells []int, matrix *CorrelationMatrix) float64 {
	if len(cells) < 2 {
		return 1.0
	}
	sum, pairs := 0.0, 0
	for i := 0; i < len(cells); i++ {
		for j := i + 1; j < len(cells); j++ {
			sum += matrix.At(cells[i], cells[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// unionFind is a plain disjoint-set structure over cell IDs, used to
// merge overlapping correlated sets into connected components.
type unionFind struct {
	parent map[int]int
}

func newUnionFind(ids []int) *unionFind {
	parent := make(map[int]int, len(ids))
	for _, id := range ids {
		parent[id] = id
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(id int) int {
	for u.parent[id] != id {
		u.parent[id] = u.parent[u.parent[id]] // path halving
		id = u.parent[id]
	}
	return id
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Smaller representative wins, which keeps find() results stable
	// regardless of union order.
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
