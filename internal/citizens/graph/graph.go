// Package graph holds the pure operations on the relatives graph of one
// import. The graph is an arena: nodes are citizen ids and edges are plain id
// values, so symmetry is always checkable with two map lookups.
package graph

import (
	"fmt"
	"slices"

	id "census/pkg/domain"
	"census/pkg/platform/dedupe"
)

// Adjacency maps every citizen of an import to its relative ids.
type Adjacency map[id.CitizenID][]id.CitizenID

// AsymmetryError reports the first edge without a matching back-edge.
type AsymmetryError struct {
	Citizen  id.CitizenID
	Relative id.CitizenID
	// Missing is set when Relative is not a citizen of the import at all.
	Missing bool
}

func (e *AsymmetryError) Error() string {
	if e.Missing {
		return fmt.Sprintf("relatives must be mutual: citizen %d lists unknown citizen %d", e.Citizen, e.Relative)
	}
	return fmt.Sprintf("relatives must be mutual: citizen %d lists %d but not vice versa", e.Citizen, e.Relative)
}

// CheckMutual verifies that for every edge (c, r) the node r exists and lists
// c. Citizens are visited in ascending id order so the reported edge is
// deterministic.
func CheckMutual(adj Adjacency) error {
	sets := make(map[id.CitizenID]map[id.CitizenID]struct{}, len(adj))
	for c, relatives := range adj {
		sets[c] = dedupe.Set(relatives)
	}

	citizens := make([]id.CitizenID, 0, len(adj))
	for c := range adj {
		citizens = append(citizens, c)
	}
	slices.Sort(citizens)

	for _, c := range citizens {
		for _, r := range adj[c] {
			back, ok := sets[r]
			if !ok {
				return &AsymmetryError{Citizen: c, Relative: r, Missing: true}
			}
			if _, ok := back[c]; !ok {
				return &AsymmetryError{Citizen: c, Relative: r}
			}
		}
	}
	return nil
}

// Diff computes the edge delta between two relative lists using set
// semantics. added keeps the order of next, removed keeps the order of prev;
// neither contains duplicates.
func Diff(prev, next []id.CitizenID) (added, removed []id.CitizenID) {
	prevSet := dedupe.Set(prev)
	nextSet := dedupe.Set(next)
	for _, r := range dedupe.Stable(next) {
		if _, ok := prevSet[r]; !ok {
			added = append(added, r)
		}
	}
	for _, r := range dedupe.Stable(prev) {
		if _, ok := nextSet[r]; !ok {
			removed = append(removed, r)
		}
	}
	return added, removed
}

// Link adds c to relatives unless it is already present. The list is
// conceptually a set, so linking twice is a no-op.
func Link(relatives []id.CitizenID, c id.CitizenID) []id.CitizenID {
	if slices.Contains(relatives, c) {
		return relatives
	}
	return append(relatives, c)
}

// Unlink removes every occurrence of c from relatives.
func Unlink(relatives []id.CitizenID, c id.CitizenID) []id.CitizenID {
	return slices.DeleteFunc(relatives, func(r id.CitizenID) bool { return r == c })
}

// Without returns ids minus self. Patches never treat the patched citizen as
// its own neighbor: its self edge is carried by the replaced relatives list.
func Without(ids []id.CitizenID, self id.CitizenID) []id.CitizenID {
	out := make([]id.CitizenID, 0, len(ids))
	for _, r := range ids {
		if r != self {
			out = append(out, r)
		}
	}
	return out
}

// Involved lists every citizen whose document a relatives patch may touch:
// the target, its current relatives and its new relatives.
func Involved(target id.CitizenID, prev, next []id.CitizenID) []id.CitizenID {
	all := make([]id.CitizenID, 0, 1+len(prev)+len(next))
	all = append(all, target)
	all = append(all, prev...)
	all = append(all, next...)
	all = dedupe.Stable(all)
	slices.Sort(all)
	return all
}
