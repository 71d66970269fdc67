// Package fare resolves stop positions along a route and prorates seat prices
// by the number of segments travelled.
package fare

import "strings"

// StopPath is the ordered sequence of boarding points of a route:
// origin, intermediate stops, destination. Entries are lower-cased.
type StopPath []string

// NewStopPath builds the full stop path of a route.
func NewStopPath(origin string, stops []string, destination string) StopPath {
	path := make(StopPath, 0, len(stops)+2)
	path = append(path, normalize(origin))
	for _, stop := range stops {
		path = append(path, normalize(stop))
	}
	return append(path, normalize(destination))
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Segments returns the number of hops between consecutive stops.
func (p StopPath) Segments() int {
	return len(p) - 1
}

// Locate returns the first position of from and the last position of to.
// A missing name yields -1.
func (p StopPath) Locate(from, to string) (fromIdx, toIdx int) {
	from, to = normalize(from), normalize(to)
	fromIdx, toIdx = -1, -1
	for i, stop := range p {
		if fromIdx == -1 && stop == from {
			fromIdx = i
		}
		if stop == to {
			toIdx = i
		}
	}
	return fromIdx, toIdx
}

// IsValidMatch reports whether a passenger can travel from one stop to the
// other on this path. The path is one-directional.
func (p StopPath) IsValidMatch(from, to string) bool {
	fromIdx, toIdx := p.Locate(from, to)
	return validIndices(fromIdx, toIdx)
}

func validIndices(fromIdx, toIdx int) bool {
	return fromIdx >= 0 && toIdx >= 0 && fromIdx < toIdx
}

// Names returns the path as a plain slice.
func (p StopPath) Names() []string {
	return append([]string(nil), p...)
}
