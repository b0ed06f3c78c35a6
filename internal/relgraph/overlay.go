package relgraph

import (
	"sort"

	"github.com/wonny/argus/backend/internal/contracts"
)

// Overlay holds the candidate edges discovered for a single decision date.
// 당일 심층 분석이 발견한 임시 엣지. 실행 후 폐기되며, 정적 그래프
// 승격은 별도 큐레이션 단계에서만 한다.
//
// Built by one goroutine after the sentiment stage; read-only afterwards.
type Overlay struct {
	byTarget map[string][]contracts.CandidateEdge
	size     int
}

// NewOverlay creates an empty candidate overlay
func NewOverlay() *Overlay {
	return &Overlay{byTarget: make(map[string][]contracts.CandidateEdge)}
}

// Add records a resolved candidate edge
func (o *Overlay) Add(edge contracts.CandidateEdge) {
	o.byTarget[edge.Target] = append(o.byTarget[edge.Target], edge)
	o.size++
}

// EdgesInto returns candidate edges pointing at target, in insertion order.
// The returned slice is shared; callers must not modify it.
func (o *Overlay) EdgesInto(target string) []contracts.CandidateEdge {
	return o.byTarget[target]
}

// Size returns the number of candidate edges in the overlay
func (o *Overlay) Size() int {
	return o.size
}

// All returns every candidate edge sorted by target, then source code.
// Used when persisting the day's discoveries for later curation.
func (o *Overlay) All() []contracts.CandidateEdge {
	edges := make([]contracts.CandidateEdge, 0, o.size)
	for _, list := range o.byTarget {
		edges = append(edges, list...)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		if edges[i].ResolvedCode != edges[j].ResolvedCode {
			return edges[i].ResolvedCode < edges[j].ResolvedCode
		}
		return edges[i].Mention < edges[j].Mention
	})
	return edges
}
