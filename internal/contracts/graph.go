package contracts

import "time"

// RelationKind classifies a supply-chain relationship edge
type RelationKind string

const (
	RelationSupplier   RelationKind = "supplier"
	RelationCustomer   RelationKind = "customer"
	RelationCompetitor RelationKind = "competitor"
)

// IsValidRelationKind checks kind strings coming from storage or config
func IsValidRelationKind(s string) bool {
	switch RelationKind(s) {
	case RelationSupplier, RelationCustomer, RelationCompetitor:
		return true
	}
	return false
}

// RelationshipEdge is a directed edge in the static relationship graph
// ⭐ SSOT: 관계 그래프 엣지 교환 타입은 여기서만
// Source의 감성이 Target으로 전파됨
type RelationshipEdge struct {
	Source string       `json:"source"`
	Target string       `json:"target"`
	Kind   RelationKind `json:"kind"`
	Tier   int          `json:"tier"`   // 1: direct, 2: one hop removed
	Weight float64      `json:"weight"` // (0, 1]
}

// CandidateEdge is a per-date transient edge discovered by deep analysis.
// Candidates are never promoted to the static graph automatically; promotion
// is an explicit curation step.
type CandidateEdge struct {
	Mention      string       `json:"mention"` // raw entity name from the analyzer
	ResolvedCode string       `json:"resolved_code,omitempty"`
	Target       string       `json:"target"`
	Kind         RelationKind `json:"kind"`
	Weight       float64      `json:"weight"`
	DiscoveredAt time.Time    `json:"discovered_at"`
}

// EntityMention is an unresolved upstream/downstream name from the analyzer
type EntityMention struct {
	Name string       `json:"name"`
	Kind RelationKind `json:"kind"`
}
