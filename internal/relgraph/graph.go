package relgraph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/wonny/argus/backend/internal/contracts"
)

// Graph is the static relationship arena.
// ⭐ SSOT: 정적 관계 그래프 조회는 여기서만
//
// Built once at process start from the repository and never mutated
// afterwards, so concurrent reads need no locking. Per-date candidate
// edges live in Overlay, never here.
type Graph struct {
	byTarget map[string][]contracts.RelationshipEdge
	size     int
}

// New builds the arena from loaded edges, dropping invalid ones.
// Returns the graph and the number of edges dropped by validation.
func New(edges []contracts.RelationshipEdge) (*Graph, int) {
	g := &Graph{byTarget: make(map[string][]contracts.RelationshipEdge)}

	dropped := 0
	for _, e := range edges {
		if !validEdge(e) {
			dropped++
			continue
		}
		g.byTarget[e.Target] = append(g.byTarget[e.Target], e)
		g.size++
	}

	// Fixed lookup order regardless of load order
	for target := range g.byTarget {
		list := g.byTarget[target]
		sort.Slice(list, func(i, j int) bool {
			if list[i].Tier != list[j].Tier {
				return list[i].Tier < list[j].Tier
			}
			return list[i].Source < list[j].Source
		})
	}

	return g, dropped
}

func validEdge(e contracts.RelationshipEdge) bool {
	if e.Source == "" || e.Target == "" || e.Source == e.Target {
		return false
	}
	if !contracts.IsValidRelationKind(string(e.Kind)) {
		return false
	}
	if e.Tier != 1 && e.Tier != 2 {
		return false
	}
	return e.Weight > 0 && e.Weight <= 1
}

// EdgesInto returns the edges pointing at target, tier-1 first.
// The returned slice is shared; callers must not modify it.
func (g *Graph) EdgesInto(target string) []contracts.RelationshipEdge {
	return g.byTarget[target]
}

// Size returns the number of valid edges in the arena
func (g *Graph) Size() int {
	return g.size
}

// Targets returns all instrument codes with at least one inbound edge, sorted
func (g *Graph) Targets() []string {
	targets := make([]string, 0, len(g.byTarget))
	for t := range g.byTarget {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// Fingerprint returns a SHA-256 over the canonical edge list. Two graphs
// built from the same edges always produce the same fingerprint, so it
// detects storage drift against the loaded arena.
func (g *Graph) Fingerprint() string {
	h := sha256.New()
	for _, target := range g.Targets() {
		for _, e := range g.byTarget[target] {
			fmt.Fprintf(h, "%s|%s|%s|%d|%s\n",
				e.Target, e.Source, e.Kind, e.Tier,
				strconv.FormatFloat(e.Weight, 'g', -1, 64))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
