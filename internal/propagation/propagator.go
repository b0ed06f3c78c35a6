package propagation

import (
	"sort"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/relgraph"
	"github.com/wonny/argus/backend/internal/strategyconfig"
	"github.com/wonny/argus/backend/pkg/logger"
)

// Propagator enriches direct sentiment with single-hop graph neighbors.
// ⭐ SSOT: 감성 전파 계산은 여기서만
//
// One hop per date: a neighbor's DIRECT composite flows along an edge,
// never an already-enriched value, so influence cannot chain through the
// graph within a single day.
type Propagator struct {
	cfg    strategyconfig.Propagation
	graph  *relgraph.Graph
	logger *logger.Logger
}

// NewPropagator creates a propagator over the static arena
func NewPropagator(cfg strategyconfig.Propagation, graph *relgraph.Graph, log *logger.Logger) *Propagator {
	return &Propagator{cfg: cfg, graph: graph, logger: log}
}

// Enrich computes the enriched sentiment for every target code.
// Only codes present in direct act as sources; edges whose source has no
// direct composite contribute nothing. A target absent from direct is
// seeded with the neutral 0.5 prior, so a quiet instrument can still
// inherit neighborhood sentiment. A target with zero contributing edges
// keeps its seed exactly, with no arithmetic applied.
func (p *Propagator) Enrich(targets []string, direct map[string]float64, overlay *relgraph.Overlay) map[string]contracts.PropagationDetails {
	codes := make([]string, len(targets))
	copy(codes, targets)
	sort.Strings(codes)

	out := make(map[string]contracts.PropagationDetails, len(codes))
	totalEdges := 0
	for _, code := range codes {
		if _, seen := out[code]; seen {
			continue
		}
		d := p.enrichOne(code, direct, overlay)
		out[code] = d
		totalEdges += d.EdgesUsed
	}

	p.logger.WithFields(map[string]interface{}{
		"instruments": len(codes),
		"edges_used":  totalEdges,
	}).Debug("Sentiment propagation complete")

	return out
}

func (p *Propagator) enrichOne(code string, direct map[string]float64, overlay *relgraph.Overlay) contracts.PropagationDetails {
	seed, ok := direct[code]
	if !ok {
		seed = 0.5 // 자체 뉴스 없는 타깃은 중립 prior에서 출발
	}
	d := contracts.PropagationDetails{Direct: seed}

	sum := 0.0
	for _, e := range p.graph.EdgesInto(code) {
		source01, ok := direct[e.Source]
		if !ok {
			continue
		}
		sum += p.contribution(source01, e.Weight, e.Tier, e.Kind)
		d.StaticEdges++
	}
	if overlay != nil {
		for _, e := range overlay.EdgesInto(code) {
			source01, ok := direct[e.ResolvedCode]
			if !ok {
				continue
			}
			// Candidates come from same-day articles naming the entity
			// directly, so they carry tier-1 reach.
			sum += p.contribution(source01, e.Weight, 1, e.Kind)
			d.CandidateEdges++
		}
	}

	d.EdgesUsed = d.StaticEdges + d.CandidateEdges
	if d.EdgesUsed == 0 {
		d.Enriched = d.Direct
		return d
	}

	avg := sum / float64(d.EdgesUsed)
	d.Propagated = clamp01(0.5 + avg/2)
	d.Enriched = clamp01((1-p.cfg.Blend)*d.Direct + p.cfg.Blend*d.Propagated)
	return d
}

// contribution converts a neighbor's [0,1] composite into a signed pull.
// 0.5가 중립. 중립 이웃은 어느 방향으로도 끌지 않는다.
func (p *Propagator) contribution(source01, edgeWeight float64, tier int, kind contracts.RelationKind) float64 {
	c := (source01 - 0.5) * 2 * edgeWeight * p.tierWeight(tier)
	if kind == contracts.RelationCompetitor && p.cfg.InvertCompetitor {
		c = -c
	}
	return c
}

func (p *Propagator) tierWeight(tier int) float64 {
	if tier == 2 {
		return p.cfg.Tier2Weight
	}
	return p.cfg.Tier1Weight
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
