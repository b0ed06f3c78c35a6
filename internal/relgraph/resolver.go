package relgraph

import (
	"sort"
	"strings"
	"time"

	"github.com/wonny/argus/backend/internal/contracts"
)

// Resolver maps analyzer entity names to instrument codes.
// 별칭 사전 우선, 실패 시 코드 직접 대조. 둘 다 실패하면 미해결로 버린다.
type Resolver struct {
	aliases map[string]string // normalized name -> code
	codes   map[string]bool
}

// NewResolver builds the alias dictionary. Configured aliases come first
// and win over universe-derived entries; then every instrument name and
// listed alias maps to its code. On collisions among instruments the one
// with the lexicographically smaller code wins, so resolution does not
// depend on listing order.
func NewResolver(instruments []contracts.Instrument, configured map[string]string) *Resolver {
	sorted := make([]contracts.Instrument, len(instruments))
	copy(sorted, instruments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	r := &Resolver{
		aliases: make(map[string]string),
		codes:   make(map[string]bool),
	}
	for _, name := range sortedKeys(configured) {
		r.addAlias(name, configured[name])
	}
	for _, inst := range sorted {
		if inst.Code == "" {
			continue
		}
		r.codes[inst.Code] = true
		r.addAlias(inst.Name, inst.Code)
		for _, alias := range inst.Aliases {
			r.addAlias(alias, inst.Code)
		}
	}
	return r
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Resolver) addAlias(name, code string) {
	key := normalizeName(name)
	if key == "" {
		return
	}
	if _, exists := r.aliases[key]; !exists {
		r.aliases[key] = code
	}
}

// Resolve returns the instrument code for an entity name
func (r *Resolver) Resolve(name string) (string, bool) {
	key := normalizeName(name)
	if key == "" {
		return "", false
	}
	if code, ok := r.aliases[key]; ok {
		return code, true
	}
	// Analyzers sometimes return the code itself
	trimmed := strings.TrimSpace(name)
	if r.codes[trimmed] {
		return trimmed, true
	}
	return "", false
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// BuildOverlay converts the day's entity mentions into resolved candidate
// edges. Mentions that resolve to no instrument, or to the target itself,
// are dropped and counted. Edge direction follows the relation kind: the
// mentioned entity is the source whose sentiment flows into the target.
func (r *Resolver) BuildOverlay(mentionsByCode map[string][]contracts.EntityMention, discoveredAt time.Time, weight float64) (*Overlay, int) {
	overlay := NewOverlay()

	targets := make([]string, 0, len(mentionsByCode))
	for code := range mentionsByCode {
		targets = append(targets, code)
	}
	sort.Strings(targets)

	unresolved := 0
	for _, target := range targets {
		seen := make(map[string]bool)
		for _, mention := range mentionsByCode[target] {
			source, ok := r.Resolve(mention.Name)
			if !ok || source == target {
				unresolved++
				continue
			}
			dedupKey := source + "|" + string(mention.Kind)
			if seen[dedupKey] {
				continue
			}
			seen[dedupKey] = true
			overlay.Add(contracts.CandidateEdge{
				Mention:      mention.Name,
				ResolvedCode: source,
				Target:       target,
				Kind:         mention.Kind,
				Weight:       weight,
				DiscoveredAt: discoveredAt,
			})
		}
	}
	return overlay, unresolved
}
