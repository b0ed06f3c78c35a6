package relgraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argus/backend/internal/contracts"
)

func testInstruments() []contracts.Instrument {
	return []contracts.Instrument{
		{Code: "000100", Name: "Foo Materials", Aliases: []string{"FooMat", "Foo Materials Co"}},
		{Code: "000200", Name: "Bar Devices", Aliases: []string{"Bar Devices Inc"}},
		{Code: "000300", Name: "Baz Chemical"},
	}
}

func TestResolve(t *testing.T) {
	r := NewResolver(testInstruments(), nil)

	tests := []struct {
		name     string
		input    string
		wantCode string
		wantOK   bool
	}{
		{"exact name", "Foo Materials", "000100", true},
		{"alias", "FooMat", "000100", true},
		{"case insensitive", "bar devices", "000200", true},
		{"extra whitespace", "  Baz   Chemical ", "000300", true},
		{"direct code", "000200", "000200", true},
		{"unknown entity", "Quux Heavy Industries", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := r.Resolve(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestResolve_ConfiguredAliasWins(t *testing.T) {
	r := NewResolver(testInstruments(), map[string]string{
		"FooMat":      "000300", // overrides the instrument alias
		"Quux Metals": "000200",
	})

	code, ok := r.Resolve("FooMat")
	require.True(t, ok)
	assert.Equal(t, "000300", code)

	code, ok = r.Resolve("quux metals")
	require.True(t, ok)
	assert.Equal(t, "000200", code)
}

func TestResolve_AliasCollisionDeterministic(t *testing.T) {
	instruments := []contracts.Instrument{
		{Code: "000900", Name: "Nine Corp", Aliases: []string{"Shared Name"}},
		{Code: "000100", Name: "One Corp", Aliases: []string{"Shared Name"}},
	}

	// Lower code wins regardless of slice order
	for i := 0; i < 2; i++ {
		r := NewResolver(instruments, nil)
		code, ok := r.Resolve("Shared Name")
		require.True(t, ok)
		assert.Equal(t, "000100", code)

		instruments[0], instruments[1] = instruments[1], instruments[0]
	}
}

func TestBuildOverlay(t *testing.T) {
	r := NewResolver(testInstruments(), nil)
	discoveredAt := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	mentions := map[string][]contracts.EntityMention{
		"000200": {
			{Name: "Foo Materials", Kind: contracts.RelationSupplier},
			{Name: "FooMat", Kind: contracts.RelationSupplier},            // same source+kind, deduped
			{Name: "Baz Chemical", Kind: contracts.RelationCustomer},
			{Name: "Unknown Widgets", Kind: contracts.RelationSupplier},   // unresolved
			{Name: "Bar Devices", Kind: contracts.RelationSupplier},       // resolves to target itself
		},
	}

	overlay, unresolved := r.BuildOverlay(mentions, discoveredAt, 0.3)

	assert.Equal(t, 2, unresolved)
	require.Equal(t, 2, overlay.Size())

	edges := overlay.EdgesInto("000200")
	require.Len(t, edges, 2)
	assert.Equal(t, "000100", edges[0].ResolvedCode)
	assert.Equal(t, contracts.RelationSupplier, edges[0].Kind)
	assert.Equal(t, "000300", edges[1].ResolvedCode)
	assert.Equal(t, contracts.RelationCustomer, edges[1].Kind)
	for _, e := range edges {
		assert.Equal(t, 0.3, e.Weight)
		assert.Equal(t, discoveredAt, e.DiscoveredAt)
	}
}

func TestBuildOverlay_SameSourceDifferentKindKept(t *testing.T) {
	r := NewResolver(testInstruments(), nil)

	mentions := map[string][]contracts.EntityMention{
		"000200": {
			{Name: "Foo Materials", Kind: contracts.RelationSupplier},
			{Name: "Foo Materials", Kind: contracts.RelationCustomer},
		},
	}

	overlay, unresolved := r.BuildOverlay(mentions, time.Time{}, 0.3)
	assert.Zero(t, unresolved)
	assert.Equal(t, 2, overlay.Size())
}
