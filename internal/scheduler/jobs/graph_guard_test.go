package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/relgraph"
	"github.com/wonny/argus/backend/pkg/logger"
)

type fakeGraphLoader struct {
	edges []contracts.RelationshipEdge
	err   error
}

func (f *fakeGraphLoader) LoadGraph(ctx context.Context) ([]contracts.RelationshipEdge, error) {
	return f.edges, f.err
}

func guardEdges() []contracts.RelationshipEdge {
	return []contracts.RelationshipEdge{
		{Source: "000660", Target: "005930", Kind: contracts.RelationSupplier, Tier: 1, Weight: 0.8},
		{Source: "005380", Target: "005930", Kind: contracts.RelationCustomer, Tier: 2, Weight: 0.3},
	}
}

func TestGraphGuardJob_UnchangedGraph(t *testing.T) {
	active, dropped := relgraph.New(guardEdges())
	require.Zero(t, dropped)

	// 저장소가 같은 간선을 다른 순서로 돌려줘도 동일 그래프
	stored := guardEdges()
	stored[0], stored[1] = stored[1], stored[0]

	job := NewGraphGuardJob(&fakeGraphLoader{edges: stored}, active, logger.Nop())
	assert.NoError(t, job.Run(context.Background()))
}

func TestGraphGuardJob_DriftIsWarnOnly(t *testing.T) {
	active, _ := relgraph.New(guardEdges())

	changed := guardEdges()
	changed[0].Weight = 0.5
	job := NewGraphGuardJob(&fakeGraphLoader{edges: changed}, active, logger.Nop())

	// 드리프트는 경고만 하고 실행 중인 그래프는 바꾸지 않는다
	assert.NoError(t, job.Run(context.Background()))

	fresh, _ := relgraph.New(changed)
	assert.NotEqual(t, active.Fingerprint(), fresh.Fingerprint())
}

func TestGraphGuardJob_DropsInvalidStoredEdges(t *testing.T) {
	active, _ := relgraph.New(guardEdges())

	stored := append(guardEdges(), contracts.RelationshipEdge{
		Source: "", Target: "005930", Kind: contracts.RelationSupplier, Tier: 1, Weight: 0.5,
	})
	job := NewGraphGuardJob(&fakeGraphLoader{edges: stored}, active, logger.Nop())

	assert.NoError(t, job.Run(context.Background()))
}

func TestGraphGuardJob_LoaderError(t *testing.T) {
	active, _ := relgraph.New(guardEdges())
	job := NewGraphGuardJob(&fakeGraphLoader{err: assert.AnError}, active, logger.Nop())

	err := job.Run(context.Background())
	assert.ErrorContains(t, err, "load graph")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestGraphGuardJob_Identity(t *testing.T) {
	job := NewGraphGuardJob(&fakeGraphLoader{}, nil, logger.Nop())

	assert.Equal(t, "graph_guard", job.Name())
	assert.Equal(t, "0 15 * * * *", job.Schedule())
}
