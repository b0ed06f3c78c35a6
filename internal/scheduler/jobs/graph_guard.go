package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/relgraph"
	"github.com/wonny/argus/backend/pkg/logger"
)

// GraphLoader loads relationship edges from storage
type GraphLoader interface {
	LoadGraph(ctx context.Context) ([]contracts.RelationshipEdge, error)
}

// GraphGuardJob detects drift between the stored relationship graph and the
// one this process propagates with. A running pipeline keeps its
// point-in-time graph so identical reruns stay identical; this job only
// alerts operators that a restart would pick up a different graph.
type GraphGuardJob struct {
	loader GraphLoader
	active *relgraph.Graph
	logger *logger.Logger
}

// NewGraphGuardJob creates a new graph guard job
func NewGraphGuardJob(loader GraphLoader, active *relgraph.Graph, log *logger.Logger) *GraphGuardJob {
	return &GraphGuardJob{
		loader: loader,
		active: active,
		logger: log,
	}
}

// Name returns the job name
func (j *GraphGuardJob) Name() string {
	return "graph_guard"
}

// Schedule returns the cron schedule (hourly, offset from news ingest)
func (j *GraphGuardJob) Schedule() string {
	return "0 15 * * * *" // hourly at :15 (with seconds)
}

// Run reloads the stored graph and compares fingerprints
func (j *GraphGuardJob) Run(ctx context.Context) error {
	edges, err := j.loader.LoadGraph(ctx)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	fresh, dropped := relgraph.New(edges)
	if dropped > 0 {
		j.logger.WithField("dropped", dropped).Warn("Stored graph contains invalid edges")
	}

	if fresh.Fingerprint() != j.active.Fingerprint() {
		j.logger.WithFields(map[string]interface{}{
			"active_edges": j.active.Size(),
			"stored_edges": fresh.Size(),
		}).Warn("Relationship graph changed in storage; restart to load it")
		return nil
	}

	j.logger.Debug("Relationship graph unchanged")
	return nil
}
