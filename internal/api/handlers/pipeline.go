package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/wonny/argus/backend/internal/brain"
	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/realtime"
	"github.com/wonny/argus/backend/pkg/logger"
	"github.com/wonny/argus/backend/pkg/redis"
)

// RunStore reads persisted run summaries and composite scores
type RunStore interface {
	GetLatestRun(ctx context.Context) (*brain.RunRecord, error)
	GetRunByDate(ctx context.Context, date time.Time) (*brain.RunRecord, error)
	GetScores(ctx context.Context, date time.Time) ([]contracts.CompositeScore, error)
}

// WeightStore reads persisted target weights
type WeightStore interface {
	GetLatestWeights(ctx context.Context) (*contracts.TargetWeights, error)
	GetWeights(ctx context.Context, date time.Time) (*contracts.TargetWeights, error)
	GetHash(ctx context.Context, date time.Time) (string, error)
}

// PipelineTrigger starts a pipeline run on demand
type PipelineTrigger interface {
	Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error)
}

// PipelineHandler serves stored decisions and on-demand runs
// ⭐ SSOT: 파이프라인 API 핸들러는 여기서만
type PipelineHandler struct {
	runs       RunStore
	weights    WeightStore
	trigger    PipelineTrigger
	cache      *redis.Cache
	hub        *realtime.Hub
	strategyID string
	logger     *logger.Logger
}

// NewPipelineHandler creates a new pipeline handler. The cache may be
// disabled (lookups then always hit the store) and the hub may be nil.
func NewPipelineHandler(
	runs RunStore,
	weights WeightStore,
	trigger PipelineTrigger,
	cache *redis.Cache,
	hub *realtime.Hub,
	strategyID string,
	log *logger.Logger,
) *PipelineHandler {
	return &PipelineHandler{
		runs:       runs,
		weights:    weights,
		trigger:    trigger,
		cache:      cache,
		hub:        hub,
		strategyID: strategyID,
		logger:     log,
	}
}

// PositionItem is one target position
type PositionItem struct {
	StockCode string  `json:"stockCode"`
	Weight    float64 `json:"weight"`
}

// WeightsView is the response shape for a stored decision
type WeightsView struct {
	Date        string         `json:"date"`
	CashOut     bool           `json:"cashOut"`
	Count       int            `json:"count"`
	TotalWeight float64        `json:"totalWeight"`
	Hash        string         `json:"hash"`
	Positions   []PositionItem `json:"positions"`
}

// RunView is the response shape for a run summary
type RunView struct {
	RunID            string                `json:"runId"`
	Date             string                `json:"date"`
	Mode             string                `json:"mode"`
	Success          bool                  `json:"success"`
	Regime           string                `json:"regime"`
	RegimeSource     string                `json:"regimeSource"`
	RegimeConfidence float64               `json:"regimeConfidence"`
	CashOut          bool                  `json:"cashOut"`
	WeightsHash      string                `json:"weightsHash"`
	Diagnostics      contracts.Diagnostics `json:"diagnostics"`
	DurationMS       int64                 `json:"durationMs"`
	CreatedAt        time.Time             `json:"createdAt"`
}

// ScoreItem is one instrument's composite score
type ScoreItem struct {
	StockCode string   `json:"stockCode"`
	Technical float64  `json:"technical"`
	Sentiment *float64 `json:"sentiment"`
	Blended   float64  `json:"blended"`
	Status    string   `json:"status"`
	Reasons   []string `json:"reasons"`
}

// TriggerRunView summarizes a completed on-demand run
type TriggerRunView struct {
	RunID           string   `json:"runId"`
	Date            string   `json:"date"`
	Mode            string   `json:"mode"`
	Success         bool     `json:"success"`
	Regime          string   `json:"regime"`
	CashOut         bool     `json:"cashOut"`
	WeightsHash     string   `json:"weightsHash"`
	CompletedStages []string `json:"completedStages"`
	Positions       int      `json:"positions"`
	DurationMS      int64    `json:"durationMs"`
}

// GetLatestWeights returns the most recent stored decision
// GET /api/weights/latest
func (h *PipelineHandler) GetLatestWeights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	target, err := h.weights.GetLatestWeights(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		respondError(w, http.StatusNotFound, "No weights stored yet")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest weights")
		respondError(w, http.StatusInternalServerError, "Failed to load latest weights")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    h.weightsView(ctx, target),
	})
}

// GetWeightsByDate returns the stored decision for one date. A stored
// decision only changes when the date is re-run, so responses cache for
// a day and a re-run invalidates the entry.
// GET /api/weights/{date}
func (h *PipelineHandler) GetWeightsByDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, ok := parseDateVar(w, r)
	if !ok {
		return
	}
	dateKey := date.Format("2006-01-02")

	var view WeightsView
	err := h.cache.GetOrSet(ctx, redis.WeightsKey(h.strategyID, dateKey), &view, redis.TTLDaily,
		func() (interface{}, error) {
			target, err := h.weights.GetWeights(ctx, date)
			if err != nil {
				return nil, err
			}
			return h.weightsView(ctx, target), nil
		})
	if errors.Is(err, pgx.ErrNoRows) {
		respondError(w, http.StatusNotFound, "No weights for "+dateKey)
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load weights")
		respondError(w, http.StatusInternalServerError, "Failed to load weights")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    view,
	})
}

// GetLatestRun returns the most recent run summary
// GET /api/runs/latest
func (h *PipelineHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, err := h.runs.GetLatestRun(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		respondError(w, http.StatusNotFound, "No runs recorded yet")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest run")
		respondError(w, http.StatusInternalServerError, "Failed to load latest run")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    runView(rec),
	})
}

// GetRunByDate returns the run summary for one decision date
// GET /api/runs/{date}
func (h *PipelineHandler) GetRunByDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, ok := parseDateVar(w, r)
	if !ok {
		return
	}

	rec, err := h.runs.GetRunByDate(ctx, date)
	if errors.Is(err, pgx.ErrNoRows) {
		respondError(w, http.StatusNotFound, "No run for "+date.Format("2006-01-02"))
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load run")
		respondError(w, http.StatusInternalServerError, "Failed to load run")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    runView(rec),
	})
}

// GetScoresByDate returns the stored composite scores for one decision date
// GET /api/scores/{date}
func (h *PipelineHandler) GetScoresByDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, ok := parseDateVar(w, r)
	if !ok {
		return
	}

	scores, err := h.runs.GetScores(ctx, date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load scores")
		respondError(w, http.StatusInternalServerError, "Failed to load scores")
		return
	}

	items := make([]ScoreItem, 0, len(scores))
	for _, s := range scores {
		items = append(items, ScoreItem{
			StockCode: s.Code,
			Technical: s.Technical,
			Sentiment: s.Sentiment,
			Blended:   s.Blended,
			Status:    string(s.Status),
			Reasons:   s.Reasons,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"date":  date.Format("2006-01-02"),
			"count": len(items),
			"items": items,
		},
	})
}

// TriggerRunRequest is the POST body for an on-demand run. Both fields are
// optional; the default is a live run for today.
type TriggerRunRequest struct {
	Date string `json:"date"`
	Mode string `json:"mode"`
}

// TriggerRun starts a pipeline run and waits for it to finish
// POST /api/runs
func (h *PipelineHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req TriggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
			return
		}
		date = parsed
	}

	mode := contracts.ModeLive
	if req.Mode != "" {
		mode = contracts.Mode(req.Mode)
		if mode != contracts.ModeLive && mode != contracts.ModeSimulation {
			respondError(w, http.StatusBadRequest, "Invalid 'mode' (valid: live, simulation)")
			return
		}
	}

	runID := "run_" + uuid.NewString()

	h.logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"date":   date.Format("2006-01-02"),
		"mode":   mode,
	}).Info("API-triggered pipeline run")

	result, err := h.trigger.Run(ctx, brain.RunConfig{
		DecisionDate: date,
		RunID:        runID,
		Mode:         mode,
	})
	if result == nil {
		h.logger.WithError(err).Error("Pipeline run returned no result")
		respondError(w, http.StatusInternalServerError, "Pipeline run failed")
		return
	}

	if !result.Success {
		message := "pipeline run failed"
		if result.Error != nil {
			message = result.Error.Error()
		} else if err != nil {
			message = err.Error()
		}
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   message,
			"data":    triggerView(result),
		})
		return
	}

	if mode == contracts.ModeLive && result.Weights != nil {
		// 새 결정을 구독자에게 푸시하고 해당 날짜의 응답 캐시를 비운다
		h.hub.Broadcast(realtime.NewWeightsUpdate(result.RunID, regimeLabel(result), result.Weights, result.WeightsHash))
		dateKey := result.DecisionDate.Format("2006-01-02")
		if err := h.cache.Delete(ctx, redis.WeightsKey(h.strategyID, dateKey)); err != nil {
			h.logger.WithError(err).Warn("Failed to invalidate weights cache")
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    triggerView(result),
	})
}

// weightsView assembles the decision response including the parity hash
func (h *PipelineHandler) weightsView(ctx context.Context, target *contracts.TargetWeights) WeightsView {
	hash, err := h.weights.GetHash(ctx, target.DecisionDate)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to load weights hash")
	}

	positions := make([]PositionItem, 0, len(target.Weights))
	for code, weight := range target.Weights {
		positions = append(positions, PositionItem{StockCode: code, Weight: weight})
	}
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].Weight != positions[j].Weight {
			return positions[i].Weight > positions[j].Weight
		}
		return positions[i].StockCode < positions[j].StockCode
	})

	return WeightsView{
		Date:        target.DecisionDate.Format("2006-01-02"),
		CashOut:     target.CashOut,
		Count:       len(positions),
		TotalWeight: target.TotalWeight(),
		Hash:        hash,
		Positions:   positions,
	}
}

func runView(rec *brain.RunRecord) RunView {
	return RunView{
		RunID:            rec.RunID,
		Date:             rec.DecisionDate.Format("2006-01-02"),
		Mode:             string(rec.Mode),
		Success:          rec.Success,
		Regime:           string(rec.Regime),
		RegimeSource:     string(rec.RegimeSource),
		RegimeConfidence: rec.RegimeConfidence,
		CashOut:          rec.CashOut,
		WeightsHash:      rec.WeightsHash,
		Diagnostics:      rec.Diagnostics,
		DurationMS:       rec.DurationMS,
		CreatedAt:        rec.CreatedAt,
	}
}

func triggerView(result *brain.RunResult) TriggerRunView {
	view := TriggerRunView{
		RunID:           result.RunID,
		Date:            result.DecisionDate.Format("2006-01-02"),
		Mode:            string(result.Mode),
		Success:         result.Success,
		Regime:          string(regimeLabel(result)),
		WeightsHash:     result.WeightsHash,
		CompletedStages: result.CompletedStages,
		DurationMS:      result.Duration.Milliseconds(),
	}
	if result.Weights != nil {
		view.CashOut = result.Weights.CashOut
		view.Positions = len(result.Weights.Weights)
	}
	return view
}

func regimeLabel(result *brain.RunResult) contracts.RegimeLabel {
	if result.Regime == nil {
		return contracts.RegimeUnknown
	}
	return result.Regime.Label
}

// parseDateVar reads the {date} path variable (YYYY-MM-DD)
func parseDateVar(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := mux.Vars(r)["date"]
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return time.Time{}, false
	}
	return date, true
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
