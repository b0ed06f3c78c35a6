package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds all Prometheus metrics for the pipeline
// ⭐ SSOT: 메트릭 등록은 여기서만
//
// Each Recorder owns its registry, so constructing one per process (or per
// test) never trips duplicate registration. All record methods are nil-safe;
// pass a nil *Recorder to disable metrics entirely.
type Recorder struct {
	registry *prometheus.Registry

	pipelineRuns  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	instruments   *prometheus.CounterVec
	deepRequests  *prometheus.CounterVec
	regimeState   *prometheus.GaugeVec
	targetWeight  *prometheus.GaugeVec
	cashOut       prometheus.Gauge
	wsClients     prometheus.Gauge
}

// New creates a new Prometheus metrics recorder
func New() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,

		pipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "argus_pipeline_runs_total",
				Help: "Total number of pipeline runs by mode and status",
			},
			[]string{"mode", "status"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "argus_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0},
			},
			[]string{"stage"},
		),
		instruments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "argus_instrument_outcomes_total",
				Help: "Per-instrument stage outcomes (ok, degraded, skipped)",
			},
			[]string{"stage", "status"},
		),
		deepRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "argus_deep_requests_total",
				Help: "Deep-analysis service calls by outcome",
			},
			[]string{"outcome"},
		),
		regimeState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "argus_regime_state",
				Help: "Current market regime (1 for the active label, 0 otherwise)",
			},
			[]string{"label"},
		),
		targetWeight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "argus_target_weight",
				Help: "Latest target weight per instrument",
			},
			[]string{"code"},
		),
		cashOut: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "argus_cash_out",
				Help: "1 when the latest decision moved the book to cash",
			},
		),
		wsClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "argus_ws_clients",
				Help: "Number of connected WebSocket clients",
			},
		),
	}
}

// Handler returns the HTTP handler serving this recorder's registry
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordRun records a completed pipeline run
func (r *Recorder) RecordRun(mode, status string) {
	if r == nil {
		return
	}
	r.pipelineRuns.WithLabelValues(mode, status).Inc()
}

// RecordInstrument records a per-instrument stage outcome
func (r *Recorder) RecordInstrument(stage, status string) {
	if r == nil {
		return
	}
	r.instruments.WithLabelValues(stage, status).Inc()
}

// RecordDeepRequest records a deep-analysis call outcome
// (outcome: "ok", "error", "breaker_open", "timeout")
func (r *Recorder) RecordDeepRequest(outcome string) {
	if r == nil {
		return
	}
	r.deepRequests.WithLabelValues(outcome).Inc()
}

// SetRegime marks the active regime label
func (r *Recorder) SetRegime(active string, labels []string) {
	if r == nil {
		return
	}
	for _, label := range labels {
		v := 0.0
		if label == active {
			v = 1.0
		}
		r.regimeState.WithLabelValues(label).Set(v)
	}
}

// SetWeights publishes the latest target weights
func (r *Recorder) SetWeights(weights map[string]float64, cashOut bool) {
	if r == nil {
		return
	}
	r.targetWeight.Reset()
	for code, w := range weights {
		r.targetWeight.WithLabelValues(code).Set(w)
	}
	if cashOut {
		r.cashOut.Set(1)
	} else {
		r.cashOut.Set(0)
	}
}

// SetWSClients sets the connected WebSocket client count
func (r *Recorder) SetWSClients(n int) {
	if r == nil {
		return
	}
	r.wsClients.Set(float64(n))
}

// StageTimer tracks execution time for a pipeline stage
type StageTimer struct {
	recorder *Recorder
	stage    string
	start    time.Time
}

// StartStage begins timing a pipeline stage
func (r *Recorder) StartStage(stage string) *StageTimer {
	return &StageTimer{recorder: r, stage: stage, start: time.Now()}
}

// Stop completes the stage timing and records the observation
func (t *StageTimer) Stop() {
	if t.recorder == nil {
		return
	}
	t.recorder.stageDuration.WithLabelValues(t.stage).Observe(time.Since(t.start).Seconds())
}
