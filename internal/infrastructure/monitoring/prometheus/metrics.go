package prometheus

import (
	"strconv"
	"time"

	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

// Histogram buckets tuned per concern. Engine evaluations run per position
// and normally finish within seconds; a full game assessment multiplies that
// by the move count, so its buckets stretch to an hour.
var (
	DefaultHTTPDurationBuckets     = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	DefaultEngineDurationBuckets   = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}
	DefaultAnalysisDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600}
	DefaultProbeDurationBuckets    = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	DefaultDBDurationBuckets       = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5}
	DefaultSizeBuckets             = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216}
	DefaultRiskScoreBuckets        = []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}
)

// AppMetrics bundles every metric the platform emits. One instance is built
// at startup and shared by the HTTP layer, the analysis pipeline and the
// infrastructure adapters.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal    CounterVec
	HTTPRequestDuration  HistogramVec
	HTTPRequestSize      HistogramVec
	HTTPResponseSize     HistogramVec
	HTTPRequestsInFlight GaugeVec

	// Game ingestion
	GamesIngestedTotal CounterVec
	PGNSizeBytes       HistogramVec

	// Engine oracle
	EngineEvaluationsTotal   CounterVec
	EngineEvaluationDuration HistogramVec
	EnginePoolInUse          GaugeVec
	EnginePoolCapacity       GaugeVec
	EngineRestartsTotal      CounterVec

	// Opening theory
	TheoryProbesTotal        CounterVec
	TheoryProbeDuration      HistogramVec
	TheoryRateLimitWaitTotal CounterVec

	// Assessment pipeline
	AssessmentsTotal      CounterVec
	AssessmentDuration    HistogramVec
	MovesAnalyzedTotal    CounterVec
	RiskScoreDistribution HistogramVec
	RiskLevelTotal        CounterVec
	AnalysisJobsInFlight  GaugeVec
	JobRetriesTotal       CounterVec

	// Messaging
	MessagesPublishedTotal CounterVec
	MessagesConsumedTotal  CounterVec
	MessageHandleDuration  HistogramVec
	MessagesDeadLettered   CounterVec
	ConsumerLag            GaugeVec

	// Storage
	DBQueryDuration     HistogramVec
	DBPoolTotalConns    GaugeVec
	DBPoolAcquiredConns GaugeVec
	CacheHitsTotal      CounterVec
	CacheMissesTotal    CounterVec
	ObjectStoreOpsTotal CounterVec

	// Health
	ComponentUp GaugeVec
	ErrorsTotal CounterVec
}

// NewAppMetrics registers the full metric set against the collector.
// Registering twice is harmless: RegisterX returns the existing vector on a
// name collision with matching type.
func NewAppMetrics(c MetricsCollector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal: c.RegisterCounter("http_requests_total",
			"HTTP requests by method, path and status code.",
			"method", "path", "status_code"),
		HTTPRequestDuration: c.RegisterHistogram("http_request_duration_seconds",
			"HTTP request latency.",
			DefaultHTTPDurationBuckets, "method", "path"),
		HTTPRequestSize: c.RegisterHistogram("http_request_size_bytes",
			"HTTP request body size.",
			DefaultSizeBuckets, "method", "path"),
		HTTPResponseSize: c.RegisterHistogram("http_response_size_bytes",
			"HTTP response body size.",
			DefaultSizeBuckets, "method", "path"),
		HTTPRequestsInFlight: c.RegisterGauge("http_requests_in_flight",
			"HTTP requests currently being served."),

		GamesIngestedTotal: c.RegisterCounter("games_ingested_total",
			"Games submitted for analysis by ingest status.",
			"status"),
		PGNSizeBytes: c.RegisterHistogram("pgn_size_bytes",
			"Size of accepted PGN uploads.",
			DefaultSizeBuckets),

		EngineEvaluationsTotal: c.RegisterCounter("engine_evaluations_total",
			"Engine position evaluations by search depth and outcome.",
			"depth", "status"),
		EngineEvaluationDuration: c.RegisterHistogram("engine_evaluation_duration_seconds",
			"Wall time per engine evaluation.",
			DefaultEngineDurationBuckets, "depth"),
		EnginePoolInUse: c.RegisterGauge("engine_pool_in_use",
			"Engine processes currently checked out of the pool."),
		EnginePoolCapacity: c.RegisterGauge("engine_pool_capacity",
			"Engine processes the pool can hand out."),
		EngineRestartsTotal: c.RegisterCounter("engine_restarts_total",
			"Engine processes restarted after a crash or protocol failure."),

		TheoryProbesTotal: c.RegisterCounter("theory_probes_total",
			"Opening book probes by outcome (hit, miss, error).",
			"outcome"),
		TheoryProbeDuration: c.RegisterHistogram("theory_probe_duration_seconds",
			"Opening book probe latency including rate-limit waits.",
			DefaultProbeDurationBuckets),
		TheoryRateLimitWaitTotal: c.RegisterCounter("theory_rate_limit_waits_total",
			"Probes delayed by the explorer rate limiter."),

		AssessmentsTotal: c.RegisterCounter("assessments_total",
			"Finished game assessments by terminal status.",
			"status"),
		AssessmentDuration: c.RegisterHistogram("assessment_duration_seconds",
			"Wall time for a complete game assessment.",
			DefaultAnalysisDurationBuckets),
		MovesAnalyzedTotal: c.RegisterCounter("moves_analyzed_total",
			"Individual plies evaluated across all assessments."),
		RiskScoreDistribution: c.RegisterHistogram("risk_score",
			"Distribution of final risk scores.",
			DefaultRiskScoreBuckets),
		RiskLevelTotal: c.RegisterCounter("risk_level_total",
			"Completed assessments by risk level.",
			"level"),
		AnalysisJobsInFlight: c.RegisterGauge("analysis_jobs_in_flight",
			"Analysis jobs currently being processed by workers."),
		JobRetriesTotal: c.RegisterCounter("job_retries_total",
			"Analysis job handler retries before success or dead-letter."),

		MessagesPublishedTotal: c.RegisterCounter("messages_published_total",
			"Messages published to the broker by topic and outcome.",
			"topic", "status"),
		MessagesConsumedTotal: c.RegisterCounter("messages_consumed_total",
			"Messages consumed from the broker by topic and outcome.",
			"topic", "status"),
		MessageHandleDuration: c.RegisterHistogram("message_handle_duration_seconds",
			"Handler latency per consumed message.",
			DefaultAnalysisDurationBuckets, "topic"),
		MessagesDeadLettered: c.RegisterCounter("messages_dead_lettered_total",
			"Messages parked on a dead-letter topic after exhausting retries.",
			"topic"),
		ConsumerLag: c.RegisterGauge("consumer_lag",
			"Distance between the latest offset and the consumer position.",
			"topic"),

		DBQueryDuration: c.RegisterHistogram("db_query_duration_seconds",
			"Database query latency by operation.",
			DefaultDBDurationBuckets, "operation"),
		DBPoolTotalConns: c.RegisterGauge("db_pool_total_conns",
			"Connections currently held by the database pool."),
		DBPoolAcquiredConns: c.RegisterGauge("db_pool_acquired_conns",
			"Pool connections currently checked out."),
		CacheHitsTotal: c.RegisterCounter("cache_hits_total",
			"Cache lookups that found an entry.",
			"cache"),
		CacheMissesTotal: c.RegisterCounter("cache_misses_total",
			"Cache lookups that fell through.",
			"cache"),
		ObjectStoreOpsTotal: c.RegisterCounter("object_store_operations_total",
			"Object store calls by operation and outcome.",
			"operation", "status"),

		ComponentUp: c.RegisterGauge("component_up",
			"Whether a dependency passed its last health check (1 up, 0 down).",
			"component"),
		ErrorsTotal: c.RegisterCounter("errors_total",
			"Application errors by component and error code.",
			"component", "code"),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Recording helpers
// ─────────────────────────────────────────────────────────────────────────────

// The helpers tolerate a nil receiver so callers built without metrics, the
// CLI for one, can share code paths with the services.

// RecordHTTPRequest records one served request across the HTTP metric family.
func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration, requestSize, responseSize int64) {
	if m == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if requestSize > 0 {
		m.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordGameIngested counts an accepted or rejected submission, observing the
// PGN size only for accepted ones.
func RecordGameIngested(m *AppMetrics, accepted bool, pgnBytes int) {
	if m == nil {
		return
	}
	if accepted {
		m.GamesIngestedTotal.WithLabelValues("accepted").Inc()
		m.PGNSizeBytes.WithLabelValues().Observe(float64(pgnBytes))
		return
	}
	m.GamesIngestedTotal.WithLabelValues("rejected").Inc()
}

// RecordEngineEvaluation records one engine probe at the given search depth.
func RecordEngineEvaluation(m *AppMetrics, depth int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	d := strconv.Itoa(depth)
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EngineEvaluationsTotal.WithLabelValues(d, status).Inc()
	m.EngineEvaluationDuration.WithLabelValues(d).Observe(duration.Seconds())
}

// RecordTheoryProbe records one opening book lookup.
// Outcome is "hit" when the position is in book, "miss" when out of book and
// "error" when the probe itself failed.
func RecordTheoryProbe(m *AppMetrics, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TheoryProbesTotal.WithLabelValues(outcome).Inc()
	m.TheoryProbeDuration.WithLabelValues().Observe(duration.Seconds())
}

// RecordAssessment records a finished assessment. Score and level are only
// observed for completed runs; failed ones carry no verdict.
func RecordAssessment(m *AppMetrics, status string, duration time.Duration, movesAnalyzed int, riskScore float64, riskLevel string) {
	if m == nil {
		return
	}
	m.AssessmentsTotal.WithLabelValues(status).Inc()
	m.AssessmentDuration.WithLabelValues().Observe(duration.Seconds())
	if movesAnalyzed > 0 {
		m.MovesAnalyzedTotal.WithLabelValues().Add(float64(movesAnalyzed))
	}
	if status == "completed" {
		m.RiskScoreDistribution.WithLabelValues().Observe(riskScore)
		m.RiskLevelTotal.WithLabelValues(riskLevel).Inc()
	}
}

// RecordMessagePublished records one producer publish attempt.
func RecordMessagePublished(m *AppMetrics, topic string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.MessagesPublishedTotal.WithLabelValues(topic, status).Inc()
}

// RecordMessageConsumed records one handled message and its processing time.
func RecordMessageConsumed(m *AppMetrics, topic string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.MessagesConsumedTotal.WithLabelValues(topic, status).Inc()
	m.MessageHandleDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// RecordDeadLetter counts a message parked on the dead-letter topic.
func RecordDeadLetter(m *AppMetrics, topic string) {
	if m == nil {
		return
	}
	m.MessagesDeadLettered.WithLabelValues(topic).Inc()
}

// RecordDBQuery records query latency and, on failure, an error with the
// mapped code.
func RecordDBQuery(m *AppMetrics, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		RecordError(m, "postgres", err)
	}
}

// RecordCacheAccess counts a cache hit or miss for the named cache.
func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordObjectStoreOp records one object store call.
func RecordObjectStoreOp(m *AppMetrics, operation string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ObjectStoreOpsTotal.WithLabelValues(operation, status).Inc()
}

// RecordError counts an application error under its code. Non-AppError
// values land on the unknown code rather than being dropped.
func RecordError(m *AppMetrics, component string, err error) {
	if m == nil || err == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, string(errors.GetCode(err))).Inc()
}

// SetComponentUp flips the health gauge for a dependency.
func SetComponentUp(m *AppMetrics, component string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	m.ComponentUp.WithLabelValues(component).Set(v)
}
