package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Chunk metrics
	ChunksTotal       *prometheus.CounterVec
	ChunkDuration     *prometheus.HistogramVec
	ChunksInFlight    prometheus.Gauge
	ChunkRetriesTotal *prometheus.CounterVec

	// Report API metrics
	ReportAPICalls    *prometheus.CounterVec
	ReportAPIDuration *prometheus.HistogramVec
	ReportAPIFailures *prometheus.CounterVec

	// Row metrics
	RowsNormalized *prometheus.CounterVec
	RowsDropped    *prometheus.CounterVec
	RowsUpserted   *prometheus.CounterVec

	// Storage metrics
	UpsertBatches       *prometheus.CounterVec
	SchemaFallbackTotal prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ChunksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backfill_chunks_total",
				Help: "Total number of (combination, month) chunks processed",
			},
			[]string{"status", "level"},
		),

		ChunkDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backfill_chunk_duration_seconds",
				Help:    "Chunk processing duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"level"},
		),

		ChunksInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "backfill_chunks_in_flight",
				Help: "Number of chunks currently being processed",
			},
		),

		ChunkRetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backfill_chunk_retries_total",
				Help: "Total number of transient-failure retries",
			},
			[]string{"level"},
		),

		ReportAPICalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_api_calls_total",
				Help: "Total number of reporting API calls",
			},
			[]string{"operation", "status"},
		),

		ReportAPIDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "report_api_duration_seconds",
				Help:    "Reporting API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		ReportAPIFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_api_failures_total",
				Help: "Total number of reporting API failures",
			},
			[]string{"operation", "error_type"},
		),

		RowsNormalized: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backfill_rows_normalized_total",
				Help: "Total number of raw rows normalized",
			},
			[]string{"level"},
		),

		RowsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backfill_rows_dropped_total",
				Help: "Total number of raw rows dropped during normalization",
			},
			[]string{"level", "reason"},
		),

		RowsUpserted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backfill_rows_upserted_total",
				Help: "Total number of rows written to storage",
			},
			[]string{"schema"},
		),

		UpsertBatches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backfill_upsert_batches_total",
				Help: "Total number of storage upsert batches",
			},
			[]string{"schema", "status"},
		),

		SchemaFallbackTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "backfill_schema_fallback_total",
				Help: "Times the store fell back from the extended to the legacy schema",
			},
		),
	}
}

// Chunk outcome metrics
func (m *Metrics) RecordChunk(status, level string, duration time.Duration) {
	m.ChunksTotal.WithLabelValues(status, level).Inc()
	m.ChunkDuration.WithLabelValues(level).Observe(duration.Seconds())
}

// Retry counter
func (m *Metrics) RecordChunkRetry(level string) {
	m.ChunkRetriesTotal.WithLabelValues(level).Inc()
}

// Report API call metrics
func (m *Metrics) RecordReportAPICall(operation, status string, duration time.Duration) {
	m.ReportAPICalls.WithLabelValues(operation, status).Inc()
	m.ReportAPIDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Report API failure metrics
func (m *Metrics) RecordReportAPIFailure(operation, errorType string) {
	m.ReportAPIFailures.WithLabelValues(operation, errorType).Inc()
}

// Normalization metrics
func (m *Metrics) RecordRowsNormalized(level string, count int) {
	m.RowsNormalized.WithLabelValues(level).Add(float64(count))
}

func (m *Metrics) RecordRowDropped(level, reason string) {
	m.RowsDropped.WithLabelValues(level, reason).Inc()
}

// Storage metrics
func (m *Metrics) RecordUpsertBatch(schema, status string, rows int) {
	m.UpsertBatches.WithLabelValues(schema, status).Inc()
	if status == "success" {
		m.RowsUpserted.WithLabelValues(schema).Add(float64(rows))
	}
}

func (m *Metrics) RecordSchemaFallback() {
	m.SchemaFallbackTotal.Inc()
}

// Chunks in flight counter
func (m *Metrics) IncChunksInFlight() {
	m.ChunksInFlight.Inc()
}

// Chunks in flight counter
func (m *Metrics) DecChunksInFlight() {
	m.ChunksInFlight.Dec()
}
