package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by the pipeline counters.
const (
	StageExact = "exact"
	StageFuzzy = "fuzzy"

	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"

	TableRaw      = "raw_ideas"
	TableAnalyzed = "analyzed_ideas"
)

var (
	IdeasCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideas_collected_total",
		Help: "The total number of ideas collected per source",
	}, []string{"source"})

	SourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideas_source_failures_total",
		Help: "The total number of source runs that failed",
	}, []string{"source"})

	IdeasDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideas_deduplicated_total",
		Help: "The total number of ideas dropped as duplicates by stage",
	}, []string{"stage"})

	IdeasAnalyzed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideas_analyzed_total",
		Help: "The total number of analysis attempts by outcome",
	}, []string{"status"})

	IdeasStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideas_stored_total",
		Help: "The total number of rows written by table",
	}, []string{"table"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideas_notifications_total",
		Help: "The total number of notification attempts by outcome",
	}, []string{"status"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ideas_llm_request_duration_seconds",
		Help:    "Duration of generation requests",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"provider"})

	PipelineRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ideas_pipeline_run_duration_seconds",
		Help:    "Duration in seconds of a full pipeline run",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
	})

	PipelineLastRunRelevant = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ideas_pipeline_last_run_relevant",
		Help: "Number of relevant ideas produced by the last pipeline run",
	})
)
