// Package metrics exposes Prometheus collectors for the interview pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "interviewd"

var (
	// TurnsTotal counts chat turns. Labels: outcome (canned, generated, completed, rejected, failed, conflict)
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "turns_total",
			Help:      "Total number of chat turns by outcome",
		},
		[]string{"outcome"},
	)

	// ClassifierLabels counts classifier decisions. Labels: label
	ClassifierLabels = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "labels_total",
			Help:      "Total number of classified messages by label",
		},
		[]string{"label"},
	)

	// CompletionDuration tracks completion-call latency. Labels: call_site (turn, extraction, structured), result
	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "completion_duration_seconds",
			Help:      "Duration of completion calls in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"call_site", "result"},
	)

	// ChunksIngested counts chunks seen during ingestion. Labels: outcome (stored, skipped, failed)
	ChunksIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "chunks_total",
			Help:      "Total number of document chunks by ingestion outcome",
		},
		[]string{"outcome"},
	)

	// RetrievalResults observes how many chunks a retrieval returned. Labels: mode (targeted, bulk)
	RetrievalResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "results",
			Help:      "Number of chunks returned per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"mode"},
	)

	// RulesExtracted counts rules kept after validation and dedup. Labels: mode (structured, text)
	RulesExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "rules_total",
			Help:      "Total number of extracted rules",
		},
		[]string{"mode"},
	)

	// ExtractionRuns counts extraction runs. Labels: result (success, empty, error)
	ExtractionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "runs_total",
			Help:      "Total number of rule extraction runs by result",
		},
		[]string{"result"},
	)
)

// ObserveCompletion records a completion call that started at start.
func ObserveCompletion(callSite string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	CompletionDuration.WithLabelValues(callSite, result).Observe(time.Since(start).Seconds())
}
