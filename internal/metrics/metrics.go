// Package metrics exposes prometheus collectors for the ingestion path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LinesParsed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loglens_lines_parsed_total",
			Help: "Total log lines parsed across all runs",
		},
	)
	MalformedLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loglens_lines_malformed_total",
			Help: "Total lines that failed strict JSON decoding",
		},
	)
	BatchesFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loglens_batches_flushed_total",
			Help: "Total entry batches persisted",
		},
	)
	PluginCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loglens_plugin_calls_total",
			Help: "Enrichment stage calls by stage address",
		},
		[]string{"stage"},
	)
	PluginFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loglens_plugin_failures_total",
			Help: "Enrichment stage calls that failed and were skipped",
		},
		[]string{"stage"},
	)
	RunsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loglens_runs_ingested_total",
			Help: "Ingestion runs by final status",
		},
		[]string{"status"},
	)
)
