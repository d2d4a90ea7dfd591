// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrganizeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "torboxarr_organize_runs_total",
		Help: "Organization runs per download, by result.",
	}, []string{"result"})

	FilesTransferred = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "torboxarr_files_transferred_total",
		Help: "Files handled by the transfer stage, by mode and outcome.",
	}, []string{"mode", "outcome"})

	ArrEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "torboxarr_arr_evaluations_total",
		Help: "Tracked show evaluations, by outcome.",
	}, []string{"outcome"})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "torboxarr_submissions_total",
		Help: "Torrent submissions, by destination (remote, queue, error).",
	}, []string{"destination"})

	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "torboxarr_queue_length",
		Help: "Submissions waiting for a free remote slot.",
	})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "torboxarr_search_duration_seconds",
		Help:    "Search provider latency.",
		Buckets: prometheus.DefBuckets,
	})
)
