package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footfall_analyses_total",
		Help: "Total number of video analyses, by outcome",
	}, []string{"outcome"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "footfall_analysis_duration_seconds",
		Help:    "Duration of analysis pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "footfall_frames_sampled_total",
		Help: "Total number of frames sampled across all analyses",
	})

	VisitorsDetected = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "footfall_visitors_detected",
		Help:    "Visitor count reported per analysis",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	})

	ActiveAnalyses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "footfall_active_analyses",
		Help: "Number of analyses currently in flight",
	})

	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footfall_queue_deliveries_total",
		Help: "Analysis queue deliveries, by how they were settled",
	}, []string{"result"})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footfall_retry_total",
		Help: "Total number of job retries",
	}, []string{"attempt"})
)
