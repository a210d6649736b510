// Package metrics exposes the Prometheus collectors shared by handlers and workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExamsCreated counts exam creation attempts through the form.
	ExamsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examguard_exams_created_total",
			Help: "Total number of exam creation attempts",
		},
		[]string{"status"}, // status: created/invalid/failed
	)

	// ActiveExamStreams tracks connected student exam WebSockets.
	ActiveExamStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "examguard_exam_streams_current",
			Help: "Current number of connected student exam streams",
		},
	)

	// ActiveCameraSessions tracks capture sessions holding a camera lease.
	ActiveCameraSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "examguard_camera_sessions_current",
			Help: "Current number of active proctoring camera sessions",
		},
	)

	// CameraStartFailures counts failed capture session starts by reason.
	CameraStartFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examguard_camera_start_failures_total",
			Help: "Total number of failed camera session starts",
		},
		[]string{"reason"}, // reason: busy/cancelled/error
	)

	// NavigatorActions counts student navigation actions by kind and outcome.
	NavigatorActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examguard_navigator_actions_total",
			Help: "Total number of exam navigation actions",
		},
		[]string{"action", "status"},
	)

	// Submissions counts recorded exam submissions.
	Submissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "examguard_submissions_total",
			Help: "Total number of recorded exam submissions",
		},
	)

	// ProctorEvents counts reported proctoring events by kind.
	ProctorEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examguard_proctor_events_total",
			Help: "Total number of reported proctoring events",
		},
		[]string{"kind"},
	)

	// QueueDepth is the backlog of each persistence queue, sampled by the
	// health endpoint.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "examguard_queue_depth",
			Help: "Pending items in a Redis persistence queue",
		},
		[]string{"queue"},
	)

	// WorkerBatchDuration observes how long a worker takes to flush one batch.
	WorkerBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "examguard_worker_batch_duration_seconds",
			Help:    "Time spent flushing one worker batch to PostgreSQL",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"worker"},
	)
)
