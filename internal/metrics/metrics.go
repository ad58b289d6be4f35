// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendRequests times every call made to the recognition backend.
	BackendRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facedesk",
		Subsystem: "backend",
		Name:      "request_duration_seconds",
		Help:      "Duration of requests to the recognition backend.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "outcome"})

	// CaptureAttempts counts settled capture attempts by outcome.
	CaptureAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facedesk",
		Subsystem: "capture",
		Name:      "attempts_total",
		Help:      "Capture attempts by outcome.",
	}, []string{"outcome"})

	// CameraStreaming is 1 while the camera lease is held.
	CameraStreaming = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facedesk",
		Subsystem: "camera",
		Name:      "streaming",
		Help:      "Whether the kiosk currently holds the camera device.",
	})

	// Registrations counts enrolment uploads by outcome.
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facedesk",
		Subsystem: "registration",
		Name:      "submissions_total",
		Help:      "Registration uploads by outcome.",
	}, []string{"outcome"})

	// JournalWrites counts journal entries written by the worker.
	JournalWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facedesk",
		Subsystem: "journal",
		Name:      "writes_total",
		Help:      "Capture attempt journal writes by result.",
	}, []string{"result"})
)
