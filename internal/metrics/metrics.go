// Package metrics holds the daemon's Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobsTotal counts finished jobs.
	// Labels: kind (hotkey/auto), outcome (done/failed/silent)
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dictate_jobs_total",
			Help: "Total number of transcription jobs by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// InferenceTotal counts recognizer results by the path that produced them.
	// Labels: path (accelerated/cpu), fallback (""/error/empty)
	InferenceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dictate_inference_total",
			Help: "Total number of inference results by execution path and fallback reason",
		},
		[]string{"path", "fallback"},
	)

	// JobDuration observes end-to-end job time in seconds.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dictate_job_duration_seconds",
			Help:    "Transcription job duration in seconds by kind",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	// AutoQueueDepth is the number of queued, not yet active, auto jobs.
	AutoQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dictate_auto_queue_depth",
			Help: "Number of auto-ingest jobs waiting for the recognizer",
		},
	)

	// ModelReady is 1 once the configured model is available locally.
	ModelReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dictate_model_ready",
			Help: "Model readiness (0=not ready, 1=ready)",
		},
	)
)

// RecordJob records one finished job.
func RecordJob(kind string, outcome string, elapsed time.Duration) {
	JobsTotal.WithLabelValues(kind, outcome).Inc()
	JobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordInference records which path produced a recognizer result.
func RecordInference(path string, fallback string) {
	InferenceTotal.WithLabelValues(path, fallback).Inc()
}

// SetModelReady sets the model readiness gauge.
func SetModelReady(ready bool) {
	if ready {
		ModelReady.Set(1)
	} else {
		ModelReady.Set(0)
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, lis)
}

func serve(ctx context.Context, lis net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
