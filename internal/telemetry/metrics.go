package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tbv"

var (
	searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "requests_total",
		Help:      "Search requests by mode and whether the keyword fallback was used",
	}, []string{"mode", "degraded"})

	searchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "latency_seconds",
		Help:      "Search latency in seconds",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"mode"})

	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "judge",
		Name:      "verifications_total",
		Help:      "Completed verifications by final verdict",
	}, []string{"verdict"})

	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "judge",
		Name:      "phase_duration_seconds",
		Help:      "Duration of each verification phase in seconds",
		Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 180},
	}, []string{"phase"})

	jurorCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jury",
		Name:      "calls_total",
		Help:      "Juror deliberations by juror and status (ok, error)",
	}, []string{"juror", "status"})

	jurorLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "jury",
		Name:      "latency_seconds",
		Help:      "Juror round trip latency in seconds, retries included",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"juror"})

	batchCitations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "citations_total",
		Help:      "Report citations processed by outcome (verified, unverified, parse_error)",
	}, []string{"outcome"})

	indexChunks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "chunks",
		Help:      "Chunks in the active index generation",
	})
)

// RecordSearch records one search request
func RecordSearch(mode string, degraded bool, d time.Duration) {
	flag := "false"
	if degraded {
		flag = "true"
	}
	searches.WithLabelValues(mode, flag).Inc()
	searchLatency.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordVerification records a completed Judge invocation
func RecordVerification(verdict string) {
	verifications.WithLabelValues(verdict).Inc()
}

// RecordPhase records how long a verification phase ("existence", "quote", "jury") took
func RecordPhase(phase string, d time.Duration) {
	phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordJurorCall records one juror deliberation
func RecordJurorCall(juror string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	jurorCalls.WithLabelValues(juror, status).Inc()
	jurorLatency.WithLabelValues(juror).Observe(d.Seconds())
}

// RecordCitation records a batch citation outcome
func RecordCitation(outcome string) {
	batchCitations.WithLabelValues(outcome).Inc()
}

// SetIndexChunks publishes the chunk count of a newly built index
func SetIndexChunks(n int) {
	indexChunks.Set(float64(n))
}

// Handler returns the HTTP handler exposing the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
