package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchRequestsTotal  *prometheus.CounterVec
	searchConfidence     *prometheus.CounterVec
	searchNoResultTotal  *prometheus.CounterVec
	searchCandidates     *prometheus.HistogramVec
	searchDuration       *prometheus.HistogramVec
	searchDegradedTotal  *prometheus.CounterVec
	rerankAppliedTotal   *prometheus.CounterVec
	expansionQueries     *prometheus.HistogramVec
	dedupRemovedTotal    *prometheus.CounterVec
	keywordRebuildsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsearch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medsearch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "medsearch",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsearch",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total completed retrieval requests.",
		},
		[]string{"service", "endpoint"},
	)
	searchConfidence := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsearch",
			Subsystem: "retrieval",
			Name:      "confidence_total",
			Help:      "Completed retrieval requests by confidence band.",
		},
		[]string{"service", "endpoint", "confidence"},
	)
	searchNoResultTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsearch",
			Subsystem: "retrieval",
			Name:      "no_result_total",
			Help:      "Retrieval requests that returned no candidates.",
		},
		[]string{"service", "endpoint"},
	)
	searchCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medsearch",
			Subsystem: "retrieval",
			Name:      "candidates",
			Help:      "Distribution of returned candidates per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medsearch",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	searchDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsearch",
			Subsystem: "retrieval",
			Name:      "degraded_total",
			Help:      "Retrieval requests served with one index unavailable.",
		},
		[]string{"service", "endpoint"},
	)
	rerankAppliedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsearch",
			Subsystem: "retrieval",
			Name:      "rerank_applied_total",
			Help:      "Retrieval requests by whether cross-encoder reranking ran.",
		},
		[]string{"service", "endpoint", "applied"},
	)
	expansionQueries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medsearch",
			Subsystem: "retrieval",
			Name:      "expansion_queries",
			Help:      "Distribution of query variants per request, original included.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"service", "endpoint"},
	)
	dedupRemovedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsearch",
			Subsystem: "corpus",
			Name:      "dedup_removed_total",
			Help:      "Documents removed by executed dedup passes.",
		},
		[]string{"service"},
	)
	keywordRebuildsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsearch",
			Subsystem: "corpus",
			Name:      "keyword_rebuilds_total",
			Help:      "Keyword index rebuilds by trigger.",
		},
		[]string{"service", "trigger"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchRequestsTotal,
		searchConfidence,
		searchNoResultTotal,
		searchCandidates,
		searchDuration,
		searchDegradedTotal,
		rerankAppliedTotal,
		expansionQueries,
		dedupRemovedTotal,
		keywordRebuildsTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		searchRequestsTotal:  searchRequestsTotal,
		searchConfidence:     searchConfidence,
		searchNoResultTotal:  searchNoResultTotal,
		searchCandidates:     searchCandidates,
		searchDuration:       searchDuration,
		searchDegradedTotal:  searchDegradedTotal,
		rerankAppliedTotal:   rerankAppliedTotal,
		expansionQueries:     expansionQueries,
		dedupRemovedTotal:    dedupRemovedTotal,
		keywordRebuildsTotal: keywordRebuildsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSearch(service, endpoint string, candidateCount int, confidence string, rerankApplied bool, degraded bool, expansionCount int, duration time.Duration) {
	m.searchRequestsTotal.WithLabelValues(service, endpoint).Inc()
	m.searchCandidates.WithLabelValues(service, endpoint).Observe(float64(candidateCount))
	m.searchDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if confidence == "" {
		confidence = "none"
	}
	m.searchConfidence.WithLabelValues(service, endpoint, confidence).Inc()
	m.rerankAppliedTotal.WithLabelValues(service, endpoint, strconv.FormatBool(rerankApplied)).Inc()
	if expansionCount > 0 {
		m.expansionQueries.WithLabelValues(service, endpoint).Observe(float64(expansionCount))
	}
	if degraded {
		m.searchDegradedTotal.WithLabelValues(service, endpoint).Inc()
	}
	if candidateCount == 0 {
		m.searchNoResultTotal.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordDedupRemoved(service string, removed int) {
	if removed <= 0 {
		return
	}
	m.dedupRemovedTotal.WithLabelValues(service).Add(float64(removed))
}

func (m *HTTPServerMetrics) RecordKeywordRebuild(service, trigger string) {
	if trigger == "" {
		trigger = "unknown"
	}
	m.keywordRebuildsTotal.WithLabelValues(service, trigger).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
