package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vietcare/medsearch/internal/core/domain"
	"github.com/vietcare/medsearch/internal/core/ports"
	"github.com/vietcare/medsearch/internal/observability/metrics"
)

type Router struct {
	service   string
	search    ports.SearchService
	answer    ports.AnswerService
	indexer   ports.DocumentIndexer
	dedup     ports.CorpusDeduplicator
	repo      ports.DocumentRepository
	hospitals ports.HospitalLocator
	metrics   *metrics.HTTPServerMetrics
}

type RouterConfig struct {
	Service   string
	Search    ports.SearchService
	Answer    ports.AnswerService
	Indexer   ports.DocumentIndexer
	Dedup     ports.CorpusDeduplicator
	Repo      ports.DocumentRepository
	Hospitals ports.HospitalLocator
	Metrics   *metrics.HTTPServerMetrics
}

func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		service:   cfg.Service,
		search:    cfg.Search,
		answer:    cfg.Answer,
		indexer:   cfg.Indexer,
		dedup:     cfg.Dedup,
		repo:      cfg.Repo,
		hospitals: cfg.Hospitals,
		metrics:   cfg.Metrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/search", rt.searchDocuments)
	mux.HandleFunc("/v1/answer", rt.answerQuestion)
	mux.HandleFunc("/v1/documents", rt.upsertDocuments)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/hospitals", rt.findHospitals)
	mux.HandleFunc("/v1/admin/dedup", rt.runDedup)
	mux.HandleFunc("/v1/admin/reindex", rt.rebuildKeywordIndex)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	handler := withRequestID(withAccessLog(withRecovery(mux)))
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) searchDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	started := time.Now()
	result, err := rt.search.Search(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordSearch("search", result, time.Since(started))

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) answerQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	answer, err := rt.answer.Answer(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) upsertDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Documents []domain.Document `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if err := rt.indexer.UpsertDocuments(r.Context(), req.Documents); err != nil {
		writeError(w, err)
		return
	}

	// UpsertDocuments assigns ids to documents that arrived without one.
	ids := make([]string, len(req.Documents))
	for i, d := range req.Documents {
		ids[i] = d.ID
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ids": ids})
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := rt.repo.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		if err := rt.indexer.DeleteDocuments(r.Context(), []string{id}); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) findHospitals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lon are required"})
		return
	}

	query := domain.HospitalQuery{
		Lat:       lat,
		Lon:       lon,
		Specialty: q.Get("specialty"),
	}
	if v := q.Get("radius_km"); v != "" {
		radius, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid radius_km"})
			return
		}
		query.RadiusKM = radius
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		query.Limit = limit
	}

	hospitals, err := rt.hospitals.FindNearby(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hospitals": hospitals})
}

func (rt *Router) runDedup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	opts := domain.DedupOptions{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	report, err := rt.dedup.Run(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil && !report.DryRun {
		rt.metrics.RecordDedupRemoved(rt.service, report.Removed)
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) rebuildKeywordIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := rt.indexer.RebuildKeywordIndex(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordKeywordRebuild(rt.service, "admin")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

func (rt *Router) recordSearch(endpoint string, result *domain.SearchResult, duration time.Duration) {
	if rt.metrics == nil || result == nil {
		return
	}
	rt.metrics.RecordSearch(
		rt.service,
		endpoint,
		len(result.Candidates),
		string(result.Confidence),
		result.RerankApplied,
		len(result.Warnings) > 0,
		len(result.ExpandedQueries),
		duration,
	)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
