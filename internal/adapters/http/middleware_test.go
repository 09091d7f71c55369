package httpadapter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func middlewareChain(h http.Handler) http.Handler {
	return withRequestID(withAccessLog(withRecovery(h)))
}

func TestRequestIDEchoedAndMintedWhenMissing(t *testing.T) {
	handler := middlewareChain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := requestIDFrom(r.Context()); got == "" {
			t.Fatalf("expected request id in context")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/search", nil))
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated %s header", requestIDHeader)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/search", nil)
	req.Header.Set(requestIDHeader, "gateway-trace-7")
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "gateway-trace-7" {
		t.Fatalf("expected caller request id echoed, got %q", got)
	}
}

func TestRecoveryTurnsPanicInto500JSON(t *testing.T) {
	handler := middlewareChain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil index")
	}))

	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))
	defer slog.SetDefault(prev)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/answer", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("expected JSON error body, got %v", err)
	}
	if body["error"] != "internal server error" {
		t.Fatalf("unexpected error body: %v", body)
	}
	if body["request_id"] == "" {
		t.Fatalf("expected request id in error body")
	}
}

func TestAccessLogRecordsStatusBytesAndRoute(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	defer slog.SetDefault(prev)

	handler := middlewareChain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-42", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	handler.ServeHTTP(rec, req)

	var entry struct {
		Level    string `json:"level"`
		Msg      string `json:"msg"`
		Route    string `json:"route"`
		Status   int    `json:"status"`
		Bytes    int    `json:"bytes"`
		ClientIP string `json:"client_ip"`
	}
	if err := json.Unmarshal(logs.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", logs.String(), err)
	}
	if entry.Msg != "api_request" {
		t.Fatalf("expected api_request event, got %q", entry.Msg)
	}
	if entry.Level != "WARN" {
		t.Fatalf("expected WARN for 404, got %s", entry.Level)
	}
	if entry.Route != "/v1/documents/{id}" {
		t.Fatalf("expected collapsed route label, got %q", entry.Route)
	}
	if entry.Status != http.StatusNotFound || entry.Bytes == 0 {
		t.Fatalf("expected status/bytes recorded, got %+v", entry)
	}
	if entry.ClientIP != "203.0.113.9" {
		t.Fatalf("expected first forwarded hop, got %q", entry.ClientIP)
	}
}

func TestAccessLogDemotesProbeEndpoints(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	defer slog.SetDefault(prev)

	handler := middlewareChain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	// Default handler level is INFO; a healthy healthz must log at DEBUG
	// and therefore be dropped.
	if strings.Contains(logs.String(), "api_request") {
		t.Fatalf("expected healthz access log suppressed at info level, got %q", logs.String())
	}
}

func TestRouteLabel(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/v1/search", "/v1/search"},
		{"/v1/documents", "/v1/documents"},
		{"/v1/documents/", "/v1/documents/"},
		{"/v1/documents/doc-7", "/v1/documents/{id}"},
		{"/healthz", "/healthz"},
	}
	for _, tc := range cases {
		if got := routeLabel(tc.path); got != tc.want {
			t.Fatalf("routeLabel(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
