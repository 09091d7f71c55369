package httpadapter

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

type requestIDContextKey struct{}

func requestIDFrom(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

// withRequestID trusts a caller-supplied X-Request-Id so the chatbot gateway
// can correlate its own traces, minting a fresh one otherwise. The id is
// echoed back on the response and carried in the request context for the
// access log and error payloads.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDContextKey{}, requestID)
		w.Header().Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withRecovery converts handler panics into a 500 JSON error instead of
// tearing down the connection. It sits innermost so the access log still
// records the failed request.
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.Error("api_panic",
				"request_id", requestIDFrom(r.Context()),
				"route", routeLabel(r.URL.Path),
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":      "internal server error",
				"request_id": requestIDFrom(r.Context()),
			})
		}()

		next.ServeHTTP(w, r)
	})
}

// withAccessLog emits one structured api_request line per request. Probe
// traffic on /healthz and /metrics logs at debug so scrapers do not drown
// out real retrieval traffic.
func withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		meter := &responseMeter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(meter, r)

		level := slog.LevelInfo
		switch {
		case meter.status >= 500:
			level = slog.LevelError
		case meter.status >= 400:
			level = slog.LevelWarn
		case r.URL.Path == "/healthz" || r.URL.Path == "/metrics":
			level = slog.LevelDebug
		}

		slog.LogAttrs(r.Context(), level, "api_request",
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.String("method", r.Method),
			slog.String("route", routeLabel(r.URL.Path)),
			slog.String("path", r.URL.Path),
			slog.Int("status", meter.status),
			slog.Int("bytes", meter.bytes),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", clientIP(r)),
			slog.String("user_agent", r.UserAgent()),
		)
	})
}

// routeLabel collapses path parameters so log lines and dashboards group by
// endpoint rather than by document id.
func routeLabel(path string) string {
	if rest, ok := strings.CutPrefix(path, "/v1/documents/"); ok && rest != "" {
		return "/v1/documents/{id}"
	}
	return path
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// responseMeter captures the status code and body size for the access log.
// Unwrap lets http.ResponseController reach Flush/Hijack on the underlying
// writer without the meter reimplementing those interfaces.
type responseMeter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (m *responseMeter) WriteHeader(status int) {
	if !m.wroteHeader {
		m.status = status
		m.wroteHeader = true
	}
	m.ResponseWriter.WriteHeader(status)
}

func (m *responseMeter) Write(b []byte) (int, error) {
	m.wroteHeader = true
	n, err := m.ResponseWriter.Write(b)
	m.bytes += n
	return n, err
}

func (m *responseMeter) Unwrap() http.ResponseWriter {
	return m.ResponseWriter
}
