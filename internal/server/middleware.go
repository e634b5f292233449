// Provides the middleware chain wrapped around the router.

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/maruel/calnotes/internal/server/dto"
	"github.com/maruel/calnotes/internal/server/ipgeo"
	"github.com/maruel/calnotes/internal/server/reqctx"
	"github.com/maruel/ksid"
)

// Headers exchanged with clients.
const (
	RequestIDHeader = "X-Request-ID"
	ClientIDHeader  = "X-Client-ID"
)

// statusWriter records the status code for the access log.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// withRequestMetadata assigns a request ID and stores the client metadata in
// the request context.
func withRequestMetadata(geo *ipgeo.Checker, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ksid.NewID()
		ip := reqctx.GetClientIP(r)
		ctx := reqctx.WithRequestID(r.Context(), id)
		ctx = reqctx.WithClientIP(ctx, ip)
		ctx = reqctx.WithUserAgent(ctx, r.Header.Get("User-Agent"))
		ctx = reqctx.WithCountryCode(ctx, geo.CountryCode(ip))
		if cid := r.Header.Get(ClientIDHeader); cid != "" {
			ctx = reqctx.WithClientID(ctx, cid)
		}
		w.Header().Set(RequestIDHeader, id.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog logs one line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(ww, r)
		ctx := r.Context()
		level := slog.LevelInfo
		if ww.status >= http.StatusInternalServerError {
			level = slog.LevelError
		} else if r.URL.Path == "/health" {
			level = slog.LevelDebug
		}
		slog.Log(ctx, level, "http",
			"id", reqctx.RequestID(ctx),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"size", ww.size,
			"dur", time.Since(start).Round(time.Microsecond),
			"ip", reqctx.ClientIP(ctx),
			"country", reqctx.CountryCode(ctx),
			"client", reqctx.ClientID(ctx),
		)
	})
}

// recoverPanics turns a panic into a 500 failure envelope.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := &statusWriter{ResponseWriter: w}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
				panic(rec)
			}
			ctx := r.Context()
			slog.ErrorContext(ctx, "Handler panic", "err", fmt.Sprint(rec), "stack", string(debug.Stack()))
			if ww.status != 0 {
				// Too late for an envelope.
				return
			}
			writeErrorResponse(ww, dto.Internal("Internal server error"))
		}()
		next.ServeHTTP(ww, r)
	})
}

// cors allows any origin and answers preflight requests.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+ClientIDHeader)
		h.Set("Access-Control-Expose-Headers", RequestIDHeader+", Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// notFound answers every request with a 404 failure envelope.
func notFound(w http.ResponseWriter, r *http.Request) {
	writeErrorResponse(w, dto.NotFound("Route "+r.Method+" "+r.URL.Path))
}
