package logging

import (
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/upb/ecs-app/config"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request uuid in and out of the process
const RequestIDHeader = "X-Request-Id"

const maxRequestIDLength = 255

var unsafeRequestIDChars = regexp.MustCompile(`[^\w\-@]`)

// Tagged returns middleware that resolves tags for every request, stores a
// logger carrying them in the request context and logs one line when the
// request completes. Tags keep the configured order.
func Tagged(logger *zap.Logger, tags []config.LogTag) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := resolveRequestID(r)
			w.Header().Set(RequestIDHeader, requestID)

			reqLogger := logger.With(zap.Strings("tags", TagValues(r, requestID, tags)))
			ctx := WithRequestID(r.Context(), requestID)
			ctx = WithLogger(ctx, reqLogger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			if status >= http.StatusInternalServerError {
				reqLogger.Error("request completed", fields...)
				return
			}
			reqLogger.Info("request completed", fields...)
		})
	}
}

// TagValues resolves the value of each tag for r
func TagValues(r *http.Request, requestID string, tags []config.LogTag) []string {
	values := make([]string, 0, len(tags))
	for _, tag := range tags {
		switch tag {
		case config.LogTagSubdomain:
			values = append(values, Subdomain(r.Host))
		case config.LogTagUUID:
			values = append(values, requestID)
		default:
			values = append(values, "")
		}
	}
	return values
}

// Subdomain returns everything left of the registrable domain, assuming a
// one-label TLD: "a.b.example.com" -> "a.b". IPs and single-label hosts
// have no subdomain.
func Subdomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return ""
	}
	return strings.Join(labels[:len(labels)-2], ".")
}

// resolveRequestID keeps a sanitized incoming X-Request-Id or mints a UUID
func resolveRequestID(r *http.Request) string {
	id := unsafeRequestIDChars.ReplaceAllString(r.Header.Get(RequestIDHeader), "")
	if len(id) > maxRequestIDLength {
		id = id[:maxRequestIDLength]
	}
	if id == "" {
		return uuid.NewString()
	}
	return id
}
