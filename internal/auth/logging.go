// logging.go -- Request-scoped logging helpers.
//
// Every line carries the chi request id, client address, method and path, plus
// the authenticated customer when RequireAuth has run.
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

func reqAttrs(r *http.Request) []any {
	attrs := []any{
		"request_id", middleware.GetReqID(r.Context()),
		"ip", r.RemoteAddr,
		"method", r.Method,
		"path", r.URL.Path,
	}
	if id, ok := IdentityFromContext(r.Context()); ok {
		attrs = append(attrs, "customer_id", id.ID)
	}
	return attrs
}

func logAt(r *http.Request, level slog.Level, msg string, args ...any) {
	slog.Log(context.WithoutCancel(r.Context()), level, msg, append(reqAttrs(r), args...)...)
}

func logDebug(r *http.Request, msg string, args ...any) { logAt(r, slog.LevelDebug, msg, args...) }
func logInfo(r *http.Request, msg string, args ...any)  { logAt(r, slog.LevelInfo, msg, args...) }
func logWarn(r *http.Request, msg string, args ...any)  { logAt(r, slog.LevelWarn, msg, args...) }
func logError(r *http.Request, msg string, args ...any) { logAt(r, slog.LevelError, msg, args...) }
