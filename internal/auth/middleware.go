// middleware.go

// Bearer token authentication, role gating and panic recovery.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/MGallo-Code/bikeville/internal/errlog"
	"github.com/MGallo-Code/bikeville/internal/faults"
)

// contextKey is unexported to prevent collisions with other packages using the same context.
type contextKey string

const identityKey contextKey = "identity"

// IdentityFromContext retrieves the authenticated identity.
// Returns false if RequireAuth hasn't run.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// WithIdentity returns ctx carrying id, as RequireAuth would set it.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth validates the bearer token and injects its identity into the
// request context. Returns 401 on a missing or invalid token.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			logWarn(r, "require auth failed", "reason", "missing_bearer_token")
			writeFault(w, r, faults.Unauthorized("unauthorized"))
			return
		}
		claims, err := h.Tokens.Validate(token)
		if err != nil {
			logWarn(r, "require auth failed", "reason", "invalid_token", "error", err)
			writeFault(w, r, faults.Unauthorized("unauthorized"))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.Identity())))
	})
}

// RequireAdmin rejects with 401 unless the token's role claim is Admin.
// Must run after RequireAuth. The role is read from the token only.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok || !id.IsAdmin() {
			logWarn(r, "require admin failed", "email", id.Email, "role", id.Role)
			writeFault(w, r, faults.Unauthorized("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Recoverer turns a handler panic into a recorded 500. The goroutine stack is
// attached so the error log can point at the panicking line.
func Recoverer(rec ErrorRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				err := errlog.WithTrace(panicError(p), string(debug.Stack()))
				Fail(w, r, rec, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// panicError converts a recovered value into an error that keeps its kind.
func panicError(p any) error {
	if err, ok := p.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", p)
}
