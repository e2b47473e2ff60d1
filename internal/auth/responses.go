// responses.go -- Package-wide HTTP response helpers.
//
// Shared by the auth and cart handlers. Every error leaving a handler goes
// through Fail, which records it and answers with the fault's status.
package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/MGallo-Code/bikeville/internal/faults"
)

// ErrorRecorder persists a failure on behalf of a user.
// Satisfied by *errlog.Logger. Persist must not block the response on failure.
type ErrorRecorder interface {
	Persist(ctx context.Context, err error, userName string)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Fail records err through rec (nil rec skips recording) and writes the mapped
// error response. The acting user is the authenticated email, if any.
// 5xx responses never carry internal details.
func Fail(w http.ResponseWriter, r *http.Request, rec ErrorRecorder, err error) {
	if rec != nil {
		var user string
		if id, ok := IdentityFromContext(r.Context()); ok {
			user = id.Email
		}
		rec.Persist(r.Context(), err, user)
	}
	writeFault(w, r, err)
}

// writeFault writes the response for err without recording it.
func writeFault(w http.ResponseWriter, r *http.Request, err error) {
	status := faults.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logError(r, "request failed", "status", status, "error", err)
	} else {
		logWarn(r, "request rejected", "status", status, "error", err)
	}
	WriteJSON(w, status, errorBody{Message: faults.PublicMessage(err), Code: status})
}

// OK returns a 200 JSON response with the given message.
func OK(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
	}{message})
}
