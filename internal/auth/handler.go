// handler.go -- HTTP handlers for /loginjwt/* and /api/customers/*.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MGallo-Code/bikeville/internal/faults"
)

// HealthChecker is a dependency that can report its own health.
// Satisfied by *store.PostgresStore and *store.RedisStore.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// AuthHandler holds dependencies for the login and customer HTTP handlers.
type AuthHandler struct {
	Identity *IdentityService
	Tokens   *TokenIssuer
	Errors   ErrorRecorder

	PS HealthChecker
	RS HealthChecker
}

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Login ---

// Login handles POST /loginjwt -- email + password authentication.
// Returns 200 {token}, or 401 for malformed input, unknown email or wrong password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		Fail(w, r, h.Errors, faults.Wrap(err, faults.CodeUnauthorized, errInvalidCredentials))
		return
	}

	token, id, err := h.Identity.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		Fail(w, r, h.Errors, err)
		return
	}

	logInfo(r, "user logged in", "customer_id", id.ID, "role", id.Role)
	WriteJSON(w, http.StatusOK, struct {
		Token string `json:"token"`
	}{token})
}

// AdminCheck handles POST /loginjwt/admin/{email} -- reports whether email is an Admin.
// Returns a bare JSON boolean.
func (h *AuthHandler) AdminCheck(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	ok, err := h.Identity.IsAdmin(r.Context(), email)
	if err != nil {
		Fail(w, r, h.Errors, err)
		return
	}
	logDebug(r, "admin check", "email", email, "admin", ok)
	WriteJSON(w, http.StatusOK, ok)
}

// ValidateToken handles GET /loginjwt/validate behind RequireAuth and RequireAdmin.
// Echoes the token's identity.
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeFault(w, r, faults.Unauthorized("unauthorized"))
		return
	}
	WriteJSON(w, http.StatusOK, identityBody(id))
}

type identityResponse struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ID        int    `json:"Id"`
	Role      string `json:"role"`
}

func identityBody(id Identity) identityResponse {
	return identityResponse{Email: id.Email, FirstName: id.FirstName, LastName: id.LastName, ID: id.ID, Role: id.Role}
}

// --- Customers ---

// Register handles POST /api/customers -- creates profile and credential.
// Returns 200 with customer id, 400 for invalid input, 409 if the email is taken.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		Fail(w, r, h.Errors, faults.Wrap(err, faults.CodeBadRequest, "invalid request body"))
		return
	}

	id, err := h.Identity.Register(r.Context(), in)
	if err != nil {
		Fail(w, r, h.Errors, err)
		return
	}

	WriteJSON(w, http.StatusOK, struct {
		Message    string `json:"message"`
		CustomerID int    `json:"customerId"`
	}{"Customer created successfully", id})
}

// ListCustomers handles GET /api/customers (admin only).
func (h *AuthHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Identity.ListProfiles(r.Context())
	if err != nil {
		Fail(w, r, h.Errors, err)
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

// GetCustomer handles GET /api/customers/{id} for the customer themself or an admin.
func (h *AuthHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := selfOrAdmin(r, chi.URLParam(r, "id"))
	if err != nil {
		Fail(w, r, h.Errors, err)
		return
	}
	c, err := h.Identity.GetProfile(r.Context(), id)
	if err != nil {
		Fail(w, r, h.Errors, err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

// UpdateCustomer handles PUT /api/customers/{id} for the customer themself or an admin.
// An email change moves the login credential; the old token stays valid until expiry.
func (h *AuthHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := selfOrAdmin(r, chi.URLParam(r, "id"))
	if err != nil {
		Fail(w, r, h.Errors, err)
		return
	}
	var in UpdateProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		Fail(w, r, h.Errors, faults.Wrap(err, faults.CodeBadRequest, "invalid request body"))
		return
	}
	c, err := h.Identity.UpdateProfile(r.Context(), id, in)
	if err != nil {
		Fail(w, r, h.Errors, err)
		return
	}
	logInfo(r, "customer updated", "customer_id", id)
	WriteJSON(w, http.StatusOK, c)
}

// DeleteCustomer handles DELETE /api/customers/{id} (admin only).
// Only the profile and cart go; the login credential survives.
func (h *AuthHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(chi.URLParam(r, "id"))
	if err != nil {
		Fail(w, r, h.Errors, err)
		return
	}
	if err := h.Identity.DeleteProfile(r.Context(), id); err != nil {
		Fail(w, r, h.Errors, err)
		return
	}
	logInfo(r, "customer deleted", "customer_id", id)
	WriteJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
	}{"Customer deleted successfully"})
}

// selfOrAdmin parses a customer id path segment and checks the caller may act on it.
func selfOrAdmin(r *http.Request, raw string) (int, error) {
	id, err := ParseID(raw)
	if err != nil {
		return 0, err
	}
	who, ok := IdentityFromContext(r.Context())
	if !ok {
		return 0, faults.Unauthorized("unauthorized")
	}
	if who.ID != id && !who.IsAdmin() {
		return 0, faults.New(http.StatusForbidden, "forbidden")
	}
	return id, nil
}

// ParseID parses a positive integer path segment. Invalid input is a 400.
func ParseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, faults.BadRequest("invalid id")
	}
	return id, nil
}
