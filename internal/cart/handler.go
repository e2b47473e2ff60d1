// handler.go -- HTTP handlers for /api/orders/*.
package cart

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MGallo-Code/bikeville/internal/auth"
	"github.com/MGallo-Code/bikeville/internal/faults"
)

// Handler serves the cart routes. All of them sit behind auth.RequireAuth.
type Handler struct {
	Cart   *Service
	Errors auth.ErrorRecorder
}

const maxBodyBytes = 1 << 16

// List handles GET /api/orders/{id} for the customer themself or an admin.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, err := auth.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		auth.Fail(w, r, h.Errors, err)
		return
	}
	who, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		auth.Fail(w, r, h.Errors, faults.Unauthorized("unauthorized"))
		return
	}
	if who.ID != id && !who.IsAdmin() {
		auth.Fail(w, r, h.Errors, faults.New(http.StatusForbidden, "forbidden"))
		return
	}

	items, err := h.Cart.List(r.Context(), id)
	if err != nil {
		auth.Fail(w, r, h.Errors, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, items)
}

// Add handles POST /api/orders -- puts a product in the caller's cart.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	who, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		auth.Fail(w, r, h.Errors, faults.Unauthorized("Session is expired."))
		return
	}
	var in AddInput
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		auth.Fail(w, r, h.Errors, faults.Wrap(err, faults.CodeBadRequest, "invalid request body"))
		return
	}

	it, err := h.Cart.Add(r.Context(), who.ID, in)
	if err != nil {
		auth.Fail(w, r, h.Errors, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		ID      int    `json:"id"`
	}{"Product created successfully", it.ID})
}

// Increase handles PUT /api/orders/increase/{productId}.
func (h *Handler) Increase(w http.ResponseWriter, r *http.Request) {
	customerID, productID, ok := h.target(w, r)
	if !ok {
		return
	}
	it, err := h.Cart.Increase(r.Context(), customerID, productID)
	if err != nil {
		auth.Fail(w, r, h.Errors, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, it)
}

// Decrease handles PUT /api/orders/decrease/{productId}.
// The last unit removes the row and answers {removed, productId}.
func (h *Handler) Decrease(w http.ResponseWriter, r *http.Request) {
	customerID, productID, ok := h.target(w, r)
	if !ok {
		return
	}
	it, removed, err := h.Cart.Decrease(r.Context(), customerID, productID)
	if err != nil {
		auth.Fail(w, r, h.Errors, err)
		return
	}
	if removed {
		auth.WriteJSON(w, http.StatusOK, struct {
			Removed   bool `json:"removed"`
			ProductID int  `json:"productId"`
		}{true, productID})
		return
	}
	auth.WriteJSON(w, http.StatusOK, it)
}

// Delete handles DELETE /api/orders/delete/{productId}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	customerID, productID, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.Cart.Remove(r.Context(), customerID, productID); err != nil {
		auth.Fail(w, r, h.Errors, err)
		return
	}
	auth.OK(w, "Product removed successfully")
}

// target resolves the caller's customer id and the productId path segment.
// Writes the error response and reports false on failure.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (customerID, productID int, ok bool) {
	who, ok := auth.IdentityFromContext(r.Context())
	if !ok || who.ID <= 0 {
		auth.Fail(w, r, h.Errors, faults.Unauthorized("invalid customer id"))
		return 0, 0, false
	}
	productID, err := auth.ParseID(chi.URLParam(r, "productId"))
	if err != nil {
		auth.Fail(w, r, h.Errors, err)
		return 0, 0, false
	}
	return who.ID, productID, true
}
