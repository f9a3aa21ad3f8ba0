package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"tasknote-backend/application/services"
	"tasknote-backend/interfaces/http/rest/middleware"
	pkgerrors "tasknote-backend/pkg/errors"
)

// UserHandler handles user-related HTTP requests. The authenticated user is
// resolved by the middleware; there is no self-registration endpoint.
type UserHandler struct {
	users  *services.UserService
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *services.UserService, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, errors: errors, logger: logger}
}

// UpdateEmailRequest represents the request body for updating the email
type UpdateEmailRequest struct {
	Email string `json:"email"`
}

// GetMe handles GET /me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserView(user))
}

// UpdateEmail handles PUT /me/email
func (h *UserHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req UpdateEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError([]pkgerrors.FieldError{
			{Field: "body", Message: "invalid request body"},
		}))
		return
	}

	if err := h.users.UpdateEmail(r.Context(), user, req.Email); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserView(user))
}

// DeleteMe handles DELETE /me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.users.Delete(r.Context(), user); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
