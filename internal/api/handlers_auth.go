package api

import (
	"errors"
	"net/http"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/models"
)

// Register creates a new account. New accounts always get the user role.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), models.ErrorCodeValidation)
		return
	}

	user, err := h.authService.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			h.writeError(w, http.StatusConflict, "Username already taken", models.ErrorCodeConflict)
			return
		}
		h.logger.Error("registration failed", "username", req.Username, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to register user", models.ErrorCodeInternalError)
		return
	}

	h.writeJSON(w, http.StatusCreated, user)
}

// Login verifies credentials and returns a signed token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), models.ErrorCodeValidation)
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, "Invalid username or password", models.ErrorCodeUnauthorized)
			return
		}
		h.logger.Error("login failed", "username", req.Username, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to log in", models.ErrorCodeInternalError)
		return
	}

	h.writeJSON(w, http.StatusOK, models.AuthResponse{Token: token, Role: user.Role})
}
