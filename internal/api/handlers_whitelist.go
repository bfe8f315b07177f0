package api

import (
	"errors"
	"net/http"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/models"
	"gatekeeper/internal/storage"

	"github.com/gorilla/mux"
)

// ListWhitelist returns all active whitelist entries, with each user's
// current role resolved at read time.
func (h *Handlers) ListWhitelist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.storage.WhitelistEntries(r.Context())
	if err != nil {
		h.logger.Error("failed to list whitelist entries", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to list whitelist", models.ErrorCodeInternalError)
		return
	}

	response := make([]models.WhitelistEntryResponse, 0, len(entries))
	for _, entry := range entries {
		role := ""
		if user, err := h.storage.GetUserByID(r.Context(), entry.UserID); err == nil {
			role = user.Role
		}
		response = append(response, models.WhitelistEntryResponse{
			ID:          entry.ID,
			UserID:      entry.UserID,
			Username:    entry.Username,
			Description: entry.Description,
			CreatedAt:   entry.CreatedAt,
			Active:      entry.Active,
			UserRole:    role,
		})
	}

	h.writeJSON(w, http.StatusOK, response)
}

// AddToWhitelist exempts a user from rate limiting. Re-adding a previously
// removed user reactivates the existing entry.
func (h *Handlers) AddToWhitelist(w http.ResponseWriter, r *http.Request) {
	var req models.WhitelistAddRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), models.ErrorCodeValidation)
		return
	}

	user, err := h.storage.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "User not found", models.ErrorCodeNotFound)
			return
		}
		h.logger.Error("failed to look up user for whitelisting", "username", req.Username, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to add to whitelist", models.ErrorCodeInternalError)
		return
	}

	if active, err := h.storage.IsWhitelisted(r.Context(), user.ID); err == nil && active {
		h.writeError(w, http.StatusConflict, "User is already whitelisted", models.ErrorCodeConflict)
		return
	}

	entry := models.NewWhitelistEntry(user.ID, user.Username, req.Description)
	if err := h.storage.SaveWhitelistEntry(r.Context(), entry); err != nil {
		h.logger.Error("failed to save whitelist entry", "username", req.Username, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to add to whitelist", models.ErrorCodeInternalError)
		return
	}

	h.logger.Info("user added to whitelist", "username", user.Username)
	h.writeJSON(w, http.StatusCreated, models.MessageResponse{
		Message: "User added to whitelist",
	})
}

// RemoveFromWhitelist deactivates a user's whitelist entry. The entry is
// retained as a soft-deleted record.
func (h *Handlers) RemoveFromWhitelist(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if err := h.storage.DeactivateWhitelistEntry(r.Context(), username); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "User is not whitelisted", models.ErrorCodeNotFound)
			return
		}
		h.logger.Error("failed to remove whitelist entry", "username", username, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to remove from whitelist", models.ErrorCodeInternalError)
		return
	}

	h.logger.Info("user removed from whitelist", "username", username)
	h.writeJSON(w, http.StatusOK, models.MessageResponse{
		Message: "User removed from whitelist",
	})
}

// WhitelistStatus reports the calling user's own exemption status, consulting
// the persistent store rather than the token claim so removals are visible
// immediately.
func (h *Handlers) WhitelistStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "Authentication required")
		return
	}

	active, err := h.storage.IsWhitelisted(r.Context(), claims.UserID())
	if err != nil {
		h.logger.Error("failed to check whitelist status", "user_id", claims.UserID(), "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to check whitelist status", models.ErrorCodeInternalError)
		return
	}

	h.writeJSON(w, http.StatusOK, models.WhitelistStatusResponse{IsWhitelisted: active})
}

// AvailableUsers lists users that are not currently whitelisted, for the
// admin add-to-whitelist flow.
func (h *Handlers) AvailableUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.storage.Users(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to list users", models.ErrorCodeInternalError)
		return
	}

	available := make([]models.AvailableUserResponse, 0, len(users))
	for _, user := range users {
		active, err := h.storage.IsWhitelisted(r.Context(), user.ID)
		if err != nil {
			h.logger.Error("failed to check whitelist status", "user_id", user.ID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "Failed to list users", models.ErrorCodeInternalError)
			return
		}
		if active {
			continue
		}
		available = append(available, models.AvailableUserResponse{
			ID:        user.ID,
			Username:  user.Username,
			Role:      user.Role,
			CreatedAt: user.CreatedAt,
		})
	}

	h.writeJSON(w, http.StatusOK, available)
}
