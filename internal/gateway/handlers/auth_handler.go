package handlers

import (
	"net/http"

	"collegemgmt/internal/auth"
	"collegemgmt/internal/gateway/util"
	"collegemgmt/internal/shared"
)

// AuthHandler exposes login, logout and session management.
type AuthHandler struct {
	Auth *auth.Service
}

// LoginRequest mirrors the JSON input for POST /auth/login. The identifier
// may be an email, enrollment number or employee ID.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// ChangePasswordRequest mirrors the JSON input for POST /auth/change-password
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// getUserFromContext returns the authenticated user injected by the auth
// middleware, or nil on unauthenticated routes.
func getUserFromContext(r *http.Request) *shared.User {
	user, ok := r.Context().Value("user").(*shared.User)
	if !ok {
		return nil
	}
	return user
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	result, err := h.Auth.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, result)
}

// Logout handles POST /auth/logout. Safe without middleware: it extracts and
// revokes its own token and succeeds even for already-dead sessions.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := util.ExtractToken(r)
	if err != nil {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	if err := h.Auth.Logout(r.Context(), token); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "logged out",
	})
}

// Validate handles GET /auth/validate and returns the authenticated user.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		util.WriteJSONError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	util.WriteJSON(w, http.StatusOK, user)
}

// ChangePassword handles POST /auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	if err := h.Auth.ChangePassword(r.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "password changed, please log in again",
	})
}
