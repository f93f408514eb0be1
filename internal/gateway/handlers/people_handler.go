package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"collegemgmt/internal/gateway/util"
	"collegemgmt/internal/people"
	"collegemgmt/internal/shared"
)

// PeopleHandler exposes account management and directory lookups.
type PeopleHandler struct {
	People *people.Service
}

// SetActiveRequest mirrors the JSON input for PATCH /admin/users/{id}/status
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// Me handles GET /profile and returns the caller's own account.
func (h *PeopleHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	util.WriteJSON(w, http.StatusOK, user)
}

// UpdateMe handles PUT /profile with the caller's mutable fields.
func (h *PeopleHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req people.UpdateProfileInput
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}
	// Semester promotion is an admin operation, not self-service.
	req.Semester = 0

	updated, err := h.People.UpdateProfile(r.Context(), user.ID, req, user.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, updated)
}

// CreateUser handles POST /admin/users
func (h *PeopleHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	admin := requireAdmin(w, r)
	if admin == nil {
		return
	}

	var req people.CreateUserInput
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	created, err := h.People.CreateUser(r.Context(), req, admin.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, created)
}

// SearchStudents handles GET /students
// Query Params: enrollmentNo, name, branch, semester (all optional)
func (h *PeopleHandler) SearchStudents(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil || user.Role == shared.RoleStudent {
		util.WriteJSONError(w, http.StatusForbidden, "Access denied: Staff only")
		return
	}

	semester, err := util.QueryInt32(r, "semester")
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	students, err := h.People.SearchStudents(r.Context(), shared.StudentFilter{
		EnrollmentNo: r.URL.Query().Get("enrollmentNo"),
		Name:         r.URL.Query().Get("name"),
		BranchID:     r.URL.Query().Get("branch"),
		Semester:     semester,
	})
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, students)
}

// ListFaculty handles GET /admin/faculty
func (h *PeopleHandler) ListFaculty(w http.ResponseWriter, r *http.Request) {
	if requireAdmin(w, r) == nil {
		return
	}

	faculty, err := h.People.ListFaculty(r.Context())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, faculty)
}

// GetUser handles GET /admin/users/{id}
func (h *PeopleHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if requireAdmin(w, r) == nil {
		return
	}

	user, err := h.People.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, user)
}

// UpdateUser handles PUT /admin/users/{id}
func (h *PeopleHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	admin := requireAdmin(w, r)
	if admin == nil {
		return
	}

	var req people.UpdateProfileInput
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	updated, err := h.People.UpdateProfile(r.Context(), chi.URLParam(r, "id"), req, admin.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, updated)
}

// ListAudit handles GET /admin/audit
// Query Params: limit (optional, capped server-side)
func (h *PeopleHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if requireAdmin(w, r) == nil {
		return
	}

	limit, err := util.QueryInt32(r, "limit")
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	events, err := h.People.RecentAudit(r.Context(), int64(limit))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, events)
}

// SetUserStatus handles PATCH /admin/users/{id}/status
func (h *PeopleHandler) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	admin := requireAdmin(w, r)
	if admin == nil {
		return
	}

	var req SetActiveRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	targetID := chi.URLParam(r, "id")
	if targetID == admin.ID && !req.Active {
		util.WriteJSONError(w, http.StatusBadRequest, "You cannot disable your own account")
		return
	}

	if err := h.People.SetActive(r.Context(), targetID, req.Active, admin.ID); err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "account status updated",
	})
}
