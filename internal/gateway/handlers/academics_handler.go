package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"collegemgmt/internal/academics"
	"collegemgmt/internal/gateway/util"
	"collegemgmt/internal/shared"
)

// AcademicsHandler exposes branch, subject and exam management. Reads are
// open to any authenticated user; writes are admin only.
type AcademicsHandler struct {
	Academics *academics.Service
}

func requireAdmin(w http.ResponseWriter, r *http.Request) *shared.User {
	user := getUserFromContext(r)
	if user == nil || user.Role != shared.RoleAdmin {
		util.WriteJSONError(w, http.StatusForbidden, "Access denied: Admin only")
		return nil
	}
	return user
}

// ListBranches handles GET /branches
func (h *AcademicsHandler) ListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.Academics.ListBranches(r.Context())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, branches)
}

// CreateBranch handles POST /admin/branches
func (h *AcademicsHandler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	user := requireAdmin(w, r)
	if user == nil {
		return
	}

	var req academics.BranchInput
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	branch, err := h.Academics.CreateBranch(r.Context(), req, user.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, branch)
}

// UpdateBranch handles PATCH /admin/branches/{id}
func (h *AcademicsHandler) UpdateBranch(w http.ResponseWriter, r *http.Request) {
	user := requireAdmin(w, r)
	if user == nil {
		return
	}

	var req academics.BranchInput
	if err := util.Decode(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	branch, err := h.Academics.UpdateBranch(r.Context(), chi.URLParam(r, "id"), req, user.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, branch)
}

// DeleteBranch handles DELETE /admin/branches/{id}
func (h *AcademicsHandler) DeleteBranch(w http.ResponseWriter, r *http.Request) {
	user := requireAdmin(w, r)
	if user == nil {
		return
	}

	if err := h.Academics.DeleteBranch(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "branch deleted",
	})
}

// ListSubjects handles GET /subjects
// Query Params: branch, semester (both optional)
func (h *AcademicsHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	semester, err := util.QueryInt32(r, "semester")
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	subjects, err := h.Academics.ListSubjects(r.Context(), shared.SubjectFilter{
		BranchID: r.URL.Query().Get("branch"),
		Semester: semester,
	})
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, subjects)
}

// CreateSubject handles POST /admin/subjects
func (h *AcademicsHandler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	user := requireAdmin(w, r)
	if user == nil {
		return
	}

	var req academics.SubjectInput
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	subject, err := h.Academics.CreateSubject(r.Context(), req, user.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, subject)
}

// UpdateSubject handles PATCH /admin/subjects/{id}
func (h *AcademicsHandler) UpdateSubject(w http.ResponseWriter, r *http.Request) {
	user := requireAdmin(w, r)
	if user == nil {
		return
	}

	var req academics.UpdateSubjectInput
	if err := util.Decode(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	subject, err := h.Academics.UpdateSubject(r.Context(), chi.URLParam(r, "id"), req, user.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, subject)
}

// DeleteSubject handles DELETE /admin/subjects/{id}
func (h *AcademicsHandler) DeleteSubject(w http.ResponseWriter, r *http.Request) {
	user := requireAdmin(w, r)
	if user == nil {
		return
	}

	if err := h.Academics.DeleteSubject(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "subject deleted",
	})
}

// ListExams handles GET /exams
// Query Params: semester (optional)
func (h *AcademicsHandler) ListExams(w http.ResponseWriter, r *http.Request) {
	semester, err := util.QueryInt32(r, "semester")
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	exams, err := h.Academics.ListExams(r.Context(), semester)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, exams)
}

// CreateExam handles POST /admin/exams
func (h *AcademicsHandler) CreateExam(w http.ResponseWriter, r *http.Request) {
	user := requireAdmin(w, r)
	if user == nil {
		return
	}

	var req academics.ExamInput
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	exam, err := h.Academics.CreateExam(r.Context(), req, user.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, exam)
}

// UpdateExam handles PATCH /admin/exams/{id}
func (h *AcademicsHandler) UpdateExam(w http.ResponseWriter, r *http.Request) {
	user := requireAdmin(w, r)
	if user == nil {
		return
	}

	var req academics.UpdateExamInput
	if err := util.Decode(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	exam, err := h.Academics.UpdateExam(r.Context(), chi.URLParam(r, "id"), req, user.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, exam)
}

// DeleteExam handles DELETE /admin/exams/{id}
func (h *AcademicsHandler) DeleteExam(w http.ResponseWriter, r *http.Request) {
	user := requireAdmin(w, r)
	if user == nil {
		return
	}

	if err := h.Academics.DeleteExam(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "exam deleted",
	})
}
