package handlers

import (
	"net/http"

	"collegemgmt/internal/gateway/util"
	"collegemgmt/internal/marks"
	"collegemgmt/internal/shared"
)

// MarksHandler exposes the marks batch-entry workflow and the student's own
// results read.
type MarksHandler struct {
	Marks *marks.Service
}

// Roster handles GET /marks/students
// Query Params: branch, subject, semester, examId (all required)
func (h *MarksHandler) Roster(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil || (user.Role != shared.RoleFaculty && user.Role != shared.RoleAdmin) {
		util.WriteJSONError(w, http.StatusForbidden, "Access denied: Only faculty can run marks-entry searches")
		return
	}

	semester, err := util.QueryInt32(r, "semester")
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	filter := shared.RosterFilter{
		BranchID:  r.URL.Query().Get("branch"),
		SubjectID: r.URL.Query().Get("subject"),
		Semester:  semester,
		ExamID:    r.URL.Query().Get("examId"),
	}

	roster, err := h.Marks.Roster(r.Context(), filter)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	// An empty match is not a failure of the search itself, but the frontend
	// renders it as "no students found" off a 404 envelope.
	if len(roster) == 0 {
		util.WriteJSONError(w, http.StatusNotFound, "No students found for this search")
		return
	}

	util.WriteJSON(w, http.StatusOK, roster)
}

// SubmitBulk handles POST /marks/bulk
// Accepts one complete batch of scores for a (subject, semester, exam)
// combination, with the attestation flag.
func (h *MarksHandler) SubmitBulk(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil || (user.Role != shared.RoleFaculty && user.Role != shared.RoleAdmin) {
		util.WriteJSONError(w, http.StatusForbidden, "Access denied: Only faculty can submit marks")
		return
	}

	var req marks.BulkSubmission
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}
	req.EnteredBy = user.ID

	receipt, err := h.Marks.SubmitBulk(r.Context(), req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, receipt)
}

// StudentMarks handles GET /marks/student
// Query Params: semester (required). Students only ever see their own marks;
// the ID comes from the token, never from the request.
func (h *MarksHandler) StudentMarks(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil || user.Role != shared.RoleStudent {
		util.WriteJSONError(w, http.StatusForbidden, "Access denied: Only students can view their own marks")
		return
	}

	semester, err := util.QueryInt32(r, "semester")
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	views, err := h.Marks.StudentMarks(r.Context(), user.ID, semester)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, views)
}

// Statistics handles GET /marks/stats
// Query Params: examId, subjectId (both required)
func (h *MarksHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil || (user.Role != shared.RoleFaculty && user.Role != shared.RoleAdmin) {
		util.WriteJSONError(w, http.StatusForbidden, "Access denied: Only faculty can view exam statistics")
		return
	}

	summary, err := h.Marks.Statistics(r.Context(), r.URL.Query().Get("examId"), r.URL.Query().Get("subjectId"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, summary)
}
