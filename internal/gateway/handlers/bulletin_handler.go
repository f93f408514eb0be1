package handlers

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"collegemgmt/internal/bulletin"
	"collegemgmt/internal/files"
	"collegemgmt/internal/gateway/util"
	"collegemgmt/internal/shared"
)

// BulletinHandler exposes notices, study materials and timetables.
type BulletinHandler struct {
	Bulletin *bulletin.Service
	Files    files.Store
}

// ListNotices handles GET /notices, filtered to the caller's audience.
func (h *BulletinHandler) ListNotices(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	notices, err := h.Bulletin.ListNotices(r.Context(), user.Role)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, notices)
}

// CreateNotice handles POST /notices (faculty and admin).
func (h *BulletinHandler) CreateNotice(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil || user.Role == shared.RoleStudent {
		util.WriteJSONError(w, http.StatusForbidden, "Access denied: Staff only")
		return
	}

	var req bulletin.NoticeInput
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	notice, err := h.Bulletin.CreateNotice(r.Context(), req, user.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, notice)
}

// DeleteNotice handles DELETE /notices/{id}
func (h *BulletinHandler) DeleteNotice(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil || user.Role == shared.RoleStudent {
		util.WriteJSONError(w, http.StatusForbidden, "Access denied: Staff only")
		return
	}

	if err := h.Bulletin.DeleteNotice(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "notice deleted",
	})
}

// ListMaterials handles GET /materials
// Query Params: subjectId, semester (both optional)
func (h *BulletinHandler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	semester, err := util.QueryInt32(r, "semester")
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	materials, err := h.Bulletin.ListMaterials(r.Context(), r.URL.Query().Get("subjectId"), semester)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, materials)
}

// UploadMaterial handles POST /materials as multipart/form-data with a
// "file" part and metadata fields.
func (h *BulletinHandler) UploadMaterial(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil || user.Role != shared.RoleFaculty {
		util.WriteJSONError(w, http.StatusForbidden, "Access denied: Only faculty can upload materials")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	semester, err := strconv.ParseInt(r.FormValue("semester"), 10, 32)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "semester must be an integer")
		return
	}

	input := bulletin.MaterialInput{
		Title:     r.FormValue("title"),
		SubjectID: r.FormValue("subjectId"),
		Semester:  int32(semester),
		Type:      r.FormValue("type"),
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "A file upload is required")
		return
	}
	defer file.Close()

	material, err := h.Bulletin.CreateMaterial(r.Context(), input, header.Filename, file, user.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, material)
}

// DeleteMaterial handles DELETE /materials/{id}
func (h *BulletinHandler) DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil || user.Role == shared.RoleStudent {
		util.WriteJSONError(w, http.StatusForbidden, "Access denied: Staff only")
		return
	}

	if err := h.Bulletin.DeleteMaterial(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "material deleted",
	})
}

// GetTimetable handles GET /timetable
// Query Params: branch, semester. Students default to their own pair.
func (h *BulletinHandler) GetTimetable(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	branchID := r.URL.Query().Get("branch")
	semester, err := util.QueryInt32(r, "semester")
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	if user.Role == shared.RoleStudent {
		branchID = user.BranchID
		semester = user.Semester
	}

	timetable, err := h.Bulletin.GetTimetable(r.Context(), branchID, semester)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, timetable)
}

// PostTimetable handles POST /admin/timetable as multipart/form-data.
// Posting for an existing (branch, semester) pair replaces the previous file.
func (h *BulletinHandler) PostTimetable(w http.ResponseWriter, r *http.Request) {
	admin := requireAdmin(w, r)
	if admin == nil {
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	semester, err := strconv.ParseInt(r.FormValue("semester"), 10, 32)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "semester must be an integer")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "A file upload is required")
		return
	}
	defer file.Close()

	timetable, err := h.Bulletin.PostTimetable(r.Context(), r.FormValue("branchId"), int32(semester), header.Filename, file, admin.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, timetable)
}

// ServeMedia handles GET /media/{ref} and streams a stored file. The stored
// name keeps the upload's extension, so the content type comes from that
// rather than leaving the browser to sniff.
func (h *BulletinHandler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	reader, err := h.Files.Open(ref)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(filepath.Ext(ref))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	if _, err := io.Copy(w, reader); err != nil {
		// Headers are already out; nothing more to report to the client.
		return
	}
}
