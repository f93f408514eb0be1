package bulletin

import (
	"context"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"collegemgmt/internal/files"
	"collegemgmt/internal/shared"
)

// Service manages portal announcements: notices, study materials and
// timetables. Uploaded attachments live in the file store; documents here
// only hold their references.
type Service struct {
	noticesCol    *mongo.Collection
	materialsCol  *mongo.Collection
	timetablesCol *mongo.Collection
	subjectsCol   *mongo.Collection
	branchesCol   *mongo.Collection
	auditCol      *mongo.Collection
	fileStore     files.Store
}

// NewService creates a new bulletin Service instance
func NewService(db *mongo.Database, fileStore files.Store) *Service {
	return &Service{
		noticesCol:    db.Collection(shared.ColNotices),
		materialsCol:  db.Collection(shared.ColMaterials),
		timetablesCol: db.Collection(shared.ColTimetables),
		subjectsCol:   db.Collection(shared.ColSubjects),
		branchesCol:   db.Collection(shared.ColBranches),
		auditCol:      db.Collection(shared.ColAuditLogs),
		fileStore:     fileStore,
	}
}

// ============================================================================
// Notices
// ============================================================================

// NoticeInput carries the writable notice fields.
type NoticeInput struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Audience    string `json:"audience" validate:"required,oneof=student faculty both"`
	Link        string `json:"link"`
}

// ListNotices returns notices visible to a role, newest first. Admins see
// everything; students and faculty see their audience plus "both".
func (s *Service) ListNotices(ctx context.Context, role string) ([]shared.Notice, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}
	switch role {
	case shared.RoleStudent:
		query["audience"] = bson.M{"$in": []string{shared.AudienceStudent, shared.AudienceBoth}}
	case shared.RoleFaculty:
		query["audience"] = bson.M{"$in": []string{shared.AudienceFaculty, shared.AudienceBoth}}
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.noticesCol.Find(queryCtx, query, findOptions)
	if err != nil {
		return nil, shared.WrapPersistence("notice list", err)
	}
	defer cursor.Close(queryCtx)

	notices := []shared.Notice{}
	if err := cursor.All(queryCtx, &notices); err != nil {
		return nil, shared.WrapPersistence("notice decode", err)
	}
	return notices, nil
}

// CreateNotice posts a notice.
func (s *Service) CreateNotice(ctx context.Context, input NoticeInput, actor string) (*shared.Notice, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, shared.NewValidationError("title", "title is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, shared.NewValidationError("description", "description is required")
	}
	if !shared.IsValidAudience(input.Audience) {
		return nil, shared.NewValidationError("audience", "audience must be student, faculty or both")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	notice := shared.Notice{
		ID:          shared.GenerateID("NOTICE"),
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Audience:    input.Audience,
		Link:        input.Link,
		CreatedBy:   actor,
		CreatedAt:   time.Now(),
	}
	if _, err := s.noticesCol.InsertOne(queryCtx, notice); err != nil {
		return nil, shared.WrapPersistence("notice insert", err)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "notice_create", "notices", map[string]interface{}{
		"notice_id": notice.ID,
	})
	return &notice, nil
}

// DeleteNotice removes a notice.
func (s *Service) DeleteNotice(ctx context.Context, noticeID, actor string) error {
	if noticeID == "" {
		return shared.NewValidationError("noticeId", "noticeId is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := s.noticesCol.DeleteOne(queryCtx, bson.M{"_id": noticeID})
	if err != nil {
		return shared.WrapPersistence("notice delete", err)
	}
	if result.DeletedCount == 0 {
		return shared.NewNotFoundError("notice", noticeID)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "notice_delete", "notices", map[string]interface{}{
		"notice_id": noticeID,
	})
	return nil
}

// ============================================================================
// Study Materials
// ============================================================================

// MaterialInput carries the metadata accompanying a material upload.
type MaterialInput struct {
	Title     string `json:"title" validate:"required"`
	SubjectID string `json:"subjectId" validate:"required"`
	Semester  int32  `json:"semester" validate:"required,min=1,max=8"`
	Type      string `json:"type" validate:"required,oneof=notes assignment syllabus other"`
}

var materialTypes = map[string]bool{
	"notes": true, "assignment": true, "syllabus": true, "other": true,
}

// ListMaterials returns materials for a subject and/or semester, newest first.
func (s *Service) ListMaterials(ctx context.Context, subjectID string, semester int32) ([]shared.Material, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}
	if subjectID != "" {
		query["subject_id"] = subjectID
	}
	if semester != 0 {
		if !shared.IsValidSemester(semester) {
			return nil, shared.NewValidationError("semester", "semester must be between 1 and 8")
		}
		query["semester"] = semester
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.materialsCol.Find(queryCtx, query, findOptions)
	if err != nil {
		return nil, shared.WrapPersistence("material list", err)
	}
	defer cursor.Close(queryCtx)

	materials := []shared.Material{}
	if err := cursor.All(queryCtx, &materials); err != nil {
		return nil, shared.WrapPersistence("material decode", err)
	}
	return materials, nil
}

// CreateMaterial stores an uploaded study material and its metadata. The
// upload is saved first; if metadata persistence then fails the stored file
// is removed again so no orphan remains.
func (s *Service) CreateMaterial(ctx context.Context, input MaterialInput, fileName string, file io.Reader, actor string) (*shared.Material, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, shared.NewValidationError("title", "title is required")
	}
	if !shared.IsValidSemester(input.Semester) {
		return nil, shared.NewValidationError("semester", "semester must be between 1 and 8")
	}
	if !materialTypes[input.Type] {
		return nil, shared.NewValidationError("type", "type must be notes, assignment, syllabus or other")
	}
	if file == nil {
		return nil, shared.NewValidationError("file", "a file upload is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	subjectCount, err := s.subjectsCol.CountDocuments(queryCtx, bson.M{"_id": input.SubjectID})
	if err != nil {
		return nil, shared.WrapPersistence("subject lookup", err)
	}
	if subjectCount == 0 {
		return nil, shared.NewValidationError("subjectId", "subject does not exist: "+input.SubjectID)
	}

	ref, err := s.fileStore.Save(fileName, file)
	if err != nil {
		return nil, err
	}

	material := shared.Material{
		ID:         shared.GenerateID("MAT"),
		Title:      strings.TrimSpace(input.Title),
		SubjectID:  input.SubjectID,
		Semester:   input.Semester,
		Type:       input.Type,
		FileRef:    ref,
		UploadedBy: actor,
		CreatedAt:  time.Now(),
	}
	if _, err := s.materialsCol.InsertOne(queryCtx, material); err != nil {
		_ = s.fileStore.Remove(ref)
		return nil, shared.WrapPersistence("material insert", err)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "material_upload", "materials", map[string]interface{}{
		"material_id": material.ID, "subject_id": material.SubjectID,
	})
	return &material, nil
}

// DeleteMaterial removes a material and its stored file.
func (s *Service) DeleteMaterial(ctx context.Context, materialID, actor string) error {
	if materialID == "" {
		return shared.NewValidationError("materialId", "materialId is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var material shared.Material
	err := s.materialsCol.FindOneAndDelete(queryCtx, bson.M{"_id": materialID}).Decode(&material)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return shared.NewNotFoundError("material", materialID)
		}
		return shared.WrapPersistence("material delete", err)
	}

	_ = s.fileStore.Remove(material.FileRef)
	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "material_delete", "materials", map[string]interface{}{
		"material_id": materialID,
	})
	return nil
}

// ============================================================================
// Timetables
// ============================================================================

// GetTimetable returns the posted timetable for one (branch, semester).
func (s *Service) GetTimetable(ctx context.Context, branchID string, semester int32) (*shared.Timetable, error) {
	if branchID == "" {
		return nil, shared.NewValidationError("branchId", "branchId is required")
	}
	if !shared.IsValidSemester(semester) {
		return nil, shared.NewValidationError("semester", "semester must be between 1 and 8")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var timetable shared.Timetable
	err := s.timetablesCol.FindOne(queryCtx, bson.M{"branch_id": branchID, "semester": semester}).Decode(&timetable)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, shared.NewNotFoundError("timetable", "")
		}
		return nil, shared.WrapPersistence("timetable lookup", err)
	}
	return &timetable, nil
}

// PostTimetable uploads the timetable image for a (branch, semester) pair.
// Posting again replaces the previous one: the document is upserted on the
// pair and the superseded file removed from the store.
func (s *Service) PostTimetable(ctx context.Context, branchID string, semester int32, fileName string, file io.Reader, actor string) (*shared.Timetable, error) {
	if branchID == "" {
		return nil, shared.NewValidationError("branchId", "branchId is required")
	}
	if !shared.IsValidSemester(semester) {
		return nil, shared.NewValidationError("semester", "semester must be between 1 and 8")
	}
	if file == nil {
		return nil, shared.NewValidationError("file", "a file upload is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	branchCount, err := s.branchesCol.CountDocuments(queryCtx, bson.M{"_id": branchID})
	if err != nil {
		return nil, shared.WrapPersistence("branch lookup", err)
	}
	if branchCount == 0 {
		return nil, shared.NewValidationError("branchId", "branch does not exist: "+branchID)
	}

	ref, err := s.fileStore.Save(fileName, file)
	if err != nil {
		return nil, err
	}

	// Capture the superseded file reference before replacing it.
	var previous shared.Timetable
	previousRef := ""
	err = s.timetablesCol.FindOne(queryCtx, bson.M{"branch_id": branchID, "semester": semester}).Decode(&previous)
	if err == nil {
		previousRef = previous.FileRef
	} else if err != mongo.ErrNoDocuments {
		_ = s.fileStore.Remove(ref)
		return nil, shared.WrapPersistence("timetable lookup", err)
	}

	now := time.Now()
	key := bson.M{"branch_id": branchID, "semester": semester}
	update := bson.M{
		"$set": bson.M{
			"file_ref":   ref,
			"posted_by":  actor,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"_id":       shared.GenerateID("TT"),
			"branch_id": branchID,
			"semester":  semester,
		},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.timetablesCol.UpdateOne(queryCtx, key, update, opts); err != nil {
		_ = s.fileStore.Remove(ref)
		return nil, shared.WrapPersistence("timetable upsert", err)
	}

	if previousRef != "" && previousRef != ref {
		_ = s.fileStore.Remove(previousRef)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "timetable_post", "timetables", map[string]interface{}{
		"branch_id": branchID, "semester": semester,
	})
	return s.GetTimetable(ctx, branchID, semester)
}
