package academics

import (
	"context"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"collegemgmt/internal/shared"
)

// Service manages the academic structure: branches, subjects and exams.
// These are reference entities; the marks workflow only ever points at them,
// so deletion is guarded against dangling references.
type Service struct {
	branchesCol *mongo.Collection
	subjectsCol *mongo.Collection
	examsCol    *mongo.Collection
	marksCol    *mongo.Collection
	usersCol    *mongo.Collection
	auditCol    *mongo.Collection
}

// NewService creates a new academics Service instance
func NewService(db *mongo.Database) *Service {
	return &Service{
		branchesCol: db.Collection(shared.ColBranches),
		subjectsCol: db.Collection(shared.ColSubjects),
		examsCol:    db.Collection(shared.ColExams),
		marksCol:    db.Collection(shared.ColMarks),
		usersCol:    db.Collection(shared.ColUsers),
		auditCol:    db.Collection(shared.ColAuditLogs),
	}
}

// ============================================================================
// Branches
// ============================================================================

// BranchInput carries the writable branch fields.
type BranchInput struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code"`
}

// ListBranches returns every branch, sorted by name.
func (s *Service) ListBranches(ctx context.Context) ([]shared.Branch, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	findOptions := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.branchesCol.Find(queryCtx, bson.M{}, findOptions)
	if err != nil {
		return nil, shared.WrapPersistence("branch list", err)
	}
	defer cursor.Close(queryCtx)

	branches := []shared.Branch{}
	if err := cursor.All(queryCtx, &branches); err != nil {
		return nil, shared.WrapPersistence("branch decode", err)
	}
	return branches, nil
}

// CreateBranch adds a branch. Branch names are unique case-insensitively.
func (s *Service) CreateBranch(ctx context.Context, input BranchInput, actor string) (*shared.Branch, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, shared.NewValidationError("name", "branch name is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	count, err := s.branchesCol.CountDocuments(queryCtx, bson.M{
		"name": bson.M{"$regex": "^" + shared.EscapeRegex(name) + "$", "$options": "i"},
	})
	if err != nil {
		return nil, shared.WrapPersistence("branch uniqueness check", err)
	}
	if count > 0 {
		return nil, &shared.ConflictError{Resource: "branch", Detail: "a branch named " + name + " already exists"}
	}

	branch := shared.Branch{
		ID:        shared.GenerateID("BR"),
		Name:      name,
		Code:      strings.TrimSpace(input.Code),
		CreatedAt: time.Now(),
	}
	if _, err := s.branchesCol.InsertOne(queryCtx, branch); err != nil {
		return nil, shared.WrapPersistence("branch insert", err)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "branch_create", "branches", map[string]interface{}{
		"branch_id": branch.ID, "name": branch.Name,
	})
	return &branch, nil
}

// UpdateBranch renames a branch or changes its code. Zero-valued fields are
// left untouched.
func (s *Service) UpdateBranch(ctx context.Context, branchID string, input BranchInput, actor string) (*shared.Branch, error) {
	if branchID == "" {
		return nil, shared.NewValidationError("branchId", "branchId is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	set := bson.M{"updated_at": time.Now()}
	if name := strings.TrimSpace(input.Name); name != "" {
		count, err := s.branchesCol.CountDocuments(queryCtx, bson.M{
			"_id":  bson.M{"$ne": branchID},
			"name": bson.M{"$regex": "^" + shared.EscapeRegex(name) + "$", "$options": "i"},
		})
		if err != nil {
			return nil, shared.WrapPersistence("branch uniqueness check", err)
		}
		if count > 0 {
			return nil, &shared.ConflictError{Resource: "branch", Detail: "a branch named " + name + " already exists"}
		}
		set["name"] = name
	}
	if code := strings.TrimSpace(input.Code); code != "" {
		set["code"] = code
	}

	result, err := s.branchesCol.UpdateOne(queryCtx, bson.M{"_id": branchID}, bson.M{"$set": set})
	if err != nil {
		return nil, shared.WrapPersistence("branch update", err)
	}
	if result.MatchedCount == 0 {
		return nil, shared.NewNotFoundError("branch", branchID)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "branch_update", "branches", map[string]interface{}{
		"branch_id": branchID,
	})

	var branch shared.Branch
	if err := s.branchesCol.FindOne(queryCtx, bson.M{"_id": branchID}).Decode(&branch); err != nil {
		return nil, shared.WrapPersistence("branch lookup", err)
	}
	return &branch, nil
}

// DeleteBranch removes a branch. Rejected while subjects or students still
// reference it, so marks can never point into a vacuum transitively.
func (s *Service) DeleteBranch(ctx context.Context, branchID, actor string) error {
	if branchID == "" {
		return shared.NewValidationError("branchId", "branchId is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	subjects, err := s.subjectsCol.CountDocuments(queryCtx, bson.M{"branch_id": branchID})
	if err != nil {
		return shared.WrapPersistence("branch reference check", err)
	}
	if subjects > 0 {
		return &shared.ConflictError{Resource: "branch", Detail: "branch still has subjects assigned"}
	}
	students, err := s.usersCol.CountDocuments(queryCtx, bson.M{"branch_id": branchID, "role": shared.RoleStudent})
	if err != nil {
		return shared.WrapPersistence("branch reference check", err)
	}
	if students > 0 {
		return &shared.ConflictError{Resource: "branch", Detail: "branch still has enrolled students"}
	}

	result, err := s.branchesCol.DeleteOne(queryCtx, bson.M{"_id": branchID})
	if err != nil {
		return shared.WrapPersistence("branch delete", err)
	}
	if result.DeletedCount == 0 {
		return shared.NewNotFoundError("branch", branchID)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "branch_delete", "branches", map[string]interface{}{
		"branch_id": branchID,
	})
	return nil
}

// ============================================================================
// Subjects
// ============================================================================

// SubjectInput carries the writable subject fields.
type SubjectInput struct {
	Name     string `json:"name" validate:"required"`
	Code     string `json:"code" validate:"required"`
	BranchID string `json:"branchId" validate:"required"`
	Semester int32  `json:"semester" validate:"required,min=1,max=8"`
	Credits  int32  `json:"credits" validate:"min=0,max=10"`
}

// ListSubjects returns subjects, optionally filtered by branch and semester,
// sorted by code.
func (s *Service) ListSubjects(ctx context.Context, filter shared.SubjectFilter) ([]shared.Subject, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}
	if filter.BranchID != "" {
		query["branch_id"] = filter.BranchID
	}
	if filter.Semester != 0 {
		if !shared.IsValidSemester(filter.Semester) {
			return nil, shared.NewValidationError("semester", "semester must be between 1 and 8")
		}
		query["semester"] = filter.Semester
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "code", Value: 1}})
	cursor, err := s.subjectsCol.Find(queryCtx, query, findOptions)
	if err != nil {
		return nil, shared.WrapPersistence("subject list", err)
	}
	defer cursor.Close(queryCtx)

	subjects := []shared.Subject{}
	if err := cursor.All(queryCtx, &subjects); err != nil {
		return nil, shared.WrapPersistence("subject decode", err)
	}
	return subjects, nil
}

// CreateSubject adds a subject under an existing branch. Subject codes are
// unique within a branch.
func (s *Service) CreateSubject(ctx context.Context, input SubjectInput, actor string) (*shared.Subject, error) {
	name := strings.TrimSpace(input.Name)
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if name == "" {
		return nil, shared.NewValidationError("name", "subject name is required")
	}
	if code == "" {
		return nil, shared.NewValidationError("code", "subject code is required")
	}
	if !shared.IsValidSemester(input.Semester) {
		return nil, shared.NewValidationError("semester", "semester must be between 1 and 8")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	branchCount, err := s.branchesCol.CountDocuments(queryCtx, bson.M{"_id": input.BranchID})
	if err != nil {
		return nil, shared.WrapPersistence("branch lookup", err)
	}
	if branchCount == 0 {
		return nil, shared.NewValidationError("branchId", "branch does not exist: "+input.BranchID)
	}

	dup, err := s.subjectsCol.CountDocuments(queryCtx, bson.M{"branch_id": input.BranchID, "code": code})
	if err != nil {
		return nil, shared.WrapPersistence("subject uniqueness check", err)
	}
	if dup > 0 {
		return nil, &shared.ConflictError{Resource: "subject", Detail: code + " already exists in this branch"}
	}

	subject := shared.Subject{
		ID:        shared.GenerateID("SUB"),
		Name:      name,
		Code:      code,
		BranchID:  input.BranchID,
		Semester:  input.Semester,
		Credits:   input.Credits,
		CreatedAt: time.Now(),
	}
	if _, err := s.subjectsCol.InsertOne(queryCtx, subject); err != nil {
		return nil, shared.WrapPersistence("subject insert", err)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "subject_create", "subjects", map[string]interface{}{
		"subject_id": subject.ID, "code": subject.Code,
	})
	return &subject, nil
}

// UpdateSubjectInput carries the subject fields editable after creation. The
// branch binding is fixed: moving a subject across branches would orphan
// recorded marks from their roster scope.
type UpdateSubjectInput struct {
	Name    string `json:"name"`
	Credits int32  `json:"credits" validate:"min=0,max=10"`
}

// UpdateSubject applies the mutable subject fields.
func (s *Service) UpdateSubject(ctx context.Context, subjectID string, input UpdateSubjectInput, actor string) (*shared.Subject, error) {
	if subjectID == "" {
		return nil, shared.NewValidationError("subjectId", "subjectId is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	set := bson.M{"updated_at": time.Now()}
	if name := strings.TrimSpace(input.Name); name != "" {
		set["name"] = name
	}
	if input.Credits > 0 {
		set["credits"] = input.Credits
	}

	result, err := s.subjectsCol.UpdateOne(queryCtx, bson.M{"_id": subjectID}, bson.M{"$set": set})
	if err != nil {
		return nil, shared.WrapPersistence("subject update", err)
	}
	if result.MatchedCount == 0 {
		return nil, shared.NewNotFoundError("subject", subjectID)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "subject_update", "subjects", map[string]interface{}{
		"subject_id": subjectID,
	})

	var subject shared.Subject
	if err := s.subjectsCol.FindOne(queryCtx, bson.M{"_id": subjectID}).Decode(&subject); err != nil {
		return nil, shared.WrapPersistence("subject lookup", err)
	}
	return &subject, nil
}

// DeleteSubject removes a subject. Rejected while marks reference it.
func (s *Service) DeleteSubject(ctx context.Context, subjectID, actor string) error {
	if subjectID == "" {
		return shared.NewValidationError("subjectId", "subjectId is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	refs, err := s.marksCol.CountDocuments(queryCtx, bson.M{"subject_id": subjectID})
	if err != nil {
		return shared.WrapPersistence("subject reference check", err)
	}
	if refs > 0 {
		return &shared.ConflictError{Resource: "subject", Detail: "marks are recorded against this subject"}
	}

	result, err := s.subjectsCol.DeleteOne(queryCtx, bson.M{"_id": subjectID})
	if err != nil {
		return shared.WrapPersistence("subject delete", err)
	}
	if result.DeletedCount == 0 {
		return shared.NewNotFoundError("subject", subjectID)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "subject_delete", "subjects", map[string]interface{}{
		"subject_id": subjectID,
	})
	return nil
}

// ============================================================================
// Exams
// ============================================================================

// ExamInput carries the writable exam fields. TotalMarks becomes the ceiling
// for every score recorded against the exam and cannot be lowered afterwards.
type ExamInput struct {
	Name       string    `json:"name" validate:"required"`
	Date       time.Time `json:"date"`
	Semester   int32     `json:"semester" validate:"required,min=1,max=8"`
	ExamType   string    `json:"examType" validate:"required,oneof=mid end"`
	TotalMarks int32     `json:"totalMarks" validate:"required,min=1"`
}

// ListExams returns exams, optionally filtered by semester, newest first.
func (s *Service) ListExams(ctx context.Context, semester int32) ([]shared.Exam, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{}
	if semester != 0 {
		if !shared.IsValidSemester(semester) {
			return nil, shared.NewValidationError("semester", "semester must be between 1 and 8")
		}
		query["semester"] = semester
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cursor, err := s.examsCol.Find(queryCtx, query, findOptions)
	if err != nil {
		return nil, shared.WrapPersistence("exam list", err)
	}
	defer cursor.Close(queryCtx)

	exams := []shared.Exam{}
	if err := cursor.All(queryCtx, &exams); err != nil {
		return nil, shared.WrapPersistence("exam decode", err)
	}
	return exams, nil
}

// CreateExam schedules an exam.
func (s *Service) CreateExam(ctx context.Context, input ExamInput, actor string) (*shared.Exam, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, shared.NewValidationError("name", "exam name is required")
	}
	if !shared.IsValidSemester(input.Semester) {
		return nil, shared.NewValidationError("semester", "semester must be between 1 and 8")
	}
	if !shared.IsValidExamType(input.ExamType) {
		return nil, shared.NewValidationError("examType", "examType must be mid or end")
	}
	if input.TotalMarks <= 0 {
		return nil, shared.NewValidationError("totalMarks", "totalMarks must be positive")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exam := shared.Exam{
		ID:         shared.GenerateID("EXAM"),
		Name:       name,
		Date:       input.Date,
		Semester:   input.Semester,
		ExamType:   input.ExamType,
		TotalMarks: input.TotalMarks,
		CreatedAt:  time.Now(),
	}
	if _, err := s.examsCol.InsertOne(queryCtx, exam); err != nil {
		return nil, shared.WrapPersistence("exam insert", err)
	}

	log.Printf("[AcademicsService] exam %s scheduled (%s, semester %d, out of %d)",
		exam.ID, exam.ExamType, exam.Semester, exam.TotalMarks)

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "exam_create", "exams", map[string]interface{}{
		"exam_id": exam.ID, "name": exam.Name, "total_marks": exam.TotalMarks,
	})
	return &exam, nil
}

// UpdateExamInput carries the exam fields editable after creation.
type UpdateExamInput struct {
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	TotalMarks  int32     `json:"totalMarks"`
	ScheduleRef string    `json:"scheduleRef"`
}

// UpdateExam applies the mutable exam fields. TotalMarks is frozen once any
// mark is recorded against the exam: changing the ceiling under existing
// scores would silently invalidate them.
func (s *Service) UpdateExam(ctx context.Context, examID string, input UpdateExamInput, actor string) (*shared.Exam, error) {
	if examID == "" {
		return nil, shared.NewValidationError("examId", "examId is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	set := bson.M{"updated_at": time.Now()}
	if name := strings.TrimSpace(input.Name); name != "" {
		set["name"] = name
	}
	if !input.Date.IsZero() {
		set["date"] = input.Date
	}
	if input.ScheduleRef != "" {
		set["schedule_ref"] = input.ScheduleRef
	}
	if input.TotalMarks != 0 {
		if input.TotalMarks < 0 {
			return nil, shared.NewValidationError("totalMarks", "totalMarks must be positive")
		}
		refs, err := s.marksCol.CountDocuments(queryCtx, bson.M{"exam_id": examID})
		if err != nil {
			return nil, shared.WrapPersistence("exam reference check", err)
		}
		if refs > 0 {
			return nil, &shared.ConflictError{Resource: "exam", Detail: "totalMarks cannot change once marks are recorded"}
		}
		set["total_marks"] = input.TotalMarks
	}

	result, err := s.examsCol.UpdateOne(queryCtx, bson.M{"_id": examID}, bson.M{"$set": set})
	if err != nil {
		return nil, shared.WrapPersistence("exam update", err)
	}
	if result.MatchedCount == 0 {
		return nil, shared.NewNotFoundError("exam", examID)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "exam_update", "exams", map[string]interface{}{
		"exam_id": examID,
	})

	var exam shared.Exam
	if err := s.examsCol.FindOne(queryCtx, bson.M{"_id": examID}).Decode(&exam); err != nil {
		return nil, shared.WrapPersistence("exam lookup", err)
	}
	return &exam, nil
}

// DeleteExam removes an exam. Rejected while marks reference it.
func (s *Service) DeleteExam(ctx context.Context, examID, actor string) error {
	if examID == "" {
		return shared.NewValidationError("examId", "examId is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	refs, err := s.marksCol.CountDocuments(queryCtx, bson.M{"exam_id": examID})
	if err != nil {
		return shared.WrapPersistence("exam reference check", err)
	}
	if refs > 0 {
		return &shared.ConflictError{Resource: "exam", Detail: "marks are recorded against this exam"}
	}

	result, err := s.examsCol.DeleteOne(queryCtx, bson.M{"_id": examID})
	if err != nil {
		return shared.WrapPersistence("exam delete", err)
	}
	if result.DeletedCount == 0 {
		return shared.NewNotFoundError("exam", examID)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "exam_delete", "exams", map[string]interface{}{
		"exam_id": examID,
	})
	return nil
}
