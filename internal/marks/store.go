package marks

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"collegemgmt/internal/shared"
)

// Store is the persistence boundary for the marks workflow. The Mark
// collection is the only shared mutable resource this subsystem touches, and
// it is mutated exclusively through UpsertBatch.
type Store interface {
	BranchExists(ctx context.Context, branchID string) (bool, error)
	SubjectByID(ctx context.Context, subjectID string) (*shared.Subject, error)
	ExamByID(ctx context.Context, examID string) (*shared.Exam, error)

	// Roster returns the students matching the filter's branch and semester,
	// ordered by enrollment number, each annotated with any previously
	// recorded score for the filter's (exam, subject) pair.
	Roster(ctx context.Context, filter shared.RosterFilter) ([]shared.RosterEntry, error)

	// UpsertBatch persists one validated batch: per (student, exam, subject)
	// triple it overwrites the existing Mark or creates a new one. The whole
	// batch commits or none of it does.
	UpsertBatch(ctx context.Context, batch Batch) error

	// StudentMarks returns one student's marks for a semester, joined with
	// exam and subject display fields.
	StudentMarks(ctx context.Context, studentID string, semester int32) ([]shared.StudentMarkView, error)

	// ObtainedScores returns every recorded score for an (exam, subject)
	// pair, for statistics.
	ObtainedScores(ctx context.Context, examID, subjectID string) ([]float64, error)
}

// Batch is the immutable submission value handed to persistence. It is
// constructed only at the moment of submission, from the mutable entry sheet.
type Batch struct {
	ExamID    string
	SubjectID string
	Semester  int32
	EnteredBy string
	Entries   []BatchEntry
}

// BatchEntry is one (student, score) pair within a batch.
type BatchEntry struct {
	StudentID     string
	ObtainedMarks int32
}

// ============================================================================
// MongoDB Store
// ============================================================================

type mongoStore struct {
	client      *mongo.Client
	usersCol    *mongo.Collection
	branchesCol *mongo.Collection
	subjectsCol *mongo.Collection
	examsCol    *mongo.Collection
	marksCol    *mongo.Collection
	auditCol    *mongo.Collection
}

// NewMongoStore creates a Store backed by MongoDB. The client is retained for
// multi-document transactions around batch upserts.
func NewMongoStore(client *mongo.Client, db *mongo.Database) Store {
	return &mongoStore{
		client:      client,
		usersCol:    db.Collection(shared.ColUsers),
		branchesCol: db.Collection(shared.ColBranches),
		subjectsCol: db.Collection(shared.ColSubjects),
		examsCol:    db.Collection(shared.ColExams),
		marksCol:    db.Collection(shared.ColMarks),
		auditCol:    db.Collection(shared.ColAuditLogs),
	}
}

func (s *mongoStore) BranchExists(ctx context.Context, branchID string) (bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	count, err := s.branchesCol.CountDocuments(queryCtx, bson.M{"_id": branchID})
	if err != nil {
		return false, shared.WrapPersistence("branch lookup", err)
	}
	return count > 0, nil
}

func (s *mongoStore) SubjectByID(ctx context.Context, subjectID string) (*shared.Subject, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var subject shared.Subject
	err := s.subjectsCol.FindOne(queryCtx, bson.M{"_id": subjectID}).Decode(&subject)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, shared.NewNotFoundError("subject", subjectID)
		}
		return nil, shared.WrapPersistence("subject lookup", err)
	}
	return &subject, nil
}

func (s *mongoStore) ExamByID(ctx context.Context, examID string) (*shared.Exam, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var exam shared.Exam
	err := s.examsCol.FindOne(queryCtx, bson.M{"_id": examID}).Decode(&exam)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, shared.NewNotFoundError("exam", examID)
		}
		return nil, shared.WrapPersistence("exam lookup", err)
	}
	return &exam, nil
}

func (s *mongoStore) Roster(ctx context.Context, filter shared.RosterFilter) ([]shared.RosterEntry, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	studentFilter := bson.M{
		"role":      shared.RoleStudent,
		"branch_id": filter.BranchID,
		"semester":  filter.Semester,
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "enrollment_no", Value: 1}})

	cursor, err := s.usersCol.Find(queryCtx, studentFilter, findOptions)
	if err != nil {
		return nil, shared.WrapPersistence("roster query", err)
	}
	defer cursor.Close(queryCtx)

	var entries []shared.RosterEntry
	for cursor.Next(queryCtx) {
		var student shared.User
		if err := cursor.Decode(&student); err != nil {
			continue
		}
		entries = append(entries, shared.RosterEntry{
			StudentID:    student.ID,
			EnrollmentNo: student.EnrollmentNo,
			Name:         student.FullName(),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, shared.WrapPersistence("roster iteration", err)
	}

	if len(entries) == 0 {
		return entries, nil
	}

	// Annotate with existing scores for this (exam, subject) pair.
	markFilter := bson.M{
		"exam_id":    filter.ExamID,
		"subject_id": filter.SubjectID,
	}
	markCursor, err := s.marksCol.Find(queryCtx, markFilter)
	if err != nil {
		return nil, shared.WrapPersistence("existing marks query", err)
	}
	defer markCursor.Close(queryCtx)

	recorded := make(map[string]int32)
	for markCursor.Next(queryCtx) {
		var mark shared.Mark
		if err := markCursor.Decode(&mark); err != nil {
			continue
		}
		recorded[mark.StudentID] = mark.ObtainedMarks
	}
	if err := markCursor.Err(); err != nil {
		return nil, shared.WrapPersistence("existing marks iteration", err)
	}

	for i := range entries {
		if score, ok := recorded[entries[i].StudentID]; ok {
			v := score
			entries[i].ObtainedMarks = &v
		}
	}

	return entries, nil
}

func (s *mongoStore) UpsertBatch(ctx context.Context, batch Batch) error {
	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Re-fetch the exam inside the write path: the ceiling must hold even if
	// the exam changed between validation and commit.
	exam, err := s.ExamByID(opCtx, batch.ExamID)
	if err != nil {
		return err
	}
	if _, err := s.SubjectByID(opCtx, batch.SubjectID); err != nil {
		return err
	}

	err = shared.WithTransaction(opCtx, s.client, func(sessCtx mongo.SessionContext) error {
		for _, entry := range batch.Entries {
			if entry.ObtainedMarks < 0 || entry.ObtainedMarks > exam.TotalMarks {
				return shared.NewValidationError("obtainedMarks",
					"score for student "+entry.StudentID+" is outside the exam's 0..total range")
			}

			count, err := s.usersCol.CountDocuments(sessCtx, bson.M{
				"_id":  entry.StudentID,
				"role": shared.RoleStudent,
			})
			if err != nil {
				return err
			}
			if count == 0 {
				return shared.NewNotFoundError("student", entry.StudentID)
			}

			now := time.Now()
			key := bson.M{
				"student_id": entry.StudentID,
				"exam_id":    batch.ExamID,
				"subject_id": batch.SubjectID,
			}
			update := bson.M{
				"$set": bson.M{
					"obtained_marks": entry.ObtainedMarks,
					"semester":       batch.Semester,
					"updated_by":     batch.EnteredBy,
					"updated_at":     now,
				},
				"$setOnInsert": bson.M{
					"_id":        shared.GenerateID("MARK"),
					"student_id": entry.StudentID,
					"exam_id":    batch.ExamID,
					"subject_id": batch.SubjectID,
					"entered_by": batch.EnteredBy,
					"entered_at": now,
				},
			}
			opts := options.Update().SetUpsert(true)
			if _, err := s.marksCol.UpdateOne(sessCtx, key, update, opts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return shared.WrapPersistence("marks batch upsert", err)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, batch.EnteredBy, "marks_submit", "marks", map[string]interface{}{
		"exam_id":    batch.ExamID,
		"subject_id": batch.SubjectID,
		"semester":   batch.Semester,
		"entries":    len(batch.Entries),
	})

	return nil
}

func (s *mongoStore) StudentMarks(ctx context.Context, studentID string, semester int32) ([]shared.StudentMarkView, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"student_id": studentID,
		"semester":   semester,
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "subject_id", Value: 1}, {Key: "exam_id", Value: 1}})

	cursor, err := s.marksCol.Find(queryCtx, filter, findOptions)
	if err != nil {
		return nil, shared.WrapPersistence("student marks query", err)
	}
	defer cursor.Close(queryCtx)

	var records []shared.Mark
	if err := cursor.All(queryCtx, &records); err != nil {
		return nil, shared.WrapPersistence("student marks decode", err)
	}

	views := make([]shared.StudentMarkView, 0, len(records))
	examCache := make(map[string]*shared.Exam)
	subjectCache := make(map[string]*shared.Subject)

	for _, record := range records {
		exam, ok := examCache[record.ExamID]
		if !ok {
			exam, err = s.ExamByID(queryCtx, record.ExamID)
			if err != nil {
				// Exam deleted out from under the mark; skip the row rather
				// than failing the whole read.
				continue
			}
			examCache[record.ExamID] = exam
		}

		subject, ok := subjectCache[record.SubjectID]
		if !ok {
			subject, err = s.SubjectByID(queryCtx, record.SubjectID)
			if err != nil {
				continue
			}
			subjectCache[record.SubjectID] = subject
		}

		views = append(views, shared.StudentMarkView{
			ID:            record.ID,
			ObtainedMarks: record.ObtainedMarks,
			Semester:      record.Semester,
			Exam: shared.ExamRef{
				ID:         exam.ID,
				Name:       exam.Name,
				ExamType:   exam.ExamType,
				TotalMarks: exam.TotalMarks,
				Date:       exam.Date,
			},
			Subject: shared.SubjectRef{
				ID:   subject.ID,
				Name: subject.Name,
				Code: subject.Code,
			},
		})
	}

	return views, nil
}

func (s *mongoStore) ObtainedScores(ctx context.Context, examID, subjectID string) ([]float64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.marksCol.Find(queryCtx, bson.M{
		"exam_id":    examID,
		"subject_id": subjectID,
	})
	if err != nil {
		return nil, shared.WrapPersistence("scores query", err)
	}
	defer cursor.Close(queryCtx)

	var scores []float64
	for cursor.Next(queryCtx) {
		var record shared.Mark
		if err := cursor.Decode(&record); err != nil {
			continue
		}
		scores = append(scores, float64(record.ObtainedMarks))
	}
	if err := cursor.Err(); err != nil {
		return nil, shared.WrapPersistence("scores iteration", err)
	}

	return scores, nil
}
