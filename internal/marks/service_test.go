package marks

import (
	"context"
	"errors"
	"sort"
	"testing"

	"collegemgmt/internal/shared"
)

// ============================================================================
// In-Memory Store Fake
// ============================================================================

type markKey struct {
	studentID string
	examID    string
	subjectID string
}

type fakeStore struct {
	branches    map[string]bool
	subjects    map[string]shared.Subject
	exams       map[string]shared.Exam
	students    []shared.User
	marks       map[markKey]shared.Mark
	upsertCalls int
	failUpsert  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		branches: map[string]bool{"BR_CS": true},
		subjects: map[string]shared.Subject{
			"SUB_DS": {ID: "SUB_DS", Name: "Data Structures", Code: "CS301", BranchID: "BR_CS", Semester: 3, Credits: 4},
		},
		exams: map[string]shared.Exam{
			"EXAM_MID1": {ID: "EXAM_MID1", Name: "Mid Term 1", Semester: 3, ExamType: shared.ExamTypeMid, TotalMarks: 50},
		},
		students: []shared.User{
			{ID: "S1", Role: shared.RoleStudent, FirstName: "Asha", LastName: "Rao", EnrollmentNo: "2021001", BranchID: "BR_CS", Semester: 3},
			{ID: "S2", Role: shared.RoleStudent, FirstName: "Dev", LastName: "Mehta", EnrollmentNo: "2021002", BranchID: "BR_CS", Semester: 3},
		},
		marks: make(map[markKey]shared.Mark),
	}
}

func (f *fakeStore) BranchExists(ctx context.Context, branchID string) (bool, error) {
	return f.branches[branchID], nil
}

func (f *fakeStore) SubjectByID(ctx context.Context, subjectID string) (*shared.Subject, error) {
	if subject, ok := f.subjects[subjectID]; ok {
		s := subject
		return &s, nil
	}
	return nil, shared.NewNotFoundError("subject", subjectID)
}

func (f *fakeStore) ExamByID(ctx context.Context, examID string) (*shared.Exam, error) {
	if exam, ok := f.exams[examID]; ok {
		e := exam
		return &e, nil
	}
	return nil, shared.NewNotFoundError("exam", examID)
}

func (f *fakeStore) Roster(ctx context.Context, filter shared.RosterFilter) ([]shared.RosterEntry, error) {
	var entries []shared.RosterEntry
	for _, student := range f.students {
		if student.Role != shared.RoleStudent || student.BranchID != filter.BranchID || student.Semester != filter.Semester {
			continue
		}
		entry := shared.RosterEntry{
			StudentID:    student.ID,
			EnrollmentNo: student.EnrollmentNo,
			Name:         student.FullName(),
		}
		key := markKey{student.ID, filter.ExamID, filter.SubjectID}
		if mark, ok := f.marks[key]; ok {
			v := mark.ObtainedMarks
			entry.ObtainedMarks = &v
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].EnrollmentNo < entries[j].EnrollmentNo
	})
	return entries, nil
}

func (f *fakeStore) UpsertBatch(ctx context.Context, batch Batch) error {
	f.upsertCalls++
	if f.failUpsert != nil {
		return f.failUpsert
	}

	exam, err := f.ExamByID(ctx, batch.ExamID)
	if err != nil {
		return err
	}

	// Validate everything before writing anything, mirroring the
	// transactional all-or-nothing policy of the Mongo store.
	for _, entry := range batch.Entries {
		if entry.ObtainedMarks < 0 || entry.ObtainedMarks > exam.TotalMarks {
			return shared.NewValidationError("obtainedMarks", "score out of range")
		}
		if !f.hasStudent(entry.StudentID) {
			return shared.NewNotFoundError("student", entry.StudentID)
		}
	}

	for _, entry := range batch.Entries {
		key := markKey{entry.StudentID, batch.ExamID, batch.SubjectID}
		if existing, ok := f.marks[key]; ok {
			existing.ObtainedMarks = entry.ObtainedMarks
			existing.UpdatedBy = batch.EnteredBy
			f.marks[key] = existing
			continue
		}
		f.marks[key] = shared.Mark{
			ID:            shared.GenerateID("MARK"),
			StudentID:     entry.StudentID,
			ExamID:        batch.ExamID,
			SubjectID:     batch.SubjectID,
			Semester:      batch.Semester,
			ObtainedMarks: entry.ObtainedMarks,
			EnteredBy:     batch.EnteredBy,
		}
	}
	return nil
}

func (f *fakeStore) StudentMarks(ctx context.Context, studentID string, semester int32) ([]shared.StudentMarkView, error) {
	var views []shared.StudentMarkView
	for key, mark := range f.marks {
		if key.studentID != studentID || mark.Semester != semester {
			continue
		}
		exam := f.exams[mark.ExamID]
		subject := f.subjects[mark.SubjectID]
		views = append(views, shared.StudentMarkView{
			ID:            mark.ID,
			ObtainedMarks: mark.ObtainedMarks,
			Semester:      mark.Semester,
			Exam:          shared.ExamRef{ID: exam.ID, Name: exam.Name, ExamType: exam.ExamType, TotalMarks: exam.TotalMarks},
			Subject:       shared.SubjectRef{ID: subject.ID, Name: subject.Name, Code: subject.Code},
		})
	}
	return views, nil
}

func (f *fakeStore) ObtainedScores(ctx context.Context, examID, subjectID string) ([]float64, error) {
	var scores []float64
	for key, mark := range f.marks {
		if key.examID == examID && key.subjectID == subjectID {
			scores = append(scores, float64(mark.ObtainedMarks))
		}
	}
	return scores, nil
}

func (f *fakeStore) hasStudent(studentID string) bool {
	for _, student := range f.students {
		if student.ID == studentID && student.Role == shared.RoleStudent {
			return true
		}
	}
	return false
}

func csFilter() shared.RosterFilter {
	return shared.RosterFilter{BranchID: "BR_CS", SubjectID: "SUB_DS", Semester: 3, ExamID: "EXAM_MID1"}
}

// ============================================================================
// Roster Query
// ============================================================================

func TestRosterQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing Filter Fields Are Named", func(t *testing.T) {
		service := NewService(newFakeStore())
		cases := []struct {
			field  string
			filter shared.RosterFilter
		}{
			{"branch", shared.RosterFilter{SubjectID: "SUB_DS", Semester: 3, ExamID: "EXAM_MID1"}},
			{"subject", shared.RosterFilter{BranchID: "BR_CS", Semester: 3, ExamID: "EXAM_MID1"}},
			{"examId", shared.RosterFilter{BranchID: "BR_CS", SubjectID: "SUB_DS", Semester: 3}},
			{"semester", shared.RosterFilter{BranchID: "BR_CS", SubjectID: "SUB_DS", Semester: 0, ExamID: "EXAM_MID1"}},
		}
		for _, tc := range cases {
			_, err := service.Roster(ctx, tc.filter)
			var ve *shared.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("%s: expected ValidationError, got %v", tc.field, err)
			}
			if ve.Field != tc.field {
				t.Errorf("expected error naming %q, got %q", tc.field, ve.Field)
			}
		}
	})

	t.Run("Unknown References Are Validation Errors", func(t *testing.T) {
		service := NewService(newFakeStore())

		filter := csFilter()
		filter.BranchID = "BR_NOPE"
		if _, err := service.Roster(ctx, filter); err == nil {
			t.Error("expected error for unknown branch")
		}

		filter = csFilter()
		filter.ExamID = "EXAM_NOPE"
		var ve *shared.ValidationError
		if _, err := service.Roster(ctx, filter); !errors.As(err, &ve) {
			t.Errorf("expected ValidationError for unknown exam, got %v", err)
		}
	})

	t.Run("Subject Must Belong To Branch", func(t *testing.T) {
		store := newFakeStore()
		store.branches["BR_ME"] = true
		service := NewService(store)

		filter := csFilter()
		filter.BranchID = "BR_ME"
		var ve *shared.ValidationError
		if _, err := service.Roster(ctx, filter); !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("Empty Roster Is Not An Error", func(t *testing.T) {
		store := newFakeStore()
		store.students = nil
		service := NewService(store)

		roster, err := service.Roster(ctx, csFilter())
		if err != nil {
			t.Fatalf("empty roster should not error: %v", err)
		}
		if len(roster) != 0 {
			t.Errorf("expected empty roster, got %d", len(roster))
		}
	})

	t.Run("Ordering Is Stable Across Calls", func(t *testing.T) {
		service := NewService(newFakeStore())

		first, err := service.Roster(ctx, csFilter())
		if err != nil {
			t.Fatal(err)
		}
		second, err := service.Roster(ctx, csFilter())
		if err != nil {
			t.Fatal(err)
		}
		if len(first) != len(second) {
			t.Fatalf("roster size changed between calls: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if first[i].StudentID != second[i].StudentID {
				t.Errorf("position %d differs between calls: %s vs %s", i, first[i].StudentID, second[i].StudentID)
			}
		}
	})

	t.Run("Prior Scores Annotate The Roster", func(t *testing.T) {
		store := newFakeStore()
		store.marks[markKey{"S1", "EXAM_MID1", "SUB_DS"}] = shared.Mark{
			StudentID: "S1", ExamID: "EXAM_MID1", SubjectID: "SUB_DS", Semester: 3, ObtainedMarks: 33,
		}
		service := NewService(store)

		roster, err := service.Roster(ctx, csFilter())
		if err != nil {
			t.Fatal(err)
		}
		for _, entry := range roster {
			switch entry.StudentID {
			case "S1":
				if entry.ObtainedMarks == nil || *entry.ObtainedMarks != 33 {
					t.Errorf("S1 should carry prior score 33, got %v", entry.ObtainedMarks)
				}
			case "S2":
				if entry.ObtainedMarks != nil {
					t.Errorf("ungraded S2 should be unset, got %d", *entry.ObtainedMarks)
				}
			}
		}
	})
}

// ============================================================================
// Batch Validation & Submission
// ============================================================================

func TestSubmitSheet(t *testing.T) {
	ctx := context.Background()

	stagedSheet := func(t *testing.T, service *Service, scores map[string]int32) *EntrySheet {
		t.Helper()
		sheet, err := service.NewSheet(ctx, csFilter())
		if err != nil {
			t.Fatal(err)
		}
		for id, v := range scores {
			if err := sheet.Set(id, ValidScore(v)); err != nil {
				t.Fatal(err)
			}
		}
		return sheet
	}

	t.Run("Consent Gate Blocks Before Persistence", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store)
		sheet := stagedSheet(t, service, map[string]int32{"S1": 45, "S2": 38})

		_, err := service.SubmitSheet(ctx, sheet, false, "FAC1")
		if !errors.Is(err, shared.ErrConsentRequired) {
			t.Fatalf("expected ErrConsentRequired, got %v", err)
		}
		if store.upsertCalls != 0 {
			t.Error("persistence must not be reached without consent")
		}
		if sheet.Len() != 2 {
			t.Error("staged entries must survive a rejected submission")
		}
	})

	t.Run("Incomplete Batch Is Reported Before Range Check", func(t *testing.T) {
		// S1 staged out of range AND S2 missing: completeness must win.
		store := newFakeStore()
		service := NewService(store)
		sheet := stagedSheet(t, service, map[string]int32{"S1": 55})

		_, err := service.SubmitSheet(ctx, sheet, true, "FAC1")
		var incomplete *shared.IncompleteSubmissionError
		if !errors.As(err, &incomplete) {
			t.Fatalf("expected IncompleteSubmissionError, got %v", err)
		}
		if incomplete.Missing != 1 {
			t.Errorf("expected 1 missing entry, got %d", incomplete.Missing)
		}
		if store.upsertCalls != 0 {
			t.Error("persistence must not be reached for incomplete batches")
		}
	})

	t.Run("Out Of Range Scores Are Rejected Before Persistence", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store)
		sheet := stagedSheet(t, service, map[string]int32{"S1": 55, "S2": 38})

		_, err := service.SubmitSheet(ctx, sheet, true, "FAC1")
		var ve *shared.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if store.upsertCalls != 0 {
			t.Error("range violations must be caught before the store is touched")
		}
	})

	t.Run("Successful Submission Persists And Clears The Sheet", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store)
		sheet := stagedSheet(t, service, map[string]int32{"S1": 45, "S2": 38})

		receipt, err := service.SubmitSheet(ctx, sheet, true, "FAC1")
		if err != nil {
			t.Fatal(err)
		}
		if receipt.Entries != 2 {
			t.Errorf("expected 2 committed entries, got %d", receipt.Entries)
		}
		if sheet.Len() != 0 {
			t.Error("sheet must be cleared after a successful submission")
		}

		if got := store.marks[markKey{"S1", "EXAM_MID1", "SUB_DS"}].ObtainedMarks; got != 45 {
			t.Errorf("S1 stored score = %d, want 45", got)
		}
		if got := store.marks[markKey{"S2", "EXAM_MID1", "SUB_DS"}].ObtainedMarks; got != 38 {
			t.Errorf("S2 stored score = %d, want 38", got)
		}
	})

	t.Run("Resubmission Overwrites Without Duplicates", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store)

		sheet := stagedSheet(t, service, map[string]int32{"S1": 45, "S2": 38})
		if _, err := service.SubmitSheet(ctx, sheet, true, "FAC1"); err != nil {
			t.Fatal(err)
		}

		sheet = stagedSheet(t, service, map[string]int32{"S1": 47, "S2": 38})
		if _, err := service.SubmitSheet(ctx, sheet, true, "FAC1"); err != nil {
			t.Fatal(err)
		}

		if len(store.marks) != 2 {
			t.Fatalf("expected exactly 2 mark records, got %d", len(store.marks))
		}
		if got := store.marks[markKey{"S1", "EXAM_MID1", "SUB_DS"}].ObtainedMarks; got != 47 {
			t.Errorf("S1 stored score = %d, want 47 after overwrite", got)
		}
		if got := store.marks[markKey{"S2", "EXAM_MID1", "SUB_DS"}].ObtainedMarks; got != 38 {
			t.Errorf("S2 stored score = %d, want 38", got)
		}
	})

	t.Run("Identical Batches Are Idempotent", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store)

		for i := 0; i < 2; i++ {
			sheet := stagedSheet(t, service, map[string]int32{"S1": 45, "S2": 38})
			if _, err := service.SubmitSheet(ctx, sheet, true, "FAC1"); err != nil {
				t.Fatal(err)
			}
		}

		if len(store.marks) != 2 {
			t.Errorf("idempotent resubmission must not duplicate rows, got %d", len(store.marks))
		}
	})

	t.Run("Persistence Failure Preserves The Sheet", func(t *testing.T) {
		store := newFakeStore()
		store.failUpsert = &shared.PersistenceError{Op: "marks batch upsert", Err: errors.New("storage unavailable")}
		service := NewService(store)
		sheet := stagedSheet(t, service, map[string]int32{"S1": 45, "S2": 38})

		_, err := service.SubmitSheet(ctx, sheet, true, "FAC1")
		var pe *shared.PersistenceError
		if !errors.As(err, &pe) {
			t.Fatalf("expected PersistenceError, got %v", err)
		}
		if sheet.Len() != 2 {
			t.Error("staged data must be preserved so the user can retry")
		}
	})
}

func TestSubmitBulk(t *testing.T) {
	ctx := context.Background()

	bulk := func(marks []StudentScore) BulkSubmission {
		return BulkSubmission{
			Marks:     marks,
			ExamID:    "EXAM_MID1",
			SubjectID: "SUB_DS",
			Semester:  3,
			Consent:   true,
			EnteredBy: "FAC1",
		}
	}

	t.Run("Full Batch Is Accepted", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store)

		receipt, err := service.SubmitBulk(ctx, bulk([]StudentScore{
			{StudentID: "S1", ObtainedMarks: 45},
			{StudentID: "S2", ObtainedMarks: 38},
		}))
		if err != nil {
			t.Fatal(err)
		}
		if receipt.Entries != 2 {
			t.Errorf("expected 2 entries, got %d", receipt.Entries)
		}
	})

	t.Run("Missing Rostered Student Rejects The Whole Batch", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store)

		_, err := service.SubmitBulk(ctx, bulk([]StudentScore{
			{StudentID: "S1", ObtainedMarks: 45},
		}))
		var incomplete *shared.IncompleteSubmissionError
		if !errors.As(err, &incomplete) {
			t.Fatalf("expected IncompleteSubmissionError, got %v", err)
		}
		if store.upsertCalls != 0 {
			t.Error("partial batches must never reach persistence")
		}
	})

	t.Run("Previously Recorded Scores Do Not Fill Gaps", func(t *testing.T) {
		// S2 was graded in an earlier session; this submission still has to
		// provide every score itself.
		store := newFakeStore()
		store.marks[markKey{"S2", "EXAM_MID1", "SUB_DS"}] = shared.Mark{
			StudentID: "S2", ExamID: "EXAM_MID1", SubjectID: "SUB_DS", Semester: 3, ObtainedMarks: 30,
		}
		service := NewService(store)

		_, err := service.SubmitBulk(ctx, bulk([]StudentScore{
			{StudentID: "S1", ObtainedMarks: 45},
		}))
		var incomplete *shared.IncompleteSubmissionError
		if !errors.As(err, &incomplete) {
			t.Fatalf("expected IncompleteSubmissionError, got %v", err)
		}
	})

	t.Run("Off Roster Student Rejects The Whole Batch", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store)

		_, err := service.SubmitBulk(ctx, bulk([]StudentScore{
			{StudentID: "S1", ObtainedMarks: 45},
			{StudentID: "S2", ObtainedMarks: 38},
			{StudentID: "GHOST", ObtainedMarks: 10},
		}))
		var ve *shared.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("Consent Is Checked First", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store)

		sub := bulk(nil) // empty marks AND no consent: consent must win
		sub.Consent = false
		_, err := service.SubmitBulk(ctx, sub)
		if !errors.Is(err, shared.ErrConsentRequired) {
			t.Fatalf("expected ErrConsentRequired, got %v", err)
		}
	})

	t.Run("Unknown Exam Is A Hard Error", func(t *testing.T) {
		store := newFakeStore()
		service := NewService(store)

		sub := bulk([]StudentScore{{StudentID: "S1", ObtainedMarks: 45}, {StudentID: "S2", ObtainedMarks: 38}})
		sub.ExamID = "EXAM_GONE"
		if _, err := service.SubmitBulk(ctx, sub); err == nil {
			t.Fatal("expected error for vanished exam")
		}
	})
}

// ============================================================================
// Student Read Path & Statistics
// ============================================================================

func TestStudentMarks(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	service := NewService(store)

	sheet, err := service.NewSheet(ctx, csFilter())
	if err != nil {
		t.Fatal(err)
	}
	for id, v := range map[string]int32{"S1": 45, "S2": 38} {
		if err := sheet.Set(id, ValidScore(v)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := service.SubmitSheet(ctx, sheet, true, "FAC1"); err != nil {
		t.Fatal(err)
	}

	views, err := service.StudentMarks(ctx, "S1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 mark for S1, got %d", len(views))
	}
	if views[0].ObtainedMarks != 45 {
		t.Errorf("expected score 45, got %d", views[0].ObtainedMarks)
	}
	if views[0].Exam.ExamType != shared.ExamTypeMid || views[0].Exam.TotalMarks != 50 {
		t.Errorf("exam join missing display fields: %+v", views[0].Exam)
	}
	if views[0].Subject.Name != "Data Structures" {
		t.Errorf("subject join missing display fields: %+v", views[0].Subject)
	}

	if _, err := service.StudentMarks(ctx, "S1", 9); err == nil {
		t.Error("expected validation error for out-of-range semester")
	}
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.students = append(store.students, shared.User{
		ID: "S3", Role: shared.RoleStudent, EnrollmentNo: "2021003", BranchID: "BR_CS", Semester: 3,
	})
	service := NewService(store)

	t.Run("Empty Pair Yields Zero Count", func(t *testing.T) {
		summary, err := service.Statistics(ctx, "EXAM_MID1", "SUB_DS")
		if err != nil {
			t.Fatal(err)
		}
		if summary.Count != 0 {
			t.Errorf("expected empty summary, got %+v", summary)
		}
	})

	t.Run("Summary Matches Recorded Scores", func(t *testing.T) {
		sheet, err := service.NewSheet(ctx, csFilter())
		if err != nil {
			t.Fatal(err)
		}
		for id, v := range map[string]int32{"S1": 30, "S2": 40, "S3": 50} {
			if err := sheet.Set(id, ValidScore(v)); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := service.SubmitSheet(ctx, sheet, true, "FAC1"); err != nil {
			t.Fatal(err)
		}

		summary, err := service.Statistics(ctx, "EXAM_MID1", "SUB_DS")
		if err != nil {
			t.Fatal(err)
		}
		if summary.Count != 3 {
			t.Fatalf("expected 3 scores, got %d", summary.Count)
		}
		if summary.Mean != 40 {
			t.Errorf("mean = %v, want 40", summary.Mean)
		}
		if summary.Median != 40 {
			t.Errorf("median = %v, want 40", summary.Median)
		}
		if summary.Min != 30 || summary.Max != 50 {
			t.Errorf("min/max = %v/%v, want 30/50", summary.Min, summary.Max)
		}
	})

	t.Run("Unknown Exam Errors", func(t *testing.T) {
		if _, err := service.Statistics(ctx, "EXAM_GONE", "SUB_DS"); err == nil {
			t.Error("expected error for unknown exam")
		}
	})
}
