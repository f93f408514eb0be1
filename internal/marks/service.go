package marks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/montanaflynn/stats"

	"collegemgmt/internal/shared"
)

// Service implements the marks batch-entry workflow: roster query, batch
// validation and submission, and the student's own results read.
type Service struct {
	store Store
}

// NewService creates a new marks Service instance
func NewService(store Store) *Service {
	return &Service{store: store}
}

// ============================================================================
// Roster Query
// ============================================================================

// Roster selects the students eligible for a marks-entry session. All four
// filter fields are required and must reference existing entities; the
// subject must belong to the filtered branch and the exam to the filtered
// semester, because a batch may never mix combinations. An empty roster is a
// valid, non-error outcome.
func (s *Service) Roster(ctx context.Context, filter shared.RosterFilter) ([]shared.RosterEntry, error) {
	if filter.BranchID == "" {
		return nil, shared.NewValidationError("branch", "branch is required")
	}
	if filter.SubjectID == "" {
		return nil, shared.NewValidationError("subject", "subject is required")
	}
	if filter.ExamID == "" {
		return nil, shared.NewValidationError("examId", "examId is required")
	}
	if !shared.IsValidSemester(filter.Semester) {
		return nil, shared.NewValidationError("semester", "semester must be between 1 and 8")
	}

	exists, err := s.store.BranchExists(ctx, filter.BranchID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, shared.NewValidationError("branch", "branch does not exist: "+filter.BranchID)
	}

	subject, err := s.store.SubjectByID(ctx, filter.SubjectID)
	if err != nil {
		if _, ok := err.(*shared.NotFoundError); ok {
			return nil, shared.NewValidationError("subject", "subject does not exist: "+filter.SubjectID)
		}
		return nil, err
	}
	if subject.BranchID != filter.BranchID {
		return nil, shared.NewValidationError("subject", "subject does not belong to the selected branch")
	}

	exam, err := s.store.ExamByID(ctx, filter.ExamID)
	if err != nil {
		if _, ok := err.(*shared.NotFoundError); ok {
			return nil, shared.NewValidationError("examId", "exam does not exist: "+filter.ExamID)
		}
		return nil, err
	}
	if exam.Semester != filter.Semester {
		return nil, shared.NewValidationError("examId", "exam is not scheduled for the selected semester")
	}

	return s.store.Roster(ctx, filter)
}

// NewSheet runs the roster query and seeds an entry sheet from the result.
func (s *Service) NewSheet(ctx context.Context, filter shared.RosterFilter) (*EntrySheet, error) {
	roster, err := s.Roster(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		return nil, shared.NewNotFoundError("students", "")
	}
	return NewEntrySheet(filter, roster), nil
}

// ============================================================================
// Batch Validation & Submission
// ============================================================================

// SubmissionReceipt reports a committed batch.
type SubmissionReceipt struct {
	Entries     int       `json:"entries"`
	ExamID      string    `json:"examId"`
	SubjectID   string    `json:"subjectId"`
	Semester    int32     `json:"semester"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// StudentScore is one (student, score) pair of an incoming bulk submission.
type StudentScore struct {
	StudentID     string `json:"studentId" validate:"required"`
	ObtainedMarks int32  `json:"obtainedMarks"`
}

// BulkSubmission is the wire-level batch: scores for every rostered student
// of one (subject, semester, exam) combination, plus the attestation flag.
type BulkSubmission struct {
	Marks     []StudentScore `json:"marks" validate:"required,min=1,dive"`
	ExamID    string         `json:"examId" validate:"required"`
	SubjectID string         `json:"subjectId" validate:"required"`
	Semester  int32          `json:"semester" validate:"required,min=1,max=8"`
	Consent   bool           `json:"consent"`
	EnteredBy string         `json:"-"`
}

// SubmitSheet validates a staged sheet as a whole and commits it as one
// batch. Preconditions run in order, short-circuiting on first failure,
// before any persistence interaction:
//
//  1. consent must be given
//  2. every rostered student must carry a concrete score
//  3. every score must lie within 0..exam.totalMarks
//
// On success the sheet is cleared; on failure it is left untouched so the
// caller can correct and retry without re-entering anything.
func (s *Service) SubmitSheet(ctx context.Context, sheet *EntrySheet, consent bool, enteredBy string) (*SubmissionReceipt, error) {
	if !consent {
		return nil, shared.ErrConsentRequired
	}
	if sheet == nil || sheet.Len() == 0 {
		return nil, shared.NewValidationError("marks", "nothing staged for submission")
	}

	if missing := sheet.MissingCount(); missing > 0 {
		return nil, &shared.IncompleteSubmissionError{Missing: missing}
	}

	// A vanished exam at this point is a hard error, not an empty result:
	// the staged set was built against it.
	exam, err := s.store.ExamByID(ctx, sheet.Filter().ExamID)
	if err != nil {
		return nil, err
	}

	for _, studentID := range sheet.order {
		score := sheet.entries[studentID]
		v, _ := score.Value()
		if v < 0 || v > exam.TotalMarks {
			enrollment := sheet.numbers[studentID]
			return nil, shared.NewValidationError("obtainedMarks",
				fmt.Sprintf("score %d for %s is outside 0..%d", v, enrollment, exam.TotalMarks))
		}
	}

	batch := sheet.buildBatch(enteredBy)
	if err := s.store.UpsertBatch(ctx, batch); err != nil {
		return nil, err
	}

	log.Printf("[MarksService] committed batch of %d entries for exam %s subject %s",
		len(batch.Entries), batch.ExamID, batch.SubjectID)

	receipt := &SubmissionReceipt{
		Entries:     len(batch.Entries),
		ExamID:      batch.ExamID,
		SubjectID:   batch.SubjectID,
		Semester:    batch.Semester,
		SubmittedAt: time.Now(),
	}
	sheet.Reset()
	return receipt, nil
}

// SubmitBulk rebuilds the staged sheet server-side from a wire submission
// and runs it through the same validation pipeline as SubmitSheet. The
// roster is re-queried so completeness is checked against current
// membership: a submission missing any rostered student, or naming a student
// outside the roster, is rejected whole.
func (s *Service) SubmitBulk(ctx context.Context, sub BulkSubmission) (*SubmissionReceipt, error) {
	if !sub.Consent {
		return nil, shared.ErrConsentRequired
	}
	if sub.ExamID == "" {
		return nil, shared.NewValidationError("examId", "examId is required")
	}
	if sub.SubjectID == "" {
		return nil, shared.NewValidationError("subjectId", "subjectId is required")
	}
	if !shared.IsValidSemester(sub.Semester) {
		return nil, shared.NewValidationError("semester", "semester must be between 1 and 8")
	}
	if len(sub.Marks) == 0 {
		return nil, shared.NewValidationError("marks", "no mark entries provided")
	}

	// The wire shape omits the branch; it is derived from the subject so the
	// batch stays scoped to one (branch, subject, semester, exam) combination.
	subject, err := s.store.SubjectByID(ctx, sub.SubjectID)
	if err != nil {
		return nil, err
	}

	filter := shared.RosterFilter{
		BranchID:  subject.BranchID,
		SubjectID: sub.SubjectID,
		Semester:  sub.Semester,
		ExamID:    sub.ExamID,
	}
	sheet, err := s.NewSheet(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Start every entry from unset: completeness must come from this
	// submission, not from scores recorded in an earlier one.
	for _, studentID := range sheet.order {
		sheet.entries[studentID] = Unset()
	}
	for _, mark := range sub.Marks {
		if err := sheet.Set(mark.StudentID, ValidScore(mark.ObtainedMarks)); err != nil {
			return nil, err
		}
	}

	return s.SubmitSheet(ctx, sheet, sub.Consent, sub.EnteredBy)
}

// ============================================================================
// Student Read Path
// ============================================================================

// StudentMarks returns the caller's own marks for one semester, joined with
// exam and subject display fields. Read-only, self-service.
func (s *Service) StudentMarks(ctx context.Context, studentID string, semester int32) ([]shared.StudentMarkView, error) {
	if studentID == "" {
		return nil, shared.NewValidationError("studentId", "studentId is required")
	}
	if !shared.IsValidSemester(semester) {
		return nil, shared.NewValidationError("semester", "semester must be between 1 and 8")
	}
	return s.store.StudentMarks(ctx, studentID, semester)
}

// ============================================================================
// Exam Statistics
// ============================================================================

// ExamStatistics summarizes the recorded scores for an (exam, subject) pair.
type ExamStatistics struct {
	Count        int     `json:"count"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	StdDev       float64 `json:"stdDev"`
	Percentile90 float64 `json:"percentile90"`
}

// Statistics computes score statistics for an exam+subject. A pair with no
// recorded marks yields a zero-count summary, not an error.
func (s *Service) Statistics(ctx context.Context, examID, subjectID string) (*ExamStatistics, error) {
	if examID == "" {
		return nil, shared.NewValidationError("examId", "examId is required")
	}
	if subjectID == "" {
		return nil, shared.NewValidationError("subjectId", "subjectId is required")
	}

	if _, err := s.store.ExamByID(ctx, examID); err != nil {
		return nil, err
	}
	if _, err := s.store.SubjectByID(ctx, subjectID); err != nil {
		return nil, err
	}

	scores, err := s.store.ObtainedScores(ctx, examID, subjectID)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return &ExamStatistics{}, nil
	}

	result := &ExamStatistics{Count: len(scores)}
	data := stats.Float64Data(scores)

	if result.Mean, err = data.Mean(); err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	if result.Median, err = data.Median(); err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	if result.Min, err = data.Min(); err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	if result.Max, err = data.Max(); err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	if result.StdDev, err = data.StandardDeviation(); err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	if result.Percentile90, err = data.Percentile(90); err != nil {
		// Percentile needs more than one sample; a single mark is its own
		// 90th percentile.
		result.Percentile90 = scores[0]
	}

	return result, nil
}
