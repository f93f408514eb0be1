package marks

import (
	"strconv"
	"strings"

	"collegemgmt/internal/shared"
)

// scoreState distinguishes the three shapes a candidate entry can take while
// the sheet is being edited. Zero is a valid score, so "unset" has to be its
// own state rather than a sentinel value.
type scoreState int

const (
	scoreUnset scoreState = iota
	scoreInvalid
	scoreValid
)

// Score is one candidate entry: Unset, Invalid (raw text that does not parse
// to a non-negative integer), or Valid (a concrete integer score). Range
// checking against the exam ceiling is deferred to submission.
type Score struct {
	state scoreState
	raw   string
	value int32
}

// Unset returns the marker for a student who has no candidate score yet.
func Unset() Score {
	return Score{state: scoreUnset}
}

// ValidScore returns a Score carrying a concrete integer value.
func ValidScore(v int32) Score {
	return Score{state: scoreValid, value: v}
}

// ParseScore converts free-form input into a Score. Empty input is Unset;
// anything that fails to parse as an integer is retained as Invalid so the
// raw text can be echoed back to the user.
func ParseScore(raw string) Score {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Unset()
	}
	v, err := strconv.ParseInt(trimmed, 10, 32)
	if err != nil {
		return Score{state: scoreInvalid, raw: raw}
	}
	return Score{state: scoreValid, raw: raw, value: int32(v)}
}

// IsSet reports whether the entry holds a parseable score.
func (s Score) IsSet() bool {
	return s.state == scoreValid
}

// IsUnset reports whether the entry was never filled in.
func (s Score) IsUnset() bool {
	return s.state == scoreUnset
}

// Value returns the concrete score; ok is false for Unset and Invalid entries.
func (s Score) Value() (int32, bool) {
	if s.state != scoreValid {
		return 0, false
	}
	return s.value, true
}

// Raw returns the original input text for Invalid and Valid entries.
func (s Score) Raw() string {
	return s.raw
}

// ============================================================================
// Entry Sheet
// ============================================================================

// EntrySheet is the staging model for one marks-entry session: a mapping from
// rostered student to candidate score, scoped to exactly one
// (branch, subject, semester, exam) combination. It is a transient working
// copy with no authority; the server-side Mark records stay authoritative.
//
// Lifecycle: seeded 1:1 from a roster query, mutated freely while editing,
// and discarded on cancel or successful submission. It is never partially
// flushed.
type EntrySheet struct {
	filter  shared.RosterFilter
	order   []string
	entries map[string]Score
	numbers map[string]string // student id -> enrollment number, for reporting
}

// NewEntrySheet seeds a sheet from a roster result. Every rostered student
// gets an entry: their previously recorded score when one exists, otherwise
// the explicit unset marker.
func NewEntrySheet(filter shared.RosterFilter, roster []shared.RosterEntry) *EntrySheet {
	sheet := &EntrySheet{
		filter:  filter,
		order:   make([]string, 0, len(roster)),
		entries: make(map[string]Score, len(roster)),
		numbers: make(map[string]string, len(roster)),
	}
	for _, entry := range roster {
		sheet.order = append(sheet.order, entry.StudentID)
		sheet.numbers[entry.StudentID] = entry.EnrollmentNo
		if entry.ObtainedMarks != nil {
			sheet.entries[entry.StudentID] = ValidScore(*entry.ObtainedMarks)
		} else {
			sheet.entries[entry.StudentID] = Unset()
		}
	}
	return sheet
}

// Filter returns the (branch, subject, semester, exam) combination this sheet
// is scoped to.
func (s *EntrySheet) Filter() shared.RosterFilter {
	return s.filter
}

// Len returns the number of rostered students on the sheet.
func (s *EntrySheet) Len() int {
	return len(s.order)
}

// Set records a candidate score for a rostered student. Free-form input is
// accepted without validation at entry time; validation happens as a whole at
// submission. Setting a student who is not on the roster is rejected because
// a batch is scoped to exactly one roster.
func (s *EntrySheet) Set(studentID string, score Score) error {
	if _, ok := s.entries[studentID]; !ok {
		return shared.NewValidationError("studentId", "student "+studentID+" is not on the roster for this search")
	}
	s.entries[studentID] = score
	return nil
}

// ScoreFor returns the candidate score for a student.
func (s *EntrySheet) ScoreFor(studentID string) (Score, bool) {
	score, ok := s.entries[studentID]
	return score, ok
}

// MissingCount returns how many entries are not yet concrete scores (unset or
// unparseable input).
func (s *EntrySheet) MissingCount() int {
	missing := 0
	for _, score := range s.entries {
		if !score.IsSet() {
			missing++
		}
	}
	return missing
}

// Reset discards every staged entry. Called on back/cancel and after a
// successful submission.
func (s *EntrySheet) Reset() {
	s.order = nil
	s.entries = make(map[string]Score)
	s.numbers = make(map[string]string)
}

// buildBatch converts the staged set into the immutable submission value.
// Callers must have verified completeness first; entries without a concrete
// value are skipped, never coerced to zero.
func (s *EntrySheet) buildBatch(enteredBy string) Batch {
	batch := Batch{
		ExamID:    s.filter.ExamID,
		SubjectID: s.filter.SubjectID,
		Semester:  s.filter.Semester,
		EnteredBy: enteredBy,
		Entries:   make([]BatchEntry, 0, len(s.order)),
	}
	for _, studentID := range s.order {
		if v, ok := s.entries[studentID].Value(); ok {
			batch.Entries = append(batch.Entries, BatchEntry{
				StudentID:     studentID,
				ObtainedMarks: v,
			})
		}
	}
	return batch
}
