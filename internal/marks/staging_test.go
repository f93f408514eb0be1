package marks

import (
	"testing"

	"collegemgmt/internal/shared"
)

func TestParseScore(t *testing.T) {
	t.Run("Empty Input Is Unset", func(t *testing.T) {
		score := ParseScore("")
		if !score.IsUnset() {
			t.Errorf("expected unset, got %+v", score)
		}
		if score.IsSet() {
			t.Error("unset score must not report IsSet")
		}
	})

	t.Run("Whitespace Is Unset", func(t *testing.T) {
		if !ParseScore("   ").IsUnset() {
			t.Error("expected whitespace-only input to be unset")
		}
	})

	t.Run("Zero Is A Valid Score Distinct From Unset", func(t *testing.T) {
		score := ParseScore("0")
		if score.IsUnset() {
			t.Fatal("zero must not be treated as unset")
		}
		v, ok := score.Value()
		if !ok || v != 0 {
			t.Errorf("expected valid 0, got %v ok=%v", v, ok)
		}
	})

	t.Run("Non Numeric Input Is Invalid Not Unset", func(t *testing.T) {
		score := ParseScore("forty")
		if score.IsUnset() {
			t.Error("unparseable input must not be unset")
		}
		if score.IsSet() {
			t.Error("unparseable input must not be a concrete score")
		}
		if score.Raw() != "forty" {
			t.Errorf("raw input should be retained, got %q", score.Raw())
		}
	})

	t.Run("Surrounding Whitespace Is Tolerated", func(t *testing.T) {
		v, ok := ParseScore(" 42 ").Value()
		if !ok || v != 42 {
			t.Errorf("expected 42, got %v ok=%v", v, ok)
		}
	})

	t.Run("Negative Input Parses And Is Caught At Submission", func(t *testing.T) {
		// Range validation is a submission concern, not an entry concern.
		v, ok := ParseScore("-3").Value()
		if !ok || v != -3 {
			t.Errorf("expected -3 to parse, got %v ok=%v", v, ok)
		}
	})
}

func testRoster() (shared.RosterFilter, []shared.RosterEntry) {
	filter := shared.RosterFilter{
		BranchID:  "BR_CS",
		SubjectID: "SUB_DS",
		Semester:  3,
		ExamID:    "EXAM_MID1",
	}
	prior := int32(40)
	roster := []shared.RosterEntry{
		{StudentID: "S1", EnrollmentNo: "2021001", Name: "Asha Rao"},
		{StudentID: "S2", EnrollmentNo: "2021002", Name: "Dev Mehta", ObtainedMarks: &prior},
		{StudentID: "S3", EnrollmentNo: "2021003", Name: "Kiran Shah"},
	}
	return filter, roster
}

func TestEntrySheet(t *testing.T) {
	t.Run("Seeding Mirrors Roster", func(t *testing.T) {
		filter, roster := testRoster()
		sheet := NewEntrySheet(filter, roster)

		if sheet.Len() != 3 {
			t.Fatalf("expected 3 entries, got %d", sheet.Len())
		}

		score, ok := sheet.ScoreFor("S1")
		if !ok || !score.IsUnset() {
			t.Error("ungraded student should seed as unset")
		}

		score, ok = sheet.ScoreFor("S2")
		if !ok {
			t.Fatal("missing entry for S2")
		}
		if v, set := score.Value(); !set || v != 40 {
			t.Errorf("previously graded student should seed with recorded score, got %v", v)
		}
	})

	t.Run("Set Rejects Students Outside The Roster", func(t *testing.T) {
		filter, roster := testRoster()
		sheet := NewEntrySheet(filter, roster)

		err := sheet.Set("S99", ValidScore(10))
		if err == nil {
			t.Fatal("expected error for off-roster student")
		}
		if _, ok := err.(*shared.ValidationError); !ok {
			t.Errorf("expected ValidationError, got %T", err)
		}
	})

	t.Run("MissingCount Tracks Unset And Invalid Entries", func(t *testing.T) {
		filter, roster := testRoster()
		sheet := NewEntrySheet(filter, roster)

		if got := sheet.MissingCount(); got != 2 {
			t.Fatalf("expected 2 missing after seeding, got %d", got)
		}

		if err := sheet.Set("S1", ParseScore("45")); err != nil {
			t.Fatal(err)
		}
		if err := sheet.Set("S3", ParseScore("oops")); err != nil {
			t.Fatal(err)
		}

		if got := sheet.MissingCount(); got != 1 {
			t.Errorf("invalid input should still count as missing, got %d", got)
		}
	})

	t.Run("Reset Discards Everything", func(t *testing.T) {
		filter, roster := testRoster()
		sheet := NewEntrySheet(filter, roster)
		if err := sheet.Set("S1", ValidScore(12)); err != nil {
			t.Fatal(err)
		}

		sheet.Reset()

		if sheet.Len() != 0 {
			t.Errorf("expected empty sheet after reset, got %d entries", sheet.Len())
		}
		if _, ok := sheet.ScoreFor("S1"); ok {
			t.Error("entries must not survive a reset")
		}
	})

	t.Run("Batch Is Built In Roster Order", func(t *testing.T) {
		filter, roster := testRoster()
		sheet := NewEntrySheet(filter, roster)
		for i, id := range []string{"S1", "S2", "S3"} {
			if err := sheet.Set(id, ValidScore(int32(10+i))); err != nil {
				t.Fatal(err)
			}
		}

		batch := sheet.buildBatch("FAC1")
		if len(batch.Entries) != 3 {
			t.Fatalf("expected 3 batch entries, got %d", len(batch.Entries))
		}
		if batch.Entries[0].StudentID != "S1" || batch.Entries[2].StudentID != "S3" {
			t.Errorf("batch order should follow roster order, got %+v", batch.Entries)
		}
		if batch.ExamID != filter.ExamID || batch.SubjectID != filter.SubjectID {
			t.Error("batch must carry the sheet's filter scope")
		}
	})
}
