package shared

import (
	"testing"
	"time"
)

func TestFullName(t *testing.T) {
	both := User{FirstName: "Asha", LastName: "Rao"}
	if got := both.FullName(); got != "Asha Rao" {
		t.Errorf("FullName() = %q", got)
	}
	single := User{FirstName: "Asha"}
	if got := single.FullName(); got != "Asha" {
		t.Errorf("FullName() without last name = %q", got)
	}
}

func TestSessionIsExpired(t *testing.T) {
	live := Session{ExpiresAt: time.Now().Add(time.Hour)}
	if live.IsExpired() {
		t.Error("future expiry reported as expired")
	}
	dead := Session{ExpiresAt: time.Now().Add(-time.Minute)}
	if !dead.IsExpired() {
		t.Error("past expiry reported as live")
	}
}

func TestValidators(t *testing.T) {
	t.Run("Semester Bounds", func(t *testing.T) {
		for _, semester := range []int32{1, 4, 8} {
			if !IsValidSemester(semester) {
				t.Errorf("semester %d should be valid", semester)
			}
		}
		for _, semester := range []int32{0, -1, 9} {
			if IsValidSemester(semester) {
				t.Errorf("semester %d should be invalid", semester)
			}
		}
	})

	t.Run("Roles", func(t *testing.T) {
		for _, role := range []string{RoleAdmin, RoleFaculty, RoleStudent} {
			if !IsValidRole(role) {
				t.Errorf("role %q should be valid", role)
			}
		}
		if IsValidRole("superuser") {
			t.Error("unknown role accepted")
		}
	})

	t.Run("Exam Types", func(t *testing.T) {
		if !IsValidExamType(ExamTypeMid) || !IsValidExamType(ExamTypeEnd) {
			t.Error("known exam types rejected")
		}
		if IsValidExamType("quiz") {
			t.Error("unknown exam type accepted")
		}
	})

	t.Run("Audiences", func(t *testing.T) {
		if !IsValidAudience(AudienceBoth) {
			t.Error("known audience rejected")
		}
		if IsValidAudience("everyone") {
			t.Error("unknown audience accepted")
		}
	})
}

func TestGenerateID(t *testing.T) {
	first := GenerateID("MARK")
	second := GenerateID("MARK")
	if first == second {
		t.Error("consecutive IDs must differ")
	}
	if first[:5] != "MARK_" {
		t.Errorf("prefix missing: %q", first)
	}
}
