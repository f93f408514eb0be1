// ============================================================================
// internal/shared/models.go
// Shared data models and structs for MongoDB documents
// ============================================================================

package shared

import (
	"time"
)

// ============================================================================
// User Models
// ============================================================================

// User represents an account in any of the three portals (admin, faculty,
// student). Role-specific fields are omitted from BSON when empty.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password_hash" json:"-"` // Never expose in JSON
	Role         string    `bson:"role" json:"role"`       // admin, faculty, student
	FirstName    string    `bson:"first_name" json:"firstName"`
	LastName     string    `bson:"last_name" json:"lastName"`
	Phone        string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Gender       string    `bson:"gender,omitempty" json:"gender,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`

	// Student-specific fields
	EnrollmentNo string `bson:"enrollment_no,omitempty" json:"enrollmentNo,omitempty"`
	BranchID     string `bson:"branch_id,omitempty" json:"branchId,omitempty"`
	Semester     int32  `bson:"semester,omitempty" json:"semester,omitempty"`

	// Faculty/admin-specific fields
	EmployeeID   string `bson:"employee_id,omitempty" json:"employeeId,omitempty"`
	Department   string `bson:"department,omitempty" json:"department,omitempty"`
	Designation  string `bson:"designation,omitempty" json:"designation,omitempty"`
	IsSuperAdmin bool   `bson:"is_super_admin,omitempty" json:"isSuperAdmin,omitempty"`

	// Account status
	IsActive bool `bson:"is_active" json:"isActive"`
}

// FullName returns the display name used across portal screens.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Session represents an active user session (for JWT tracking)
type Session struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"user_id" json:"userId"`
	Token     string    `bson:"token" json:"token"`
	ExpiresAt time.Time `bson:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	IPAddress string    `bson:"ip_address,omitempty" json:"ipAddress,omitempty"`
}

// IsExpired checks if a session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// ============================================================================
// Academic Structure Models
// ============================================================================

// Branch represents an academic branch/stream (e.g. Computer Science)
type Branch struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Code      string    `bson:"code,omitempty" json:"code,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// Subject represents a taught subject. Referenced, never owned, by Mark.
type Subject struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Code      string    `bson:"code" json:"code"`
	BranchID  string    `bson:"branch_id" json:"branchId"`
	Semester  int32     `bson:"semester" json:"semester"`
	Credits   int32     `bson:"credits" json:"credits"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// Exam represents an examination. TotalMarks is the immutable ceiling that
// bounds every obtained score recorded against this exam.
type Exam struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Date        time.Time `bson:"date" json:"date"`
	Semester    int32     `bson:"semester" json:"semester"`
	ExamType    string    `bson:"exam_type" json:"examType"` // mid, end
	TotalMarks  int32     `bson:"total_marks" json:"totalMarks"`
	ScheduleRef string    `bson:"schedule_ref,omitempty" json:"scheduleRef,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// ============================================================================
// Mark Models
// ============================================================================

// Mark records one student's result for one (exam, subject) pair.
// At most one Mark exists per (student_id, exam_id, subject_id) triple;
// resubmission overwrites ObtainedMarks in place.
type Mark struct {
	ID            string    `bson:"_id" json:"id"`
	StudentID     string    `bson:"student_id" json:"studentId"`
	ExamID        string    `bson:"exam_id" json:"examId"`
	SubjectID     string    `bson:"subject_id" json:"subjectId"`
	Semester      int32     `bson:"semester" json:"semester"`
	ObtainedMarks int32     `bson:"obtained_marks" json:"obtainedMarks"`
	EnteredBy     string    `bson:"entered_by" json:"enteredBy"`
	EnteredAt     time.Time `bson:"entered_at" json:"enteredAt"`
	UpdatedBy     string    `bson:"updated_by,omitempty" json:"updatedBy,omitempty"`
	UpdatedAt     time.Time `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// RosterEntry is one student in a marks-entry roster, annotated with any
// previously recorded score for the queried (exam, subject) pair.
// ObtainedMarks is nil when the student has never been graded; zero is a
// valid recorded score and must not be conflated with "unset".
type RosterEntry struct {
	StudentID     string `bson:"_id" json:"id"`
	EnrollmentNo  string `bson:"enrollment_no" json:"enrollmentNo"`
	Name          string `bson:"name" json:"name"`
	ObtainedMarks *int32 `bson:"obtained_marks,omitempty" json:"obtainedMarks,omitempty"`
}

// StudentMarkView is a Mark joined with exam and subject display fields for
// the student's own results screen.
type StudentMarkView struct {
	ID            string     `json:"id"`
	ObtainedMarks int32      `json:"obtainedMarks"`
	Semester      int32      `json:"semester"`
	Exam          ExamRef    `json:"examId"`
	Subject       SubjectRef `json:"subjectId"`
}

// ExamRef carries the exam fields the results screen renders.
type ExamRef struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ExamType   string    `json:"examType"`
	TotalMarks int32     `json:"totalMarks"`
	Date       time.Time `json:"date"`
}

// SubjectRef carries the subject fields the results screen renders.
type SubjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// ============================================================================
// Bulletin Models
// ============================================================================

// Notice is a portal announcement targeted at an audience.
type Notice struct {
	ID          string    `bson:"_id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	Audience    string    `bson:"audience" json:"audience"` // student, faculty, both
	Link        string    `bson:"link,omitempty" json:"link,omitempty"`
	CreatedBy   string    `bson:"created_by" json:"createdBy"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// Material is a study material posted by faculty for a subject/semester.
type Material struct {
	ID         string    `bson:"_id" json:"id"`
	Title      string    `bson:"title" json:"title"`
	SubjectID  string    `bson:"subject_id" json:"subjectId"`
	Semester   int32     `bson:"semester" json:"semester"`
	Type       string    `bson:"type" json:"type"` // notes, assignment, syllabus, other
	FileRef    string    `bson:"file_ref" json:"fileRef"`
	UploadedBy string    `bson:"uploaded_by" json:"uploadedBy"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// Timetable is the posted class timetable image for one (branch, semester).
// Posting again for the same pair replaces the previous file reference.
type Timetable struct {
	ID        string    `bson:"_id" json:"id"`
	BranchID  string    `bson:"branch_id" json:"branchId"`
	Semester  int32     `bson:"semester" json:"semester"`
	FileRef   string    `bson:"file_ref" json:"fileRef"`
	PostedBy  string    `bson:"posted_by" json:"postedBy"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// ============================================================================
// Filter/Query Models
// ============================================================================

// RosterFilter identifies one marks-entry search. All four fields are
// required and must reference existing entities.
type RosterFilter struct {
	BranchID  string
	SubjectID string
	Semester  int32
	ExamID    string
}

// SubjectFilter represents filters for subject queries
type SubjectFilter struct {
	BranchID string
	Semester int32
}

// StudentFilter represents filters for student search
type StudentFilter struct {
	EnrollmentNo string
	Name         string
	BranchID     string
	Semester     int32
}

// ============================================================================
// Validation Constants
// ============================================================================

const (
	// User roles
	RoleAdmin   = "admin"
	RoleFaculty = "faculty"
	RoleStudent = "student"

	// Exam categories
	ExamTypeMid = "mid"
	ExamTypeEnd = "end"

	// Notice audiences
	AudienceStudent = "student"
	AudienceFaculty = "faculty"
	AudienceBoth    = "both"

	// Semester bounds
	MinSemester = 1
	MaxSemester = 8
)

// IsValidRole checks if user role is valid
func IsValidRole(role string) bool {
	validRoles := map[string]bool{
		RoleAdmin: true, RoleFaculty: true, RoleStudent: true,
	}
	return validRoles[role]
}

// IsValidExamType checks if exam category is valid
func IsValidExamType(examType string) bool {
	return examType == ExamTypeMid || examType == ExamTypeEnd
}

// IsValidAudience checks if notice audience is valid
func IsValidAudience(audience string) bool {
	validAudiences := map[string]bool{
		AudienceStudent: true, AudienceFaculty: true, AudienceBoth: true,
	}
	return validAudiences[audience]
}

// IsValidSemester checks if semester is within the 1-8 program range
func IsValidSemester(semester int32) bool {
	return semester >= MinSemester && semester <= MaxSemester
}
