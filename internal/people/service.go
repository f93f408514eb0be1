package people

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"collegemgmt/internal/shared"
)

// Service manages user accounts across the three portals. Only admins reach
// the write operations; the gateway enforces that before calls land here.
type Service struct {
	config      *shared.Config
	usersCol    *mongo.Collection
	branchesCol *mongo.Collection
	sessionsCol *mongo.Collection
	auditCol    *mongo.Collection
}

// NewService creates a new people Service instance
func NewService(db *mongo.Database, config *shared.Config) *Service {
	return &Service{
		config:      config,
		usersCol:    db.Collection(shared.ColUsers),
		branchesCol: db.Collection(shared.ColBranches),
		sessionsCol: db.Collection(shared.ColSessions),
		auditCol:    db.Collection(shared.ColAuditLogs),
	}
}

// ============================================================================
// Account Creation
// ============================================================================

// CreateUserInput carries the fields an admin supplies for a new account.
// Role-specific fields are required per role and ignored otherwise.
type CreateUserInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	Role      string `json:"role" validate:"required,oneof=admin faculty student"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Gender    string `json:"gender"`

	// Student fields
	EnrollmentNo string `json:"enrollmentNo"`
	BranchID     string `json:"branchId"`
	Semester     int32  `json:"semester"`

	// Faculty/admin fields
	EmployeeID  string `json:"employeeId"`
	Department  string `json:"department"`
	Designation string `json:"designation"`
}

// CreateUser registers an account. Email is globally unique; enrollment and
// employee numbers are unique within their role. The enrollment number is
// fixed at creation and never editable afterwards because marks ordering and
// reporting key off it.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput, actor string) (*shared.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, shared.NewValidationError("email", "email is required")
	}
	if len(input.Password) < 6 {
		return nil, shared.NewValidationError("password", "password must be at least 6 characters")
	}
	if !shared.IsValidRole(input.Role) {
		return nil, shared.NewValidationError("role", "role must be admin, faculty or student")
	}
	if strings.TrimSpace(input.FirstName) == "" {
		return nil, shared.NewValidationError("firstName", "firstName is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if count, err := s.usersCol.CountDocuments(queryCtx, bson.M{"email": email}); err != nil {
		return nil, shared.WrapPersistence("email uniqueness check", err)
	} else if count > 0 {
		return nil, &shared.ConflictError{Resource: "user", Detail: "email already registered"}
	}

	user := shared.User{
		ID:        shared.GenerateID(idPrefix(input.Role)),
		Email:     email,
		Role:      input.Role,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Phone:     input.Phone,
		Gender:    input.Gender,
		CreatedAt: time.Now(),
		IsActive:  true,
	}

	switch input.Role {
	case shared.RoleStudent:
		enrollment := strings.TrimSpace(input.EnrollmentNo)
		if enrollment == "" {
			return nil, shared.NewValidationError("enrollmentNo", "enrollmentNo is required for students")
		}
		if !shared.IsValidSemester(input.Semester) {
			return nil, shared.NewValidationError("semester", "semester must be between 1 and 8")
		}
		branchCount, err := s.branchesCol.CountDocuments(queryCtx, bson.M{"_id": input.BranchID})
		if err != nil {
			return nil, shared.WrapPersistence("branch lookup", err)
		}
		if branchCount == 0 {
			return nil, shared.NewValidationError("branchId", "branch does not exist: "+input.BranchID)
		}
		dup, err := s.usersCol.CountDocuments(queryCtx, bson.M{"enrollment_no": enrollment})
		if err != nil {
			return nil, shared.WrapPersistence("enrollment uniqueness check", err)
		}
		if dup > 0 {
			return nil, &shared.ConflictError{Resource: "user", Detail: "enrollment number already registered"}
		}
		user.EnrollmentNo = enrollment
		user.BranchID = input.BranchID
		user.Semester = input.Semester

	case shared.RoleFaculty, shared.RoleAdmin:
		employee := strings.TrimSpace(input.EmployeeID)
		if employee == "" {
			return nil, shared.NewValidationError("employeeId", "employeeId is required for staff")
		}
		dup, err := s.usersCol.CountDocuments(queryCtx, bson.M{"employee_id": employee})
		if err != nil {
			return nil, shared.WrapPersistence("employee uniqueness check", err)
		}
		if dup > 0 {
			return nil, &shared.ConflictError{Resource: "user", Detail: "employee ID already registered"}
		}
		user.EmployeeID = employee
		user.Department = input.Department
		user.Designation = input.Designation
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.config.Security.BCryptCost)
	if err != nil {
		return nil, shared.WrapPersistence("password hash", err)
	}
	user.PasswordHash = string(hash)

	if _, err := s.usersCol.InsertOne(queryCtx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &shared.ConflictError{Resource: "user", Detail: "email already registered"}
		}
		return nil, shared.WrapPersistence("user insert", err)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "user_create", "users", map[string]interface{}{
		"user_id": user.ID, "role": user.Role,
	})
	return &user, nil
}

// ============================================================================
// Profiles & Search
// ============================================================================

// GetUser returns one account by ID.
func (s *Service) GetUser(ctx context.Context, userID string) (*shared.User, error) {
	if userID == "" {
		return nil, shared.NewValidationError("userId", "userId is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var user shared.User
	if err := s.usersCol.FindOne(queryCtx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, shared.NewNotFoundError("user", userID)
		}
		return nil, shared.WrapPersistence("user lookup", err)
	}
	return &user, nil
}

// SearchStudents finds students by enrollment number, name fragment, branch
// or semester, sorted by enrollment number.
func (s *Service) SearchStudents(ctx context.Context, filter shared.StudentFilter) ([]shared.User, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{"role": shared.RoleStudent}
	if filter.EnrollmentNo != "" {
		query["enrollment_no"] = filter.EnrollmentNo
	}
	if filter.Name != "" {
		nameRegex := primitive.Regex{Pattern: shared.EscapeRegex(filter.Name), Options: "i"}
		query["$or"] = []bson.M{
			{"first_name": nameRegex},
			{"last_name": nameRegex},
		}
	}
	if filter.BranchID != "" {
		query["branch_id"] = filter.BranchID
	}
	if filter.Semester != 0 {
		if !shared.IsValidSemester(filter.Semester) {
			return nil, shared.NewValidationError("semester", "semester must be between 1 and 8")
		}
		query["semester"] = filter.Semester
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "enrollment_no", Value: 1}}).SetLimit(200)
	cursor, err := s.usersCol.Find(queryCtx, query, findOptions)
	if err != nil {
		return nil, shared.WrapPersistence("student search", err)
	}
	defer cursor.Close(queryCtx)

	students := []shared.User{}
	if err := cursor.All(queryCtx, &students); err != nil {
		return nil, shared.WrapPersistence("student decode", err)
	}
	return students, nil
}

// ListFaculty returns every faculty account, sorted by name.
func (s *Service) ListFaculty(ctx context.Context) ([]shared.User, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	findOptions := options.Find().SetSort(bson.D{{Key: "first_name", Value: 1}})
	cursor, err := s.usersCol.Find(queryCtx, bson.M{"role": shared.RoleFaculty}, findOptions)
	if err != nil {
		return nil, shared.WrapPersistence("faculty list", err)
	}
	defer cursor.Close(queryCtx)

	faculty := []shared.User{}
	if err := cursor.All(queryCtx, &faculty); err != nil {
		return nil, shared.WrapPersistence("faculty decode", err)
	}
	return faculty, nil
}

// ============================================================================
// Profile Updates
// ============================================================================

// UpdateProfileInput carries the fields a user (or admin) may change after
// creation. Identity fields (email, role, enrollmentNo, employeeId) are
// deliberately absent.
type UpdateProfileInput struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Phone       string `json:"phone"`
	Gender      string `json:"gender"`
	Semester    int32  `json:"semester"`
	Department  string `json:"department"`
	Designation string `json:"designation"`
}

// UpdateProfile applies the mutable profile fields. Zero-valued fields are
// left untouched. Semester updates (promotion) only apply to students.
func (s *Service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput, actor string) (*shared.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": time.Now()}
	if v := strings.TrimSpace(input.FirstName); v != "" {
		set["first_name"] = v
	}
	if v := strings.TrimSpace(input.LastName); v != "" {
		set["last_name"] = v
	}
	if input.Phone != "" {
		set["phone"] = input.Phone
	}
	if input.Gender != "" {
		set["gender"] = input.Gender
	}
	if input.Semester != 0 {
		if user.Role != shared.RoleStudent {
			return nil, shared.NewValidationError("semester", "only students have a semester")
		}
		if !shared.IsValidSemester(input.Semester) {
			return nil, shared.NewValidationError("semester", "semester must be between 1 and 8")
		}
		set["semester"] = input.Semester
	}
	if user.Role != shared.RoleStudent {
		if input.Department != "" {
			set["department"] = input.Department
		}
		if input.Designation != "" {
			set["designation"] = input.Designation
		}
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.usersCol.UpdateOne(queryCtx, bson.M{"_id": userID}, bson.M{"$set": set}); err != nil {
		return nil, shared.WrapPersistence("profile update", err)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, "profile_update", "users", map[string]interface{}{
		"user_id": userID,
	})
	return s.GetUser(ctx, userID)
}

// SetActive enables or disables an account. Disabling also revokes every
// live session so the account is locked out immediately.
func (s *Service) SetActive(ctx context.Context, userID string, active bool, actor string) error {
	if userID == "" {
		return shared.NewValidationError("userId", "userId is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := s.usersCol.UpdateOne(queryCtx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{"is_active": active, "updated_at": time.Now()},
	})
	if err != nil {
		return shared.WrapPersistence("account status update", err)
	}
	if result.MatchedCount == 0 {
		return shared.NewNotFoundError("user", userID)
	}

	if !active {
		_, _ = s.sessionsCol.DeleteMany(queryCtx, bson.M{"user_id": userID})
	}

	action := "user_enable"
	if !active {
		action = "user_disable"
	}
	_ = shared.LogAuditEvent(ctx, s.auditCol, actor, action, "users", map[string]interface{}{
		"user_id": userID,
	})
	return nil
}

// RecentAudit returns the newest administrative audit records for the admin
// activity view.
func (s *Service) RecentAudit(ctx context.Context, limit int64) ([]shared.AuditEvent, error) {
	return shared.RecentAuditEvents(ctx, s.auditCol, limit)
}

func idPrefix(role string) string {
	switch role {
	case shared.RoleStudent:
		return "STU"
	case shared.RoleFaculty:
		return "FAC"
	default:
		return "ADM"
	}
}
