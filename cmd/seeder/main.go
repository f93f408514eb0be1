package main

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"collegemgmt/internal/shared"
)

// Fixed IDs so reseeding is idempotent and demo credentials stay stable.
const (
	AdminID    = "ADM_seed_admin"
	FacultyID1 = "FAC_seed_sharma"
	StudentID1 = "STU_seed_2021001"
	StudentID2 = "STU_seed_2021002"
	StudentID3 = "STU_seed_2021003"

	BranchCSID = "BR_seed_cs"
	BranchMEID = "BR_seed_me"

	SubjectDSID  = "SUB_seed_ds"
	SubjectDBID  = "SUB_seed_dbms"
	ExamMid1ID   = "EXAM_seed_mid1"
	ExamEndSemID = "EXAM_seed_endsem"

	CommonPassword = "password123"
)

func main() {
	log.Println("Starting Database Seeder...")

	if err := shared.LoadEnv(".env"); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := shared.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer shared.DisconnectMongoDB(client)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := shared.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(CommonPassword), cfg.Security.BCryptCost)
	if err != nil {
		log.Fatalf("Failed to hash seed password: %v", err)
	}

	seedBranches(ctx, db)
	seedSubjects(ctx, db)
	seedExams(ctx, db)
	seedUsers(ctx, db, string(hash))

	log.Println("Seeding complete.")
	log.Printf("Super admin login: admin@college.test / %s", CommonPassword)
}

// upsertByID writes a document keyed on _id so running the seeder twice
// never duplicates anything and never clobbers later edits' created_at.
func upsertByID(ctx context.Context, col *mongo.Collection, id string, doc interface{}) {
	opts := options.Replace().SetUpsert(true)
	if _, err := col.ReplaceOne(ctx, bson.M{"_id": id}, doc, opts); err != nil {
		log.Fatalf("Failed to seed %s into %s: %v", id, col.Name(), err)
	}
}

func seedBranches(ctx context.Context, db *mongo.Database) {
	col := db.Collection(shared.ColBranches)
	now := time.Now()

	branches := []shared.Branch{
		{ID: BranchCSID, Name: "Computer Science", Code: "CS", CreatedAt: now},
		{ID: BranchMEID, Name: "Mechanical Engineering", Code: "ME", CreatedAt: now},
	}
	for _, branch := range branches {
		upsertByID(ctx, col, branch.ID, branch)
	}
	log.Printf("Seeded %d branches", len(branches))
}

func seedSubjects(ctx context.Context, db *mongo.Database) {
	col := db.Collection(shared.ColSubjects)
	now := time.Now()

	subjects := []shared.Subject{
		{ID: SubjectDSID, Name: "Data Structures", Code: "CS301", BranchID: BranchCSID, Semester: 3, Credits: 4, CreatedAt: now},
		{ID: SubjectDBID, Name: "Database Management Systems", Code: "CS302", BranchID: BranchCSID, Semester: 3, Credits: 4, CreatedAt: now},
	}
	for _, subject := range subjects {
		upsertByID(ctx, col, subject.ID, subject)
	}
	log.Printf("Seeded %d subjects", len(subjects))
}

func seedExams(ctx context.Context, db *mongo.Database) {
	col := db.Collection(shared.ColExams)
	now := time.Now()

	exams := []shared.Exam{
		{ID: ExamMid1ID, Name: "Mid Term 1", Date: now.AddDate(0, 1, 0), Semester: 3, ExamType: shared.ExamTypeMid, TotalMarks: 50, CreatedAt: now},
		{ID: ExamEndSemID, Name: "End Semester", Date: now.AddDate(0, 3, 0), Semester: 3, ExamType: shared.ExamTypeEnd, TotalMarks: 100, CreatedAt: now},
	}
	for _, exam := range exams {
		upsertByID(ctx, col, exam.ID, exam)
	}
	log.Printf("Seeded %d exams", len(exams))
}

func seedUsers(ctx context.Context, db *mongo.Database, passwordHash string) {
	col := db.Collection(shared.ColUsers)
	now := time.Now()

	users := []shared.User{
		{
			ID: AdminID, Email: "admin@college.test", PasswordHash: passwordHash,
			Role: shared.RoleAdmin, FirstName: "Portal", LastName: "Admin",
			EmployeeID: "EMP-0001", Department: "Administration", Designation: "Registrar",
			IsSuperAdmin: true, IsActive: true, CreatedAt: now,
		},
		{
			ID: FacultyID1, Email: "sharma@college.test", PasswordHash: passwordHash,
			Role: shared.RoleFaculty, FirstName: "Priya", LastName: "Sharma",
			EmployeeID: "EMP-0101", Department: "Computer Science", Designation: "Assistant Professor",
			IsActive: true, CreatedAt: now,
		},
		{
			ID: StudentID1, Email: "asha@college.test", PasswordHash: passwordHash,
			Role: shared.RoleStudent, FirstName: "Asha", LastName: "Rao",
			EnrollmentNo: "2021001", BranchID: BranchCSID, Semester: 3,
			IsActive: true, CreatedAt: now,
		},
		{
			ID: StudentID2, Email: "dev@college.test", PasswordHash: passwordHash,
			Role: shared.RoleStudent, FirstName: "Dev", LastName: "Mehta",
			EnrollmentNo: "2021002", BranchID: BranchCSID, Semester: 3,
			IsActive: true, CreatedAt: now,
		},
		{
			ID: StudentID3, Email: "kiran@college.test", PasswordHash: passwordHash,
			Role: shared.RoleStudent, FirstName: "Kiran", LastName: "Shah",
			EnrollmentNo: "2021003", BranchID: BranchCSID, Semester: 3,
			IsActive: true, CreatedAt: now,
		},
	}
	for _, user := range users {
		upsertByID(ctx, col, user.ID, user)
	}
	log.Printf("Seeded %d users", len(users))
}
