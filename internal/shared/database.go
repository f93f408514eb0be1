// ============================================================================
// internal/shared/database.go
// MongoDB connection, index setup and helper utilities
// ============================================================================

package shared

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64
	MaxIdleTime    time.Duration
}

// Collection names used across services.
const (
	ColUsers      = "users"
	ColSessions   = "sessions"
	ColBranches   = "branches"
	ColSubjects   = "subjects"
	ColExams      = "exams"
	ColMarks      = "marks"
	ColNotices    = "notices"
	ColMaterials  = "materials"
	ColTimetables = "timetables"
	ColAuditLogs  = "audit_logs"
)

// ConnectMongoDB establishes connection to MongoDB Atlas/Local with proper configuration
func ConnectMongoDB(config *MongoConfig) (*mongo.Client, *mongo.Database, error) {
	if config == nil {
		return nil, nil, fmt.Errorf("mongo config cannot be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize).
		SetMaxConnIdleTime(config.MaxIdleTime).
		SetServerSelectionTimeout(10 * time.Second).
		SetConnectTimeout(config.ConnectTimeout).
		SetSocketTimeout(30 * time.Second).
		SetHeartbeatInterval(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Printf("Successfully connected to MongoDB (Database: %s)", config.Database)

	db := client.Database(config.Database)
	return client, db, nil
}

// DisconnectMongoDB gracefully closes MongoDB connection
func DisconnectMongoDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	log.Println("Successfully disconnected from MongoDB")
	return nil
}

// EnsureIndexes creates the unique and lookup indexes the services rely on.
// The marks triple index is what turns "create or overwrite" into a safe
// upsert: two writers for the same (student, exam, subject) can never
// materialize duplicate Mark rows.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	unique := options.Index().SetUnique(true)

	_, err := db.Collection(ColMarks).Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "student_id", Value: 1},
			{Key: "exam_id", Value: 1},
			{Key: "subject_id", Value: 1},
		},
		Options: unique,
	})
	if err != nil {
		return fmt.Errorf("failed to create marks index: %w", err)
	}

	_, err = db.Collection(ColUsers).Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users email index: %w", err)
	}

	_, err = db.Collection(ColTimetables).Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "branch_id", Value: 1},
			{Key: "semester", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create timetables index: %w", err)
	}

	_, err = db.Collection(ColSessions).Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "token", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create sessions index: %w", err)
	}

	return nil
}

// ============================================================================
// Type Conversion Helpers
// ============================================================================

// GetInt32 safely extracts int32 from BSON value (handles int32, int64, int)
func GetInt32(value interface{}) (int32, error) {
	switch v := value.(type) {
	case int32:
		return v, nil
	case int64:
		return int32(v), nil
	case int:
		return int32(v), nil
	case float64:
		return int32(v), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int32", value)
	}
}

// GetString safely extracts string from BSON value
func GetString(value interface{}) (string, error) {
	if str, ok := value.(string); ok {
		return str, nil
	}
	return "", fmt.Errorf("cannot convert %T to string", value)
}

// GetBool safely extracts bool from BSON value
func GetBool(value interface{}) (bool, error) {
	if b, ok := value.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("cannot convert %T to bool", value)
}

// GetTime safely extracts time.Time from BSON DateTime
func GetTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case primitive.DateTime:
		return v.Time(), nil
	case time.Time:
		return v, nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", value)
	}
}

// ============================================================================
// ID Generation Helpers
// ============================================================================

// GenerateID generates a unique ID with prefix and timestamp
func GenerateID(prefix string) string {
	timestamp := time.Now().UnixNano()
	return fmt.Sprintf("%s_%d", prefix, timestamp)
}

// ============================================================================
// Transaction Helpers
// ============================================================================

// WithTransaction executes a function within a MongoDB transaction
func WithTransaction(ctx context.Context, client *mongo.Client, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})

	return err
}

// ============================================================================
// Query Helpers
// ============================================================================

// EscapeRegex neutralizes regex metacharacters in user input used inside a
// Mongo regex match.
func EscapeRegex(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`, `.`, `\.`, `+`, `\+`, `*`, `\*`, `?`, `\?`,
		`(`, `\(`, `)`, `\)`, `[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`,
		`^`, `\^`, `$`, `\$`, `|`, `\|`,
	)
	return replacer.Replace(s)
}

// ============================================================================
// Audit Logging Helper
// ============================================================================

// LogAuditEvent logs an audit event to the audit_logs collection
func LogAuditEvent(ctx context.Context, auditCol *mongo.Collection, userID, action, resource string, details map[string]interface{}) error {
	if auditCol == nil {
		return fmt.Errorf("audit collection is nil")
	}

	auditDoc := bson.M{
		"_id":       GenerateID("AUDIT"),
		"timestamp": primitive.NewDateTimeFromTime(time.Now()),
		"user_id":   userID,
		"action":    action,
		"resource":  resource,
	}

	if details != nil {
		auditDoc["details"] = details
	}

	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := auditCol.InsertOne(insertCtx, auditDoc)
	if err != nil {
		log.Printf("Warning: Failed to log audit event: %v", err)
		return err
	}

	return nil
}

// AuditEvent is one recorded administrative action, decoded back out of the
// loose document LogAuditEvent writes.
type AuditEvent struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"userId"`
	Action    string                 `json:"action"`
	Resource  string                 `json:"resource"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// DecodeAuditEvent converts a raw audit document into an AuditEvent. Audit
// documents are written as plain maps, so field extraction goes through the
// type conversion helpers instead of a struct decode; detail values are
// normalized so Mongo's int64/DateTime representations render cleanly as JSON.
func DecodeAuditEvent(doc bson.M) AuditEvent {
	event := AuditEvent{}
	event.ID, _ = GetString(doc["_id"])
	event.Timestamp, _ = GetTime(doc["timestamp"])
	event.UserID, _ = GetString(doc["user_id"])
	event.Action, _ = GetString(doc["action"])
	event.Resource, _ = GetString(doc["resource"])

	if raw, ok := doc["details"].(bson.M); ok {
		details := make(map[string]interface{}, len(raw))
		for key, value := range raw {
			if n, err := GetInt32(value); err == nil {
				details[key] = n
			} else if b, err := GetBool(value); err == nil {
				details[key] = b
			} else if s, err := GetString(value); err == nil {
				details[key] = s
			} else if t, err := GetTime(value); err == nil {
				details[key] = t
			} else {
				details[key] = value
			}
		}
		event.Details = details
	}
	return event
}

// RecentAuditEvents returns the newest audit records, newest first.
func RecentAuditEvents(ctx context.Context, auditCol *mongo.Collection, limit int64) ([]AuditEvent, error) {
	if auditCol == nil {
		return nil, fmt.Errorf("audit collection is nil")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	findOptions := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)
	cursor, err := auditCol.Find(queryCtx, bson.M{}, findOptions)
	if err != nil {
		return nil, WrapPersistence("audit list", err)
	}
	defer cursor.Close(queryCtx)

	docs := []bson.M{}
	if err := cursor.All(queryCtx, &docs); err != nil {
		return nil, WrapPersistence("audit decode", err)
	}

	events := make([]AuditEvent, 0, len(docs))
	for _, doc := range docs {
		events = append(events, DecodeAuditEvent(doc))
	}
	return events, nil
}
