package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"collegemgmt/internal/shared"
)

// Service authenticates portal users and manages their sessions. Tokens are
// HS256 JWTs backed by a session record in MongoDB, which makes server-side
// logout and revocation possible.
type Service struct {
	config      *shared.Config
	usersCol    *mongo.Collection
	sessionsCol *mongo.Collection
	auditCol    *mongo.Collection
}

// CustomClaims for JWT
type CustomClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *shared.User `json:"user"`
}

// NewService creates a new auth Service instance
func NewService(db *mongo.Database, config *shared.Config) *Service {
	return &Service{
		config:      config,
		usersCol:    db.Collection(shared.ColUsers),
		sessionsCol: db.Collection(shared.ColSessions),
		auditCol:    db.Collection(shared.ColAuditLogs),
	}
}

// Login authenticates a user by email, enrollment number or employee ID and
// returns a JWT with a backing session record.
func (s *Service) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	if identifier == "" {
		return nil, shared.NewValidationError("identifier", "identifier is required")
	}
	if password == "" {
		return nil, shared.NewValidationError("password", "password is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var user shared.User
	filter := bson.M{
		"$or": []bson.M{
			{"email": identifier},
			{"enrollment_no": identifier},
			{"employee_id": identifier},
		},
	}

	err := s.usersCol.FindOne(queryCtx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, shared.ErrUnauthorized
		}
		return nil, shared.WrapPersistence("login lookup", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrUnauthorized
	}

	if !user.IsActive {
		return nil, shared.ErrForbidden
	}

	tokenString, expiresAt, err := s.generateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	session := shared.Session{
		ID:        shared.GenerateID("sess"),
		UserID:    user.ID,
		Token:     tokenString,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}

	if _, err := s.sessionsCol.InsertOne(queryCtx, session); err != nil {
		return nil, shared.WrapPersistence("session create", err)
	}

	_ = shared.LogAuditEvent(ctx, s.auditCol, user.ID, "login", "sessions", nil)

	return &LoginResult{Token: tokenString, ExpiresAt: expiresAt, User: &user}, nil
}

// Logout invalidates the session behind a token. Idempotent: logging out an
// already-expired token still succeeds from the client's perspective.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return shared.NewValidationError("token", "token is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.sessionsCol.DeleteMany(queryCtx, bson.M{"token": token}); err != nil {
		return shared.WrapPersistence("logout", err)
	}

	return nil
}

// ValidateToken checks signature, session liveness and account status, and
// returns the authenticated user.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*shared.User, error) {
	if tokenString == "" {
		return nil, shared.ErrUnauthorized
	}

	token, claims, err := s.parseToken(tokenString)
	if err != nil || !token.Valid {
		return nil, shared.ErrUnauthorized
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Revocation check: the session must still exist in the database.
	count, err := s.sessionsCol.CountDocuments(queryCtx, bson.M{"token": tokenString})
	if err != nil {
		return nil, shared.WrapPersistence("session check", err)
	}
	if count == 0 {
		return nil, shared.ErrUnauthorized
	}

	var user shared.User
	if err := s.usersCol.FindOne(queryCtx, bson.M{"_id": claims.UserID}).Decode(&user); err != nil {
		return nil, shared.ErrUnauthorized
	}

	if !user.IsActive {
		return nil, shared.ErrForbidden
	}

	return &user, nil
}

// ChangePassword updates the user's password and force-logs-out every
// existing session for the account.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if userID == "" || oldPassword == "" || newPassword == "" {
		return shared.NewValidationError("password", "all fields are required")
	}
	if len(newPassword) < 6 {
		return shared.NewValidationError("newPassword", "password must be at least 6 characters")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var user shared.User
	if err := s.usersCol.FindOne(queryCtx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return shared.NewNotFoundError("user", userID)
		}
		return shared.WrapPersistence("user lookup", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return shared.NewValidationError("oldPassword", "incorrect old password")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.config.Security.BCryptCost)
	if err != nil {
		return fmt.Errorf("failed to process password: %w", err)
	}

	_, err = s.usersCol.UpdateOne(queryCtx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{
			"password_hash": string(newHash),
			"updated_at":    primitive.NewDateTimeFromTime(time.Now()),
		},
	})
	if err != nil {
		return shared.WrapPersistence("password update", err)
	}

	_, _ = s.sessionsCol.DeleteMany(queryCtx, bson.M{"user_id": userID})

	return nil
}

// ============================================================================
// Internal Helpers
// ============================================================================

// generateToken creates a signed JWT
func (s *Service) generateToken(userID, role string) (string, time.Time, error) {
	expirationTime := time.Now().Add(time.Duration(s.config.Security.JWTExpirationHours) * time.Hour)

	claims := CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			// Unique ID (jti) keeps tokens distinct even when generated at
			// the exact same timestamp.
			ID:        shared.GenerateID("jti"),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "college-management-system",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Security.JWTSecret))

	return tokenString, expirationTime, err
}

// parseToken validates the JWT signature and extracts claims
func (s *Service) parseToken(tokenString string) (*jwt.Token, *CustomClaims, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Security.JWTSecret), nil
	})

	return token, claims, err
}
