package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSessionAlreadyActive = errors.New("another session is already active, sign out first")
	ErrSessionInvalidated   = errors.New("session invalidated")
)

// TokenType distinguishes student vs teacher tokens.
type TokenType string

const (
	TokenTypeStudent TokenType = "student"
	TokenTypeTeacher TokenType = "teacher"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	UserID    int       `json:"user_id"`
	Name      string    `json:"name,omitempty"`
}

// AuthService handles authentication, JWT, and session management.
type AuthService struct {
	cfg         *config.Config
	rdb         *redis.Client
	teacherRepo *repository.TeacherRepository
	studentRepo *repository.StudentRepository
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	cfg *config.Config,
	rdb *redis.Client,
	teacherRepo *repository.TeacherRepository,
	studentRepo *repository.StudentRepository,
) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb, teacherRepo: teacherRepo, studentRepo: studentRepo}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// AuthenticateTeacher checks a teacher's credentials without issuing a
// token. Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) AuthenticateTeacher(ctx context.Context, email, password string) (*model.Teacher, error) {
	teacher, err := s.teacherRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if err := s.CheckPassword(teacher.PasswordHash, password); err != nil {
		return nil, err
	}
	return teacher, nil
}

// LoginTeacher verifies credentials and issues a teacher token.
func (s *AuthService) LoginTeacher(ctx context.Context, email, password string) (*model.TeacherLoginResponse, error) {
	teacher, err := s.AuthenticateTeacher(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, err := s.GenerateTeacherToken(ctx, teacher)
	if err != nil {
		return nil, err
	}
	return &model.TeacherLoginResponse{Token: token, Teacher: *teacher}, nil
}

// LoginStudent verifies credentials and issues a single-device student token.
func (s *AuthService) LoginStudent(ctx context.Context, username, password string) (*model.StudentLoginResponse, error) {
	student, err := s.studentRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	if err := s.CheckPassword(student.PasswordHash, password); err != nil {
		return nil, err
	}

	token, err := s.GenerateStudentToken(ctx, student)
	if err != nil {
		return nil, err
	}
	return &model.StudentLoginResponse{Token: token, Student: *student}, nil
}

// GetTeacher returns the teacher behind a token.
func (s *AuthService) GetTeacher(ctx context.Context, id int) (*model.Teacher, error) {
	return s.teacherRepo.GetByID(ctx, id)
}

// GetStudent returns the student behind a token.
func (s *AuthService) GetStudent(ctx context.Context, id int) (*model.Student, error) {
	return s.studentRepo.GetByID(ctx, id)
}

// CreateTeacher hashes the password and stores a new teacher account.
func (s *AuthService) CreateTeacher(ctx context.Context, email, name, password string) (*model.Teacher, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	t := &model.Teacher{Email: email, Name: name, PasswordHash: hash}
	if err := s.teacherRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// CreateStudent hashes the password and stores a new student account.
func (s *AuthService) CreateStudent(ctx context.Context, username, name, password string) (*model.Student, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	st := &model.Student{Username: username, Name: name, PasswordHash: hash}
	if err := s.studentRepo.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// GenerateStudentToken creates a JWT for a student and registers the session in Redis.
// Returns ErrSessionAlreadyActive if a session already exists (new logins are rejected).
func (s *AuthService) GenerateStudentToken(ctx context.Context, student *model.Student) (string, error) {
	sessionKey := config.CacheKey.StudentSessionKey(student.ID)

	existing, err := s.rdb.Get(ctx, sessionKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("check session: %w", err)
	}
	if existing != "" {
		return "", ErrSessionAlreadyActive
	}

	jti := uuid.New().String()
	signed, err := s.sign(jti, TokenTypeStudent, student.ID, student.Name)
	if err != nil {
		return "", err
	}

	// SetNX closes the race between two concurrent logins.
	ok, err := s.rdb.SetNX(ctx, sessionKey, jti, s.cfg.JWTExpiry).Result()
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return "", ErrSessionAlreadyActive
	}

	return signed, nil
}

// GenerateTeacherToken creates a JWT for a teacher. Teachers may sign in on
// several devices; each token's JTI is registered so it can be revoked.
func (s *AuthService) GenerateTeacherToken(ctx context.Context, teacher *model.Teacher) (string, error) {
	jti := uuid.New().String()
	signed, err := s.sign(jti, TokenTypeTeacher, teacher.ID, teacher.Name)
	if err != nil {
		return "", err
	}

	key := config.CacheKey.TeacherSessionKey(teacher.ID, jti)
	if err := s.rdb.Set(ctx, key, 1, s.cfg.JWTExpiry).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return signed, nil
}

func (s *AuthService) sign(jti string, typ TokenType, userID int, name string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: typ,
		UserID:    userID,
		Name:      name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ValidateStudentSession checks that the token's JTI matches the active session in Redis.
func (s *AuthService) ValidateStudentSession(ctx context.Context, studentID int, jti string) error {
	stored, err := s.rdb.Get(ctx, config.CacheKey.StudentSessionKey(studentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionInvalidated
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != jti {
		return ErrSessionInvalidated
	}
	return nil
}

// ValidateTeacherSession checks that a teacher token has not been revoked.
func (s *AuthService) ValidateTeacherSession(ctx context.Context, teacherID int, jti string) error {
	n, err := s.rdb.Exists(ctx, config.CacheKey.TeacherSessionKey(teacherID, jti)).Result()
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if n == 0 {
		return ErrSessionInvalidated
	}
	return nil
}

// ResetStudentSession removes a student's session from Redis, allowing a new login.
func (s *AuthService) ResetStudentSession(ctx context.Context, studentID int) error {
	return s.rdb.Del(ctx, config.CacheKey.StudentSessionKey(studentID)).Err()
}

// RevokeTeacherToken signs a teacher out of the device holding jti.
func (s *AuthService) RevokeTeacherToken(ctx context.Context, teacherID int, jti string) error {
	return s.rdb.Del(ctx, config.CacheKey.TeacherSessionKey(teacherID, jti)).Err()
}
