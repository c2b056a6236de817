package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ukydev/car-rental/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user is inactive")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidCode        = errors.New("invalid code")
	ErrExpiredCode        = errors.New("code expired")
	ErrTooManyAttempts    = errors.New("too many code attempts")
)

const defaultSecret = "default-secret-key-change-in-production"

// Service handles authentication operations
type Service struct {
	jwtSecret []byte
	tokenExp  time.Duration
	codeTTL   time.Duration
	now       func() time.Time
}

// NewService creates a new authentication service. An empty secret falls
// back to a development key; zero durations fall back to 24h tokens and
// 15 minute codes.
func NewService(secret string, tokenExp, codeTTL time.Duration) (*Service, error) {
	if secret == "" {
		secret = defaultSecret
	}
	if tokenExp <= 0 {
		tokenExp = 24 * time.Hour
	}
	if codeTTL <= 0 {
		codeTTL = 15 * time.Minute
	}

	return &Service{
		jwtSecret: []byte(secret),
		tokenExp:  tokenExp,
		codeTTL:   codeTTL,
		now:       time.Now,
	}, nil
}

// UsesDefaultSecret reports whether no JWT secret was configured.
func (s *Service) UsesDefaultSecret() bool {
	return string(s.jwtSecret) == defaultSecret
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword checks if a password matches a hash
func (s *Service) CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// tokenClaims is the signed payload of an access token.
type tokenClaims struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken generates a JWT token for a user
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	claims := tokenClaims{
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExp)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// GenerateRefreshToken generates a refresh token
func (s *Service) GenerateRefreshToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// ValidateToken checks the signature and expiry of an access token and
// returns its claims. Tokens naming an unknown role or a malformed user id
// are rejected even when correctly signed.
func (s *Service) ValidateToken(tokenString string) (*models.Claims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (interface{}, error) { return s.jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	}

	if !primitive.IsValidObjectID(claims.UserID) || !models.IsValidRole(claims.Role) {
		return nil, ErrInvalidToken
	}

	return &models.Claims{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
		Exp:      claims.ExpiresAt.Unix(),
	}, nil
}

// ExtractTokenFromHeader returns the credentials of a Bearer Authorization header.
func (s *Service) ExtractTokenFromHeader(authHeader string) (string, error) {
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidToken
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrInvalidToken
	}
	return token, nil
}

// ValidatePassword validates password strength
func (s *Service) ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}
	return nil
}

// ValidateEmail requires a single @ with a non-empty local part and a
// dotted domain.
func (s *Service) ValidateEmail(email string) error {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return errors.New("invalid email format")
	}
	if dot := strings.LastIndex(domain, "."); dot <= 0 || dot == len(domain)-1 {
		return errors.New("invalid email format")
	}
	return nil
}

// ValidateUsername bounds usernames to 3..50 characters.
func (s *Service) ValidateUsername(username string) error {
	switch n := utf8.RuneCountInString(username); {
	case n < 3:
		return errors.New("username must be at least 3 characters long")
	case n > 50:
		return errors.New("username must be less than 50 characters")
	}
	return nil
}
