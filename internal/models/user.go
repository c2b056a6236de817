package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
	RoleClient   Role = "client"
)

// Permissions checked by the record routes
const (
	PermViewRecords   = "view_records"
	PermManageRecords = "manage_records"
	PermDeleteRecords = "delete_records"
)

// OneTimeCode is a hashed verification or password reset code. Attempts
// counts the checks made against it, successful or not.
type OneTimeCode struct {
	Hash      string    `bson:"hash" json:"-"`
	ExpiresAt time.Time `bson:"expires_at" json:"-"`
	Attempts  int       `bson:"attempts" json:"-"`
}

// User represents a client or staff account
type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username         string             `bson:"username" json:"username"`
	Email            string             `bson:"email" json:"email"`
	PasswordHash     string             `bson:"password_hash" json:"-"`
	Role             Role               `bson:"role" json:"role"`
	FirstName        string             `bson:"first_name" json:"first_name"`
	LastName         string             `bson:"last_name" json:"last_name"`
	IsActive         bool               `bson:"is_active" json:"is_active"`
	EmailVerified    bool               `bson:"email_verified" json:"email_verified"`
	VerificationCode *OneTimeCode       `bson:"verification_code,omitempty" json:"-"`
	ResetCode        *OneTimeCode       `bson:"reset_code,omitempty" json:"-"`
	LastLogin        *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents a client registration request
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// VerifyRequest confirms an email address with the code that was sent to it
type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// EmailRequest carries only an email, for resend and forgot-password
type EmailRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest sets a new password using a reset code
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleEmployee, RoleClient:
		return true
	default:
		return false
	}
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleEmployee:
		return action == PermViewRecords || action == PermManageRecords
	case RoleClient:
		return action == PermViewRecords
	default:
		return false
	}
}
