package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/car-rental/internal/auth"
	"github.com/ukydev/car-rental/internal/db"
	"github.com/ukydev/car-rental/internal/middleware"
	"github.com/ukydev/car-rental/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
	sender         auth.CodeSender
	logger         *log.Entry
}

// NewAuthHandler creates a new authentication handler. A nil sender logs codes.
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection, sender auth.CodeSender) *AuthHandler {
	logger := log.WithField("component", "auth")
	if sender == nil {
		sender = auth.LogCodeSender{Logger: logger}
	}
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
		sender:         sender,
		logger:         logger,
	}
}

// Routes mounts the auth endpoints. limit wraps the public endpoints that
// take credentials or codes.
func (h *AuthHandler) Routes(limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Post("/register", h.Register)
		r.Post("/verify", h.Verify)
		r.Post("/resend-code", h.ResendCode)
		r.Post("/login", h.Login)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)
	})
	r.Get("/profile", h.GetProfile)
	r.Put("/profile", h.UpdateProfile)
	r.Post("/change-password", h.ChangePassword)
	return r
}

// decodeBody reads r.Body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if !decodeBody(w, r, &loginReq) {
		return
	}

	if loginReq.Username == "" || loginReq.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.userCollection.FindUserByUsername(r.Context(), loginReq.Username)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			h.logger.WithError(err).Error("Failed to look up user")
		}
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if !user.IsActive {
		writeError(w, http.StatusUnauthorized, "Account is deactivated")
		return
	}

	if !h.authService.CheckPassword(loginReq.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if !user.EmailVerified {
		writeError(w, http.StatusForbidden, "Email address has not been verified")
		return
	}

	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		h.logger.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to update last login")
	}

	h.writeTokens(w, http.StatusOK, "Login successful", user)
}

// Register creates an unverified client account and sends a verification code
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var registerReq models.RegisterRequest
	if !decodeBody(w, r, &registerReq) {
		return
	}
	registerReq.Email = normalizeEmail(registerReq.Email)

	if err := h.authService.ValidateUsername(registerReq.Username); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.authService.ValidateEmail(registerReq.Email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.authService.ValidatePassword(registerReq.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if taken, ok := h.exists(w, r, h.userCollection.FindUserByUsername, registerReq.Username); !ok {
		return
	} else if taken {
		writeError(w, http.StatusConflict, "Username already exists")
		return
	}
	if taken, ok := h.exists(w, r, h.userCollection.FindUserByEmail, registerReq.Email); !ok {
		return
	} else if taken {
		writeError(w, http.StatusConflict, "Email already exists")
		return
	}

	passwordHash, err := h.authService.HashPassword(registerReq.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	code, stored, err := h.authService.NewCode()
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate verification code")
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	now := time.Now().UTC()
	user := models.User{
		ID:               primitive.NewObjectID(),
		Username:         registerReq.Username,
		Email:            registerReq.Email,
		PasswordHash:     passwordHash,
		Role:             models.RoleClient,
		FirstName:        registerReq.FirstName,
		LastName:         registerReq.LastName,
		IsActive:         true,
		VerificationCode: stored,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.userCollection.InsertUser(r.Context(), user); err != nil {
		h.logger.WithError(err).Error("Failed to insert user")
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	h.send(r, user.Email, auth.PurposeVerify, code)
	h.logger.WithField("user_id", user.ID.Hex()).Info("Registered user")

	writeJSON(w, http.StatusCreated, models.Response{
		Success: true,
		Message: "Registration successful, check your email for the verification code",
		Data:    user,
	})
}

// Verify confirms an email address and signs the user in
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "Email and code are required")
		return
	}

	user, ok := h.userForCode(w, r, req.Email)
	if !ok {
		return
	}
	if user.EmailVerified {
		writeError(w, http.StatusBadRequest, "Email address is already verified")
		return
	}
	if !h.checkCode(w, r, user, auth.PurposeVerify, req.Code) {
		return
	}

	user.EmailVerified = true
	user.VerificationCode = nil
	user.UpdatedAt = time.Now().UTC()
	if err := h.userCollection.UpdateUser(r.Context(), user.ID.Hex(), *user); err != nil {
		h.logger.WithError(err).Error("Failed to mark user verified")
		writeError(w, http.StatusInternalServerError, "Failed to verify email")
		return
	}

	h.writeTokens(w, http.StatusOK, "Email verified successfully", user)
}

// ResendCode issues a fresh verification code. The response never reveals
// whether the account exists.
func (h *AuthHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req models.EmailRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.userCollection.FindUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err == nil && !user.EmailVerified {
		h.issueCode(r, user, auth.PurposeVerify)
	} else if err != nil && !errors.Is(err, db.ErrNotFound) {
		h.logger.WithError(err).Error("Failed to look up user")
	}

	writeJSON(w, http.StatusOK, models.Response{
		Success: true,
		Message: "If the account exists and is unverified, a new code has been sent",
	})
}

// ForgotPassword sends a reset code. The response never reveals whether the
// account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.EmailRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.userCollection.FindUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err == nil && user.IsActive {
		h.issueCode(r, user, auth.PurposeReset)
	} else if err != nil && !errors.Is(err, db.ErrNotFound) {
		h.logger.WithError(err).Error("Failed to look up user")
	}

	writeJSON(w, http.StatusOK, models.Response{
		Success: true,
		Message: "If the account exists, a reset code has been sent",
	})
}

// ResetPassword sets a new password using a reset code
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Code == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Email, code and new password are required")
		return
	}
	if err := h.authService.ValidatePassword(req.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, ok := h.userForCode(w, r, req.Email)
	if !ok {
		return
	}
	if !h.checkCode(w, r, user, auth.PurposeReset, req.Code) {
		return
	}

	hash, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}
	user.PasswordHash = hash
	user.ResetCode = nil
	user.UpdatedAt = time.Now().UTC()
	if err := h.userCollection.UpdateUser(r.Context(), user.ID.Hex(), *user); err != nil {
		h.logger.WithError(err).Error("Failed to reset password")
		writeError(w, http.StatusInternalServerError, "Failed to reset password")
		return
	}

	writeJSON(w, http.StatusOK, models.Response{Success: true, Message: "Password reset successfully"})
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User context not found")
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, models.Response{Success: true, Data: user})
}

// UpdateProfile updates the current user's profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User context not found")
		return
	}

	var updateReq struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	}
	if !decodeBody(w, r, &updateReq) {
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	var verifyCode string
	if updateReq.FirstName != "" {
		user.FirstName = updateReq.FirstName
	}
	if updateReq.LastName != "" {
		user.LastName = updateReq.LastName
	}
	if email := normalizeEmail(updateReq.Email); email != "" && email != user.Email {
		if err := h.authService.ValidateEmail(email); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		existingUser, err := h.userCollection.FindUserByEmail(r.Context(), email)
		if err == nil && existingUser.ID.Hex() != claims.UserID {
			writeError(w, http.StatusConflict, "Email already exists")
			return
		}
		code, stored, err := h.authService.NewCode()
		if err != nil {
			h.logger.WithError(err).Error("Failed to generate verification code")
			writeError(w, http.StatusInternalServerError, "Failed to update user")
			return
		}
		// A new address has to be verified again before the next login.
		user.Email = email
		user.EmailVerified = false
		user.VerificationCode = stored
		verifyCode = code
	}
	user.UpdatedAt = time.Now().UTC()

	if err := h.userCollection.UpdateUser(r.Context(), claims.UserID, *user); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	message := "Profile updated successfully"
	if verifyCode != "" {
		h.send(r, user.Email, auth.PurposeVerify, verifyCode)
		h.logger.WithField("user_id", claims.UserID).Info("Email changed, verification required")
		message = "Profile updated, check your new email for the verification code"
	}
	writeJSON(w, http.StatusOK, models.Response{Success: true, Message: message, Data: user})
}

// ChangePassword changes the current user's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User context not found")
		return
	}

	var passwordReq struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeBody(w, r, &passwordReq) {
		return
	}

	if passwordReq.CurrentPassword == "" || passwordReq.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Current password and new password are required")
		return
	}
	if err := h.authService.ValidatePassword(passwordReq.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	if !h.authService.CheckPassword(passwordReq.CurrentPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	newPasswordHash, err := h.authService.HashPassword(passwordReq.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user.PasswordHash = newPasswordHash
	user.UpdatedAt = time.Now().UTC()
	if err := h.userCollection.UpdateUser(r.Context(), claims.UserID, *user); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	writeJSON(w, http.StatusOK, models.Response{Success: true, Message: "Password changed successfully"})
}

func (h *AuthHandler) writeTokens(w http.ResponseWriter, status int, message string, user *models.User) {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate refresh token")
		return
	}

	writeJSON(w, status, models.Response{
		Success: true,
		Message: message,
		Data: models.LoginResponse{
			Token:        token,
			RefreshToken: refreshToken,
			User:         *user,
		},
	})
}

// exists reports whether find returns a user for key. ok is false when a
// response has already been written.
func (h *AuthHandler) exists(w http.ResponseWriter, r *http.Request,
	find func(context.Context, string) (*models.User, error), key string) (taken, ok bool) {
	_, err := find(r.Context(), key)
	switch {
	case err == nil:
		return true, true
	case errors.Is(err, db.ErrNotFound):
		return false, true
	default:
		h.logger.WithError(err).Error("Failed to look up user")
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return false, false
	}
}

// userForCode loads the account a code was sent to. Unknown emails get the
// same answer as a wrong code.
func (h *AuthHandler) userForCode(w http.ResponseWriter, r *http.Request, email string) (*models.User, bool) {
	user, err := h.userCollection.FindUserByEmail(r.Context(), normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			h.logger.WithError(err).Error("Failed to look up user")
			writeError(w, http.StatusInternalServerError, "Failed to check code")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "Invalid or expired code")
		return nil, false
	}
	return user, true
}

// checkCode counts an attempt against the user's code for purpose, then
// compares it. The count is taken from the store so parallel guesses share
// one budget.
func (h *AuthHandler) checkCode(w http.ResponseWriter, r *http.Request, user *models.User, purpose, code string) bool {
	stored, field := user.VerificationCode, db.VerificationCodeField
	if purpose == auth.PurposeReset {
		stored, field = user.ResetCode, db.ResetCodeField
	}
	if stored == nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired code")
		return false
	}

	attempts, err := h.userCollection.ConsumeCodeAttempt(r.Context(), user.ID.Hex(), field)
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusBadRequest, "Invalid or expired code")
		return false
	case err != nil:
		h.logger.WithError(err).Error("Failed to record code attempt")
		writeError(w, http.StatusInternalServerError, "Failed to check code")
		return false
	}
	stored.Attempts = attempts

	switch err := h.authService.CheckCode(stored, code); {
	case err == nil:
		return true
	case errors.Is(err, auth.ErrTooManyAttempts):
		h.logger.WithFields(log.Fields{"user_id": user.ID.Hex(), "purpose": purpose}).Warn("Code attempt limit reached")
		writeError(w, http.StatusBadRequest, "Too many failed attempts, request a new code")
	case errors.Is(err, auth.ErrExpiredCode):
		writeError(w, http.StatusBadRequest, "Code has expired, request a new one")
	default:
		writeError(w, http.StatusBadRequest, "Invalid or expired code")
	}
	return false
}

// issueCode stores a new code of purpose on user and sends it. Failures are
// logged only, the caller always answers 200.
func (h *AuthHandler) issueCode(r *http.Request, user *models.User, purpose string) {
	code, stored, err := h.authService.NewCode()
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate code")
		return
	}
	if purpose == auth.PurposeReset {
		user.ResetCode = stored
	} else {
		user.VerificationCode = stored
	}
	user.UpdatedAt = time.Now().UTC()
	if err := h.userCollection.UpdateUser(r.Context(), user.ID.Hex(), *user); err != nil {
		h.logger.WithError(err).Error("Failed to store code")
		return
	}
	h.send(r, user.Email, purpose, code)
}

func (h *AuthHandler) send(r *http.Request, email, purpose, code string) {
	if err := h.sender.SendCode(r.Context(), email, purpose, code); err != nil {
		h.logger.WithError(err).WithField("purpose", purpose).Error("Failed to send code")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
