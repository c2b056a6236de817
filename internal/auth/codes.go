package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/car-rental/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// Purpose of a one-time code, passed to the CodeSender.
const (
	PurposeVerify = "verify"
	PurposeReset  = "reset"
)

// MaxCodeAttempts is how many checks a code survives. Later checks fail
// even with the right code.
const MaxCodeAttempts = 5

// CodeSender delivers one-time codes to users.
type CodeSender interface {
	SendCode(ctx context.Context, email, purpose, code string) error
}

// LogCodeSender writes codes to the log instead of sending mail.
type LogCodeSender struct {
	Logger *log.Entry
}

// SendCode implements CodeSender.
func (s LogCodeSender) SendCode(_ context.Context, email, purpose, code string) error {
	logger := s.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	logger.WithFields(log.Fields{
		"email":   email,
		"purpose": purpose,
		"code":    code,
	}).Info("One-time code issued")
	return nil
}

// NewCode returns a random 6-digit code and its stored form. Only the hash
// is persisted; the plain code goes to the CodeSender.
func (s *Service) NewCode() (string, *models.OneTimeCode, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash code: %w", err)
	}
	return code, &models.OneTimeCode{
		Hash:      string(hash),
		ExpiresAt: s.now().Add(s.codeTTL).UTC(),
	}, nil
}

// CheckCode verifies code against stored. stored.Attempts must already
// include this check. Callers clear the stored code on success so it cannot
// be used twice.
func (s *Service) CheckCode(stored *models.OneTimeCode, code string) error {
	if stored == nil || code == "" {
		return ErrInvalidCode
	}
	if stored.Attempts > MaxCodeAttempts {
		return ErrTooManyAttempts
	}
	if !s.now().Before(stored.ExpiresAt) {
		return ErrExpiredCode
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Hash), []byte(code)) != nil {
		return ErrInvalidCode
	}
	return nil
}
