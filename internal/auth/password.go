// Package auth holds password hashing, verification and strength rules.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"pos-backoffice/internal/apperr"
)

const (
	DefaultCost       = 10
	MinPasswordLength = 6
	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72
)

// Strength diagnostics, one per failed rule.
const (
	MsgPasswordRequired = "password is required"
	MsgPasswordTooShort = "password must be at least 6 characters long"
	MsgPasswordTooLong  = "password must be at most 72 bytes long"
	MsgPasswordNoLetter = "password must contain at least one letter"
	MsgPasswordNoDigit  = "password must contain at least one number"
)

var (
	ErrInvalidCredentials = &apperr.Error{Kind: apperr.KindAuth, Message: "invalid email or password"}
	ErrNotAuthenticated   = &apperr.Error{Kind: apperr.KindAuth, Message: "no active session"}
	ErrForbidden          = &apperr.Error{Kind: apperr.KindAuth, Message: "operation not permitted for the current role"}
)

// PasswordHasher hashes with bcrypt. It still verifies the unsalted SHA-256
// hex digests older installations stored, so those accounts can log in and be
// upgraded.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.Validation("invalid password", apperr.FieldError{Field: "password", Message: MsgPasswordTooLong})
		}
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether password matches stored.
func (h *PasswordHasher) Verify(password, stored string) bool {
	if IsLegacyDigest(stored) {
		candidate := LegacyDigest(password)
		return subtle.ConstantTimeCompare([]byte(candidate), []byte(strings.ToLower(stored))) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// NeedsRehash reports whether stored should be replaced with a fresh hash:
// legacy digests, and bcrypt hashes of a different cost.
func (h *PasswordHasher) NeedsRehash(stored string) bool {
	if IsLegacyDigest(stored) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(stored))
	if err != nil {
		return true
	}
	return cost != h.cost
}

// LegacyDigest is the unsalted SHA-256 lowercase hex digest.
func LegacyDigest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// LooksHashed reports whether value is exactly 64 hex characters.
func LooksHashed(value string) bool {
	if len(value) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}

// IsLegacyDigest reports whether stored uses the pre-bcrypt format. bcrypt
// hashes always start with their "$2" version tag.
func IsLegacyDigest(stored string) bool {
	return !strings.HasPrefix(stored, "$2") && LooksHashed(stored)
}

func IsStrong(password string) bool {
	return StrengthMessage(password) == ""
}

// StrengthMessage returns the first rule password breaks, or "".
func StrengthMessage(password string) string {
	if password == "" {
		return MsgPasswordRequired
	}
	if len([]rune(password)) < MinPasswordLength {
		return MsgPasswordTooShort
	}
	if len(password) > MaxPasswordBytes {
		return MsgPasswordTooLong
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		return MsgPasswordNoLetter
	}
	if !hasDigit {
		return MsgPasswordNoDigit
	}
	return ""
}

// CheckStrength returns a validation error carrying StrengthMessage.
func CheckStrength(password string) error {
	if msg := StrengthMessage(password); msg != "" {
		return apperr.Validation("weak password", apperr.FieldError{Field: "password", Message: msg})
	}
	return nil
}
