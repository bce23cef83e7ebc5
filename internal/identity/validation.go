package identity

import (
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "github.com/easybody/auth-gateway/pkg/util/errorutil"
)

// MinPasswordLength is the shortest password either provider accepts.
const MinPasswordLength = 8

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	codePattern  = regexp.MustCompile(`^\d{6}$`)
)

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail returns the normalized address or InvalidEmail.
func ValidateEmail(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if !emailPattern.MatchString(normalized) {
		return "", apperrors.InvalidEmail()
	}
	return normalized, nil
}

// ValidatePassword enforces the minimum length, counted in characters.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperrors.WeakCredential()
	}
	return nil
}

// ValidateCode checks the six digit shape of confirmation and reset codes.
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return apperrors.InvalidCode()
	}
	return nil
}
