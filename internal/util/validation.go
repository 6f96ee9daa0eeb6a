package util

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// ValidateEmail accepts a bare address ("a@b.c"), not a display-name form
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return errors.New("must be a valid email address")
	}
	return nil
}

// ValidateLength trims s and checks its rune length is within [min, max]
func ValidateLength(s string, min, max int) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	switch {
	case n < min && min == 1:
		return s, errors.New("is required")
	case n < min:
		return s, errors.New("is too short")
	case max > 0 && n > max:
		return s, errors.New("is too long")
	}
	return s, nil
}

// ValidateFilename checks if a display filename is valid
// Filename is required and cannot contain directory separators
// Must be <= 255 chars
func ValidateFilename(filename string) error {
	if filename == "" {
		return errors.New("filename is required")
	}
	if strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		return errors.New("filename cannot contain directory paths")
	}
	if len(filename) > 255 {
		return errors.New("filename too long (max 255 characters)")
	}
	return nil
}
