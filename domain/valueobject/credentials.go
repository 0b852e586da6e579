package valueobject

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var (
	ErrInvalidEmail      = errors.New("invalid email format")
	ErrMissingIdentifier = errors.New("identifier is required")
	ErrMissingPassword   = errors.New("password is required")
	ErrPasswordTooShort  = errors.New("password must be at least 8 characters")
	ErrPasswordTooWeak   = errors.New("password must contain an uppercase letter, a digit and a special character")
	ErrPasswordTooLong   = errors.New("password must be at most 72 bytes")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Credentials is a login attempt. The identifier may be an email, a username
// or a phone number; the user repository decides which one matches.
type Credentials struct {
	identifier string
	password   string
}

func NewCredentials(identifier, password string) (*Credentials, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrMissingIdentifier
	}
	if password == "" {
		return nil, ErrMissingPassword
	}
	return &Credentials{
		identifier: identifier,
		password:   password,
	}, nil
}

func (c *Credentials) Identifier() string {
	return c.identifier
}

func (c *Credentials) Password() string {
	return c.password
}

// NormalizeEmail lowercases and trims an address and checks its shape.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := ValidateEmail(email); err != nil {
		return "", err
	}
	return email, nil
}

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateNewPassword applies the strength rules for a password being set,
// either at registration or through a reset.
func ValidateNewPassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	// bcrypt ignores everything past 72 bytes
	if len(password) > 72 {
		return ErrPasswordTooLong
	}
	var upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			special = true
		}
	}
	if !upper || !digit || !special {
		return ErrPasswordTooWeak
	}
	return nil
}
