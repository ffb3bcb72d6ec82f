package auth

import "errors"

// Error strings are safe to show to end users.
var (
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrUserExists         = errors.New("Username already exists")
	ErrEmailTaken         = errors.New("Email already registered")
	ErrUserNotFound       = errors.New("User not found")
	ErrIncorrectPassword  = errors.New("Incorrect password")
	ErrInvalidResetToken  = errors.New("Invalid or expired token")
	ErrInvalidToken       = errors.New("Invalid token")
	ErrTokenExpired       = errors.New("Token expired")
	ErrInvalidUsername    = errors.New("Username must be 3-32 characters of letters, digits, '.', '_' or '-'")
	ErrInvalidEmail       = errors.New("Invalid email address")
	ErrWeakPassword       = errors.New("Password must be at least 6 characters")
	ErrRenameWithDocs     = errors.New("Delete your documents before changing username")
)

// IsUserError reports whether err carries a message meant for the caller.
func IsUserError(err error) bool {
	for _, known := range []error{
		ErrInvalidCredentials, ErrUserExists, ErrEmailTaken, ErrUserNotFound,
		ErrIncorrectPassword, ErrInvalidResetToken, ErrInvalidToken, ErrTokenExpired,
		ErrInvalidUsername, ErrInvalidEmail, ErrWeakPassword, ErrRenameWithDocs,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
