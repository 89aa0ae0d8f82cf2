package auth

import "errors"

// Error codes reported by providers.
const (
	CodeInvalidCredential   = "auth/invalid-credential"
	CodeWrongPassword       = "auth/wrong-password"
	CodeUserMismatch        = "auth/user-mismatch"
	CodeWeakPassword        = "auth/weak-password"
	CodeRequiresRecentLogin = "auth/requires-recent-login"
	CodeSessionExpired      = "auth/user-token-expired"
	CodeEmailInUse          = "auth/email-already-in-use"
	CodeTimeout             = "auth/timeout"
	CodeInternal            = "auth/internal-error"
)

// Error is a provider failure. Message is meant to be shown to the user as is.
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// Is matches on Code so callers can compare against the exported values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidCredential   = &Error{Code: CodeInvalidCredential, Message: "Invalid email or password."}
	ErrWrongPassword       = &Error{Code: CodeWrongPassword, Message: "The current password is incorrect."}
	ErrUserMismatch        = &Error{Code: CodeUserMismatch, Message: "The supplied credentials do not belong to the signed-in user."}
	ErrWeakPassword        = &Error{Code: CodeWeakPassword, Message: "Password should be at least 6 characters."}
	ErrRequiresRecentLogin = &Error{Code: CodeRequiresRecentLogin, Message: "This operation is sensitive and requires recent authentication. Log in again before retrying this request."}
	ErrSessionExpired      = &Error{Code: CodeSessionExpired, Message: "Your session has expired. Please sign in again."}
	ErrEmailInUse          = &Error{Code: CodeEmailInUse, Message: "The email address is already in use by another account."}
	ErrTimeout             = &Error{Code: CodeTimeout, Message: "The request timed out. Please try again."}
)

// Store-level sentinels.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// ErrSubmitInProgress is returned when a password change is already running
// for the same session.
var ErrSubmitInProgress = errors.New("password change already in progress")

// internal wraps an unexpected backend failure so the UI gets a readable
// message while the cause stays available to errors.Is and errors.As.
func internal(cause error) error {
	return &Error{Code: CodeInternal, Message: "Something went wrong. Please try again.", cause: cause}
}
