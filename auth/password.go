package auth

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"
)

// DefaultPasswordTimeout bounds one password change submission.
const DefaultPasswordTimeout = 15 * time.Second

// ValidationError is a form error caught before any provider call.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

const (
	ErrPasswordMismatch ValidationError = "Passwords don't match"
	ErrPasswordTooShort ValidationError = "Password must be at least 6 characters"
)

// PasswordForm is the state of the change password form.
type PasswordForm struct {
	Current string `json:"currentPassword" form:"current_password"`
	New     string `json:"newPassword" form:"new_password"`
	Confirm string `json:"confirmPassword" form:"confirm_password"`
}

// Validate checks that the new password is confirmed and long enough, in
// that order.
func (f *PasswordForm) Validate() error {
	if f.New != f.Confirm {
		return ErrPasswordMismatch
	}
	if utf8.RuneCountInString(f.New) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// Clear empties every field.
func (f *PasswordForm) Clear() {
	*f = PasswordForm{}
}

// PasswordChanger runs password change submissions: reauthenticate with the
// current password, then update. At most one submission per session runs at
// a time.
type PasswordChanger struct {
	provider Provider
	timeout  time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewPasswordChanger returns a changer using p. A timeout <= 0 selects
// DefaultPasswordTimeout.
func NewPasswordChanger(p Provider, timeout time.Duration) *PasswordChanger {
	if timeout <= 0 {
		timeout = DefaultPasswordTimeout
	}
	return &PasswordChanger{
		provider: p,
		timeout:  timeout,
		inFlight: make(map[string]struct{}),
	}
}

// Submitting reports whether a submission for sessionID is in flight.
func (c *PasswordChanger) Submitting(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[sessionID]
	return ok
}

// Submit validates form and changes the password of s. On success the form
// is cleared. On failure the form is left as it was and the returned error's
// message is suitable for display.
func (c *PasswordChanger) Submit(ctx context.Context, s *Session, form *PasswordForm) error {
	if err := form.Validate(); err != nil {
		return err
	}
	if s == nil {
		return ErrSessionExpired
	}

	c.mu.Lock()
	if _, busy := c.inFlight[s.ID]; busy {
		c.mu.Unlock()
		return ErrSubmitInProgress
	}
	c.inFlight[s.ID] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inFlight, s.ID)
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.run(ctx, s, form.Current, form.New)
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if err != nil {
		return err
	}
	form.Clear()
	return nil
}

func (c *PasswordChanger) run(ctx context.Context, s *Session, current, next string) error {
	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		cred := EmailCredential(s.Email, current)
		if err := c.provider.Reauthenticate(ctx, s, cred); err != nil {
			done <- result{err}
			return
		}
		done <- result{c.provider.UpdatePassword(ctx, s, next)}
	}()

	select {
	case r := <-done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
