// Package auth holds the session model of the admin app: the provider that
// signs users in and out, the gate that routes requests by session state, and
// the password change form.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MinPasswordLength is the shortest password a provider accepts.
const MinPasswordLength = 6

// RecentLoginWindow is how long after sign-in or reauthentication a session
// may change its password.
const RecentLoginWindow = 5 * time.Minute

// Session is an authenticated sign-in of one user.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Credential proves knowledge of a user's password.
type Credential struct {
	Email    string
	Password string
}

// EmailCredential builds a Credential from an email and password.
func EmailCredential(email, password string) Credential {
	return Credential{Email: email, Password: password}
}

// Provider is the authentication backend.
type Provider interface {
	// Watch calls fn asynchronously with the session identified by token, or
	// nil, and again whenever that changes. The returned func stops delivery.
	Watch(token string, fn func(*Session)) (unsubscribe func())
	Resolve(ctx context.Context, token string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, s *Session) error
	Reauthenticate(ctx context.Context, s *Session, cred Credential) error
	UpdatePassword(ctx context.Context, s *Session, newPassword string) error
}

// User is a stored admin account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore persists admin accounts. GetUserByEmail returns ErrUserNotFound
// and CreateUser returns ErrUserExists.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, email, passwordHash string) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type sessionState struct {
	session  Session
	reauthAt time.Time
}

// LocalProvider authenticates against a UserStore and keeps live sessions in
// memory. Tokens are JWTs whose id names the session, so revoking a session
// invalidates its token even before expiry.
type LocalProvider struct {
	users UserStore
	jwt   *JWTManager
	now   func() time.Time

	mu        sync.Mutex
	sessions  map[string]*sessionState
	watchers  map[string]map[int]*watcher
	nextWatch int
}

// NewLocalProvider returns a provider backed by users and signing tokens
// with jwt.
func NewLocalProvider(users UserStore, jwt *JWTManager) *LocalProvider {
	return &LocalProvider{
		users:    users,
		jwt:      jwt,
		now:      time.Now,
		sessions: make(map[string]*sessionState),
		watchers: make(map[string]map[int]*watcher),
	}
}

// SetClock replaces the time source. It is meant for tests.
func (p *LocalProvider) SetClock(now func() time.Time) {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
}

// CreateUser adds an account after applying the password rules.
func (p *LocalProvider) CreateUser(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, internal(err)
	}
	u, err := p.users.CreateUser(ctx, email, hash)
	if errors.Is(err, ErrUserExists) {
		return nil, ErrEmailInUse
	}
	if err != nil {
		return nil, internal(err)
	}
	return u, nil
}

// EnsureUser creates the account unless one with that email exists. It
// reports whether a user was created.
func (p *LocalProvider) EnsureUser(ctx context.Context, email, password string) (bool, error) {
	_, err := p.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return false, err
	}
	if _, err := p.CreateUser(ctx, email, password); err != nil {
		return false, err
	}
	return true, nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	u, err := p.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, internal(err)
	}
	if CheckPassword(u.PasswordHash, password) != nil {
		return nil, ErrInvalidCredential
	}

	id := uuid.NewString()
	token, expiresAt, err := p.jwt.GenerateToken(id, u.ID, u.Email)
	if err != nil {
		return nil, internal(err)
	}
	s := Session{ID: id, UserID: u.ID, Email: u.Email, Token: token, ExpiresAt: expiresAt}

	p.mu.Lock()
	p.sessions[id] = &sessionState{session: s, reauthAt: p.now()}
	p.mu.Unlock()
	return &s, nil
}

func (p *LocalProvider) Resolve(ctx context.Context, token string) (*Session, error) {
	claims, err := p.jwt.VerifyToken(token)
	if err != nil {
		return nil, ErrSessionExpired
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.sessions[claims.ID]
	if !ok {
		return nil, ErrSessionExpired
	}
	s := st.session
	return &s, nil
}

func (p *LocalProvider) SignOut(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrSessionExpired
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sessions[s.ID]; !ok {
		return ErrSessionExpired
	}
	p.revokeLocked(s.ID)
	return nil
}

func (p *LocalProvider) Reauthenticate(ctx context.Context, s *Session, cred Credential) error {
	if _, err := p.state(s); err != nil {
		return err
	}
	if NormalizeEmail(cred.Email) != NormalizeEmail(s.Email) {
		return ErrUserMismatch
	}
	u, err := p.users.GetUserByEmail(ctx, NormalizeEmail(cred.Email))
	if errors.Is(err, ErrUserNotFound) {
		return ErrUserMismatch
	}
	if err != nil {
		return internal(err)
	}
	if CheckPassword(u.PasswordHash, cred.Password) != nil {
		return ErrWrongPassword
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.sessions[s.ID]
	if !ok {
		return ErrSessionExpired
	}
	st.reauthAt = p.now()
	return nil
}

// UpdatePassword changes the user's password. It requires a sign-in or
// reauthentication within RecentLoginWindow, and revokes every other session
// of the same user.
func (p *LocalProvider) UpdatePassword(ctx context.Context, s *Session, newPassword string) error {
	st, err := p.state(s)
	if err != nil {
		return err
	}
	p.mu.Lock()
	stale := p.now().Sub(st.reauthAt) > RecentLoginWindow
	p.mu.Unlock()
	if stale {
		return ErrRequiresRecentLogin
	}
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return internal(err)
	}
	if err := p.users.UpdatePassword(ctx, s.UserID, hash); err != nil {
		return internal(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for id, other := range p.sessions {
		if id != s.ID && other.session.UserID == s.UserID {
			p.revokeLocked(id)
		}
	}
	return nil
}

// Watch implements Provider. An invalid or revoked token is delivered as nil.
func (p *LocalProvider) Watch(token string, fn func(*Session)) func() {
	w := newWatcher(fn)

	var current *Session
	key := ""
	if claims, err := p.jwt.VerifyToken(token); err == nil {
		key = claims.ID
	}

	p.mu.Lock()
	if st, ok := p.sessions[key]; ok && key != "" {
		s := st.session
		current = &s
	}
	p.nextWatch++
	n := p.nextWatch
	if p.watchers[key] == nil {
		p.watchers[key] = make(map[int]*watcher)
	}
	p.watchers[key][n] = w
	// Pushed under p.mu so a concurrent revoke cannot land before it.
	w.push(current)
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		if ws := p.watchers[key]; ws != nil {
			delete(ws, n)
			if len(ws) == 0 {
				delete(p.watchers, key)
			}
		}
		p.mu.Unlock()
		w.stop()
	}
}

// Sessions returns the number of live sessions.
func (p *LocalProvider) Sessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func (p *LocalProvider) state(s *Session) (*sessionState, error) {
	if s == nil {
		return nil, ErrSessionExpired
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.sessions[s.ID]
	if !ok || p.now().After(st.session.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return st, nil
}

// revokeLocked must be called with p.mu held.
func (p *LocalProvider) revokeLocked(id string) {
	delete(p.sessions, id)
	for _, w := range p.watchers[id] {
		w.push(nil)
	}
}

// watcher delivers session updates to one callback on its own goroutine.
// Only the latest pending value is kept.
type watcher struct {
	fn func(*Session)

	mu      sync.Mutex
	pending *Session
	has     bool

	wake chan struct{}
	quit chan struct{}
	once sync.Once
}

func newWatcher(fn func(*Session)) *watcher {
	w := &watcher{
		fn:   fn,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *watcher) push(s *Session) {
	w.mu.Lock()
	w.pending, w.has = s, true
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) loop() {
	for {
		select {
		case <-w.quit:
			return
		case <-w.wake:
		}
		w.mu.Lock()
		s, ok := w.pending, w.has
		w.pending, w.has = nil, false
		w.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case <-w.quit:
			return
		default:
		}
		w.fn(s)
	}
}

func (w *watcher) stop() {
	w.once.Do(func() { close(w.quit) })
}
