package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	mu     sync.Mutex
	byMail map[string]*User
	next   int
	err    error
}

func newMemUsers() *memUsers { return &memUsers{byMail: make(map[string]*User)} }

func (m *memUsers) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byMail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) CreateUser(ctx context.Context, email, hash string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byMail[email]; ok {
		return nil, ErrUserExists
	}
	m.next++
	u := &User{ID: "u" + strconv.Itoa(m.next), Email: email, PasswordHash: hash, CreatedAt: time.Now()}
	m.byMail[email] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdatePassword(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byMail {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return ErrUserNotFound
}

func newTestProvider(t *testing.T) *LocalProvider {
	t.Helper()
	p := NewLocalProvider(newMemUsers(), NewJWTManager("test-secret", time.Hour))
	_, err := p.CreateUser(context.Background(), "admin@example.com", "secret1")
	require.NoError(t, err)
	return p
}

func recv(t *testing.T, ch <-chan *Session) *Session {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher callback")
		return nil
	}
}

func TestSignInAndResolve(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	s, err := p.SignIn(ctx, "  ADMIN@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", s.Email)
	assert.NotEmpty(t, s.Token)

	got, err := p.Resolve(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = p.SignIn(ctx, "admin@example.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = p.SignIn(ctx, "ghost@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestCreateUserRules(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.CreateUser(ctx, "new@example.com", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
	_, err = p.CreateUser(ctx, "new@example.com", "pässw")
	assert.ErrorIs(t, err, ErrWeakPassword, "five characters is too short even when it is six bytes")
	_, err = p.CreateUser(ctx, "new@example.com", "pässwö")
	assert.NoError(t, err)
	_, err = p.CreateUser(ctx, "Admin@Example.com", "another1")
	assert.ErrorIs(t, err, ErrEmailInUse)

	created, err := p.EnsureUser(ctx, "admin@example.com", "whatever")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSignOutRevokesAndNotifiesWatchers(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	s, err := p.SignIn(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)

	updates := make(chan *Session, 4)
	stop := p.Watch(s.Token, func(s *Session) { updates <- s })
	defer stop()

	first := recv(t, updates)
	require.NotNil(t, first)
	assert.Equal(t, s.ID, first.ID)

	require.NoError(t, p.SignOut(ctx, s))
	assert.Nil(t, recv(t, updates))

	_, err = p.Resolve(ctx, s.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.ErrorIs(t, p.SignOut(ctx, s), ErrSessionExpired)
}

// lastSession keeps the most recent value a watcher delivered.
type lastSession struct {
	mu    sync.Mutex
	calls int
	s     *Session
}

func (l *lastSession) set(s *Session) {
	l.mu.Lock()
	l.calls++
	l.s = s
	l.mu.Unlock()
}

func (l *lastSession) get() (int, *Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls, l.s
}

func TestWatchRacingSignOutEndsSignedOut(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		s, err := p.SignIn(ctx, "admin@example.com", "secret1")
		require.NoError(t, err)

		var last lastSession
		var stop func()
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			stop = p.Watch(s.Token, last.set)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, p.SignOut(ctx, s))
		}()
		wg.Wait()

		assert.Eventually(t, func() bool {
			calls, got := last.get()
			return calls > 0 && got == nil
		}, 2*time.Second, time.Millisecond, "iteration %d: watcher still sees a signed-out session", i)
		stop()
	}
}

func TestWatchInvalidTokenDeliversNil(t *testing.T) {
	p := newTestProvider(t)
	updates := make(chan *Session, 1)
	stop := p.Watch("garbage", func(s *Session) { updates <- s })
	defer stop()
	assert.Nil(t, recv(t, updates))
}

func TestWatchStopsAfterUnsubscribe(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	s, err := p.SignIn(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)

	updates := make(chan *Session, 4)
	stop := p.Watch(s.Token, func(s *Session) { updates <- s })
	recv(t, updates)
	stop()
	stop()

	require.NoError(t, p.SignOut(ctx, s))
	select {
	case got := <-updates:
		t.Fatalf("callback after unsubscribe: %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReauthenticate(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	s, err := p.SignIn(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)

	assert.ErrorIs(t, p.Reauthenticate(ctx, s, EmailCredential("admin@example.com", "bad")), ErrWrongPassword)
	assert.ErrorIs(t, p.Reauthenticate(ctx, s, EmailCredential("other@example.com", "secret1")), ErrUserMismatch)
	assert.NoError(t, p.Reauthenticate(ctx, s, EmailCredential("admin@example.com", "secret1")))
}

func TestUpdatePasswordRequiresRecentLogin(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	now := time.Now()
	p.SetClock(func() time.Time { return now })

	s, err := p.SignIn(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)

	now = now.Add(RecentLoginWindow + time.Second)
	err = p.UpdatePassword(ctx, s, "newsecret")
	var authErr *Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, CodeRequiresRecentLogin, authErr.Code)

	require.NoError(t, p.Reauthenticate(ctx, s, EmailCredential(s.Email, "secret1")))
	assert.ErrorIs(t, p.UpdatePassword(ctx, s, "tiny"), ErrWeakPassword)
	assert.ErrorIs(t, p.UpdatePassword(ctx, s, "ñandú"), ErrWeakPassword)
	require.NoError(t, p.UpdatePassword(ctx, s, "newsecret"))

	_, err = p.SignIn(ctx, "admin@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = p.SignIn(ctx, "admin@example.com", "newsecret")
	assert.NoError(t, err)
}

func TestUpdatePasswordRevokesOtherSessions(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	current, err := p.SignIn(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)
	other, err := p.SignIn(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)

	updates := make(chan *Session, 4)
	stop := p.Watch(other.Token, func(s *Session) { updates <- s })
	defer stop()
	require.NotNil(t, recv(t, updates))

	require.NoError(t, p.UpdatePassword(ctx, current, "newsecret"))
	assert.Nil(t, recv(t, updates))

	_, err = p.Resolve(ctx, current.Token)
	assert.NoError(t, err, "the session that changed the password stays signed in")
	_, err = p.Resolve(ctx, other.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, p.Sessions())
}

func TestStoreFailureIsInternal(t *testing.T) {
	users := newMemUsers()
	p := NewLocalProvider(users, NewJWTManager("k", time.Hour))
	users.err = errors.New("disk on fire")

	_, err := p.SignIn(context.Background(), "a@b.c", "secret1")
	var authErr *Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, CodeInternal, authErr.Code)
	assert.NotContains(t, authErr.Message, "disk on fire")
	assert.ErrorContains(t, errors.Unwrap(err), "disk on fire")
}
