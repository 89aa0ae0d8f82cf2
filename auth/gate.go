package auth

import (
	"context"
	"sync"
)

// Paths the gate redirects to.
const (
	LoginPath = "/login/"
	HomePath  = "/"
)

// Route says which side of the gate a request targets.
type Route int

const (
	// RouteLogin is the login page, only for signed-out users.
	RouteLogin Route = iota
	// RouteShell is every page of the authenticated shell.
	RouteShell
)

// Decision is the outcome of routing a request through the gate.
type Decision int

const (
	DecisionPending Decision = iota
	DecisionAllow
	DecisionRedirect
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionRedirect:
		return "redirect"
	default:
		return "pending"
	}
}

// Decide applies the routing rules to a resolved session state. It never
// returns DecisionPending.
func Decide(s *Session, r Route) (Decision, string) {
	switch {
	case r == RouteLogin && s != nil:
		return DecisionRedirect, HomePath
	case r == RouteShell && s == nil:
		return DecisionRedirect, LoginPath
	default:
		return DecisionAllow, ""
	}
}

// Gate tracks the session behind one token. It starts pending and resolves on
// the first provider callback.
type Gate struct {
	unsubscribe func()

	mu       sync.Mutex
	session  *Session
	resolved bool
	closed   bool

	ready   chan struct{}
	changed chan struct{}
	once    sync.Once
}

// WatchSession opens exactly one provider subscription for token. Close
// releases it.
func WatchSession(p Provider, token string) *Gate {
	g := &Gate{
		ready:   make(chan struct{}),
		changed: make(chan struct{}, 1),
	}
	g.unsubscribe = p.Watch(token, g.set)
	return g
}

func (g *Gate) set(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.session = s
	if !g.resolved {
		g.resolved = true
		close(g.ready)
	}
	select {
	case g.changed <- struct{}{}:
	default:
	}
}

// Decide routes r against the current state.
func (g *Gate) Decide(r Route) (Decision, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.resolved {
		return DecisionPending, ""
	}
	return Decide(g.session, r)
}

// Session returns the resolved session, or nil.
func (g *Gate) Session() *Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session
}

// Resolved reports whether the provider has answered yet.
func (g *Gate) Resolved() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolved
}

// Ready is closed once the gate has resolved.
func (g *Gate) Ready() <-chan struct{} { return g.ready }

// Changed receives a value after every session transition.
func (g *Gate) Changed() <-chan struct{} { return g.changed }

// Wait blocks until the gate resolves or ctx is done.
func (g *Gate) Wait(ctx context.Context) (*Session, error) {
	select {
	case <-g.ready:
		return g.Session(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the provider subscription. Transitions after Close are
// ignored. It is safe to call more than once.
func (g *Gate) Close() {
	g.once.Do(func() {
		g.mu.Lock()
		g.closed = true
		g.mu.Unlock()
		g.unsubscribe()
	})
}
