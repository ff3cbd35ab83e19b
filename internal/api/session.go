package api

import (
	"context"
	"log/slog"
	"sync"

	"github.com/salmonumbrella/paddock-cli/internal/debug"
	"github.com/salmonumbrella/paddock-cli/internal/host"
)

// Frontend routes the session cares about.
const (
	LoginRoute   = "/login"
	LandingRoute = "/"
)

// Refresher performs the renewal request itself. It reports whether the
// backend accepted the renewal.
type Refresher interface {
	Refresh(ctx context.Context) bool
}

// Session coordinates renewal of the cookie session shared by every Client
// built on it. At most one renewal is in flight at a time; callers arriving
// while one is running wait for it and share its outcome.
//
// Construct one Session per process and pass it to each Client.
type Session struct {
	host host.Context

	mu       sync.Mutex
	inflight *renewal
}

// renewal is one in-flight attempt. ok is written before done is closed.
type renewal struct {
	done    chan struct{}
	ok      bool
	waiters int
}

// NewSession returns a Session for the given execution context. A nil
// context means headless.
func NewSession(h host.Context) *Session {
	if h == nil {
		h = host.Headless{}
	}
	return &Session{host: h}
}

// Host returns the execution context the session was built for.
func (s *Session) Host() host.Context {
	return s.host
}

// Renew renews the session through r, or joins the renewal already in flight.
// It returns false without any network call in a headless context. On failure
// the page is sent to the login route unless it is already on the login or
// landing route.
func (s *Session) Renew(ctx context.Context, r Refresher) bool {
	if _, ok := s.host.Location(); !ok {
		return false
	}

	s.mu.Lock()
	if attempt := s.inflight; attempt != nil {
		attempt.waiters++
		s.mu.Unlock()

		select {
		case <-attempt.done:
			return attempt.ok
		case <-ctx.Done():
			return false
		}
	}
	attempt := &renewal{done: make(chan struct{}), waiters: 1}
	s.inflight = attempt
	s.mu.Unlock()

	attempt.ok = s.run(ctx, r)

	s.mu.Lock()
	s.inflight = nil
	s.mu.Unlock()
	close(attempt.done)

	return attempt.ok
}

func (s *Session) run(ctx context.Context, r Refresher) bool {
	if debug.IsEnabled(ctx) {
		slog.Debug("session renewal started")
	}
	// Waiters share this attempt, so the first caller's cancellation must not end it.
	ok := r.Refresh(context.WithoutCancel(ctx))
	if debug.IsEnabled(ctx) {
		slog.Debug("session renewal settled", "ok", ok)
	}
	if !ok {
		s.redirectToLogin()
	}
	return ok
}

func (s *Session) redirectToLogin() {
	switch host.Route(s.host) {
	case "", LoginRoute, LandingRoute:
		return
	}
	s.host.Navigate(LoginRoute)
}

// pending reports how many callers share the in-flight renewal, 0 when idle.
func (s *Session) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == nil {
		return 0
	}
	return s.inflight.waiters
}
