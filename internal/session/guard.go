// Package session gates route access by assigned role and enforces the
// kiosk inactivity reset. The guard owns the browser-session-scoped role
// value; it is created once, injected into every consumer and never a
// hidden global.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Role string

const (
	RoleNone    Role = ""
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Redirect targets for denied access.
type Redirect string

const (
	RedirectNone       Redirect = ""
	RedirectRoleSelect Redirect = "role-select"
	RedirectHome       Redirect = "home"
)

const (
	// DefaultIdleTimeout matches the kiosk layout's 30 minute window.
	DefaultIdleTimeout = 30 * time.Minute
	// WarnLead is how long before expiry the non-blocking warning shows.
	WarnLead = time.Minute
	// FarewellTimeout is the independent countdown on logout / finished
	// consultation screens.
	FarewellTimeout = 60 * time.Second
)

// Decision answers "may this role see this route".
type Decision struct {
	Allowed  bool
	Redirect Redirect
}

// State is a point-in-time view of the idle countdown.
type State struct {
	Role      Role
	Warning   bool
	Expired   bool
	Remaining time.Duration
}

// Guard holds the session role and its inactivity countdown. Single writer;
// all route-level consumers read through it.
type Guard struct {
	mu       sync.Mutex
	clock    func() time.Time
	logger   *zap.Logger
	timeout  time.Duration
	warnLead time.Duration

	role         Role
	lastActivity time.Time
}

// NewGuard builds a guard with the given idle timeout. A nil clock means
// time.Now; tests inject a fake.
func NewGuard(timeout time.Duration, clock func() time.Time, logger *zap.Logger) *Guard {
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	if clock == nil {
		clock = time.Now
	}
	return &Guard{
		clock:    clock,
		logger:   logger,
		timeout:  timeout,
		warnLead: WarnLead,
	}
}

// SetRole assigns the session role and starts the idle countdown. Only the
// role itself is stored; clinical data never shares this slot.
func (g *Guard) SetRole(role Role) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.role = role
	g.lastActivity = g.clock()
	g.logger.Info("role assigned", zap.String("role", string(role)))
}

// ClearRole ends the session: explicit logout, kiosk reset or expiry.
func (g *Guard) ClearRole() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.role != RoleNone {
		g.logger.Info("role cleared", zap.String("role", string(g.role)))
	}
	g.role = RoleNone
}

// Role returns the active role. The second return is false when no session
// is active; calling MustRole in that situation is the caller's bug.
func (g *Guard) Role() (Role, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.role, g.role != RoleNone
}

// MustRole panics outside an active role session. Reserved for code paths
// that are unreachable without one.
func (g *Guard) MustRole() Role {
	role, ok := g.Role()
	if !ok {
		panic("session: role accessed outside an active role session")
	}
	return role
}

// Touch registers a qualifying user input event, resetting the countdown to
// its full window.
func (g *Guard) Touch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.role == RoleNone {
		return
	}
	g.lastActivity = g.clock()
}

// DismissWarning acknowledges the idle warning. It fully resets the
// countdown, not just the banner.
func (g *Guard) DismissWarning() {
	g.Touch()
}

// State reports the countdown position. Observing an expired countdown
// clears the role, so a late caller sees the session already ended.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.role == RoleNone {
		return State{}
	}

	idle := g.clock().Sub(g.lastActivity)
	if idle >= g.timeout {
		g.logger.Info("session expired by inactivity", zap.String("role", string(g.role)))
		g.role = RoleNone
		return State{Expired: true}
	}

	return State{
		Role:      g.role,
		Warning:   idle >= g.timeout-g.warnLead,
		Remaining: g.timeout - idle,
	}
}

// Authorize decides whether the current session may access a route
// restricted to the given role. No role at all redirects to role selection;
// a mismatched role is sent back to its own home.
func (g *Guard) Authorize(required Role) Decision {
	state := g.State()
	if state.Role == RoleNone {
		return Decision{Redirect: RedirectRoleSelect}
	}
	if required != RoleNone && state.Role != required {
		return Decision{Redirect: RedirectHome}
	}
	return Decision{Allowed: true}
}

// Watch drives the production countdown: onWarn fires once when the warning
// window opens, onExpire fires when the timeout elapses (after the role is
// cleared). Returns on expiry or context cancellation; any Touch while
// running re-arms the warning.
func (g *Guard) Watch(ctx context.Context, onWarn, onExpire func()) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	warned := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := g.State()
			if state.Expired {
				if onExpire != nil {
					onExpire()
				}
				return
			}
			if state.Role == RoleNone {
				return
			}
			switch {
			case state.Warning && !warned:
				warned = true
				if onWarn != nil {
					onWarn()
				}
			case !state.Warning:
				warned = false
			}
		}
	}
}

// Farewell runs the independent end-screen countdown: after d (default
// FarewellTimeout) the role is cleared and onDone fires. Cancelling the
// context aborts it without clearing anything.
func (g *Guard) Farewell(ctx context.Context, d time.Duration, onDone func()) {
	if d <= 0 {
		d = FarewellTimeout
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
		g.ClearRole()
		if onDone != nil {
			onDone()
		}
	}
}
