package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestGuard(clock *fakeClock) *Guard {
	return NewGuard(30*time.Minute, clock.Now, zap.NewNop())
}

func TestRoleLifecycle(t *testing.T) {
	g := newTestGuard(newFakeClock())

	_, ok := g.Role()
	require.False(t, ok)

	g.SetRole(RolePatient)
	role, ok := g.Role()
	require.True(t, ok)
	require.Equal(t, RolePatient, role)
	require.Equal(t, RolePatient, g.MustRole())

	g.ClearRole()
	_, ok = g.Role()
	require.False(t, ok)
}

func TestMustRolePanicsWithoutSession(t *testing.T) {
	g := newTestGuard(newFakeClock())
	require.Panics(t, func() { g.MustRole() })
}

func TestAuthorize(t *testing.T) {
	g := newTestGuard(newFakeClock())

	// No session at all: back to role selection.
	d := g.Authorize(RoleDoctor)
	require.False(t, d.Allowed)
	require.Equal(t, RedirectRoleSelect, d.Redirect)

	// Wrong role: back to own home.
	g.SetRole(RolePatient)
	d = g.Authorize(RoleDoctor)
	require.False(t, d.Allowed)
	require.Equal(t, RedirectHome, d.Redirect)

	// Matching role and unrestricted routes pass.
	require.True(t, g.Authorize(RolePatient).Allowed)
	require.True(t, g.Authorize(RoleNone).Allowed)
}

func TestExpiryClearsRole(t *testing.T) {
	clock := newFakeClock()
	g := newTestGuard(clock)
	g.SetRole(RoleDoctor)

	clock.Advance(30 * time.Minute)
	state := g.State()
	require.True(t, state.Expired)
	require.Equal(t, RoleNone, state.Role)

	// The session is gone for every later observer.
	_, ok := g.Role()
	require.False(t, ok)
	require.Equal(t, RedirectRoleSelect, g.Authorize(RoleDoctor).Redirect)
	require.False(t, g.State().Expired)
}

func TestTouchResetsFullWindow(t *testing.T) {
	clock := newFakeClock()
	g := newTestGuard(clock)
	g.SetRole(RolePatient)

	clock.Advance(29 * time.Minute)
	g.Touch()

	clock.Advance(29 * time.Minute)
	state := g.State()
	require.False(t, state.Expired)
	require.Equal(t, RolePatient, state.Role)
	require.Equal(t, time.Minute, state.Remaining)
}

func TestWarningWindow(t *testing.T) {
	clock := newFakeClock()
	g := newTestGuard(clock)
	g.SetRole(RolePatient)

	clock.Advance(28 * time.Minute)
	require.False(t, g.State().Warning)

	clock.Advance(time.Minute)
	state := g.State()
	require.True(t, state.Warning)
	require.False(t, state.Expired)
	require.Equal(t, time.Minute, state.Remaining)

	g.DismissWarning()
	state = g.State()
	require.False(t, state.Warning)
	require.Equal(t, 30*time.Minute, state.Remaining)
}

func TestTouchWithoutRoleIsNoOp(t *testing.T) {
	clock := newFakeClock()
	g := newTestGuard(clock)
	g.Touch()
	require.Equal(t, State{}, g.State())
}

func TestWatchFiresWarnThenExpire(t *testing.T) {
	clock := newFakeClock()
	g := NewGuard(3*time.Second, clock.Now, zap.NewNop())
	g.warnLead = time.Second
	g.SetRole(RolePatient)

	var mu sync.Mutex
	var warned, expired bool

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Watch(context.Background(),
			func() { mu.Lock(); warned = true; mu.Unlock() },
			func() { mu.Lock(); expired = true; mu.Unlock() },
		)
	}()

	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return warned
	}, 3*time.Second, 10*time.Millisecond)

	clock.Advance(2 * time.Second)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not return after expiry")
	}

	mu.Lock()
	defer mu.Unlock()
	require.True(t, expired)
	_, ok := g.Role()
	require.False(t, ok)
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	clock := newFakeClock()
	g := newTestGuard(clock)
	g.SetRole(RolePatient)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Watch(ctx, nil, nil)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not return after cancel")
	}

	// Cancellation is not expiry; the session stays.
	_, ok := g.Role()
	require.True(t, ok)
}

func TestFarewellClearsRoleAndSignals(t *testing.T) {
	g := newTestGuard(newFakeClock())
	g.SetRole(RolePatient)

	done := make(chan struct{})
	g.Farewell(context.Background(), 10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("farewell callback never fired")
	}
	_, ok := g.Role()
	require.False(t, ok)
}

func TestFarewellAbortedByContext(t *testing.T) {
	g := newTestGuard(newFakeClock())
	g.SetRole(RolePatient)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g.Farewell(ctx, time.Hour, func() { t.Fatal("callback must not fire on cancel") })

	role, ok := g.Role()
	require.True(t, ok)
	require.Equal(t, RolePatient, role)
}
