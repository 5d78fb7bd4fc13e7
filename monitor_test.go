package consoleauth

import (
	"sync/atomic"
	"testing"
	"time"
)

func newMonitorFixture(t *testing.T) (*InactivityMonitor, *Store, *recordingNav, time.Time) {
	t.Helper()
	store, _, nav := newTestStore(&fakeAPI{loginFn: loginOK})
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return base }
	seedSession(t, store, "tok")

	monitor := NewInactivityMonitor(store, defaultConfig().Session)
	monitor.clock = store.clock
	return monitor, store, nav, base
}

func TestMonitorWarnsOnceInsideWindow(t *testing.T) {
	monitor, store, _, base := newMonitorFixture(t)

	var warnings atomic.Int64
	var remaining atomic.Int64
	monitor.OnWarning(func(r time.Duration) {
		warnings.Add(1)
		remaining.Store(int64(r))
	})

	// 26 minutes idle: inside the 5-minute warning window of a 30-minute
	// timeout, 4 minutes left
	monitor.evaluate(base.Add(26 * time.Minute))
	monitor.evaluate(base.Add(27 * time.Minute))

	if warnings.Load() != 1 {
		t.Fatalf("warning must fire once per idle stretch, got %d", warnings.Load())
	}
	if got := time.Duration(remaining.Load()); got != 4*time.Minute {
		t.Fatalf("expected 4m remaining, got %v", got)
	}
	if !store.IsAuthenticated() {
		t.Fatal("warning must not end the session")
	}
}

func TestMonitorForcesLogoutAtTimeout(t *testing.T) {
	monitor, store, nav, base := newMonitorFixture(t)

	monitor.evaluate(base.Add(30 * time.Minute))

	if store.IsAuthenticated() {
		t.Fatal("expected forced logout at the timeout")
	}
	if nav.last() != "/auth/login" {
		t.Fatalf("expected navigation to login, got %q", nav.last())
	}

	// further ticks against the anonymous session are no-ops
	monitor.evaluate(base.Add(31 * time.Minute))
}

func TestMonitorTouchThrottle(t *testing.T) {
	monitor, store, _, base := newMonitorFixture(t)

	now := base
	clock := func() time.Time { return now }
	monitor.clock = clock
	store.clock = clock

	monitor.Touch()
	first := store.State().LastActivityAt

	// 5s later: inside the 10s throttle window, dropped
	now = base.Add(5 * time.Second)
	monitor.Touch()
	if got := store.State().LastActivityAt; !got.Equal(first) {
		t.Fatalf("throttled touch must not move activity, got %v", got)
	}

	// 15s later: past the window, recorded
	now = base.Add(15 * time.Second)
	monitor.Touch()
	if got := store.State().LastActivityAt; !got.Equal(now) {
		t.Fatalf("expected activity at %v, got %v", now, got)
	}
}

func TestMonitorTouchRearmsWarning(t *testing.T) {
	monitor, store, _, base := newMonitorFixture(t)

	var warnings atomic.Int64
	monitor.OnWarning(func(time.Duration) { warnings.Add(1) })

	monitor.evaluate(base.Add(26 * time.Minute))
	if warnings.Load() != 1 {
		t.Fatalf("expected one warning, got %d", warnings.Load())
	}

	// activity resets both the idle clock and the one-shot warning
	now := base.Add(27 * time.Minute)
	clock := func() time.Time { return now }
	monitor.clock = clock
	store.clock = clock
	monitor.Touch()

	monitor.evaluate(now.Add(26 * time.Minute))
	if warnings.Load() != 2 {
		t.Fatalf("warning must re-arm after activity, got %d", warnings.Load())
	}
}

func TestMonitorIgnoresAnonymousSession(t *testing.T) {
	store, _, _ := newTestStore(&fakeAPI{})
	monitor := NewInactivityMonitor(store, defaultConfig().Session)

	var warnings atomic.Int64
	monitor.OnWarning(func(time.Duration) { warnings.Add(1) })

	monitor.evaluate(time.Now().Add(24 * time.Hour))
	if warnings.Load() != 0 {
		t.Fatal("anonymous sessions must not produce warnings")
	}
}

func TestMonitorInitAndCloseAreIdempotent(t *testing.T) {
	monitor, _, _, _ := newMonitorFixture(t)
	monitor.Init()
	monitor.Init()
	monitor.Close()
	monitor.Close()
}
