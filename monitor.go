package consoleauth

import (
	"context"
	"log"
	"sync"
	"time"
)

// InactivityMonitor forces logout after sustained inactivity and raises a
// warning shortly before. It combines a low-frequency tick with a throttled
// activity listener; the warning countdown is always computed from the
// timeout window and the inactive time, never stored.
type InactivityMonitor struct {
	store     *Store
	timeout   time.Duration
	warning   time.Duration
	throttle  time.Duration
	interval  time.Duration
	clock     func() time.Time
	onWarning func(remaining time.Duration)

	mu           sync.Mutex
	warningShown bool
	lastTouch    time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
}

// NewInactivityMonitor returns a monitor for store; it does nothing until
// Init is called.
func NewInactivityMonitor(store *Store, cfg SessionConfig) *InactivityMonitor {
	return &InactivityMonitor{
		store:    store,
		timeout:  cfg.InactivityTimeout,
		warning:  cfg.WarningWindow,
		throttle: cfg.ActivityThrottle,
		interval: cfg.CheckInterval,
		clock:    time.Now,
		stop:     make(chan struct{}),
	}
}

// OnWarning installs the expiry warning callback. Set it before Init; when
// absent, warnings are logged.
func (m *InactivityMonitor) OnWarning(fn func(remaining time.Duration)) {
	m.onWarning = fn
}

// Init starts the background tick. Calling it more than once is a no-op.
func (m *InactivityMonitor) Init() {
	m.startOnce.Do(func() {
		go m.run()
	})
}

// Close stops the background tick.
func (m *InactivityMonitor) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Touch records user interaction. Calls inside the throttle window are
// dropped so shared state is not updated on every pointer event; a
// qualifying touch also clears the warning flag.
func (m *InactivityMonitor) Touch() {
	now := m.clock()
	m.mu.Lock()
	if !m.lastTouch.IsZero() && now.Sub(m.lastTouch) < m.throttle {
		m.mu.Unlock()
		return
	}
	m.lastTouch = now
	m.warningShown = false
	m.mu.Unlock()
	m.store.UpdateLastActivity()
}

func (m *InactivityMonitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.evaluate(m.clock())
		}
	}
}

// evaluate is one monitor tick: no-op when anonymous, forced logout past
// the timeout window, a single warning inside the warning window.
func (m *InactivityMonitor) evaluate(now time.Time) {
	st := m.store.State()
	if !st.Authenticated || st.LastActivityAt.IsZero() {
		return
	}

	inactive := now.Sub(st.LastActivityAt)
	if inactive >= m.timeout {
		log.Print("consoleauth: session timed out due to inactivity")
		m.store.Logout(context.Background())
		return
	}
	if inactive >= m.timeout-m.warning {
		m.mu.Lock()
		shown := m.warningShown
		m.warningShown = true
		m.mu.Unlock()
		if !shown {
			remaining := m.timeout - inactive
			if m.onWarning != nil {
				m.onWarning(remaining)
			} else {
				log.Print("consoleauth: session will expire soon due to inactivity")
			}
		}
	}
}
