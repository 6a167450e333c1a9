// Package netmon tracks real connectivity to the remote backend. OS-level
// "online" hints are necessary but not sufficient: the backend must answer a
// probe before the state flips to online. "Offline" hints are trusted
// immediately so callers fail fast.
package netmon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the connectivity state machine: Unknown until the first hint or
// probe, then Online/Offline.
type State int

const (
	StateUnknown State = iota
	StateOnline
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Prober performs a lightweight reachability check against the backend.
type Prober interface {
	Ping(ctx context.Context) error
}

const (
	defaultProbeTimeout = 5 * time.Second
	defaultDebounce     = 30 * time.Second
)

// Options configures a Monitor.
type Options struct {
	ProbeTimeout time.Duration // hard timeout per probe
	Debounce     time.Duration // window during which a cached Online result is reused
	Logger       *slog.Logger
}

type listener struct {
	id int
	fn func(State)
}

// Monitor derives the authoritative connectivity state from OS hints plus an
// active probe, and fans state changes out to subscribers.
type Monitor struct {
	prober       Prober
	logger       *slog.Logger
	probeTimeout time.Duration
	debounce     time.Duration

	mu         sync.Mutex
	state      State
	lastProbe  time.Time
	lastResult bool
	listeners  []listener
	nextID     int
	onOnline   []func()
}

// New creates a Monitor. The prober is typically the remote gateway.
func New(prober Prober, opts Options) *Monitor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	return &Monitor{
		prober:       prober,
		logger:       opts.Logger,
		probeTimeout: opts.ProbeTimeout,
		debounce:     opts.Debounce,
		state:        StateUnknown,
	}
}

// State returns the current connectivity state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Online reports whether the monitor currently considers the backend reachable.
func (m *Monitor) Online() bool {
	return m.State() == StateOnline
}

// ReportUp handles an OS "online" hint. The state only flips to Online after
// a successful probe; a failed probe leaves the state as-is.
func (m *Monitor) ReportUp(ctx context.Context) bool {
	if m.probe(ctx) {
		m.setState(StateOnline)
		return true
	}
	m.logger.Debug("online hint not confirmed by probe")
	return false
}

// ReportDown handles an OS "offline" hint. Trusted immediately, no probe.
func (m *Monitor) ReportDown() {
	m.mu.Lock()
	m.lastResult = false
	m.mu.Unlock()
	m.setState(StateOffline)
}

// CheckNow performs a debounced active probe and updates the state.
func (m *Monitor) CheckNow(ctx context.Context) bool {
	if m.probe(ctx) {
		m.setState(StateOnline)
		return true
	}
	m.setState(StateOffline)
	return false
}

// Subscribe registers a state-change listener and returns a disposer.
// Listeners run synchronously in registration order.
func (m *Monitor) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners = append(m.listeners, listener{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// OnOnline registers a hook that fires exactly once per Offline/Unknown to
// Online transition. The sync engine uses this to kick queue replay.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// probe asks the backend directly, reusing a cached Online result inside the
// debounce window to avoid request storms.
func (m *Monitor) probe(ctx context.Context) bool {
	m.mu.Lock()
	if time.Since(m.lastProbe) < m.debounce && m.lastResult {
		m.mu.Unlock()
		return true
	}
	m.lastProbe = time.Now()
	m.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	err := m.prober.Ping(probeCtx)

	m.mu.Lock()
	m.lastResult = err == nil
	m.mu.Unlock()

	if err != nil {
		m.logger.Debug("connectivity probe failed", "error", err)
		return false
	}
	return true
}

// setState transitions the state machine, notifying subscribers and firing
// online hooks outside the lock.
func (m *Monitor) setState(next State) {
	m.mu.Lock()
	prev := m.state
	if prev == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	subs := make([]listener, len(m.listeners))
	copy(subs, m.listeners)
	var hooks []func()
	if next == StateOnline {
		hooks = make([]func(), len(m.onOnline))
		copy(hooks, m.onOnline)
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed", "from", prev, "to", next)
	for _, l := range subs {
		l.fn(next)
	}
	for _, fn := range hooks {
		fn()
	}
}
