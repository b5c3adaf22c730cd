// Package connectivity observes network reachability for the offline core.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/stockpoint-app/backend/internal/logging"
)

// Probe reports whether the network is currently reachable.
type Probe func(ctx context.Context) bool

// HTTPProbe builds a Probe that issues a HEAD request against a health URL.
func HTTPProbe(url string, timeout time.Duration) Probe {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode < 500
	}
}

// Monitor tracks the published online state and notifies subscribers on
// transitions. The raw reachability signal is debounced: offline→online is
// published only after the signal has held for the stability window, so a
// transient flap cannot trigger a sync storm. online→offline publishes
// immediately.
type Monitor struct {
	probe           Probe
	probeInterval   time.Duration
	stabilityWindow time.Duration

	mu            sync.RWMutex
	online        bool // published state
	observed      bool // raw signal
	observedSince time.Time
	subs          map[int]func(online bool)
	nextSub       int

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewMonitor creates a Monitor. The probe may be nil when state is fed
// exclusively through Report (platform online/offline events, tests).
func NewMonitor(probe Probe, probeInterval, stabilityWindow time.Duration) *Monitor {
	return &Monitor{
		probe:           probe,
		probeInterval:   probeInterval,
		stabilityWindow: stabilityWindow,
		subs:            make(map[int]func(bool)),
		stopCh:          make(chan struct{}),
	}
}

// Start begins polling the probe. The first result is published without the
// stability window; the initial state is not a flap.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running || m.probe == nil {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	initial := m.runProbe(ctx)
	m.mu.Lock()
	m.observed = initial
	m.observedSince = time.Now()
	changed := m.online != initial
	m.online = initial
	subs := m.snapshotSubs()
	m.mu.Unlock()
	if changed {
		m.notify(subs, initial)
	}

	m.wg.Add(1)
	go m.loop(ctx)

	logging.Info("connectivity monitor started",
		map[string]interface{}{"online": initial})
}

// Stop halts polling. Subscribers stay registered.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Report(m.runProbe(ctx))
		}
	}
}

func (m *Monitor) runProbe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeInterval)
	defer cancel()
	return m.probe(probeCtx)
}

// Report feeds one raw reachability observation into the debouncer. It is
// the entry point for both the polling loop and event-driven platform
// signals.
func (m *Monitor) Report(online bool) {
	now := time.Now()

	m.mu.Lock()
	if online != m.observed {
		m.observed = online
		m.observedSince = now
	}

	var publish, state bool
	switch {
	case !online && m.online:
		// Loss of reachability is published immediately.
		m.online = false
		publish, state = true, false
	case online && !m.online && now.Sub(m.observedSince) >= m.stabilityWindow:
		m.online = true
		publish, state = true, true
	}
	subs := m.snapshotSubs()
	m.mu.Unlock()

	if publish {
		logging.Info("connectivity changed", map[string]interface{}{"online": state})
		m.notify(subs, state)
	}
}

// Online returns the current published state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe registers a transition callback and returns its id.
// Callbacks run on the reporting goroutine and must not block.
func (m *Monitor) Subscribe(fn func(online bool)) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.subs[id] = fn
	return id
}

// Unsubscribe removes a transition callback.
func (m *Monitor) Unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}

// snapshotSubs must be called with mu held.
func (m *Monitor) snapshotSubs() []func(bool) {
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	return subs
}

func (m *Monitor) notify(subs []func(bool), online bool) {
	for _, fn := range subs {
		fn(online)
	}
}
