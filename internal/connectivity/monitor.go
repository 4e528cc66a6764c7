// Package connectivity exposes a process-wide network reachability signal
// with transition notifications.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Prober answers a single reachability question. Implementations must treat
// their own failure as "not connected", never as a reportable error.
type Prober interface {
	Probe(ctx context.Context) bool
}

// HTTPProber probes by issuing a HEAD request against a fixed URL. Any
// response at all, including an error status, proves the network path; only
// a transport failure means offline.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

// NewHTTPProber creates a prober for the given URL with a short timeout so a
// dead network fails fast instead of hanging the caller.
func NewHTTPProber(url string) *HTTPProber {
	return &HTTPProber{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Probe reports whether the URL is reachable.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Monitor caches the last known reachability state and notifies subscribers
// on transitions only, never on repeated identical probes.
type Monitor struct {
	prober Prober

	mu        sync.Mutex
	online    bool
	nextID    int
	listeners map[int]func(online bool)
}

// NewMonitor creates a monitor that starts out assuming it is online, the
// same optimistic default the rest of the system boots with.
func NewMonitor(prober Prober) *Monitor {
	return &Monitor{
		prober:    prober,
		online:    true,
		listeners: make(map[int]func(online bool)),
	}
}

// Check forces a fresh probe, updates the cached state (notifying on a
// transition) and returns the new value.
func (m *Monitor) Check(ctx context.Context) bool {
	online := m.prober.Probe(ctx)
	m.setOnline(online)
	return online
}

// Online returns the last known state without probing.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers fn for transition notifications and returns its
// deregistration func. Handlers run synchronously in the task that observed
// the transition; a panicking handler is isolated and logged so it cannot
// block delivery to the others.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Monitor) setOnline(online bool) {
	m.mu.Lock()
	if online == m.online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	slog.Info("connectivity changed", "online", online)

	for _, fn := range listeners {
		notify(fn, online)
	}
}

func notify(fn func(bool), online bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("connectivity listener panicked", "panic", r)
		}
	}()
	fn(online)
}
