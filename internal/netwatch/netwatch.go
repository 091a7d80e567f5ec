// Package netwatch reports network reachability of the challan server
// and emits discrete online/offline transition events.
//
// Reachability is sampled by a pluggable Prober on a fixed interval.
// Consumers get a synchronous Online() read plus a transition event
// channel; an event is emitted exactly once per transition, never per
// sample.
package netwatch

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// State is the observed reachability.
type State int

const (
	// Offline means the last probe could not reach the server.
	Offline State = iota
	// Online means the last probe reached the server.
	Online
)

func (s State) String() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

// Prober answers whether the server is reachable right now.
// Implemented by HTTPProber (production) and fakes (tests).
type Prober interface {
	Probe(ctx context.Context) bool
}

// HTTPProber probes reachability with a HEAD request.
//
// Any HTTP response counts as reachable, including error statuses: the
// server answered, so the network path is up. Only transport failures
// count as unreachable.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// DefaultInterval is the default probe interval.
const DefaultInterval = 10 * time.Second

// Watcher samples a Prober and turns the samples into transitions.
//
// Thread-safety: Online() and Events() are safe from any goroutine;
// Run must be called from exactly one goroutine.
type Watcher struct {
	prober   Prober
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	online bool

	// events is buffered so a slow consumer cannot stall the probe
	// loop; a dropped event is logged and the next transition still
	// reflects current state.
	events chan State
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the probe interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a Watcher over the given prober.
// The watcher starts offline; the first probe establishes real state.
func New(p Prober, opts ...Option) *Watcher {
	w := &Watcher{
		prober:   p,
		interval: DefaultInterval,
		logger:   slog.Default(),
		events:   make(chan State, 16),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Online returns the most recently observed reachability.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Events returns the transition event channel.
// One State value is delivered per transition.
func (w *Watcher) Events() <-chan State {
	return w.events
}

// Check probes once and records the result, emitting a transition
// event if reachability changed. Returns the observed state.
//
// Run calls this on every tick; tests call it directly to step the
// watcher deterministically.
func (w *Watcher) Check(ctx context.Context) State {
	observed := w.prober.Probe(ctx)

	w.mu.Lock()
	changed := observed != w.online
	w.online = observed
	w.mu.Unlock()

	state := Offline
	if observed {
		state = Online
	}

	if changed {
		w.logger.Info("connectivity changed", "state", state.String())
		select {
		case w.events <- state:
		default:
			w.logger.Warn("connectivity event dropped, consumer too slow", "state", state.String())
		}
	}

	return state
}

// Run probes on the configured interval until the context is done.
// An immediate first probe establishes initial state before the first
// tick.
func (w *Watcher) Run(ctx context.Context) error {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}
