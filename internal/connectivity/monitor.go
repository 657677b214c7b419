// Package connectivity tracks whether the remote API is reachable and
// triggers a queue drain when it comes back.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"news_offline/internal/config"
	"news_offline/internal/metrics"
)

type Prober interface {
	Probe(ctx context.Context) error
}

// Monitor holds the current connectivity state. Online never blocks. An
// offline to online transition runs the OnOnline trigger once the state has
// held for the debounce window; flapping inside the window re-arms it, so a
// burst of transitions yields a single trigger.
type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	debounce time.Duration
	logger   *slog.Logger

	online atomic.Bool

	mu       sync.Mutex
	base     context.Context
	trigger  func(ctx context.Context)
	timer    *time.Timer
	gen      uint64
	inflight sync.WaitGroup
}

// New returns a monitor that starts out online.
func New(prober Prober, cfg config.ConnectivityConfig, logger *slog.Logger) *Monitor {
	m := &Monitor{
		prober:   prober,
		interval: cfg.ProbeInterval,
		timeout:  cfg.ProbeTimeout,
		debounce: cfg.Debounce,
		logger:   logger.With("component", "connectivity"),
		base:     context.Background(),
	}
	m.online.Store(true)
	metrics.SetOnline(true)
	return m
}

// OnOnline registers the function run after each debounced reconnect.
func (m *Monitor) OnOnline(fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trigger = fn
}

func (m *Monitor) Online() bool {
	return m.online.Load()
}

// SetOnline records a connectivity signal.
func (m *Monitor) SetOnline(online bool) {
	if m.online.Swap(online) == online {
		return
	}
	metrics.SetOnline(online)
	m.logger.Info("connectivity changed", "online", online)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if !online {
		return
	}

	gen := m.gen
	m.timer = time.AfterFunc(m.debounce, func() { m.fire(gen) })
}

func (m *Monitor) fire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.trigger == nil || !m.online.Load() {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	trigger, ctx := m.trigger, m.base
	m.inflight.Add(1)
	m.mu.Unlock()

	defer m.inflight.Done()
	m.logger.Debug("reconnected, running trigger")
	trigger(ctx)
}

// Check probes the remote once and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.prober.Probe(pctx)
	if err != nil && ctx.Err() != nil {
		return m.Online()
	}
	if err != nil {
		m.logger.Debug("probe failed", "error", err)
	}
	m.SetOnline(err == nil)
	return err == nil
}

// Run probes on every interval until ctx is done, then waits for a running
// trigger to return.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	m.base = ctx
	m.mu.Unlock()
	defer m.Stop()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("connectivity monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Stop cancels a pending trigger and waits for a running one.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	m.inflight.Wait()
}
