package rotation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vyrodovalexey/avproxypool/internal/observability"
)

// ErrEmptyPool is returned by Select when the manager was constructed
// with zero descriptors. Callers handle it as "proceed without a
// proxy" or abort; it is the only way Select can fail.
var ErrEmptyPool = errors.New("no proxy available: pool is empty")

// Selection is the result of a successful Select call.
type Selection struct {
	// Handle identifies the pool entry the URI was derived from. It
	// is the preferred way to report an outcome back to the Manager.
	Handle int `json:"handle"`

	// URI is the formatted proxy URI, identical for http and https
	// outbound traffic.
	URI string `json:"uri"`

	// Timeout is the descriptor's advisory connection timeout for the
	// caller's HTTP client.
	Timeout time.Duration `json:"timeout"`
}

// ProxyURLs returns the selection URI keyed by outbound scheme, in
// the shape HTTP clients expect for proxy configuration. Both keys
// carry the identical URI.
func (s Selection) ProxyURLs() map[string]string {
	return map[string]string{
		"http":  s.URI,
		"https": s.URI,
	}
}

// Stats is a point-in-time snapshot of pool state. All maps are
// copies; mutating them does not affect the Manager.
type Stats struct {
	Total         int               `json:"total"`
	Healthy       int               `json:"healthy"`
	Unhealthy     int               `json:"unhealthy"`
	FailureCounts map[int]int       `json:"failureCounts"`
	LastUsed      map[int]time.Time `json:"lastUsed"`
}

// Manager owns all mutable rotation state: the cursor, per-entry
// failure counters, and per-entry last-used stamps. A single mutex
// guards the whole of it; every operation holds the lock for its
// entire body and performs no I/O inside the critical section.
type Manager struct {
	descriptors []Descriptor
	uris        []string

	mu       sync.Mutex
	failures []int
	lastUsed []time.Time
	cursor   int

	cooldown time.Duration
	now      func() time.Time
	logger   observability.Logger
	metrics  *observability.Metrics
}

// ManagerOption is a functional option for configuring a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for diagnostic observations.
func WithLogger(logger observability.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics sink for selection and report events.
func WithMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithCooldown overrides the minimum inter-use interval per proxy.
func WithCooldown(cooldown time.Duration) ManagerOption {
	return func(m *Manager) {
		m.cooldown = cooldown
	}
}

// WithClock overrides the clock used for cooldown decisions. Tests
// use this to step through sub-second windows without sleeping.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager from an ordered list of descriptors.
// Descriptors are validated eagerly after defaulting; a malformed
// entry fails construction rather than surfacing later as a
// degenerate URI. An empty list is legal and yields a manager whose
// Select always returns ErrEmptyPool.
func NewManager(descriptors []Descriptor, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		descriptors: make([]Descriptor, 0, len(descriptors)),
		uris:        make([]string, 0, len(descriptors)),
		failures:    make([]int, len(descriptors)),
		lastUsed:    make([]time.Time, len(descriptors)),
		cooldown:    DefaultCooldown,
		now:         time.Now,
		logger:      observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(m)
	}

	for i, d := range descriptors {
		d = d.withDefaults()
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("proxy %d: %w", i, err)
		}
		m.descriptors = append(m.descriptors, d)
		// The formatter is deterministic over immutable descriptors,
		// so the URI each entry will ever produce is fixed here.
		m.uris = append(m.uris, FormatURI(d))
	}

	if m.metrics != nil {
		m.metrics.SetPoolSize(len(m.descriptors))
		m.metrics.SetHealthyProxies(len(m.descriptors))
	}

	return m, nil
}

// Size returns the fixed pool size.
func (m *Manager) Size() int {
	return len(m.descriptors)
}

// Select returns the next usable proxy.
//
// Up to poolSize candidates are examined starting at the cursor;
// unhealthy and cooling-down entries are skipped, and the cursor
// advances past every examined candidate. When the whole pool is
// rejected, every failure counter is zeroed (cooldown stamps are
// untouched) and entry zero is returned unconditionally, so a
// nonempty pool never starves.
func (m *Manager) Select() (Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.descriptors)
	if n == 0 {
		if m.metrics != nil {
			m.metrics.RecordSelection(observability.SelectionEmptyPool)
		}
		return Selection{}, ErrEmptyPool
	}

	now := m.now()
	for attempt := 0; attempt < n; attempt++ {
		idx := m.cursor
		m.cursor = (m.cursor + 1) % n

		if m.failures[idx] >= m.descriptors[idx].FailureThreshold {
			continue
		}
		if now.Sub(m.lastUsed[idx]) < m.cooldown {
			continue
		}

		m.lastUsed[idx] = now
		if m.metrics != nil {
			m.metrics.RecordSelection(observability.SelectionSelected)
		}
		return m.selectionLocked(idx), nil
	}

	// Every candidate was unhealthy or cooling down: reset all
	// failure counters and fall back to entry zero.
	for i := range m.failures {
		m.failures[i] = 0
	}
	m.lastUsed[0] = now

	m.logger.Warn("proxy pool exhausted, failure counters reset",
		observability.Int("pool_size", n),
	)
	if m.metrics != nil {
		m.metrics.RecordReset()
		m.metrics.RecordSelection(observability.SelectionResetFallback)
		m.metrics.SetHealthyProxies(n)
	}

	return m.selectionLocked(0), nil
}

// Report records the outcome of a request issued through sel,
// matching the pool entry by handle. Handles outside the pool are
// ignored.
func (m *Manager) Report(sel Selection, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sel.Handle < 0 || sel.Handle >= len(m.descriptors) {
		m.reportUnmatchedLocked(sel.URI)
		return
	}
	m.reportLocked(sel.Handle, success)
}

// ReportFailure increments the failure counter of the pool entry
// whose formatted URI equals uri. A URI that matches no entry is
// silently ignored: the manager cannot distinguish a stale or foreign
// URI from formatting drift, so the violation is not surfaced.
func (m *Manager) ReportFailure(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOfLocked(uri)
	if idx < 0 {
		m.reportUnmatchedLocked(uri)
		return
	}
	m.reportLocked(idx, false)
}

// ReportSuccess zeroes the failure counter of the pool entry whose
// formatted URI equals uri. Unmatched URIs are silently ignored.
func (m *Manager) ReportSuccess(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOfLocked(uri)
	if idx < 0 {
		m.reportUnmatchedLocked(uri)
		return
	}
	m.reportLocked(idx, true)
}

// Stats returns a snapshot of the pool state. The returned maps are
// copies keyed by pool index.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		Total:         len(m.descriptors),
		FailureCounts: make(map[int]int, len(m.descriptors)),
		LastUsed:      make(map[int]time.Time, len(m.descriptors)),
	}

	for i := range m.descriptors {
		stats.FailureCounts[i] = m.failures[i]
		stats.LastUsed[i] = m.lastUsed[i]
		if m.failures[i] < m.descriptors[i].FailureThreshold {
			stats.Healthy++
		} else {
			stats.Unhealthy++
		}
	}

	return stats
}

// reportLocked mutates the failure counter for idx. Callers must hold
// the lock.
func (m *Manager) reportLocked(idx int, success bool) {
	d := m.descriptors[idx]

	if success {
		if m.failures[idx] > 0 {
			m.logger.Info("proxy recovered, failure counter reset",
				observability.Int("proxy", idx),
				observability.Int("failures", m.failures[idx]),
			)
			m.failures[idx] = 0
		}
		if m.metrics != nil {
			m.metrics.RecordReport(observability.ReportSuccess)
			m.metrics.SetProxyFailures(idx, 0)
			m.metrics.SetHealthyProxies(m.healthyLocked())
		}
		return
	}

	// Counters saturate nowhere: being at or above the threshold is
	// what makes an entry unhealthy, not hitting it exactly.
	m.failures[idx]++
	m.logger.Warn("proxy reported failed",
		observability.Int("proxy", idx),
		observability.Int("failures", m.failures[idx]),
		observability.Int("threshold", d.FailureThreshold),
	)
	if m.metrics != nil {
		m.metrics.RecordReport(observability.ReportFailure)
		m.metrics.SetProxyFailures(idx, m.failures[idx])
		m.metrics.SetHealthyProxies(m.healthyLocked())
	}
}

// reportUnmatchedLocked records a report that matched no pool entry.
func (m *Manager) reportUnmatchedLocked(uri string) {
	m.logger.Debug("report ignored: URI matches no pool entry",
		observability.String("uri", uri),
	)
	if m.metrics != nil {
		m.metrics.RecordReport(observability.ReportUnmatched)
	}
}

// indexOfLocked resolves a formatted URI back to its pool index, or
// -1 when no entry matches.
func (m *Manager) indexOfLocked(uri string) int {
	for i, u := range m.uris {
		if u == uri {
			return i
		}
	}
	return -1
}

// healthyLocked counts entries below their failure threshold.
func (m *Manager) healthyLocked() int {
	healthy := 0
	for i := range m.descriptors {
		if m.failures[i] < m.descriptors[i].FailureThreshold {
			healthy++
		}
	}
	return healthy
}

// selectionLocked builds the Selection for a pool index.
func (m *Manager) selectionLocked(idx int) Selection {
	return Selection{
		Handle:  idx,
		URI:     m.uris[idx],
		Timeout: m.descriptors[idx].Timeout,
	}
}
