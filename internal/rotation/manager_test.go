package rotation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for cooldown tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
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

func newTestManager(t *testing.T, clock *fakeClock, descriptors ...Descriptor) *Manager {
	t.Helper()

	mgr, err := NewManager(descriptors, WithClock(clock.Now))
	require.NoError(t, err)
	return mgr
}

func TestManager_Select_EmptyPool(t *testing.T) {
	t.Parallel()

	mgr, err := NewManager(nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := mgr.Select()
		assert.ErrorIs(t, err, ErrEmptyPool)
	}
}

func TestManager_Select_RoundRobin(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	mgr := newTestManager(t, clock,
		Descriptor{Endpoint: "10.0.0.1:8080"},
		Descriptor{Endpoint: "10.0.0.2:8080"},
		Descriptor{Endpoint: "10.0.0.3:8080"},
	)

	want := []string{
		"http://10.0.0.1:8080",
		"http://10.0.0.2:8080",
		"http://10.0.0.3:8080",
	}

	for round := 0; round < 3; round++ {
		for i, uri := range want {
			sel, err := mgr.Select()
			require.NoError(t, err)
			assert.Equal(t, uri, sel.URI, "round %d position %d", round, i)
			assert.Equal(t, i, sel.Handle)
		}
		clock.Advance(1100 * time.Millisecond)
	}
}

func TestManager_Select_CooldownSkipsRecentlyUsed(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	mgr := newTestManager(t, clock,
		Descriptor{Endpoint: "10.0.0.1:8080"},
		Descriptor{Endpoint: "10.0.0.2:8080"},
	)

	first, err := mgr.Select()
	require.NoError(t, err)

	// Within the same sub-second window the same proxy is never
	// returned twice in a row while another is healthy.
	second, err := mgr.Select()
	require.NoError(t, err)
	assert.NotEqual(t, first.URI, second.URI)
}

func TestManager_Select_CooldownExpires(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	mgr := newTestManager(t, clock, Descriptor{Endpoint: "10.0.0.1:8080"})

	_, err := mgr.Select()
	require.NoError(t, err)

	clock.Advance(time.Second)

	sel, err := mgr.Select()
	require.NoError(t, err)
	assert.Equal(t, 0, sel.Handle)

	// No reset happened: the entry simply came out of cooldown.
	assert.Equal(t, 0, mgr.Stats().FailureCounts[0])
}

func TestManager_ReportFailure_ExcludesAtThreshold(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	mgr := newTestManager(t, clock,
		Descriptor{Endpoint: "10.0.0.1:8080", FailureThreshold: 2},
		Descriptor{Endpoint: "10.0.0.2:8080"},
	)

	sel, err := mgr.Select()
	require.NoError(t, err)
	require.Equal(t, 0, sel.Handle)

	mgr.ReportFailure(sel.URI)
	stats := mgr.Stats()
	assert.Equal(t, 1, stats.FailureCounts[0])
	assert.Equal(t, 2, stats.Healthy)

	mgr.ReportFailure(sel.URI)
	stats = mgr.Stats()
	assert.Equal(t, 2, stats.FailureCounts[0])
	assert.Equal(t, 1, stats.Healthy)
	assert.Equal(t, 1, stats.Unhealthy)

	// Selection now skips index 0 entirely.
	clock.Advance(2 * time.Second)
	for i := 0; i < 3; i++ {
		sel, err := mgr.Select()
		require.NoError(t, err)
		assert.Equal(t, 1, sel.Handle)
		clock.Advance(2 * time.Second)
	}
}

func TestManager_ReportFailure_CountsPastThreshold(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	mgr := newTestManager(t, clock,
		Descriptor{Endpoint: "10.0.0.1:8080", FailureThreshold: 2},
		Descriptor{Endpoint: "10.0.0.2:8080"},
	)

	uri := "http://10.0.0.1:8080"
	for i := 0; i < 5; i++ {
		mgr.ReportFailure(uri)
	}
	assert.Equal(t, 5, mgr.Stats().FailureCounts[0])
}

func TestManager_ReportSuccess_ResetsCounter(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	mgr := newTestManager(t, clock,
		Descriptor{Endpoint: "10.0.0.1:8080", FailureThreshold: 3},
	)

	uri := "http://10.0.0.1:8080"
	mgr.ReportFailure(uri)
	mgr.ReportFailure(uri)
	require.Equal(t, 2, mgr.Stats().FailureCounts[0])

	mgr.ReportSuccess(uri)
	assert.Equal(t, 0, mgr.Stats().FailureCounts[0])

	// Resetting an already-zero counter is a no-op.
	mgr.ReportSuccess(uri)
	assert.Equal(t, 0, mgr.Stats().FailureCounts[0])
}

func TestManager_Report_ByHandle(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	mgr := newTestManager(t, clock,
		Descriptor{Endpoint: "10.0.0.1:8080"},
		Descriptor{Endpoint: "10.0.0.2:8080"},
	)

	sel, err := mgr.Select()
	require.NoError(t, err)

	mgr.Report(sel, false)
	assert.Equal(t, 1, mgr.Stats().FailureCounts[sel.Handle])

	mgr.Report(sel, true)
	assert.Equal(t, 0, mgr.Stats().FailureCounts[sel.Handle])

	// Handles outside the pool are ignored.
	mgr.Report(Selection{Handle: 99}, false)
	mgr.Report(Selection{Handle: -1}, false)
	stats := mgr.Stats()
	assert.Equal(t, 0, stats.FailureCounts[0])
	assert.Equal(t, 0, stats.FailureCounts[1])
}

func TestManager_Report_UnknownURIIsNoOp(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	mgr := newTestManager(t, clock, Descriptor{Endpoint: "10.0.0.1:8080"})

	mgr.ReportFailure("http://not-in-pool:9999")
	mgr.ReportSuccess("http://not-in-pool:9999")

	stats := mgr.Stats()
	assert.Equal(t, 0, stats.FailureCounts[0])
	assert.Equal(t, 1, stats.Healthy)
}

func TestManager_Select_ExhaustionResetsAndFallsBack(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	mgr := newTestManager(t, clock,
		Descriptor{Endpoint: "10.0.0.1:8080", Username: "a", Password: "b", FailureThreshold: 2},
		Descriptor{Endpoint: "10.0.0.2:8080"},
	)

	first, err := mgr.Select()
	require.NoError(t, err)
	assert.Equal(t, "http://a:b@10.0.0.1:8080", first.URI)
	assert.Equal(t, map[string]string{
		"http":  "http://a:b@10.0.0.1:8080",
		"https": "http://a:b@10.0.0.1:8080",
	}, first.ProxyURLs())

	mgr.ReportFailure(first.URI)
	mgr.ReportFailure(first.URI)
	require.Equal(t, 1, mgr.Stats().Unhealthy)

	clock.Advance(1100 * time.Millisecond)

	second, err := mgr.Select()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:8080", second.URI)

	// Index 0 is unhealthy and index 1 is now cooling down: the next
	// call exhausts the pool, zeroes all failure counters, and falls
	// back to index 0.
	third, err := mgr.Select()
	require.NoError(t, err)
	assert.Equal(t, "http://a:b@10.0.0.1:8080", third.URI)
	assert.Equal(t, 0, third.Handle)

	stats := mgr.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Healthy)
	assert.Equal(t, 0, stats.FailureCounts[0])
	assert.Equal(t, 0, stats.FailureCounts[1])
}

func TestManager_Select_NeverStarves(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	mgr := newTestManager(t, clock,
		Descriptor{Endpoint: "10.0.0.1:8080", FailureThreshold: 1},
		Descriptor{Endpoint: "10.0.0.2:8080", FailureThreshold: 1},
	)

	mgr.ReportFailure("http://10.0.0.1:8080")
	mgr.ReportFailure("http://10.0.0.2:8080")

	// Every call returns a proxy even with the whole pool at its
	// failure threshold and no time passing.
	for i := 0; i < 20; i++ {
		_, err := mgr.Select()
		require.NoError(t, err)
	}
}

func TestManager_Stats_ReturnsCopies(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	mgr := newTestManager(t, clock, Descriptor{Endpoint: "10.0.0.1:8080"})

	stats := mgr.Stats()
	stats.FailureCounts[0] = 42
	stats.LastUsed[0] = clock.Now()

	fresh := mgr.Stats()
	assert.Equal(t, 0, fresh.FailureCounts[0])
	assert.True(t, fresh.LastUsed[0].IsZero())
}

func TestManager_Stats_TracksLastUsed(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	mgr := newTestManager(t, clock,
		Descriptor{Endpoint: "10.0.0.1:8080"},
		Descriptor{Endpoint: "10.0.0.2:8080"},
	)

	sel, err := mgr.Select()
	require.NoError(t, err)
	require.Equal(t, 0, sel.Handle)

	stats := mgr.Stats()
	assert.Equal(t, clock.Now(), stats.LastUsed[0])
	assert.True(t, stats.LastUsed[1].IsZero())
}

func TestManager_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	mgr, err := NewManager([]Descriptor{
		{Endpoint: "10.0.0.1:8080"},
		{Endpoint: "10.0.0.2:8080"},
		{Endpoint: "10.0.0.3:8080"},
	}, WithCooldown(0))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sel, err := mgr.Select()
				if err != nil {
					continue
				}
				if j%2 == 0 {
					mgr.Report(sel, true)
				} else {
					mgr.ReportFailure(sel.URI)
				}
				_ = mgr.Stats()
			}
		}()
	}
	wg.Wait()

	stats := mgr.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Healthy+stats.Unhealthy)
}
