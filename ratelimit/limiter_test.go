package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taglme/console/internal/util"
	"github.com/taglme/console/license"
)

// mockClock allows controlling time in tests
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(now time.Time) *mockClock {
	return &mockClock{now: now}
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

var epoch = time.Unix(0, 0)

func at(ms int64) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

func TestLimiter_NilConfigAllows(t *testing.T) {
	l := NewLimiter()
	for i := 0; i < 100; i++ {
		l.Record(at(0))
	}
	assert.True(t, l.Check(nil, at(0)).OK)
}

// Given min interval 1000ms and last submission at t=5000
// When checking at t=5400
// Then blocked with 600ms wait
func TestLimiter_MinInterval(t *testing.T) {
	cfg := &license.RateLimit{MinIntervalMs: util.Ptr[int64](1000)}
	l := NewLimiter()

	assert.True(t, l.Check(cfg, at(5000)).OK, "no prior submission")
	l.Record(at(5000))

	d := l.Check(cfg, at(5400))
	assert.False(t, d.OK)
	assert.Equal(t, ReasonMinInterval, d.Reason)
	assert.Equal(t, 600*time.Millisecond, d.Wait)

	assert.True(t, l.Check(cfg, at(6000)).OK)
}

// Given window 10000ms with max 2 and submissions at 1000 and 4000
// When checking at 9000 then 11001
// Then blocked with 2000ms wait, then allowed
func TestLimiter_Window(t *testing.T) {
	cfg := &license.RateLimit{WindowMs: util.Ptr[int64](10000), MaxInWindow: util.Ptr[int64](2)}
	l := NewLimiter()
	l.Record(at(1000))
	l.Record(at(4000))

	d := l.Check(cfg, at(9000))
	assert.False(t, d.OK)
	assert.Equal(t, ReasonWindow, d.Reason)
	assert.Equal(t, 2000*time.Millisecond, d.Wait)

	assert.True(t, l.Check(cfg, at(11001)).OK)
}

func TestLimiter_MinIntervalBoundary(t *testing.T) {
	cfg := &license.RateLimit{MinIntervalMs: util.Ptr[int64](500)}
	l := NewLimiter()
	l.Record(at(0))

	d := l.Check(cfg, at(499))
	assert.False(t, d.OK)
	assert.Equal(t, ReasonMinInterval, d.Reason)
	assert.Equal(t, time.Millisecond, d.Wait)

	assert.True(t, l.Check(cfg, at(500)).OK)
}

func TestLimiter_WindowPrunesOldest(t *testing.T) {
	cfg := &license.RateLimit{WindowMs: util.Ptr[int64](1000), MaxInWindow: util.Ptr[int64](2)}
	l := NewLimiter()
	l.Record(at(0))
	l.Record(at(100))

	d := l.Check(cfg, at(500))
	assert.False(t, d.OK)
	assert.Equal(t, ReasonWindow, d.Reason)
	assert.Equal(t, 500*time.Millisecond, d.Wait)

	assert.True(t, l.Check(cfg, at(1100)).OK)
}

func TestLimiter_WindowBoundaryExpires(t *testing.T) {
	cfg := &license.RateLimit{WindowMs: util.Ptr[int64](1000), MaxInWindow: util.Ptr[int64](1)}
	l := NewLimiter()
	l.Record(at(0))

	assert.False(t, l.Check(cfg, at(999)).OK)
	assert.True(t, l.Check(cfg, at(1000)).OK, "entry exactly at the cutoff is pruned")
}

func TestLimiter_MinIntervalCheckedFirst(t *testing.T) {
	cfg := &license.RateLimit{
		MinIntervalMs: util.Ptr[int64](500),
		WindowMs:      util.Ptr[int64](10000),
		MaxInWindow:   util.Ptr[int64](1),
	}
	l := NewLimiter()
	l.Record(at(0))

	d := l.Check(cfg, at(100))
	assert.Equal(t, ReasonMinInterval, d.Reason)
	assert.Equal(t, 400*time.Millisecond, d.Wait)

	d = l.Check(cfg, at(600))
	assert.Equal(t, ReasonWindow, d.Reason)
	assert.Equal(t, 9400*time.Millisecond, d.Wait)
}

func TestLimiter_PartialWindowConfigIgnored(t *testing.T) {
	l := NewLimiter()
	l.Record(at(0))
	l.Record(at(1))

	assert.True(t, l.Check(&license.RateLimit{WindowMs: util.Ptr[int64](1000)}, at(2)).OK)
	assert.True(t, l.Check(&license.RateLimit{MaxInWindow: util.Ptr[int64](1)}, at(2)).OK)
	assert.True(t, l.Check(&license.RateLimit{WindowMs: util.Ptr[int64](1000), MaxInWindow: util.Ptr[int64](0)}, at(2)).OK)
}

func TestLimiter_CheckDoesNotRecord(t *testing.T) {
	cfg := &license.RateLimit{WindowMs: util.Ptr[int64](1000), MaxInWindow: util.Ptr[int64](1)}
	l := NewLimiter()
	for i := 0; i < 5; i++ {
		require.True(t, l.Check(cfg, at(int64(i))).OK)
	}
}

func TestLimiter_CheckPrunesWindow(t *testing.T) {
	cfg := &license.RateLimit{WindowMs: util.Ptr[int64](1000), MaxInWindow: util.Ptr[int64](10)}
	l := NewLimiter()
	l.Record(at(0))
	l.Record(at(500))
	l.Record(at(1500))

	l.Check(cfg, at(1600))
	l.mu.Lock()
	defer l.mu.Unlock()
	require.Len(t, l.submissions, 1)
	assert.Equal(t, at(1500), l.submissions[0])
}

func TestLimiter_ClockAndReset(t *testing.T) {
	cfg := &license.RateLimit{MinIntervalMs: util.Ptr[int64](1000), WindowMs: util.Ptr[int64](60000), MaxInWindow: util.Ptr[int64](2)}
	clock := newMockClock(at(0))
	l := NewLimiterWithClock(clock.Now)

	l.RecordNow()
	clock.Advance(200 * time.Millisecond)
	assert.Equal(t, 800*time.Millisecond, l.CheckNow(cfg).Wait)

	clock.Advance(time.Second)
	l.RecordNow()
	inWindow, remaining := l.Stats(cfg, clock.Now())
	assert.Equal(t, 2, inWindow)
	assert.Equal(t, 0, remaining)

	l.Reset()
	assert.True(t, l.CheckNow(cfg).OK)
	inWindow, remaining = l.Stats(cfg, clock.Now())
	assert.Equal(t, 0, inWindow)
	assert.Equal(t, 2, remaining)
}

func TestLimiter_StatsWithoutWindow(t *testing.T) {
	l := NewLimiter()
	l.Record(at(0))
	inWindow, remaining := l.Stats(nil, at(0))
	assert.Equal(t, 1, inWindow)
	assert.Equal(t, -1, remaining)
}

func TestLimiter_ConcurrentRecord(t *testing.T) {
	l := NewLimiter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.RecordNow()
			l.CheckNow(&license.RateLimit{WindowMs: util.Ptr[int64](1000), MaxInWindow: util.Ptr[int64](100)})
		}()
	}
	wg.Wait()
	inWindow, _ := l.Stats(&license.RateLimit{WindowMs: util.Ptr[int64](60000), MaxInWindow: util.Ptr[int64](100)}, time.Now())
	assert.Equal(t, 50, inWindow)
}
