package epoch

import (
	"sync"
	"time"
)

const (
	WeekLength = 7 * 24 * time.Hour
	DayLength  = 24 * time.Hour
)

// Schedule anchors week and day arithmetic to the game launch.
type Schedule struct {
	Launch     time.Time
	WeekLength time.Duration
	DayLength  time.Duration
}

func NewSchedule(launch time.Time) Schedule {
	return Schedule{
		Launch:     launch.UTC(),
		WeekLength: WeekLength,
		DayLength:  DayLength,
	}
}

// WeekIndexOf returns floor((t - launch) / weekLength). Times before launch
// belong to week 0.
func (s Schedule) WeekIndexOf(t time.Time) uint64 {
	if t.Before(s.Launch) {
		return 0
	}
	return uint64(t.Sub(s.Launch) / s.WeekLength)
}

func (s Schedule) WeekStart(week uint64) time.Time {
	return s.Launch.Add(time.Duration(week) * s.WeekLength)
}

func (s Schedule) WeekEnd(week uint64) time.Time {
	return s.WeekStart(week + 1)
}

// DayBoundaryFor reports whether a full day window has elapsed since
// lastReset. A player that never reset is always past the boundary.
func (s Schedule) DayBoundaryFor(lastReset, t time.Time) bool {
	if lastReset.IsZero() {
		return true
	}
	return t.Sub(lastReset) >= s.DayLength
}

func (s Schedule) TimeUntilWeekEnd(week uint64, t time.Time) time.Duration {
	return clamp(s.WeekEnd(week).Sub(t))
}

func (s Schedule) TimeUntilDayReset(lastReset, t time.Time) time.Duration {
	if lastReset.IsZero() {
		return 0
	}
	return clamp(lastReset.Add(s.DayLength).Sub(t))
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// Clock is the monotonic time source consumed by the engine.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start.UTC()}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}
