package jt9decode

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// simClock moves time forward only when somebody waits.
type simClock struct {
	mu      sync.Mutex
	now     time.Time
	onAfter func(now time.Time)
}

func newSimClock() *simClock {
	return &simClock{now: time.Date(2026, 10, 17, 12, 0, 1, 234e6, time.UTC)} //nolint:exhaustruct
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *simClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)

	return c.now
}

func (c *simClock) After(d time.Duration) <-chan time.Time {
	var now = c.Advance(d)

	c.mu.Lock()
	var hook = c.onAfter
	c.mu.Unlock()

	if hook != nil {
		hook(now)
	}

	var ch = make(chan time.Time, 1)
	ch <- now

	return ch
}

func Test_UntilNextBoundary(t *testing.T) {
	var at = time.Date(2026, 10, 17, 12, 0, 1, 234e6, time.UTC)

	assert.Equal(t, 13766*time.Millisecond, UntilNextBoundary(at, ModeFT8.Cycle()))
	assert.Equal(t, 2516*time.Millisecond, UntilNextBoundary(at, ModeFT2.Cycle()))

	var exact = time.Date(2026, 10, 17, 12, 0, 15, 0, time.UTC)
	assert.Equal(t, 15*time.Second, UntilNextBoundary(exact, ModeFT8.Cycle()))
}

func Test_UntilNextBoundaryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var mode = rapid.SampledFrom(allModes).Draw(t, "mode")
		var ms = rapid.Int64Range(0, 4_000_000_000_000).Draw(t, "ms")

		var d = UntilNextBoundary(time.UnixMilli(ms), mode.Cycle())

		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, mode.Cycle())
		assert.Zero(t, (ms+d.Milliseconds())%int64(mode.CycleMs))
	})
}

func fullBuffer(mode ModeProfile) *CycleBuffer {
	var b = NewCycleBuffer(mode.WindowSamples())
	b.Write(counter(0, mode.WindowSamples()))

	return b
}

func Test_SchedulerFiresEveryCycle(t *testing.T) {
	for _, mode := range allModes {
		t.Run(mode.Name, func(t *testing.T) {
			var clock = newSimClock()
			var done = make(chan struct{})
			var fires []time.Time

			var sched = &CycleScheduler{Mode: mode, Buffer: fullBuffer(mode), Clock: clock} //nolint:exhaustruct

			var err = sched.Run(context.Background(), done, func(_ context.Context, window []int16, at time.Time) error {
				assert.Len(t, window, mode.WindowSamples())
				fires = append(fires, at)
				if len(fires) == 5 {
					close(done)
				}
				return nil
			})

			require.NoError(t, err)
			require.GreaterOrEqual(t, len(fires), 5)

			for i := 0; i < 5; i++ {
				assert.Zero(t, fires[i].UnixMilli()%int64(mode.CycleMs), "fire %d at %v is not on a boundary", i, fires[i])
				if i > 0 {
					assert.Equal(t, mode.Cycle(), fires[i].Sub(fires[i-1]))
				}
			}
		})
	}
}

func Test_SchedulerSkipsMissedCycles(t *testing.T) {
	var mode = ModeFT2
	var clock = newSimClock()
	var done = make(chan struct{})
	var fires []time.Time

	var sched = &CycleScheduler{Mode: mode, Buffer: fullBuffer(mode), Clock: clock} //nolint:exhaustruct

	var err = sched.Run(context.Background(), done, func(_ context.Context, _ []int16, at time.Time) error {
		fires = append(fires, at)
		if len(fires) == 4 {
			close(done)
		}
		// A slow decode runs past the next boundary.
		clock.Advance(mode.Cycle() * 3 / 2)
		return nil
	})

	require.NoError(t, err)
	require.GreaterOrEqual(t, len(fires), 4)

	for i := 1; i < 4; i++ {
		assert.Equal(t, 2*mode.Cycle(), fires[i].Sub(fires[i-1]), "no catching up on the missed boundary")
	}
}

func Test_SchedulerWaitsForAudio(t *testing.T) {
	var mode = ModeFT4
	var clock = newSimClock()
	var start = clock.Now()
	var buf = NewCycleBuffer(mode.WindowSamples())
	var done = make(chan struct{})
	var arrived time.Time
	var once sync.Once

	clock.onAfter = func(now time.Time) {
		if now.Sub(start) > 3*mode.Cycle() {
			once.Do(func() {
				arrived = now
				buf.Write(counter(0, mode.WindowSamples()))
			})
		}
	}

	var fires []time.Time
	var sched = &CycleScheduler{Mode: mode, Buffer: buf, Clock: clock} //nolint:exhaustruct

	var err = sched.Run(context.Background(), done, func(_ context.Context, _ []int16, at time.Time) error {
		fires = append(fires, at)
		if len(fires) == 1 {
			close(done)
		}
		return nil
	})

	require.NoError(t, err)
	require.NotEmpty(t, fires)
	assert.False(t, fires[0].Before(arrived), "fired before there was a full window")
	assert.Zero(t, fires[0].UnixMilli()%int64(mode.CycleMs))
}

func Test_SchedulerErrors(t *testing.T) {
	var mode = ModeFT2
	var calls = 0

	var sched = &CycleScheduler{Mode: mode, Buffer: fullBuffer(mode), Clock: newSimClock()} //nolint:exhaustruct

	var err = sched.Run(context.Background(), nil, func(_ context.Context, _ []int16, _ time.Time) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: still busy", ErrEngineTimeout)
		}
		return fmt.Errorf("%w: exit status 2", ErrEngineCrashed)
	})

	assert.ErrorIs(t, err, ErrEngineCrashed)
	assert.Equal(t, 3, calls, "timeouts are not the end")
}

func Test_SchedulerCancel(t *testing.T) {
	var ctx, cancel = context.WithCancel(context.Background())
	cancel()

	var sched = &CycleScheduler{Mode: ModeFT8, Buffer: fullBuffer(ModeFT8), Clock: newSimClock()} //nolint:exhaustruct

	var err = sched.Run(ctx, nil, func(context.Context, []int16, time.Time) error {
		return nil
	})

	assert.NoError(t, err)
}
