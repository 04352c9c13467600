package jt9decode

/*------------------------------------------------------------------
 *
 * Purpose:	Decide when to hand a window of audio to the engine.
 *
 * Description:	Cycles are aligned to UTC, not to when we started or when
 *		audio arrived.  An FT8 cycle starts at :00, :15, :30 and :45
 *		past the minute for everybody, so two receivers running the
 *		same mode decode the same windows.
 *
 *		At each boundary we take the last cycle's worth of samples.
 *		If the previous decode is still running when a boundary
 *		passes, that boundary is simply missed.  There is no queue.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
)

// Clock is wall clock time.  Tests substitute a simulated one.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type utcClock struct{}

func (utcClock) Now() time.Time                         { return time.Now().UTC() }
func (utcClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// UntilNextBoundary is the time from now to the start of the next cycle:
// T - (now mod T), in whole milliseconds.  Exactly on a boundary it is a
// full cycle.
func UntilNextBoundary(now time.Time, cycle time.Duration) time.Duration {
	var t = cycle.Milliseconds()
	var ms = now.UnixMilli()

	return time.Duration(t-ms%t) * time.Millisecond
}

// FireFunc receives each window.  It runs on the scheduler goroutine so
// no further boundary is considered until it returns.
type FireFunc func(ctx context.Context, window []int16, at time.Time) error

type CycleScheduler struct {
	Mode         ModeProfile
	Buffer       *CycleBuffer
	Window       int           // Samples per decode, default Mode.WindowSamples().
	PollInterval time.Duration // Recheck interval when audio is short, default 100 ms.
	Clock        Clock         // Default UTC wall clock.

	Logger *log.Logger
}

/*------------------------------------------------------------------
 *
 * Function:	Run
 *
 * Purpose:	Fire once per cycle until told to stop.
 *
 * Inputs:	ctx	- Cancelled to stop early.
 *
 *		done	- Closed when the audio source has ended.
 *
 *		fire	- Called with each window.
 *
 * Returns:	nil when stopped by done or ctx.
 *		A fatal or ErrEngineCrashed error from fire, after which
 *		there is nobody to decode for us.
 *
 *------------------------------------------------------------------*/

func (s *CycleScheduler) Run(ctx context.Context, done <-chan struct{}, fire FireFunc) error {
	var logger = quietLogger(s.Logger)

	var clock = s.Clock
	if clock == nil {
		clock = utcClock{}
	}

	var poll = s.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}

	var window = s.Window
	if window <= 0 {
		window = s.Mode.WindowSamples()
	}

	var cycle = s.Mode.Cycle()
	var cycleMs = cycle.Milliseconds()
	var lastFired int64 = -1

	var sleep = func(d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-done:
			return false
		case <-clock.After(d):
			return true
		}
	}

	logger.Info("Triggering decodes at UTC aligned cycle boundaries",
		"mode", s.Mode.Name, "cycle", cycle, "samples", window)

	for {
		var now = clock.Now()
		var wait = UntilNextBoundary(now, cycle)
		var boundary = (now.UnixMilli() + wait.Milliseconds()) / cycleMs

		logger.Debug("Waiting for cycle boundary", "wait", wait)

		if !sleep(wait) {
			return nil
		}

		if s.Buffer.Total() < int64(window) {
			logger.Debug("Not enough audio for a full window yet", "have", s.Buffer.Total(), "need", window)
			if !sleep(poll) {
				return nil
			}
			continue
		}

		if boundary == lastFired {
			continue
		}
		lastFired = boundary

		var at = clock.Now()
		var samples = s.Buffer.Snapshot(window)

		var err = fire(ctx, samples, at)
		if err == nil {
			continue
		}

		if errors.Is(err, ErrEngineCrashed) || isFatal(err) {
			return err
		}

		logger.Warn("Cycle abandoned", "err", err)
	}
}
