// Package tick drives the single authoritative simulation thread: exactly
// one tick per 50ms of wall time, with pre-tick I/O and background work
// (the content and region loaders, the task queue) free to proceed on
// other goroutines in parallel.
package tick

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Interval is the fixed tick cadence this core targets, mirroring the
// usual 20-ticks-per-second simulation rate.
const Interval = 50 * time.Millisecond

const (
	tpsSampleSize    = 20
	tpsWarnThreshold = 19.0
)

// Observer receives tick timing samples as they happen. A Scheduler works
// with a nil Observer; it is how the metrics collector watches tick health
// without Scheduler needing to know Prometheus exists.
type Observer interface {
	ObserveTickDuration(time.Duration)
	ObserveOverrun()
	ObserveTPS(float64)
}

// Scheduler owns the tick loop's timing: desired-start drift correction,
// rolling TPS measurement, and graceful shutdown. It knows nothing about
// what a tick does -- Run's callback does that.
type Scheduler struct {
	Log      *slog.Logger
	Interval time.Duration
	Observer Observer

	tps      atomic.Uint64
	done     chan struct{}
	stopOnce sync.Once
}

// NewScheduler returns a Scheduler at the standard cadence.
func NewScheduler(log *slog.Logger) *Scheduler {
	return &Scheduler{Log: log, Interval: Interval, done: make(chan struct{})}
}

// TPS returns the most recently measured ticks-per-second, averaged over
// the last tpsSampleSize ticks. Zero until the first sample completes.
func (s *Scheduler) TPS() float64 { return math.Float64frombits(s.tps.Load()) }

// Stop signals Run to return after its current tick and any in-progress
// sleep. Safe to call any number of times, from any goroutine.
func (s *Scheduler) Stop() { s.stopOnce.Do(func() { close(s.done) }) }

// Run drives runTick exactly once per Interval of wall time until Stop is
// called. runTick is handed the scheduled start of the tick (not the
// actual wall-clock time Run happened to call it at): the algorithm never
// lets runTick discover it is behind schedule and compensate by shortening
// its own work, since that is exactly the "catch up with rapid-fire
// ticks" behaviour the design forbids.
//
// On overrun, the next desired start resets to now() rather than staying
// pinned to the old cadence -- a long GC pause or a slow chunk load is
// absorbed once, not amortized across a burst of back-to-back ticks.
func (s *Scheduler) Run(runTick func(tickStart time.Time)) {
	desiredStart := time.Now()
	var (
		durationSum time.Duration
		samples     int
		warned      bool
		lastStart   time.Time
	)
	for {
		select {
		case <-s.done:
			return
		default:
		}

		tickWallStart := time.Now()
		runTick(desiredStart)
		elapsed := time.Since(tickWallStart)
		if s.Observer != nil {
			s.Observer.ObserveTickDuration(elapsed)
		}

		// TPS is sampled from the wall time between consecutive tick
		// starts, not from how long each tick's work took.
		if !lastStart.IsZero() {
			durationSum += tickWallStart.Sub(lastStart)
			samples++
		}
		lastStart = tickWallStart
		if samples >= tpsSampleSize {
			if avg := durationSum / time.Duration(samples); avg > 0 {
				tps := float64(time.Second) / float64(avg)
				s.tps.Store(math.Float64bits(tps))
				if s.Observer != nil {
					s.Observer.ObserveTPS(tps)
				}
				if tps < tpsWarnThreshold {
					if !warned {
						s.Log.Warn("tick rate dropped below threshold", "tps", tps)
						warned = true
					}
				} else {
					warned = false
				}
			}
			durationSum = 0
			samples = 0
		}

		nextDesired := desiredStart.Add(s.Interval)
		now := time.Now()
		if now.After(nextDesired) {
			s.Log.Warn("tick overran its budget", "over_by", now.Sub(nextDesired))
			nextDesired = now
			if s.Observer != nil {
				s.Observer.ObserveOverrun()
			}
		}
		sleepUntil(nextDesired, s.done)
		desiredStart = nextDesired
	}
}

// sleepUntil blocks until target or until done closes, whichever comes
// first. Go's runtime timers do not wake spuriously the way a condvar
// wait can, so a single timer suffices; the select only exists to make
// Stop interrupt an in-progress sleep.
func sleepUntil(target time.Time, done <-chan struct{}) {
	d := time.Until(target)
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-done:
	}
}
