package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced clock for tests.
//
// With AutoAdvance set, After moves the clock forward by d and returns an
// already fired channel; the requested durations are recorded and available
// from Waits. AfterFunc timers and tickers only fire on Advance.
type Fake struct {
	mu          sync.Mutex
	now         time.Time
	timers      []*fakeTimer
	waits       []time.Duration
	AutoAdvance bool
}

// NewFake returns a fake clock starting at a fixed instant.
func NewFake() *Fake {
	return &Fake{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	f.mu.Lock()
	f.waits = append(f.waits, d)
	if f.AutoAdvance {
		f.now = f.now.Add(d)
		ch <- f.now
		f.mu.Unlock()
		return ch
	}
	f.timers = append(f.timers, &fakeTimer{f: f, at: f.now.Add(d), ch: ch})
	f.mu.Unlock()
	return ch
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{f: f, at: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{f: f, at: f.now.Add(d), ch: make(chan time.Time, 1), period: d}
	f.timers = append(f.timers, t)
	return fakeTicker{t}
}

// Advance moves the clock forward and fires every timer that became due.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	var due []*fakeTimer
	kept := f.timers[:0]
	for _, t := range f.timers {
		if t.stopped {
			continue
		}
		if !t.at.After(now) {
			due = append(due, t)
			if t.period > 0 {
				t.at = now.Add(t.period)
				kept = append(kept, t)
			} else {
				t.stopped = true
			}
			continue
		}
		kept = append(kept, t)
	}
	f.timers = kept
	f.mu.Unlock()

	for _, t := range due {
		if t.fn != nil {
			t.fn()
			continue
		}
		select {
		case t.ch <- now:
		default:
		}
	}
}

// Waits returns the durations passed to After so far.
func (f *Fake) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.waits...)
}

// Pending returns the number of armed timers and tickers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type fakeTimer struct {
	f       *Fake
	at      time.Time
	ch      chan time.Time
	fn      func()
	period  time.Duration
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeTicker struct{ t *fakeTimer }

func (ft fakeTicker) C() <-chan time.Time { return ft.t.ch }
func (ft fakeTicker) Stop()               { ft.t.Stop() }
