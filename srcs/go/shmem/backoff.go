package shmem

import (
	"fmt"
	"runtime"
	"time"
)

// Backoff paces a polling loop. Pause is called with the number of failed
// polls so far.
type Backoff interface {
	Pause(attempt int)
}

// SpinBackoff busy-polls, yielding the processor every Spins attempts.
type SpinBackoff struct {
	Spins int
}

func (b SpinBackoff) Pause(attempt int) {
	if b.Spins <= 0 || attempt%b.Spins == b.Spins-1 {
		runtime.Gosched()
	}
}

// YieldBackoff yields the processor on every failed poll.
type YieldBackoff struct{}

func (YieldBackoff) Pause(int) {
	runtime.Gosched()
}

// ExpBackoff yields for the first Spins attempts and then sleeps, doubling
// from Min up to Max.
type ExpBackoff struct {
	Spins int
	Min   time.Duration
	Max   time.Duration
}

func (b ExpBackoff) Pause(attempt int) {
	if attempt < b.Spins {
		runtime.Gosched()
		return
	}
	d := b.Min
	for i := b.Spins; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	time.Sleep(d)
}

var DefaultExpBackoff = ExpBackoff{Spins: 64, Min: time.Microsecond, Max: time.Millisecond}

// ParseBackoff accepts spin, yield and exp.
func ParseBackoff(name string) (Backoff, error) {
	switch name {
	case `spin`:
		return SpinBackoff{Spins: 64}, nil
	case `yield`, ``:
		return YieldBackoff{}, nil
	case `exp`:
		return DefaultExpBackoff, nil
	}
	return nil, fmt.Errorf("invalid backoff %q", name)
}
