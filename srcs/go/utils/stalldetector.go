package utils

import (
	"time"
)

// StallDetector reports a wait that outlives its period, once per period,
// and reports the recovery when the wait ends.
type StallDetector struct {
	name   string
	warnf  func(format string, v ...interface{})
	tk     *time.Ticker
	done   chan struct{}
	exited chan struct{}
}

func InstallStallDetector(name string, period time.Duration, warnf func(format string, v ...interface{})) *StallDetector {
	s := &StallDetector{
		name:   name,
		warnf:  warnf,
		tk:     time.NewTicker(period),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go s.watch(time.Now())
	return s
}

func (s *StallDetector) watch(t0 time.Time) {
	defer close(s.exited)
	var stalled bool
	for {
		select {
		case <-s.tk.C:
			stalled = true
			s.warnf("%s stalled for %s", s.name, time.Since(t0))
		case <-s.done:
			if stalled {
				s.warnf("%s recovered after %s", s.name, time.Since(t0))
			}
			return
		}
	}
}

// Stop returns after the last report is written.
func (s *StallDetector) Stop() {
	s.tk.Stop()
	close(s.done)
	<-s.exited
}
