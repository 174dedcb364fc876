package utils

import (
	"os"
	"os/signal"
	"syscall"
)

// Trap calls cancel on the first interrupt or SIGTERM. The returned func
// stops trapping.
func Trap(cancel func(os.Signal)) func() {
	c := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-c:
			cancel(sig)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(c)
		close(done)
	}
}
