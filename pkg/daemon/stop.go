package daemon

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/sirupsen/logrus"
)

// StopFlag asks a running Poller to return after its current cycle.
// It is safe for concurrent use and may only go from unset to set.
// The zero value is ready to use; a nil *StopFlag is never set.
type StopFlag struct {
	set       atomic.Bool
	initOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

func NewStopFlag() *StopFlag {
	return &StopFlag{}
}

func (f *StopFlag) init() {
	f.initOnce.Do(func() { f.done = make(chan struct{}) })
}

// Set raises the flag. Calling it more than once has no further effect.
func (f *StopFlag) Set() {
	f.init()
	f.set.Store(true)
	f.closeOnce.Do(func() { close(f.done) })
}

func (f *StopFlag) IsSet() bool {
	return f != nil && f.set.Load()
}

// Done is closed once the flag is set.
func (f *StopFlag) Done() <-chan struct{} {
	if f == nil {
		return nil
	}
	f.init()
	return f.done
}

// NotifyStop sets f when one of sigs is received (SIGINT and SIGTERM if none
// are given). The returned function stops listening.
func NotifyStop(f *StopFlag, sigs ...os.Signal) (cancel func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, sigs...)

	quit := make(chan struct{})
	go func() {
		select {
		case sig := <-sigc:
			logrus.Infof("caught signal \"%s\": stopping after the current cycle", sig)
			f.Set()
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigc)
			close(quit)
		})
	}
}
