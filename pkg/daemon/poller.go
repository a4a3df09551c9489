package daemon

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ess-reader/ess-reader/pkg/errdefs"
	"github.com/ess-reader/ess-reader/pkg/sink"
	"github.com/ess-reader/ess-reader/pkg/types"
)

// DefaultInterval is the pause between two poll cycles.
const DefaultInterval = 15 * time.Second

// Assembler produces one reading from the device.
type Assembler interface {
	Assemble(ctx context.Context) (types.Reading, error)
}

// Poller drives fetch, parse and forward cycles.
type Poller struct {
	Assembler Assembler
	Sink      sink.Sink
	// Interval defaults to DefaultInterval.
	Interval time.Duration
	// Stop is checked once per iteration, after the sleep.
	Stop *StopFlag
	// Sleep waits between cycles. The default returns early when Stop is set.
	Sleep func(time.Duration)
	// OnCycle, if set, is called after every cycle.
	OnCycle func(r types.Reading, err error)
}

// Once runs exactly one cycle.
func (p *Poller) Once(ctx context.Context) error {
	return p.cycle(ctx)
}

// Run runs one cycle, then keeps running cycles every Interval until the stop
// flag is found set (nil is returned) or a cycle fails (its error is
// returned). A cycle in progress is never interrupted.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	logrus.WithField("interval", interval).Info("poll loop started")

	if err := p.cycle(ctx); err != nil {
		return err
	}
	for {
		p.sleep(interval)
		if p.Stop.IsSet() {
			logrus.Info("stop requested, poll loop exiting")
			return nil
		}
		if err := p.cycle(ctx); err != nil {
			return err
		}
	}
}

func (p *Poller) sleep(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.Stop.Done():
	}
}

func (p *Poller) cycle(ctx context.Context) (err error) {
	// Cancellation is only observed between cycles.
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	var r types.Reading
	defer func() {
		if p.OnCycle != nil {
			p.OnCycle(r, err)
		}
	}()

	r, err = p.Assembler.Assemble(ctx)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"stage": errdefs.StageOf(err),
			"kind":  errdefs.KindOf(err),
		}).Errorf("failed to read ESS: %v", err)
		return err
	}

	if err = p.Sink.Send(ctx, r); err != nil {
		logrus.WithFields(logrus.Fields{
			"stage": errdefs.StageOf(err),
			"kind":  errdefs.KindOf(err),
		}).Errorf("failed to forward reading: %v", err)
		return err
	}

	logrus.WithFields(logrus.Fields{
		"filled":   r.Battery.Filled,
		"pv":       r.Battery.PV,
		"load":     r.Battery.Load,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("cycle complete")
	return nil
}
