// Package daemon runs the poll loop and the optional status server.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ess-reader/ess-reader/pkg/config"
	"github.com/ess-reader/ess-reader/pkg/errdefs"
	"github.com/ess-reader/ess-reader/pkg/ess"
	"github.com/ess-reader/ess-reader/pkg/events"
	"github.com/ess-reader/ess-reader/pkg/sink"
	"github.com/ess-reader/ess-reader/pkg/types"
)

const (
	shutdownTimeout = 5 * time.Second
	recordCount     = 60
)

// Options configures Run.
type Options struct {
	Config config.Config
	// Assembler defaults to one reading from the configured device.
	Assembler Assembler
	// Sink defaults to the configured backend.
	Sink sink.Sink
	// Console sinks run before the backend, e.g. to print each reading.
	Console []sink.Sink
	// Listen is the address of the status server; empty disables it.
	Listen   string
	Interval time.Duration
	// Stop defaults to a flag raised by SIGINT and SIGTERM.
	Stop *StopFlag
}

// Run polls continuously until the stop flag is raised or a cycle fails.
func Run(ctx context.Context, opts Options) error {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	if opts.Assembler == nil {
		if err := config.ValidateDevice(opts.Config); err != nil {
			return err
		}
		opts.Assembler = ess.NewAssembler(ess.NewFetcher(opts.Config.IP(), opts.Config.Port()))
	}

	if opts.Sink == nil {
		backend, err := sink.New(opts.Config)
		if err != nil {
			return err
		}
		defer func() {
			if err := sink.Close(backend); err != nil {
				logrus.Warnf("failed to close backend: %v", err)
			}
		}()
		opts.Sink = backend
	}

	if opts.Stop == nil {
		opts.Stop = NewStopFlag()
		cancel := NotifyStop(opts.Stop)
		defer cancel()
	}

	var (
		hub      = events.NewHub()
		recorder = NewCycleRecorder(recordCount)
		latest   = sink.NewLatest(hub)
		metrics  = sink.NewPrometheus()
	)

	sinks := append(sink.Multi{}, opts.Console...)
	sinks = append(sinks, opts.Sink)
	if opts.Listen != "" {
		sinks = append(sinks, metrics, latest)
	}

	poller := &Poller{
		Assembler: opts.Assembler,
		Sink:      sinks,
		Interval:  opts.Interval,
		Stop:      opts.Stop,
		OnCycle: func(_ types.Reading, err error) {
			if err != nil {
				hub.Publish(events.CycleFailed, events.NewCycleFailedEvent(
					string(errdefs.StageOf(err)), errdefs.KindOf(err).String(), err, time.Now()))
				return
			}
			recorder.AddNow()
		},
	}

	if opts.Listen == "" {
		return poller.Run(ctx)
	}

	l, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		return errdefs.Config(err)
	}
	status := NewServer(opts.Config, latest, metrics, hub, recorder, opts.Interval)
	srv := &http.Server{
		Handler:           status.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(status.CloseStreams)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Infof("status server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Let the poll loop finish its cycle and return.
			opts.Stop.Set()
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			logrus.Info("shutting down status server")
			sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				logrus.Errorf("failed to shutdown status server: %v", err)
			}
		}()
		return poller.Run(gctx)
	})

	return g.Wait()
}
