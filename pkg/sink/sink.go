// Package sink forwards readings to the configured backends.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/ess-reader/ess-reader/pkg/config"
	"github.com/ess-reader/ess-reader/pkg/types"
)

// Sink receives one reading per poll cycle. Implementations must not retry
// or buffer: a failed Send is reported to the caller as is.
type Sink interface {
	Send(ctx context.Context, r types.Reading) error
}

// Func adapts a function to a Sink.
type Func func(ctx context.Context, r types.Reading) error

func (f Func) Send(ctx context.Context, r types.Reading) error { return f(ctx, r) }

// Multi sends a reading to every sink in order and stops at the first error.
type Multi []Sink

func (m Multi) Send(ctx context.Context, r types.Reading) error {
	for _, s := range m {
		if err := s.Send(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink that holds a connection.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := Close(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the resources of s if it holds any.
func Close(s Sink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// New builds the backend sink selected by cfg.Backend().
func New(cfg config.Config) (Sink, error) {
	if err := config.ValidateBackend(cfg); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"backend": cfg.Backend(),
	}).Debug("creating backend sink")

	var (
		s   Sink
		err error
	)
	switch cfg.Backend() {
	case config.BackendInflux:
		s, err = NewInflux(cfg.DBHost(), cfg.DB(), cfg.DBUser(), cfg.DBPassword())
	case config.BackendMQTT:
		s, err = NewMQTT(cfg.MQTTBroker(), cfg.MQTTTopic())
	case config.BackendSupabase:
		s, err = NewSupabase(cfg.SupabaseURL(), cfg.SupabaseKey(), cfg.SupabaseSchema())
	default:
		// ValidateBackend rejects everything else.
		err = fmt.Errorf("unsupported backend %q", cfg.Backend())
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
