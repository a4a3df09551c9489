// Package errdefs defines the error kinds that abort a poll cycle.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrTableNotFound is returned when no table on the status page contains
	// the expected marker text.
	ErrTableNotFound = errors.New("table not found")
)

// Kind classifies why a cycle failed.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransport means the device or the backend was unreachable or
	// answered with a non-success response.
	KindTransport
	// KindExtraction means the status page did not have the expected layout.
	KindExtraction
	// KindNumeric means a value cell could not be parsed as a number.
	KindNumeric
	// KindConfig means required settings are missing.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "connection"
	case KindExtraction:
		return "extraction"
	case KindNumeric:
		return "numeric"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Stage names the part of the cycle an error came from, so device-side
// failures can be told apart from backend-side ones.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageExtract Stage = "extract"
	StageSink    Stage = "sink"
	StageConfig  Stage = "config"
)

// Error is the typed error returned by the extraction core and the sinks.
type Error struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(stage Stage, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Stage: stage, Kind: kind, Err: err}
}

// Transport wraps err as a connection failure at the given stage.
func Transport(stage Stage, err error) error {
	return newError(stage, KindTransport, err)
}

// Extraction wraps err as a page layout failure.
func Extraction(err error) error {
	return newError(StageExtract, KindExtraction, err)
}

// Numeric wraps err as a value parsing failure.
func Numeric(err error) error {
	return newError(StageExtract, KindNumeric, err)
}

// Config wraps err as a configuration failure.
func Config(err error) error {
	return newError(StageConfig, KindConfig, err)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StageOf returns the Stage of the first *Error in err's chain, or "".
func StageOf(err error) Stage {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}

func IsTransport(err error) bool  { return KindOf(err) == KindTransport }
func IsExtraction(err error) bool { return KindOf(err) == KindExtraction }
func IsNumeric(err error) bool    { return KindOf(err) == KindNumeric }
func IsConfig(err error) bool     { return KindOf(err) == KindConfig }
