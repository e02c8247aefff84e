// Package simerr defines the error-kind lattice used across FlockNet, in
// the spirit of the teacher repo's simulator.SimError: a small struct type
// implementing error, constructed through per-kind helpers.
package simerr

import (
	"errors"
	"fmt"
)

// Kind classifies a FlockNet error for exit-code mapping and compare-mode
// continuation decisions.
type Kind int

const (
	// ConfigInvalid marks a bad flag/config combination, caught before init.
	ConfigInvalid Kind = iota
	// Bind marks a port-bind failure after retries are exhausted.
	Bind
	// TransportReset marks a connection that died mid-run and could not be
	// reestablished within the retry budget.
	TransportReset
	// MetricsOverflow marks a saturated metrics event channel; always fatal.
	MetricsOverflow
	// Timeout marks the run exceeding its D+10s watchdog.
	Timeout
	// StrategyUnknown marks an unrecognized strategy name at parse time.
	StrategyUnknown
)

// String renders the Kind for logs and Run-record status fields.
func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "config_invalid"
	case Bind:
		return "bind"
	case TransportReset:
		return "transport_reset"
	case MetricsOverflow:
		return "metrics_overflow"
	case Timeout:
		return "timeout"
	case StrategyUnknown:
		return "strategy_unknown"
	default:
		return "unknown"
	}
}

// Error is FlockNet's structured error type: a Kind, the operation that
// produced it, and an optional wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invalid is a convenience constructor for ConfigInvalid errors.
func Invalid(op, msg string) error {
	return &Error{Kind: ConfigInvalid, Op: op, Err: fmt.Errorf("%s", msg)}
}

// ExitCode maps a Kind to the CLI exit code contract in spec.md §6.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var se *Error
	if errors.As(err, &se) {
		switch se.Kind {
		case ConfigInvalid, StrategyUnknown:
			return 2
		case Timeout:
			return 4
		default:
			return 3
		}
	}
	return 3
}
