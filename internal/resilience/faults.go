package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
)

// FaultKind is the normalized classification of an error crossing the
// protocol boundary. Connectors translate protocol-library errors into
// Fault values so this package never depends on protocol types.
type FaultKind int

const (
	// FaultFatal is anything not worth retrying: configuration errors,
	// authentication rejections, programming errors.
	FaultFatal FaultKind = iota
	// FaultTransientIO is a transient network or disk failure.
	FaultTransientIO
	// FaultTimeout is an operation or dial timeout.
	FaultTimeout
	// FaultCancelled is caller-initiated cancellation.
	FaultCancelled
)

// String returns a short label for diagnostics.
func (k FaultKind) String() string {
	switch k {
	case FaultTransientIO:
		return "transient-io"
	case FaultTimeout:
		return "timeout"
	case FaultCancelled:
		return "cancelled"
	default:
		return "fatal"
	}
}

// Fault wraps an error with its normalized kind.
type Fault struct {
	Kind FaultKind
	Err  error
}

func (f *Fault) Error() string {
	return f.Kind.String() + ": " + f.Err.Error()
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// NewFault wraps err with an explicit kind.
func NewFault(kind FaultKind, err error) *Fault {
	return &Fault{Kind: kind, Err: err}
}

// Classify normalizes an error into a FaultKind. Explicit Fault wrappers
// win; otherwise context and net errors are inspected. Unknown errors are
// fatal so that logical failures are never silently retried.
func Classify(err error) FaultKind {
	if err == nil {
		return FaultFatal
	}

	var fault *Fault
	if errors.As(err, &fault) {
		return fault.Kind
	}

	if errors.Is(err, context.Canceled) {
		return FaultCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FaultTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return FaultTimeout
		}
		return FaultTransientIO
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return FaultTransientIO
	}
	if os.IsTimeout(err) {
		return FaultTimeout
	}

	return FaultFatal
}

// Classifier decides whether an error is worth retrying.
type Classifier func(error) bool

// MailConnectivity retries the two fault kinds a socket or protocol
// handshake raises transiently: I/O failures and timeouts. Logical and
// configuration errors are never retried.
func MailConnectivity(err error) bool {
	switch Classify(err) {
	case FaultTransientIO, FaultTimeout:
		return true
	default:
		return false
	}
}

// Standard retries I/O failures, timeouts and cooperative-cancellation
// faults raised inside the operation. Caller-initiated cancellation
// (context.Canceled) is never retried.
func Standard(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch Classify(err) {
	case FaultTransientIO, FaultTimeout, FaultCancelled:
		return true
	default:
		return false
	}
}
