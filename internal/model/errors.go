package model

import "fmt"

// ErrorKind is the closed taxonomy of failure classes the pipeline
// recognizes, so every subsystem reacts to a failure the same way.
type ErrorKind string

const (
	KindTransient ErrorKind = "Transient" // retry with backoff: NetworkError, RateLimited, gateway 5xx
	KindInvalid   ErrorKind = "Invalid"   // reject signal or config change
	KindFatal     ErrorKind = "Fatal"     // surface to ServiceRegistry
	KindDegraded  ErrorKind = "Degraded"  // continue with reduced functionality
)

// ClassifiedError wraps an underlying error with its ErrorKind, using the
// fmt.Errorf("pkg: action: %w", err) idiom so errors.Is/errors.As keep
// working through the chain.
type ClassifiedError struct {
	Kind   ErrorKind
	Op     string
	Detail string
	Err    error
}

func (e *ClassifiedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Detail)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Classify builds a ClassifiedError.
func Classify(kind ErrorKind, op string, err error) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Op: op, Err: err}
}

// GatewayErrorKind is the closed set of exchange-gateway failure modes.
type GatewayErrorKind string

const (
	NetworkError       GatewayErrorKind = "NetworkError"
	RateLimited        GatewayErrorKind = "RateLimited"
	AuthError          GatewayErrorKind = "AuthError"
	NotFound           GatewayErrorKind = "NotFound"
	RejectedByExchange GatewayErrorKind = "RejectedByExchange"
)

// GatewayError is returned by every ExchangeGateway operation that fails.
type GatewayError struct {
	Kind    GatewayErrorKind
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Retryable reports whether this gateway error should be retried with
// backoff rather than surfaced as a rejection.
func (e *GatewayError) Retryable() bool {
	return e.Kind == NetworkError || e.Kind == RateLimited
}

// ErrorKindOf classifies a gateway error into the broader ErrorKind taxonomy.
func ErrorKindOf(gerr *GatewayError) ErrorKind {
	switch gerr.Kind {
	case NetworkError, RateLimited:
		return KindTransient
	case AuthError:
		return KindFatal
	case NotFound, RejectedByExchange:
		return KindInvalid
	default:
		return KindInvalid
	}
}
