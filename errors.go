package httpdispatch

import (
	"errors"
	"fmt"
)

// ErrCancelled is the terminal error observed by a waiter when its Work was
// cancelled before producing a response.
var ErrCancelled = errors.New("httpdispatch: work cancelled")

// ErrGetOnlyFromCache is returned by Wait when a submission used
// CacheBehaviorGetOnlyFromCache and no usable cache entry existed.
var ErrGetOnlyFromCache = errors.New("httpdispatch: no cached entry and network dispatch was disallowed")

// ErrCyclicDependency is returned by SetDependent when making a Work
// dependent on another would create a dependency cycle.
var ErrCyclicDependency = errors.New("httpdispatch: dependent work would form a cycle")

// TransportErrorKind classifies a failure raised by an Executor so the retry
// policy can decide whether the failure is transient.
type TransportErrorKind int

const (
	// TransportErrorUnknown is the zero value; treated as non-transient.
	TransportErrorUnknown TransportErrorKind = iota
	TransportErrorConnectionRefused
	TransportErrorTimeout
	TransportErrorDNS
	TransportErrorRouteUnreachable
	TransportErrorTLSHandshake
	TransportErrorTLSCertificate
	TransportErrorTLSProtocol
)

func (k TransportErrorKind) String() string {
	switch k {
	case TransportErrorConnectionRefused:
		return "connection_refused"
	case TransportErrorTimeout:
		return "timeout"
	case TransportErrorDNS:
		return "dns"
	case TransportErrorRouteUnreachable:
		return "route_unreachable"
	case TransportErrorTLSHandshake:
		return "tls_handshake"
	case TransportErrorTLSCertificate:
		return "tls_certificate"
	case TransportErrorTLSProtocol:
		return "tls_protocol"
	default:
		return "unknown"
	}
}

// TransportError wraps a failure raised by an Executor while attempting to
// issue a wire call. Kind drives retry eligibility; Cause is the underlying
// error (a *net.OpError, x509 error, etc.)
type TransportError struct {
	Kind  TransportErrorKind
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("httpdispatch: transport error (%s): %v", e.Kind, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// Transient reports whether this error kind is eligible for retry under
// the default retry policy (connection refused, timeout, DNS failure,
// route/port unreachable, TLS handshake errors not rooted in a certificate
// validation failure, and generic TLS protocol errors).
func (e *TransportError) Transient() bool {
	switch e.Kind {
	case TransportErrorConnectionRefused,
		TransportErrorTimeout,
		TransportErrorDNS,
		TransportErrorRouteUnreachable,
		TransportErrorTLSHandshake,
		TransportErrorTLSProtocol:
		return true
	default:
		return false
	}
}

// ProtocolError indicates a malformed URI, a malformed header encountered
// while parsing response directives, or a response that could not be
// serialized for cache writeback.
type ProtocolError struct {
	Message string
	Cause   error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("httpdispatch: protocol error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("httpdispatch: protocol error: %s", e.Message)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// ConfigurationError indicates a missing or mis-typed configuration value.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("httpdispatch: configuration error for %q: %s", e.Key, e.Message)
}

// CacheError is raised by a CacheProvider implementation. The engine logs
// and falls through to the network on a CacheError; it is never fatal to a
// submission.
type CacheError struct {
	Op    string
	Cause error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("httpdispatch: cache error during %s: %v", e.Op, e.Cause)
}

func (e *CacheError) Unwrap() error { return e.Cause }
