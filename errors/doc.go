// Package errors provides standardized error handling patterns for the session engine.
//
// # Overview
//
// The package implements a three-class error classification system: Transient
// (temporary, retryable), Invalid (bad input, non-retryable), and Fatal
// (unrecoverable, stop processing). The classification drives the reconnection
// policy in the session package: abnormal transport failures are transient and
// feed the backoff controller, while exhausted retry budgets surface as the
// fatal ErrPermanentDisconnection.
//
// # Taxonomy
//
// The sentinel variables map one-to-one onto the failure modes of the session
// protocol:
//
//   - ErrConnectionTimeout: handshake acknowledgment did not arrive in time
//   - ErrNotConnected: Send called while the session is not connected
//   - ErrInvalidMessage: outbound message rejected before transmission
//   - ErrTransportFailure: the underlying transport write or dial failed
//   - ErrMalformedInbound: inbound payload empty, unparsable, or missing its type
//   - ErrRequestTimeout: a correlated request saw no reply before its deadline
//   - ErrPermanentDisconnection: reconnection budget exhausted, terminal
//   - ErrUnrecognizedType: inbound discriminant not part of the wire contract
//   - ErrSessionClosed: the session was disposed while work was outstanding
//
// # Wrapping
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// via Wrap, WrapTransient, WrapInvalid, and WrapFatal. Classification is
// preserved through errors.Is/errors.As chains.
package errors
