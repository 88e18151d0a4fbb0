// Package transport abstracts the physical connection to the cloud broker.
//
// The session layer owns exactly one Transport and interacts with it only
// through this interface, so the concrete connection object is never aliased
// across reconnects. Closure cleanliness is an explicit boolean supplied by
// the implementation — the session layer never infers it from transport
// specific close codes.
package transport

import "context"

// Events carries the callbacks a Transport invokes as the connection
// progresses. All callbacks are invoked from the transport's read pump, one
// at a time, never concurrently with each other.
type Events struct {
	// OnOpen fires once the physical connection is established.
	OnOpen func()

	// OnMessage fires for every inbound frame. binary distinguishes raw
	// audio frames from textual protocol messages.
	OnMessage func(data []byte, binary bool)

	// OnClose fires exactly once when the connection terminates. clean is
	// true only for closures the transport knows were intentional: a local
	// Close call or a normal-closure frame from the peer. Everything else
	// is abnormal and eligible for reconnection.
	OnClose func(reason string, clean bool)

	// OnError fires for transport-level failures that do not themselves
	// terminate the connection.
	OnError func(err error)
}

// Transport is a reopenable connection to the broker. Open may be called
// again after OnClose has fired; each call establishes a fresh physical
// connection.
type Transport interface {
	// Open establishes the connection and begins delivering events. It
	// returns once the connection is established (OnOpen fires just before
	// Open returns) or with an error if dialing failed.
	Open(ctx context.Context, events Events) error

	// Send transmits a textual protocol frame.
	Send(data []byte) error

	// SendBinary transmits a binary frame.
	SendBinary(data []byte) error

	// Close terminates the connection cleanly. Safe to call when already
	// closed.
	Close() error
}
