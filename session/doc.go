// Package session implements the client side of the broker session
// protocol: connection lifecycle and handshake, the stream subscription
// registry, inbound message routing with payload sanitization, correlated
// request/response multiplexing, reconnection with exponential backoff, and
// scoped resource tracking.
//
// A Client owns exactly one transport.Transport and is the only writer of
// the connection state machine. Applications interact with it through
// Subscribe/On for pushed streams, the Request* methods for correlated
// round-trips, and OnAppMessage for the separate peer-messaging channel.
package session
