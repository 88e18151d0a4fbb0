// Package mentrasession is the root of a client-side session engine for
// applications running against a cloud message broker over WebSocket.
//
// The module is organized around one long-lived connection per application
// session:
//
//	┌──────────────────────────────────────┐
//	│            session.Client            │  lifecycle state machine,
//	│  (connect, handshake, reconnect)     │  request correlation
//	└──────────────────────────────────────┘
//	           ↓ parses and fans out via
//	┌──────────────────────────────────────┐
//	│          message (codec)             │  envelopes, sanitizers,
//	│   transport (WebSocket framing)      │  stream re-keying
//	└──────────────────────────────────────┘
//
// Package map:
//   - session: connection lifecycle, subscription registry, message router,
//     pending-request correlator, reconnection, resource tracking
//   - message: wire types, outbound stamping, inbound parsing, per-stream
//     payload sanitizers
//   - transport: the WebSocket connection behind a reopenable interface
//   - config: file and environment configuration
//   - errors: error taxonomy (transient / invalid / fatal)
//   - health, metric: health snapshots and Prometheus metrics
//   - pkg/backoff: exponential backoff policy
//   - cmd/sessionprobe: diagnostic CLI that joins a session and logs
//     everything the broker delivers
package mentrasession
