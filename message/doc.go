// Package message defines the wire contract between a third-party wearable
// application and the cloud broker.
//
// # Envelopes
//
// Every textual frame is a JSON object with a required "type" discriminant.
// Outbound variants embed Envelope; the session layer calls Stamp before
// transmission to fill sessionId, packageName, and timestamp when absent.
// Binary frames are a separate channel carrying raw audio samples and never
// pass through Parse.
//
// # Inbound classification
//
// Parse validates a frame and extracts its discriminant; the router then
// decodes the variant it dispatches on. Messages without a discriminant are
// malformed, and discriminants outside the contract are reported (never
// silently dropped) so wire evolution stays observable.
//
// # Sanitization
//
// Stream payloads pass through Sanitize before reaching application
// callbacks: missing or ill-typed fields are replaced with safe defaults so
// one malformed frame cannot crash handler code. Transcription and
// translation streams are re-keyed by their embedded language fields,
// enabling per-language subscriptions such as "transcription:en-US".
//
// # Internal namespace
//
// Discriminants prefixed "internal:" are local-only. They share the stream
// handler API for lifecycle events (connected, disconnected, error) but are
// refused by the subscription registry and never transmitted.
package message
