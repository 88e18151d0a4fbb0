package session

import (
	"fmt"

	"github.com/rajeevrajeshuni/MentraOS-sub001/errors"
	"github.com/rajeevrajeshuni/MentraOS-sub001/message"
)

// route is the transport's OnMessage callback: every inbound frame passes
// through here, one at a time. A panicking handler is recovered and surfaced
// as an error event so one bad callback cannot take the read pump down.
func (c *Client) route(data []byte, binary bool) {
	defer func() {
		if r := recover(); r != nil {
			c.emitError(errors.WrapInvalid(
				fmt.Errorf("handler panic: %v", r), "session", "route", "dispatch"), "route")
		}
	}()

	c.mu.Lock()
	c.msgCount++
	c.lastActivity = c.clock()
	c.mu.Unlock()

	if binary {
		c.routeBinary(data)
		return
	}

	inbound, err := message.Parse(data)
	if err != nil {
		c.emitError(err, "route")
		return
	}
	c.metrics.received(inbound.Type)

	switch inbound.Type {
	case message.TypeConnectionAck:
		c.handleConnectionAck(inbound)
	case message.TypeConnectionError:
		c.handleConnectionError(inbound)
	case message.TypeDataStream:
		c.handleDataStream(inbound)
	case message.TypeSettingsUpdate:
		c.handleSettingsUpdate(inbound)
	case message.TypePhotoResponse:
		c.handlePhotoResponse(inbound)
	case message.TypeDirectMessageResponse:
		c.handleDirectMessageResponse(inbound)
	case message.TypeUserDiscoveryResponse:
		c.handleUserDiscoveryResponse(inbound)
	case message.TypeAppStopped:
		c.handleAppStopped(inbound)
	case message.TypePermissionError:
		c.handlePermissionError(inbound)
	case message.TypeAppMessage:
		c.handleAppMessage(inbound, false)
	case message.TypeAppBroadcast:
		c.handleAppMessage(inbound, true)
	default:
		c.emitError(errors.WrapInvalid(errors.ErrUnrecognizedType, "session", "route", inbound.Type), "route")
	}
}

// routeBinary delivers raw audio frames to audio_chunk handlers. Frames
// arriving without an audio subscription are dropped and counted: the broker
// may keep streaming briefly after an unsubscribe.
func (c *Client) routeBinary(data []byte) {
	if !c.registry.Contains(message.StreamAudioChunk) {
		c.metrics.droppedBinary()
		c.logger.Debug("dropping unsubscribed binary frame", "bytes", len(data))
		return
	}
	c.streams.emit(message.StreamAudioChunk, Event{
		Stream: message.StreamAudioChunk,
		Binary: data,
	})
}

// handleConnectionAck completes the handshake: adopt the broker-assigned
// session id, retain the settings snapshot, flush the full subscription set,
// and announce the connection. The flush is unconditional; the broker holds
// no subscription state across connections.
func (c *Client) handleConnectionAck(inbound *message.Inbound) {
	var ack message.ConnectionAck
	if err := inbound.Decode(&ack); err != nil {
		c.failHandshake(err)
		return
	}

	c.mu.Lock()
	if ack.SessionID != "" {
		c.sessionID = ack.SessionID
	}
	if ack.Settings != nil {
		c.settings = ack.Settings
	}
	if ack.Config != nil {
		c.brokerConfig = ack.Config
	}
	c.state = StateConnected
	c.reconnAttempt = 0
	sessionID := c.sessionID
	ch := c.ackWait
	c.ackWait = nil
	c.mu.Unlock()
	c.metrics.setState(StateConnected)

	if ch != nil {
		ch <- nil
	}

	if err := c.flushSubscriptions(); err != nil {
		c.emitError(err, "subscriptions")
	}

	c.logger.Info("session established", "session_id", sessionID)
	c.streams.emit(message.EventConnected, Event{
		Stream:  message.EventConnected,
		Payload: sessionID,
	})
}

// handleConnectionError is a refused handshake. The broker closes the
// connection afterwards; delivering the failure through ackWait keeps the
// follow-up close from scheduling a reconnect.
func (c *Client) handleConnectionError(inbound *message.Inbound) {
	var connErr message.ConnectionError
	if err := inbound.Decode(&connErr); err != nil {
		c.failHandshake(err)
		return
	}
	c.failHandshake(errors.WrapFatal(errors.ErrRequestRejected, "session", "handshake", connErr.Message))
}

// handleDataStream sanitizes the payload and fans it out on the effective
// stream key. A location fix carrying a correlation id answers a pending
// location poll instead of being fanned out.
func (c *Client) handleDataStream(inbound *message.Inbound) {
	var ds message.DataStream
	if err := inbound.Decode(&ds); err != nil {
		c.emitError(err, "route")
		return
	}
	if ds.StreamType == "" {
		c.emitError(errors.WrapInvalid(errors.ErrMalformedInbound, "session", "route", "data_stream without streamType"), "route")
		return
	}

	key, payload := message.Sanitize(ds.StreamType, ds.Data, c.clock())

	if loc, ok := payload.(message.LocationUpdate); ok && loc.RequestID != "" {
		if c.pending.resolve(loc.RequestID, loc) {
			return
		}
	}

	c.streams.emitStream(key, Event{Stream: key, Payload: payload})
}

// handleSettingsUpdate retains the new snapshot, announces it, and
// recomputes derived subscriptions when a mapping is configured.
func (c *Client) handleSettingsUpdate(inbound *message.Inbound) {
	var update message.SettingsUpdate
	if err := inbound.Decode(&update); err != nil {
		c.emitError(err, "route")
		return
	}

	c.mu.Lock()
	c.settings = update.Settings
	c.mu.Unlock()

	c.streams.emit(message.EventSettings, Event{
		Stream:  message.EventSettings,
		Payload: update.Settings,
	})

	if c.settingsSubs == nil {
		return
	}
	derived := c.settingsSubs(update.Settings)
	if c.registry.ReplaceAll(derived) {
		if err := c.flushIfConnected(); err != nil {
			c.emitError(err, "subscriptions")
		}
	}
}

func (c *Client) handlePhotoResponse(inbound *message.Inbound) {
	var resp message.PhotoResponse
	if err := inbound.Decode(&resp); err != nil {
		c.emitError(err, "route")
		return
	}
	if resp.Error != "" {
		if !c.pending.reject(resp.RequestID, errors.WrapTransient(errors.ErrRequestRejected, "session", "photo", resp.Error)) {
			c.logger.Debug("photo_response for unknown request", "request_id", resp.RequestID)
		}
		return
	}
	if !c.pending.resolve(resp.RequestID, resp) {
		c.logger.Debug("photo_response for unknown request", "request_id", resp.RequestID)
	}
}

func (c *Client) handleDirectMessageResponse(inbound *message.Inbound) {
	var resp message.DirectMessageResponse
	if err := inbound.Decode(&resp); err != nil {
		c.emitError(err, "route")
		return
	}
	if !c.pending.resolve(resp.RequestID, resp) {
		c.logger.Debug("direct_message_response for unknown request", "request_id", resp.RequestID)
	}
}

func (c *Client) handleUserDiscoveryResponse(inbound *message.Inbound) {
	var resp message.UserDiscoveryResponse
	if err := inbound.Decode(&resp); err != nil {
		c.emitError(err, "route")
		return
	}
	if !c.pending.resolve(resp.RequestID, resp.Users) {
		c.logger.Debug("user_discovery_response for unknown request", "request_id", resp.RequestID)
	}
}

// handleAppStopped disarms reconnection before the broker closes the
// connection: the follow-up close is a consequence of the stop, not a
// failure. The disconnect event is emitted here, once.
func (c *Client) handleAppStopped(inbound *message.Inbound) {
	var stopped message.AppStopped
	if err := inbound.Decode(&stopped); err != nil {
		c.emitError(err, "route")
		return
	}
	reason := stopped.Reason
	if reason == "" {
		reason = "stopped by broker"
	}

	c.mu.Lock()
	c.appStopped = true
	c.mu.Unlock()

	c.logger.Info("application stopped by broker", "reason", reason)
	c.emitDisconnect(reason, true, false)

	// Close from outside the read pump: the transport's Close joins the
	// pump this handler is running on.
	go func() {
		if err := c.tr.Close(); err != nil {
			c.logger.Warn("closing after app_stopped", "error", err)
		}
	}()
}

// handlePermissionError fans out one event per rejected stream, keyed by
// that stream, then one aggregate event on the permission channel.
func (c *Client) handlePermissionError(inbound *message.Inbound) {
	var perm message.PermissionError
	if err := inbound.Decode(&perm); err != nil {
		c.emitError(err, "route")
		return
	}
	for _, detail := range perm.Details {
		c.logger.Warn("stream rejected for missing permission", "stream", detail.Stream, "message", detail.Message)
		c.streams.emitStream(detail.Stream, Event{
			Stream:  detail.Stream,
			Payload: detail,
		})
	}
	c.streams.emit(message.EventPermissionDenied, Event{
		Stream:  message.EventPermissionDenied,
		Payload: perm,
	})
}

func (c *Client) handleAppMessage(inbound *message.Inbound, broadcast bool) {
	var msg message.AppMessage
	if err := inbound.Decode(&msg); err != nil {
		c.emitError(err, "route")
		return
	}
	c.peers.emit(AppMessageEvent{
		SenderPackage: msg.SenderPackage,
		Payload:       msg.Payload,
		Broadcast:     broadcast,
	})
}
