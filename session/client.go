package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rajeevrajeshuni/MentraOS-sub001/errors"
	"github.com/rajeevrajeshuni/MentraOS-sub001/health"
	"github.com/rajeevrajeshuni/MentraOS-sub001/message"
	"github.com/rajeevrajeshuni/MentraOS-sub001/pkg/backoff"
	"github.com/rajeevrajeshuni/MentraOS-sub001/transport"
)

// Default timeouts applied when no option overrides them.
const (
	defaultConnectTimeout = 5 * time.Second
	defaultRequestTimeout = 15 * time.Second
	defaultPhotoTimeout   = 30 * time.Second
)

// Identity names the application to the broker during the handshake.
type Identity struct {
	PackageName string
	APIKey      string
}

// Client is a single broker session: one transport, one subscription set,
// one pending-request table. It owns the connection state machine; all
// mutation of state happens under c.mu and every callback from the transport
// funnels through the handlers in this file and router.go.
type Client struct {
	identity Identity
	tr       transport.Transport
	logger   *slog.Logger
	metrics  *sessionMetrics
	limiter  *rate.Limiter
	clock    func() time.Time

	connectTimeout time.Duration
	requestTimeout time.Duration
	photoTimeout   time.Duration
	autoReconnect  bool
	backoffCfg     backoff.Config
	settingsSubs   func(settings map[string]any) []string

	tracker  *Tracker
	registry *Registry
	pending  *pendingTable
	streams  *emitter
	peers    *appEmitter

	mu            sync.Mutex
	state         ConnectionState
	sessionID     string
	settings      map[string]any
	brokerConfig  map[string]any
	ackWait       chan error
	appStopped    bool
	reconnAttempt int // per-connection: reset on every successful handshake

	// Lifetime counters for Health, surviving reconnects and Disconnect.
	reconnTotal  int
	startTime    time.Time
	lastActivity time.Time
	msgCount     int64
	errorCount   int
}

// NewClient creates a session client over the given transport. The client
// does not connect until Connect is called.
func NewClient(identity Identity, tr transport.Transport, opts ...Option) (*Client, error) {
	if identity.PackageName == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "session", "NewClient", "package name")
	}
	if identity.APIKey == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "session", "NewClient", "api key")
	}
	if tr == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "session", "NewClient", "transport")
	}

	tracker := NewTracker()
	c := &Client{
		identity:       identity,
		tr:             tr,
		logger:         slog.Default(),
		clock:          time.Now,
		connectTimeout: defaultConnectTimeout,
		requestTimeout: defaultRequestTimeout,
		photoTimeout:   defaultPhotoTimeout,
		autoReconnect:  true,
		backoffCfg:     backoff.DefaultConfig(),
		tracker:        tracker,
		pending:        newPendingTable(tracker),
		streams:        newEmitter(),
		peers:          newAppEmitter(),
		state:          StateDisconnected,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.Wrap(err, "session", "NewClient", "apply option")
		}
	}

	c.logger = c.logger.With("component", "session", "package", identity.PackageName)
	c.registry = NewRegistry(c.logger)
	return c, nil
}

// Connect opens the transport, performs the handshake, and waits for the
// broker's acknowledgment. sessionID identifies the user session this app
// joins; it may be empty when the broker assigns one in the ack. Connect
// fails with ErrConnectionTimeout when no ack arrives in time and with
// ErrAlreadyConnected when a session is already live.
func (c *Client) Connect(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	if c.state != StateDisconnected && c.state != StatePermanentlyFailed {
		c.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyConnected, "session", "Connect", "state "+c.state.String())
	}
	c.sessionID = sessionID
	c.state = StateConnecting
	c.appStopped = false
	c.reconnAttempt = 0
	c.startTime = c.clock()
	c.mu.Unlock()
	c.metrics.setState(StateConnecting)

	if err := c.establish(ctx); err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.metrics.setState(StateDisconnected)
		return err
	}
	return nil
}

// establish opens the transport and blocks until the handshake settles. It
// is shared by Connect and the reconnection path; the caller owns the state
// transition on failure.
func (c *Client) establish(ctx context.Context) error {
	ackWait := make(chan error, 1)
	c.mu.Lock()
	c.ackWait = ackWait
	c.mu.Unlock()

	events := transport.Events{
		OnOpen:    c.sendHandshake,
		OnMessage: c.route,
		OnClose:   c.onTransportClose,
		OnError:   c.onTransportError,
	}
	if err := c.tr.Open(ctx, events); err != nil {
		c.mu.Lock()
		c.ackWait = nil
		c.mu.Unlock()
		return errors.WrapTransient(err, "session", "establish", "open transport")
	}

	timer := time.NewTimer(c.connectTimeout)
	defer timer.Stop()

	select {
	case err := <-ackWait:
		if err != nil {
			_ = c.tr.Close()
			return err
		}
		return nil
	case <-timer.C:
		c.clearAckWait()
		_ = c.tr.Close()
		return errors.WrapTransient(errors.ErrConnectionTimeout, "session", "establish",
			fmt.Sprintf("no ack within %s", c.connectTimeout))
	case <-ctx.Done():
		c.clearAckWait()
		_ = c.tr.Close()
		return errors.WrapTransient(ctx.Err(), "session", "establish", "wait for ack")
	}
}

func (c *Client) clearAckWait() {
	c.mu.Lock()
	c.ackWait = nil
	c.mu.Unlock()
}

// sendHandshake transmits connection_init. Runs as the transport's OnOpen
// callback, before any inbound message is delivered.
func (c *Client) sendHandshake() {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()

	init := message.NewConnectionInit(sessionID, c.identity.PackageName, c.identity.APIKey)
	data, err := message.Marshal(init)
	if err == nil {
		data, err = message.Stamp(data, sessionID, c.identity.PackageName, c.clock())
	}
	if err == nil {
		err = c.tr.Send(data)
	}
	if err != nil {
		c.failHandshake(errors.WrapTransient(err, "session", "handshake", "send connection_init"))
		return
	}
	c.metrics.sent(message.TypeConnectionInit)
	c.logger.Debug("handshake sent", "session_id", sessionID)
}

// failHandshake delivers a handshake failure to the waiter in establish, or
// surfaces it as an error event when nothing is waiting.
func (c *Client) failHandshake(err error) {
	c.mu.Lock()
	ch := c.ackWait
	c.ackWait = nil
	c.mu.Unlock()

	if ch != nil {
		ch <- err
		return
	}
	c.emitError(err, "handshake")
}

// onTransportClose is the single place connection termination is classified.
// Cleanliness comes from the transport; the only session-level override is
// the app_stopped flag, which turns the broker's follow-up close into a
// clean one.
func (c *Client) onTransportClose(reason string, clean bool) {
	c.mu.Lock()
	if ch := c.ackWait; ch != nil {
		c.ackWait = nil
		c.mu.Unlock()
		ch <- errors.WrapTransient(errors.ErrTransportFailure, "session", "handshake", "closed before ack: "+reason)
		return
	}

	switch c.state {
	case StateConnected:
		if clean || c.appStopped {
			stopped := c.appStopped
			c.state = StateDisconnected
			c.mu.Unlock()
			c.metrics.setState(StateDisconnected)
			c.logger.Info("connection closed", "reason", reason, "clean", true)
			if !stopped {
				c.emitDisconnect(reason, true, false)
			}
			return
		}
		if !c.autoReconnect {
			c.state = StateDisconnected
			c.mu.Unlock()
			c.metrics.setState(StateDisconnected)
			c.logger.Warn("connection lost, reconnection disabled", "reason", reason)
			c.emitDisconnect(reason, false, true)
			return
		}
		c.state = StateReconnecting
		c.mu.Unlock()
		c.metrics.setState(StateReconnecting)
		c.logger.Warn("connection lost", "reason", reason)
		c.emitDisconnect(reason, false, false)
		c.scheduleReconnect()

	case StateConnecting:
		// establish already observed the failure through ackWait or is
		// about to time out; no event here.
		c.state = StateDisconnected
		c.mu.Unlock()
		c.metrics.setState(StateDisconnected)

	default:
		c.mu.Unlock()
	}
}

func (c *Client) onTransportError(err error) {
	c.emitError(errors.WrapTransient(err, "session", "transport", "read"), "transport")
}

// scheduleReconnect arms the next backoff timer, or gives up with a single
// permanent disconnect event once the attempt budget is spent. Failed
// reopen attempts recurse back here and count toward the same budget.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	attempt := c.reconnAttempt
	if c.backoffCfg.Exhausted(attempt) {
		c.state = StatePermanentlyFailed
		c.mu.Unlock()
		c.metrics.setState(StatePermanentlyFailed)
		err := errors.WrapFatal(errors.ErrPermanentDisconnection, "session", "reconnect",
			fmt.Sprintf("gave up after %d attempts", attempt))
		c.logger.Error("reconnection exhausted", "attempts", attempt)
		c.emitError(err, "reconnect")
		c.emitDisconnect("reconnection attempts exhausted", false, true)
		return
	}
	delay := c.backoffCfg.Delay(attempt)
	c.reconnAttempt++
	c.reconnTotal++
	c.mu.Unlock()

	c.metrics.reconnectScheduled()
	c.logger.Info("scheduling reconnection", "attempt", attempt+1, "delay", delay)
	c.tracker.AfterFunc(delay, c.attemptReconnect)
}

func (c *Client) attemptReconnect() {
	c.mu.Lock()
	if c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	attempt := c.reconnAttempt
	c.mu.Unlock()

	c.logger.Info("reconnecting", "attempt", attempt)
	if err := c.establish(context.Background()); err != nil {
		c.logger.Warn("reconnection attempt failed", "attempt", attempt, "error", err)
		c.scheduleReconnect()
		return
	}
}

// Send stamps and transmits an application-provided protocol frame. The
// frame must be a JSON object with a type discriminant; sessionId,
// packageName, and timestamp are filled in when absent.
func (c *Client) Send(data []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || probe.Type == "" {
		return errors.WrapInvalid(errors.ErrInvalidMessage, "session", "Send", "missing type discriminant")
	}
	return c.sendRaw(probe.Type, data)
}

// sendEnvelope serializes a typed outbound message and transmits it.
func (c *Client) sendEnvelope(msgType string, msg any) error {
	data, err := message.Marshal(msg)
	if err != nil {
		return err
	}
	return c.sendRaw(msgType, data)
}

func (c *Client) sendRaw(msgType string, data []byte) error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return errors.WrapTransient(errors.ErrNotConnected, "session", "send", msgType)
	}
	sessionID := c.sessionID
	c.mu.Unlock()

	// Advisory only: a burst above the limit is logged and counted, never
	// dropped or delayed.
	if c.limiter != nil && !c.limiter.Allow() {
		c.metrics.throttled()
		c.logger.Warn("outbound rate limit exceeded", "type", msgType)
	}

	stamped, err := message.Stamp(data, sessionID, c.identity.PackageName, c.clock())
	if err != nil {
		return err
	}
	if err := c.tr.Send(stamped); err != nil {
		return errors.WrapTransient(err, "session", "send", msgType)
	}
	c.metrics.sent(msgType)
	return nil
}

// Subscribe adds a stream discriminant to the registry and, when connected,
// flushes the full set to the broker. Subscribing while disconnected is
// valid; the set is flushed after the next handshake.
func (c *Client) Subscribe(stream string) error {
	if !c.registry.Add(stream) {
		return nil
	}
	return c.flushIfConnected()
}

// Unsubscribe removes a stream discriminant and flushes when connected.
func (c *Client) Unsubscribe(stream string) error {
	if !c.registry.Remove(stream) {
		return nil
	}
	return c.flushIfConnected()
}

func (c *Client) flushIfConnected() error {
	c.mu.Lock()
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected {
		return nil
	}
	return c.flushSubscriptions()
}

// flushSubscriptions transmits the full current subscription set. Always
// the full set: the broker keeps no per-client diff state.
func (c *Client) flushSubscriptions() error {
	update := message.NewSubscriptionUpdate(c.registry.Snapshot())
	return c.sendEnvelope(message.TypeSubscriptionUpdate, update)
}

// On registers a handler for a stream discriminant or an internal lifecycle
// event and returns its cancel. Handlers for a language-qualified key such
// as "transcription:en-US" see only that language; handlers for the base
// "transcription" key see every language.
func (c *Client) On(stream string, handler Handler) func() {
	return c.streams.on(stream, handler)
}

// OnAppMessage registers a handler on the dedicated peer-messaging channel.
// Peer messages bypass the stream-subscription gate entirely.
func (c *Client) OnAppMessage(handler AppMessageHandler) func() {
	return c.peers.on(handler)
}

// ConnectionState returns the current lifecycle state.
func (c *Client) ConnectionState() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the session identifier, which may have been adopted
// from the broker's ack.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Settings returns a copy of the latest settings snapshot.
func (c *Client) Settings() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.settings))
	for k, v := range c.settings {
		out[k] = v
	}
	return out
}

// Subscriptions returns the current subscription set, sorted.
func (c *Client) Subscriptions() []string {
	return c.registry.Snapshot()
}

// Health reports a point-in-time health snapshot for the session.
func (c *Client) Health() health.Status {
	c.mu.Lock()
	state := c.state
	start := c.startTime
	errCount := c.errorCount
	msgCount := c.msgCount
	reconnTotal := c.reconnTotal
	lastActivity := c.lastActivity
	c.mu.Unlock()

	var uptime time.Duration
	if !start.IsZero() {
		uptime = c.clock().Sub(start)
	}
	metrics := &health.Metrics{
		Uptime:            uptime,
		ErrorCount:        errCount,
		MessagesProcessed: msgCount,
		ReconnectAttempts: reconnTotal,
		PendingRequests:   c.pending.size(),
		LastActivity:      lastActivity,
	}

	switch state {
	case StateConnected:
		return health.NewHealthy("session", "connected to broker").WithMetrics(metrics)
	case StateConnecting, StateReconnecting:
		return health.NewDegraded("session", state.String()).WithMetrics(metrics)
	default:
		return health.NewUnhealthy("session", state.String()).WithMetrics(metrics)
	}
}

// Disconnect disposes the current session: it stops every tracked timer,
// closes the transport, rejects all pending requests with ErrSessionClosed,
// and drops every handler registration. Idempotent. The client ends up
// Disconnected and may Connect again; subscriptions and handlers belong to
// the disposed session and must be re-registered.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	wasConnected := c.state == StateConnected
	c.state = StateDisconnected
	c.reconnAttempt = 0
	c.appStopped = false
	c.ackWait = nil
	c.mu.Unlock()
	c.metrics.setState(StateDisconnected)

	c.tracker.Dispose()
	err := c.tr.Close()
	c.pending.rejectAll(errors.WrapFatal(errors.ErrSessionClosed, "session", "Disconnect", "reject pending"))

	if wasConnected {
		c.emitDisconnect("client disconnect", true, false)
	}
	c.streams.clear()
	c.peers.clear()
	c.registry.Clear()

	c.logger.Info("session disposed")
	if err != nil {
		return errors.Wrap(err, "session", "Disconnect", "close transport")
	}
	return nil
}

func (c *Client) emitDisconnect(reason string, clean, permanent bool) {
	c.streams.emit(message.EventDisconnected, Event{
		Stream: message.EventDisconnected,
		Payload: DisconnectEvent{
			Reason:    reason,
			Clean:     clean,
			Permanent: permanent,
		},
	})
}

func (c *Client) emitError(err error, context string) {
	c.mu.Lock()
	c.errorCount++
	c.mu.Unlock()
	c.metrics.errored(context)
	c.logger.Error("session error", "context", context, "error", err)
	c.streams.emit(message.EventError, Event{
		Stream:  message.EventError,
		Payload: ErrorEvent{Err: err, Context: context},
	})
}
