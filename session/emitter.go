package session

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/rajeevrajeshuni/MentraOS-sub001/message"
)

// Event is what stream handlers receive: the effective stream key, the
// sanitized payload for textual streams, or the raw samples for binary
// audio frames.
type Event struct {
	Stream  string
	Payload any
	Binary  []byte
}

// Handler consumes events for one stream discriminant.
type Handler func(Event)

// DisconnectEvent is the payload of internal:disconnected events.
type DisconnectEvent struct {
	Reason    string
	Clean     bool
	Permanent bool
}

// ErrorEvent is the payload of internal:error events.
type ErrorEvent struct {
	Err     error
	Context string
}

// AppMessageEvent is delivered on the dedicated peer channel, bypassing the
// stream-subscription gate entirely.
type AppMessageEvent struct {
	SenderPackage string
	Payload       json.RawMessage
	Broadcast     bool
}

// AppMessageHandler consumes peer messages.
type AppMessageHandler func(AppMessageEvent)

// emitter fans events out to registered handlers. Handlers are keyed by a
// generated id so the returned cancel func removes exactly one registration.
type emitter struct {
	mu       sync.RWMutex
	handlers map[string]map[string]Handler
}

func newEmitter() *emitter {
	return &emitter{
		handlers: make(map[string]map[string]Handler),
	}
}

// on registers a handler for a stream discriminant and returns its cancel.
func (e *emitter) on(stream string, handler Handler) func() {
	id := uuid.NewString()

	e.mu.Lock()
	if e.handlers[stream] == nil {
		e.handlers[stream] = make(map[string]Handler)
	}
	e.handlers[stream][id] = handler
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		if handlers, ok := e.handlers[stream]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(e.handlers, stream)
			}
		}
		e.mu.Unlock()
	}
}

// emit invokes every handler registered for the stream. Handlers run
// outside the lock so they may subscribe or unsubscribe reentrantly.
func (e *emitter) emit(stream string, ev Event) {
	e.mu.RLock()
	registered := e.handlers[stream]
	handlers := make([]Handler, 0, len(registered))
	for _, h := range registered {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// emitStream delivers a stream event on its effective key and, when the key
// carries a language qualifier, on the base discriminant as well, so a
// handler for plain "transcription" sees every language.
func (e *emitter) emitStream(key string, ev Event) {
	e.emit(key, ev)
	if base := message.BaseStream(key); base != key {
		e.emit(base, ev)
	}
}

// hasListeners reports whether any handler is registered for the stream.
func (e *emitter) hasListeners(stream string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[stream]) > 0
}

// clear drops every registration.
func (e *emitter) clear() {
	e.mu.Lock()
	e.handlers = make(map[string]map[string]Handler)
	e.mu.Unlock()
}

// appEmitter is the second, explicitly separate dispatch channel for
// cross-application peer messaging. Keeping it apart from the stream
// emitter means peer traffic can never be confused with the
// stream-subscription gate.
type appEmitter struct {
	mu       sync.RWMutex
	handlers map[string]AppMessageHandler
}

func newAppEmitter() *appEmitter {
	return &appEmitter{
		handlers: make(map[string]AppMessageHandler),
	}
}

func (e *appEmitter) on(handler AppMessageHandler) func() {
	id := uuid.NewString()

	e.mu.Lock()
	e.handlers[id] = handler
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.handlers, id)
		e.mu.Unlock()
	}
}

func (e *appEmitter) emit(ev AppMessageEvent) {
	e.mu.RLock()
	handlers := make([]AppMessageHandler, 0, len(e.handlers))
	for _, h := range e.handlers {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (e *appEmitter) clear() {
	e.mu.Lock()
	e.handlers = make(map[string]AppMessageHandler)
	e.mu.Unlock()
}
