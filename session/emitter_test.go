package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rajeevrajeshuni/MentraOS-sub001/message"
)

func TestEmitterFanOut(t *testing.T) {
	e := newEmitter()

	var first, second int
	e.on("vad", func(Event) { first++ })
	e.on("vad", func(Event) { second++ })

	e.emit("vad", Event{Stream: "vad"})
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)

	e.emit("button_press", Event{Stream: "button_press"})
	assert.Equal(t, 1, first, "unrelated stream must not reach vad handlers")
}

func TestEmitterCancelRemovesOneRegistration(t *testing.T) {
	e := newEmitter()

	var kept, cancelled int
	e.on("vad", func(Event) { kept++ })
	cancel := e.on("vad", func(Event) { cancelled++ })

	cancel()
	cancel() // idempotent

	e.emit("vad", Event{})
	assert.Equal(t, 1, kept)
	assert.Zero(t, cancelled)
	assert.True(t, e.hasListeners("vad"))
}

func TestEmitterLanguageQualifiedDelivery(t *testing.T) {
	e := newEmitter()

	var base, exact, other int
	e.on(message.StreamTranscription, func(Event) { base++ })
	e.on(message.TranscriptionKey("en-US"), func(Event) { exact++ })
	e.on(message.TranscriptionKey("fr-FR"), func(Event) { other++ })

	e.emitStream(message.TranscriptionKey("en-US"), Event{})
	assert.Equal(t, 1, base, "base handler sees every language")
	assert.Equal(t, 1, exact)
	assert.Zero(t, other)
}

func TestEmitterReentrantUnsubscribe(t *testing.T) {
	e := newEmitter()

	var cancel func()
	var calls int
	cancel = e.on("vad", func(Event) {
		calls++
		cancel()
	})

	e.emit("vad", Event{})
	e.emit("vad", Event{})
	assert.Equal(t, 1, calls)
	assert.False(t, e.hasListeners("vad"))
}

func TestEmitterClear(t *testing.T) {
	e := newEmitter()
	e.on("vad", func(Event) { t.Error("handler must not fire after clear") })
	e.clear()
	e.emit("vad", Event{})
	assert.False(t, e.hasListeners("vad"))
}

func TestAppEmitter(t *testing.T) {
	e := newAppEmitter()

	var got []AppMessageEvent
	cancel := e.on(func(ev AppMessageEvent) { got = append(got, ev) })

	e.emit(AppMessageEvent{SenderPackage: "com.example.peer", Broadcast: true})
	assert.Len(t, got, 1)
	assert.Equal(t, "com.example.peer", got[0].SenderPackage)
	assert.True(t, got[0].Broadcast)

	cancel()
	e.emit(AppMessageEvent{})
	assert.Len(t, got, 1)
}
