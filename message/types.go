package message

import "strings"

// Outbound message type discriminants
const (
	TypeConnectionInit     = "connection_init"
	TypeSubscriptionUpdate = "subscription_update"
	TypePhotoRequest       = "photo_request"
	TypeLocationPoll       = "location_poll_request"
	TypeDirectMessage      = "direct_message"
	TypeUserDiscovery      = "user_discovery"
)

// Inbound message type discriminants
const (
	TypeConnectionAck         = "connection_ack"
	TypeConnectionError       = "connection_error"
	TypeDataStream            = "data_stream"
	TypeSettingsUpdate        = "settings_update"
	TypePhotoResponse         = "photo_response"
	TypeDirectMessageResponse = "direct_message_response"
	TypeUserDiscoveryResponse = "user_discovery_response"
	TypeAppStopped            = "app_stopped"
	TypePermissionError       = "permission_error"
	TypeAppMessage            = "app_message"
	TypeAppBroadcast          = "app_broadcast"
)

// Stream discriminants carried inside data_stream frames
const (
	StreamTranscription     = "transcription"
	StreamTranslation       = "translation"
	StreamAudioChunk        = "audio_chunk"
	StreamButtonPress       = "button_press"
	StreamHeadPosition      = "head_position"
	StreamPhoneNotification = "phone_notification"
	StreamBatteryUpdate     = "glasses_battery_update"
	StreamLocationUpdate    = "location_update"
	StreamPhotoTaken        = "photo_taken"
	StreamVAD               = "vad"
)

// InternalPrefix marks discriminants that never leave the process. The
// subscription registry refuses them and the broker never streams them;
// they exist so local lifecycle events share the stream-handler API.
const InternalPrefix = "internal:"

// Local event discriminants (never transmitted)
const (
	EventConnected        = InternalPrefix + "connected"
	EventDisconnected     = InternalPrefix + "disconnected"
	EventError            = InternalPrefix + "error"
	EventPermissionDenied = InternalPrefix + "permission_denied"
	EventSettings         = InternalPrefix + "settings"
)

// IsInternal reports whether a discriminant belongs to the reserved
// internal namespace.
func IsInternal(discriminant string) bool {
	return strings.HasPrefix(discriminant, InternalPrefix)
}

// TranscriptionKey returns the per-language subscription key for
// transcription streams, e.g. "transcription:en-US".
func TranscriptionKey(language string) string {
	if language == "" {
		return StreamTranscription
	}
	return StreamTranscription + ":" + language
}

// TranslationKey returns the per-language-pair subscription key for
// translation streams, e.g. "translation:es-ES:en-US".
func TranslationKey(source, target string) string {
	if source == "" || target == "" {
		return StreamTranslation
	}
	return StreamTranslation + ":" + source + ":" + target
}

// BaseStream strips any language qualifiers from a stream key:
// "transcription:en-US" -> "transcription".
func BaseStream(key string) string {
	if idx := strings.IndexByte(key, ':'); idx >= 0 {
		return key[:idx]
	}
	return key
}
