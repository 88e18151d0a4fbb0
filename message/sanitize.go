package message

import (
	"encoding/json"
	"time"
)

// Typed stream payloads produced by the sanitizers. Handler callbacks
// receive these instead of raw maps so one ill-typed field from the wire
// can never surface as a missing value inside application code.

// Transcription is a speech-to-text segment.
type Transcription struct {
	Text      string `json:"text"`
	Language  string `json:"language"`
	IsFinal   bool   `json:"isFinal"`
	Timestamp string `json:"timestamp"`
}

// Translation is a translated speech segment.
type Translation struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	IsFinal        bool   `json:"isFinal"`
	Timestamp      string `json:"timestamp"`
}

// ButtonPress is a hardware button event.
type ButtonPress struct {
	ButtonID  string `json:"buttonId"`
	PressType string `json:"pressType"`
	Timestamp string `json:"timestamp"`
}

// HeadPosition is a head orientation event.
type HeadPosition struct {
	Position  string `json:"position"`
	Timestamp string `json:"timestamp"`
}

// PhoneNotification mirrors a notification from the paired phone.
type PhoneNotification struct {
	App       string `json:"app"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// BatteryUpdate reports device battery state.
type BatteryUpdate struct {
	Level     int    `json:"level"`
	Charging  bool   `json:"charging"`
	Timestamp string `json:"timestamp"`
}

// LocationUpdate is a location fix. RequestID is set when the fix answers a
// single location poll rather than a continuous stream subscription.
type LocationUpdate struct {
	RequestID string  `json:"requestId,omitempty"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Accuracy  string  `json:"accuracy"`
	Timestamp string  `json:"timestamp"`
}

// PhotoTaken announces a device-initiated photo capture.
type PhotoTaken struct {
	RequestID      string `json:"requestId,omitempty"`
	URL            string `json:"url"`
	SavedToGallery bool   `json:"savedToGallery"`
	Timestamp      string `json:"timestamp"`
}

// VAD is a voice-activity-detection state change.
type VAD struct {
	Speaking  bool   `json:"speaking"`
	Timestamp string `json:"timestamp"`
}

// Sanitize decodes a stream payload tolerantly, substituting safe defaults
// for missing or ill-typed fields, and returns the effective subscription
// key together with the typed payload. Transcription and translation
// streams are re-keyed by their embedded language fields so per-language
// subscriptions can be matched. Sanitize is idempotent on valid input.
//
// Unknown stream types pass through as a generic map keyed by the stream
// discriminant itself.
func Sanitize(streamType string, data json.RawMessage, now time.Time) (string, any) {
	fields := decodeFields(data)
	ts := getString(fields, "timestamp", now.UTC().Format(time.RFC3339Nano))

	switch streamType {
	case StreamTranscription:
		lang := getString(fields, "language", "en-US")
		return TranscriptionKey(lang), Transcription{
			Text:      getString(fields, "text", ""),
			Language:  lang,
			IsFinal:   getBool(fields, "isFinal", false),
			Timestamp: ts,
		}
	case StreamTranslation:
		src := getString(fields, "sourceLanguage", "en-US")
		dst := getString(fields, "targetLanguage", "en-US")
		return TranslationKey(src, dst), Translation{
			Text:           getString(fields, "text", ""),
			SourceLanguage: src,
			TargetLanguage: dst,
			IsFinal:        getBool(fields, "isFinal", false),
			Timestamp:      ts,
		}
	case StreamButtonPress:
		return StreamButtonPress, ButtonPress{
			ButtonID:  getString(fields, "buttonId", "unknown"),
			PressType: getString(fields, "pressType", "short"),
			Timestamp: ts,
		}
	case StreamHeadPosition:
		return StreamHeadPosition, HeadPosition{
			Position:  getString(fields, "position", "up"),
			Timestamp: ts,
		}
	case StreamPhoneNotification:
		return StreamPhoneNotification, PhoneNotification{
			App:       getString(fields, "app", ""),
			Title:     getString(fields, "title", ""),
			Content:   getString(fields, "content", ""),
			Timestamp: ts,
		}
	case StreamBatteryUpdate:
		return StreamBatteryUpdate, BatteryUpdate{
			Level:     getInt(fields, "level", -1),
			Charging:  getBool(fields, "charging", false),
			Timestamp: ts,
		}
	case StreamLocationUpdate:
		return StreamLocationUpdate, LocationUpdate{
			RequestID: getString(fields, "requestId", ""),
			Latitude:  getFloat(fields, "lat", 0),
			Longitude: getFloat(fields, "lng", 0),
			Accuracy:  getString(fields, "accuracy", ""),
			Timestamp: ts,
		}
	case StreamPhotoTaken:
		return StreamPhotoTaken, PhotoTaken{
			RequestID:      getString(fields, "requestId", ""),
			URL:            getString(fields, "url", ""),
			SavedToGallery: getBool(fields, "savedToGallery", false),
			Timestamp:      ts,
		}
	case StreamVAD:
		return StreamVAD, VAD{
			Speaking:  getBool(fields, "speaking", false),
			Timestamp: ts,
		}
	default:
		if fields == nil {
			fields = map[string]any{}
		}
		return streamType, fields
	}
}

func decodeFields(data json.RawMessage) map[string]any {
	if len(data) == 0 {
		return map[string]any{}
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return map[string]any{}
	}
	return fields
}

func getString(fields map[string]any, key, def string) string {
	if v, ok := fields[key].(string); ok && v != "" {
		return v
	}
	return def
}

func getBool(fields map[string]any, key string, def bool) bool {
	if v, ok := fields[key].(bool); ok {
		return v
	}
	return def
}

func getFloat(fields map[string]any, key string, def float64) float64 {
	if v, ok := fields[key].(float64); ok {
		return v
	}
	return def
}

func getInt(fields map[string]any, key string, def int) int {
	if v, ok := fields[key].(float64); ok {
		return int(v)
	}
	return def
}
