package message

import (
	"encoding/json"

	"github.com/rajeevrajeshuni/MentraOS-sub001/errors"
)

// Inbound is a parsed but not yet classified broker message. The router
// decodes Raw into the variant struct matching Type. Inbound values are
// never mutated after Parse.
type Inbound struct {
	Type string
	Raw  json.RawMessage
}

// Parse validates a textual broker frame and extracts its discriminant.
// Empty payloads, unparsable JSON, and missing discriminants fail with
// ErrMalformedInbound.
func Parse(data []byte) (*Inbound, error) {
	if len(data) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMalformedInbound, "message", "Parse", "empty payload")
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.WrapInvalid(errors.ErrMalformedInbound, "message", "Parse", "decode payload")
	}
	if probe.Type == "" {
		return nil, errors.WrapInvalid(errors.ErrMalformedInbound, "message", "Parse", "missing type discriminant")
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return &Inbound{Type: probe.Type, Raw: raw}, nil
}

// Decode unmarshals the full message into the given variant struct.
func (m *Inbound) Decode(v any) error {
	if err := json.Unmarshal(m.Raw, v); err != nil {
		return errors.WrapInvalid(errors.ErrMalformedInbound, "message", "Decode", "decode "+m.Type)
	}
	return nil
}

// ConnectionAck acknowledges a successful handshake. Settings and Config
// are broker-provided snapshots retained for the life of the session.
type ConnectionAck struct {
	SessionID string         `json:"sessionId"`
	Settings  map[string]any `json:"settings"`
	Config    map[string]any `json:"config"`
}

// ConnectionError reports a failed handshake.
type ConnectionError struct {
	Message string `json:"message"`
}

// DataStream wraps a single stream-keyed event. Data is decoded by the
// per-stream sanitizers before fan-out.
type DataStream struct {
	StreamType string          `json:"streamType"`
	Data       json.RawMessage `json:"data"`
}

// SettingsUpdate carries a changed settings snapshot.
type SettingsUpdate struct {
	Settings map[string]any `json:"settings"`
}

// PhotoResponse resolves a pending photo_request by requestId.
type PhotoResponse struct {
	RequestID      string `json:"requestId"`
	URL            string `json:"url"`
	SavedToGallery bool   `json:"savedToGallery"`
	Error          string `json:"error,omitempty"`
}

// DirectMessageResponse resolves a pending direct_message by requestId.
type DirectMessageResponse struct {
	RequestID string `json:"requestId"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// DiscoveredUser describes one user reachable by direct messages.
type DiscoveredUser struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// UserDiscoveryResponse resolves a pending user_discovery by requestId.
type UserDiscoveryResponse struct {
	RequestID string           `json:"requestId"`
	Users     []DiscoveredUser `json:"users"`
}

// AppStopped signals the broker stopped this application. It is a clean
// shutdown: reconnection must be disarmed, not triggered.
type AppStopped struct {
	Reason string `json:"reason,omitempty"`
}

// PermissionDetail names one stream the broker refused to deliver.
type PermissionDetail struct {
	Stream  string `json:"stream"`
	Message string `json:"message,omitempty"`
}

// PermissionError reports streams rejected for missing permissions.
type PermissionError struct {
	Message string             `json:"message"`
	Details []PermissionDetail `json:"details"`
}

// AppMessage is an unsolicited peer message from another application. It is
// delivered on the dedicated peer channel, bypassing stream subscriptions.
type AppMessage struct {
	SenderPackage string          `json:"senderPackage"`
	Payload       json.RawMessage `json:"payload"`
}
