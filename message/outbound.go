package message

import (
	"encoding/json"
	"time"

	"github.com/rajeevrajeshuni/MentraOS-sub001/errors"
)

// Envelope carries the fields common to every outbound message. Variant
// structs embed it; the session layer stamps SessionID, PackageName, and
// Timestamp before transmission when they are absent.
type Envelope struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId,omitempty"`
	PackageName string `json:"packageName,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// ConnectionInit is the handshake sent immediately after the transport opens.
type ConnectionInit struct {
	Envelope
	APIKey string `json:"apiKey"`
}

// NewConnectionInit builds the handshake message for a session.
func NewConnectionInit(sessionID, packageName, apiKey string) *ConnectionInit {
	return &ConnectionInit{
		Envelope: Envelope{
			Type:        TypeConnectionInit,
			SessionID:   sessionID,
			PackageName: packageName,
		},
		APIKey: apiKey,
	}
}

// SubscriptionUpdate transmits the full current subscription set. The broker
// holds no diff state, so the set always replaces, never patches.
type SubscriptionUpdate struct {
	Envelope
	Subscriptions []string `json:"subscriptions"`
}

// NewSubscriptionUpdate builds a full-set subscription replacement message.
func NewSubscriptionUpdate(subscriptions []string) *SubscriptionUpdate {
	if subscriptions == nil {
		subscriptions = []string{}
	}
	return &SubscriptionUpdate{
		Envelope:      Envelope{Type: TypeSubscriptionUpdate},
		Subscriptions: subscriptions,
	}
}

// PhotoRequest asks the device to capture a photo and reply with its URL.
type PhotoRequest struct {
	Envelope
	RequestID     string `json:"requestId"`
	SaveToGallery bool   `json:"saveToGallery"`
}

// LocationPollRequest asks for a single location fix at the given accuracy.
type LocationPollRequest struct {
	Envelope
	RequestID string `json:"requestId"`
	Accuracy  string `json:"accuracy,omitempty"`
}

// DirectMessage carries an application payload to another user's session.
type DirectMessage struct {
	Envelope
	RequestID    string          `json:"requestId"`
	TargetUserID string          `json:"targetUserId"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// UserDiscovery asks the broker for the users reachable by direct messages.
type UserDiscovery struct {
	Envelope
	RequestID string `json:"requestId"`
}

// Stamp enriches serialized outbound JSON with the session identity and a
// timestamp where those fields are absent. It fails with ErrInvalidMessage
// when the payload is not a JSON object or carries no type discriminant.
func Stamp(data []byte, sessionID, packageName string, now time.Time) ([]byte, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidMessage, "message", "Stamp", "decode outbound")
	}

	msgType, _ := fields["type"].(string)
	if msgType == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidMessage, "message", "Stamp", "missing type discriminant")
	}

	if v, ok := fields["sessionId"].(string); !ok || v == "" {
		if sessionID != "" {
			fields["sessionId"] = sessionID
		}
	}
	if v, ok := fields["packageName"].(string); !ok || v == "" {
		if packageName != "" {
			fields["packageName"] = packageName
		}
	}
	if v, ok := fields["timestamp"].(string); !ok || v == "" {
		fields["timestamp"] = now.UTC().Format(time.RFC3339Nano)
	}

	stamped, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.WrapInvalid(err, "message", "Stamp", "encode outbound")
	}
	return stamped, nil
}

// Marshal serializes an outbound message variant.
func Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.WrapInvalid(err, "message", "Marshal", "encode outbound")
	}
	return data, nil
}
