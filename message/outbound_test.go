package message

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajeevrajeshuni/MentraOS-sub001/errors"
)

func TestStamp_FillsMissingFields(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data, err := Marshal(NewSubscriptionUpdate([]string{StreamButtonPress}))
	require.NoError(t, err)

	stamped, err := Stamp(data, "s1", "com.example.app", now)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(stamped, &fields))
	assert.Equal(t, TypeSubscriptionUpdate, fields["type"])
	assert.Equal(t, "s1", fields["sessionId"])
	assert.Equal(t, "com.example.app", fields["packageName"])
	assert.Equal(t, now.Format(time.RFC3339Nano), fields["timestamp"])
}

func TestStamp_PreservesExistingFields(t *testing.T) {
	data := []byte(`{"type":"photo_request","sessionId":"other","timestamp":"2020-01-01T00:00:00Z"}`)

	stamped, err := Stamp(data, "s1", "com.example.app", time.Now())
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(stamped, &fields))
	assert.Equal(t, "other", fields["sessionId"])
	assert.Equal(t, "2020-01-01T00:00:00Z", fields["timestamp"])
}

func TestStamp_RejectsMissingType(t *testing.T) {
	_, err := Stamp([]byte(`{"payload":"x"}`), "s1", "pkg", time.Now())
	assert.True(t, errors.Is(err, errors.ErrInvalidMessage))
}

func TestStamp_RejectsNonObject(t *testing.T) {
	_, err := Stamp([]byte(`[1,2,3]`), "s1", "pkg", time.Now())
	assert.True(t, errors.Is(err, errors.ErrInvalidMessage))
}

func TestNewSubscriptionUpdate_NeverNilSet(t *testing.T) {
	data, err := Marshal(NewSubscriptionUpdate(nil))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"subscriptions":[]`)
}

func TestNewConnectionInit(t *testing.T) {
	init := NewConnectionInit("s1", "com.example.app", "key-123")
	assert.Equal(t, TypeConnectionInit, init.Type)
	assert.Equal(t, "s1", init.SessionID)
	assert.Equal(t, "key-123", init.APIKey)
}
