package session

import (
	"context"
	"encoding/json"

	"github.com/rajeevrajeshuni/MentraOS-sub001/errors"
	"github.com/rajeevrajeshuni/MentraOS-sub001/message"
)

// PhotoOptions configures a photo capture request.
type PhotoOptions struct {
	// SaveToGallery asks the device to keep the photo locally as well.
	SaveToGallery bool
}

// RequestPhoto asks the device to capture a photo and blocks until the
// broker replies with its URL, the photo deadline expires, or ctx is
// cancelled. Photo capture involves the user's camera, so it carries its own
// longer deadline than other requests.
func (c *Client) RequestPhoto(ctx context.Context, opts PhotoOptions) (string, error) {
	id := newCorrelationID(c.clock())
	result, failure := make(chan any, 1), make(chan error, 1)
	if err := c.pending.register(id, settleTo(result), failTo(failure), c.photoTimeout); err != nil {
		return "", err
	}

	req := &message.PhotoRequest{
		Envelope:      message.Envelope{Type: message.TypePhotoRequest},
		RequestID:     id,
		SaveToGallery: opts.SaveToGallery,
	}
	if err := c.sendEnvelope(message.TypePhotoRequest, req); err != nil {
		c.pending.drop(id)
		return "", err
	}

	v, err := c.await(ctx, id, result, failure)
	if err != nil {
		return "", err
	}
	resp, ok := v.(message.PhotoResponse)
	if !ok {
		return "", errors.WrapInvalid(errors.ErrMalformedInbound, "session", "RequestPhoto", "unexpected reply payload")
	}
	return resp.URL, nil
}

// PollLocation requests a single location fix at the given accuracy tier
// ("standard", "high", ...) and blocks until the correlated fix arrives. The
// reply travels as a location_update data_stream frame carrying the request
// id, not as a dedicated response type.
func (c *Client) PollLocation(ctx context.Context, accuracy string) (message.LocationUpdate, error) {
	id := newCorrelationID(c.clock())
	result, failure := make(chan any, 1), make(chan error, 1)
	if err := c.pending.register(id, settleTo(result), failTo(failure), c.requestTimeout); err != nil {
		return message.LocationUpdate{}, err
	}

	req := &message.LocationPollRequest{
		Envelope:  message.Envelope{Type: message.TypeLocationPoll},
		RequestID: id,
		Accuracy:  accuracy,
	}
	if err := c.sendEnvelope(message.TypeLocationPoll, req); err != nil {
		c.pending.drop(id)
		return message.LocationUpdate{}, err
	}

	v, err := c.await(ctx, id, result, failure)
	if err != nil {
		return message.LocationUpdate{}, err
	}
	loc, ok := v.(message.LocationUpdate)
	if !ok {
		return message.LocationUpdate{}, errors.WrapInvalid(errors.ErrMalformedInbound, "session", "PollLocation", "unexpected reply payload")
	}
	return loc, nil
}

// SendAppMessage delivers a payload to another user's session of this same
// application and reports whether the broker delivered it. A broker-reported
// delivery failure returns false together with ErrRequestRejected.
func (c *Client) SendAppMessage(ctx context.Context, targetUserID string, payload json.RawMessage) (bool, error) {
	if targetUserID == "" {
		return false, errors.WrapInvalid(errors.ErrInvalidMessage, "session", "SendAppMessage", "empty target user")
	}

	id := newCorrelationID(c.clock())
	result, failure := make(chan any, 1), make(chan error, 1)
	if err := c.pending.register(id, settleTo(result), failTo(failure), c.requestTimeout); err != nil {
		return false, err
	}

	req := &message.DirectMessage{
		Envelope:     message.Envelope{Type: message.TypeDirectMessage},
		RequestID:    id,
		TargetUserID: targetUserID,
		Payload:      payload,
	}
	if err := c.sendEnvelope(message.TypeDirectMessage, req); err != nil {
		c.pending.drop(id)
		return false, err
	}

	v, err := c.await(ctx, id, result, failure)
	if err != nil {
		return false, err
	}
	resp, ok := v.(message.DirectMessageResponse)
	if !ok {
		return false, errors.WrapInvalid(errors.ErrMalformedInbound, "session", "SendAppMessage", "unexpected reply payload")
	}
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "delivery failed"
		}
		return false, errors.WrapTransient(errors.ErrRequestRejected, "session", "SendAppMessage", reason)
	}
	return true, nil
}

// DiscoverUsers asks the broker which users are currently reachable by
// direct messages.
func (c *Client) DiscoverUsers(ctx context.Context) ([]message.DiscoveredUser, error) {
	id := newCorrelationID(c.clock())
	result, failure := make(chan any, 1), make(chan error, 1)
	if err := c.pending.register(id, settleTo(result), failTo(failure), c.requestTimeout); err != nil {
		return nil, err
	}

	req := &message.UserDiscovery{
		Envelope:  message.Envelope{Type: message.TypeUserDiscovery},
		RequestID: id,
	}
	if err := c.sendEnvelope(message.TypeUserDiscovery, req); err != nil {
		c.pending.drop(id)
		return nil, err
	}

	v, err := c.await(ctx, id, result, failure)
	if err != nil {
		return nil, err
	}
	users, ok := v.([]message.DiscoveredUser)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrMalformedInbound, "session", "DiscoverUsers", "unexpected reply payload")
	}
	return users, nil
}

// await blocks on the outcome of a registered request. Context cancellation
// abandons the entry without settling it; the deadline timer already rejects
// on timeout, which is also counted.
func (c *Client) await(ctx context.Context, id string, result chan any, failure chan error) (any, error) {
	select {
	case v := <-result:
		return v, nil
	case err := <-failure:
		if errors.Is(err, errors.ErrRequestTimeout) {
			c.metrics.requestTimedOut()
		}
		return nil, err
	case <-ctx.Done():
		c.pending.drop(id)
		return nil, errors.WrapTransient(ctx.Err(), "session", "request", "await "+id)
	}
}

func settleTo(ch chan any) func(any) {
	return func(v any) { ch <- v }
}

func failTo(ch chan error) func(error) {
	return func(err error) { ch <- err }
}
