package client

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/clmpro/clmsetup/internal/account"
	"github.com/clmpro/clmsetup/internal/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event is one message from the server event stream. Data holds a User for
// user.* events and a Device for device.* events.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// User decodes the payload of a user.* event.
func (e Event) User() (*account.User, error) {
	var u account.User
	if err := json.Unmarshal(e.Data, &u); err != nil {
		return nil, newParseError("failed to parse "+e.Type+" event", err)
	}
	return &u, nil
}

// Device decodes the payload of a device.* event.
func (e Event) Device() (*account.Device, error) {
	var d account.Device
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return nil, newParseError("failed to parse "+e.Type+" event", err)
	}
	return &d, nil
}

// WatchEvents opens the session user's event stream. The channel is closed
// when ctx is cancelled or the connection drops.
func (c *Client) WatchEvents(ctx context.Context) (<-chan Event, error) {
	wsURL := *c.base
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = strings.TrimRight(wsURL.Path, "/") + "/api/events"

	dialer := websocket.Dialer{
		HandshakeTimeout: c.HTTPClient.Timeout,
		Jar:              c.jar,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return nil, newAPIError(resp.StatusCode, body)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ClassifyNetworkError(err, c.base.Host)
	}

	events := make(chan Event)
	stop := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = conn.Close()
	}()

	go func() {
		defer close(events)
		defer close(stop)
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logging.Debug("Event stream closed", zap.Error(err))
				}
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
