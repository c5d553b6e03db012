package update

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// PushEvent announces a newly published release.
type PushEvent struct {
	Type    string `json:"type"`
	Version string `json:"version"`
	ID      string `json:"id"`
}

// SubscribeReleases dials a release push channel and streams "release"
// events until ctx is done or the server closes the connection.
func SubscribeReleases(ctx context.Context, wsURL string) (<-chan PushEvent, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, newError(KindBackend, err, "invalid push URL")
	}

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	// nolint:bodyclose
	conn, _, err := d.DialContext(ctx, u.String(), map[string][]string{"User-Agent": {userAgent}})
	if err != nil {
		return nil, newError(KindNetwork, err, "failed to connect to push channel")
	}

	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "topic": "releases"}); err != nil {
		_ = conn.Close()
		return nil, newError(KindNetwork, err, "failed to subscribe")
	}

	out := make(chan PushEvent, 8)
	// Unblock ReadMessage when the caller goes away.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	go func() {
		defer close(out)
		defer stop()
		defer func() {
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = conn.Close()
		}()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev PushEvent
			if err := json.Unmarshal(msg, &ev); err != nil || ev.Type != "release" {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
