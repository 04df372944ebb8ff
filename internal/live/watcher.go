package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// reconnectDelay is the backoff between dial attempts.
const reconnectDelay = 5 * time.Second

// Watcher is the client side of the score feed: it dials the backend's feed
// endpoint and invokes a handler for every score update, so the engine can
// schedule refreshes instead of waiting for the next poll.
type Watcher struct {
	url     string
	handler func(Message)
	logger  *slog.Logger
}

// NewWatcher creates a feed watcher. The handler runs on the watcher's
// goroutine and should only schedule work, not block.
func NewWatcher(url string, handler func(Message), logger *slog.Logger) *Watcher {
	return &Watcher{url: url, handler: handler, logger: logger}
}

// Run dials the feed and processes messages until the context is canceled,
// reconnecting with a fixed backoff after any failure. Feed loss is never
// fatal; the periodic refresh worker still converges state without it.
func (w *Watcher) Run(ctx context.Context) {
	for {
		if err := w.connectAndRead(ctx); err != nil {
			w.logger.Warn("score feed disconnected", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (w *Watcher) connectAndRead(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	w.logger.Info("score feed connected", "url", w.url)

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			w.logger.Debug("ignoring malformed feed message", "error", err)
			continue
		}
		if msg.Type != MessageTypeScoreUpdate {
			continue
		}
		w.handler(msg)
	}
}
