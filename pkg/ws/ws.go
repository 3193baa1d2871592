// Package ws pushes live query snapshots to browsers over WebSocket using
// gorilla/websocket.
//
//	router.Get("/products/{id}/comments/ws", "comments.ws", ctx.Wrap(func(c *ctx.Context) {
//	    feed, err := comments.ListenByProduct(c.Context(), c.Param("id"))
//	    if err != nil { c.Fail(err); return }
//	    defer feed.Close()
//	    ws.Pump(c.W, c.R, feed.Updates())
//	}))
//
// The connection is server-to-client only: inbound frames are read and
// discarded so pongs and close frames are processed.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shashiranjanraj/campusmart/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SetCheckOrigin replaces the default (allow-all) origin checker.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}

// Pump upgrades the connection and writes every value received from src as a
// JSON text frame. It returns when src closes, the client disconnects or the
// request context ends; a normal close frame is sent when src closes.
func Pump[T any](w http.ResponseWriter, r *http.Request, src <-chan T) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		return fmt.Errorf("ws: upgrade: %w", err)
	}
	defer conn.Close()

	gone := readPump(r.Context(), conn)
	return writePump(r.Context(), conn, src, gone)
}

// readPump drains inbound frames so control frames are handled. The returned
// channel is closed once the client is gone.
func readPump(ctx context.Context, conn *websocket.Conn) <-chan struct{} {
	gone := make(chan struct{})
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					logger.WithCtx(ctx).Warn("ws: unexpected close", "error", err)
				}
				return
			}
		}
	}()
	return gone
}

func writePump[T any](ctx context.Context, conn *websocket.Conn, src <-chan T, gone <-chan struct{}) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-gone:
			return nil
		case v, ok := <-src:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "feed ended"))
				return nil
			}
			payload, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("ws: marshal: %w", err)
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return fmt.Errorf("ws: write: %w", err)
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ws: ping: %w", err)
			}
		}
	}
}
