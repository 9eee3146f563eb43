// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package adapter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jotline/jotline/internal/logger"
	"github.com/jotline/jotline/models"
)

const (
	reconnectBase = time.Second
	reconnectMax  = 20 * time.Second

	writeWait = 10 * time.Second
	inboxSize = 16
)

// WSTransport is a websocket Transport with automatic reconnection. The
// backoff between attempts doubles from one second up to twenty seconds
// and resets after a successful dial.
type WSTransport struct {
	url  string
	log  *logger.Logger
	dial *websocket.Dialer

	writeMu sync.Mutex // serializes WriteJSON
	mu      sync.Mutex // guards conn, onConnect, closed
	conn    *websocket.Conn

	online    atomic.Bool
	onConnect func()
	closed    bool

	inbox  chan []models.Message
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Transport = (*WSTransport)(nil)

// NewWSTransport returns a transport that will dial the given websocket URL.
func NewWSTransport(url string, log *logger.Logger) *WSTransport {
	return &WSTransport{
		url:   url,
		log:   log.WithComponent("ws"),
		dial:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		inbox: make(chan []models.Message, inboxSize),
	}
}

// Connect dials the server and starts the receive loop. The first dial is
// attempted synchronously; on failure the transport keeps retrying in the
// background and Connect still returns nil, surfacing the error only in
// the log. A hard error is returned only for a closed transport.
func (t *WSTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(runCtx)
	return nil
}

// run dials, pumps inbound messages and redials until ctx is cancelled.
func (t *WSTransport) run(ctx context.Context) {
	defer t.wg.Done()
	delay := reconnectBase
	for {
		conn, _, err := t.dial.DialContext(ctx, t.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Debug().Err(err).Dur("retry_in", delay).Msg("dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if delay *= 2; delay > reconnectMax {
				delay = reconnectMax
			}
			continue
		}
		delay = reconnectBase

		t.mu.Lock()
		t.conn = conn
		handler := t.onConnect
		t.mu.Unlock()
		t.online.Store(true)
		t.log.Info().Str("url", t.url).Msg("connected")

		if handler != nil {
			handler()
		}

		t.readLoop(ctx, conn)
		t.online.Store(false)
		if ctx.Err() != nil {
			return
		}
		t.log.Warn().Msg("connection lost, reconnecting")
	}
}

// readLoop reads message batches until the connection errors out.
func (t *WSTransport) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	for {
		var batch []models.Message
		if err := conn.ReadJSON(&batch); err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		if len(batch) == 0 {
			continue
		}
		select {
		case t.inbox <- batch:
		case <-ctx.Done():
			return
		}
	}
}

// Send writes one batch to the current connection.
func (t *WSTransport) Send(msgs []models.Message) error {
	if !t.online.Load() {
		return ErrOffline
	}
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrOffline
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msgs); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

func (t *WSTransport) Inbox() <-chan []models.Message { return t.inbox }

func (t *WSTransport) Online() bool { return t.online.Load() }

func (t *WSTransport) SetConnectHandler(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onConnect = fn
}

// Close stops reconnection, closes the connection and the inbox channel.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel := t.cancel
	conn := t.conn
	t.mu.Unlock()

	t.online.Store(false)
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
	t.wg.Wait()
	close(t.inbox)
	return nil
}
