package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/splitpot/api/internal/wire"
)

// Transport moves frames between the client and the server. Implementations
// must be safe for concurrent use.
type Transport interface {
	Subscribe(destination string, headers map[string]string) error
	Unsubscribe(destination string) error
	Send(cmd string, headers map[string]string, payload interface{}) error

	// Frames delivers inbound MESSAGE and ERROR frames. The channel is
	// closed when the connection dies.
	Frames() <-chan *wire.Frame

	Close() error
}

// WSTransport is the production Transport over a gorilla websocket
// connection.
type WSTransport struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	frames  chan *wire.Frame

	closeOnce sync.Once
}

// Dial connects to the server's websocket endpoint and starts the read
// loop.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*WSTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	t := &WSTransport{
		conn:   conn,
		logger: logger,
		frames: make(chan *wire.Frame, 64),
	}
	go t.readLoop()
	return t, nil
}

func (t *WSTransport) readLoop() {
	defer close(t.frames)
	for {
		var frame wire.Frame
		if err := t.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn("connection lost", "error", err)
			}
			return
		}
		if frame.Type == wire.FrameHeartbeat {
			continue
		}
		t.frames <- &frame
	}
}

func (t *WSTransport) write(frame *wire.Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(frame)
}

// Subscribe registers interest in a broadcast destination.
func (t *WSTransport) Subscribe(destination string, headers map[string]string) error {
	return t.write(&wire.Frame{
		Type:        wire.FrameSubscribe,
		Destination: destination,
		Headers:     headers,
	})
}

// Unsubscribe drops a broadcast destination.
func (t *WSTransport) Unsubscribe(destination string) error {
	return t.write(&wire.Frame{
		Type:        wire.FrameUnsubscribe,
		Destination: destination,
	})
}

// Send submits a command. The reply arrives on the private reply queue.
func (t *WSTransport) Send(cmd string, headers map[string]string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", cmd, err)
	}
	return t.write(&wire.Frame{
		Type:        wire.FrameSend,
		Destination: wire.CommandDestination(cmd),
		Headers:     headers,
		Body:        body,
	})
}

// Frames returns the inbound frame stream.
func (t *WSTransport) Frames() <-chan *wire.Frame {
	return t.frames
}

// Close tears the connection down. The read loop exits and Frames closes.
func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = t.conn.Close()
	})
	return err
}
