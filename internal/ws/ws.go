// Package ws is the websocket transport of the sync server. It upgrades
// HTTP connections, reads frames, enforces the admin subscription guard,
// and pumps hub-routed frames back to the client.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/splitpot/api/internal/hub"
	"github.com/splitpot/api/internal/service"
	"github.com/splitpot/api/internal/wire"
)

// Dispatcher runs one command and replies on the sender's private queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, connID, cmd, passcode string, body json.RawMessage)
}

// Handler owns the websocket endpoint.
type Handler struct {
	hub        *hub.Hub
	dispatcher Dispatcher
	passcode   *service.Passcode
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewHandler creates the websocket handler.
func NewHandler(h *hub.Hub, dispatcher Dispatcher, passcode *service.Passcode, logger *slog.Logger) *Handler {
	return &Handler{
		hub:        h,
		dispatcher: dispatcher,
		passcode:   passcode,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin enforcement happens in the CORS middleware for the
			// REST surface; the ws endpoint admits any origin and relies
			// on the passcode guard for the admin scope.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	connID := uuid.NewString()
	sub := h.hub.Register(connID)

	h.logger.Info("client connected", slog.String("conn_id", connID))

	go h.writePump(conn, sub)
	h.readLoop(r.Context(), conn, connID)

	topics := len(h.hub.TopicsOf(connID))
	h.hub.Deregister(connID)
	h.logger.Info("client disconnected",
		slog.String("conn_id", connID),
		slog.Int("topics", topics))
}

// readLoop processes inbound frames until the connection dies or the admin
// guard aborts it.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, connID string) {
	for {
		var frame wire.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("read failed",
					slog.String("conn_id", connID),
					slog.String("error", err.Error()))
			}
			return
		}

		switch frame.Type {
		case wire.FrameSubscribe:
			if !h.admitSubscription(connID, &frame) {
				// Admin guard failure is fatal to the whole connection,
				// not just the one subscription. The client must
				// reconnect and re-authenticate to retry.
				return
			}

		case wire.FrameUnsubscribe:
			h.hub.Unsubscribe(connID, frame.Destination)

		case wire.FrameSend:
			cmd, ok := wire.ParseCommand(frame.Destination)
			if !ok {
				h.hub.Send(connID, wire.NewError("unknown destination "+frame.Destination))
				continue
			}
			// Each inbound command gets its own dispatch goroutine;
			// handlers must tolerate interleaving for the same event.
			go h.dispatcher.Dispatch(context.WithoutCancel(ctx), connID, cmd, frame.Passcode(), frame.Body)

		case wire.FrameHeartbeat:
			// Client keepalive, nothing to do.

		default:
			h.hub.Send(connID, wire.NewError("unexpected frame type "+string(frame.Type)))
		}
	}
}

// admitSubscription applies the admin access guard and registers the
// subscription. Returns false when the connection must be aborted.
func (h *Handler) admitSubscription(connID string, frame *wire.Frame) bool {
	if wire.IsAdminDestination(frame.Destination) && !h.passcode.Check(frame.Passcode()) {
		h.logger.Warn("admin subscription rejected", slog.String("conn_id", connID))
		h.hub.Send(connID, wire.NewError("access denied"))
		return false
	}
	h.hub.Subscribe(connID, frame.Destination)
	return true
}

// writePump drains the subscriber channel onto the socket. It keeps
// draining after the channel closes so frames enqueued right before an
// abort, such as the guard's ERROR frame, still reach the client.
func (h *Handler) writePump(conn *websocket.Conn, sub *hub.Subscriber) {
	for frame := range sub.Frames {
		if err := conn.WriteJSON(frame); err != nil {
			break
		}
	}
	conn.Close()
}
