package socket

import (
	"context"

	socketio "github.com/googollee/go-socket.io"
	"go.uber.org/zap"
)

type joinRequest struct {
	MatchID string `json:"matchId"`
}

type sendRequest struct {
	MatchID string `json:"matchId"`
	Content string `json:"content"`
}

// NewSocketServer initializes a Socket.IO server that serves the bridge
// on the default namespace.
func NewSocketServer(bridge *Bridge, log *zap.Logger) *socketio.Server {
	server := socketio.NewServer(nil)

	// Handle connection events
	server.OnConnect("/", func(c socketio.Conn) error {
		u := c.URL()
		identity, err := bridge.Connect(c.ID(), c.RemoteHeader(), u.Query(), c)
		if err != nil {
			log.Info("Socket rejected", zap.String("conn", c.ID()), zap.Error(err))
			c.Emit(EventError, errorFor(err))
			return err
		}
		log.Info("Socket connected", zap.String("conn", c.ID()), zap.String("userId", identity.UserID))
		return nil
	})

	// Handle join events
	server.OnEvent("/", EventJoin, func(c socketio.Conn, req joinRequest) {
		conv, err := bridge.Join(context.Background(), c.ID(), req.MatchID)
		if err != nil {
			log.Info("Join failed", zap.String("conn", c.ID()), zap.String("matchId", req.MatchID), zap.Error(err))
			c.Emit(EventError, errorFor(err))
			return
		}
		c.Emit(EventJoined, joinedPayload{MatchID: req.MatchID, ConversationID: conv.ConversationID})
	})

	// Handle leave events
	server.OnEvent("/", EventLeave, func(c socketio.Conn, req joinRequest) {
		bridge.Leave(c.ID(), req.MatchID)
	})

	// Handle send events; the sender receives its own message through the relay.
	server.OnEvent("/", EventSend, func(c socketio.Conn, req sendRequest) {
		if _, err := bridge.Send(context.Background(), c.ID(), req.MatchID, req.Content); err != nil {
			log.Info("Send failed", zap.String("conn", c.ID()), zap.String("matchId", req.MatchID), zap.Error(err))
			c.Emit(EventError, errorFor(err))
		}
	})

	server.OnError("/", func(c socketio.Conn, err error) {
		if c == nil {
			log.Warn("Socket error", zap.Error(err))
			return
		}
		log.Warn("Socket error", zap.String("conn", c.ID()), zap.Error(err))
	})

	// Handle disconnection
	server.OnDisconnect("/", func(c socketio.Conn, reason string) {
		bridge.Disconnect(c.ID())
		log.Info("Socket disconnected", zap.String("conn", c.ID()), zap.String("reason", reason))
	})

	return server
}
