package socket

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"peerlearn_server/apperrors"
	"peerlearn_server/auth"
	"peerlearn_server/fanout"
	"peerlearn_server/models"
	"peerlearn_server/services"
)

// Event names exchanged with clients.
const (
	EventJoin       = "join"
	EventLeave      = "leave"
	EventSend       = "send"
	EventNewMessage = "new-message"
	EventJoined     = "joined"
	EventError      = "chat-error"
)

const subscribeTimeout = 5 * time.Second

// emitter is the outbound half of a client connection.
type emitter interface {
	Emit(event string, v ...interface{})
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type joinedPayload struct {
	MatchID        string `json:"matchId"`
	ConversationID string `json:"conversationId"`
}

// Bridge connects socket clients to conversation topics. Every connection has
// its own subscriptions and its own duplicate filter.
type Bridge struct {
	convs       *services.ConversationService
	chat        *services.ChatService
	broker      fanout.Broker
	tokens      *auth.JWTManager
	dedupWindow int
	log         *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	userID string
	out    emitter
	dedup  *fanout.Deduper

	mu     sync.Mutex
	subs   map[string]*fanout.Subscription
	closed bool
}

func NewBridge(convs *services.ConversationService, chat *services.ChatService, broker fanout.Broker,
	tokens *auth.JWTManager, dedupWindow int, log *zap.Logger) *Bridge {
	return &Bridge{
		convs:       convs,
		chat:        chat,
		broker:      broker,
		tokens:      tokens,
		dedupWindow: dedupWindow,
		log:         log,
		sessions:    make(map[string]*session),
	}
}

// Connect verifies the connection's access token, taken from the
// Authorization header or the token query parameter.
func (b *Bridge) Connect(connID string, header http.Header, query url.Values, out emitter) (auth.Identity, error) {
	raw, ok := auth.ExtractBearerToken(header.Get("Authorization"))
	if !ok {
		raw = query.Get("token")
	}
	if raw == "" {
		return auth.Identity{}, apperrors.ErrUnauthenticated
	}
	identity, err := b.tokens.ParseAccessToken(raw)
	if err != nil {
		return auth.Identity{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "invalid access token", err)
	}

	dedup, err := fanout.NewDeduper(b.dedupWindow)
	if err != nil {
		return auth.Identity{}, err
	}

	b.mu.Lock()
	b.sessions[connID] = &session{
		userID: identity.UserID,
		out:    out,
		dedup:  dedup,
		subs:   make(map[string]*fanout.Subscription),
	}
	b.mu.Unlock()
	return identity, nil
}

func (b *Bridge) session(connID string) (*session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sess, ok := b.sessions[connID]
	if !ok {
		return nil, apperrors.ErrUnauthenticated
	}
	return sess, nil
}

// Join opens the match's conversation for the connection's user and starts
// relaying its messages. Joining the same match twice is a no-op.
func (b *Bridge) Join(ctx context.Context, connID, matchID string) (models.Conversation, error) {
	sess, err := b.session(connID)
	if err != nil {
		return models.Conversation{}, err
	}
	conv, err := b.convs.GetOrCreateConversation(ctx, matchID, sess.userID)
	if err != nil {
		return models.Conversation{}, err
	}

	sess.mu.Lock()
	closed := sess.closed
	_, joined := sess.subs[matchID]
	sess.mu.Unlock()
	if closed {
		return models.Conversation{}, apperrors.ErrUnauthenticated
	}
	if joined {
		return conv, nil
	}

	subCtx, cancel := context.WithTimeout(ctx, subscribeTimeout)
	defer cancel()
	sub, err := b.broker.Subscribe(subCtx, conv.ConversationID)
	if err != nil {
		return models.Conversation{}, apperrors.Wrap(apperrors.CodeInternal, "subscribe failed", err)
	}

	// The session may have closed or joined the match while subscribing.
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		_ = sub.Close()
		return models.Conversation{}, apperrors.ErrUnauthenticated
	}
	if _, ok := sess.subs[matchID]; ok {
		sess.mu.Unlock()
		_ = sub.Close()
		return conv, nil
	}
	sess.subs[matchID] = sub
	sess.mu.Unlock()
	go b.relay(sess, sub)

	b.log.Debug("Socket joined conversation",
		zap.String("conn", connID),
		zap.String("conversationId", conv.ConversationID))
	return conv, nil
}

func (b *Bridge) relay(sess *session, sub *fanout.Subscription) {
	for msg := range sub.Messages() {
		if !sess.dedup.First(msg.MessageID) {
			continue
		}
		sess.out.Emit(EventNewMessage, msg)
	}
}

// Leave stops relaying the match's messages to the connection.
func (b *Bridge) Leave(connID, matchID string) {
	sess, err := b.session(connID)
	if err != nil {
		return
	}
	sess.mu.Lock()
	sub, ok := sess.subs[matchID]
	delete(sess.subs, matchID)
	sess.mu.Unlock()
	if ok {
		_ = sub.Close()
	}
}

// Send appends a message to the match's conversation on behalf of the
// connection's user.
func (b *Bridge) Send(ctx context.Context, connID, matchID, content string) (models.Message, error) {
	sess, err := b.session(connID)
	if err != nil {
		return models.Message{}, err
	}
	return b.chat.SendToMatch(ctx, matchID, sess.userID, content)
}

// Disconnect releases every subscription held by the connection.
func (b *Bridge) Disconnect(connID string) {
	b.mu.Lock()
	sess, ok := b.sessions[connID]
	delete(b.sessions, connID)
	b.mu.Unlock()
	if !ok {
		return
	}

	sess.mu.Lock()
	sess.closed = true
	subs := sess.subs
	sess.subs = nil
	sess.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Close()
	}
}

// Connections is the number of authenticated connections.
func (b *Bridge) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

func errorFor(err error) errorPayload {
	return errorPayload{Code: string(apperrors.CodeOf(err)), Message: apperrors.MessageOf(err)}
}
