package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"peerlearn_server/apperrors"
	"peerlearn_server/fanout"
	"peerlearn_server/metrics"
	"peerlearn_server/models"
	"peerlearn_server/repo"
	"peerlearn_server/utils"
)

const (
	defaultPageSize  = 50
	maxPageSize      = 200
	maxContentLength = 4000
)

// ChatService is the ordered, append-only message log of conversations.
// Committed messages are published to live subscribers after the write.
type ChatService struct {
	matches        repo.MatchStore
	conversations  repo.ConversationStore
	messages       repo.MessageStore
	convs          *ConversationService
	broker         fanout.Broker
	timeout        time.Duration
	publishTimeout time.Duration
	pageSize       int
	log            *zap.Logger
}

type ChatOptions struct {
	StorageTimeout time.Duration
	PublishTimeout time.Duration
	PageSize       int
}

func NewChatService(matches repo.MatchStore, conversations repo.ConversationStore, messages repo.MessageStore,
	convs *ConversationService, broker fanout.Broker, opts ChatOptions, log *zap.Logger) *ChatService {
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	return &ChatService{
		matches:        matches,
		conversations:  conversations,
		messages:       messages,
		convs:          convs,
		broker:         broker,
		timeout:        opts.StorageTimeout,
		publishTimeout: opts.PublishTimeout,
		pageSize:       opts.PageSize,
		log:            log,
	}
}

// Append stores a message from senderID. Once the write commits the message
// is returned even if the caller goes away, and delivery failures are only
// logged.
func (s *ChatService) Append(ctx context.Context, conversationID, senderID, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, apperrors.ErrEmptyContent
	}
	if len(content) > maxContentLength {
		return models.Message{}, apperrors.InvalidArg("message content is too long")
	}

	conv, err := readStorage(ctx, s.timeout, "get conversation", func(ctx context.Context) (models.Conversation, error) {
		return s.conversations.GetConversation(ctx, conversationID)
	})
	if err != nil {
		return models.Message{}, err
	}
	m, err := readStorage(ctx, s.timeout, "get match", func(ctx context.Context) (models.Match, error) {
		return s.matches.GetMatch(ctx, conv.MatchID)
	})
	if err != nil {
		return models.Message{}, err
	}
	if !m.HasParticipant(senderID) {
		return models.Message{}, apperrors.ErrUnauthorized
	}

	now := time.Now().UTC()
	id := utils.NewMessageID(now)
	msg := models.Message{
		MessageID:      id,
		ConversationID: conv.ConversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      now,
		Seq:            models.MessageSeq(now, id),
	}

	// The write must not be abandoned half way by a disconnecting client.
	durable := context.WithoutCancel(ctx)
	_, err = callWithTimeout(durable, s.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.messages.AppendMessage(ctx, msg)
	})
	if err != nil {
		s.log.Error("Message append failed", zap.String("conversationId", conv.ConversationID), zap.Error(err))
		return models.Message{}, err
	}
	metrics.MessagesAppended.Inc()

	_, err = callWithTimeout(durable, s.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.conversations.TouchConversation(ctx, conv.ConversationID, now)
	})
	if err != nil {
		s.log.Warn("lastMessageAt update failed", zap.String("conversationId", conv.ConversationID), zap.Error(err))
	}

	s.publish(durable, msg)
	return msg, nil
}

func (s *ChatService) publish(ctx context.Context, msg models.Message) {
	if s.broker == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.broker.Publish(pubCtx, msg.ConversationID, msg); err != nil {
		metrics.PublishFailures.Inc()
		s.log.Warn("Message publish failed",
			zap.String("conversationId", msg.ConversationID),
			zap.String("messageId", msg.MessageID),
			zap.Error(err))
	}
}

// ListSince returns messages in ascending Seq order. Without afterSeq it
// returns the latest page; with it, the first page strictly after afterSeq.
func (s *ChatService) ListSince(ctx context.Context, conversationID, afterSeq string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = s.pageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	msgs, err := readStorage(ctx, s.timeout, "list messages", func(ctx context.Context) ([]models.Message, error) {
		if afterSeq == "" {
			return s.messages.ListLatestMessages(ctx, conversationID, limit)
		}
		return s.messages.ListMessagesAfter(ctx, conversationID, afterSeq, limit)
	})
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// Purge deletes every message of a conversation.
func (s *ChatService) Purge(ctx context.Context, conversationID string) (int, error) {
	return callWithTimeout(ctx, s.timeout, func(ctx context.Context) (int, error) {
		return s.messages.PurgeMessages(ctx, conversationID)
	})
}

// SendToMatch opens the match's conversation if needed and appends to it.
func (s *ChatService) SendToMatch(ctx context.Context, matchID, senderID, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, apperrors.ErrEmptyContent
	}
	conv, err := s.convs.GetOrCreateConversation(ctx, matchID, senderID)
	if err != nil {
		return models.Message{}, err
	}
	return s.Append(ctx, conv.ConversationID, senderID, content)
}

// HistoryForMatch opens the match's conversation if needed and lists it.
func (s *ChatService) HistoryForMatch(ctx context.Context, matchID, userID, afterSeq string, limit int) (models.Conversation, []models.Message, error) {
	conv, err := s.convs.GetOrCreateConversation(ctx, matchID, userID)
	if err != nil {
		return models.Conversation{}, nil, err
	}
	msgs, err := s.ListSince(ctx, conv.ConversationID, afterSeq, limit)
	if err != nil {
		return models.Conversation{}, nil, err
	}
	return conv, msgs, nil
}
