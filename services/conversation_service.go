package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"peerlearn_server/apperrors"
	"peerlearn_server/metrics"
	"peerlearn_server/models"
	"peerlearn_server/repo"
	"peerlearn_server/utils"
)

const enrichConcurrency = 8

// AvatarSigner turns a stored avatar reference into a URL a client can load.
type AvatarSigner interface {
	ReadURL(ctx context.Context, key string) (string, error)
}

// ConversationService materializes the single conversation of a match.
type ConversationService struct {
	matches       repo.MatchStore
	conversations repo.ConversationStore
	messages      repo.MessageStore
	directory     repo.Directory
	avatars       AvatarSigner
	timeout       time.Duration
	log           *zap.Logger
}

func NewConversationService(matches repo.MatchStore, conversations repo.ConversationStore, messages repo.MessageStore,
	directory repo.Directory, avatars AvatarSigner, timeout time.Duration, log *zap.Logger) *ConversationService {
	return &ConversationService{
		matches:       matches,
		conversations: conversations,
		messages:      messages,
		directory:     directory,
		avatars:       avatars,
		timeout:       timeout,
		log:           log,
	}
}

// GetOrCreateConversation returns the conversation of a match, creating it
// on first access. Concurrent callers all receive the same row.
func (s *ConversationService) GetOrCreateConversation(ctx context.Context, matchID, userID string) (models.Conversation, error) {
	if matchID == "" {
		return models.Conversation{}, apperrors.InvalidArg("matchId is required")
	}
	m, err := readStorage(ctx, s.timeout, "get match", func(ctx context.Context) (models.Match, error) {
		return s.matches.GetMatch(ctx, matchID)
	})
	if err != nil {
		return models.Conversation{}, err
	}
	if !m.HasParticipant(userID) {
		return models.Conversation{}, apperrors.ErrUnauthorized
	}

	proposed := models.Conversation{
		ConversationID: utils.NewID(),
		MatchID:        m.MatchID,
		CreatedAt:      time.Now().UTC(),
	}

	var created bool
	conv, err := readStorage(ctx, s.timeout, "get or create conversation", func(ctx context.Context) (models.Conversation, error) {
		c, ok, err := s.conversations.GetOrCreateConversation(ctx, proposed)
		created = ok
		return c, err
	})
	if err != nil {
		return models.Conversation{}, err
	}

	if created {
		metrics.ConversationsCreated.Inc()
		s.log.Info("Conversation created",
			zap.String("conversationId", conv.ConversationID),
			zap.String("matchId", m.MatchID))
	}
	return conv, nil
}

// ListConversations returns the user's matches enriched with the partner's
// profile and the latest message, most recently active first.
func (s *ConversationService) ListConversations(ctx context.Context, userID string, limit int) ([]models.ConversationListItem, error) {
	matches, err := readStorage(ctx, s.timeout, "list matches for user", func(ctx context.Context) ([]models.Match, error) {
		return s.matches.ListMatchesForUser(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []models.ConversationListItem{}, nil
	}

	partnerIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		if p, ok := m.Partner(userID); ok {
			partnerIDs = append(partnerIDs, p)
		}
	}
	partners, err := readStorage(ctx, s.timeout, "get users", func(ctx context.Context) (map[string]models.User, error) {
		return s.directory.GetUsers(ctx, partnerIDs)
	})
	if err != nil {
		return nil, err
	}

	items := make([]models.ConversationListItem, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, m := range matches {
		i, m := i, m
		g.Go(func() error {
			item, err := s.enrich(gctx, userID, m, partners)
			if err != nil {
				return err
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(a, b int) bool {
		return items[a].ActivityAt().After(items[b].ActivityAt())
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *ConversationService) enrich(ctx context.Context, userID string, m models.Match, partners map[string]models.User) (models.ConversationListItem, error) {
	partnerID, _ := m.Partner(userID)
	item := models.ConversationListItem{
		MatchID:     m.MatchID,
		CommunityID: m.CommunityID,
		Status:      m.Status,
		PartnerID:   partnerID,
		MatchedAt:   m.CreatedAt,
	}

	if partner, ok := partners[partnerID]; ok {
		item.PartnerName = partner.DisplayName
		item.PartnerAvatar = s.avatarURL(ctx, partner.AvatarRef)
	}

	conv, err := readStorage(ctx, s.timeout, "find conversation by match", func(ctx context.Context) (models.Conversation, error) {
		return s.conversations.FindConversationByMatch(ctx, m.MatchID)
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return item, nil
	}
	if err != nil {
		return models.ConversationListItem{}, err
	}
	item.ConversationID = conv.ConversationID
	item.LastMessageAt = conv.LastMessageAt

	latest, err := readStorage(ctx, s.timeout, "list latest messages", func(ctx context.Context) ([]models.Message, error) {
		return s.messages.ListLatestMessages(ctx, conv.ConversationID, 1)
	})
	if err != nil {
		return models.ConversationListItem{}, err
	}
	if len(latest) > 0 {
		last := latest[0]
		item.LastMessage = &last
		if item.LastMessageAt == nil || last.CreatedAt.After(*item.LastMessageAt) {
			at := last.CreatedAt
			item.LastMessageAt = &at
		}
	}
	return item, nil
}

func (s *ConversationService) avatarURL(ctx context.Context, ref string) string {
	if ref == "" || s.avatars == nil {
		return ref
	}
	url, err := s.avatars.ReadURL(ctx, ref)
	if err != nil {
		s.log.Warn("Avatar presign failed", zap.String("key", ref), zap.Error(err))
		return ""
	}
	return url
}
