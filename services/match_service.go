package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"peerlearn_server/apperrors"
	"peerlearn_server/metrics"
	"peerlearn_server/models"
	"peerlearn_server/repo"
	"peerlearn_server/utils"
)

// MatchService owns the match registry: one match per unordered pair of
// users inside a community.
type MatchService struct {
	matches       repo.MatchStore
	conversations repo.ConversationStore
	messages      repo.MessageStore
	threshold     int
	timeout       time.Duration
	log           *zap.Logger
}

func NewMatchService(matches repo.MatchStore, conversations repo.ConversationStore, messages repo.MessageStore,
	threshold int, timeout time.Duration, log *zap.Logger) *MatchService {
	if threshold <= 0 {
		threshold = models.DefaultMatchThreshold
	}
	return &MatchService{
		matches:       matches,
		conversations: conversations,
		messages:      messages,
		threshold:     threshold,
		timeout:       timeout,
		log:           log,
	}
}

// Threshold is the minimum score for a scored candidate to become a match.
func (s *MatchService) Threshold() int {
	return s.threshold
}

// Connect records an explicit connection between actorID and targetID. If
// the pair already has a match in the community its id is returned and its
// status is left untouched.
func (s *MatchService) Connect(ctx context.Context, actorID, targetID, communityID string) (models.Match, error) {
	if communityID == "" {
		return models.Match{}, apperrors.InvalidArg("communityId is required")
	}
	lo, hi, err := utils.CanonicalPair(actorID, targetID)
	if err != nil {
		return models.Match{}, err
	}

	proposed := models.Match{
		MatchID:     utils.NewID(),
		LoUserID:    lo,
		HiUserID:    hi,
		CommunityID: communityID,
		Status:      models.MatchStatusAccepted,
		CreatedAt:   time.Now().UTC(),
	}

	var (
		got     models.Match
		created bool
	)
	err = retryRegistry(ctx, s.timeout, "connect", func(ctx context.Context) error {
		var err error
		got, created, err = s.matches.InsertOrGetMatch(ctx, proposed)
		return err
	})
	if err != nil {
		s.log.Error("Connect failed", zap.String("communityId", communityID), zap.Error(err))
		return models.Match{}, err
	}

	outcome := "existing"
	if created {
		outcome = "created"
	}
	metrics.RecordMatch("connect", outcome)
	s.log.Info("Connection recorded",
		zap.String("matchId", got.MatchID),
		zap.String("communityId", communityID),
		zap.Bool("created", created))
	return got, nil
}

// RegisterScoredMatches upserts every candidate scoring at or above the
// threshold as a pending match. Accepted matches are never downgraded. The
// result keeps the input order; MatchID stays nil below the threshold.
func (s *MatchService) RegisterScoredMatches(ctx context.Context, userID, communityID string, candidates []models.ScoredCandidate) ([]models.ScoredCandidate, error) {
	out := make([]models.ScoredCandidate, len(candidates))
	for i, cand := range candidates {
		cand.MatchID = nil
		if cand.MatchScore < s.threshold {
			out[i] = cand
			continue
		}

		lo, hi, err := utils.CanonicalPair(userID, cand.UserID)
		if err != nil {
			return nil, err
		}
		proposed := models.Match{
			MatchID:     utils.NewID(),
			LoUserID:    lo,
			HiUserID:    hi,
			CommunityID: communityID,
			Status:      models.MatchStatusPending,
			CreatedAt:   time.Now().UTC(),
		}

		var (
			got     models.Match
			outcome repo.UpsertOutcome
		)
		err = retryRegistry(ctx, s.timeout, "register scored match", func(ctx context.Context) error {
			var err error
			got, outcome, err = s.matches.UpsertPendingMatch(ctx, proposed)
			return err
		})
		if err != nil {
			return nil, err
		}

		metrics.RecordMatch("scoring", string(outcome))
		matchID := got.MatchID
		cand.MatchID = &matchID
		out[i] = cand
	}
	return out, nil
}

func (s *MatchService) GetMatch(ctx context.Context, matchID string) (models.Match, error) {
	if matchID == "" {
		return models.Match{}, apperrors.InvalidArg("matchId is required")
	}
	return readStorage(ctx, s.timeout, "get match", func(ctx context.Context) (models.Match, error) {
		return s.matches.GetMatch(ctx, matchID)
	})
}

// ListForUser returns every match the user takes part in, newest first.
func (s *MatchService) ListForUser(ctx context.Context, userID string) ([]models.Match, error) {
	return readStorage(ctx, s.timeout, "list matches for user", func(ctx context.Context) ([]models.Match, error) {
		return s.matches.ListMatchesForUser(ctx, userID)
	})
}

// DeleteMatch lets a participant remove a match together with its
// conversation and messages.
func (s *MatchService) DeleteMatch(ctx context.Context, matchID, actorID string) error {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !m.HasParticipant(actorID) {
		return apperrors.ErrUnauthorized
	}
	return s.purge(ctx, m)
}

// PurgeMatch removes a match and its data without a participant check.
func (s *MatchService) PurgeMatch(ctx context.Context, matchID string) error {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	return s.purge(ctx, m)
}

// PurgeUserMatches removes every match the user takes part in, with their
// conversations and messages. It returns the number of matches removed.
func (s *MatchService) PurgeUserMatches(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, apperrors.InvalidArg("userId is required")
	}
	matches, err := s.ListForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for i, m := range matches {
		if err := s.purge(ctx, m); err != nil {
			return i, err
		}
	}
	return len(matches), nil
}

func (s *MatchService) purge(ctx context.Context, m models.Match) error {
	conv, err := readStorage(ctx, s.timeout, "find conversation by match", func(ctx context.Context) (models.Conversation, error) {
		return s.conversations.FindConversationByMatch(ctx, m.MatchID)
	})
	switch {
	case err == nil:
		removed, err := callWithTimeout(ctx, s.timeout, func(ctx context.Context) (int, error) {
			return s.messages.PurgeMessages(ctx, conv.ConversationID)
		})
		if err != nil {
			return err
		}
		_, err = callWithTimeout(ctx, s.timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.conversations.DeleteConversation(ctx, conv)
		})
		if err != nil {
			return err
		}
		s.log.Info("Conversation purged",
			zap.String("conversationId", conv.ConversationID),
			zap.Int("messages", removed))
	case errors.Is(err, apperrors.ErrNotFound):
		// no conversation was ever opened
	default:
		return err
	}

	_, err = callWithTimeout(ctx, s.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.matches.DeleteMatch(ctx, m)
	})
	if err != nil {
		return err
	}
	s.log.Info("Match deleted", zap.String("matchId", m.MatchID))
	return nil
}
