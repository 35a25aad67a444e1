package services

import (
	"context"
	"time"

	"peerlearn_server/models"
	"peerlearn_server/repo"
)

// DashboardService aggregates a user's profile and activity.
type DashboardService struct {
	directory     repo.Directory
	matches       repo.MatchStore
	conversations *ConversationService
	timeout       time.Duration
}

func NewDashboardService(directory repo.Directory, matches repo.MatchStore, conversations *ConversationService, timeout time.Duration) *DashboardService {
	return &DashboardService{directory: directory, matches: matches, conversations: conversations, timeout: timeout}
}

// Me returns the caller's profile and the communities they belong to.
func (s *DashboardService) Me(ctx context.Context, userID string) (models.User, []models.CommunityMember, error) {
	user, err := readStorage(ctx, s.timeout, "get user", func(ctx context.Context) (models.User, error) {
		return s.directory.GetUser(ctx, userID)
	})
	if err != nil {
		return models.User{}, nil, err
	}
	memberships, err := s.memberships(ctx, userID)
	if err != nil {
		return models.User{}, nil, err
	}
	return user, memberships, nil
}

func (s *DashboardService) Stats(ctx context.Context, userID string) (models.DashboardStats, error) {
	memberships, err := s.memberships(ctx, userID)
	if err != nil {
		return models.DashboardStats{}, err
	}
	matches, err := readStorage(ctx, s.timeout, "list matches for user", func(ctx context.Context) ([]models.Match, error) {
		return s.matches.ListMatchesForUser(ctx, userID)
	})
	if err != nil {
		return models.DashboardStats{}, err
	}
	items, err := s.conversations.ListConversations(ctx, userID, 0)
	if err != nil {
		return models.DashboardStats{}, err
	}

	stats := models.DashboardStats{Communities: len(memberships)}
	for _, m := range matches {
		if m.Status == models.MatchStatusAccepted {
			stats.ActiveMatches++
		} else {
			stats.PendingMatches++
		}
	}
	for _, it := range items {
		if it.ConversationID != "" {
			stats.Conversations++
		}
	}
	return stats, nil
}

// Recent returns the most recently active conversations.
func (s *DashboardService) Recent(ctx context.Context, userID string, limit int) ([]models.ConversationListItem, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.conversations.ListConversations(ctx, userID, limit)
}

func (s *DashboardService) memberships(ctx context.Context, userID string) ([]models.CommunityMember, error) {
	out, err := readStorage(ctx, s.timeout, "list memberships", func(ctx context.Context) ([]models.CommunityMember, error) {
		return s.directory.ListMemberships(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.CommunityMember{}
	}
	return out, nil
}
