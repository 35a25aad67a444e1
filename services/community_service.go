package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"peerlearn_server/apperrors"
	"peerlearn_server/models"
	"peerlearn_server/repo"
	"peerlearn_server/scoring"
	"peerlearn_server/utils"
)

// CommunityService covers membership, learning goals and partner matching
// inside a community.
type CommunityService struct {
	directory repo.Directory
	matches   *MatchService
	scorer    scoring.Scorer
	timeout   time.Duration
	log       *zap.Logger
}

func NewCommunityService(directory repo.Directory, matches *MatchService, scorer scoring.Scorer, timeout time.Duration, log *zap.Logger) *CommunityService {
	return &CommunityService{directory: directory, matches: matches, scorer: scorer, timeout: timeout, log: log}
}

func (s *CommunityService) requireMember(ctx context.Context, communityID, userID string) error {
	ok, err := readStorage(ctx, s.timeout, "is member", func(ctx context.Context) (bool, error) {
		return s.directory.IsMember(ctx, communityID, userID)
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Forbidden("not a member of this community")
	}
	return nil
}

// RunMatching scores the other members of a community against the user and
// registers the strong candidates as pending matches. When the scoring
// backend is unavailable the result is empty rather than an error.
func (s *CommunityService) RunMatching(ctx context.Context, userID, communityID string) ([]models.ScoredCandidate, error) {
	if err := s.requireMember(ctx, communityID, userID); err != nil {
		return nil, err
	}

	current, err := s.profile(ctx, userID, communityID, nil)
	if err != nil {
		return nil, err
	}
	others, err := s.Members(ctx, communityID, userID)
	if err != nil {
		return nil, err
	}
	if len(others) == 0 {
		return []models.ScoredCandidate{}, nil
	}

	candidates := make([]scoring.Profile, 0, len(others))
	for _, m := range others {
		candidates = append(candidates, scoring.ProfileFromMember(m))
	}

	scored, err := s.scorer.Score(ctx, scoring.ProfileFromMember(current), candidates)
	if errors.Is(err, apperrors.ErrScoringUnavailable) {
		s.log.Warn("Scoring unavailable, returning no matches",
			zap.String("communityId", communityID), zap.Error(err))
		return []models.ScoredCandidate{}, nil
	}
	if err != nil {
		return nil, err
	}

	return s.matches.RegisterScoredMatches(ctx, userID, communityID, scored)
}

// Members lists the community's members other than excludeUserID, each with
// their goals in that community.
func (s *CommunityService) Members(ctx context.Context, communityID, excludeUserID string) ([]models.MemberProfile, error) {
	members, err := readStorage(ctx, s.timeout, "list members", func(ctx context.Context) ([]models.CommunityMember, error) {
		return s.directory.ListMembers(ctx, communityID)
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m.UserID != excludeUserID {
			ids = append(ids, m.UserID)
		}
	}
	if len(ids) == 0 {
		return []models.MemberProfile{}, nil
	}

	users, err := readStorage(ctx, s.timeout, "get users", func(ctx context.Context) (map[string]models.User, error) {
		return s.directory.GetUsers(ctx, ids)
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.MemberProfile, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			p, err := s.profile(gctx, id, communityID, users)
			if err != nil {
				return err
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CommunityService) profile(ctx context.Context, userID, communityID string, known map[string]models.User) (models.MemberProfile, error) {
	user, ok := known[userID]
	if !ok {
		u, err := readStorage(ctx, s.timeout, "get user", func(ctx context.Context) (models.User, error) {
			return s.directory.GetUser(ctx, userID)
		})
		switch {
		case err == nil:
			user = u
		case errors.Is(err, apperrors.ErrNotFound):
			user = models.User{UserID: userID}
		default:
			return models.MemberProfile{}, err
		}
	}

	goals, err := s.Goals(ctx, userID, communityID)
	if err != nil {
		return models.MemberProfile{}, err
	}
	return models.MemberProfile{User: user, Goals: goals}, nil
}

// Join adds the user to the community. Joining twice is not an error.
func (s *CommunityService) Join(ctx context.Context, communityID, userID string) (bool, error) {
	if communityID == "" {
		return false, apperrors.InvalidArg("communityId is required")
	}
	joined, err := readStorage(ctx, s.timeout, "join", func(ctx context.Context) (bool, error) {
		return s.directory.Join(ctx, models.CommunityMember{
			CommunityID: communityID,
			UserID:      userID,
			JoinedAt:    time.Now().UTC(),
		})
	})
	if err != nil {
		return false, err
	}
	if joined {
		s.log.Info("Member joined", zap.String("communityId", communityID), zap.String("userId", userID))
	}
	return joined, nil
}

// Leave removes the membership. Existing matches are kept.
func (s *CommunityService) Leave(ctx context.Context, communityID, userID string) error {
	_, err := callWithTimeout(ctx, s.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.directory.Leave(ctx, communityID, userID)
	})
	return err
}

// Memberships lists the communities the user belongs to.
func (s *CommunityService) Memberships(ctx context.Context, userID string) ([]models.CommunityMember, error) {
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

// LeaveAll removes every membership of the user and returns how many were removed.
func (s *CommunityService) LeaveAll(ctx context.Context, userID string) (int, error) {
	memberships, err := s.Memberships(ctx, userID)
	if err != nil {
		return 0, err
	}
	for i, m := range memberships {
		if err := s.Leave(ctx, m.CommunityID, userID); err != nil {
			return i, err
		}
	}
	if len(memberships) > 0 {
		s.log.Info("Memberships removed", zap.String("userId", userID), zap.Int("count", len(memberships)))
	}
	return len(memberships), nil
}

func (s *CommunityService) IsMember(ctx context.Context, communityID, userID string) (bool, error) {
	return readStorage(ctx, s.timeout, "is member", func(ctx context.Context) (bool, error) {
		return s.directory.IsMember(ctx, communityID, userID)
	})
}

func (s *CommunityService) Goals(ctx context.Context, userID, communityID string) ([]models.LearningGoal, error) {
	goals, err := readStorage(ctx, s.timeout, "list goals", func(ctx context.Context) ([]models.LearningGoal, error) {
		return s.directory.ListGoals(ctx, userID, communityID)
	})
	if err != nil {
		return nil, err
	}
	if goals == nil {
		goals = []models.LearningGoal{}
	}
	return goals, nil
}

// AddGoal records a learning goal for a member of the community.
func (s *CommunityService) AddGoal(ctx context.Context, userID, communityID, title string) (models.LearningGoal, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.LearningGoal{}, apperrors.InvalidArg("title is required")
	}
	if err := s.requireMember(ctx, communityID, userID); err != nil {
		return models.LearningGoal{}, err
	}

	goal := models.LearningGoal{
		GoalID:      utils.NewID(),
		UserID:      userID,
		CommunityID: communityID,
		Title:       title,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := callWithTimeout(ctx, s.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.directory.AddGoal(ctx, goal)
	})
	if err != nil {
		return models.LearningGoal{}, err
	}
	return goal, nil
}
