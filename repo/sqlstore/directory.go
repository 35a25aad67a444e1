package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"peerlearn_server/apperrors"
	"peerlearn_server/models"
)

func (s *Store) GetUser(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, display_name, email, avatar_ref FROM users WHERE user_id = $1`, userID).
		Scan(&u.UserID, &u.DisplayName, &u.Email, &u.AvatarRef)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperrors.NotFound("user not found")
	}
	if err != nil {
		return models.User{}, storageErr("get user", err)
	}
	return u, nil
}

func (s *Store) GetUsers(ctx context.Context, userIDs []string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(userIDs))
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, display_name, email, avatar_ref FROM users WHERE user_id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...)
	if err != nil {
		return nil, storageErr("get users", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.UserID, &u.DisplayName, &u.Email, &u.AvatarRef); err != nil {
			return nil, storageErr("scan user", err)
		}
		out[u.UserID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("get users", err)
	}
	return out, nil
}

func (s *Store) UpsertUser(ctx context.Context, u models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, display_name, email, avatar_ref) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
		   display_name = excluded.display_name,
		   email = excluded.email,
		   avatar_ref = excluded.avatar_ref`,
		u.UserID, u.DisplayName, u.Email, u.AvatarRef)
	if err != nil {
		return storageErr("upsert user", err)
	}
	return nil
}

func (s *Store) IsMember(ctx context.Context, communityID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM community_members WHERE community_id = $1 AND user_id = $2`,
		communityID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("check membership", err)
	}
	return true, nil
}

func (s *Store) Join(ctx context.Context, m models.CommunityMember) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO community_members (community_id, user_id, joined_at) VALUES ($1, $2, $3)
		 ON CONFLICT (community_id, user_id) DO NOTHING`,
		m.CommunityID, m.UserID, m.JoinedAt.UTC())
	if err != nil {
		return false, storageErr("join community", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("join community", err)
	}
	return n == 1, nil
}

func (s *Store) Leave(ctx context.Context, communityID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM community_members WHERE community_id = $1 AND user_id = $2`, communityID, userID)
	if err != nil {
		return storageErr("leave community", err)
	}
	return nil
}

func (s *Store) ListMembers(ctx context.Context, communityID string) ([]models.CommunityMember, error) {
	return s.queryMembers(ctx,
		`SELECT community_id, user_id, joined_at FROM community_members WHERE community_id = $1 ORDER BY joined_at, user_id`,
		communityID)
}

func (s *Store) ListMemberships(ctx context.Context, userID string) ([]models.CommunityMember, error) {
	return s.queryMembers(ctx,
		`SELECT community_id, user_id, joined_at FROM community_members WHERE user_id = $1 ORDER BY joined_at, community_id`,
		userID)
}

func (s *Store) queryMembers(ctx context.Context, query string, arg string) ([]models.CommunityMember, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, storageErr("list members", err)
	}
	defer rows.Close()

	var out []models.CommunityMember
	for rows.Next() {
		var m models.CommunityMember
		if err := rows.Scan(&m.CommunityID, &m.UserID, &m.JoinedAt); err != nil {
			return nil, storageErr("scan member", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list members", err)
	}
	return out, nil
}

func (s *Store) AddGoal(ctx context.Context, g models.LearningGoal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO learning_goals (id, user_id, community_id, title, created_at) VALUES ($1, $2, $3, $4, $5)`,
		g.GoalID, g.UserID, g.CommunityID, g.Title, g.CreatedAt.UTC())
	if err != nil {
		return storageErr("add goal", err)
	}
	return nil
}

func (s *Store) ListGoals(ctx context.Context, userID, communityID string) ([]models.LearningGoal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, community_id, title, created_at FROM learning_goals
		 WHERE user_id = $1 AND community_id = $2 ORDER BY created_at, id`,
		userID, communityID)
	if err != nil {
		return nil, storageErr("list goals", err)
	}
	defer rows.Close()

	var out []models.LearningGoal
	for rows.Next() {
		var g models.LearningGoal
		if err := rows.Scan(&g.GoalID, &g.UserID, &g.CommunityID, &g.Title, &g.CreatedAt); err != nil {
			return nil, storageErr("scan goal", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list goals", err)
	}
	return out, nil
}
