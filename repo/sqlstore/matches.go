package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"peerlearn_server/apperrors"
	"peerlearn_server/models"
	"peerlearn_server/repo"
)

const matchColumns = "id, lo_user_id, hi_user_id, community_id, status, created_at"

// The no-op DO UPDATE makes RETURNING yield the existing row on conflict.
const insertOrGetMatchSQL = `
INSERT INTO matches (id, lo_user_id, hi_user_id, community_id, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (lo_user_id, hi_user_id, community_id)
DO UPDATE SET status = matches.status
RETURNING ` + matchColumns

const upsertPendingMatchSQL = `
INSERT INTO matches (id, lo_user_id, hi_user_id, community_id, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (lo_user_id, hi_user_id, community_id)
DO UPDATE SET status = CASE WHEN matches.status = 'accepted' THEN matches.status ELSE excluded.status END
RETURNING ` + matchColumns

func scanMatch(row interface{ Scan(...any) error }) (models.Match, error) {
	var m models.Match
	err := row.Scan(&m.MatchID, &m.LoUserID, &m.HiUserID, &m.CommunityID, &m.Status, &m.CreatedAt)
	return m, err
}

func matchArgs(m models.Match) []any {
	return []any{m.MatchID, m.LoUserID, m.HiUserID, m.CommunityID, m.Status, m.CreatedAt.UTC()}
}

func (s *Store) InsertOrGetMatch(ctx context.Context, m models.Match) (models.Match, bool, error) {
	got, err := scanMatch(s.db.QueryRowContext(ctx, insertOrGetMatchSQL, matchArgs(m)...))
	if err != nil {
		return models.Match{}, false, storageErr("insert match", err)
	}
	return got, got.MatchID == m.MatchID, nil
}

func (s *Store) UpsertPendingMatch(ctx context.Context, m models.Match) (models.Match, repo.UpsertOutcome, error) {
	m.Status = models.MatchStatusPending
	got, err := scanMatch(s.db.QueryRowContext(ctx, upsertPendingMatchSQL, matchArgs(m)...))
	if err != nil {
		return models.Match{}, "", storageErr("upsert pending match", err)
	}
	switch {
	case got.MatchID == m.MatchID:
		return got, repo.OutcomeCreated, nil
	case got.Status == models.MatchStatusAccepted:
		return got, repo.OutcomeKept, nil
	default:
		return got, repo.OutcomeRefreshed, nil
	}
}

func (s *Store) GetMatch(ctx context.Context, matchID string) (models.Match, error) {
	m, err := scanMatch(s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1`, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Match{}, apperrors.NotFound("match not found")
	}
	if err != nil {
		return models.Match{}, storageErr("get match", err)
	}
	return m, nil
}

func (s *Store) ListMatchesForUser(ctx context.Context, userID string) ([]models.Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE lo_user_id = $1 OR hi_user_id = $2 ORDER BY created_at DESC, id`,
		userID, userID)
	if err != nil {
		return nil, storageErr("list matches", err)
	}
	defer rows.Close()

	var out []models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, storageErr("scan match", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list matches", err)
	}
	return out, nil
}

// DeleteMatch removes the match. The schema cascades to its conversation and messages.
func (s *Store) DeleteMatch(ctx context.Context, m models.Match) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, m.MatchID); err != nil {
		return storageErr("delete match", err)
	}
	return nil
}
