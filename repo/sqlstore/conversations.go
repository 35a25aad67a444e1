package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"peerlearn_server/apperrors"
	"peerlearn_server/models"
)

const conversationColumns = "id, match_id, created_at, last_message_at"

const getOrCreateConversationSQL = `
INSERT INTO conversations (id, match_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (match_id)
DO UPDATE SET match_id = excluded.match_id
RETURNING ` + conversationColumns

func scanConversation(row interface{ Scan(...any) error }) (models.Conversation, error) {
	var (
		c    models.Conversation
		last sql.NullTime
	)
	if err := row.Scan(&c.ConversationID, &c.MatchID, &c.CreatedAt, &last); err != nil {
		return models.Conversation{}, err
	}
	if last.Valid {
		t := last.Time
		c.LastMessageAt = &t
	}
	return c, nil
}

func (s *Store) GetOrCreateConversation(ctx context.Context, c models.Conversation) (models.Conversation, bool, error) {
	got, err := scanConversation(s.db.QueryRowContext(ctx, getOrCreateConversationSQL,
		c.ConversationID, c.MatchID, c.CreatedAt.UTC()))
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Conversation{}, false, apperrors.NotFound("match not found")
		}
		return models.Conversation{}, false, storageErr("get or create conversation", err)
	}
	return got, got.ConversationID == c.ConversationID, nil
}

func (s *Store) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, conversationID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, apperrors.NotFound("conversation not found")
	}
	if err != nil {
		return models.Conversation{}, storageErr("get conversation", err)
	}
	return c, nil
}

func (s *Store) FindConversationByMatch(ctx context.Context, matchID string) (models.Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE match_id = $1`, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, apperrors.NotFound("conversation not found")
	}
	if err != nil {
		return models.Conversation{}, storageErr("find conversation", err)
	}
	return c, nil
}

// TouchConversation moves last_message_at forward, never backward.
func (s *Store) TouchConversation(ctx context.Context, conversationID string, at time.Time) error {
	at = at.UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = $1
		 WHERE id = $2 AND (last_message_at IS NULL OR last_message_at < $3)`,
		at, conversationID, at)
	if err != nil {
		return storageErr("touch conversation", err)
	}
	return nil
}

func (s *Store) DeleteConversation(ctx context.Context, c models.Conversation) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, c.ConversationID); err != nil {
		return storageErr("delete conversation", err)
	}
	return nil
}
