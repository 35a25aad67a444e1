package sqlstore

import (
	"context"

	"peerlearn_server/models"
)

const messageColumns = "id, conversation_id, sender_id, content, created_at, seq"

func (s *Store) AppendMessage(ctx context.Context, msg models.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.MessageID, msg.ConversationID, msg.SenderID, msg.Content, msg.CreatedAt.UTC(), msg.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			// Same id re-appended by a retry; the first write stands.
			return nil
		}
		return storageErr("append message", err)
	}
	return nil
}

func (s *Store) ListMessagesAfter(ctx context.Context, conversationID, afterSeq string, limit int) ([]models.Message, error) {
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE conversation_id = $1 AND seq > $2
		 ORDER BY seq ASC LIMIT $3`,
		conversationID, afterSeq, limit)
}

func (s *Store) ListLatestMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	msgs, err := s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE conversation_id = $1
		 ORDER BY seq DESC LIMIT $2`,
		conversationID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *Store) PurgeMessages(ctx context.Context, conversationID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return 0, storageErr("purge messages", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("purge messages", err)
	}
	return int(n), nil
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list messages", err)
	}
	defer rows.Close()

	msgs := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.MessageID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt, &m.Seq); err != nil {
			return nil, storageErr("scan message", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list messages", err)
	}
	return msgs, nil
}
