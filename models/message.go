package models

import "time"

const seqTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Message is immutable once appended. Seq is the per-conversation ordering key.
type Message struct {
	MessageID      string    `dynamodbav:"messageId" json:"id"`
	ConversationID string    `dynamodbav:"conversationId" json:"conversationId"`
	SenderID       string    `dynamodbav:"senderId" json:"senderId"`
	Content        string    `dynamodbav:"content" json:"content"`
	CreatedAt      time.Time `dynamodbav:"createdAt" json:"createdAt"`
	Seq            string    `dynamodbav:"seq" json:"seq"`
}

// MessageSeq builds the ordering key (createdAt, id).
func MessageSeq(createdAt time.Time, messageID string) string {
	return SortableTime(createdAt) + "_" + messageID
}

// SortableTime formats t as fixed-width UTC so that byte-wise comparison
// follows time order. The result is valid RFC 3339.
func SortableTime(t time.Time) string {
	return t.UTC().Format(seqTimeLayout)
}
