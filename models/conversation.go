package models

import "time"

// Conversation is created lazily, at most once per match.
type Conversation struct {
	ConversationID string     `dynamodbav:"conversationId" json:"conversationId"`
	MatchID        string     `dynamodbav:"matchId" json:"matchId"`
	CreatedAt      time.Time  `dynamodbav:"createdAt" json:"createdAt"`
	LastMessageAt  *time.Time `dynamodbav:"lastMessageAt,omitempty" json:"lastMessageAt,omitempty"`
}

// ConversationListItem combines a match with the partner's profile and the latest activity.
type ConversationListItem struct {
	MatchID        string     `json:"matchId"`
	ConversationID string     `json:"conversationId,omitempty"`
	CommunityID    string     `json:"communityId"`
	Status         string     `json:"status"`
	PartnerID      string     `json:"partnerId"`
	PartnerName    string     `json:"partnerName,omitempty"`
	PartnerAvatar  string     `json:"partnerAvatar,omitempty"`
	LastMessage    *Message   `json:"lastMessage,omitempty"`
	LastMessageAt  *time.Time `json:"lastMessageAt,omitempty"`
	MatchedAt      time.Time  `json:"matchedAt"`
}

// ActivityAt is the time used to order conversation lists.
func (c ConversationListItem) ActivityAt() time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.MatchedAt
}
