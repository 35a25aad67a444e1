// Package repo declares the storage ports shared by the dynamo and sqlstore drivers.
package repo

import (
	"context"
	"time"

	"peerlearn_server/models"
)

// UpsertOutcome describes what a pending upsert did to the registry.
type UpsertOutcome string

const (
	OutcomeCreated   UpsertOutcome = "created"
	OutcomeRefreshed UpsertOutcome = "refreshed"
	OutcomeKept      UpsertOutcome = "kept"
)

// MatchStore persists matches. Uniqueness of (lo, hi, community) must be
// enforced by the backend's conditional writes.
type MatchStore interface {
	// InsertOrGetMatch inserts m unless a match for the same pair and
	// community exists, in which case the existing row is returned untouched.
	InsertOrGetMatch(ctx context.Context, m models.Match) (models.Match, bool, error)
	// UpsertPendingMatch inserts m as pending, or marks an existing pending
	// row as refreshed. An accepted row is never modified.
	UpsertPendingMatch(ctx context.Context, m models.Match) (models.Match, UpsertOutcome, error)
	GetMatch(ctx context.Context, matchID string) (models.Match, error)
	ListMatchesForUser(ctx context.Context, userID string) ([]models.Match, error)
	DeleteMatch(ctx context.Context, m models.Match) error
}

// ConversationStore persists conversations, at most one per match.
type ConversationStore interface {
	// GetOrCreateConversation returns the conversation of c.MatchID, creating
	// c if none exists. It fails with NotFound when the match is gone.
	GetOrCreateConversation(ctx context.Context, c models.Conversation) (models.Conversation, bool, error)
	GetConversation(ctx context.Context, conversationID string) (models.Conversation, error)
	FindConversationByMatch(ctx context.Context, matchID string) (models.Conversation, error)
	TouchConversation(ctx context.Context, conversationID string, at time.Time) error
	DeleteConversation(ctx context.Context, c models.Conversation) error
}

// MessageStore is the append-only per-conversation message log.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg models.Message) error
	// ListMessagesAfter returns up to limit messages with Seq > afterSeq, ascending.
	ListMessagesAfter(ctx context.Context, conversationID, afterSeq string, limit int) ([]models.Message, error)
	// ListLatestMessages returns the newest limit messages, ascending.
	ListLatestMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	PurgeMessages(ctx context.Context, conversationID string) (int, error)
}

// Directory is the read side of identity and community membership, plus the
// thin writes the product exposes for joining communities and setting goals.
type Directory interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	GetUsers(ctx context.Context, userIDs []string) (map[string]models.User, error)
	UpsertUser(ctx context.Context, u models.User) error
	IsMember(ctx context.Context, communityID, userID string) (bool, error)
	Join(ctx context.Context, m models.CommunityMember) (bool, error)
	Leave(ctx context.Context, communityID, userID string) error
	ListMembers(ctx context.Context, communityID string) ([]models.CommunityMember, error)
	ListMemberships(ctx context.Context, userID string) ([]models.CommunityMember, error)
	AddGoal(ctx context.Context, g models.LearningGoal) error
	ListGoals(ctx context.Context, userID, communityID string) ([]models.LearningGoal, error)
}

// Store is implemented by every storage driver.
type Store interface {
	MatchStore
	ConversationStore
	MessageStore
	Directory
	Migrate(ctx context.Context) error
	Close() error
}
