package models

import "time"

// User is the subset of the identity provider's profile this service reads.
type User struct {
	UserID      string `dynamodbav:"userId" json:"userId"`
	DisplayName string `dynamodbav:"displayName,omitempty" json:"displayName"`
	Email       string `dynamodbav:"email,omitempty" json:"email,omitempty"`
	AvatarRef   string `dynamodbav:"avatarRef,omitempty" json:"avatarRef,omitempty"`
}

// CommunityMember records that a user belongs to a community.
type CommunityMember struct {
	CommunityID string    `dynamodbav:"communityId" json:"communityId"`
	UserID      string    `dynamodbav:"userId" json:"userId"`
	JoinedAt    time.Time `dynamodbav:"joinedAt" json:"joinedAt"`
}

// LearningGoal is a free-text goal a user holds inside a community.
type LearningGoal struct {
	GoalID      string    `dynamodbav:"goalId" json:"goalId"`
	UserID      string    `dynamodbav:"userId" json:"userId"`
	CommunityID string    `dynamodbav:"communityId" json:"communityId"`
	Title       string    `dynamodbav:"title" json:"title"`
	CreatedAt   time.Time `dynamodbav:"createdAt" json:"createdAt"`
}

// MemberProfile is a community member together with their goals, the input to scoring.
type MemberProfile struct {
	User  User           `json:"user"`
	Goals []LearningGoal `json:"goals"`
}

// DashboardStats summarises a user's activity.
type DashboardStats struct {
	Communities    int `json:"communities"`
	ActiveMatches  int `json:"activeMatches"`
	PendingMatches int `json:"pendingMatches"`
	Conversations  int `json:"conversations"`
}
