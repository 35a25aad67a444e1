package models

import "time"

// Match is the canonical, unordered pairing of two users inside one community.
// LoUserID always sorts byte-wise before HiUserID.
type Match struct {
	MatchID     string    `dynamodbav:"matchId" json:"matchId"`
	LoUserID    string    `dynamodbav:"loUserId" json:"loUserId"`
	HiUserID    string    `dynamodbav:"hiUserId" json:"hiUserId"`
	CommunityID string    `dynamodbav:"communityId" json:"communityId"`
	Status      string    `dynamodbav:"status" json:"status"`
	CreatedAt   time.Time `dynamodbav:"createdAt" json:"createdAt"`
}

// HasParticipant reports whether userID is one of the two matched users.
func (m Match) HasParticipant(userID string) bool {
	return userID != "" && (m.LoUserID == userID || m.HiUserID == userID)
}

// Partner returns the other participant.
func (m Match) Partner(userID string) (string, bool) {
	switch userID {
	case m.LoUserID:
		return m.HiUserID, true
	case m.HiUserID:
		return m.LoUserID, true
	}
	return "", false
}

// ScoredCandidate is one entry returned by the scoring adapter. MatchID is set
// once the candidate has been registered as a match.
type ScoredCandidate struct {
	UserID     string  `json:"userId"`
	Name       string  `json:"name,omitempty"`
	MatchScore int     `json:"matchScore"`
	Reason     string  `json:"reason"`
	MatchID    *string `json:"matchId"`
}
