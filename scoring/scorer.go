// Package scoring ranks community members as learning partners for a user.
package scoring

import (
	"context"
	"sort"

	"peerlearn_server/models"
)

// Profile is the scoring view of a user.
type Profile struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Goals []string `json:"goals"`
}

// Scorer returns candidates ordered by descending score.
type Scorer interface {
	Score(ctx context.Context, current Profile, candidates []Profile) ([]models.ScoredCandidate, error)
}

// ProfileFromMember converts a directory record into a scoring profile.
func ProfileFromMember(m models.MemberProfile) Profile {
	goals := make([]string, 0, len(m.Goals))
	for _, g := range m.Goals {
		goals = append(goals, g.Title)
	}
	return Profile{ID: m.User.UserID, Name: m.User.DisplayName, Goals: goals}
}

func sortByScore(results []models.ScoredCandidate) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchScore > results[j].MatchScore
	})
}

func clampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}
