package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"peerlearn_server/models"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "to": true, "of": true,
	"in": true, "for": true, "with": true, "on": true, "my": true, "how": true,
	"learn": true, "learning": true, "get": true, "better": true, "at": true,
}

// HeuristicScorer scores by goal vocabulary overlap (Jaccard similarity of
// the significant words). It needs no external service.
type HeuristicScorer struct{}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

func (h *HeuristicScorer) Score(ctx context.Context, current Profile, candidates []Profile) ([]models.ScoredCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mine := goalTerms(current.Goals)

	results := make([]models.ScoredCandidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.ID == current.ID {
			continue
		}
		theirs := goalTerms(cand.Goals)
		shared := intersect(mine, theirs)

		score := 0
		if union := len(mine) + len(theirs) - len(shared); union > 0 {
			score = int(math.Round(100 * float64(len(shared)) / float64(union)))
		}
		results = append(results, models.ScoredCandidate{
			UserID:     cand.ID,
			Name:       cand.Name,
			MatchScore: clampScore(score),
			Reason:     reasonFor(shared),
		})
	}
	sortByScore(results)
	return results, nil
}

func goalTerms(goals []string) map[string]bool {
	terms := make(map[string]bool)
	for _, goal := range goals {
		for _, word := range strings.FieldsFunc(strings.ToLower(goal), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
		}) {
			if len(word) > 1 && !stopWords[word] {
				terms[word] = true
			}
		}
	}
	return terms
}

func intersect(a, b map[string]bool) []string {
	var out []string
	for term := range a {
		if b[term] {
			out = append(out, term)
		}
	}
	sort.Strings(out)
	return out
}

func reasonFor(shared []string) string {
	switch len(shared) {
	case 0:
		return "No overlapping learning goals yet."
	case 1:
		return fmt.Sprintf("Both of you are working on %s.", shared[0])
	default:
		return fmt.Sprintf("You share goals around %s.", strings.Join(shared, ", "))
	}
}
