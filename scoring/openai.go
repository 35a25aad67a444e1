package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"peerlearn_server/models"
)

const matchingPrompt = `You pair learners inside a study community.
Given the current user and a list of candidates with their learning goals,
rate how well each candidate complements the current user on a 0-100 scale.
Respond with JSON only, shaped as:
{"matches":[{"userId":"...","matchScore":0,"reason":"one short sentence"}]}
Include every candidate exactly once.`

// OpenAIConfig configures the chat-completion backed scorer.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIScorer asks a chat-completion model to rank candidates.
type OpenAIScorer struct {
	client *openai.Client
	model  string
	log    *zap.Logger
}

func NewOpenAIScorer(cfg OpenAIConfig, log *zap.Logger) *OpenAIScorer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIScorer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		log:    log,
	}
}

type scoringRequest struct {
	CurrentUser Profile   `json:"currentUser"`
	Candidates  []Profile `json:"candidates"`
}

type scoringResponse struct {
	Matches []struct {
		UserID     string  `json:"userId"`
		MatchScore float64 `json:"matchScore"`
		Reason     string  `json:"reason"`
	} `json:"matches"`
}

func (s *OpenAIScorer) Score(ctx context.Context, current Profile, candidates []Profile) ([]models.ScoredCandidate, error) {
	if len(candidates) == 0 {
		return []models.ScoredCandidate{}, nil
	}

	payload, err := json.Marshal(scoringRequest{CurrentUser: current, Candidates: candidates})
	if err != nil {
		return nil, fmt.Errorf("encode scoring request: %w", err)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: matchingPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return s.parse(resp.Choices[0].Message.Content, candidates)
}

func (s *OpenAIScorer) parse(content string, candidates []Profile) ([]models.ScoredCandidate, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var parsed scoringResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("decode scoring response: %w", err)
	}

	byID := make(map[string]Profile, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	seen := make(map[string]bool, len(parsed.Matches))
	results := make([]models.ScoredCandidate, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		cand, ok := byID[m.UserID]
		if !ok || seen[m.UserID] {
			s.log.Debug("Ignoring scored user outside candidate set", zap.String("userId", m.UserID))
			continue
		}
		seen[m.UserID] = true
		results = append(results, models.ScoredCandidate{
			UserID:     cand.ID,
			Name:       cand.Name,
			MatchScore: clampScore(int(m.MatchScore + 0.5)),
			Reason:     m.Reason,
		})
	}
	sortByScore(results)
	return results, nil
}
