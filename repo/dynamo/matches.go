package dynamo

import (
	"context"
	"errors"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"peerlearn_server/apperrors"
	"peerlearn_server/models"
	"peerlearn_server/repo"
	"peerlearn_server/utils"
)

type pairGuard struct {
	PairKey string `dynamodbav:"pairKey"`
	MatchID string `dynamodbav:"matchId"`
}

// createMatch writes the match and its pair guard in one transaction. It
// reports false without error when the pair already has a match.
func (s *Store) createMatch(ctx context.Context, m models.Match) (bool, error) {
	item, err := attributevalue.MarshalMap(m)
	if err != nil {
		return false, err
	}
	guard, err := attributevalue.MarshalMap(pairGuard{
		PairKey: utils.PairKey(m.CommunityID, m.LoUserID, m.HiUserID),
		MatchID: m.MatchID,
	})
	if err != nil {
		return false, err
	}

	err = s.ds.TransactWrite(ctx, []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:           aws.String(s.table(models.MatchPairsTable)),
			Item:                guard,
			ConditionExpression: aws.String("attribute_not_exists(pairKey)"),
		}},
		{Put: &types.Put{
			TableName:           aws.String(s.table(models.MatchesTable)),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(matchId)"),
		}},
	})
	if err == nil {
		return true, nil
	}
	if isConditionFailed(err) {
		return false, nil
	}
	return false, err
}

// matchByPair resolves the pair guard to the stored match.
func (s *Store) matchByPair(ctx context.Context, m models.Match) (models.Match, error) {
	var guard pairGuard
	key := utils.StringKey("pairKey", utils.PairKey(m.CommunityID, m.LoUserID, m.HiUserID))
	if err := s.ds.GetInto(ctx, s.table(models.MatchPairsTable), key, &guard); err != nil {
		return models.Match{}, err
	}
	return s.GetMatch(ctx, guard.MatchID)
}

func (s *Store) InsertOrGetMatch(ctx context.Context, m models.Match) (models.Match, bool, error) {
	created, err := s.createMatch(ctx, m)
	if err != nil {
		return models.Match{}, false, storageErr("insert match", err)
	}
	if created {
		return m, true, nil
	}

	existing, err := s.matchByPair(ctx, m)
	if err != nil {
		// The guard existed a moment ago; a concurrent delete is in flight.
		return models.Match{}, false, storageErr("read existing match", err)
	}
	return existing, false, nil
}

func (s *Store) UpsertPendingMatch(ctx context.Context, m models.Match) (models.Match, repo.UpsertOutcome, error) {
	m.Status = models.MatchStatusPending
	created, err := s.createMatch(ctx, m)
	if err != nil {
		return models.Match{}, "", storageErr("upsert pending match", err)
	}
	if created {
		return m, repo.OutcomeCreated, nil
	}

	existing, err := s.matchByPair(ctx, m)
	if err != nil {
		return models.Match{}, "", storageErr("read existing match", err)
	}

	attrs, err := s.ds.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table(models.MatchesTable)),
		Key:                 utils.StringKey("matchId", existing.MatchID),
		UpdateExpression:    aws.String("SET #status = :pending"),
		ConditionExpression: aws.String("attribute_exists(matchId) AND #status <> :accepted"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending":  utils.StringAttr(models.MatchStatusPending),
			":accepted": utils.StringAttr(models.MatchStatusAccepted),
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return existing, repo.OutcomeKept, nil
		}
		return models.Match{}, "", storageErr("refresh pending match", err)
	}

	var refreshed models.Match
	if err := attributevalue.UnmarshalMap(attrs, &refreshed); err != nil {
		return models.Match{}, "", storageErr("decode match", err)
	}
	return refreshed, repo.OutcomeRefreshed, nil
}

func (s *Store) GetMatch(ctx context.Context, matchID string) (models.Match, error) {
	var m models.Match
	if err := s.ds.GetInto(ctx, s.table(models.MatchesTable), utils.StringKey("matchId", matchID), &m); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return models.Match{}, apperrors.NotFound("match not found")
		}
		return models.Match{}, storageErr("get match", err)
	}
	return m, nil
}

func (s *Store) ListMatchesForUser(ctx context.Context, userID string) ([]models.Match, error) {
	values := map[string]types.AttributeValue{":u": utils.StringAttr(userID)}

	var out []models.Match
	for _, idx := range []struct{ name, attr string }{
		{models.LoUserIndex, "loUserId"},
		{models.HiUserIndex, "hiUserId"},
	} {
		items, err := s.ds.QueryItemsWithIndex(ctx, s.table(models.MatchesTable), idx.name, idx.attr+" = :u", values)
		if err != nil {
			return nil, storageErr("list matches", err)
		}
		var page []models.Match
		if err := attributevalue.UnmarshalListOfMaps(items, &page); err != nil {
			return nil, storageErr("decode matches", err)
		}
		out = append(out, page...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].MatchID < out[j].MatchID
	})
	return out, nil
}

// DeleteMatch removes the match together with its pair guard.
func (s *Store) DeleteMatch(ctx context.Context, m models.Match) error {
	err := s.ds.TransactWrite(ctx, []types.TransactWriteItem{
		{Delete: &types.Delete{
			TableName: aws.String(s.table(models.MatchesTable)),
			Key:       utils.StringKey("matchId", m.MatchID),
		}},
		{Delete: &types.Delete{
			TableName: aws.String(s.table(models.MatchPairsTable)),
			Key:       utils.StringKey("pairKey", utils.PairKey(m.CommunityID, m.LoUserID, m.HiUserID)),
		}},
	})
	if err != nil {
		return storageErr("delete match", err)
	}
	return nil
}
