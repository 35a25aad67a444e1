package dynamo

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"peerlearn_server/apperrors"
	"peerlearn_server/models"
	"peerlearn_server/utils"
)

type conversationGuard struct {
	MatchID        string `dynamodbav:"matchId"`
	ConversationID string `dynamodbav:"conversationId"`
}

// Positions inside the create transaction.
const (
	guardItem = iota
	conversationItem
	matchCheckItem
)

func (s *Store) GetOrCreateConversation(ctx context.Context, c models.Conversation) (models.Conversation, bool, error) {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return models.Conversation{}, false, storageErr("encode conversation", err)
	}
	guard, err := attributevalue.MarshalMap(conversationGuard{MatchID: c.MatchID, ConversationID: c.ConversationID})
	if err != nil {
		return models.Conversation{}, false, storageErr("encode conversation guard", err)
	}

	items := make([]types.TransactWriteItem, 3)
	items[guardItem] = types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(s.table(models.MatchConversationsTable)),
		Item:                guard,
		ConditionExpression: aws.String("attribute_not_exists(matchId)"),
	}}
	items[conversationItem] = types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(s.table(models.ConversationsTable)),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(conversationId)"),
	}}
	items[matchCheckItem] = types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
		TableName:           aws.String(s.table(models.MatchesTable)),
		Key:                 utils.StringKey("matchId", c.MatchID),
		ConditionExpression: aws.String("attribute_exists(matchId)"),
	}}

	err = s.ds.TransactWrite(ctx, items)
	switch {
	case err == nil:
		return c, true, nil
	case cancelledAt(err, matchCheckItem):
		return models.Conversation{}, false, apperrors.NotFound("match not found")
	case !isConditionFailed(err):
		return models.Conversation{}, false, storageErr("create conversation", err)
	}

	existing, err := s.FindConversationByMatch(ctx, c.MatchID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// The guard was removed between the failed write and this read.
			return models.Conversation{}, false, apperrors.Storage("conversation changed concurrently", err)
		}
		return models.Conversation{}, false, err
	}
	return existing, false, nil
}

func (s *Store) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	var c models.Conversation
	err := s.ds.GetInto(ctx, s.table(models.ConversationsTable), utils.StringKey("conversationId", conversationID), &c)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return models.Conversation{}, apperrors.NotFound("conversation not found")
		}
		return models.Conversation{}, storageErr("get conversation", err)
	}
	return c, nil
}

func (s *Store) FindConversationByMatch(ctx context.Context, matchID string) (models.Conversation, error) {
	guard, err := s.ds.GetItem(ctx, s.table(models.MatchConversationsTable), utils.StringKey("matchId", matchID))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return models.Conversation{}, apperrors.NotFound("conversation not found")
		}
		return models.Conversation{}, storageErr("find conversation", err)
	}
	conversationID := utils.ExtractString(guard, "conversationId")
	if conversationID == "" {
		return models.Conversation{}, apperrors.Storage("find conversation", errors.New("conversation guard has no conversationId"))
	}
	return s.GetConversation(ctx, conversationID)
}

// TouchConversation moves lastMessageAt forward, never backward.
func (s *Store) TouchConversation(ctx context.Context, conversationID string, at time.Time) error {
	_, err := s.ds.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table(models.ConversationsTable)),
		Key:                 utils.StringKey("conversationId", conversationID),
		UpdateExpression:    aws.String("SET lastMessageAt = :at"),
		ConditionExpression: aws.String("attribute_exists(conversationId) AND (attribute_not_exists(lastMessageAt) OR lastMessageAt < :at)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at": utils.StringAttr(models.SortableTime(at)),
		},
	})
	if err != nil && !isConditionFailed(err) {
		return storageErr("touch conversation", err)
	}
	return nil
}

func (s *Store) DeleteConversation(ctx context.Context, c models.Conversation) error {
	err := s.ds.TransactWrite(ctx, []types.TransactWriteItem{
		{Delete: &types.Delete{
			TableName: aws.String(s.table(models.ConversationsTable)),
			Key:       utils.StringKey("conversationId", c.ConversationID),
		}},
		{Delete: &types.Delete{
			TableName: aws.String(s.table(models.MatchConversationsTable)),
			Key:       utils.StringKey("matchId", c.MatchID),
		}},
	})
	if err != nil {
		return storageErr("delete conversation", err)
	}
	return nil
}
