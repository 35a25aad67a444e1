package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"peerlearn_server/models"
	"peerlearn_server/utils"
)

func (s *Store) AppendMessage(ctx context.Context, msg models.Message) error {
	err := s.ds.PutItem(ctx, s.table(models.MessagesTable), msg, "attribute_not_exists(seq)")
	if err != nil && !isConditionFailed(err) {
		return storageErr("append message", err)
	}
	return nil
}

func (s *Store) ListMessagesAfter(ctx context.Context, conversationID, afterSeq string, limit int) ([]models.Message, error) {
	keyCondition := "conversationId = :c"
	values := map[string]types.AttributeValue{":c": utils.StringAttr(conversationID)}
	if afterSeq != "" {
		keyCondition += " AND seq > :after"
		values[":after"] = utils.StringAttr(afterSeq)
	}

	items, err := s.ds.QueryItemsWithOptions(ctx, s.table(models.MessagesTable), keyCondition, values, nil, int32(limit), false)
	if err != nil {
		return nil, storageErr("list messages", err)
	}
	return decodeMessages(items)
}

func (s *Store) ListLatestMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	values := map[string]types.AttributeValue{":c": utils.StringAttr(conversationID)}
	items, err := s.ds.QueryItemsWithOptions(ctx, s.table(models.MessagesTable), "conversationId = :c", values, nil, int32(limit), true)
	if err != nil {
		return nil, storageErr("list messages", err)
	}
	msgs, err := decodeMessages(items)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *Store) PurgeMessages(ctx context.Context, conversationID string) (int, error) {
	table := s.table(models.MessagesTable)
	items, err := s.ds.QueryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(table),
		KeyConditionExpression: aws.String("conversationId = :c"),
		ProjectionExpression:   aws.String("conversationId, seq"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": utils.StringAttr(conversationID),
		},
	})
	if err != nil {
		return 0, storageErr("list messages for purge", err)
	}

	requests := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
			Key: map[string]types.AttributeValue{
				"conversationId": item["conversationId"],
				"seq":            item["seq"],
			},
		}})
	}
	if err := s.ds.BatchWriteItems(ctx, table, requests); err != nil {
		return 0, storageErr("purge messages", err)
	}
	return len(requests), nil
}

func decodeMessages(items []map[string]types.AttributeValue) ([]models.Message, error) {
	msgs := make([]models.Message, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &msgs); err != nil {
		return nil, storageErr("decode messages", err)
	}
	return msgs, nil
}
