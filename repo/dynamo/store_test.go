package dynamo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"peerlearn_server/apperrors"
	"peerlearn_server/models"
	"peerlearn_server/repo"
	"peerlearn_server/utils"
)

type stubClient struct {
	getItem            func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItem            func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	updateItem         func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	deleteItem         func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	query              func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	batchWriteItem     func(*dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)
	batchGetItem       func(*dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error)
	transactWriteItems func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error)
	createTable        func(*dynamodb.CreateTableInput) (*dynamodb.CreateTableOutput, error)
}

var errUnexpectedCall = errors.New("unexpected call")

func (s *stubClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if s.getItem == nil {
		return nil, errUnexpectedCall
	}
	return s.getItem(in)
}

func (s *stubClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if s.putItem == nil {
		return nil, errUnexpectedCall
	}
	return s.putItem(in)
}

func (s *stubClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if s.updateItem == nil {
		return nil, errUnexpectedCall
	}
	return s.updateItem(in)
}

func (s *stubClient) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if s.deleteItem == nil {
		return nil, errUnexpectedCall
	}
	return s.deleteItem(in)
}

func (s *stubClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if s.query == nil {
		return nil, errUnexpectedCall
	}
	return s.query(in)
}

func (s *stubClient) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if s.batchWriteItem == nil {
		return nil, errUnexpectedCall
	}
	return s.batchWriteItem(in)
}

func (s *stubClient) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	if s.batchGetItem == nil {
		return nil, errUnexpectedCall
	}
	return s.batchGetItem(in)
}

func (s *stubClient) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if s.transactWriteItems == nil {
		return nil, errUnexpectedCall
	}
	return s.transactWriteItems(in)
}

func (s *stubClient) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if s.createTable == nil {
		return nil, errUnexpectedCall
	}
	return s.createTable(in)
}

func cancelled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, code := range codes {
		reasons[i] = types.CancellationReason{Code: aws.String(code)}
	}
	return &types.TransactionCanceledException{Message: aws.String("cancelled"), CancellationReasons: reasons}
}

func mustMarshal(t *testing.T, v interface{}) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return item
}

func testMatch(status string) models.Match {
	return models.Match{
		MatchID:     utils.NewID(),
		LoUserID:    "alice",
		HiUserID:    "bob",
		CommunityID: "c1",
		Status:      status,
		CreatedAt:   time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
	}
}

// existingMatchReads answers the guard lookup and the match read for existing.
func existingMatchReads(t *testing.T, existing models.Match) func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
	return func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		assert.True(t, aws.ToBool(in.ConsistentRead))
		switch aws.ToString(in.TableName) {
		case "test_" + models.MatchPairsTable:
			return &dynamodb.GetItemOutput{Item: mustMarshal(t, pairGuard{
				PairKey: utils.PairKey(existing.CommunityID, existing.LoUserID, existing.HiUserID),
				MatchID: existing.MatchID,
			})}, nil
		case "test_" + models.MatchesTable:
			return &dynamodb.GetItemOutput{Item: mustMarshal(t, existing)}, nil
		}
		return nil, fmt.Errorf("unexpected table %s", aws.ToString(in.TableName))
	}
}

func TestInsertOrGetMatchCreatesWithGuard(t *testing.T) {
	var got *dynamodb.TransactWriteItemsInput
	client := &stubClient{transactWriteItems: func(in *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
		got = in
		return &dynamodb.TransactWriteItemsOutput{}, nil
	}}
	store := NewStore(client, "test_", zap.NewNop())

	m := testMatch(models.MatchStatusAccepted)
	out, created, err := store.InsertOrGetMatch(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, m.MatchID, out.MatchID)

	require.Len(t, got.TransactItems, 2)
	guard := got.TransactItems[0].Put
	assert.Equal(t, "test_"+models.MatchPairsTable, aws.ToString(guard.TableName))
	assert.Equal(t, "attribute_not_exists(pairKey)", aws.ToString(guard.ConditionExpression))
	assert.Equal(t, "PAIR#c1#alice#bob", utils.ExtractString(guard.Item, "pairKey"))
	assert.Equal(t, "attribute_not_exists(matchId)", aws.ToString(got.TransactItems[1].Put.ConditionExpression))
}

func TestInsertOrGetMatchReturnsExistingOnConflict(t *testing.T) {
	existing := testMatch(models.MatchStatusPending)
	client := &stubClient{
		transactWriteItems: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			return nil, cancelled("ConditionalCheckFailed", "None")
		},
		getItem: existingMatchReads(t, existing),
	}
	store := NewStore(client, "test_", zap.NewNop())

	out, created, err := store.InsertOrGetMatch(context.Background(), testMatch(models.MatchStatusAccepted))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.MatchID, out.MatchID)
	assert.Equal(t, models.MatchStatusPending, out.Status)
}

func TestUpsertPendingKeepsAccepted(t *testing.T) {
	existing := testMatch(models.MatchStatusAccepted)
	client := &stubClient{
		transactWriteItems: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			return nil, cancelled("ConditionalCheckFailed", "None")
		},
		getItem: existingMatchReads(t, existing),
		updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			assert.Contains(t, aws.ToString(in.ConditionExpression), "#status <> :accepted")
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("accepted")}
		},
	}
	store := NewStore(client, "test_", zap.NewNop())

	out, outcome, err := store.UpsertPendingMatch(context.Background(), testMatch(""))
	require.NoError(t, err)
	assert.Equal(t, repo.OutcomeKept, outcome)
	assert.Equal(t, models.MatchStatusAccepted, out.Status)
}

func TestUpsertPendingRefreshesPending(t *testing.T) {
	existing := testMatch(models.MatchStatusPending)
	client := &stubClient{
		transactWriteItems: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			return nil, cancelled("ConditionalCheckFailed", "None")
		},
		getItem: existingMatchReads(t, existing),
		updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return &dynamodb.UpdateItemOutput{Attributes: mustMarshal(t, existing)}, nil
		},
	}
	store := NewStore(client, "test_", zap.NewNop())

	out, outcome, err := store.UpsertPendingMatch(context.Background(), testMatch(""))
	require.NoError(t, err)
	assert.Equal(t, repo.OutcomeRefreshed, outcome)
	assert.Equal(t, existing.MatchID, out.MatchID)
}

func TestTransientFailureIsStorageUnavailable(t *testing.T) {
	client := &stubClient{transactWriteItems: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
		return nil, &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
	}}
	store := NewStore(client, "", zap.NewNop())

	_, _, err := store.InsertOrGetMatch(context.Background(), testMatch(models.MatchStatusAccepted))
	require.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
}

func TestGetMatchNotFound(t *testing.T) {
	client := &stubClient{getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		return &dynamodb.GetItemOutput{}, nil
	}}
	_, err := NewStore(client, "", zap.NewNop()).GetMatch(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetOrCreateConversationUnknownMatch(t *testing.T) {
	client := &stubClient{transactWriteItems: func(in *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
		require.Len(t, in.TransactItems, 3)
		assert.NotNil(t, in.TransactItems[matchCheckItem].ConditionCheck)
		return nil, cancelled("None", "None", "ConditionalCheckFailed")
	}}
	store := NewStore(client, "", zap.NewNop())

	_, _, err := store.GetOrCreateConversation(context.Background(), models.Conversation{
		ConversationID: "conv-1",
		MatchID:        "gone",
		CreatedAt:      time.Now(),
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetOrCreateConversationReturnsExisting(t *testing.T) {
	existing := models.Conversation{ConversationID: "conv-existing", MatchID: "m1", CreatedAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}
	client := &stubClient{
		transactWriteItems: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			return nil, cancelled("ConditionalCheckFailed", "None", "None")
		},
		getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			switch aws.ToString(in.TableName) {
			case models.MatchConversationsTable:
				return &dynamodb.GetItemOutput{Item: mustMarshal(t, conversationGuard{MatchID: "m1", ConversationID: existing.ConversationID})}, nil
			case models.ConversationsTable:
				return &dynamodb.GetItemOutput{Item: mustMarshal(t, existing)}, nil
			}
			return &dynamodb.GetItemOutput{}, nil
		},
	}
	store := NewStore(client, "", zap.NewNop())

	got, created, err := store.GetOrCreateConversation(context.Background(), models.Conversation{
		ConversationID: "conv-new",
		MatchID:        "m1",
		CreatedAt:      time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ConversationID, got.ConversationID)
}

func TestGetOrCreateConversationConflictIsTransient(t *testing.T) {
	client := &stubClient{transactWriteItems: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
		return nil, cancelled("TransactionConflict", "None", "None")
	}}
	store := NewStore(client, "", zap.NewNop())

	_, _, err := store.GetOrCreateConversation(context.Background(), models.Conversation{
		ConversationID: "conv-1",
		MatchID:        "m1",
		CreatedAt:      time.Now(),
	})
	require.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
}

func TestFindConversationByMatchRejectsBrokenGuard(t *testing.T) {
	client := &stubClient{getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		assert.Equal(t, models.MatchConversationsTable, aws.ToString(in.TableName))
		return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
			"matchId": &types.AttributeValueMemberS{Value: "m1"},
		}}, nil
	}}
	store := NewStore(client, "", zap.NewNop())

	_, err := store.FindConversationByMatch(context.Background(), "m1")
	require.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
}

func TestFindConversationByMatchMissing(t *testing.T) {
	client := &stubClient{getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		return &dynamodb.GetItemOutput{}, nil
	}}
	store := NewStore(client, "", zap.NewNop())

	_, err := store.FindConversationByMatch(context.Background(), "m1")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTouchConversationIgnoresStaleUpdate(t *testing.T) {
	client := &stubClient{updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
		assert.Equal(t, "2026-04-01T10:00:00.000000000Z", utils.ExtractString(in.ExpressionAttributeValues, ":at"))
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("stale")}
	}}
	err := NewStore(client, "", zap.NewNop()).TouchConversation(context.Background(), "conv-1",
		time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
}

func messageItems(t *testing.T, n int) []map[string]types.AttributeValue {
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	items := make([]map[string]types.AttributeValue, 0, n)
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		id := fmt.Sprintf("m%02d", i)
		items = append(items, mustMarshal(t, models.Message{
			MessageID:      id,
			ConversationID: "conv-1",
			SenderID:       "alice",
			Content:        "hi",
			CreatedAt:      at,
			Seq:            models.MessageSeq(at, id),
		}))
	}
	return items
}

func TestListLatestMessagesReturnsAscending(t *testing.T) {
	items := messageItems(t, 3)
	client := &stubClient{query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		assert.False(t, aws.ToBool(in.ScanIndexForward))
		assert.Equal(t, int32(3), aws.ToInt32(in.Limit))
		return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{items[2], items[1], items[0]}}, nil
	}}

	msgs, err := NewStore(client, "", zap.NewNop()).ListLatestMessages(context.Background(), "conv-1", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m00", msgs[0].MessageID)
	assert.Equal(t, "m02", msgs[2].MessageID)
}

func TestListMessagesAfterUsesCursor(t *testing.T) {
	client := &stubClient{query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		assert.Equal(t, "conversationId = :c AND seq > :after", aws.ToString(in.KeyConditionExpression))
		assert.True(t, aws.ToBool(in.ScanIndexForward))
		return &dynamodb.QueryOutput{}, nil
	}}
	msgs, err := NewStore(client, "", zap.NewNop()).ListMessagesAfter(context.Background(), "conv-1", "cursor", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestPurgeMessagesBatchesAndRetriesUnprocessed(t *testing.T) {
	items := messageItems(t, 30)
	calls := 0
	var written int
	client := &stubClient{
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{Items: items}, nil
		},
		batchWriteItem: func(in *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
			calls++
			reqs := in.RequestItems[models.MessagesTable]
			if calls == 1 {
				// First batch leaves one request unprocessed.
				written += len(reqs) - 1
				return &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{
					models.MessagesTable: reqs[:1],
				}}, nil
			}
			written += len(reqs)
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}

	n, err := NewStore(client, "", zap.NewNop()).PurgeMessages(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 30, n)
	assert.Equal(t, 30, written)
	assert.Equal(t, 3, calls)
}

func TestMigrateIgnoresExistingTables(t *testing.T) {
	var created []string
	client := &stubClient{createTable: func(in *dynamodb.CreateTableInput) (*dynamodb.CreateTableOutput, error) {
		created = append(created, aws.ToString(in.TableName))
		if aws.ToString(in.TableName) == "p_"+models.MatchesTable {
			assert.Len(t, in.GlobalSecondaryIndexes, 2)
			return nil, &types.ResourceInUseException{Message: aws.String("exists")}
		}
		return &dynamodb.CreateTableOutput{}, nil
	}}

	require.NoError(t, NewStore(client, "p_", zap.NewNop()).Migrate(context.Background()))
	assert.Len(t, created, len(tableSpecs))
}

func TestJoinIsInsertIfAbsent(t *testing.T) {
	client := &stubClient{putItem: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
		assert.Equal(t, "attribute_not_exists(userId)", aws.ToString(in.ConditionExpression))
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	}}
	created, err := NewStore(client, "", zap.NewNop()).Join(context.Background(), models.CommunityMember{CommunityID: "c1", UserID: "alice"})
	require.NoError(t, err)
	assert.False(t, created)
}
