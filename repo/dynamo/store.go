package dynamo

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"peerlearn_server/apperrors"
	"peerlearn_server/models"
	"peerlearn_server/repo"
)

// Store implements repo.Store on DynamoDB. Uniqueness of matches and
// conversations is kept with guard items written in the same transaction as
// the entity, each conditioned on attribute_not_exists.
type Store struct {
	ds     *DynamoService
	prefix string
}

var _ repo.Store = (*Store)(nil)

func NewStore(client DynamoAPI, tablePrefix string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		ds:     &DynamoService{Client: client, Log: log},
		prefix: tablePrefix,
	}
}

func (s *Store) table(name string) string {
	return s.prefix + name
}

func (s *Store) Close() error { return nil }

func storageErr(op string, err error) error {
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, context.Canceled) {
		return err
	}
	return apperrors.Storage(op, err)
}

type keySpec struct {
	hash, rng string
}

type indexSpec struct {
	name string
	hash string
}

type tableSpec struct {
	name    string
	key     keySpec
	indexes []indexSpec
}

var tableSpecs = []tableSpec{
	{name: models.MatchesTable, key: keySpec{hash: "matchId"}, indexes: []indexSpec{
		{name: models.LoUserIndex, hash: "loUserId"},
		{name: models.HiUserIndex, hash: "hiUserId"},
	}},
	{name: models.MatchPairsTable, key: keySpec{hash: "pairKey"}},
	{name: models.ConversationsTable, key: keySpec{hash: "conversationId"}},
	{name: models.MatchConversationsTable, key: keySpec{hash: "matchId"}},
	{name: models.MessagesTable, key: keySpec{hash: "conversationId", rng: "seq"}},
	{name: models.UsersTable, key: keySpec{hash: "userId"}},
	{name: models.CommunityMembersTable, key: keySpec{hash: "communityId", rng: "userId"}, indexes: []indexSpec{
		{name: models.MemberUserIndex, hash: "userId"},
	}},
	{name: models.LearningGoalsTable, key: keySpec{hash: "userId", rng: "goalId"}},
}

// Migrate creates every table on demand. Existing tables are left alone.
func (s *Store) Migrate(ctx context.Context) error {
	for _, spec := range tableSpecs {
		if err := s.createTable(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createTable(ctx context.Context, spec tableSpec) error {
	attrs := map[string]bool{spec.key.hash: true}
	keySchema := []types.KeySchemaElement{{AttributeName: aws.String(spec.key.hash), KeyType: types.KeyTypeHash}}
	if spec.key.rng != "" {
		attrs[spec.key.rng] = true
		keySchema = append(keySchema, types.KeySchemaElement{AttributeName: aws.String(spec.key.rng), KeyType: types.KeyTypeRange})
	}

	var gsis []types.GlobalSecondaryIndex
	for _, idx := range spec.indexes {
		attrs[idx.hash] = true
		gsis = append(gsis, types.GlobalSecondaryIndex{
			IndexName:  aws.String(idx.name),
			KeySchema:  []types.KeySchemaElement{{AttributeName: aws.String(idx.hash), KeyType: types.KeyTypeHash}},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	var defs []types.AttributeDefinition
	for name := range attrs {
		defs = append(defs, types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS})
	}

	_, err := s.ds.Client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:              aws.String(s.table(spec.name)),
		AttributeDefinitions:   defs,
		KeySchema:              keySchema,
		GlobalSecondaryIndexes: gsis,
		BillingMode:            types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return apperrors.Storage("create table "+spec.name, err)
	}
	s.ds.Log.Info("dynamo table ready", zap.String("table", s.table(spec.name)))
	return nil
}
