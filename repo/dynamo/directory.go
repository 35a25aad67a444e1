package dynamo

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"peerlearn_server/apperrors"
	"peerlearn_server/models"
	"peerlearn_server/utils"
)

func memberKey(communityID, userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"communityId": utils.StringAttr(communityID),
		"userId":      utils.StringAttr(userID),
	}
}

func (s *Store) GetUser(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	if err := s.ds.GetInto(ctx, s.table(models.UsersTable), utils.StringKey("userId", userID), &u); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return models.User{}, apperrors.NotFound("user not found")
		}
		return models.User{}, storageErr("get user", err)
	}
	return u, nil
}

func (s *Store) GetUsers(ctx context.Context, userIDs []string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	seen := make(map[string]bool, len(userIDs))
	keys := make([]map[string]types.AttributeValue, 0, len(userIDs))
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, utils.StringKey("userId", id))
	}

	items, err := s.ds.BatchGetItems(ctx, s.table(models.UsersTable), keys)
	if err != nil {
		return nil, storageErr("get users", err)
	}
	var users []models.User
	if err := attributevalue.UnmarshalListOfMaps(items, &users); err != nil {
		return nil, storageErr("decode users", err)
	}
	for _, u := range users {
		out[u.UserID] = u
	}
	return out, nil
}

func (s *Store) UpsertUser(ctx context.Context, u models.User) error {
	if err := s.ds.PutItem(ctx, s.table(models.UsersTable), u, ""); err != nil {
		return storageErr("upsert user", err)
	}
	return nil
}

func (s *Store) IsMember(ctx context.Context, communityID, userID string) (bool, error) {
	_, err := s.ds.GetItem(ctx, s.table(models.CommunityMembersTable), memberKey(communityID, userID))
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("check membership", err)
	}
	return true, nil
}

func (s *Store) Join(ctx context.Context, m models.CommunityMember) (bool, error) {
	err := s.ds.PutItem(ctx, s.table(models.CommunityMembersTable), m, "attribute_not_exists(userId)")
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, storageErr("join community", err)
	}
	return true, nil
}

func (s *Store) Leave(ctx context.Context, communityID, userID string) error {
	if err := s.ds.DeleteItem(ctx, s.table(models.CommunityMembersTable), memberKey(communityID, userID)); err != nil {
		return storageErr("leave community", err)
	}
	return nil
}

func (s *Store) ListMembers(ctx context.Context, communityID string) ([]models.CommunityMember, error) {
	items, err := s.ds.QueryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table(models.CommunityMembersTable)),
		KeyConditionExpression: aws.String("communityId = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": utils.StringAttr(communityID),
		},
	})
	if err != nil {
		return nil, storageErr("list members", err)
	}
	return decodeMembers(items)
}

func (s *Store) ListMemberships(ctx context.Context, userID string) ([]models.CommunityMember, error) {
	items, err := s.ds.QueryItemsWithIndex(ctx, s.table(models.CommunityMembersTable), models.MemberUserIndex,
		"userId = :u", map[string]types.AttributeValue{":u": utils.StringAttr(userID)})
	if err != nil {
		return nil, storageErr("list memberships", err)
	}
	return decodeMembers(items)
}

func decodeMembers(items []map[string]types.AttributeValue) ([]models.CommunityMember, error) {
	var members []models.CommunityMember
	if err := attributevalue.UnmarshalListOfMaps(items, &members); err != nil {
		return nil, storageErr("decode members", err)
	}
	return members, nil
}

func (s *Store) AddGoal(ctx context.Context, g models.LearningGoal) error {
	if err := s.ds.PutItem(ctx, s.table(models.LearningGoalsTable), g, ""); err != nil {
		return storageErr("add goal", err)
	}
	return nil
}

func (s *Store) ListGoals(ctx context.Context, userID, communityID string) ([]models.LearningGoal, error) {
	items, err := s.ds.QueryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table(models.LearningGoalsTable)),
		KeyConditionExpression: aws.String("userId = :u"),
		FilterExpression:       aws.String("communityId = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": utils.StringAttr(userID),
			":c": utils.StringAttr(communityID),
		},
	})
	if err != nil {
		return nil, storageErr("list goals", err)
	}
	var goals []models.LearningGoal
	if err := attributevalue.UnmarshalListOfMaps(items, &goals); err != nil {
		return nil, storageErr("decode goals", err)
	}
	return goals, nil
}
