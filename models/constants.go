package models

// Match statuses
const (
	MatchStatusPending  = "pending"
	MatchStatusAccepted = "accepted"
)

// User roles carried in access tokens
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// DefaultMatchThreshold is the minimum score for a scored candidate to be registered as a match.
const DefaultMatchThreshold = 70

// DynamoDB table names. A deployment-wide prefix is applied by the dynamo store.
const (
	MatchesTable            = "Matches"
	MatchPairsTable         = "MatchPairs"
	ConversationsTable      = "Conversations"
	MatchConversationsTable = "MatchConversations"
	MessagesTable           = "Messages"
	UsersTable              = "Users"
	CommunityMembersTable   = "CommunityMembers"
	LearningGoalsTable      = "LearningGoals"
)

// DynamoDB secondary indexes
const (
	LoUserIndex     = "loUserId-index"
	HiUserIndex     = "hiUserId-index"
	MemberUserIndex = "userId-index"
)
