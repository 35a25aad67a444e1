package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"peerlearn_server/apperrors"
	"peerlearn_server/fanout"
	"peerlearn_server/models"
	"peerlearn_server/repo"
	"peerlearn_server/repo/sqlstore"
	"peerlearn_server/scoring"
)

type testEnv struct {
	store     *sqlstore.Store
	broker    fanout.Broker
	matches   *MatchService
	convs     *ConversationService
	chat      *ChatService
	community *CommunityService
	dashboard *DashboardService
}

type envOption func(*envConfig)

type envConfig struct {
	broker     fanout.Broker
	scorer     scoring.Scorer
	avatars    AvatarSigner
	matchStore func(repo.MatchStore) repo.MatchStore
	convStore  func(repo.ConversationStore) repo.ConversationStore
}

func withBroker(b fanout.Broker) envOption { return func(c *envConfig) { c.broker = b } }
func withScorer(s scoring.Scorer) envOption { return func(c *envConfig) { c.scorer = s } }
func withAvatars(a AvatarSigner) envOption { return func(c *envConfig) { c.avatars = a } }
func withMatchStore(wrap func(repo.MatchStore) repo.MatchStore) envOption {
	return func(c *envConfig) { c.matchStore = wrap }
}
func withConversationStore(wrap func(repo.ConversationStore) repo.ConversationStore) envOption {
	return func(c *envConfig) { c.convStore = wrap }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()
	store, err := sqlstore.OpenSQLite(ctx, filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	cfg := envConfig{
		broker: fanout.NewLocalBroker(16),
		scorer: scoring.NewHeuristicScorer(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	t.Cleanup(func() { _ = cfg.broker.Close() })

	var matchStore repo.MatchStore = store
	if cfg.matchStore != nil {
		matchStore = cfg.matchStore(store)
	}
	var convStore repo.ConversationStore = store
	if cfg.convStore != nil {
		convStore = cfg.convStore(store)
	}

	log := zap.NewNop()
	timeout := 2 * time.Second
	matches := NewMatchService(matchStore, convStore, store, models.DefaultMatchThreshold, timeout, log)
	convs := NewConversationService(store, convStore, store, store, cfg.avatars, timeout, log)
	chat := NewChatService(store, convStore, store, convs, cfg.broker, ChatOptions{StorageTimeout: timeout, PublishTimeout: time.Second}, log)
	community := NewCommunityService(store, matches, cfg.scorer, timeout, log)
	dashboard := NewDashboardService(store, store, convs, timeout)

	return &testEnv{
		store:     store,
		broker:    cfg.broker,
		matches:   matches,
		convs:     convs,
		chat:      chat,
		community: community,
		dashboard: dashboard,
	}
}

func (e *testEnv) seedMember(t *testing.T, communityID, userID, name string, goals ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.UpsertUser(ctx, models.User{UserID: userID, DisplayName: name, AvatarRef: "profile-pics/" + userID + ".png"}))
	_, err := e.community.Join(ctx, communityID, userID)
	require.NoError(t, err)
	for _, g := range goals {
		_, err := e.community.AddGoal(ctx, userID, communityID, g)
		require.NoError(t, err)
	}
}

func TestConnectIsSymmetric(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)
	second, err := env.matches.Connect(ctx, "u2", "u1", "c1")
	require.NoError(t, err)

	assert.Equal(t, first.MatchID, second.MatchID)
	assert.Equal(t, models.MatchStatusAccepted, second.Status)

	all, err := env.matches.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	other, err := env.matches.Connect(ctx, "u1", "u2", "c2")
	require.NoError(t, err)
	assert.NotEqual(t, first.MatchID, other.MatchID, "matches are scoped per community")
}

func TestConnectConcurrentCallersShareOneMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const n = 12
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			m, err := env.matches.Connect(ctx, a, b, "c1")
			if assert.NoError(t, err) {
				ids[i] = m.MatchID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	all, err := env.matches.ListForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConnectRejectsSelfPair(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.matches.Connect(context.Background(), "u1", "u1", "c1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPair)
}

func TestRegisterScoredMatchesAppliesThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := env.matches.RegisterScoredMatches(ctx, "u1", "c1", []models.ScoredCandidate{
		{UserID: "u3", MatchScore: 85, Reason: "shared goal: Go"},
		{UserID: "u4", MatchScore: 40},
		{UserID: "u5", MatchScore: 70},
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "u3", out[0].UserID)
	require.NotNil(t, out[0].MatchID)
	assert.Nil(t, out[1].MatchID)
	require.NotNil(t, out[2].MatchID, "the threshold is inclusive")

	m, err := env.matches.GetMatch(ctx, *out[0].MatchID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusPending, m.Status)

	again, err := env.matches.RegisterScoredMatches(ctx, "u1", "c1", out[:1])
	require.NoError(t, err)
	assert.Equal(t, *out[0].MatchID, *again[0].MatchID)
}

func TestRegisterScoredMatchesNeverDowngradesAccepted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	accepted, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)

	out, err := env.matches.RegisterScoredMatches(ctx, "u2", "c1", []models.ScoredCandidate{{UserID: "u1", MatchScore: 99}})
	require.NoError(t, err)
	require.NotNil(t, out[0].MatchID)
	assert.Equal(t, accepted.MatchID, *out[0].MatchID)

	m, err := env.matches.GetMatch(ctx, accepted.MatchID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusAccepted, m.Status)
}

type flakyMatchStore struct {
	repo.MatchStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyMatchStore) InsertOrGetMatch(ctx context.Context, m models.Match) (models.Match, bool, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return models.Match{}, false, apperrors.Storage("insert match", errors.New("connection reset"))
	}
	return f.MatchStore.InsertOrGetMatch(ctx, m)
}

func TestConnectRetriesTransientFailureOnce(t *testing.T) {
	flaky := &flakyMatchStore{failures: 1}
	env := newTestEnv(t, withMatchStore(func(s repo.MatchStore) repo.MatchStore {
		flaky.MatchStore = s
		return flaky
	}))

	m, err := env.matches.Connect(context.Background(), "u1", "u2", "c1")
	require.NoError(t, err)
	assert.NotEmpty(t, m.MatchID)
	assert.Equal(t, 2, flaky.calls)
}

func TestConnectReportsRegistryUnavailable(t *testing.T) {
	flaky := &flakyMatchStore{failures: 5}
	env := newTestEnv(t, withMatchStore(func(s repo.MatchStore) repo.MatchStore {
		flaky.MatchStore = s
		return flaky
	}))

	_, err := env.matches.Connect(context.Background(), "u1", "u2", "c1")
	assert.ErrorIs(t, err, apperrors.ErrRegistryUnavailable)
	assert.Equal(t, 2, flaky.calls)
}

func TestGetOrCreateConversationConcurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)

	const n = 10
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := "u1"
			if i%2 == 1 {
				user = "u2"
			}
			c, err := env.convs.GetOrCreateConversation(ctx, m.MatchID, user)
			if assert.NoError(t, err) {
				ids[i] = c.ConversationID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

type flakyConversationStore struct {
	repo.ConversationStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyConversationStore) GetOrCreateConversation(ctx context.Context, c models.Conversation) (models.Conversation, bool, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return models.Conversation{}, false, apperrors.Storage("create conversation", errors.New("transaction conflict"))
	}
	return f.ConversationStore.GetOrCreateConversation(ctx, c)
}

func TestGetOrCreateConversationRetriesTransientFailureOnce(t *testing.T) {
	flaky := &flakyConversationStore{failures: 1}
	env := newTestEnv(t, withConversationStore(func(s repo.ConversationStore) repo.ConversationStore {
		flaky.ConversationStore = s
		return flaky
	}))
	ctx := context.Background()
	m, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)

	c, err := env.convs.GetOrCreateConversation(ctx, m.MatchID, "u1")
	require.NoError(t, err)
	assert.Equal(t, m.MatchID, c.MatchID)
	assert.Equal(t, 2, flaky.calls)

	again, err := env.convs.GetOrCreateConversation(ctx, m.MatchID, "u2")
	require.NoError(t, err)
	assert.Equal(t, c.ConversationID, again.ConversationID)
}

func TestGetOrCreateConversationReportsStorageUnavailable(t *testing.T) {
	flaky := &flakyConversationStore{failures: 5}
	env := newTestEnv(t, withConversationStore(func(s repo.ConversationStore) repo.ConversationStore {
		flaky.ConversationStore = s
		return flaky
	}))
	ctx := context.Background()
	m, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)

	_, err = env.convs.GetOrCreateConversation(ctx, m.MatchID, "u1")
	assert.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
	assert.Equal(t, 2, flaky.calls)
}

type flakyReadMatchStore struct {
	repo.MatchStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyReadMatchStore) GetMatch(ctx context.Context, matchID string) (models.Match, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return models.Match{}, apperrors.Storage("get match", errors.New("connection reset"))
	}
	return f.MatchStore.GetMatch(ctx, matchID)
}

func TestGetMatchRetriesTransientFailureOnce(t *testing.T) {
	flaky := &flakyReadMatchStore{failures: 1}
	env := newTestEnv(t, withMatchStore(func(s repo.MatchStore) repo.MatchStore {
		flaky.MatchStore = s
		return flaky
	}))
	ctx := context.Background()
	m, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)

	got, err := env.matches.GetMatch(ctx, m.MatchID)
	require.NoError(t, err)
	assert.Equal(t, m.MatchID, got.MatchID)
	assert.Equal(t, 2, flaky.calls)

	_, err = env.matches.GetMatch(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 3, flaky.calls)
}

func TestGetOrCreateConversationErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)

	_, err = env.convs.GetOrCreateConversation(ctx, "missing", "u1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = env.convs.GetOrCreateConversation(ctx, m.MatchID, "u3")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAppendThenListPreservesOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)
	conv, err := env.convs.GetOrCreateConversation(ctx, m.MatchID, "u1")
	require.NoError(t, err)

	_, err = env.chat.Append(ctx, conv.ConversationID, "u1", "hello")
	require.NoError(t, err)
	last, err := env.chat.Append(ctx, conv.ConversationID, "u2", "  hi  ")
	require.NoError(t, err)
	assert.Equal(t, "hi", last.Content)

	msgs, err := env.chat.ListSince(ctx, conv.ConversationID, "", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "hi", msgs[1].Content)
	assert.Equal(t, last.MessageID, msgs[1].MessageID)

	stored, err := env.store.GetConversation(ctx, conv.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastMessageAt)
}

func TestAppendValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)
	conv, err := env.convs.GetOrCreateConversation(ctx, m.MatchID, "u1")
	require.NoError(t, err)

	_, err = env.chat.Append(ctx, conv.ConversationID, "u1", " \n\t ")
	assert.ErrorIs(t, err, apperrors.ErrEmptyContent)

	_, err = env.chat.Append(ctx, conv.ConversationID, "u9", "hello")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = env.chat.Append(ctx, "nope", "u1", "hello")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListSincePages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)
	conv, err := env.convs.GetOrCreateConversation(ctx, m.MatchID, "u1")
	require.NoError(t, err)

	var sent []models.Message
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		msg, err := env.chat.Append(ctx, conv.ConversationID, "u1", text)
		require.NoError(t, err)
		sent = append(sent, msg)
	}

	latest, err := env.chat.ListSince(ctx, conv.ConversationID, "", 3)
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, []string{"three", "four", "five"}, contents(latest))

	after, err := env.chat.ListSince(ctx, conv.ConversationID, sent[0].Seq, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, contents(after))

	tail, err := env.chat.ListSince(ctx, conv.ConversationID, sent[4].Seq, 10)
	require.NoError(t, err)
	assert.Empty(t, tail)
}

func contents(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func TestPurgeUserMatchesCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedMember(t, "c1", "u1", "Ana")
	env.seedMember(t, "c2", "u1", "Ana")

	withBob, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)
	_, err = env.matches.Connect(ctx, "u3", "u1", "c2")
	require.NoError(t, err)
	others, err := env.matches.Connect(ctx, "u2", "u3", "c1")
	require.NoError(t, err)
	_, err = env.chat.SendToMatch(ctx, withBob.MatchID, "u1", "bye")
	require.NoError(t, err)

	removed, err := env.matches.PurgeUserMatches(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	left, err := env.matches.ListForUser(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, others.MatchID, left[0].MatchID)

	_, err = env.store.FindConversationByMatch(ctx, withBob.MatchID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	memberships, err := env.community.LeaveAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, memberships)
	remaining, err := env.community.Memberships(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	_, err = env.matches.PurgeUserMatches(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestAppendPublishesToSubscribers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)
	conv, err := env.convs.GetOrCreateConversation(ctx, m.MatchID, "u2")
	require.NoError(t, err)

	sub, err := env.broker.Subscribe(ctx, conv.ConversationID)
	require.NoError(t, err)
	defer sub.Close()

	sent, err := env.chat.Append(ctx, conv.ConversationID, "u1", "ping")
	require.NoError(t, err)

	select {
	case got := <-sub.Messages():
		assert.Equal(t, sent.MessageID, got.MessageID)
	case <-time.After(time.Second):
		t.Fatal("message was not delivered")
	}
}

type failingBroker struct{ fanout.Broker }

func (failingBroker) Publish(context.Context, string, models.Message) error {
	return errors.New("broker down")
}

func TestAppendSucceedsWhenPublishFails(t *testing.T) {
	env := newTestEnv(t, withBroker(failingBroker{fanout.NewLocalBroker(1)}))
	ctx := context.Background()
	m, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)

	msg, err := env.chat.SendToMatch(ctx, m.MatchID, "u1", "still stored")
	require.NoError(t, err)

	_, msgs, err := env.chat.HistoryForMatch(ctx, m.MatchID, "u2", "", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.MessageID, msgs[0].MessageID)
}

func TestDeleteMatchCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)
	_, err = env.chat.SendToMatch(ctx, m.MatchID, "u1", "hello")
	require.NoError(t, err)
	conv, err := env.store.FindConversationByMatch(ctx, m.MatchID)
	require.NoError(t, err)

	assert.ErrorIs(t, env.matches.DeleteMatch(ctx, m.MatchID, "u3"), apperrors.ErrUnauthorized)
	require.NoError(t, env.matches.DeleteMatch(ctx, m.MatchID, "u2"))

	_, err = env.matches.GetMatch(ctx, m.MatchID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = env.store.GetConversation(ctx, conv.ConversationID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	msgs, err := env.store.ListLatestMessages(ctx, conv.ConversationID, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = env.convs.GetOrCreateConversation(ctx, m.MatchID, "u1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPurgeMatchWithoutConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)

	require.NoError(t, env.matches.PurgeMatch(ctx, m.MatchID))
	assert.ErrorIs(t, env.matches.PurgeMatch(ctx, m.MatchID), apperrors.ErrNotFound)
}

type stubScorer struct {
	results []models.ScoredCandidate
	err     error
}

func (s stubScorer) Score(context.Context, scoring.Profile, []scoring.Profile) ([]models.ScoredCandidate, error) {
	return s.results, s.err
}

func TestRunMatchingRegistersStrongCandidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedMember(t, "c1", "u1", "Ana", "Go concurrency")
	env.seedMember(t, "c1", "u2", "Ben", "Go concurrency")
	env.seedMember(t, "c1", "u3", "Cai", "Oil painting")

	out, err := env.community.RunMatching(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "u2", out[0].UserID)
	assert.Equal(t, "Ben", out[0].Name)
	require.NotNil(t, out[0].MatchID)
	assert.Nil(t, out[1].MatchID)

	m, err := env.matches.GetMatch(ctx, *out[0].MatchID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusPending, m.Status)
}

func TestRunMatchingDegradesWhenScoringUnavailable(t *testing.T) {
	env := newTestEnv(t, withScorer(stubScorer{err: apperrors.Wrap(apperrors.CodeScoringUnavailable, "down", errors.New("timeout"))}))
	env.seedMember(t, "c1", "u1", "Ana", "Go")
	env.seedMember(t, "c1", "u2", "Ben", "Go")

	out, err := env.community.RunMatching(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRunMatchingRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	env.seedMember(t, "c1", "u2", "Ben", "Go")

	_, err := env.community.RunMatching(context.Background(), "u1", "c1")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestRunMatchingWithoutCandidates(t *testing.T) {
	env := newTestEnv(t, withScorer(stubScorer{err: errors.New("must not be called")}))
	env.seedMember(t, "c1", "u1", "Ana", "Go")

	out, err := env.community.RunMatching(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Empty(t, out)
}

type prefixSigner struct{}

func (prefixSigner) ReadURL(_ context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

func TestListConversationsOrdersByActivity(t *testing.T) {
	env := newTestEnv(t, withAvatars(prefixSigner{}))
	ctx := context.Background()
	env.seedMember(t, "c1", "u1", "Ana")
	env.seedMember(t, "c1", "u2", "Ben")
	env.seedMember(t, "c1", "u3", "Cai")

	quiet, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)
	busy, err := env.matches.Connect(ctx, "u1", "u3", "c1")
	require.NoError(t, err)
	_, err = env.chat.SendToMatch(ctx, busy.MatchID, "u3", "latest news")
	require.NoError(t, err)

	items, err := env.convs.ListConversations(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, busy.MatchID, items[0].MatchID)
	assert.Equal(t, "u3", items[0].PartnerID)
	assert.Equal(t, "Cai", items[0].PartnerName)
	assert.Equal(t, "https://cdn.test/profile-pics/u3.png", items[0].PartnerAvatar)
	require.NotNil(t, items[0].LastMessage)
	assert.Equal(t, "latest news", items[0].LastMessage.Content)

	assert.Equal(t, quiet.MatchID, items[1].MatchID)
	assert.Empty(t, items[1].ConversationID)
	assert.Nil(t, items[1].LastMessage)

	limited, err := env.convs.ListConversations(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedMember(t, "c1", "u1", "Ana")
	env.seedMember(t, "c2", "u1", "Ana")

	accepted, err := env.matches.Connect(ctx, "u1", "u2", "c1")
	require.NoError(t, err)
	_, err = env.matches.RegisterScoredMatches(ctx, "u1", "c1", []models.ScoredCandidate{{UserID: "u3", MatchScore: 90}})
	require.NoError(t, err)
	_, err = env.chat.SendToMatch(ctx, accepted.MatchID, "u1", "hey")
	require.NoError(t, err)

	stats, err := env.dashboard.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.DashboardStats{Communities: 2, ActiveMatches: 1, PendingMatches: 1, Conversations: 1}, stats)

	user, memberships, err := env.dashboard.Me(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.DisplayName)
	assert.Len(t, memberships, 2)

	recent, err := env.dashboard.Recent(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, accepted.MatchID, recent[0].MatchID)
}
