// Package app wires configuration, storage, fan-out and the HTTP surface
// into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"peerlearn_server/auth"
	"peerlearn_server/config"
	"peerlearn_server/fanout"
	"peerlearn_server/repo"
	"peerlearn_server/repo/dynamo"
	"peerlearn_server/repo/redis"
	"peerlearn_server/repo/sqlstore"
	"peerlearn_server/scoring"
	"peerlearn_server/services"
	"peerlearn_server/socket"
)

// App holds the long-lived components of one server process.
type App struct {
	Config config.Config
	Log    *zap.Logger

	Store  repo.Store
	Broker fanout.Broker
	Tokens *auth.JWTManager

	Matches       *services.MatchService
	Conversations *services.ConversationService
	Chat          *services.ChatService
	Community     *services.CommunityService
	Dashboard     *services.DashboardService
	Media         *services.MediaService
	Bridge        *socket.Bridge

	closers []func() error
}

// New opens every backend named by cfg and assembles the services.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	broker, closeBroker, err := openBroker(ctx, cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var media *services.MediaService
	if cfg.S3.Bucket != "" {
		media, err = services.NewS3MediaService(ctx, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.PresignTTL)
		if err != nil {
			_ = broker.Close()
			_ = store.Close()
			return nil, err
		}
	} else {
		log.Warn("S3 bucket not configured, avatar URLs are passed through")
	}

	a := Assemble(cfg, log, store, broker, media)
	// Released in reverse: broker, redis client, store.
	a.closers = []func() error{store.Close, closeBroker, broker.Close}
	return a, nil
}

// Assemble builds the services on top of already opened backends.
func Assemble(cfg config.Config, log *zap.Logger, store repo.Store, broker fanout.Broker, media *services.MediaService) *App {
	timeout := cfg.Storage.Timeout

	var avatars services.AvatarSigner
	if media != nil {
		avatars = media
	}

	matches := services.NewMatchService(store, store, store, cfg.Scoring.Threshold, timeout, log.Named("matches"))
	convs := services.NewConversationService(store, store, store, store, avatars, timeout, log.Named("conversations"))
	chat := services.NewChatService(store, store, store, convs, broker, services.ChatOptions{
		StorageTimeout: timeout,
		PublishTimeout: cfg.Fanout.PublishTimeout,
		PageSize:       cfg.Storage.PageSize,
	}, log.Named("chat"))
	community := services.NewCommunityService(store, matches, NewScorer(cfg.Scoring, log), timeout, log.Named("community"))
	dashboard := services.NewDashboardService(store, store, convs, timeout)
	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	return &App{
		Config:        cfg,
		Log:           log,
		Store:         store,
		Broker:        broker,
		Tokens:        tokens,
		Matches:       matches,
		Conversations: convs,
		Chat:          chat,
		Community:     community,
		Dashboard:     dashboard,
		Media:         media,
		Bridge:        socket.NewBridge(convs, chat, broker, tokens, cfg.Fanout.DedupWindow, log.Named("socket")),
		closers:       []func() error{store.Close, broker.Close},
	}
}

// OpenStore connects to the configured storage driver.
func OpenStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverDynamo:
		client, err := dynamo.InitializeDynamoDBClient(ctx, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint)
		if err != nil {
			return nil, err
		}
		return dynamo.NewStore(client, cfg.DynamoDB.TablePrefix, log.Named("dynamo")), nil
	case config.DriverPostgres:
		return sqlstore.OpenPostgres(ctx, cfg.Postgres.DSN)
	case config.DriverSQLite:
		return sqlstore.OpenSQLite(ctx, cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openBroker(ctx context.Context, cfg config.Config, log *zap.Logger) (fanout.Broker, func() error, error) {
	switch cfg.Fanout.Broker {
	case config.BrokerRedis:
		client, err := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return fanout.NewRedisBroker(client, cfg.Fanout.Buffer, log.Named("fanout")), client.Close, nil
	default:
		return fanout.NewLocalBroker(cfg.Fanout.Buffer), func() error { return nil }, nil
	}
}

// NewScorer picks the scoring backend and guards it.
func NewScorer(cfg config.ScoringConfig, log *zap.Logger) scoring.Scorer {
	var (
		inner scoring.Scorer = scoring.NewHeuristicScorer()
		name                 = config.ScoringHeuristic
	)
	if cfg.Provider == config.ScoringOpenAI {
		if cfg.OpenAIAPIKey == "" {
			log.Warn("OpenAI scoring selected without an API key, using heuristic scoring")
		} else {
			inner = scoring.NewOpenAIScorer(scoring.OpenAIConfig{
				APIKey:  cfg.OpenAIAPIKey,
				Model:   cfg.OpenAIModel,
				BaseURL: cfg.OpenAIBaseURL,
			}, log.Named("openai"))
			name = config.ScoringOpenAI
		}
	}
	return scoring.NewGuarded(name, inner, scoring.GuardOptions{Timeout: cfg.Timeout}, log.Named("scoring"))
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
