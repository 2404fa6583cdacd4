//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"moveon-server/services/messaging-api/internal/config"
	"moveon-server/services/messaging-api/internal/domain/conversation"
	"moveon-server/services/messaging-api/internal/domain/message"
	"moveon-server/services/messaging-api/internal/domain/presence"
	"moveon-server/services/messaging-api/internal/domain/realtime"
	"moveon-server/services/messaging-api/internal/infrastructure/auth"
	"moveon-server/services/messaging-api/internal/infrastructure/cache"
	"moveon-server/services/messaging-api/internal/infrastructure/crontab"
	"moveon-server/services/messaging-api/internal/infrastructure/database"
	"moveon-server/services/messaging-api/internal/infrastructure/database/transaction"
	"moveon-server/services/messaging-api/internal/infrastructure/logger"
	"moveon-server/services/messaging-api/internal/infrastructure/metrics"
	presenceinfra "moveon-server/services/messaging-api/internal/infrastructure/presence"
	realtimeinfra "moveon-server/services/messaging-api/internal/infrastructure/realtime"
	conversationrepo "moveon-server/services/messaging-api/internal/infrastructure/repository/conversation"
	messagerepo "moveon-server/services/messaging-api/internal/infrastructure/repository/message"
	"moveon-server/services/messaging-api/internal/interfaces"
)

var storageSet = wire.NewSet(
	newDatabaseConfig,
	newGormDB,
	transaction.NewDatabase,
	wire.Bind(new(message.Transactor), new(*transaction.Database)),
	newRedisCache,
	newPairLocker,
	newUnreadCache,
)

var conversationSet = wire.NewSet(
	conversationrepo.NewPostgresRepository,
	wire.Bind(new(conversation.Repository), new(*conversationrepo.PostgresRepository)),
	conversation.NewService,
)

var messageSet = wire.NewSet(
	messagerepo.NewPostgresRepository,
	wire.Bind(new(message.Repository), new(*messagerepo.PostgresRepository)),
	wire.Bind(new(message.Listener), new(*realtime.Gateway)),
	newLedgerConfig,
	message.NewService,
)

var realtimeSet = wire.NewSet(
	presence.NewRegistry,
	metrics.NewGatewayRecorder,
	wire.Bind(new(realtime.Recorder), new(metrics.GatewayRecorder)),
	realtime.NewGateway,
	realtimeinfra.OptionsFromConfig,
	newUpgrader,
	newSweeper,
)

var jobSet = wire.NewSet(
	newNotifier,
	wire.Bind(new(crontab.PresenceChecker), new(*realtime.Gateway)),
	crontab.NewCrontab,
)

// BuildApplication assembles the messaging service with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		storageSet,
		newAuthValidator,
		conversationSet,
		realtimeSet,
		messageSet,
		jobSet,
		newReadinessCheck,
		interfaces.InterfacesProvider,
		NewApplication,
	)
	return nil, nil
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func newRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	return cache.NewRedisCache(cfg.RedisURL)
}

func newPairLocker(rc *cache.RedisCache, cfg *config.Config) conversation.PairLocker {
	if rc == nil {
		return conversation.NoopLocker()
	}
	return cache.NewPairLocker(rc, cfg.PairLockTTL)
}

func newUnreadCache(rc *cache.RedisCache, cfg *config.Config) message.UnreadCache {
	if rc == nil {
		return nil
	}
	return cache.NewUnreadCache(rc, cfg.UnreadCacheTTL)
}

func newSweeper(registry *presence.Registry, cfg *config.Config, log zerolog.Logger) *presenceinfra.Sweeper {
	return presenceinfra.NewSweeper(registry, cfg.PresenceStaleTTL, cfg.PresenceSweepInterval, log)
}

func newAuthValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*auth.Validator, error) {
	return auth.NewValidator(ctx, cfg, log)
}
