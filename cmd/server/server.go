package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"

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
	"moveon-server/services/messaging-api/internal/infrastructure/observability"
	presenceinfra "moveon-server/services/messaging-api/internal/infrastructure/presence"
	realtimeinfra "moveon-server/services/messaging-api/internal/infrastructure/realtime"
	conversationrepo "moveon-server/services/messaging-api/internal/infrastructure/repository/conversation"
	messagerepo "moveon-server/services/messaging-api/internal/infrastructure/repository/message"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/handlers"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/routes"
)

// @title Messaging API
// @version 1.0
// @description Direct messaging, read state and realtime presence
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
type Application struct {
	httpServer *httpserver.HTTPServer
	sweeper    *presenceinfra.Sweeper
	crontab    *crontab.Crontab
	log        zerolog.Logger
}

func NewApplication(
	httpServer *httpserver.HTTPServer,
	sweeper *presenceinfra.Sweeper,
	cron *crontab.Crontab,
	log zerolog.Logger,
) *Application {
	return &Application{
		httpServer: httpServer,
		sweeper:    sweeper,
		crontab:    cron,
		log:        log,
	}
}

// Start runs the HTTP server, the presence sweeper and the reminder schedule
// until ctx is cancelled or one of them fails.
func (a *Application) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.sweeper.Start(gctx)
	defer a.sweeper.Stop()

	g.Go(func() error {
		return a.httpServer.Run(gctx)
	})
	g.Go(func() error {
		return a.crontab.Run(gctx)
	})

	return g.Wait()
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(newDatabaseConfig(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	txDB := transaction.NewDatabase(db)

	var (
		redisCache  *cache.RedisCache
		pairLocker  conversation.PairLocker
		unreadCache message.UnreadCache
	)
	if cfg.RedisURL != "" {
		redisCache, err = cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect redis")
		}
		defer redisCache.Close()
		pairLocker = cache.NewPairLocker(redisCache, cfg.PairLockTTL)
		unreadCache = cache.NewUnreadCache(redisCache, cfg.UnreadCacheTTL)
		log.Info().Msg("redis unread cache and pair lock enabled")
	}

	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize auth validator")
	}

	conversationService := conversation.NewService(conversationrepo.NewPostgresRepository(txDB), pairLocker, log)

	registry := presence.NewRegistry()
	gateway := realtime.NewGateway(registry, conversationService, metrics.NewGatewayRecorder(), log)

	ledger := message.NewService(
		messagerepo.NewPostgresRepository(txDB),
		conversationService,
		txDB,
		unreadCache,
		gateway,
		newLedgerConfig(cfg),
		log,
	)

	handlerProvider := handlers.NewProvider(
		handlers.NewConversationHandler(conversationService, ledger, gateway),
		handlers.NewMessageHandler(ledger),
		handlers.NewPresenceHandler(gateway),
		handlers.NewRealtimeHandler(gateway, ledger, newUpgrader(cfg), realtimeinfra.OptionsFromConfig(cfg), log),
	)
	routeProvider := routes.NewProvider(handlerProvider, authValidator)
	httpServer := httpserver.New(cfg, log, routeProvider, newReadinessCheck(db, redisCache))

	sweeper := presenceinfra.NewSweeper(registry, cfg.PresenceStaleTTL, cfg.PresenceSweepInterval, log)
	cron := crontab.NewCrontab(ledger, gateway, newNotifier(cfg, log), cfg, log)

	app := NewApplication(httpServer, sweeper, cron, log)
	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}

func newLedgerConfig(cfg *config.Config) message.Config {
	return message.Config{MaxContentLength: cfg.MessageMaxLength}
}
