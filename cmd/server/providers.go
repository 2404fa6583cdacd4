package main

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"moveon-server/services/messaging-api/internal/config"
	"moveon-server/services/messaging-api/internal/infrastructure/cache"
	"moveon-server/services/messaging-api/internal/infrastructure/database"
	"moveon-server/services/messaging-api/internal/infrastructure/notifier"
	realtimeinfra "moveon-server/services/messaging-api/internal/infrastructure/realtime"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver"
)

func newUpgrader(cfg *config.Config) *websocket.Upgrader {
	return realtimeinfra.NewUpgrader(cfg.CORSAllowOrigin)
}

func newNotifier(cfg *config.Config, log zerolog.Logger) notifier.Notifier {
	return notifier.New(cfg.NotificationWebhook, cfg.NotificationTimeout, log)
}

// newReadinessCheck pings postgres and, when configured, redis.
func newReadinessCheck(db *gorm.DB, redisCache *cache.RedisCache) httpserver.ReadinessCheck {
	return func(ctx context.Context) error {
		if err := database.Ping(ctx, db); err != nil {
			return err
		}
		if redisCache != nil {
			return redisCache.HealthCheck(ctx)
		}
		return nil
	}
}
