package main

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pushgate/internal/config"
	"pushgate/internal/database"
	"pushgate/internal/middleware"
	pushapi "pushgate/internal/push/api"
	"pushgate/internal/push/bootstrap"
	"pushgate/internal/push/cache"
	pushdb "pushgate/internal/push/database"
	"pushgate/internal/push/service/dispatch"
	"pushgate/internal/push/service/notifier"
	"pushgate/internal/push/service/recorder"
	"pushgate/internal/push/service/registry"
)

func main() {
	log.Info().Msg("Starting pushgate api server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// configure log level from config
	switch strings.ToLower(cfg.Logging.Level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	defer db.Close()

	rules := pushdb.NewRuleRepo(db)
	robots := pushdb.NewRobotRepo(db)
	templates := pushdb.NewTemplateRepo(db)
	channels := pushdb.NewChannelRepo(db)
	mappings := pushdb.NewMappingRepo(db)
	records := pushdb.NewRecordRepo(db)
	logs := pushdb.NewMessageLogRepo(db)

	if err := bootstrap.Run(ctx, cfg.Push.BootstrapFile, bootstrap.Deps{
		Rules: rules, Robots: robots, Templates: templates, Channels: channels,
	}); err != nil {
		log.Error().Err(err).Msg("bootstrap from seed file failed")
	}

	sendTimeout := parseDuration(cfg.Push.SendTimeout, 10*time.Second)
	dispatcher := dispatch.New(
		rules,
		registry.NewPgRegistry(mappings, channels),
		recorder.NewPgRecorder(records, cfg.Push.PreviewLimit),
		notifier.NewWebhookSender(sendTimeout),
		dispatch.WithWorkers(cfg.Push.Workers),
		dispatch.WithSendTimeout(sendTimeout),
		dispatch.WithMessageLogger(logs),
	)

	rdb := cache.NewRedisClientFromConfig(&cfg.Redis)
	deliveries := cache.NewDeliveryCache(rdb, parseDuration(cfg.Push.IdempotencyTTL, 2*time.Minute))

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	pushapi.NewApi(router, pushapi.Deps{
		Rules: rules, Robots: robots, Templates: templates, Channels: channels,
		Mappings: mappings, Records: records, Logs: logs,
		Dispatcher: dispatcher, Deliveries: deliveries,
	}, middleware.TokenAuth(cfg.Push.AuthToken))

	log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
	if err := router.Run(cfg.Server.BindAddr); err != nil {
		log.Fatal().Err(err).Msg("start pushgate api server failed.")
	}
	log.Info().Msg("pushgate api server exit...")
}

func parseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	return d
}
