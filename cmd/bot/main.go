package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"

	"giveaway-bot/internal/bot"
	"giveaway-bot/internal/common/config"
	"giveaway-bot/internal/common/logger"
	"giveaway-bot/internal/features/botlog"
	brepo "giveaway-bot/internal/features/broadcast/repository"
	bmongo "giveaway-bot/internal/features/broadcast/repository/mongo"
	bredis "giveaway-bot/internal/features/broadcast/repository/redis"
	bservice "giveaway-bot/internal/features/broadcast/service"
	crepo "giveaway-bot/internal/features/channel/repository"
	cmongo "giveaway-bot/internal/features/channel/repository/mongo"
	credis "giveaway-bot/internal/features/channel/repository/redis"
	cservice "giveaway-bot/internal/features/channel/service"
	grepo "giveaway-bot/internal/features/giveaway/repository"
	gmongo "giveaway-bot/internal/features/giveaway/repository/mongo"
	gredis "giveaway-bot/internal/features/giveaway/repository/redis"
	gservice "giveaway-bot/internal/features/giveaway/service"
	sredis "giveaway-bot/internal/features/session/repository/redis"
	sservice "giveaway-bot/internal/features/session/service"
	subservice "giveaway-bot/internal/features/subscription/service"
	urepo "giveaway-bot/internal/features/user/repository"
	umongo "giveaway-bot/internal/features/user/repository/mongo"
	uredis "giveaway-bot/internal/features/user/repository/redis"
	uservice "giveaway-bot/internal/features/user/service"
	apphttp "giveaway-bot/internal/http"
	"giveaway-bot/internal/platform/mongo"
	"giveaway-bot/internal/platform/redis"
	"giveaway-bot/internal/platform/telegram"
)

const (
	serviceName     = "giveaway-bot"
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

// stores groups the document repositories picked by STORE_DRIVER.
type stores struct {
	giveaways grepo.GiveawayRepository
	users     urepo.UserRepository
	chats     urepo.ChatRepository
	settings  crepo.SettingsRepository
	history   brepo.HistoryRepository
}

func main() {
	// Инициализируем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Инициализируем логгер
	lg := logger.Init(logger.Options{
		Service:    serviceName,
		Debug:      cfg.Debug,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	lg.Info().
		Bool("debug", cfg.Debug).
		Str("store", cfg.Store.Driver).
		Int("admins", len(cfg.Telegram.AdminIDs)).
		Msg("Starting giveaway bot")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancelStart := context.WithTimeout(ctx, startupTimeout)
	defer cancelStart()

	// Redis нужен всегда: в нём живут сессии диалогов
	rdb, err := redis.Open(startCtx, redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Broadcast.Workers * 2,
	})
	if err != nil {
		lg.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	lg.Info().Str("addr", cfg.RedisAddr()).Msg("Redis connection established")

	checks := map[string]apphttp.Pinger{"redis": rdb}
	stats := map[string]apphttp.StatsProvider{"redis": rdb}

	var st *stores
	switch cfg.Store.Driver {
	case config.StoreMongo:
		mc, err := mongo.Open(startCtx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			lg.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mc.Disconnect(dctx); err != nil {
				lg.Warn().Err(err).Msg("Failed to disconnect MongoDB")
			}
		}()
		lg.Info().Str("database", cfg.Mongo.Database).Msg("MongoDB connection established")
		checks["mongo"] = mc

		st, err = mongoStores(startCtx, mc, cfg)
		if err != nil {
			lg.Fatal().Err(err).Msg("Failed to initialize MongoDB repositories")
		}
	default:
		st = redisStores(rdb, cfg)
	}
	lg.Info().Msg("Repositories initialized")

	// Telegram
	b, err := telegram.NewBot(cfg.Telegram.BotToken, cfg.Telegram.PollTimeout, func(err error, c tele.Context) {
		ev := lg.Error().Err(err)
		if c != nil && c.Sender() != nil {
			ev = ev.Int64("user_id", c.Sender().ID)
		}
		ev.Msg("Telegram update failed")
	})
	if err != nil {
		lg.Fatal().Err(err).Msg("Failed to create bot")
	}
	tg := telegram.NewClient(b, lg)

	// Инициализируем сервисы
	settingsSvc := cservice.NewSettingsService(st.settings, tg, cfg.Telegram.AdminIDs, lg)
	if n, err := settingsSvc.MigrateLegacy(startCtx); err != nil {
		lg.Warn().Err(err).Msg("Failed to migrate legacy settings")
	} else if n > 0 {
		lg.Info().Int("channels", n).Msg("Legacy force channels migrated")
	}

	audienceSvc := uservice.NewAudienceService(st.users, st.chats, lg)
	coordinator := bservice.NewCoordinator(tg, bservice.Options{
		Workers:         cfg.Broadcast.Workers,
		RatePerSecond:   cfg.Broadcast.RatePerSecond,
		MaxFloodRetries: cfg.Broadcast.MaxFloodRetries,
	}, lg)
	messages := bot.NewMessages()
	giveawaySvc := gservice.NewGiveawayService(
		st.giveaways,
		gservice.NewRandomSelector(),
		coordinator,
		audienceSvc,
		messages,
		lg,
	)
	gate := subservice.NewGate(settingsSvc, tg, subservice.Options{Strict: cfg.Subscription.Strict}, lg)
	wizard := sservice.NewWizard(sredis.NewRedisSessionStore(rdb.Client, cfg.Session.TTL), giveawaySvc, lg)
	broadcaster := bservice.NewAdminBroadcaster(coordinator, audienceSvc, st.history, lg)
	notifier := botlog.NewNotifier(tg, cfg.Telegram.LogChannel, lg)
	lg.Info().Msg("Services initialized")

	handler := bot.New(bot.Deps{
		Giveaways:  giveawaySvc,
		Gate:       gate,
		Settings:   settingsSvc,
		Audience:   audienceSvc,
		Dialog:     wizard,
		Broadcasts: broadcaster,
		Fanout:     coordinator,
		Log:        notifier,
		Messages:   messages,
		LogChannel: cfg.Telegram.LogChannel,
	}, lg)

	server := apphttp.NewServer(apphttp.Options{
		Port:    cfg.Server.Port,
		Debug:   cfg.Debug,
		Service: serviceName,
		Checks:  checks,
		Stats:   stats,
	}, lg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		return handler.Run(gctx, b)
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info().Msg("Shutting down...")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		lg.Error().Err(err).Msg("Stopped with error")
		os.Exit(1)
	}
	lg.Info().Msg("Bot exited")
}

func redisStores(rdb *redis.Client, cfg *config.Config) *stores {
	return &stores{
		giveaways: gredis.NewRedisGiveawayRepository(rdb.Client),
		users:     uredis.NewUserRepository(rdb.Client),
		chats:     uredis.NewChatRepository(rdb.Client),
		settings:  credis.NewRedisSettingsRepository(rdb.Client, cfg.Subscription.DefaultEnabled),
		history:   bredis.NewRedisHistoryRepository(rdb.Client, cfg.Broadcast.HistoryRetention),
	}
}

func mongoStores(ctx context.Context, mc *mongo.Client, cfg *config.Config) (*stores, error) {
	db := mc.Database()

	giveaways, err := gmongo.NewMongoGiveawayRepository(ctx, db)
	if err != nil {
		return nil, err
	}
	users, err := umongo.NewUserRepository(ctx, db)
	if err != nil {
		return nil, err
	}
	settings, err := cmongo.NewMongoSettingsRepository(ctx, db, cfg.Subscription.DefaultEnabled)
	if err != nil {
		return nil, err
	}
	return &stores{
		giveaways: giveaways,
		users:     users,
		chats:     umongo.NewChatRepository(db),
		settings:  settings,
		history:   bmongo.NewMongoHistoryRepository(db),
	}, nil
}
