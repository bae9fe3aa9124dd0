package main

import (
	"log/slog"

	"github.com/Gurkunwar/dailybot-engine/internal/api"
	"github.com/Gurkunwar/dailybot-engine/internal/bot"
	"github.com/Gurkunwar/dailybot-engine/internal/config"
	"github.com/Gurkunwar/dailybot-engine/internal/database"
	"github.com/Gurkunwar/dailybot-engine/internal/metrics"
	"github.com/Gurkunwar/dailybot-engine/internal/notify"
	"github.com/Gurkunwar/dailybot-engine/internal/services"
	"github.com/Gurkunwar/dailybot-engine/internal/store"
	"github.com/Gurkunwar/dailybot-engine/internal/summarizer"
	"github.com/Gurkunwar/dailybot-engine/internal/worker"
	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// app holds every wired component of one process.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db       *gorm.DB
	redis    *redis.Client
	discord  *discordgo.Session
	registry *prometheus.Registry

	projects  *services.ProjectService
	standups  *services.StandupService
	tickets   *services.GormTicketStore
	summaries *services.SummaryGenerator
	manager   *services.Manager
	collector *services.Collector
	driver    *worker.Driver
}

// newApp connects to the database and, when configured, Redis and Discord.
// Redis and Discord are optional; without them the pass lock and the
// notifications are skipped.
func newApp(cfg *config.Config, logger *slog.Logger, withDiscord bool) (*app, error) {
	db, err := database.InitDB(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db}

	if cfg.RedisURL != "" {
		rdb, err := store.InitRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, passes run without a distributed lock", slog.String("error", err.Error()))
		} else {
			a.redis = rdb
		}
	}

	if withDiscord && cfg.DiscordBotToken != "" {
		dg, err := bot.NewSession(cfg.DiscordBotToken)
		if err != nil {
			a.close()
			return nil, err
		}
		a.discord = dg
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(a.registry)

	a.projects = services.NewProjectService(db)
	a.standups = services.NewStandupService(db, logger)
	a.tickets = services.NewGormTicketStore(db)

	var s summarizer.Summarizer
	if cfg.SummarizerURL != "" {
		s = summarizer.NewHTTPSummarizer(cfg.SummarizerURL, cfg.SummarizerToken)
	}
	a.summaries = services.NewSummaryGenerator(db, s, a.projects, logger)
	a.summaries.Timeout = cfg.SummarizerTimeout
	a.summaries.Metrics = recorder

	a.manager = services.NewManager(db, a.standups, a.summaries, logger)
	a.manager.Metrics = recorder
	if a.discord != nil {
		a.manager.Notifier = notify.NewDiscordNotifier(a.discord, a.projects, logger)
	}

	linker := services.NewTicketLinker(a.tickets, logger)
	linker.Metrics = recorder
	a.collector = services.NewCollector(db, linker, logger)
	a.collector.LinkTimeout = cfg.LinkageTimeout
	a.collector.Metrics = recorder

	a.driver = worker.NewDriver(a.manager, cfg.OpenPassInterval, cfg.ClosePassInterval, logger)
	a.driver.Metrics = recorder
	if a.redis != nil {
		a.driver.Locker = store.NewPassLock(a.redis, cfg.PassLockTTL)
	}

	return a, nil
}

func (a *app) apiServer() *api.Server {
	srv := api.NewServer(a.standups, a.manager, a.collector, a.summaries, a.driver, a.cfg.JWTSecret, a.logger)
	srv.Limiter = api.NewSubmitLimiter(a.cfg.SubmitRatePerMin)
	srv.AllowedOrigin = a.cfg.CORSAllowedOrigin
	srv.Gatherer = a.registry
	return srv
}

func (a *app) botHandler() *bot.BotHandler {
	return bot.NewBotHandler(a.discord, a.manager, a.collector, a.summaries, a.projects, a.logger)
}

func (a *app) close() {
	if a.discord != nil {
		if err := a.discord.Close(); err != nil {
			a.logger.Warn("failed to close discord session", slog.String("error", err.Error()))
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("failed to close database", slog.String("error", err.Error()))
	}
}
