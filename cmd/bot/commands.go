package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Gurkunwar/dailybot-engine/internal/bot"
	"github.com/Gurkunwar/dailybot-engine/internal/config"
	"github.com/Gurkunwar/dailybot-engine/internal/database"
	"github.com/Gurkunwar/dailybot-engine/internal/logger"
	"github.com/Gurkunwar/dailybot-engine/internal/seed"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "dailybot",
	Short: "Daily standup bot and session engine",
	Long: `dailybot opens a standup session for every project on its working days,
collects answers through Discord or the HTTP API, and posts a summary when
the response window closes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server, the Discord bot and the session driver",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.RequireAPI(); err != nil {
			return err
		}
		return withApp(cmd.Context(), true, runServe)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run only the session driver",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
			a.logger.Info("driver running",
				slog.Duration("open_interval", a.cfg.OpenPassInterval),
				slog.Duration("close_interval", a.cfg.ClosePassInterval),
			)
			return a.driver.Run(ctx)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.InitDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close(db)
		log.Info("database schema is up to date")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [file.yaml]",
	Short: "Load projects, members, tickets and standup configs from YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := seed.LoadFile(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
			loader := &seed.Loader{
				Projects: a.projects,
				Standups: a.standups,
				Tickets:  a.tickets,
				Logger:   a.logger,
			}
			if err := loader.Apply(ctx, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Seeded %d project(s) from %s\n", len(f.Projects), args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.SetupDefault(os.Stdout, cfg.LogLevel), nil
}

// withApp wires the process, runs fn until it returns or a shutdown signal
// arrives, then releases every connection.
func withApp(parent context.Context, withDiscord bool, fn func(context.Context, *app) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, log, withDiscord)
	if err != nil {
		return err
	}
	defer a.close()

	return fn(ctx, a)
}

func runServe(ctx context.Context, a *app) error {
	if a.discord != nil {
		handler := a.botHandler()
		a.discord.AddHandler(handler.OnInteraction)
		if err := a.discord.Open(); err != nil {
			return fmt.Errorf("open discord session: %w", err)
		}
		bot.RegisterCommands(a.discord, a.logger)
		a.logger.Info("DailyBot is live!")
	} else {
		a.logger.Warn("DISCORD_BOT_TOKEN is not set, running without the bot and notifications")
	}

	if err := a.driver.Start(ctx); err != nil {
		return err
	}
	defer a.driver.Stop()

	return a.apiServer().Start(ctx, ":"+a.cfg.APIPort)
}
