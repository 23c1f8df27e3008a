package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JustJay7/ojv-scraper/internal/cache"
	"github.com/JustJay7/ojv-scraper/internal/config"
	"github.com/JustJay7/ojv-scraper/internal/database"
	"github.com/JustJay7/ojv-scraper/internal/server"
	"github.com/JustJay7/ojv-scraper/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "ojv-scraper",
	Short: "Scrapes the Oficina Judicial Virtual and keeps a local copy of the cases found.",
	RunE:  runServer,
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the HTTP API (default).",
	RunE:  runServer,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Runs database migrations and exits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, db, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()

		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("Database migrations completed successfully")
		return nil
	},
}

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.AddCommand(serverCmd, migrateCmd, scrapeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, the logger and the database, which every
// command needs.
func bootstrap() (*config.Config, *logger.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Initialize(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return cfg, log, db, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	cacheService := cache.NewCache(cfg.CacheSize, cfg.CacheTTL)
	srv := server.New(cfg, database.NewStore(db, log), cacheService, log)

	log.Info("Starting OJV scraper",
		"host", cfg.Host,
		"port", cfg.Port,
		"portal", cfg.PortalBaseURL,
		"postgres", cfg.UsesPostgres(),
	)

	return srv.Run()
}
