package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"teamtrivia/catalog"
	"teamtrivia/config"
	"teamtrivia/handlers"
	"teamtrivia/middleware"
	"teamtrivia/models"
	"teamtrivia/routes"
	"teamtrivia/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const releaseVersion = "0.1.0"

func main() {
	log.SetFlags(0)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error loading .env file: %v", err)
	}

	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "teamtrivia",
		Short:         "Host a team trivia game that teams play from their own devices.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindEnv(cmd.Flags()); err != nil {
				return err
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	config.RegisterFlags(fs, cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("teamtrivia v{{.Version}}\n")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// Load question catalog
	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			return err
		}
		cat = loaded
	}
	logger.Info("catalog loaded", "rounds", len(cat.Rounds), "questions", cat.TotalQuestions())

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(
		&models.Game{},
		&models.Team{},
		&models.Answer{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize services
	gameService := services.NewGameService(db, cat, logger)
	catalogService := services.NewCatalogService(cat)

	hub := services.NewHub(gameService, logger)
	gameService.SetPresence(hub)
	go hub.Run(ctx)

	// Redis carries updates between instances; local clients are fed by the
	// relay, so a failed subscription stops startup.
	var relayErr chan error
	if rdb := config.InitRedis(cfg); rdb != nil {
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		relay, err := services.StartRelay(ctx, rdb, hub, logger)
		if err != nil {
			return err
		}
		gameService.SetNotifier(services.NewRedisNotifier(rdb, logger))
		relayErr = make(chan error, 1)
		go func() {
			relayErr <- relay.Run(ctx)
		}()
	} else {
		gameService.SetNotifier(hub)
	}

	// Initialize handlers
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	gameHandler := handlers.NewGameHandler(gameService, hub, logger, cfg.PublicURL)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS())

	routes.SetupRoutes(router, catalogHandler, gameHandler, hub, gameService, logger)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "version", releaseVersion)
		errCh <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case err := <-relayErr:
		if err != nil {
			logger.Error("redis relay stopped", "error", err)
			runErr = fmt.Errorf("redis relay stopped: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(runErr, srv.Shutdown(shutdownCtx))
}
