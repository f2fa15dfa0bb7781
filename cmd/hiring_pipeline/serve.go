package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/hiring-pipeline/database"
	"github.com/jonathan/hiring-pipeline/internal/config"
	"github.com/jonathan/hiring-pipeline/internal/db"
	"github.com/jonathan/hiring-pipeline/internal/pipeline"
	"github.com/jonathan/hiring-pipeline/internal/server"
	"github.com/jonathan/hiring-pipeline/internal/server/ratelimit"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the pipeline, job and candidate endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply pending migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	logger, err := config.NewLogger(os.Stderr, cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	jwtCfg, err := cfg.JWT()
	if err != nil {
		return fmt.Errorf("invalid JWT configuration: %w", err)
	}
	if jwtCfg == nil {
		logger.Warn("JWT_SECRET is not set, mutating routes are unauthenticated")
	}

	timeout, err := cfg.StatementTimeout()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveMigrate {
		logger.Info("Applying database migrations")
		if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	store, err := db.Connect(ctx, cfg.DatabaseURL, db.Options{
		MaxConns:         cfg.DBMaxConns,
		StatementTimeout: timeout,
		Logger:           logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	svc := pipeline.NewService(store,
		pipeline.WithLogger(logger),
		pipeline.WithTracer(otel.Tracer("github.com/jonathan/hiring-pipeline")))

	srv := server.New(svc, server.Config{
		Port:      cfg.Port,
		RateLimit: ratelimit.NewConfig(cfg.RateLimitRPS, cfg.RateLimitBurst),
		JWT:       jwtCfg,
		Logger:    logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
