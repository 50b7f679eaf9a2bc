package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tolkbridge/tolka/api"
	dbfs "github.com/tolkbridge/tolka/db"
	"github.com/tolkbridge/tolka/internal/booking"
	"github.com/tolkbridge/tolka/internal/config"
	"github.com/tolkbridge/tolka/internal/db"
	"github.com/tolkbridge/tolka/internal/expiry"
	"github.com/tolkbridge/tolka/internal/notify"
	"github.com/tolkbridge/tolka/internal/repository/sqlite"
	"github.com/tolkbridge/tolka/pkg/mailer"
	"github.com/tolkbridge/tolka/pkg/push"
	"github.com/tolkbridge/tolka/pkg/repository"
	"github.com/tolkbridge/tolka/pkg/sms"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	push.SetLogger(logger)
	sms.SetLogger(logger)

	logger.Info("starting tolka server", "version", version, "build_time", buildTime)

	ctx := context.Background()

	database, err := db.New(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	sqliteRepo := sqlite.New(database, logger)
	repo := &repository.Repository{Jobs: sqliteRepo, Users: sqliteRepo}

	pusher, err := push.NewClient(cfg.Push, cfg.Environment, nil)
	if err != nil {
		log.Fatalf("Failed to create push client: %v", err)
	}

	var texter sms.Sender
	if cfg.SMS.Endpoint != "" {
		texter = sms.NewGateway(cfg.SMS, nil)
	} else {
		texter = sms.NewLogSender(logger)
	}
	mail := mailer.NewLogMailer(logger)

	clock := booking.SystemClock()
	matcher := booking.NewMatcher(repo)
	dispatcher := notify.NewDispatcher(repo, matcher, pusher, mail, texter,
		cfg.SMS.FromNumber, cfg.Notify, clock, logger)
	svc := booking.NewService(repo, dispatcher, cfg.Booking, clock, logger)

	sweeper := expiry.NewSweeper(repo, dispatcher, clock, cfg.Booking.ExpirySweepInterval, logger)
	sweeper.Start(ctx)

	handler := api.SetupRoutes(cfg, version, buildTime, repo, svc)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	sweeper.Stop()

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := pusher.Close(); err != nil {
		logger.Error("closing push client", "error", err)
	}
	if err := database.Close(); err != nil {
		logger.Error("closing db", "error", err)
	}

	logger.Info("server exited")
}
