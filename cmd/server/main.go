package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/auth"
	"punchinout.com/punchinout/core"
	"punchinout.com/punchinout/device"
	"punchinout.com/punchinout/employee"
	"punchinout.com/punchinout/face"
	"punchinout.com/punchinout/infrastructure/communication"
	"punchinout.com/punchinout/infrastructure/devops"
	"punchinout.com/punchinout/infrastructure/filesystem"
	"punchinout.com/punchinout/infrastructure/logging"
	"punchinout.com/punchinout/punch"
	"punchinout.com/punchinout/security"
	"punchinout.com/punchinout/web"
)

func main() {
	ctx := context.Background()

	cfg, err := devops.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	dm, err := core.New(cfg.Database.DSN, cfg.Database.MaxConnections, core.ParseLogLevel(cfg.Database.LogLevel))
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dm.Close()

	if err := dm.Migrate(ctx); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	secret, err := security.DecodeSecret(cfg.Auth.SigningSecret)
	if err != nil {
		log.Fatal("failed to decode signing secret", zap.Error(err))
	}

	store := audit.NewStore(dm)
	verifier := auth.NewVerifier(dm, security.NewSigner(secret, cfg.Auth.Issuer), security.NewBcryptHasher(cfg.Auth.BcryptCost), store, log, auth.Options{
		AdminTTL:  cfg.Auth.AdminTokenTTL,
		DeviceTTL: cfg.Auth.DeviceTTL,
	})

	var notifier device.Notifier
	slack := communication.NewSlack(cfg.Slack.BotToken, communication.SlackOption{
		InfoChannelID:  cfg.Slack.InfoChannelID,
		ErrorChannelID: cfg.Slack.ErrorChannelID,
	})
	if slack != nil {
		notifier = slack
	}

	var archive face.ImageArchive
	if cfg.Archive.Bucket != "" {
		s3Archive, err := filesystem.NewS3Archive(ctx, cfg.Archive.Bucket)
		if err != nil {
			log.Fatal("failed to configure image archive", zap.Error(err))
		}
		archive = s3Archive
	}

	directory := employee.NewDirectory(dm, store)
	client := face.NewClient(face.Config{
		EnrollURL:     cfg.Face.EnrollURL,
		AttendanceURL: cfg.Face.AttendanceURL,
		DeviceID:      cfg.Face.DeviceID,
		DeviceSecret:  cfg.Face.DeviceSecret,
		Timeout:       cfg.Face.Timeout,
	})

	router := web.NewRouter(web.Services{
		DB:        dm,
		Audit:     store,
		Verifier:  verifier,
		Registry:  device.NewRegistry(dm, store, notifier, log),
		Directory: directory,
		Punch:     punch.NewManager(dm, store, log),
		Face:      face.NewBridge(client, directory, store, archive, log),
		Log:       log,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("addr", server.Addr), zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if slack != nil {
				_ = slack.Error(ctx, fmt.Sprintf("punchinout server stopped: %v", err))
			}
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("server exited")
}
