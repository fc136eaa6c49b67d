package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/auth"
	"punchinout.com/punchinout/core"
	"punchinout.com/punchinout/infrastructure/devops"
	"punchinout.com/punchinout/infrastructure/logging"
	"punchinout.com/punchinout/model"
	"punchinout.com/punchinout/security"
)

// seed migrates the schema and creates the first super admin.
//
//	SEED_ADMIN_EMAIL (default admin@punchinout.com)
//	SEED_ADMIN_PASSWORD (required)
func main() {
	ctx := context.Background()

	cfg, err := devops.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	email := os.Getenv("SEED_ADMIN_EMAIL")
	if email == "" {
		email = "admin@punchinout.com"
	}
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("SEED_ADMIN_PASSWORD is required")
	}

	dm, err := core.New(cfg.Database.DSN, 1, core.ParseLogLevel(cfg.Database.LogLevel))
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
	verifier := auth.NewVerifier(dm, security.NewSigner(secret, cfg.Auth.Issuer), security.NewBcryptHasher(cfg.Auth.BcryptCost), audit.NewStore(dm), log, auth.Options{})

	created, err := verifier.EnsureAdmin(ctx, email, password, model.RoleSuperAdmin)
	if err != nil {
		log.Fatal("failed to seed admin", zap.Error(err))
	}
	if created {
		log.Info("admin created", zap.String("email", email))
		return
	}
	log.Info("admin already exists", zap.String("email", email))
}
