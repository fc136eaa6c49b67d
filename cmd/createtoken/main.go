package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"punchinout.com/punchinout/audit"
	"punchinout.com/punchinout/auth"
	"punchinout.com/punchinout/core"
	"punchinout.com/punchinout/infrastructure/devops"
	"punchinout.com/punchinout/infrastructure/logging"
	"punchinout.com/punchinout/model"
	"punchinout.com/punchinout/security"
)

// createtoken mints a device token for an existing device, for provisioning
// a kiosk by hand or for local testing:
//
//	go run ./cmd/createtoken -device KIOSK-1
func main() {
	deviceCode := flag.String("device", "", "device code")
	flag.Parse()
	if *deviceCode == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	cfg, err := devops.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	dm, err := core.New(cfg.Database.DSN, 1, core.LogLevelSilent)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dm.Close()

	var device model.Device
	err = dm.Exec(ctx, func(db *gorm.DB) error {
		return db.Where("device_code = ?", *deviceCode).Take(&device).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatal("device not found", zap.String("deviceCode", *deviceCode))
	}
	if err != nil {
		log.Fatal("failed to load device", zap.Error(err))
	}
	if !device.IsActive {
		log.Warn("device is inactive, the token will be rejected until it is activated", zap.String("deviceCode", device.DeviceCode))
	}

	secret, err := security.DecodeSecret(cfg.Auth.SigningSecret)
	if err != nil {
		log.Fatal("failed to decode signing secret", zap.Error(err))
	}
	verifier := auth.NewVerifier(dm, security.NewSigner(secret, cfg.Auth.Issuer), security.NewBcryptHasher(cfg.Auth.BcryptCost), audit.NewStore(dm), log, auth.Options{
		DeviceTTL: cfg.Auth.DeviceTTL,
	})

	token, err := verifier.IssueDeviceToken(ctx, &device)
	if err != nil {
		log.Fatal("failed to issue device token", zap.Error(err))
	}
	fmt.Println(token.Token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", token.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
}
