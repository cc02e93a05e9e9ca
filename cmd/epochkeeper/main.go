// Command epochkeeper watches the staking epoch and redeems pending bond
// payouts shortly before each rebase.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alanyoungcy/epochkeeper/internal/app"
	"github.com/alanyoungcy/epochkeeper/internal/config"
	"github.com/alanyoungcy/epochkeeper/internal/crypto"
	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	encryptKey := flag.String("encrypt-key", "", "encrypt wallet.private_key with wallet.key_password into this file and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		newLogger("info").Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		return 1
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if *encryptKey != "" {
		if err := crypto.WriteEncryptedKey(*encryptKey, cfg.Wallet.PrivateKey, cfg.Wallet.KeyPassword); err != nil {
			logger.Error("failed to encrypt key", slog.String("error", err.Error()))
			return 1
		}
		logger.Info("encrypted key written, set wallet.encrypted_key_path and clear wallet.private_key",
			slog.String("path", *encryptKey),
		)
		return 0
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}
	logger.Debug("configuration loaded", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = application.Run(ctx)
	if errors.Is(err, domain.ErrNewAccount) {
		logger.Warn("keystore account created, restart once wallet.address is updated",
			slog.String("error", err.Error()),
		)
		return 1
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("epochkeeper exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}

	logger.Info("epochkeeper stopped")
	return 0
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
