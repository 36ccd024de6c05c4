package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/quillrook/songsmith/internal/api"
	"github.com/quillrook/songsmith/internal/artist"
	"github.com/quillrook/songsmith/internal/auth"
	"github.com/quillrook/songsmith/internal/config"
	"github.com/quillrook/songsmith/internal/encryption"
	"github.com/quillrook/songsmith/internal/generate"
	"github.com/quillrook/songsmith/internal/history"
	"github.com/quillrook/songsmith/internal/logging"
	"github.com/quillrook/songsmith/internal/profile"
	"github.com/quillrook/songsmith/internal/transfer"
	"github.com/quillrook/songsmith/internal/version"
	"github.com/quillrook/songsmith/internal/watcher"
)

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, logCloser := logging.New(logging.Config{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.Logging.FilePath,
	})
	if logCloser != nil {
		defer logCloser.Close() //nolint:errcheck
	}
	slog.SetDefault(logger)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	encKey, err := resolveEncryptionKey(cfg, logger)
	if err != nil {
		return fmt.Errorf("resolving encryption key: %w", err)
	}
	encryptor, err := encryption.New(encKey)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}

	authService := auth.NewService(db)
	artistService := artist.NewService(db)
	historyService := history.NewService(db)
	profileService := profile.NewService(db, encryptor, artistService, historyService)
	transferService := transfer.NewService(artistService, historyService)
	generator := generate.NewClient(cfg.Generation.BaseURL, logger)

	logger.Info("starting songsmith",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
	)

	router := api.NewRouter(api.RouterDeps{
		AuthService:     authService,
		ArtistService:   artistService,
		HistoryService:  historyService,
		ProfileService:  profileService,
		TransferService: transferService,
		Generator:       generator,
		Model:           cfg.Generation.Model,
		Logger:          logger,
		BasePath:        cfg.Server.BasePath,
		StaticDir:       "web/static",
		SecureCookies:   cfg.Server.SecureCookies,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // generation calls are slow
		IdleTimeout:  60 * time.Second,
	}

	// Session cleanup
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := authService.CleanExpiredSessions(ctx); err != nil {
					logger.Error("session cleanup failed", "error", err)
				}
			}
		}
	}()

	// Import inbox, when configured
	if cfg.Inbox.Path != "" {
		inbox := watcher.NewService(cfg.Inbox.Path, cfg.Inbox.OwnerEmail, transferService, authService, logger)
		go inbox.Start(ctx)
	}

	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.String("base_path", cfg.Server.BasePath))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// resolveEncryptionKey determines the credential encryption key.
// Priority: config/env > key file next to the database > generate new.
func resolveEncryptionKey(cfg *config.Config, logger *slog.Logger) (string, error) {
	if cfg.Encryption.Key != "" {
		return cfg.Encryption.Key, nil
	}

	dataDir := filepath.Dir(cfg.Database.Path)
	keyFile := filepath.Join(dataDir, "encryption.key")

	data, err := os.ReadFile(keyFile) //nolint:gosec // G304: path derived from trusted config
	if err == nil {
		key := strings.TrimSpace(string(data))
		if key != "" {
			logger.Debug("loaded encryption key from file", slog.String("path", keyFile))
			return key, nil
		}
	}

	key, err := encryption.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generating encryption key: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		logger.Warn("could not create data directory for encryption key",
			slog.String("path", dataDir), slog.Any("error", err))
		return key, nil
	}

	if err := os.WriteFile(keyFile, []byte(key+"\n"), 0o600); err != nil {
		logger.Warn("could not save encryption key to file",
			slog.String("path", keyFile), slog.Any("error", err))
	} else {
		logger.Warn("generated new encryption key -- back up this file",
			slog.String("path", keyFile))
	}

	return key, nil
}
