package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/gophsync/internal/config"
	"github.com/iudanet/gophsync/internal/server"
	"github.com/iudanet/gophsync/internal/server/jwt"
	"github.com/iudanet/gophsync/internal/server/storage/s3"
	"github.com/iudanet/gophsync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse flags
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to YAML config file")
	envFile := flag.String("env-file", ".env", "Path to .env file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	flag.Usage = printUsage
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.LoadServer(*configPath, config.WithEnvFile(*envFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Address = *addr
	}

	logger := cfg.Log.NewLogger()

	args := flag.Args()
	if len(args) > 0 {
		switch args[0] {
		case "token":
			if err := runToken(cfg, args[1:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			printUsage()
			os.Exit(1)
		}
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Server, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []sqlite.Option
	if cfg.BlobBackend == config.BlobBackendS3 {
		blobs, err := s3.New(ctx, s3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Prefix:          cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to init s3 blob store: %w", err)
		}
		opts = append(opts, sqlite.WithBlobStore(blobs))
		logger.Info("Using S3 blob backend", "bucket", cfg.S3.Bucket, "region", cfg.S3.Region)
	}

	store, err := sqlite.New(ctx, cfg.DBPath, opts...)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	tokens := jwt.NewService(cfg.JWTSecret, cfg.TokenTTL)

	router := server.NewRouter(server.RouterConfig{
		Version:         Version,
		MaxUploadSize:   cfg.MaxUploadSize,
		MaxPageSize:     cfg.MaxPageSize,
		RateLimit:       cfg.RateLimit,
		UploadRateLimit: cfg.UploadRateLimit,
		RateWindow:      cfg.RateWindow,
	}, store, tokens, logger)

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("GophSync server starting", "address", cfg.Address, "version", Version, "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// runToken выпускает bearer токен для устройства
func runToken(cfg *config.Server, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	userID := fs.String("user", "", "User ID (required)")
	deviceID := fs.String("device", "", "Bind the token to a device ID (see 'gophsync status')")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return errors.New("-user is required")
	}
	token, expiresAt, err := jwt.NewService(cfg.JWTSecret, cfg.TokenTTL).Issue(*userID, *deviceID)
	if err != nil {
		return err
	}

	fmt.Println(token)
	device := *deviceID
	if device == "" {
		device = "any"
	}
	fmt.Fprintf(os.Stderr, "device: %s, expires: %s\n", device, expiresAt.Format(time.RFC3339))
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: gophsync-server [flags] [command]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  (none)                          Run the sync server\n")
	fmt.Fprintf(os.Stderr, "  token -user ID [-device ID]     Issue a bearer token\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}

func printVersion() {
	fmt.Printf("GophSync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
