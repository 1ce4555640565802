package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/gophsync/internal/client/api"
	"github.com/iudanet/gophsync/internal/client/cli"
	"github.com/iudanet/gophsync/internal/client/data"
	"github.com/iudanet/gophsync/internal/client/files"
	"github.com/iudanet/gophsync/internal/client/iocli"
	"github.com/iudanet/gophsync/internal/client/storage/boltdb"
	"github.com/iudanet/gophsync/internal/client/sync"
	"github.com/iudanet/gophsync/internal/client/syncmeta"
	"github.com/iudanet/gophsync/internal/client/transfer"
	"github.com/iudanet/gophsync/internal/config"
	"github.com/iudanet/gophsync/internal/crdt"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to YAML config file")
	envFile := flag.String("env-file", ".env", "Path to .env file")
	serverURL := flag.String("server", "", "Server URL (overrides config)")
	dbPath := flag.String("db", "", "Path to local database (overrides config)")

	stdio := iocli.NewStdio()
	flag.Usage = func() { cli.PrintUsage(stdio) }
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// Получаем команду
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage(stdio)
		os.Exit(1)
	}

	cfg, err := config.LoadClient(*configPath, config.WithEnvFile(*envFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, stdio, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// run собирает зависимости клиента и выполняет команду
func run(ctx context.Context, cfg *config.Client, stdio iocli.IO, command string, args []string) error {
	logger := cfg.Log.NewLogger()

	// Открываем BoltDB storage
	db, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	deviceID, err := db.GetDeviceID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device id: %w", err)
	}

	clock := crdt.NewClock(deviceID, crdt.WithStateStore(db), crdt.WithLogger(logger))

	store := syncmeta.New(db, clock, deviceID, logger)
	store.Register(cfg.Collections...)

	apiClient := api.NewClient(cfg.ServerURL, api.WithToken(cfg.Token), api.WithTimeout(cfg.Timeout))

	syncService := sync.NewService(apiClient, store, db, db, clock, deviceID, sync.Options{
		PageSize:      cfg.PageSize,
		PushBatchSize: cfg.PushBatchSize,
	}, logger)

	queue := transfer.New(db, db, apiClient, transfer.Options{
		DefaultMaxRetries: cfg.Transfer.MaxRetries,
		BaseBackoff:       cfg.Transfer.BaseBackoff,
		MaxBackoff:        cfg.Transfer.MaxBackoff,
		JitterPercent:     cfg.Transfer.JitterPercent,
		Workers:           cfg.Transfer.Workers,
	}, logger)

	fileManager := files.NewManager(db, apiClient, queue, cfg.TempDir, logger)

	c := cli.New(stdio, cli.Services{
		Records:     data.NewService(store),
		Sync:        syncService,
		Files:       fileManager,
		Transfers:   queue,
		Content:     db,
		Cursors:     db,
		Auth:        apiClient,
		Scheduler:   sync.NewScheduler(syncService, store, cfg.SyncDebounce, logger),
		DeviceID:    deviceID,
		ServerURL:   cfg.ServerURL,
		Collections: cfg.Collections,
	})

	logger.Debug("Running command", slog.String("command", command), slog.String("device_id", deviceID))
	return c.Run(ctx, command, args)
}

func printVersion() {
	fmt.Printf("GophSync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
