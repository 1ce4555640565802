package cli

import (
	"context"
	"time"

	"github.com/iudanet/gophsync/internal/client/data"
	"github.com/iudanet/gophsync/internal/client/files"
	"github.com/iudanet/gophsync/internal/client/iocli"
	"github.com/iudanet/gophsync/internal/client/sync"
	"github.com/iudanet/gophsync/internal/client/transfer"
	"github.com/iudanet/gophsync/internal/models"
)

// Syncer is the part of the replication engine used by the CLI
type Syncer interface {
	Sync(ctx context.Context, collection string) (*sync.SyncResult, error)
	SyncAll(ctx context.Context) ([]*sync.SyncResult, error)
	PendingCount(ctx context.Context, collection string) (int, error)
	Halted() bool
	ResumeAfterAuth()
}

// TokenSetter replaces the bearer token of the API client
type TokenSetter interface {
	SetToken(token string)
}

// CursorLister lists the pull cursors stored locally
type CursorLister interface {
	ListCursors(ctx context.Context) ([]*models.Cursor, error)
}

// FileService is the part of the file manager used by the CLI
type FileService interface {
	StoreFile(ctx context.Context, data []byte, fileType string, opts transfer.UploadOptions) (string, error)
	GetFile(ctx context.Context, contentHash, fileType string, opts files.GetOptions) (*models.StoredFile, error)
	Subscribe(contentHash, fileType string, fn transfer.ProgressFunc) (unsubscribe func())
}

// TransferService is the part of the transfer queue used by the CLI
type TransferService interface {
	Start(ctx context.Context) error
	Stop()
	Tasks(ctx context.Context) ([]*models.TransferTask, error)
	Stats(ctx context.Context) (*transfer.Stats, error)
	RetryFailed(ctx context.Context, taskID string) (*models.TransferTask, error)
	ClearCompleted(ctx context.Context) (int, error)
}

// ContentLister lists blobs cached locally
type ContentLister interface {
	ListFiles(ctx context.Context) ([]*models.StoredFile, error)
}

// Runner is a background loop, e.g. the debounced sync scheduler
type Runner interface {
	Run(ctx context.Context) error
}

// Services собирает зависимости команд
type Services struct {
	Records     data.Service
	Sync        Syncer
	Files       FileService
	Transfers   TransferService
	Content     ContentLister
	Cursors     CursorLister
	Auth        TokenSetter
	Scheduler   Runner
	DeviceID    string
	ServerURL   string
	Collections []string
}

type Cli struct {
	io           iocli.IO
	records      data.Service
	syncService  Syncer
	files        FileService
	transfers    TransferService
	content      ContentLister
	cursors      CursorLister
	auth         TokenSetter
	scheduler    Runner
	deviceID     string
	serverURL    string
	collections  []string
	pollInterval time.Duration
}

func New(io iocli.IO, svc Services) *Cli {
	return &Cli{
		io:           io,
		records:      svc.Records,
		syncService:  svc.Sync,
		files:        svc.Files,
		transfers:    svc.Transfers,
		content:      svc.Content,
		cursors:      svc.Cursors,
		auth:         svc.Auth,
		scheduler:    svc.Scheduler,
		deviceID:     svc.DeviceID,
		serverURL:    svc.ServerURL,
		collections:  svc.Collections,
		pollInterval: 200 * time.Millisecond,
	}
}

func PrintUsage(io iocli.IO) {
	io.Println("GophSync Client")
	io.Println()
	io.Println("Usage:")
	io.Println("  gophsync [OPTIONS] COMMAND")
	io.Println()
	io.Println("Options:")
	io.Println("  -version                     Show version information")
	io.Println("  -config PATH                 Path to YAML config file")
	io.Println("  -env-file PATH               Path to .env file (default: .env)")
	io.Println("  -server URL                  Server URL (overrides config)")
	io.Println("  -db PATH                     Path to local database (overrides config)")
	io.Println()
	io.Println("Configuration priority (highest to lowest):")
	io.Println("  1. Command line options")
	io.Println("  2. GOPHSYNC_* environment variables")
	io.Println("  3. .env file")
	io.Println("  4. YAML config file")
	io.Println()
	io.Println("Commands:")
	io.Println("  status                                Show device, pending changes and transfers")
	io.Println("  put <collection> <key> [json|-]       Create or update a record (- reads stdin)")
	io.Println("  get <collection> <key>                Show a record")
	io.Println("  list [-deleted] <collection>          List records")
	io.Println("  delete <collection> <key>             Delete a record (tombstone in synced collections)")
	io.Println("  sync [collection]                     Pull then push changes")
	io.Println("  file-put [-type T] [-no-wait] <path>  Store a file and upload it")
	io.Println("  file-get [-local] <type> <hash> [out] Fetch a file (cache first)")
	io.Println("  transfers [run|retry <id>|clear]      Show or drive the transfer queue")
	io.Println("  watch                                 Interactive shell with background sync")
	io.Println("                                        (in watch: 'token <value>' replaces the token)")
	io.Println()
	io.Println("Examples:")
	io.Println("  gophsync put notes n1 '{\"text\":\"hello\"}'")
	io.Println("  echo '{\"text\":\"piped\"}' | gophsync put notes n2 -")
	io.Println("  gophsync sync notes")
	io.Println("  gophsync file-put -type attachment ./report.pdf")
	io.Println("  GOPHSYNC_TOKEN=... gophsync -server https://sync.example.com sync")
}
