package config

import (
	"fmt"
	"time"
)

// TransferConfig настройки очереди передачи файлов
type TransferConfig struct {
	MaxRetries    int           `yaml:"max_retries" validate:"gte=0,lte=100"`
	BaseBackoff   time.Duration `yaml:"base_backoff" validate:"gt=0"`
	MaxBackoff    time.Duration `yaml:"max_backoff" validate:"gtefield=BaseBackoff"`
	JitterPercent uint64        `yaml:"jitter_percent" validate:"gte=1,lte=100"`
	Workers       int           `yaml:"workers" validate:"gte=1,lte=16"`
}

// Client is the client configuration.
type Client struct {
	Log           LogConfig      `yaml:"log"`
	ServerURL     string         `yaml:"server_url" validate:"required,url"`
	DBPath        string         `yaml:"db_path" validate:"required"`
	Token         string         `yaml:"token"`
	TempDir       string         `yaml:"temp_dir"`
	Collections   []string       `yaml:"collections" validate:"dive,required"`
	Transfer      TransferConfig `yaml:"transfer"`
	Timeout       time.Duration  `yaml:"timeout" validate:"gt=0"`
	SyncDebounce  time.Duration  `yaml:"sync_debounce" validate:"gte=0"`
	PageSize      int            `yaml:"page_size" validate:"gte=1,lte=1000"`
	PushBatchSize int            `yaml:"push_batch_size" validate:"gte=1,lte=1000"`
}

// DefaultClient returns the client defaults.
func DefaultClient() *Client {
	return &Client{
		ServerURL:     "http://localhost:8080",
		DBPath:        "gophsync-client.db",
		Collections:   []string{"notes", "highlights"},
		Timeout:       30 * time.Second,
		SyncDebounce:  2 * time.Second,
		PageSize:      200,
		PushBatchSize: 100,
		Transfer: TransferConfig{
			MaxRetries:    3,
			BaseBackoff:   time.Second,
			MaxBackoff:    5 * time.Minute,
			JitterPercent: 20,
			Workers:       1,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadClient loads the client configuration. path may be empty.
func LoadClient(path string, opts ...Option) (*Client, error) {
	cfg := DefaultClient()

	if err := readYAML(path, cfg); err != nil {
		return nil, err
	}

	l, err := newLoader(opts)
	if err != nil {
		return nil, err
	}

	l.stringVar("SERVER_URL", &cfg.ServerURL)
	l.stringVar("DB_PATH", &cfg.DBPath)
	l.stringVar("TOKEN", &cfg.Token)
	l.stringVar("TEMP_DIR", &cfg.TempDir)
	l.listVar("COLLECTIONS", &cfg.Collections)
	l.durationVar("TIMEOUT", &cfg.Timeout)
	l.durationVar("SYNC_DEBOUNCE", &cfg.SyncDebounce)
	l.intVar("PAGE_SIZE", &cfg.PageSize)
	l.intVar("PUSH_BATCH_SIZE", &cfg.PushBatchSize)
	l.intVar("TRANSFER_MAX_RETRIES", &cfg.Transfer.MaxRetries)
	l.durationVar("TRANSFER_BASE_BACKOFF", &cfg.Transfer.BaseBackoff)
	l.durationVar("TRANSFER_MAX_BACKOFF", &cfg.Transfer.MaxBackoff)
	l.uint64Var("TRANSFER_JITTER_PERCENT", &cfg.Transfer.JitterPercent)
	l.intVar("TRANSFER_WORKERS", &cfg.Transfer.Workers)
	l.stringVar("LOG_LEVEL", &cfg.Log.Level)

	if err := l.err(); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
