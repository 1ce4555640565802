package config

import (
	"fmt"
	"time"
)

// Blob backends of the server.
const (
	BlobBackendSQLite = "sqlite"
	BlobBackendS3     = "s3"
)

// S3Config настройки S3-совместимого хранилища blob
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// Server is the server configuration.
type Server struct {
	Log             LogConfig     `yaml:"log"`
	Address         string        `yaml:"address" validate:"required,hostname_port"`
	DBPath          string        `yaml:"db_path" validate:"required"`
	JWTSecret       string        `yaml:"jwt_secret" validate:"required,min=16"`
	BlobBackend     string        `yaml:"blob_backend" validate:"oneof=sqlite s3"`
	S3              S3Config      `yaml:"s3"`
	TokenTTL        time.Duration `yaml:"token_ttl" validate:"gt=0"`
	MaxUploadSize   int64         `yaml:"max_upload_size" validate:"gt=0"`
	MaxPageSize     int           `yaml:"max_page_size" validate:"gte=1,lte=5000"`
	RateLimit       int           `yaml:"rate_limit" validate:"gte=0"` // запросов за RateWindow на клиента, 0 - без ограничения
	UploadRateLimit int           `yaml:"upload_rate_limit" validate:"gte=0"`
	RateWindow      time.Duration `yaml:"rate_window" validate:"gt=0"`
}

// DefaultServer returns the server defaults.
func DefaultServer() *Server {
	return &Server{
		Address:         "localhost:8080",
		DBPath:          "gophsync-server.db",
		BlobBackend:     BlobBackendSQLite,
		TokenTTL:        30 * 24 * time.Hour,
		MaxUploadSize:   64 << 20,
		MaxPageSize:     1000,
		RateLimit:       600,
		UploadRateLimit: 60,
		RateWindow:      time.Minute,
		Log:             LogConfig{Level: "info"},
	}
}

// LoadServer loads the server configuration. path may be empty.
func LoadServer(path string, opts ...Option) (*Server, error) {
	cfg := DefaultServer()

	if err := readYAML(path, cfg); err != nil {
		return nil, err
	}

	l, err := newLoader(opts)
	if err != nil {
		return nil, err
	}

	l.stringVar("ADDRESS", &cfg.Address)
	l.stringVar("DB_PATH", &cfg.DBPath)
	l.stringVar("JWT_SECRET", &cfg.JWTSecret)
	l.durationVar("TOKEN_TTL", &cfg.TokenTTL)
	l.int64Var("MAX_UPLOAD_SIZE", &cfg.MaxUploadSize)
	l.intVar("MAX_PAGE_SIZE", &cfg.MaxPageSize)
	l.intVar("RATE_LIMIT", &cfg.RateLimit)
	l.intVar("UPLOAD_RATE_LIMIT", &cfg.UploadRateLimit)
	l.durationVar("RATE_WINDOW", &cfg.RateWindow)
	l.stringVar("BLOB_BACKEND", &cfg.BlobBackend)
	l.stringVar("S3_BUCKET", &cfg.S3.Bucket)
	l.stringVar("S3_REGION", &cfg.S3.Region)
	l.stringVar("S3_ENDPOINT", &cfg.S3.Endpoint)
	l.stringVar("S3_PREFIX", &cfg.S3.Prefix)
	l.stringVar("S3_ACCESS_KEY_ID", &cfg.S3.AccessKeyID)
	l.stringVar("S3_SECRET_ACCESS_KEY", &cfg.S3.SecretAccessKey)
	l.boolVar("S3_USE_PATH_STYLE", &cfg.S3.UsePathStyle)
	l.stringVar("LOG_LEVEL", &cfg.Log.Level)

	if err := l.err(); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	if cfg.BlobBackend == BlobBackendS3 && (cfg.S3.Bucket == "" || cfg.S3.Region == "") {
		return nil, fmt.Errorf("%w: s3 blob backend requires bucket and region", ErrInvalidConfig)
	}
	return cfg, nil
}
