// Package config загружает настройки клиента и сервера.
//
// Порядок применения: значения по умолчанию, YAML файл, .env файл,
// переменные окружения GOPHSYNC_*. Флаги командной строки main
// применяет поверх результата.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by the loaders.
const EnvPrefix = "GOPHSYNC_"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// LogConfig настройки логирования
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// SlogLevel converts Level to a slog level.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the text logger the binaries use.
func (c LogConfig) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.SlogLevel()}))
}

type loader struct {
	dotenv  map[string]string
	envFile string
	errs    []error
}

// Option configures a loader.
type Option func(*loader)

// WithEnvFile sets the .env file to read. Default ".env"; a missing file is ignored.
func WithEnvFile(path string) Option {
	return func(l *loader) {
		l.envFile = path
	}
}

func newLoader(opts []Option) (*loader, error) {
	l := &loader{envFile: ".env"}
	for _, opt := range opts {
		opt(l)
	}

	if l.envFile != "" {
		values, err := godotenv.Read(l.envFile)
		switch {
		case err == nil:
			l.dotenv = values
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read env file %s: %w", l.envFile, err)
		}
	}

	return l, nil
}

// readYAML decodes path into out. Empty path means no file.
func readYAML(path string, out any) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// lookup возвращает значение переменной: окружение процесса важнее .env
func (l *loader) lookup(name string) (string, bool) {
	key := EnvPrefix + name
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	v, ok := l.dotenv[key]
	return v, ok && v != ""
}

func (l *loader) stringVar(name string, dst *string) {
	if v, ok := l.lookup(name); ok {
		*dst = v
	}
}

func (l *loader) intVar(name string, dst *int) {
	if v, ok := l.lookup(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
}

func (l *loader) int64Var(name string, dst *int64) {
	if v, ok := l.lookup(name); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
}

func (l *loader) uint64Var(name string, dst *uint64) {
	if v, ok := l.lookup(name); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
}

func (l *loader) boolVar(name string, dst *bool) {
	if v, ok := l.lookup(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = b
	}
}

func (l *loader) durationVar(name string, dst *time.Duration) {
	if v, ok := l.lookup(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = d
	}
}

// listVar читает значения через запятую
func (l *loader) listVar(name string, dst *[]string) {
	if v, ok := l.lookup(name); ok {
		var items []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*dst = items
	}
}

func (l *loader) err() error {
	return errors.Join(l.errs...)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of cfg.
func Validate(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
