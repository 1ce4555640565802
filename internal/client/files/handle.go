package files

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// Handle указывает на временную копию файла, доступную по file:// URL.
// Владелец обязан вызвать Revoke.
type Handle struct {
	Path string
	URL  string
	once sync.Once
	err  error
}

// Revoke removes the temporary copy. Safe to call more than once.
func (h *Handle) Revoke() error {
	h.once.Do(func() {
		if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
			h.err = fmt.Errorf("failed to remove temp file: %w", err)
		}
	})
	return h.err
}

func newHandle(dir string, data []byte, mediaType string) (*Handle, error) {
	pattern := "gophsync-*"
	if mt := mimetype.Lookup(mediaType); mt != nil {
		pattern += mt.Extension()
	}

	// CreateTemp создает файл с правами 0600
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	path, err := filepath.Abs(f.Name())
	if err != nil {
		path = f.Name()
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return &Handle{Path: path, URL: u.String()}, nil
}
