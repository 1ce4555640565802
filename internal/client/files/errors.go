package files

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFoundLocal is returned by a LocalOnly lookup that misses the cache
	ErrNotFoundLocal = errors.New("file not found locally")

	// ErrNotFoundRemote is returned when the server does not have the file
	ErrNotFoundRemote = errors.New("file not found on server")
)

// TransferError wraps any other failure of fetching a file from the server.
type TransferError struct {
	Err         error
	ContentHash string
	FileType    string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("fetch %s/%s: %v", e.FileType, e.ContentHash, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
