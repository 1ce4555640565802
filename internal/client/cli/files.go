package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/iudanet/gophsync/internal/client/files"
	"github.com/iudanet/gophsync/internal/client/transfer"
	"github.com/iudanet/gophsync/internal/crypto"
	"github.com/iudanet/gophsync/internal/models"
)

const defaultFileType = "attachment"

func (c *Cli) runFilePut(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("file-put", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fileType := fs.String("type", defaultFileType, "File type")
	noWait := fs.Bool("no-wait", false, "Queue the upload and exit")
	priority := fs.Int("priority", 0, "Task priority")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: gophsync file-put [-type T] [-no-wait] <path>")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	hash := crypto.ContentHash(data)

	// Подписываемся до постановки в очередь, чтобы не пропустить события
	events := make(chan transfer.Progress, 16)
	unsubscribe := c.files.Subscribe(hash, *fileType, func(p transfer.Progress) {
		if p.Direction != models.DirectionUpload {
			return
		}
		select {
		case events <- p:
		default:
		}
	})
	defer unsubscribe()

	if _, err := c.files.StoreFile(ctx, data, *fileType, transfer.UploadOptions{Priority: *priority}); err != nil {
		return fmt.Errorf("failed to store file: %w", err)
	}

	c.io.Printf("Stored %s (%s)\n", hash, humanize.Bytes(uint64(len(data))))
	if *noWait {
		c.io.Println("Upload queued. Run 'gophsync transfers run' to upload.")
		return nil
	}

	if err := c.transfers.Start(ctx); err != nil && !errors.Is(err, transfer.ErrAlreadyStarted) {
		return fmt.Errorf("failed to start transfers: %w", err)
	}
	defer c.transfers.Stop()

	for {
		select {
		case <-ctx.Done():
			c.io.Println("Interrupted, upload stays queued.")
			return ctx.Err()
		case p := <-events:
			switch p.Status {
			case models.TransferCompleted:
				c.io.Println("✓ Uploaded")
				return nil
			case models.TransferFailed:
				return fmt.Errorf("upload failed: %w", p.Err)
			case models.TransferPending:
				c.io.Printf("  retry %d scheduled: %v\n", p.RetryCount, p.Err)
			case models.TransferProcessing:
				c.io.Println("  uploading...")
			}
		}
	}
}

func (c *Cli) runFileGet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("file-get", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	localOnly := fs.Bool("local", false, "Do not contact the server")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 || fs.NArg() > 3 {
		return fmt.Errorf("usage: gophsync file-get [-local] <type> <hash> [output]")
	}
	fileType, hash := fs.Arg(0), fs.Arg(1)

	if !crypto.IsContentHash(hash) {
		return fmt.Errorf("invalid content hash: %s", hash)
	}

	file, err := c.files.GetFile(ctx, hash, fileType, files.GetOptions{LocalOnly: *localOnly})
	switch {
	case errors.Is(err, files.ErrNotFoundLocal):
		return fmt.Errorf("file is not cached locally")
	case errors.Is(err, files.ErrNotFoundRemote):
		return fmt.Errorf("file does not exist on the server")
	case err != nil:
		return fmt.Errorf("failed to get file: %w", err)
	}

	c.io.Printf("File:       %s/%s\n", file.FileType, file.ContentHash)
	c.io.Printf("Media type: %s\n", file.MediaType)
	c.io.Printf("Size:       %s\n", humanize.Bytes(uint64(len(file.Data))))

	if fs.NArg() == 3 {
		out := fs.Arg(2)
		if err := os.WriteFile(out, file.Data, 0o600); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		c.io.Printf("✓ Saved to %s\n", out)
	}

	return nil
}
