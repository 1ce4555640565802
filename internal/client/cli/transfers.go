package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iudanet/gophsync/internal/client/transfer"
)

func (c *Cli) runTransfers(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.listTransfers(ctx)
	}

	switch args[0] {
	case "run":
		return c.drainTransfers(ctx)
	case "retry":
		if len(args) != 2 {
			return fmt.Errorf("usage: gophsync transfers retry <task-id>")
		}
		task, err := c.transfers.RetryFailed(ctx, args[1])
		if err != nil {
			return fmt.Errorf("failed to retry task: %w", err)
		}
		c.io.Printf("✓ Task %s is pending again\n", task.ID)
		return nil
	case "clear":
		n, err := c.transfers.ClearCompleted(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear tasks: %w", err)
		}
		c.io.Printf("✓ Removed %d completed task(s)\n", n)
		return nil
	default:
		return fmt.Errorf("unknown transfers command: %s", args[0])
	}
}

func (c *Cli) listTransfers(ctx context.Context) error {
	tasks, err := c.transfers.Tasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	c.io.Println("=== Transfers ===")
	c.io.Println()

	if len(tasks) == 0 {
		c.io.Println("No transfer tasks.")
		return nil
	}

	for _, t := range tasks {
		c.io.Printf("%s  %-8s  %-10s  %s/%s  retries %d/%d  %s\n",
			t.ID, t.Direction, t.Status, t.FileType, shortHash(t.ContentHash),
			t.RetryCount, t.MaxRetries, humanize.Time(t.UpdatedAt))
		if t.Error != "" {
			c.io.Printf("    error: %s\n", t.Error)
		}
	}
	return nil
}

// drainTransfers запускает воркеры и ждет, пока не останется активных задач
func (c *Cli) drainTransfers(ctx context.Context) error {
	if err := c.transfers.Start(ctx); err != nil && !errors.Is(err, transfer.ErrAlreadyStarted) {
		return fmt.Errorf("failed to start transfers: %w", err)
	}
	defer c.transfers.Stop()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		stats, err := c.transfers.Stats(ctx)
		if err != nil {
			return fmt.Errorf("failed to read transfer stats: %w", err)
		}
		if stats.Pending == 0 && stats.Processing == 0 {
			c.io.Printf("✓ Transfers done: %d completed, %d failed\n", stats.Completed, stats.Failed)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
