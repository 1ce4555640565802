package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Status ===")
	c.io.Println()
	c.io.Printf("Device:  %s\n", c.deviceID)
	c.io.Printf("Server:  %s\n", c.serverURL)
	if c.syncService.Halted() {
		c.io.Println("⚠️  Sync halted: the server rejected the token")
	}
	c.io.Println()

	total := 0
	for _, collection := range c.collections {
		n, err := c.syncService.PendingCount(ctx, collection)
		if err != nil {
			return fmt.Errorf("failed to count pending records: %w", err)
		}
		total += n
		c.io.Printf("  %-20s %d pending\n", collection, n)
	}
	c.io.Println()
	if total > 0 {
		c.io.Printf("⚠️  Pending sync: %d record(s) waiting to be synchronized\n", total)
		c.io.Println("Run 'gophsync sync' to synchronize with server.")
	} else {
		c.io.Println("✓ All data synchronized with server")
	}
	c.io.Println()

	cursors, err := c.cursors.ListCursors(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cursors: %w", err)
	}
	for _, cursor := range cursors {
		scope := cursor.Collection
		if cursor.EntityID != "" {
			scope += " [" + cursor.EntityID + "]"
		}
		c.io.Printf("Last pull: %-20s %s\n", scope, humanize.Time(cursor.UpdatedAt))
	}
	if len(cursors) == 0 {
		c.io.Println("Last pull: never")
	}
	c.io.Println()

	stats, err := c.transfers.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read transfer stats: %w", err)
	}
	c.io.Printf("Transfers: %d pending, %d processing, %d completed, %d failed\n",
		stats.Pending, stats.Processing, stats.Completed, stats.Failed)

	cached, err := c.content.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cached files: %w", err)
	}
	var size int64
	for _, f := range cached {
		size += f.Size
	}
	c.io.Printf("Cache:     %d file(s), %s\n", len(cached), humanize.Bytes(uint64(size)))

	return nil
}
