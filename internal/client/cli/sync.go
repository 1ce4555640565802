package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/gophsync/internal/client/sync"
)

func (c *Cli) runSync(ctx context.Context, args []string) error {
	c.io.Println("=== Synchronization ===")
	c.io.Println()

	var (
		results []*sync.SyncResult
		err     error
	)
	if len(args) > 0 {
		var result *sync.SyncResult
		result, err = c.syncService.Sync(ctx, args[0])
		if result != nil {
			results = append(results, result)
		}
	} else {
		results, err = c.syncService.SyncAll(ctx)
	}

	for _, r := range results {
		c.printSyncResult(r)
	}

	if err != nil {
		if errors.Is(err, sync.ErrSyncHalted) {
			return fmt.Errorf("server rejected the token, set a valid GOPHSYNC_TOKEN and retry: %w", err)
		}
		return fmt.Errorf("synchronization failed: %w", err)
	}

	c.io.Println("✓ Synchronization completed successfully!")
	return nil
}

func (c *Cli) printSyncResult(r *sync.SyncResult) {
	c.io.Printf("[%s]\n", r.Collection)
	if r.Pull != nil {
		c.io.Printf("  Pulled from server: %d (applied %d, discarded %d)\n", r.Pull.Pulled, r.Pull.Applied, r.Pull.Discarded)
		if r.Pull.Skipped > 0 {
			c.io.Printf("  Skipped (bad clock): %d\n", r.Pull.Skipped)
		}
	}
	if r.Push != nil {
		c.io.Printf("  Pushed to server:   %d (accepted %d)\n", r.Push.Pushed, r.Push.Accepted)
		if r.Push.Superseded > 0 {
			c.io.Printf("  Superseded by server: %d\n", r.Push.Superseded)
		}
		if r.Push.Changed > 0 {
			c.io.Printf("  Changed during push: %d (still pending)\n", r.Push.Changed)
		}
		for _, rej := range r.Push.Rejected {
			c.io.Printf("  Rejected: %s (%s)\n", rej.Key, rej.Reason)
		}
	}
	c.io.Println()
}
