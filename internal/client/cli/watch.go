package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iudanet/gophsync/internal/client/transfer"
)

// команды, доступные в интерактивном режиме
var watchCommands = map[string]bool{
	"put": true, "get": true, "list": true, "delete": true,
	"sync": true, "status": true, "file-get": true,
}

// runWatch читает команды построчно, пока фоновый планировщик
// синхронизирует измененные коллекции, а воркеры передают файлы
func (c *Cli) runWatch(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := c.transfers.Start(ctx); err != nil && !errors.Is(err, transfer.ErrAlreadyStarted) {
		return fmt.Errorf("failed to start transfers: %w", err)
	}
	defer c.transfers.Stop()

	if _, err := c.syncService.SyncAll(ctx); err != nil {
		c.io.Printf("Initial sync failed: %v\n", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.scheduler.Run(ctx)
	}()

	c.io.Println("Watching for changes. Type 'help' for commands, 'exit' to quit.")

	for ctx.Err() == nil {
		line, err := c.io.ReadInput("> ")
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			cancel()
			<-done
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			break
		}
		if fields[0] == "help" {
			c.io.Printf("Commands: put, get, list, delete, sync, status, file-get, token, exit\n")
			continue
		}
		if fields[0] == "token" {
			if err := c.replaceToken(ctx, fields[1:]); err != nil {
				c.io.Printf("Error: %v\n", err)
			}
			continue
		}
		if !watchCommands[fields[0]] {
			c.io.Printf("Unknown command: %s\n", fields[0])
			continue
		}

		if err := c.Run(ctx, fields[0], fields[1:]); err != nil {
			c.io.Printf("Error: %v\n", err)
		}
	}

	cancel()
	<-done
	return nil
}

// replaceToken подставляет новый токен и снимает остановку синхронизации
func (c *Cli) replaceToken(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: token <value>")
	}

	c.auth.SetToken(args[0])
	c.syncService.ResumeAfterAuth()
	c.io.Println("✓ Token replaced")

	if _, err := c.syncService.SyncAll(ctx); err != nil {
		return fmt.Errorf("sync after token change failed: %w", err)
	}
	return nil
}
