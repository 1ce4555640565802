package cli

import (
	"context"
	"fmt"
)

// Run выполняет команду; ошибка выводится вызывающим
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "status":
		return c.runStatus(ctx)
	case "put":
		return c.runPut(ctx, args)
	case "get":
		return c.runGet(ctx, args)
	case "list":
		return c.runList(ctx, args)
	case "delete":
		return c.runDelete(ctx, args)
	case "sync":
		return c.runSync(ctx, args)
	case "file-put":
		return c.runFilePut(ctx, args)
	case "file-get":
		return c.runFileGet(ctx, args)
	case "transfers":
		return c.runTransfers(ctx, args)
	case "watch":
		return c.runWatch(ctx)
	case "help":
		PrintUsage(c.io)
		return nil
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}
