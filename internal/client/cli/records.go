package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/iudanet/gophsync/internal/models"
)

func (c *Cli) runPut(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: gophsync put <collection> <key> [json|-]")
	}
	collection, key := args[0], args[1]

	var payload []byte
	switch {
	case len(args) < 3:
		line, err := c.io.ReadInput("Data (JSON): ")
		if err != nil {
			return fmt.Errorf("failed to read data: %w", err)
		}
		payload = []byte(line)
	case args[2] == "-":
		data, err := c.io.ReadAll()
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		payload = bytes.TrimSpace(data)
	default:
		payload = []byte(strings.Join(args[2:], " "))
	}

	record, err := c.records.Put(ctx, collection, key, "", payload)
	if err != nil {
		return err
	}

	c.io.Printf("✓ Saved %s/%s (clock %s)\n", collection, record.Key, record.Clock)
	return nil
}

func (c *Cli) runGet(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: gophsync get <collection> <key>")
	}

	record, err := c.records.Get(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}

	c.io.Printf("Key:       %s\n", record.Key)
	if record.EntityID != "" {
		c.io.Printf("Entity:    %s\n", record.EntityID)
	}
	c.io.Printf("Device:    %s\n", record.DeviceID)
	c.io.Printf("Clock:     %s\n", record.Clock)
	c.io.Printf("Sync:      %s\n", syncState(record))
	if !record.UpdatedAt.IsZero() {
		c.io.Printf("Updated:   %s\n", humanize.Time(record.UpdatedAt))
	}
	c.io.Println("Data:")
	c.io.Printf("%s\n", prettyJSON(record.Data))

	return nil
}

func (c *Cli) runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	includeDeleted := fs.Bool("deleted", false, "Include tombstones")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: gophsync list [-deleted] <collection>")
	}
	collection := fs.Arg(0)

	records, err := c.records.List(ctx, collection, *includeDeleted)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	c.io.Printf("=== %s ===\n", collection)
	c.io.Println()

	if len(records) == 0 {
		c.io.Println("No records found.")
		return nil
	}

	for _, r := range records {
		marker := " "
		if r.IsDeleted {
			marker = "x"
		}
		c.io.Printf("%s %-36s  %-9s  %s\n", marker, r.Key, syncState(r), preview(r.Data, 48))
	}
	c.io.Println()
	c.io.Printf("%d record(s)\n", len(records))

	return nil
}

func (c *Cli) runDelete(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: gophsync delete <collection> <key>")
	}

	if err := c.records.Delete(ctx, args[0], args[1]); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	c.io.Printf("✓ Deleted %s/%s\n", args[0], args[1])
	return nil
}

func syncState(r *models.Record) string {
	if r.ServerTimestamp == nil {
		return "pending"
	}
	return "synced"
}

func prettyJSON(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

// preview возвращает однострочное начало payload
func preview(data []byte, limit int) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		buf.Reset()
		buf.Write(data)
	}

	s := buf.String()
	if len([]rune(s)) > limit {
		return string([]rune(s)[:limit-3]) + "..."
	}
	return s
}
